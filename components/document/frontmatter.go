package document

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

const frontMatterDelim = "---"

// SplitFrontMatter separates a leading YAML front matter block from a markdown body.
// Content without front matter returns a nil map and the content unchanged.
func SplitFrontMatter(content string) (map[string]string, string, error) {
	trimmed := strings.TrimPrefix(content, "\ufeff")
	if !strings.HasPrefix(trimmed, frontMatterDelim+"\n") && !strings.HasPrefix(trimmed, frontMatterDelim+"\r\n") {
		return nil, content, nil
	}
	rest := trimmed[strings.Index(trimmed, "\n")+1:]
	end := -1
	offset := 0
	for _, line := range strings.SplitAfter(rest, "\n") {
		if strings.TrimRight(line, "\r\n") == frontMatterDelim {
			end = offset
			break
		}
		offset += len(line)
	}
	if end < 0 {
		return nil, content, nil
	}
	raw := make(map[string]any)
	if err := yaml.Unmarshal([]byte(rest[:end]), &raw); err != nil {
		return nil, content, fmt.Errorf("invalid front matter: %w", err)
	}
	meta := make(map[string]string, len(raw))
	for k, v := range raw {
		meta[k] = fmt.Sprint(v)
	}
	body := rest[end:]
	if idx := strings.Index(body, "\n"); idx >= 0 {
		body = body[idx+1:]
	} else {
		body = ""
	}
	return meta, strings.TrimLeft(body, "\r\n"), nil
}

// WriteFrontMatter renders meta as a YAML front matter block followed by body
func WriteFrontMatter(meta map[string]string, body string) (string, error) {
	if len(meta) == 0 {
		return body, nil
	}
	buf := new(bytes.Buffer)
	buf.WriteString(frontMatterDelim + "\n")
	enc := yaml.NewEncoder(buf)
	enc.SetIndent(2)
	if err := enc.Encode(meta); err != nil {
		return "", err
	}
	if err := enc.Close(); err != nil {
		return "", err
	}
	buf.WriteString(frontMatterDelim + "\n\n")
	buf.WriteString(body)
	return buf.String(), nil
}
