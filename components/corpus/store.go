package corpus

import (
	"crypto/md5"
	"encoding/hex"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bububa/regulation-agents/components/document"
)

const (
	maxNameLength = 50
	maxPathLength = 240
)

var unsafeNameChars = regexp.MustCompile(`[<>:"/\\|?*]`)

// NormalizeURL keeps scheme, host and path, dropping query, fragment and trailing slashes
func NormalizeURL(link string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return "", err
	}
	return strings.TrimRight(u.Scheme+"://"+u.Host+u.Path, "/"), nil
}

// ShortHash returns the first n hex chars of the md5 of v
func ShortHash(v string, n int) string {
	sum := md5.Sum([]byte(v))
	return hex.EncodeToString(sum[:])[:n]
}

// SafeName builds a markdown file name from the url path
func SafeName(link string) string {
	var path string
	if u, err := url.Parse(link); err == nil {
		path = strings.Trim(u.Path, "/")
	}
	if path == "" {
		path = "index"
	}
	safe := unsafeNameChars.ReplaceAllString(path, "_")
	if runes := []rune(safe); len(runes) > maxNameLength {
		safe = string(runes[len(runes)-maxNameLength:])
	}
	return safe + ".md"
}

// PagePath returns the output file and folder hash of a page.
// Pages are stored under <out>/<parent>/<md5(url)[:8]>/<safe name>.
func PagePath(out string, parent string, link string) (string, string) {
	hash := ShortHash(link, 8)
	folder := filepath.Join(out, parent, hash)
	path := filepath.Join(folder, SafeName(link))
	if len(path) > maxPathLength {
		path = filepath.Join(folder, ShortHash(path, 10)+".md")
	}
	return path, hash
}

// SavePage writes markdown with a source front matter
func SavePage(path string, source string, markdown string) error {
	content, err := document.WriteFrontMatter(map[string]string{"source": source}, markdown)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0o644)
}
