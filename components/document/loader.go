package document

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

type mimeParser struct {
	mime   string
	parser Parser
}

// Loader reads documents and picks a parser from the detected mime type
type Loader struct {
	parsers []mimeParser
}

type LoaderOption func(*Loader)

// WithParser registers a parser for a mime type, checked before the defaults
func WithParser(mime string, p Parser) LoaderOption {
	return func(l *Loader) {
		l.parsers = append([]mimeParser{{mime: mime, parser: p}}, l.parsers...)
	}
}

func NewLoader(opts ...LoaderOption) *Loader {
	ret := &Loader{
		parsers: []mimeParser{
			{mime: "text/html", parser: NewHTML2MDParser()},
			{mime: "application/pdf", parser: NewPDFParser(PDFParserWithPageMarkers())},
			{mime: "text/plain", parser: TextParser{}},
		},
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

// Load reads r, converts it to text and merges markdown front matter into the metadata
func (l *Loader) Load(ctx context.Context, r Reader) (*Document, error) {
	bs, err := r.ReadAll(ctx)
	if err != nil {
		return nil, err
	}
	meta := make(map[string]string)
	for k, v := range r.Meta() {
		meta[k] = v
	}
	mtype := mimetype.Detect(bs)
	parser := l.parserFor(mtype)
	if parser == nil {
		return nil, fmt.Errorf("%w: %s (%s)", ErrUnsupportedMime, mtype.String(), sourceOf(meta))
	}
	meta["mime"] = mtype.String()
	buf := new(bytes.Buffer)
	if err := parser.Parse(ctx, bytes.NewReader(bs), buf); err != nil {
		return nil, fmt.Errorf("parse %s: %w", sourceOf(meta), err)
	}
	content := buf.String()
	if isMarkdown(meta, mtype) {
		fm, body, err := SplitFrontMatter(content)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", sourceOf(meta), err)
		}
		for k, v := range fm {
			meta[k] = v
		}
		content = body
	}
	return NewDocument(strings.TrimSpace(content), meta), nil
}

func (l *Loader) parserFor(mtype *mimetype.MIME) Parser {
	for m := mtype; m != nil; m = m.Parent() {
		for _, v := range l.parsers {
			if m.Is(v.mime) {
				return v.parser
			}
		}
	}
	return nil
}

func isMarkdown(meta map[string]string, mtype *mimetype.MIME) bool {
	if !mtype.Is("text/plain") {
		return false
	}
	name := meta["filename"]
	if name == "" {
		name = sourceOf(meta)
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".md", ".markdown", "":
		return true
	}
	return false
}

func sourceOf(meta map[string]string) string {
	return NewDocument("", meta).Source()
}
