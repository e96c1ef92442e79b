package document

import (
	"context"
	"errors"
	"maps"
	"path"
)

var (
	ErrReading         = errors.New("document is reading")
	ErrUnsupportedMime = errors.New("unsupported document mime type")
)

type ReadStatus = int32

const (
	Unread ReadStatus = iota
	Reading
	ReadCompleted
)

// Reader loads the raw bytes of a document from its source
type Reader interface {
	ReadAll(ctx context.Context) ([]byte, error)
	Meta() map[string]string
}

// Document is a parsed document with metadata
type Document struct {
	content string
	meta    map[string]string
}

func NewDocument(content string, meta map[string]string) *Document {
	if meta == nil {
		meta = make(map[string]string)
	}
	return &Document{content: content, meta: meta}
}

func (d Document) String() string {
	return d.content
}

// Meta returns a copy of the document metadata
func (d Document) Meta() map[string]string {
	return maps.Clone(d.meta)
}

// Source is where the document came from: front matter source, url, s3 uri or file path
func (d Document) Source() string {
	for _, k := range []string{"source", "url", "uri", "path"} {
		if v := d.meta[k]; v != "" {
			return v
		}
	}
	return ""
}

// Title is the front matter title, falling back to the file name of the source
func (d Document) Title() string {
	if v := d.meta["title"]; v != "" {
		return v
	}
	if v := d.meta["filename"]; v != "" {
		return v
	}
	return path.Base(d.Source())
}
