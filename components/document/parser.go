package document

import (
	"bytes"
	"context"
	"io"
)

// Parser converts raw document bytes into text
type Parser interface {
	Parse(context.Context, *bytes.Reader, io.Writer) error
}

// TextParser passes plain text and markdown through
type TextParser struct{}

var _ Parser = (*TextParser)(nil)

func (TextParser) Parse(ctx context.Context, reader *bytes.Reader, writer io.Writer) error {
	_, err := io.Copy(writer, reader)
	return err
}
