package document

import (
	"bytes"
	"context"
	"io"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/PuerkitoBio/goquery"
)

// boilerplate elements dropped before conversion
const boilerplate = "script, style, nav, header, footer, aside, noscript"

// HTML2MDParser converts regulation web pages to markdown, without site navigation
type HTML2MDParser struct {
	opts []converter.ConvertOptionFunc
}

var _ Parser = (*HTML2MDParser)(nil)

func NewHTML2MDParser(opts ...converter.ConvertOptionFunc) *HTML2MDParser {
	return &HTML2MDParser{
		opts: opts,
	}
}

func (h *HTML2MDParser) Parse(ctx context.Context, reader *bytes.Reader, writer io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	doc, err := goquery.NewDocumentFromReader(reader)
	if err != nil {
		return err
	}
	doc.Find(boilerplate).Remove()
	content, err := doc.Html()
	if err != nil {
		return err
	}
	markdown, err := htmltomarkdown.ConvertString(content, h.opts...)
	if err != nil {
		return err
	}
	_, err = io.WriteString(writer, markdown)
	return err
}
