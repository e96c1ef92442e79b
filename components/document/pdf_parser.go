package document

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDFParser extracts the text of a PDF, row by row
type PDFParser struct {
	password    string
	pageMarkers bool
}

var _ Parser = (*PDFParser)(nil)

type PDFParserOption func(*PDFParser)

func PDFParserWithPassword(password string) PDFParserOption {
	return func(p *PDFParser) {
		p.password = password
	}
}

// PDFParserWithPageMarkers writes a "[page N]" line before every page so
// answers can cite the page of a standard
func PDFParserWithPageMarkers() PDFParserOption {
	return func(p *PDFParser) {
		p.pageMarkers = true
	}
}

func NewPDFParser(opts ...PDFParserOption) *PDFParser {
	ret := new(PDFParser)
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

func (p *PDFParser) Parse(ctx context.Context, reader *bytes.Reader, writer io.Writer) error {
	var (
		r    *pdf.Reader
		err  error
		size = reader.Size()
	)
	if p.password != "" {
		if r, err = pdf.NewReaderEncrypted(reader, size, func() string {
			return p.password
		}); err != nil {
			return err
		}
	} else {
		if r, err = pdf.NewReader(reader, size); err != nil {
			return err
		}
	}
	totalPage := r.NumPage()
	written := false
	for pageIndex := 1; pageIndex <= totalPage; pageIndex++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		page := r.Page(pageIndex)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			return fmt.Errorf("pdf page %d: %w", pageIndex, err)
		}
		if p.pageMarkers && len(rows) > 0 {
			prefix := ""
			if written {
				prefix = "\n\n"
			}
			if _, err := fmt.Fprintf(writer, "%s[page %d]", prefix, pageIndex); err != nil {
				return err
			}
			written = true
		}
		for _, row := range rows {
			if written {
				if _, err := writer.Write([]byte{'\n'}); err != nil {
					return err
				}
			}
			words := make([]string, 0, len(row.Content))
			for _, word := range row.Content {
				words = append(words, word.S)
			}
			if _, err := io.WriteString(writer, strings.Join(words, "")); err != nil {
				return err
			}
			written = true
		}
	}
	return nil
}
