package corpus

import (
	"html"
	"io"
	"regexp"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/PuerkitoBio/goquery"
)

const (
	ECFRXMLFile      = "ecfr_full.xml"
	ECFRMarkdownFile = "ecfr_full.md"
)

var (
	listLabel = regexp.MustCompile(`^\(([a-zA-Z0-9]+)\)\s*(.*)$`)
	headTag   = regexp.MustCompile(`(?i)<(/?)head(?:\s[^>]*)?>`)
	spaces    = regexp.MustCompile(`\s+`)
)

// ECFRToMarkdown converts an aggregated eCFR document into markdown,
// one "## Section <id>" block per section.
func ECFRToMarkdown(r io.Reader) (string, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	// eCFR headings use <HEAD>, which html parsing would drop
	src := headTag.ReplaceAllString(string(raw), "<${1}h3>")
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(src))
	if err != nil {
		return "", err
	}
	parts := []string{"# Complete eCFR Document\n"}
	var convErr error
	doc.Find("section").Not("section section").EachWithBreak(func(_ int, sec *goquery.Selection) bool {
		id := sec.AttrOr("id", "id?")
		NestLists(sec)
		sec.Find("a").Each(func(_ int, a *goquery.Selection) {
			a.ReplaceWithHtml(html.EscapeString(a.Text()))
		})
		inner, err := sec.Html()
		if err != nil {
			convErr = err
			return false
		}
		markdown, err := htmltomarkdown.ConvertString(inner)
		if err != nil {
			convErr = err
			return false
		}
		parts = append(parts, "\n## Section "+id+"\n", markdown)
		return true
	})
	if convErr != nil {
		return "", convErr
	}
	return strings.Join(parts, "\n"), nil
}

// NestLists turns paragraphs starting with a "(label)" marker into nested
// lists. Depth is the label length, so (a) and (1) sit at the first level and
// (iv) at the second. A paragraph without a marker closes every open list.
func NestLists(sel *goquery.Selection) {
	var stack []*goquery.Selection
	sel.Find("p").Each(func(_ int, p *goquery.Selection) {
		txt := strings.TrimSpace(spaces.ReplaceAllString(p.Text(), " "))
		m := listLabel.FindStringSubmatch(txt)
		if m == nil {
			stack = stack[:0]
			return
		}
		level := len(m[1])
		if len(stack) > level {
			stack = stack[:level]
		}
		for len(stack) < level {
			var ul *goquery.Selection
			if len(stack) == 0 {
				p.BeforeHtml("<ul></ul>")
				ul = p.Prev()
			} else {
				parent := stack[len(stack)-1]
				if li := parent.ChildrenFiltered("li").Last(); li.Length() > 0 {
					parent = li
				}
				parent.AppendHtml("<ul></ul>")
				ul = parent.ChildrenFiltered("ul").Last()
			}
			stack = append(stack, ul)
		}
		top := stack[len(stack)-1]
		top.AppendHtml("<li></li>")
		top.ChildrenFiltered("li").Last().SetText("(" + m[1] + ") " + m[2])
		p.Remove()
	})
}
