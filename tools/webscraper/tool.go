package webscraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/PuerkitoBio/goquery"

	"github.com/bububa/regulation-agents/tools"
)

// Input schema for the WebpageScraperTool.
type Input struct {
	// URL of the webpage to scrape.
	URL string `json:"url,omitempty" validate:"required,url"`
	// IncludeLinks Whether to collect the links of the main content.
	IncludeLinks bool `json:"include_links,omitempty"`
}

func NewInput(link string, includeLinks bool) *Input {
	return &Input{
		URL:          link,
		IncludeLinks: includeLinks,
	}
}

// Metadata Schema for webpage metadata
type Metadata struct {
	// Title is the title of the webpage.
	Title string `json:"title,omitempty"`
	// Author is the author of the webpage content.
	Author string `json:"author,omitempty"`
	// Description is the meta description of the webpage.
	Description string `json:"description,omitempty"`
	// Keywords is the meta keywords of the webpage.
	Keywords string `json:"keywords,omitempty"`
	// SiteName is the name of the website.
	SiteName string `json:"sitename,omitempty"`
	// Domain is the domain name of the website.
	Domain string `json:"domain,omitempty"`
}

// Output Schema for the output of the WebpageScraperTool.
type Output struct {
	// Content The scraped content in markdown format.
	Content string `json:"content,omitempty"`
	// Metadata is metadata about the scraped webpage.
	Metadata *Metadata `json:"metadata,omitempty"`
	// FinalURL is the page URL after redirects
	FinalURL string `json:"final_url,omitempty"`
	// Links absolute links found in the main content, in document order
	Links []string `json:"links,omitempty"`
}

func NewOutput(content string, metadata *Metadata) *Output {
	return &Output{
		Content:  content,
		Metadata: metadata,
	}
}

type Config struct {
	tools.Config
	// userAgent User agent string to use for requests.
	userAgent string
	// timeout Timeout in seconds for HTTP requests
	timeout int
	// MaxContentLength Maximum content length in bytes to process.
	maxContentLength int64
	httpClient       *http.Client
	contentSelectors []string
}

type Webscraper struct {
	Config
}

var _ tools.Tool[Input, Output] = (*Webscraper)(nil)

var (
	defaultContentSelectors = []string{
		"main",
		"div.field-item",
		"div.content-block",
		"article",
		"body",
	}
	strippedTags   = []string{"script", "style", "nav", "header", "footer", "aside"}
	multiBlankLine = regexp.MustCompile(`(\r?\n){3,}`)
)

func New(opts ...Option) *Webscraper {
	ret := new(Webscraper)
	for _, opt := range opts {
		opt(&ret.Config)
	}
	if ret.Title() == "" {
		ret.SetTitle("WebscraperTool")
	}
	if ret.Description() == "" {
		ret.SetDescription("Fetches a webpage and returns its main content as markdown")
	}
	if ret.userAgent == "" {
		ret.userAgent = DefaultUserAgent
	}
	if ret.timeout == 0 {
		ret.timeout = 30
	}
	if ret.maxContentLength == 0 {
		ret.maxContentLength = 10_000_000
	}
	if len(ret.contentSelectors) == 0 {
		ret.contentSelectors = defaultContentSelectors
	}
	if ret.httpClient == nil {
		ret.httpClient = &http.Client{
			Timeout: time.Second * time.Duration(ret.timeout),
		}
	}
	return ret
}

func (t *Webscraper) Run(ctx context.Context, input *Input) (*Output, error) {
	t.Start(ctx, t, input)
	ret, err := t.run(ctx, input)
	if err != nil {
		t.Fail(ctx, t, input, err)
		return nil, err
	}
	t.End(ctx, t, input, ret)
	return ret, nil
}

func (t *Webscraper) run(ctx context.Context, input *Input) (*Output, error) {
	if _, err := url.ParseRequestURI(input.URL); err != nil {
		return nil, err
	}
	doc, finalURL, err := t.fetch(ctx, input)
	if err != nil {
		return nil, err
	}
	meta := new(Metadata)
	meta.Domain = finalURL.Host
	t.extractMetata(doc, meta)
	main := t.extractMainContent(doc)
	var links []string
	if input.IncludeLinks {
		links = extractLinks(main, finalURL)
	}
	for _, tag := range strippedTags {
		main.Find(tag).Remove()
	}
	mainContent, err := main.Html()
	if err != nil {
		return nil, err
	}
	markdown, err := htmltomarkdown.ConvertString(
		mainContent,
		converter.WithDomain(fmt.Sprintf("%s://%s", finalURL.Scheme, finalURL.Host)),
	)
	if err != nil {
		return nil, err
	}
	ret := NewOutput(CleanMarkdownContent(markdown), meta)
	ret.FinalURL = finalURL.String()
	ret.Links = links
	return ret, nil
}

func (t *Webscraper) fetch(ctx context.Context, input *Input) (*goquery.Document, *url.URL, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, input.URL, nil)
	if err != nil {
		return nil, nil, err
	}
	httpReq.Header.Set("User-Agent", t.userAgent)
	httpReq.Header.Set("Accept", DefaultAccept)
	httpReq.Header.Set("Connection", "keep-alive")
	httpResp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return nil, nil, err
	}
	defer httpResp.Body.Close()
	if httpResp.StatusCode >= http.StatusBadRequest {
		return nil, nil, fmt.Errorf("fetch %s: http status %d", input.URL, httpResp.StatusCode)
	}
	if httpResp.ContentLength > t.maxContentLength {
		return nil, nil, fmt.Errorf("content length exceeds maximum of %d bytes", t.maxContentLength)
	}
	doc, err := goquery.NewDocumentFromReader(io.LimitReader(httpResp.Body, t.maxContentLength))
	if err != nil {
		return nil, nil, err
	}
	return doc, httpResp.Request.URL, nil
}

// Extracts metadata from the webpage
func (t *Webscraper) extractMetata(doc *goquery.Document, meta *Metadata) {
	meta.Title = strings.TrimSpace(doc.Find("head title").First().Text())
	meta.Author, _ = doc.Find("meta[name='author']").Attr("content")
	meta.Description, _ = doc.Find("meta[name='description']").Attr("content")
	meta.Keywords, _ = doc.Find("meta[name='keywords']").Attr("content")
	meta.SiteName, _ = doc.Find("meta[property='og:site_name']").Attr("content")
}

// extractMainContent picks the first matching content candidate. Page chrome is stripped by the caller
// once links are collected.
func (t *Webscraper) extractMainContent(doc *goquery.Document) *goquery.Selection {
	for _, selector := range t.contentSelectors {
		if sel := doc.Find(selector); sel.Length() > 0 {
			return sel.First()
		}
	}
	return doc.Selection
}

func extractLinks(sel *goquery.Selection, base *url.URL) []string {
	var (
		ret  []string
		seen = make(map[string]struct{})
	)
	sel.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "mailto:") || strings.HasPrefix(href, "javascript:") {
			return
		}
		u, err := base.Parse(href)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return
		}
		link := u.String()
		if _, ok := seen[link]; ok {
			return
		}
		seen[link] = struct{}{}
		ret = append(ret, link)
	})
	return ret
}

// CleanMarkdownContent removes excessive whitespace and normalizes formatting
func CleanMarkdownContent(content string) string {
	content = multiBlankLine.ReplaceAllString(content, "\n\n")
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t\r")
	}
	content = strings.Join(lines, "\n")
	return strings.TrimSpace(content) + "\n"
}
