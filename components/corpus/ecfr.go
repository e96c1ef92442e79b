package corpus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const DefaultECFRBaseURL = "https://www.ecfr.gov/api/versioner/v1"

var xmlDeclaration = regexp.MustCompile(`<\?xml[^>]*\?>`)

// VersionsQuery selects eCFR content versions
type VersionsQuery struct {
	Title      int    `json:"title" validate:"required,gt=0"`
	Chapter    string `json:"chapter,omitempty"`
	Subchapter string `json:"subchapter,omitempty"`
	Part       string `json:"part,omitempty"`
}

// ContentVersion is an entry of the eCFR versions api
type ContentVersion struct {
	Date          string `json:"date"`
	AmendmentDate string `json:"amendment_date,omitempty"`
	IssueDate     string `json:"issue_date,omitempty"`
	Identifier    string `json:"identifier"`
	Name          string `json:"name,omitempty"`
	Part          string `json:"part,omitempty"`
	Subpart       string `json:"subpart,omitempty"`
	Title         string `json:"title"`
	Type          string `json:"type,omitempty"`
	Substantive   bool   `json:"substantive,omitempty"`
	Removed       bool   `json:"removed,omitempty"`
}

// PartSection splits the identifier into part and section, "21.1" becomes ("21", "1")
func (v ContentVersion) PartSection() (string, string) {
	part, section, _ := strings.Cut(v.Identifier, ".")
	return part, section
}

type versionsResponse struct {
	ContentVersions []ContentVersion `json:"content_versions"`
}

// DownloadStats reports the outcome of an aggregated download
type DownloadStats struct {
	Total       int  `json:"total"`
	Added       int  `json:"added"`
	Failed      int  `json:"failed"`
	Interrupted bool `json:"interrupted"`
}

// ECFRClient reads the eCFR versioner api
type ECFRClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *logrus.Entry
}

type ECFROption func(*ECFRClient)

func WithECFRBaseURL(v string) ECFROption {
	return func(c *ECFRClient) {
		c.baseURL = strings.TrimRight(v, "/")
	}
}

func WithECFRHttpClient(clt *http.Client) ECFROption {
	return func(c *ECFRClient) {
		c.httpClient = clt
	}
}

func WithECFRLogger(logger *logrus.Entry) ECFROption {
	return func(c *ECFRClient) {
		c.logger = logger
	}
}

func NewECFRClient(opts ...ECFROption) *ECFRClient {
	ret := &ECFRClient{
		baseURL: DefaultECFRBaseURL,
	}
	for _, opt := range opts {
		opt(ret)
	}
	if ret.httpClient == nil {
		ret.httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	if ret.logger == nil {
		ret.logger = logrus.WithField("component", "ecfr")
	}
	return ret
}

// VersionsURL builds the versions endpoint of a title with the optional filters
func (c *ECFRClient) VersionsURL(q VersionsQuery) string {
	link := fmt.Sprintf("%s/versions/title-%d.json", c.baseURL, q.Title)
	values := url.Values{}
	if q.Chapter != "" {
		values.Set("chapter", q.Chapter)
	}
	if q.Subchapter != "" {
		values.Set("subchapter", q.Subchapter)
	}
	if q.Part != "" {
		values.Set("part", q.Part)
	}
	if len(values) > 0 {
		link += "?" + values.Encode()
	}
	return link
}

// FullTextURL builds the full xml endpoint of a part or section
func (c *ECFRClient) FullTextURL(date string, title string, part string, section string) string {
	values := url.Values{}
	values.Set("part", part)
	if section != "" {
		values.Set("section", part+"."+section)
	}
	return fmt.Sprintf("%s/full/%s/title-%s.xml?%s", c.baseURL, date, title, values.Encode())
}

// Versions lists the content versions matching q
func (c *ECFRClient) Versions(ctx context.Context, q VersionsQuery) ([]ContentVersion, error) {
	if q.Title <= 0 {
		return nil, errors.New("ecfr: title is required")
	}
	link := c.VersionsURL(q)
	c.logger.WithField("url", link).Debug("fetch versions")
	body, err := c.get(ctx, link, "application/json")
	if err != nil {
		return nil, err
	}
	var resp versionsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("ecfr: decode versions: %w", err)
	}
	return resp.ContentVersions, nil
}

// FullText fetches the xml of one part or section
func (c *ECFRClient) FullText(ctx context.Context, date string, title string, part string, section string) (string, error) {
	body, err := c.get(ctx, c.FullTextURL(date, title, part, section), "application/xml")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(body)), nil
}

// Download writes every matching section into w as a single <document>.
// max limits the number of sections when positive. Cancelling ctx stops after
// the section being fetched; the document is always closed.
func (c *ECFRClient) Download(ctx context.Context, q VersionsQuery, max int, w io.Writer) (stats *DownloadStats, err error) {
	entries, err := c.Versions(ctx, q)
	if err != nil {
		return nil, err
	}
	if max > 0 && len(entries) > max {
		entries = entries[:max]
	}
	stats = &DownloadStats{Total: len(entries)}
	if _, err = io.WriteString(w, "<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n<document>\n"); err != nil {
		return stats, err
	}
	defer func() {
		if _, closeErr := io.WriteString(w, "</document>\n"); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	// in flight requests finish even when ctx is cancelled
	fetchCtx := context.WithoutCancel(ctx)
	for idx, entry := range entries {
		if ctx.Err() != nil {
			stats.Interrupted = true
			c.logger.Warn("interrupted, stopping after current section")
			break
		}
		logger := c.logger.WithFields(logrus.Fields{
			"identifier": entry.Identifier,
			"progress":   strconv.Itoa(idx+1) + "/" + strconv.Itoa(stats.Total),
		})
		part, section := entry.PartSection()
		text, fetchErr := c.FullText(fetchCtx, entry.Date, entry.Title, part, section)
		if fetchErr != nil {
			stats.Failed++
			logger.WithError(fetchErr).Warn("section failed")
			continue
		}
		if err = writeSection(w, entry.Identifier, text); err != nil {
			return stats, err
		}
		stats.Added++
		logger.Info("section added")
	}
	return stats, nil
}

func writeSection(w io.Writer, identifier string, xmlText string) error {
	xmlText = strings.TrimSpace(xmlDeclaration.ReplaceAllString(xmlText, ""))
	_, err := fmt.Fprintf(w, "<section id=\"%s\">\n%s\n</section>\n", html.EscapeString(identifier), xmlText)
	return err
}

func (c *ECFRClient) get(ctx context.Context, link string, accept string) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", accept)
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()
	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, err
	}
	if httpResp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("ecfr: %s http status %d", link, httpResp.StatusCode)
	}
	return body, nil
}
