package corpus

import (
	"context"
	"net/url"
	"sync"

	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"

	"github.com/bububa/regulation-agents/tools/webscraper"
)

// CrawlStats counts crawl outcomes
type CrawlStats struct {
	Saved   int64 `json:"saved"`
	Failed  int64 `json:"failed"`
	Skipped int64 `json:"skipped"`
}

// Crawler recursively extracts the main content of a site into markdown files.
// Only links on the same host as the page they appear on are followed.
type Crawler struct {
	scraper  *webscraper.Webscraper
	out      string
	maxDepth int
	logger   *logrus.Entry

	visited map[string]struct{}
	mtx     sync.Mutex

	saved   atomic.Int64
	failed  atomic.Int64
	skipped atomic.Int64
}

type CrawlerOption func(*Crawler)

func WithScraper(scraper *webscraper.Webscraper) CrawlerOption {
	return func(c *Crawler) {
		c.scraper = scraper
	}
}

func WithMaxDepth(depth int) CrawlerOption {
	return func(c *Crawler) {
		c.maxDepth = depth
	}
}

func WithLogger(logger *logrus.Entry) CrawlerOption {
	return func(c *Crawler) {
		c.logger = logger
	}
}

func NewCrawler(out string, opts ...CrawlerOption) *Crawler {
	ret := &Crawler{
		out:      out,
		maxDepth: 1,
		visited:  make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(ret)
	}
	if ret.scraper == nil {
		ret.scraper = webscraper.New()
	}
	if ret.logger == nil {
		ret.logger = logrus.WithField("component", "crawler")
	}
	return ret
}

// Crawl fetches start and follows links up to the max depth.
// Fetch failures are logged and skipped; only context cancellation stops the crawl.
func (c *Crawler) Crawl(ctx context.Context, start string) (*CrawlStats, error) {
	if _, err := url.ParseRequestURI(start); err != nil {
		return nil, err
	}
	if err := c.crawl(ctx, start, 0, ""); err != nil {
		return c.Stats(), err
	}
	return c.Stats(), nil
}

func (c *Crawler) Stats() *CrawlStats {
	return &CrawlStats{
		Saved:   c.saved.Load(),
		Failed:  c.failed.Load(),
		Skipped: c.skipped.Load(),
	}
}

func (c *Crawler) crawl(ctx context.Context, link string, depth int, parent string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	normalized, err := NormalizeURL(link)
	if err != nil {
		c.failed.Inc()
		c.logger.WithError(err).WithField("url", link).Warn("invalid url")
		return nil
	}
	if c.isVisited(normalized) {
		c.skipped.Inc()
		return nil
	}
	logger := c.logger.WithFields(logrus.Fields{"url": normalized, "depth": depth})
	logger.Info("processing")
	page, err := c.scraper.Run(ctx, webscraper.NewInput(normalized, true))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		c.failed.Inc()
		logger.WithError(err).Warn("download failed")
		return nil
	}
	final, err := NormalizeURL(page.FinalURL)
	if err != nil || final == "" {
		final = normalized
	}
	if !c.markVisited(final) {
		c.skipped.Inc()
		logger.WithField("final_url", final).Debug("already visited")
		return nil
	}
	links := sameHostLinks(final, page.Links)
	path, hash := PagePath(c.out, parent, final)
	if err := SavePage(path, final, page.Content); err != nil {
		c.failed.Inc()
		logger.WithError(err).Error("save failed")
		return nil
	}
	c.saved.Inc()
	logger.WithField("path", path).Info("saved")
	if depth >= c.maxDepth {
		return nil
	}
	for _, l := range links {
		if err := c.crawl(ctx, l, depth+1, hash); err != nil {
			return err
		}
	}
	return nil
}

func (c *Crawler) isVisited(link string) bool {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	_, ok := c.visited[link]
	return ok
}

// markVisited returns false when link was already visited
func (c *Crawler) markVisited(link string) bool {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if _, ok := c.visited[link]; ok {
		return false
	}
	c.visited[link] = struct{}{}
	return true
}

func sameHostLinks(page string, links []string) []string {
	base, err := url.Parse(page)
	if err != nil {
		return nil
	}
	ret := make([]string, 0, len(links))
	seen := make(map[string]struct{}, len(links))
	for _, l := range links {
		normalized, err := NormalizeURL(l)
		if err != nil || normalized == page {
			continue
		}
		u, err := url.Parse(normalized)
		if err != nil || u.Host != base.Host {
			continue
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		ret = append(ret, normalized)
	}
	return ret
}
