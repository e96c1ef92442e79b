package cli

import (
	"bufio"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/bububa/regulation-agents/components/corpus"
	"github.com/bububa/regulation-agents/internal/logger"
	"github.com/bububa/regulation-agents/tools/webscraper"
)

func crawlCmd(opts *options) *cobra.Command {
	var (
		out   string
		depth int
	)

	c := &cobra.Command{
		Use:   "crawl [url]",
		Short: "Extract the main content of a site into markdown files, following same-host links",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.cfg.Corpus
			scraperOpts := []webscraper.Option{
				webscraper.WithTimeout(int(cfg.HTTPTimeout.Seconds())),
			}
			if cfg.UserAgent != "" {
				scraperOpts = append(scraperOpts, webscraper.WithUserAgent(cfg.UserAgent))
			}
			if depth < 0 {
				depth = cfg.MaxDepth
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			crawler := corpus.NewCrawler(out,
				corpus.WithScraper(webscraper.New(scraperOpts...)),
				corpus.WithMaxDepth(depth),
				corpus.WithLogger(logger.Component("crawler")),
			)
			stats, err := crawler.Crawl(ctx, args[0])
			if stats != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "saved: %d, failed: %d, skipped: %d\n", stats.Saved, stats.Failed, stats.Skipped)
			}
			return err
		},
	}

	c.Flags().StringVarP(&out, "out", "o", "corpus", "output directory")
	c.Flags().IntVar(&depth, "depth", -1, "maximum link depth, defaults to corpus.max_depth")
	return c
}

func ecfrCmd(opts *options) *cobra.Command {
	c := &cobra.Command{
		Use:   "ecfr",
		Short: "Download eCFR titles and convert them to markdown",
	}
	c.AddCommand(ecfrFetchCmd(opts), ecfrMarkdownCmd())
	return c
}

func ecfrFetchCmd(opts *options) *cobra.Command {
	var (
		q     corpus.VersionsQuery
		limit int
		out   string
	)

	c := &cobra.Command{
		Use:   "fetch",
		Short: "Download every section of a title into one XML document; Ctrl-C stops after the current section",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := opts.cfg.Corpus
			client := corpus.NewECFRClient(
				corpus.WithECFRBaseURL(cfg.ECFRBaseURL),
				corpus.WithECFRHttpClient(&http.Client{Timeout: cfg.HTTPTimeout}),
				corpus.WithECFRLogger(logger.Component("ecfr")),
			)
			if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
				return err
			}
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			defer f.Close()
			w := bufio.NewWriter(f)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			stats, err := client.Download(ctx, q, limit, w)
			if flushErr := w.Flush(); err == nil {
				err = flushErr
			}
			if stats != nil {
				if stats.Interrupted {
					log.Warn("download interrupted, the document holds the sections fetched so far")
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d of %d sections added, %d failed\n", out, stats.Added, stats.Total, stats.Failed)
			}
			return err
		},
	}

	c.Flags().IntVar(&q.Title, "title", 14, "CFR title number")
	c.Flags().StringVar(&q.Chapter, "chapter", "", "chapter filter")
	c.Flags().StringVar(&q.Subchapter, "subchapter", "", "subchapter filter")
	c.Flags().StringVar(&q.Part, "part", "", "part filter")
	c.Flags().IntVar(&limit, "max", 0, "maximum number of sections, 0 downloads all")
	c.Flags().StringVarP(&out, "out", "o", corpus.ECFRXMLFile, "output XML file")
	return c
}

func ecfrMarkdownCmd() *cobra.Command {
	var in, out string

	c := &cobra.Command{
		Use:   "markdown",
		Short: "Convert an aggregated eCFR XML document into markdown",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := os.Open(in)
			if err != nil {
				return err
			}
			defer f.Close()
			md, err := corpus.ECFRToMarkdown(f)
			if err != nil {
				return fmt.Errorf("convert %s: %w", in, err)
			}
			if err := os.WriteFile(out, []byte(md), 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", in, out)
			return nil
		},
	}

	c.Flags().StringVarP(&in, "in", "i", corpus.ECFRXMLFile, "aggregated eCFR XML file")
	c.Flags().StringVarP(&out, "out", "o", corpus.ECFRMarkdownFile, "markdown output file")
	return c
}
