package cli

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/bububa/regulation-agents/components/document"
	"github.com/bububa/regulation-agents/components/regulation"
	"github.com/bububa/regulation-agents/components/vectordb"
)

var defaultIngestExts = []string{".md", ".txt", ".html", ".htm", ".pdf"}

func ingestCmd(opts *options) *cobra.Command {
	var (
		domainTag string
		exts      []string
	)

	c := &cobra.Command{
		Use:   "ingest [file|dir|http(s)://url|s3://bucket/prefix]...",
		Short: "Load documents, chunk and embed them into a domain collection",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			domain, err := regulation.ParseDomain(domainTag)
			if err != nil {
				return err
			}
			a, err := newApp(opts.cfg)
			if err != nil {
				return err
			}
			if opts.cfg.VectorDB.EngineType != vectordb.Chromem || opts.cfg.VectorDB.Path == "" {
				log.Warn("vectordb is not persistent, ingested chunks are lost on exit")
			}
			ret, err := a.ingest(cmd.Context(), domain, args, exts)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ret.String())
			return nil
		},
	}

	c.Flags().StringVarP(&domainTag, "domain", "d", "", "target domain (required)")
	c.Flags().StringSliceVar(&exts, "ext", defaultIngestExts, "file extensions read from directories")
	_ = c.MarkFlagRequired("domain")
	return c
}

// ingestResult summarizes one ingest run
type ingestResult struct {
	Domain    regulation.Domain
	Documents int
	Chunks    int
	Tokens    int64
}

func (r ingestResult) String() string {
	return fmt.Sprintf("%s: %d documents, %d chunks, %d tokens", r.Domain, r.Documents, r.Chunks, r.Tokens)
}

// ingest loads every source, then chunks and embeds the documents into the domain collection
func (a *app) ingest(ctx context.Context, domain regulation.Domain, sources []string, exts []string) (*ingestResult, error) {
	agent, ok := a.rags[domain]
	if !ok {
		return nil, fmt.Errorf("domain %s has no rag agent", domain)
	}
	s3Client := func() document.S3API {
		return document.NewS3Client(a.cfg.Corpus.S3)
	}
	httpClient := &http.Client{Timeout: a.cfg.Corpus.HTTPTimeout}
	readers, err := resolveSources(ctx, sources, exts, httpClient, s3Client)
	if err != nil {
		return nil, err
	}
	loader := document.NewLoader()
	docs := make([]*document.Document, 0, len(readers))
	for _, r := range readers {
		doc, err := loader.Load(ctx, r)
		if err != nil {
			log.WithError(err).WithField("source", document.NewDocument("", r.Meta()).Source()).Warn("skip document")
			continue
		}
		docs = append(docs, doc)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("no document loaded from %s", strings.Join(sources, ", "))
	}
	chunks, usage, err := agent.AddDocuments(ctx, docs...)
	if err != nil {
		return nil, err
	}
	ret := &ingestResult{Domain: domain, Documents: len(docs), Chunks: chunks}
	if usage != nil {
		ret.Tokens = usage.Total()
	}
	return ret, nil
}

// parseIngestFlag splits a DOMAIN=source serve flag
func parseIngestFlag(v string) (regulation.Domain, string, error) {
	tag, source, ok := strings.Cut(v, "=")
	if !ok || strings.TrimSpace(source) == "" {
		return "", "", fmt.Errorf("invalid ingest flag %q, want DOMAIN=source", v)
	}
	domain, err := regulation.ParseDomain(tag)
	if err != nil {
		return "", "", err
	}
	return domain, strings.TrimSpace(source), nil
}

// resolveSources turns arguments into document readers: s3 prefixes are listed,
// directories walked, urls fetched and anything else read as a file.
func resolveSources(ctx context.Context, args []string, exts []string, httpClient *http.Client, s3Client func() document.S3API) ([]document.Reader, error) {
	var (
		ret []document.Reader
		clt document.S3API
	)
	for _, arg := range args {
		switch {
		case strings.HasPrefix(arg, "s3://"):
			bucket, prefix, err := parseS3URI(arg)
			if err != nil {
				return nil, err
			}
			if clt == nil {
				clt = s3Client()
			}
			list, err := document.ListS3(ctx, clt, bucket, prefix)
			if err != nil {
				return nil, err
			}
			for _, v := range list {
				ret = append(ret, v)
			}
		case strings.HasPrefix(arg, "http://"), strings.HasPrefix(arg, "https://"):
			doc, err := document.NewHttp(document.WithHttpURL(arg), document.WithHttpClient(httpClient))
			if err != nil {
				return nil, err
			}
			ret = append(ret, doc)
		default:
			info, err := os.Stat(arg)
			if err != nil {
				return nil, err
			}
			if !info.IsDir() {
				f, err := document.NewFile(arg)
				if err != nil {
					return nil, err
				}
				ret = append(ret, f)
				continue
			}
			files, err := document.WalkDir(arg, exts...)
			if err != nil {
				return nil, err
			}
			for _, f := range files {
				ret = append(ret, f)
			}
		}
	}
	return ret, nil
}

func parseS3URI(v string) (string, string, error) {
	u, err := url.Parse(v)
	if err != nil {
		return "", "", err
	}
	if u.Scheme != "s3" || u.Host == "" {
		return "", "", fmt.Errorf("invalid s3 uri: %s", v)
	}
	return u.Host, strings.TrimPrefix(u.Path, "/"), nil
}
