package cli

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/bububa/regulation-agents/components/regulation"
	"github.com/bububa/regulation-agents/internal/cache"
	"github.com/bububa/regulation-agents/internal/logger"
	"github.com/bububa/regulation-agents/internal/server"
)

func serveCmd(opts *options) *cobra.Command {
	var (
		addr    string
		sources []string
	)

	c := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := opts.cfg
			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if rc, ok := a.cache.(*cache.RedisCache); ok {
				if err := rc.Ping(ctx); err != nil {
					log.WithError(err).Warn("redis answer cache unreachable, lookups will fail until it recovers")
				}
				defer rc.Close()
			}
			a.limiter.StartJanitor(ctx)
			if err := ingestOnStart(ctx, a, sources); err != nil {
				return err
			}

			if cfg.Server.Mode != "" {
				gin.SetMode(cfg.Server.Mode)
			}
			handler := server.New(a.orchestrator,
				server.WithToken(cfg.Server.Token),
				server.WithLogger(logger.Component("server")),
			)
			if addr == "" {
				addr = cfg.Server.Addr()
			}
			srv := &http.Server{
				Addr:         addr,
				Handler:      handler.Router(),
				ReadTimeout:  cfg.Server.ReadTimeout,
				WriteTimeout: cfg.Server.WriteTimeout,
			}
			log.WithField("domains", a.registry.Domains()).Info("domain agents registered")
			return server.Serve(ctx, srv, cfg.Server.ShutdownTimeout)
		},
	}

	c.Flags().StringVar(&addr, "addr", "", "listen address, overrides server.host and server.port")
	c.Flags().StringArrayVar(&sources, "ingest", nil, "DOMAIN=source ingested before serving, source as accepted by ingest (repeatable)")
	return c
}

// ingestOnStart loads the --ingest sources, grouped by domain in flag order
func ingestOnStart(ctx context.Context, a *app, flags []string) error {
	var (
		order   []regulation.Domain
		grouped = make(map[regulation.Domain][]string)
	)
	for _, v := range flags {
		domain, source, err := parseIngestFlag(v)
		if err != nil {
			return err
		}
		if _, ok := grouped[domain]; !ok {
			order = append(order, domain)
		}
		grouped[domain] = append(grouped[domain], source)
	}
	for _, domain := range order {
		ret, err := a.ingest(ctx, domain, grouped[domain], defaultIngestExts)
		if err != nil {
			return fmt.Errorf("ingest %s: %w", domain, err)
		}
		log.WithFields(log.Fields{
			"domain":    ret.Domain,
			"documents": ret.Documents,
			"chunks":    ret.Chunks,
			"tokens":    ret.Tokens,
		}).Info("corpus ingested")
	}
	return nil
}
