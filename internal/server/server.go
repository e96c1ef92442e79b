// Package server exposes the orchestrator over HTTP
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/bububa/regulation-agents/agents"
	"github.com/bububa/regulation-agents/components/regulation"
	"github.com/bububa/regulation-agents/schema"
)

type Handler struct {
	orchestrator *agents.Orchestrator
	token        string
	logger       *log.Entry
}

type Option func(*Handler)

// WithToken protects the agent answer endpoint with a bearer token
func WithToken(token string) Option {
	return func(h *Handler) {
		h.token = token
	}
}

func WithLogger(logger *log.Entry) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

func New(orchestrator *agents.Orchestrator, opts ...Option) *Handler {
	h := &Handler{orchestrator: orchestrator}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = log.WithField("component", "server")
	}
	return h
}

// Router returns the gin engine with middlewares, api routes and the health check
func (h *Handler) Router() *gin.Engine {
	router := gin.New()
	router.Use(RequestID(), Logging(h.logger), gin.Recovery())

	api := router.Group("/api/v1")
	h.RegisterRoutes(api)

	router.GET("/healthz", h.Health)
	return router
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/ask", h.Ask)
	r.POST("/route", h.Route)
	r.GET("/domains", h.Domains)
	r.POST("/agents/:domain/answer", BearerAuth(h.token), h.AgentAnswer)
}

// bindQuery decodes the request body. The request id becomes the query id when the body has none.
func bindQuery(c *gin.Context) (*schema.Query, bool) {
	query := new(schema.Query)
	if err := c.ShouldBindJSON(query); err != nil {
		mapDomainError(c, fmt.Errorf("%w: %w", schema.ErrInvalidQuery, err))
		return nil, false
	}
	if query.ID == "" {
		query.ID = c.GetString(ctxRequestID)
	}
	return query, true
}

func (h *Handler) Ask(c *gin.Context) {
	query, ok := bindQuery(c)
	if !ok {
		return
	}
	answer, err := h.orchestrator.Run(c.Request.Context(), query)
	if err != nil {
		mapDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, answer)
}

func (h *Handler) Route(c *gin.Context) {
	query, ok := bindQuery(c)
	if !ok {
		return
	}
	decision, err := h.orchestrator.Route(c.Request.Context(), query)
	if err != nil {
		mapDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, decision)
}

// DomainInfo describes a registered domain agent
type DomainInfo struct {
	Domain      regulation.Domain `json:"domain"`
	Title       string            `json:"title"`
	Description string            `json:"description,omitempty"`
	Agent       string            `json:"agent"`
}

func (h *Handler) Domains(c *gin.Context) {
	registry := h.orchestrator.Registry()
	list := registry.Tools()
	ret := make([]DomainInfo, 0, len(list))
	for _, t := range list {
		ret = append(ret, DomainInfo{
			Domain:      t.Domain(),
			Title:       registry.Catalog().Title(t.Domain()),
			Description: t.Description(),
			Agent:       t.Agent().Name(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"domains": ret})
}

// AgentAnswer runs a single domain agent, the endpoint remote agents call
func (h *Handler) AgentAnswer(c *gin.Context) {
	domain, err := regulation.ParseDomain(c.Param("domain"))
	if err != nil {
		mapDomainError(c, fmt.Errorf("%w: %w", schema.ErrInvalidQuery, err))
		return
	}
	tool, ok := h.orchestrator.Registry().Tool(domain)
	if !ok {
		mapDomainError(c, fmt.Errorf("%w: %s", schema.ErrUnknownDomain, domain))
		return
	}
	query, ok := bindQuery(c)
	if !ok {
		return
	}
	if err := query.Validate(); err != nil {
		mapDomainError(c, err)
		return
	}
	start := time.Now()
	answer, err := tool.Run(c.Request.Context(), query)
	if err != nil {
		mapDomainError(c, err)
		return
	}
	if answer.Latency == 0 {
		answer.Latency = time.Since(start)
	}
	c.JSON(http.StatusOK, answer)
}

func (h *Handler) Health(c *gin.Context) {
	domains := h.orchestrator.Registry().Domains()
	if len(domains) == 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": "no domain agent registered"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "domains": domains})
}

// Serve runs the http server until ctx is done, then shuts down gracefully
func Serve(ctx context.Context, srv *http.Server, shutdownTimeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		log.Infof("starting server on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced shutdown: %w", err)
	}
	log.Info("server stopped")
	return nil
}
