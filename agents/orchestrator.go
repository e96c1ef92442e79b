package agents

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/bububa/regulation-agents/components"
	"github.com/bububa/regulation-agents/components/regulation"
	"github.com/bububa/regulation-agents/schema"
	"github.com/bububa/regulation-agents/tools/connected"
)

// Cache stores aggregated answers by query fingerprint
type Cache interface {
	// Get returns nil without error on a miss
	Get(ctx context.Context, key string) (*schema.Answer, error)
	Set(ctx context.Context, key string, answer *schema.Answer) error
}

// Limiter throttles calls to a domain agent
type Limiter interface {
	Wait(ctx context.Context, domain regulation.Domain) error
}

// OrchestratorConfig tunes the fan-out to domain agents
type OrchestratorConfig struct {
	// MaxParallel maximum concurrent domain calls, 0 means one per domain
	MaxParallel int `mapstructure:"max_parallel" validate:"gte=0"`
	// AgentTimeout timeout of a single domain call attempt
	AgentTimeout time.Duration `mapstructure:"agent_timeout" validate:"gte=0"`
	// Retries extra attempts on a transient failure
	Retries int `mapstructure:"retries" validate:"gte=0,lte=10"`
	// RetryBackoff wait before retry n is n*RetryBackoff
	RetryBackoff time.Duration `mapstructure:"retry_backoff" validate:"gte=0"`
}

// Orchestrator routes a query, fans it out to the domain agents through their
// connected tools and aggregates the answers.
type Orchestrator struct {
	OrchestratorConfig
	registry   *Registry
	router     *Router
	aggregator *Aggregator
	cache      Cache
	limiter    Limiter
	sessions   *components.Sessions
	logger     *logrus.Entry
}

type OrchestratorOption func(*Orchestrator)

func WithRouter(r *Router) OrchestratorOption {
	return func(o *Orchestrator) {
		o.router = r
	}
}

func WithAggregator(a *Aggregator) OrchestratorOption {
	return func(o *Orchestrator) {
		o.aggregator = a
	}
}

func WithCache(c Cache) OrchestratorOption {
	return func(o *Orchestrator) {
		o.cache = c
	}
}

func WithLimiter(l Limiter) OrchestratorOption {
	return func(o *Orchestrator) {
		o.limiter = l
	}
}

func WithSessions(s *components.Sessions) OrchestratorOption {
	return func(o *Orchestrator) {
		o.sessions = s
	}
}

func WithOrchestratorConfig(cfg OrchestratorConfig) OrchestratorOption {
	return func(o *Orchestrator) {
		o.OrchestratorConfig = cfg
	}
}

func WithOrchestratorLogger(logger *logrus.Entry) OrchestratorOption {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

func NewOrchestrator(registry *Registry, opts ...OrchestratorOption) *Orchestrator {
	ret := &Orchestrator{
		registry: registry,
		OrchestratorConfig: OrchestratorConfig{
			AgentTimeout: 60 * time.Second,
			RetryBackoff: 500 * time.Millisecond,
		},
	}
	for _, opt := range opts {
		opt(ret)
	}
	if ret.logger == nil {
		ret.logger = logrus.WithField("component", "orchestrator")
	}
	if ret.router == nil {
		ret.router = NewRouter(registry, WithRouterLogger(ret.logger))
	}
	if ret.aggregator == nil {
		ret.aggregator = NewAggregator(registry.Catalog(), WithAggregatorLogger(ret.logger))
	}
	return ret
}

func (o *Orchestrator) Registry() *Registry {
	return o.registry
}

// Route validates the query and returns the routing decision only
func (o *Orchestrator) Route(ctx context.Context, query *schema.Query) (*schema.RoutingDecision, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}
	return o.router.Route(ctx, query)
}

// Run answers a query
func (o *Orchestrator) Run(ctx context.Context, query *schema.Query) (*schema.Answer, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}
	logger := o.logger.WithField("query_id", query.ID)
	var memory *components.Memory
	if query.Session != "" && o.sessions != nil {
		memory = o.sessions.Get(query.Session)
		if len(query.History) == 0 {
			query.History = memory.QATurns()
		}
	}
	// follow-up questions depend on their history, only standalone ones are cached
	cacheable := o.cache != nil && len(query.History) == 0
	var cacheKey string
	if cacheable {
		cacheKey = query.Fingerprint()
		if cached, err := o.cache.Get(ctx, cacheKey); err != nil {
			logger.WithError(err).Warn("answer cache lookup failed")
		} else if cached != nil {
			cached.QueryID = query.ID
			cached.Cached = true
			if cached.Decision != nil {
				cached.Decision.QueryID = query.ID
			}
			o.remember(memory, query, cached)
			logger.Debug("answer cache hit")
			return cached, nil
		}
	}
	decision, err := o.router.Route(ctx, query)
	if err != nil {
		return nil, err
	}
	logger.WithField("decision", decision.String()).Info("routed")
	answers, err := o.fanOut(ctx, query, decision)
	if err != nil {
		return nil, err
	}
	answer, err := o.aggregator.Aggregate(ctx, query, answers)
	if err != nil {
		return nil, err
	}
	answer.QueryID = query.ID
	answer.Decision = decision
	if cacheable && !answer.Partial {
		if err := o.cache.Set(ctx, cacheKey, answer); err != nil {
			logger.WithError(err).Warn("answer cache store failed")
		}
	}
	o.remember(memory, query, answer)
	return answer, nil
}

func (o *Orchestrator) remember(memory *components.Memory, query *schema.Query, answer *schema.Answer) {
	if memory == nil {
		return
	}
	memory.AddTurn(schema.String(query.Text), schema.String(answer.Content))
}

// fanOut asks every decided domain concurrently. Answers keep the decision order;
// a failed domain only sets its answer Error.
func (o *Orchestrator) fanOut(ctx context.Context, query *schema.Query, decision *schema.RoutingDecision) ([]schema.DomainAnswer, error) {
	answers := make([]schema.DomainAnswer, len(decision.Domains))
	causes := make([]error, len(decision.Domains))
	g := new(errgroup.Group)
	if o.MaxParallel > 0 {
		g.SetLimit(o.MaxParallel)
	}
	for idx, domain := range decision.Domains {
		tool, ok := o.registry.Tool(domain)
		if !ok {
			err := fmt.Errorf("%w: %s", schema.ErrUnknownDomain, domain)
			answers[idx] = schema.DomainAnswer{Domain: domain, Error: err.Error()}
			causes[idx] = err
			continue
		}
		g.Go(func() error {
			answers[idx], causes[idx] = o.ask(ctx, tool, query)
			return nil
		})
	}
	g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var failed []error
	for _, err := range causes {
		if err != nil {
			failed = append(failed, err)
		}
	}
	if len(failed) == len(answers) {
		return nil, fmt.Errorf("%w: %w", schema.ErrAllAgentsFailed, errors.Join(failed...))
	}
	return answers, nil
}

// ask calls one connected tool with rate limiting, per attempt timeout and linear backoff retries
func (o *Orchestrator) ask(ctx context.Context, tool *connected.Tool, query *schema.Query) (schema.DomainAnswer, error) {
	var (
		start  = time.Now()
		domain = tool.Domain()
		logger = o.logger.WithFields(logrus.Fields{"query_id": query.ID, "domain": domain})
		resp   *schema.DomainAnswer
		err    error
	)
	for attempt := 0; attempt <= o.Retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				err = ctx.Err()
			case <-time.After(time.Duration(attempt) * o.RetryBackoff):
			}
			if ctx.Err() != nil {
				break
			}
		}
		if o.limiter != nil {
			if err = o.limiter.Wait(ctx, domain); err != nil {
				break
			}
		}
		resp, err = o.call(ctx, tool, query)
		if err == nil {
			break
		}
		logger.WithError(err).WithField("attempt", attempt+1).Warn("domain agent failed")
		if !retryable(ctx, err) {
			break
		}
	}
	latency := time.Since(start)
	logger = logger.WithField("latency_ms", latency.Milliseconds())
	if err != nil {
		logger.WithError(err).Error("domain agent unavailable")
		return schema.DomainAnswer{
			Domain:  domain,
			Agent:   tool.Agent().Name(),
			Latency: latency,
			Error:   err.Error(),
		}, err
	}
	resp.Latency = latency
	logger.Info("domain agent answered")
	return *resp, nil
}

func (o *Orchestrator) call(ctx context.Context, tool *connected.Tool, query *schema.Query) (*schema.DomainAnswer, error) {
	if o.AgentTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.AgentTimeout)
		defer cancel()
	}
	resp, err := tool.Run(ctx, query)
	if err != nil {
		return nil, err
	}
	if resp.Content == "" {
		return nil, fmt.Errorf("%s: %w", tool.Title(), schema.ErrEmptyAnswer)
	}
	return resp, nil
}

// retryable reports whether a failed attempt may succeed when repeated.
// Peers answering 5xx or 429 are retried, other statuses and errors reported by the peer are final.
func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var upstream *schema.UpstreamError
	if errors.As(err, &upstream) {
		return upstream.Temporary()
	}
	for _, target := range []error{schema.ErrUpstream, schema.ErrNoContext, schema.ErrInvalidQuery, schema.ErrUnknownDomain, context.Canceled} {
		if errors.Is(err, target) {
			return false
		}
	}
	return true
}
