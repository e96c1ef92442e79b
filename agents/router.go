package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/bububa/regulation-agents/components"
	"github.com/bububa/regulation-agents/components/regulation"
	"github.com/bububa/regulation-agents/components/systemprompt"
	"github.com/bububa/regulation-agents/components/systemprompt/cot"
	"github.com/bububa/regulation-agents/schema"
	"github.com/bububa/regulation-agents/tools/connected"
)

// FallbackPolicy decides what happens to a query no domain matched
type FallbackPolicy string

const (
	// FallbackAll sends the query to every registered domain
	FallbackAll FallbackPolicy = "all"
	// FallbackReject fails the query with schema.ErrNoDomain
	FallbackReject FallbackPolicy = "reject"
)

const classifierToolsTitle = "Available domain agents"

// Router decides which domain agents receive a query
type Router struct {
	registry   *Registry
	classifier *Agent
	fallback   FallbackPolicy
	logger     *logrus.Entry
}

type RouterOption func(*Router)

// WithClassifier sets the LLM agent asked when no keyword matched
func WithClassifier(agent *Agent) RouterOption {
	return func(r *Router) {
		r.classifier = agent
	}
}

func WithFallback(policy FallbackPolicy) RouterOption {
	return func(r *Router) {
		r.fallback = policy
	}
}

func WithRouterLogger(logger *logrus.Entry) RouterOption {
	return func(r *Router) {
		r.logger = logger
	}
}

func NewRouter(registry *Registry, opts ...RouterOption) *Router {
	ret := &Router{
		registry: registry,
		fallback: FallbackAll,
	}
	for _, opt := range opts {
		opt(ret)
	}
	if ret.logger == nil {
		ret.logger = logrus.WithField("component", "router")
	}
	if ret.classifier != nil {
		ret.classifier.RegisterSystemPromptContextProvider(systemprompt.NewFuncProvider(classifierToolsTitle, func() string {
			return connected.Describe(registry.Tools())
		}))
	}
	return ret
}

// ClassifierPrompt returns the default system prompt of a routing classifier
func ClassifierPrompt() *cot.Generator {
	return cot.New(
		cot.WithBackground([]string{
			"- You route aviation regulation questions to the regulatory domain agents able to answer them.",
		}),
		cot.WithSteps([]string{
			"- Read the question and decide which regulatory bodies or standards it concerns.",
			"- Pick only agents listed in the available domain agents section.",
		}),
		cot.WithOutputInstructs([]string{
			"- Answer with the domain tags and a one sentence reason.",
			"- Use an empty domains list when no agent is relevant.",
		}),
	)
}

type classification struct {
	Domains []string `json:"domains" jsonschema:"title=Domains,description=Tags of the domain agents able to answer"`
	Reason  string   `json:"reason" jsonschema:"title=Reason,description=Why these domains were picked" validate:"required"`
}

// Route returns the routing decision of a normalized query
func (r *Router) Route(ctx context.Context, query *schema.Query) (*schema.RoutingDecision, error) {
	decision := &schema.RoutingDecision{QueryID: query.ID}
	registered := r.registry.Domains()
	if len(query.Domains) > 0 {
		for _, d := range query.Domains {
			if !r.registry.Has(d) {
				return nil, fmt.Errorf("%w: %s", schema.ErrUnknownDomain, d)
			}
		}
		decision.Strategy = schema.StrategyExplicit
		decision.Domains = append(decision.Domains, query.Domains...)
		return decision, nil
	}
	if len(registered) == 0 {
		return nil, fmt.Errorf("%w: no domain agent registered", schema.ErrNoDomain)
	}
	if matches := r.registry.Catalog().Detect(query.Text, registered...); len(matches) > 0 {
		decision.Strategy = schema.StrategyKeyword
		decision.Matches = make(map[regulation.Domain][]string, len(matches))
		for _, m := range matches {
			decision.Domains = append(decision.Domains, m.Domain)
			decision.Matches[m.Domain] = m.Terms
		}
		return decision, nil
	}
	if r.classifier != nil {
		domains, reason, err := r.classify(ctx, query)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			r.logger.WithError(err).WithField("query_id", query.ID).Warn("classifier failed")
		} else if len(domains) > 0 {
			decision.Strategy = schema.StrategyClassifier
			decision.Domains = domains
			decision.Reason = reason
			return decision, nil
		}
	}
	if r.fallback == FallbackReject {
		return nil, schema.ErrNoDomain
	}
	decision.Strategy = schema.StrategyFallback
	decision.Domains = registered
	decision.Reason = "no domain referenced, asking every agent"
	return decision, nil
}

// classify asks the classifier agent, dropping tags without a registered agent
func (r *Router) classify(ctx context.Context, query *schema.Query) ([]regulation.Domain, string, error) {
	var (
		out     classification
		llmResp = new(components.LLMResponse)
	)
	if err := r.classifier.RunStructured(ctx, schema.NewString(query.Text), &out, llmResp, HistoryMessages(query.History)...); err != nil {
		return nil, "", err
	}
	var (
		ret  []regulation.Domain
		seen = make(map[regulation.Domain]struct{}, len(out.Domains))
	)
	for _, tag := range out.Domains {
		d, err := regulation.ParseDomain(tag)
		if err != nil || !r.registry.Has(d) {
			r.logger.WithField("domain", tag).Debug("classifier returned an unknown domain")
			continue
		}
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		ret = append(ret, d)
	}
	return ret, strings.TrimSpace(out.Reason), nil
}
