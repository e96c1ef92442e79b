// Package connected exposes a domain agent as a tool other agents delegate to
package connected

import (
	"context"
	"fmt"

	"github.com/bububa/regulation-agents/components/regulation"
	"github.com/bububa/regulation-agents/schema"
	"github.com/bububa/regulation-agents/tools"
)

// Agent answers questions within one regulatory domain
type Agent interface {
	Name() string
	Domain() regulation.Domain
	Answer(ctx context.Context, query *schema.Query) (*schema.DomainAnswer, error)
}

// Tool is a connected agent tool
type Tool struct {
	tools.Config
	agent Agent
}

var _ tools.Tool[schema.Query, schema.DomainAnswer] = (*Tool)(nil)

// New wraps agent as a tool. Title defaults to the agent domain.
func New(agent Agent, opts ...tools.Option) *Tool {
	ret := &Tool{agent: agent}
	for _, opt := range opts {
		opt(&ret.Config)
	}
	if ret.Title() == "" {
		ret.SetTitle(string(agent.Domain()))
	}
	if ret.Description() == "" {
		ret.SetDescription(fmt.Sprintf("Answers questions about %s regulations", agent.Domain()))
	}
	return ret
}

func (t *Tool) Domain() regulation.Domain {
	return t.agent.Domain()
}

func (t *Tool) Agent() Agent {
	return t.agent
}

// Run delegates the query to the connected agent. The answer always carries the tool domain and agent name.
func (t *Tool) Run(ctx context.Context, query *schema.Query) (*schema.DomainAnswer, error) {
	t.Start(ctx, t, query)
	ret, err := t.agent.Answer(ctx, query)
	if err != nil {
		t.Fail(ctx, t, query, err)
		return nil, fmt.Errorf("%s: %w", t.Title(), err)
	}
	if ret == nil {
		err = fmt.Errorf("%s: %w", t.Title(), schema.ErrEmptyAnswer)
		t.Fail(ctx, t, query, err)
		return nil, err
	}
	ret.Domain = t.agent.Domain()
	if ret.Agent == "" {
		ret.Agent = t.agent.Name()
	}
	t.End(ctx, t, query, ret)
	return ret, nil
}

// Describe renders a tool list for prompts: one "- TITLE: description" line per tool
func Describe(list []*Tool) string {
	var ret string
	for _, t := range list {
		ret += fmt.Sprintf("- %s: %s\n", t.Title(), t.Description())
	}
	return ret
}
