package agents

import (
	"context"
	"fmt"
	"time"

	"github.com/bububa/regulation-agents/components"
	"github.com/bububa/regulation-agents/components/regulation"
	"github.com/bububa/regulation-agents/components/systemprompt/cot"
	"github.com/bububa/regulation-agents/schema"
)

// DomainAgent answers questions within one regulatory domain
type DomainAgent interface {
	Name() string
	Domain() regulation.Domain
	Answer(ctx context.Context, query *schema.Query) (*schema.DomainAnswer, error)
}

// DomainPrompt returns the system prompt generator of a domain expert
func DomainPrompt(entry regulation.Entry, options ...cot.Option) *cot.Generator {
	background := []string{
		fmt.Sprintf("- You are an airworthiness and certification expert on %s (%s) regulations.", entry.Title, entry.Domain),
	}
	if entry.Description != "" {
		background = append(background, "- Scope: "+entry.Description)
	}
	opts := []cot.Option{
		cot.WithBackground(background),
		cot.WithSteps([]string{
			"- Identify the regulation, part and paragraph the question refers to.",
			fmt.Sprintf("- Answer only from %s material and say so when it does not cover the question.", entry.Domain),
		}),
		cot.WithOutputInstructs([]string{
			"- Cite the paragraph for every requirement you state.",
			"- Answer in the language of the question.",
		}),
	}
	return cot.New(append(opts, options...)...)
}

// ChatDomainAgent answers from the model knowledge of a single domain, without retrieval
type ChatDomainAgent struct {
	agent  *Agent
	domain regulation.Domain
}

var _ DomainAgent = (*ChatDomainAgent)(nil)

func NewChatDomainAgent(domain regulation.Domain, agent *Agent) *ChatDomainAgent {
	return &ChatDomainAgent{
		agent:  agent,
		domain: domain,
	}
}

func (a *ChatDomainAgent) Name() string {
	if name := a.agent.Name(); name != "" {
		return name
	}
	return fmt.Sprintf("%s chat agent", a.domain)
}

func (a *ChatDomainAgent) Domain() regulation.Domain {
	return a.domain
}

func (a *ChatDomainAgent) Answer(ctx context.Context, query *schema.Query) (*schema.DomainAnswer, error) {
	start := time.Now()
	var (
		out     schema.String
		llmResp = new(components.LLMResponse)
	)
	if err := a.agent.Run(ctx, schema.NewString(query.Text), &out, llmResp, HistoryMessages(query.History)...); err != nil {
		return nil, err
	}
	return &schema.DomainAnswer{
		Domain:  a.domain,
		Agent:   a.Name(),
		Content: out.String(),
		Usage:   llmResp.Usage,
		Latency: time.Since(start),
	}, nil
}
