package schema

import (
	"fmt"
	"strings"
	"time"

	"github.com/bububa/regulation-agents/components/regulation"
)

// RoutingStrategy tells how a routing decision was reached
type RoutingStrategy string

const (
	StrategyExplicit   RoutingStrategy = "explicit"
	StrategyKeyword    RoutingStrategy = "keyword"
	StrategyClassifier RoutingStrategy = "classifier"
	StrategyFallback   RoutingStrategy = "fallback"
)

// RoutingDecision is the router output: which domains receive the query
type RoutingDecision struct {
	QueryID  string                         `json:"query_id,omitempty"`
	Domains  []regulation.Domain            `json:"domains"`
	Strategy RoutingStrategy                `json:"strategy"`
	Matches  map[regulation.Domain][]string `json:"matches,omitempty"`
	Reason   string                         `json:"reason,omitempty"`
}

// Has reports whether domain is part of the decision
func (d RoutingDecision) Has(domain regulation.Domain) bool {
	for _, v := range d.Domains {
		if v == domain {
			return true
		}
	}
	return false
}

func (d RoutingDecision) String() string {
	domains := make([]string, 0, len(d.Domains))
	for _, v := range d.Domains {
		domains = append(domains, string(v))
	}
	ret := fmt.Sprintf("%s -> [%s]", d.Strategy, strings.Join(domains, ", "))
	if d.Reason != "" {
		ret += ": " + d.Reason
	}
	return ret
}

// Source is a citation backing a domain answer
type Source struct {
	Title string  `json:"title,omitempty"`
	URL   string  `json:"url,omitempty"`
	Score float64 `json:"score,omitempty"`
}

// Usage token usage
type Usage struct {
	InputTokens  int64 `json:"input_tokens,omitempty"`
	OutputTokens int64 `json:"output_tokens,omitempty"`
}

func (u *Usage) Merge(v *Usage) {
	if v == nil {
		return
	}
	u.InputTokens += v.InputTokens
	u.OutputTokens += v.OutputTokens
}

func (u Usage) Total() int64 {
	return u.InputTokens + u.OutputTokens
}

// DomainAnswer is the answer of one domain agent
type DomainAnswer struct {
	Domain  regulation.Domain `json:"domain"`
	Agent   string            `json:"agent,omitempty"`
	Content string            `json:"content,omitempty"`
	Sources []Source          `json:"sources,omitempty"`
	Usage   *Usage            `json:"usage,omitempty"`
	Latency time.Duration     `json:"latency,omitempty"`
	// Error is set when the agent failed, Content is empty then
	Error string `json:"error,omitempty"`
}

// Failed reports whether the agent failed to answer
func (a DomainAnswer) Failed() bool {
	return a.Error != ""
}

func (a DomainAnswer) String() string {
	if a.Failed() {
		return fmt.Sprintf("[%s] unavailable: %s", a.Domain, a.Error)
	}
	sb := new(strings.Builder)
	fmt.Fprintf(sb, "[%s]\n%s", a.Domain, a.Content)
	if len(a.Sources) > 0 {
		sb.WriteString("\nSources:")
		for _, src := range a.Sources {
			title := src.Title
			if title == "" {
				title = src.URL
			}
			fmt.Fprintf(sb, "\n- %s", title)
			if src.URL != "" && src.URL != title {
				fmt.Fprintf(sb, " (%s)", src.URL)
			}
		}
	}
	return sb.String()
}

// Answer is the orchestrator response to a query
type Answer struct {
	QueryID  string           `json:"query_id"`
	Decision *RoutingDecision `json:"decision,omitempty"`
	// Answers one entry per decided domain, in decision order
	Answers []DomainAnswer `json:"answers"`
	Content string         `json:"content"`
	// Verified every merged statement came from a domain answer
	Verified bool   `json:"verified"`
	Partial  bool   `json:"partial,omitempty"`
	Usage    *Usage `json:"usage,omitempty"`
	Cached   bool   `json:"cached,omitempty"`
}

func (a Answer) String() string {
	return a.Content
}

// Failed returns the domains whose agent failed
func (a Answer) Failed() []regulation.Domain {
	var ret []regulation.Domain
	for _, v := range a.Answers {
		if v.Failed() {
			ret = append(ret, v.Domain)
		}
	}
	return ret
}

// Succeeded returns the answers without error, in decision order
func (a Answer) Succeeded() []DomainAnswer {
	ret := make([]DomainAnswer, 0, len(a.Answers))
	for _, v := range a.Answers {
		if !v.Failed() {
			ret = append(ret, v)
		}
	}
	return ret
}
