package agents

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/bububa/regulation-agents/components/chat"
	"github.com/bububa/regulation-agents/components/regulation"
	"github.com/bububa/regulation-agents/schema"
)

func domainAnswers() []schema.DomainAnswer {
	return []schema.DomainAnswer{
		{Domain: regulation.EASA, Content: "CS-25.631 requires a 4 lb bird.", Usage: &schema.Usage{InputTokens: 3}},
		{Domain: regulation.EDA, Error: "timeout"},
		{Domain: regulation.FAA, Content: "14 CFR 25.631 requires an 8 lb bird.", Sources: []schema.Source{{Title: "Part 25", URL: "https://www.ecfr.gov/current/title-14/part-25"}}, Usage: &schema.Usage{OutputTokens: 4}},
	}
}

func TestAggregateSingle(t *testing.T) {
	agg := NewAggregator(nil)
	answers := []schema.DomainAnswer{{Domain: regulation.FAA, Content: "verbatim"}, {Domain: regulation.EASA, Error: "down"}}
	got, err := agg.Aggregate(context.Background(), schema.NewQuery("q"), answers)
	if err != nil {
		t.Fatal(err)
	}
	if got.Content != "verbatim" || !got.Verified || !got.Partial {
		t.Errorf("unexpected answer %+v", got)
	}
}

func TestAggregateMerge(t *testing.T) {
	agg := NewAggregator(nil)
	got, err := agg.Aggregate(context.Background(), schema.NewQuery("bird strike"), domainAnswers())
	if err != nil {
		t.Fatal(err)
	}
	if !got.Verified || !got.Partial {
		t.Errorf("expect verified partial answer, got %+v", got)
	}
	if got.Usage.InputTokens != 3 || got.Usage.OutputTokens != 4 {
		t.Errorf("unexpected usage %+v", got.Usage)
	}
	easa := strings.Index(got.Content, "## European Union Aviation Safety Agency (EASA)")
	faa := strings.Index(got.Content, "## Federal Aviation Administration (FAA)")
	unavailable := strings.Index(got.Content, "## Unavailable")
	if easa < 0 || faa < easa || unavailable < faa {
		t.Fatalf("sections missing or out of order:\n%s", got.Content)
	}
	if !strings.Contains(got.Content, "- European Defence Agency (EDA): timeout") {
		t.Errorf("failed domain not listed:\n%s", got.Content)
	}
	if !strings.Contains(got.Content, "- Part 25 (https://www.ecfr.gov/current/title-14/part-25)") {
		t.Errorf("sources not listed:\n%s", got.Content)
	}
}

func TestAggregateSynthesis(t *testing.T) {
	clt := replyWith(`{"answer": "EASA [EASA] and FAA [FAA] differ on bird mass.", "cited": ["EASA", "FAA"]}`)
	agg := NewAggregator(nil, WithSynthesizer(NewAgent(WithClient(clt), WithSystemPromptGenerator(SynthesisPrompt()))))
	got, err := agg.Aggregate(context.Background(), schema.NewQuery("bird strike"), domainAnswers())
	if err != nil {
		t.Fatal(err)
	}
	if got.Content != "EASA [EASA] and FAA [FAA] differ on bird mass." || !got.Verified {
		t.Errorf("unexpected answer %+v", got)
	}
	if got.Usage.InputTokens != 13 {
		t.Errorf("expect synthesis usage merged, got %+v", got.Usage)
	}
	input := clt.requests[0].Messages[0].StringifiedContent()
	if !strings.Contains(input, "[EDA] unavailable: timeout") || !strings.Contains(input, "[FAA]\n14 CFR 25.631") {
		t.Errorf("synthesis input must carry every domain answer, got %s", input)
	}
}

func TestAggregateSynthesisFallback(t *testing.T) {
	failing := &fakeClient{fn: func(*chat.Request) (string, error) { return "", errFlaky }}
	agg := NewAggregator(nil, WithSynthesizer(NewAgent(WithClient(failing))))
	got, err := agg.Aggregate(context.Background(), schema.NewQuery("bird strike"), domainAnswers())
	if err != nil {
		t.Fatal(err)
	}
	if got.Verified {
		t.Error("failed synthesis must not be verified")
	}
	if !strings.HasPrefix(got.Content, "## European Union Aviation Safety Agency (EASA)") {
		t.Errorf("expect deterministic merge, got %s", got.Content)
	}
}

func TestAggregateSynthesisCitingFailedDomain(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{name: "unavailable domain", reply: `{"answer": "EDA [EDA] requires a 2 kg bird.", "cited": ["EDA"]}`},
		{name: "no citation", reply: `{"answer": "Bird mass differs.", "cited": []}`},
		{name: "plain text", reply: "Bird mass differs."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg := NewAggregator(nil, WithSynthesizer(NewAgent(WithClient(replyWith(tt.reply)))))
			got, err := agg.Aggregate(context.Background(), schema.NewQuery("bird strike"), domainAnswers())
			if err != nil {
				t.Fatal(err)
			}
			if got.Verified || !strings.HasPrefix(got.Content, "## European Union Aviation Safety Agency (EASA)") {
				t.Errorf("expect unverified deterministic merge, got %+v", got)
			}
		})
	}
}

func TestAggregateAllFailed(t *testing.T) {
	agg := NewAggregator(nil)
	_, err := agg.Aggregate(context.Background(), schema.NewQuery("q"), []schema.DomainAnswer{{Domain: regulation.FAA, Error: "down"}})
	if !errors.Is(err, schema.ErrAllAgentsFailed) {
		t.Errorf("expect all agents failed, got %v", err)
	}
}
