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

func normalized(t *testing.T, text string, domains ...regulation.Domain) *schema.Query {
	t.Helper()
	q := schema.NewQuery(text, domains...)
	if err := q.Validate(); err != nil {
		t.Fatal(err)
	}
	return q
}

func TestRouteExplicit(t *testing.T) {
	router := NewRouter(newTestRegistry(newFakeAgent(regulation.EASA), newFakeAgent(regulation.FAA)))
	decision, err := router.Route(context.Background(), normalized(t, "fatigue", regulation.FAA, regulation.EASA))
	if err != nil {
		t.Fatal(err)
	}
	if decision.Strategy != schema.StrategyExplicit || len(decision.Domains) != 2 || decision.Domains[0] != regulation.FAA {
		t.Errorf("unexpected decision %s", decision)
	}
	_, err = router.Route(context.Background(), normalized(t, "fatigue", regulation.JSSG))
	if !errors.Is(err, schema.ErrUnknownDomain) {
		t.Errorf("expect unknown domain, got %v", err)
	}
}

func TestRouteKeyword(t *testing.T) {
	router := NewRouter(newTestRegistry(newFakeAgent(regulation.EASA), newFakeAgent(regulation.FAA)))
	decision, err := router.Route(context.Background(), normalized(t, "Compare CS-25.571 with 14 CFR 25.571 and JSSG-2006"))
	if err != nil {
		t.Fatal(err)
	}
	if decision.Strategy != schema.StrategyKeyword {
		t.Errorf("expect keyword strategy, got %s", decision.Strategy)
	}
	if len(decision.Domains) != 2 || decision.Domains[0] != regulation.EASA || decision.Domains[1] != regulation.FAA {
		t.Errorf("expect only registered domains in catalog order, got %v", decision.Domains)
	}
	if len(decision.Matches[regulation.FAA]) == 0 {
		t.Errorf("expect matched terms, got %v", decision.Matches)
	}
}

func TestRouteKeywordSeparatesFAAFromEASA(t *testing.T) {
	router := NewRouter(newTestRegistry(newFakeAgent(regulation.EASA), newFakeAgent(regulation.FAA)))
	tests := []struct {
		text string
		want regulation.Domain
	}{
		{text: "Does FAA Part 145 cover a 14 CFR Part 21 approval?", want: regulation.FAA},
		{text: "Which Part-145 privileges depend on a Part-21 subpart J approval?", want: regulation.EASA},
	}
	for _, tt := range tests {
		decision, err := router.Route(context.Background(), normalized(t, tt.text))
		if err != nil {
			t.Fatal(err)
		}
		if decision.Strategy != schema.StrategyKeyword || len(decision.Domains) != 1 || decision.Domains[0] != tt.want {
			t.Errorf("%q: expect keyword -> [%s], got %s", tt.text, tt.want, decision)
		}
	}
}

func TestRouteClassifier(t *testing.T) {
	clt := replyWith(`{"domains": ["faa", "TCCA", "FAA"], "reason": "US transport category"}`)
	classifier := NewAgent(WithClient(clt), WithSystemPromptGenerator(ClassifierPrompt()))
	router := NewRouter(newTestRegistry(newFakeAgent(regulation.EASA), newFakeAgent(regulation.FAA)), WithClassifier(classifier))
	decision, err := router.Route(context.Background(), normalized(t, "What is the bird strike requirement for windshields?"))
	if err != nil {
		t.Fatal(err)
	}
	if decision.Strategy != schema.StrategyClassifier || len(decision.Domains) != 1 || decision.Domains[0] != regulation.FAA {
		t.Errorf("expect unknown tags dropped, got %s", decision)
	}
	if decision.Reason != "US transport category" {
		t.Errorf("unexpected reason %s", decision.Reason)
	}
	if system := clt.requests[0].System; !strings.Contains(system, classifierToolsTitle) || !strings.Contains(system, "- EASA: ") {
		t.Errorf("classifier must see the tool list, got %s", system)
	}
}

func TestRouteFallback(t *testing.T) {
	failing := &fakeClient{fn: func(*chat.Request) (string, error) { return "", errFlaky }}
	registry := newTestRegistry(newFakeAgent(regulation.EASA), newFakeAgent(regulation.FAA))
	router := NewRouter(registry, WithClassifier(NewAgent(WithClient(failing))))
	decision, err := router.Route(context.Background(), normalized(t, "minimum cabin altitude"))
	if err != nil {
		t.Fatal(err)
	}
	if decision.Strategy != schema.StrategyFallback || len(decision.Domains) != 2 {
		t.Errorf("expect every registered domain, got %s", decision)
	}

	router = NewRouter(registry, WithClassifier(NewAgent(WithClient(replyWith(`{"domains": [], "reason": "cabin altitude is not tied to a regulator"}`)))), WithFallback(FallbackReject))
	if _, err := router.Route(context.Background(), normalized(t, "minimum cabin altitude")); !errors.Is(err, schema.ErrNoDomain) {
		t.Errorf("expect no domain, got %v", err)
	}
}
