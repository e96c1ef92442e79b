package agents

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bububa/regulation-agents/components"
	"github.com/bububa/regulation-agents/components/regulation"
	"github.com/bububa/regulation-agents/schema"
)

type mapCache struct {
	items map[string][]byte
	mtx   sync.Mutex
}

func newMapCache() *mapCache {
	return &mapCache{items: make(map[string][]byte)}
}

func (c *mapCache) Get(_ context.Context, key string) (*schema.Answer, error) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	bs, ok := c.items[key]
	if !ok {
		return nil, nil
	}
	ret := new(schema.Answer)
	return ret, json.Unmarshal(bs, ret)
}

func (c *mapCache) Set(_ context.Context, key string, answer *schema.Answer) error {
	bs, err := json.Marshal(answer)
	if err != nil {
		return err
	}
	c.mtx.Lock()
	c.items[key] = bs
	c.mtx.Unlock()
	return nil
}

type countingLimiter struct {
	calls map[regulation.Domain]int
	mtx   sync.Mutex
}

func (l *countingLimiter) Wait(_ context.Context, domain regulation.Domain) error {
	l.mtx.Lock()
	l.calls[domain]++
	l.mtx.Unlock()
	return nil
}

func TestOrchestratorFanOutKeepsDecisionOrder(t *testing.T) {
	easa := newFakeAgent(regulation.EASA)
	easa.delay = 30 * time.Millisecond
	faa := newFakeAgent(regulation.FAA)
	limiter := &countingLimiter{calls: make(map[regulation.Domain]int)}
	o := NewOrchestrator(newTestRegistry(easa, faa), WithLimiter(limiter))
	got, err := o.Run(context.Background(), schema.NewQuery("EASA and FAA bird strike"))
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Answers) != 2 || got.Answers[0].Domain != regulation.EASA || got.Answers[1].Domain != regulation.FAA {
		t.Fatalf("answers must follow the decision order, got %+v", got.Answers)
	}
	if got.Answers[0].Agent != "fake EASA" || got.Answers[0].Latency < easa.delay {
		t.Errorf("unexpected answer metadata %+v", got.Answers[0])
	}
	if got.Decision == nil || got.Decision.Strategy != schema.StrategyKeyword || got.Decision.QueryID != got.QueryID {
		t.Errorf("unexpected decision %+v", got.Decision)
	}
	if got.Partial || !got.Verified || got.Usage.Total() != 6 {
		t.Errorf("unexpected answer %+v", got)
	}
	if limiter.calls[regulation.EASA] != 1 || limiter.calls[regulation.FAA] != 1 {
		t.Errorf("expect one limiter wait per domain, got %v", limiter.calls)
	}
}

func TestOrchestratorPartialFailure(t *testing.T) {
	easa := newFakeAgent(regulation.EASA)
	faa := newFakeAgent(regulation.FAA)
	faa.failures = -1
	cache := newMapCache()
	o := NewOrchestrator(newTestRegistry(easa, faa), WithCache(cache))
	got, err := o.Run(context.Background(), schema.NewQuery("EASA and FAA bird strike"))
	if err != nil {
		t.Fatal(err)
	}
	if !got.Partial || got.Answers[1].Error == "" || got.Answers[1].Content != "" {
		t.Errorf("expect FAA failure recorded, got %+v", got.Answers)
	}
	if got.Content != "EASA answer to EASA and FAA bird strike" {
		t.Errorf("expect the single success passed through, got %s", got.Content)
	}
	if len(cache.items) != 0 {
		t.Error("partial answers must not be cached")
	}
}

func TestOrchestratorAllFailed(t *testing.T) {
	easa := newFakeAgent(regulation.EASA)
	easa.failures = -1
	faa := newFakeAgent(regulation.FAA)
	faa.failures = -1
	faa.err = schema.ErrNoContext
	o := NewOrchestrator(newTestRegistry(easa, faa))
	_, err := o.Run(context.Background(), schema.NewQuery("EASA and FAA bird strike"))
	if !errors.Is(err, schema.ErrAllAgentsFailed) {
		t.Fatalf("expect all agents failed, got %v", err)
	}
	if !errors.Is(err, errFlaky) || !errors.Is(err, schema.ErrNoContext) {
		t.Errorf("expect every cause wrapped, got %v", err)
	}
}

func TestOrchestratorRetries(t *testing.T) {
	faa := newFakeAgent(regulation.FAA)
	faa.failures = 2
	o := NewOrchestrator(newTestRegistry(faa), WithOrchestratorConfig(OrchestratorConfig{
		Retries:      2,
		RetryBackoff: time.Millisecond,
	}))
	got, err := o.Run(context.Background(), schema.NewQuery("14 CFR 25.571"))
	if err != nil {
		t.Fatal(err)
	}
	if faa.calls.Load() != 3 || got.Content == "" {
		t.Errorf("expect success on the third attempt, got %d calls", faa.calls.Load())
	}

	noContext := newFakeAgent(regulation.FAA)
	noContext.failures = -1
	noContext.err = schema.ErrNoContext
	o = NewOrchestrator(newTestRegistry(noContext), WithOrchestratorConfig(OrchestratorConfig{Retries: 3}))
	if _, err := o.Run(context.Background(), schema.NewQuery("14 CFR 25.571")); err == nil {
		t.Fatal("expect failure")
	}
	if noContext.calls.Load() != 1 {
		t.Errorf("missing context must not be retried, got %d calls", noContext.calls.Load())
	}
}

func TestOrchestratorAgentTimeout(t *testing.T) {
	slow := newFakeAgent(regulation.EASA)
	slow.delay = time.Second
	fast := newFakeAgent(regulation.FAA)
	o := NewOrchestrator(newTestRegistry(slow, fast), WithOrchestratorConfig(OrchestratorConfig{
		AgentTimeout: 20 * time.Millisecond,
		MaxParallel:  1,
	}))
	got, err := o.Run(context.Background(), schema.NewQuery("EASA and FAA"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got.Answers[0].Error, context.DeadlineExceeded.Error()) {
		t.Errorf("expect timeout recorded, got %+v", got.Answers[0])
	}
	if got.Answers[1].Failed() {
		t.Errorf("timeout must not cancel other domains, got %+v", got.Answers[1])
	}
}

func TestOrchestratorCancelled(t *testing.T) {
	slow := newFakeAgent(regulation.EASA)
	slow.delay = time.Second
	o := NewOrchestrator(newTestRegistry(slow))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := o.Run(ctx, schema.NewQuery("EASA"))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expect context error, got %v", err)
	}
}

func TestOrchestratorCache(t *testing.T) {
	faa := newFakeAgent(regulation.FAA)
	o := NewOrchestrator(newTestRegistry(faa), WithCache(newMapCache()))
	first, err := o.Run(context.Background(), schema.NewQuery("14 CFR 25.571"))
	if err != nil {
		t.Fatal(err)
	}
	second, err := o.Run(context.Background(), schema.NewQuery("  14 cfr   25.571 "))
	if err != nil {
		t.Fatal(err)
	}
	if !second.Cached || first.Cached {
		t.Errorf("expect second answer cached, got %v %v", first.Cached, second.Cached)
	}
	if second.QueryID == first.QueryID || second.Decision.QueryID != second.QueryID {
		t.Errorf("cached answer must carry the new query id")
	}
	if faa.calls.Load() != 1 {
		t.Errorf("expect one agent call, got %d", faa.calls.Load())
	}
}

func TestOrchestratorSessionMemory(t *testing.T) {
	clt := replyWith("Subpart J")
	agent := NewChatDomainAgent(regulation.EASA, NewAgent(WithClient(clt)))
	registry := NewRegistry(nil)
	registry.Register(agent)
	sessions := components.NewSessions(10, 20)
	o := NewOrchestrator(registry, WithSessions(sessions), WithCache(newMapCache()))

	q := schema.NewQuery("What is a DOA under EASA Part-21?")
	q.Session = "s1"
	if _, err := o.Run(context.Background(), q); err != nil {
		t.Fatal(err)
	}
	q = schema.NewQuery("Which EASA subpart?")
	q.Session = "s1"
	if _, err := o.Run(context.Background(), q); err != nil {
		t.Fatal(err)
	}
	if len(q.History) != 1 || q.History[0].Answer != "Subpart J" {
		t.Errorf("expect previous turn as history, got %v", q.History)
	}
	if got := len(clt.requests[1].Messages); got != 3 {
		t.Errorf("expect history sent to the domain agent, got %d messages", got)
	}
	if turns := sessions.Get("s1").QATurns(); len(turns) != 2 {
		t.Errorf("expect two turns remembered, got %v", turns)
	}
}

func TestOrchestratorRoute(t *testing.T) {
	o := NewOrchestrator(newTestRegistry(newFakeAgent(regulation.JSSG)))
	decision, err := o.Route(context.Background(), &schema.Query{Text: "JSSG-2006 loads"})
	if err != nil {
		t.Fatal(err)
	}
	if decision.QueryID == "" || !decision.Has(regulation.JSSG) {
		t.Errorf("unexpected decision %+v", decision)
	}
	if _, err := o.Route(context.Background(), &schema.Query{}); !errors.Is(err, schema.ErrInvalidQuery) {
		t.Errorf("expect invalid query, got %v", err)
	}
}
