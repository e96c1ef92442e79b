package agents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/atomic"

	"github.com/bububa/regulation-agents/components"
	"github.com/bububa/regulation-agents/components/chat"
	"github.com/bububa/regulation-agents/components/regulation"
	"github.com/bububa/regulation-agents/schema"
)

var errFlaky = errors.New("flaky upstream")

type fakeClient struct {
	fn       func(req *chat.Request) (string, error)
	requests []*chat.Request
	mtx      sync.Mutex
}

func (c *fakeClient) Provider() chat.Provider {
	return "fake"
}

// Chat decodes like the instructor clients: JSON into out, then validate tags.
// Plain text fills a schema.Reply.
func (c *fakeClient) Chat(ctx context.Context, req *chat.Request, out any, resp *components.LLMResponse) error {
	c.mtx.Lock()
	c.requests = append(c.requests, req)
	c.mtx.Unlock()
	content, err := c.fn(req)
	if err != nil {
		return err
	}
	if reply, ok := out.(*schema.Reply); ok && !strings.HasPrefix(strings.TrimSpace(content), "{") {
		reply.Answer = content
	} else if err := json.Unmarshal([]byte(content), out); err != nil {
		return err
	}
	if err := validator.New().Struct(out); err != nil {
		return err
	}
	resp.Content = content
	resp.Usage = &components.LLMUsage{InputTokens: 10, OutputTokens: 5}
	return nil
}

func (c *fakeClient) calls() int {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return len(c.requests)
}

func replyWith(content string) *fakeClient {
	return &fakeClient{fn: func(*chat.Request) (string, error) { return content, nil }}
}

type fakeAgent struct {
	domain regulation.Domain
	delay  time.Duration
	// failures number of first calls failing with err
	failures int32
	err      error
	calls    atomic.Int32
}

func newFakeAgent(domain regulation.Domain) *fakeAgent {
	return &fakeAgent{domain: domain, err: errFlaky}
}

func (a *fakeAgent) Name() string {
	return "fake " + string(a.domain)
}

func (a *fakeAgent) Domain() regulation.Domain {
	return a.domain
}

func (a *fakeAgent) Answer(ctx context.Context, query *schema.Query) (*schema.DomainAnswer, error) {
	n := a.calls.Inc()
	if a.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(a.delay):
		}
	}
	if a.failures < 0 || n <= a.failures {
		return nil, a.err
	}
	return &schema.DomainAnswer{
		Content: fmt.Sprintf("%s answer to %s", a.domain, query.Text),
		Sources: []schema.Source{{Title: string(a.domain) + " doc", URL: "https://example.com/" + string(a.domain)}},
		Usage:   &schema.Usage{InputTokens: 1, OutputTokens: 2},
	}, nil
}

func newTestRegistry(agents ...*fakeAgent) *Registry {
	registry := NewRegistry(regulation.DefaultCatalog())
	for _, a := range agents {
		registry.Register(a)
	}
	return registry
}
