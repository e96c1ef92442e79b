package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bububa/regulation-agents/agents"
	"github.com/bububa/regulation-agents/components/regulation"
	"github.com/bububa/regulation-agents/schema"
)

func TestAnswer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/agents/DEF-STAN/answer" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer secret" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		var q schema.Query
		if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(schema.DomainAnswer{
			Domain:  regulation.DEFSTAN,
			Agent:   "uk mod",
			Content: "DEF STAN 00-970 answer to: " + q.Text,
		})
	}))
	defer srv.Close()

	agent := New(regulation.DEFSTAN, srv.URL+"/", WithToken("secret"))
	got, err := agent.Answer(context.Background(), schema.NewQuery("bird strike"))
	if err != nil {
		t.Fatal(err)
	}
	if got.Content != "DEF STAN 00-970 answer to: bird strike" || got.Agent != "uk mod" {
		t.Errorf("unexpected answer %+v", got)
	}

	agent = New(regulation.DEFSTAN, srv.URL)
	_, err = agent.Answer(context.Background(), schema.NewQuery("bird strike"))
	if !errors.Is(err, schema.ErrUpstream) {
		t.Fatalf("expect upstream error, got %v", err)
	}
	if !strings.Contains(err.Error(), "status 401") || !strings.Contains(err.Error(), "unauthorized") {
		t.Errorf("error must carry status and body, got %v", err)
	}
}

func TestOrchestratorRetriesOnlyTransientStatus(t *testing.T) {
	tests := []struct {
		name   string
		status int
		hits   int32
	}{
		{name: "no context", status: http.StatusUnprocessableEntity, hits: 1},
		{name: "unauthorized", status: http.StatusUnauthorized, hits: 1},
		{name: "too many requests", status: http.StatusTooManyRequests, hits: 3},
		{name: "unavailable", status: http.StatusServiceUnavailable, hits: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				hits.Add(1)
				http.Error(w, http.StatusText(tt.status), tt.status)
			}))
			defer srv.Close()

			registry := agents.NewRegistry(regulation.DefaultCatalog())
			registry.Register(New(regulation.DEFSTAN, srv.URL))
			o := agents.NewOrchestrator(registry, agents.WithOrchestratorConfig(agents.OrchestratorConfig{
				Retries:      2,
				RetryBackoff: time.Millisecond,
			}))
			_, err := o.Run(context.Background(), schema.NewQuery("bird strike", regulation.DEFSTAN))
			if !errors.Is(err, schema.ErrAllAgentsFailed) {
				t.Fatalf("expect all agents failed, got %v", err)
			}
			var upstream *schema.UpstreamError
			if !errors.As(err, &upstream) || upstream.StatusCode != tt.status {
				t.Errorf("expect upstream status %d in %v", tt.status, err)
			}
			if got := hits.Load(); got != tt.hits {
				t.Errorf("expect %d requests, got %d", tt.hits, got)
			}
		})
	}
}
