package openai

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/bububa/regulation-agents/components"
	"github.com/bububa/regulation-agents/components/embedder"
)

func TestBatchEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/embeddings") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"object":"list","model":"text-embedding-3-small","data":[{"object":"embedding","index":1,"embedding":[0.3,0.4]},{"object":"embedding","index":0,"embedding":[0.1,0.2]}],"usage":{"prompt_tokens":7,"total_tokens":7}}`)
	}))
	defer srv.Close()
	cfg := goopenai.DefaultConfig("test-key")
	cfg.BaseURL = srv.URL + "/v1"
	e := New(goopenai.NewClientWithConfig(cfg))
	if e.Model() != DefaultModel || e.Provider() != embedder.ProviderOpenAI {
		t.Errorf("unexpected defaults %s/%s", e.Provider(), e.Model())
	}
	usage := new(components.LLMUsage)
	ret, err := e.BatchEmbed(context.Background(), []string{"first", "second"}, usage)
	if err != nil {
		t.Fatal(err)
	}
	if len(ret) != 2 {
		t.Fatalf("expect 2 embeddings, got %d", len(ret))
	}
	if ret[0].Object != "first" || ret[0].Embedding[0] != 0.1 || ret[1].Object != "second" {
		t.Errorf("embeddings must follow input order: %+v", ret)
	}
	if usage.InputTokens != 7 {
		t.Errorf("unexpected usage %d", usage.InputTokens)
	}
}

func TestEmbedDimensions(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		bs, _ := io.ReadAll(r.Body)
		body = string(bs)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"object":"list","data":[{"object":"embedding","index":0,"embedding":[0.5]}],"usage":{"prompt_tokens":2,"total_tokens":2}}`)
	}))
	defer srv.Close()
	cfg := goopenai.DefaultConfig("test-key")
	cfg.BaseURL = srv.URL + "/v1"
	e := New(goopenai.NewClientWithConfig(cfg), embedder.WithDimensions(256))
	var embedding embedder.Embedding
	if err := e.Embed(context.Background(), "EMAR 21", &embedding, nil); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(body, `"dimensions":256`) {
		t.Errorf("request must carry dimensions, got %s", body)
	}
	if embedding.Object != "EMAR 21" {
		t.Errorf("unexpected embedding %+v", embedding)
	}
}
