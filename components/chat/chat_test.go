package chat

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/bububa/regulation-agents/components"
	"github.com/bububa/regulation-agents/schema"
)

const openAICompletion = `{"id":"chatcmpl-1","object":"chat.completion","created":1700000000,"model":"gpt-4o-mini","choices":[{"index":0,"message":{"role":"assistant","content":%q},"finish_reason":"stop"}],"usage":{"prompt_tokens":12,"completion_tokens":5,"total_tokens":17}}`

// openAIServer answers the chat completions endpoint with replies in order, repeating the last one
func openAIServer(t *testing.T, replies ...string) (*httptest.Server, func() []map[string]any) {
	var (
		captured []map[string]any
		mtx      sync.Mutex
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		bs, _ := io.ReadAll(r.Body)
		var body map[string]any
		json.Unmarshal(bs, &body)
		mtx.Lock()
		captured = append(captured, body)
		idx := len(captured) - 1
		mtx.Unlock()
		if idx >= len(replies) {
			idx = len(replies) - 1
		}
		w.Header().Set("Content-Type", "application/json")
		content, _ := json.Marshal(replies[idx])
		io.WriteString(w, strings.Replace(openAICompletion, "%q", string(content), 1))
	}))
	t.Cleanup(srv.Close)
	return srv, func() []map[string]any {
		mtx.Lock()
		defer mtx.Unlock()
		return captured
	}
}

func TestOpenAIChat(t *testing.T) {
	srv, captured := openAIServer(t, `{"domains":["FAA"],"reason":"14 CFR"}`)
	clt, err := New(Config{Provider: OpenAI, APIKey: "test-key", BaseURL: srv.URL + "/v1"})
	if err != nil {
		t.Fatal(err)
	}
	req := &Request{
		Model:  "gpt-4o-mini",
		System: "route the question",
		Messages: []components.Message{
			*components.NewMessage(components.UserRole, schema.String("14 CFR 25.571?")),
		},
	}
	var out struct {
		Domains []string `json:"domains"`
		Reason  string   `json:"reason"`
	}
	resp := new(components.LLMResponse)
	if err := clt.Chat(context.Background(), req, &out, resp); err != nil {
		t.Fatal(err)
	}
	if len(out.Domains) != 1 || out.Domains[0] != "FAA" || out.Reason != "14 CFR" {
		t.Errorf("unexpected decoded answer: %+v", out)
	}
	if resp.Usage == nil || resp.Usage.InputTokens == 0 {
		t.Errorf("expect usage, got %+v", resp.Usage)
	}
	bodies := captured()
	if len(bodies) != 1 {
		t.Fatalf("expect a single request, got %d", len(bodies))
	}
	msgs, _ := bodies[0]["messages"].([]any)
	if len(msgs) < 2 {
		t.Fatalf("expect system and user messages, got %v", bodies[0]["messages"])
	}
	if last, _ := msgs[len(msgs)-1].(map[string]any); last["role"] != "user" {
		t.Errorf("expect the user message last, got %v", last)
	}
	if format, _ := bodies[0]["response_format"].(map[string]any); format["type"] != "json_object" {
		t.Errorf("expect json_object response format, got %v", bodies[0]["response_format"])
	}
}

func TestOpenAIChatReasksInvalidAnswers(t *testing.T) {
	srv, captured := openAIServer(t,
		"The question is about FAA rules.",
		`{"answer":""}`,
		`{"answer":"See 14 CFR 25.571."}`,
	)
	clt, err := New(Config{Provider: OpenAI, APIKey: "test-key", BaseURL: srv.URL + "/v1", MaxRetries: 5})
	if err != nil {
		t.Fatal(err)
	}
	req := &Request{
		Model:    "gpt-4o-mini",
		Messages: []components.Message{*components.NewMessage(components.UserRole, schema.String("damage tolerance?"))},
	}
	var out schema.Reply
	if err := clt.Chat(context.Background(), req, &out, nil); err != nil {
		t.Fatal(err)
	}
	if out.Answer != "See 14 CFR 25.571." {
		t.Errorf("unexpected answer: %q", out.Answer)
	}
	if n := len(captured()); n != 3 {
		t.Errorf("expect prose and empty answers re-asked, got %d requests", n)
	}
}

func TestAnthropicChat(t *testing.T) {
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/messages") {
			http.NotFound(w, r)
			return
		}
		bs, _ := io.ReadAll(r.Body)
		json.Unmarshal(bs, &captured)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"msg_1","type":"message","role":"assistant","model":"claude-3-5-haiku-latest","content":[{"type":"text","text":"{\"answer\":\"See CS-25.571.\"}"}],"stop_reason":"end_turn","usage":{"input_tokens":9,"output_tokens":4}}`)
	}))
	defer srv.Close()

	clt, err := New(Config{Provider: Anthropic, APIKey: "test-key", BaseURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	req := &Request{
		Model: "claude-3-5-haiku-latest",
		Messages: []components.Message{
			*components.NewMessage(components.SystemRole, schema.String("you are an EASA expert")),
			*components.NewMessage(components.UserRole, schema.String("damage tolerance?")),
		},
	}
	var out schema.Reply
	if err := clt.Chat(context.Background(), req, &out, nil); err != nil {
		t.Fatal(err)
	}
	if out.Answer != "See CS-25.571." {
		t.Errorf("unexpected answer: %s", out.Answer)
	}
	if system, _ := captured["system"].(string); !strings.HasPrefix(system, "you are an EASA expert") {
		t.Errorf("system message must move to system field, got %v", captured["system"])
	}
	msgs, _ := captured["messages"].([]any)
	if len(msgs) == 0 {
		t.Fatal("expect the user message")
	}
	for _, m := range msgs {
		if v, _ := m.(map[string]any); v["role"] == "system" {
			t.Errorf("system role must not be sent as a message, got %v", msgs)
		}
	}
}

func TestNewClient(t *testing.T) {
	for _, p := range []Provider{OpenAI, Anthropic, Cohere, ""} {
		clt, err := New(Config{Provider: p, APIKey: "k"})
		if err != nil {
			t.Fatalf("provider %q: %v", p, err)
		}
		want := p
		if want == "" {
			want = OpenAI
		}
		if clt.Provider() != want {
			t.Errorf("want %s, got %s", want, clt.Provider())
		}
	}
	if _, err := New(Config{Provider: "gemini"}); err == nil {
		t.Error("expect unsupported provider error")
	}
}
