// Package remote connects a domain agent served by another deployment
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bububa/regulation-agents/agents"
	"github.com/bububa/regulation-agents/components/regulation"
	"github.com/bububa/regulation-agents/schema"
)

const maxErrorBody = 2048

// Agent forwards queries to POST {baseURL}/api/v1/agents/{domain}/answer
type Agent struct {
	domain     regulation.Domain
	baseURL    string
	name       string
	token      string
	httpClient *http.Client
}

var _ agents.DomainAgent = (*Agent)(nil)

type Option func(*Agent)

func WithName(name string) Option {
	return func(a *Agent) {
		a.name = name
	}
}

// WithToken sends a bearer token
func WithToken(token string) Option {
	return func(a *Agent) {
		a.token = token
	}
}

func WithHttpClient(clt *http.Client) Option {
	return func(a *Agent) {
		a.httpClient = clt
	}
}

func New(domain regulation.Domain, baseURL string, opts ...Option) *Agent {
	ret := &Agent{
		domain:  domain,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	if ret.httpClient == nil {
		ret.httpClient = &http.Client{Timeout: 2 * time.Minute}
	}
	return ret
}

func (a *Agent) Name() string {
	if a.name != "" {
		return a.name
	}
	return fmt.Sprintf("%s remote agent", a.domain)
}

func (a *Agent) Domain() regulation.Domain {
	return a.domain
}

// Endpoint returns the answer endpoint of the remote domain agent
func (a *Agent) Endpoint() string {
	return fmt.Sprintf("%s/api/v1/agents/%s/answer", a.baseURL, url.PathEscape(string(a.domain)))
}

func (a *Agent) Answer(ctx context.Context, query *schema.Query) (*schema.DomainAnswer, error) {
	payload, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.Endpoint(), bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if a.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+a.token)
	}
	if query.ID != "" {
		httpReq.Header.Set("X-Request-ID", query.ID)
	}
	httpResp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(httpResp.Body, maxErrorBody))
		return nil, &schema.UpstreamError{
			Endpoint:   a.Endpoint(),
			StatusCode: httpResp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}
	ret := new(schema.DomainAnswer)
	if err := json.NewDecoder(httpResp.Body).Decode(ret); err != nil {
		return nil, fmt.Errorf("decode %s answer: %w", a.domain, err)
	}
	if ret.Error != "" {
		return nil, fmt.Errorf("%w: %s", schema.ErrUpstream, ret.Error)
	}
	return ret, nil
}
