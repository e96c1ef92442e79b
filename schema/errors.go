package schema

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrInvalidQuery query failed validation
	ErrInvalidQuery = errors.New("invalid query")
	// ErrUnknownDomain a domain tag has no registered agent
	ErrUnknownDomain = errors.New("unknown domain")
	// ErrNoDomain routing produced no domain and the fallback policy rejects the query
	ErrNoDomain = errors.New("no domain matched the query")
	// ErrAllAgentsFailed every routed domain agent failed
	ErrAllAgentsFailed = errors.New("all domain agents failed")
	// ErrNoContext retrieval returned no record to ground an answer on
	ErrNoContext = errors.New("no relevant context found")
	// ErrEmptyAnswer a model returned no content
	ErrEmptyAnswer = errors.New("empty answer")
	// ErrUpstream a remote agent or provider answered with an error status
	ErrUpstream = errors.New("upstream error")
)

// UpstreamError a remote peer answered with a non-2xx status
type UpstreamError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %s status %d: %s", ErrUpstream, e.Endpoint, e.StatusCode, e.Body)
}

func (e *UpstreamError) Unwrap() error {
	return ErrUpstream
}

// Temporary reports whether the same request may succeed on a later attempt
func (e *UpstreamError) Temporary() bool {
	return e.StatusCode >= http.StatusInternalServerError || e.StatusCode == http.StatusTooManyRequests
}
