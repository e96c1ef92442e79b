package document

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"

	"go.uber.org/atomic"
)

// Http is a document fetched over http, read once and kept in memory
type Http struct {
	status *atomic.Int32
	client *http.Client
	cfg    HttpConfig
	buffer *bytes.Buffer
	meta   map[string]string
	mtx    sync.Mutex
}

var _ Reader = (*Http)(nil)

type HttpConfig struct {
	client  *http.Client
	link    string
	method  string
	payload []byte
	header  http.Header
}

type HttpOption func(*HttpConfig)

func WithHttpMethod(method string) HttpOption {
	return func(h *HttpConfig) {
		h.method = method
	}
}

func WithHttpURL(link string) HttpOption {
	return func(h *HttpConfig) {
		h.link = link
	}
}

func WithPayload(payload []byte) HttpOption {
	return func(h *HttpConfig) {
		h.payload = payload
	}
}

func WithHttpClient(client *http.Client) HttpOption {
	return func(h *HttpConfig) {
		h.client = client
	}
}

func WithHttpHeader(key string, value string) HttpOption {
	return func(h *HttpConfig) {
		if h.header == nil {
			h.header = make(http.Header)
		}
		h.header.Set(key, value)
	}
}

func NewHttp(opts ...HttpOption) (*Http, error) {
	var cfg HttpConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.link == "" {
		return nil, fmt.Errorf("http document requires an url")
	}
	if cfg.method == "" {
		cfg.method = http.MethodGet
	}
	if cfg.client == nil {
		cfg.client = http.DefaultClient
	}
	return &Http{
		status: atomic.NewInt32(Unread),
		client: cfg.client,
		cfg:    cfg,
		buffer: new(bytes.Buffer),
		meta: map[string]string{
			"url":    cfg.link,
			"method": cfg.method,
		},
	}, nil
}

func (h *Http) ReadStatus() ReadStatus {
	return h.status.Load()
}

func (h *Http) Meta() map[string]string {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	return h.meta
}

// ReadAll fetches the document on first call, later calls return the buffered body.
// A concurrent call while fetching returns ErrReading.
func (h *Http) ReadAll(ctx context.Context) ([]byte, error) {
	if h.ReadStatus() == ReadCompleted {
		return h.buffer.Bytes(), nil
	}
	if !h.status.CompareAndSwap(Unread, Reading) {
		if h.ReadStatus() == ReadCompleted {
			return h.buffer.Bytes(), nil
		}
		return nil, ErrReading
	}
	httpReq, err := http.NewRequestWithContext(ctx, h.cfg.method, h.cfg.link, bytes.NewReader(h.cfg.payload))
	if err != nil {
		h.status.Store(Unread)
		return nil, err
	}
	for k := range h.cfg.header {
		httpReq.Header.Set(k, h.cfg.header.Get(k))
	}
	httpResp, err := h.client.Do(httpReq)
	if err != nil {
		h.status.Store(Unread)
		return nil, err
	}
	defer httpResp.Body.Close()
	if httpResp.StatusCode >= http.StatusBadRequest {
		h.status.Store(Unread)
		return nil, fmt.Errorf("fetch %s: http status %d", h.cfg.link, httpResp.StatusCode)
	}
	h.buffer.Reset()
	if _, err = io.Copy(h.buffer, httpResp.Body); err != nil {
		h.buffer.Reset()
		h.status.Store(Unread)
		return nil, err
	}
	h.mtx.Lock()
	h.meta["url"] = httpResp.Request.URL.String()
	if ct := httpResp.Header.Get("Content-Type"); ct != "" {
		h.meta["content_type"] = ct
	}
	h.mtx.Unlock()
	h.status.Store(ReadCompleted)
	return h.buffer.Bytes(), nil
}
