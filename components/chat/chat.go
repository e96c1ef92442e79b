// Package chat sends provider independent requests through instructor, which
// decodes every answer into a typed response and re-asks the model when the
// answer does not match the response schema.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bububa/instructor-go/pkg/instructor"
	cohereclient "github.com/cohere-ai/cohere-go/v2/client"
	"github.com/cohere-ai/cohere-go/v2/option"
	anthropic "github.com/liushuangls/go-anthropic/v2"
	openai "github.com/sashabaranov/go-openai"

	"github.com/bububa/regulation-agents/components"
	"github.com/bububa/regulation-agents/schema"
)

// Provider llm provider name
type Provider string

const (
	OpenAI    Provider = "openai"
	Anthropic Provider = "anthropic"
	Cohere    Provider = "cohere"
)

const (
	defaultMaxTokens  = 1024
	DefaultMaxRetries = 3
)

// Request is a provider independent chat request
type Request struct {
	Model       string
	System      string
	Messages    []components.Message
	Temperature float32
	MaxTokens   int
}

// Client sends chat requests to one provider.
// Chat decodes the answer into out, a pointer to a json tagged struct.
type Client interface {
	Provider() Provider
	Chat(ctx context.Context, req *Request, out any, resp *components.LLMResponse) error
}

// Config client config
type Config struct {
	Provider Provider `mapstructure:"provider" validate:"omitempty,oneof=openai anthropic cohere"`
	APIKey   string   `mapstructure:"api_key"`
	BaseURL  string   `mapstructure:"base_url" validate:"omitempty,url"`
	// MaxRetries attempts per request when the answer fails decoding or validation
	MaxRetries int `mapstructure:"max_retries" validate:"gte=0"`
}

// LLM is an instructor backed Client
type LLM struct {
	inst     instructor.Instructor
	provider Provider
}

var _ Client = (*LLM)(nil)

// New returns the client of the configured provider
func New(cfg Config) (*LLM, error) {
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = DefaultMaxRetries
	}
	switch Provider(strings.ToLower(string(cfg.Provider))) {
	case OpenAI, "":
		clientCfg := openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			clientCfg.BaseURL = cfg.BaseURL
		}
		clt := openai.NewClientWithConfig(clientCfg)
		return &LLM{
			inst:     instructor.FromOpenAI(clt, instructor.WithMode(instructor.ModeJSON), instructor.WithMaxRetries(retries), instructor.WithValidation()),
			provider: OpenAI,
		}, nil
	case Anthropic:
		var opts []anthropic.ClientOption
		if cfg.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
		}
		clt := anthropic.NewClient(cfg.APIKey, opts...)
		return &LLM{
			inst:     instructor.FromAnthropic(clt, instructor.WithMode(instructor.ModeJSON), instructor.WithMaxRetries(retries), instructor.WithValidation()),
			provider: Anthropic,
		}, nil
	case Cohere:
		opts := []option.RequestOption{option.WithToken(cfg.APIKey)}
		if cfg.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(cfg.BaseURL))
		}
		clt := cohereclient.NewClient(opts...)
		return &LLM{
			inst:     instructor.FromCohere(clt, instructor.WithMode(instructor.ModeJSON), instructor.WithMaxRetries(retries), instructor.WithValidation()),
			provider: Cohere,
		}, nil
	}
	return nil, fmt.Errorf("unsupported llm provider: %s", cfg.Provider)
}

func (c *LLM) Provider() Provider {
	return c.provider
}

func (c *LLM) Chat(ctx context.Context, req *Request, out any, resp *components.LLMResponse) error {
	if resp == nil {
		resp = new(components.LLMResponse)
	}
	var err error
	switch clt := c.inst.(type) {
	case *instructor.InstructorOpenAI:
		err = chatOpenAI(ctx, clt, req, out, resp)
	case *instructor.InstructorAnthropic:
		err = chatAnthropic(ctx, clt, req, out, resp)
	case *instructor.InstructorCohere:
		err = chatCohere(ctx, clt, req, out, resp)
	default:
		return errors.New("unsupported instructor client")
	}
	if err != nil {
		return err
	}
	if resp.Content == "" {
		return schema.ErrEmptyAnswer
	}
	return nil
}

func maxTokens(v int) int {
	if v <= 0 {
		return defaultMaxTokens
	}
	return v
}
