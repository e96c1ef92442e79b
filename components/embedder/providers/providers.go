package providers

import (
	"fmt"
	"strings"

	cohereClient "github.com/cohere-ai/cohere-go/v2/client"
	"github.com/cohere-ai/cohere-go/v2/option"
	goopenai "github.com/sashabaranov/go-openai"

	"github.com/bububa/regulation-agents/components/embedder"
	"github.com/bububa/regulation-agents/components/embedder/providers/cohere"
	"github.com/bububa/regulation-agents/components/embedder/providers/openai"
)

var (
	FromOpenAI = openai.New
	FromCohere = cohere.New
)

// Config embedder config
type Config struct {
	Provider string `mapstructure:"provider" validate:"omitempty,oneof=openai cohere"`
	Model    string `mapstructure:"model"`
	APIKey   string `mapstructure:"api_key"`
	BaseURL  string `mapstructure:"base_url" validate:"omitempty,url"`
	// Dimensions output vector size, zero keeps the model default
	Dimensions int `mapstructure:"dimensions" validate:"gte=0"`
}

// New builds the embedder of the configured provider
func New(cfg Config) (embedder.Embedder, error) {
	var opts []embedder.Option
	if cfg.Model != "" {
		opts = append(opts, embedder.WithModel(cfg.Model))
	}
	if cfg.Dimensions > 0 {
		opts = append(opts, embedder.WithDimensions(cfg.Dimensions))
	}
	switch strings.ToLower(cfg.Provider) {
	case embedder.ProviderOpenAI, "":
		clientCfg := goopenai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			clientCfg.BaseURL = cfg.BaseURL
		}
		return FromOpenAI(goopenai.NewClientWithConfig(clientCfg), opts...), nil
	case embedder.ProviderCohere:
		clientOpts := []option.RequestOption{option.WithToken(cfg.APIKey)}
		if cfg.BaseURL != "" {
			clientOpts = append(clientOpts, option.WithBaseURL(cfg.BaseURL))
		}
		return FromCohere(cohereClient.NewClient(clientOpts...), opts...), nil
	}
	return nil, fmt.Errorf("unsupported embedder provider: %s", cfg.Provider)
}
