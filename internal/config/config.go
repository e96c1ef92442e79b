// Package config loads the service configuration from a YAML file and REGAGENT_ environment variables using Viper.
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/bububa/regulation-agents/agents"
	"github.com/bububa/regulation-agents/components/chat"
	"github.com/bububa/regulation-agents/components/document"
	"github.com/bububa/regulation-agents/components/embedder/providers"
	"github.com/bububa/regulation-agents/components/regulation"
	"github.com/bububa/regulation-agents/components/vectordb"
	"github.com/bububa/regulation-agents/internal/cache"
	"github.com/bububa/regulation-agents/internal/logger"
	"github.com/bububa/regulation-agents/internal/ratelimit"
)

// EnvPrefix prefixes every environment override, e.g. REGAGENT_LLM_API_KEY
const EnvPrefix = "REGAGENT"

// DefaultVectorDBPath persistent chromem directory shared by ingest, ask and serve
const DefaultVectorDBPath = "data/vectordb"

// ConfigName is the file name searched when no explicit path is given
const ConfigName = "regagent"

type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Logger       logger.Config      `mapstructure:"logger"`
	LLM          LLMConfig          `mapstructure:"llm"`
	Embedder     providers.Config   `mapstructure:"embedder"`
	VectorDB     vectordb.Options   `mapstructure:"vectordb"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
	RateLimit    ratelimit.Config   `mapstructure:"ratelimit"`
	Cache        cache.Config       `mapstructure:"cache"`
	Corpus       CorpusConfig       `mapstructure:"corpus"`
	// Agents domain agent settings keyed by domain tag. Catalog domains without an entry use a rag agent.
	Agents map[string]AgentConfig `mapstructure:"agents" validate:"dive"`
	// Catalog extra or overridden domain entries
	Catalog []regulation.Entry `mapstructure:"catalog" validate:"dive"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port" validate:"gte=0,lte=65535"`
	Mode            string        `mapstructure:"mode" validate:"omitempty,oneof=debug release test"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// Token when set, the agent answer endpoint requires it as Bearer token
	Token string `mapstructure:"token"`
}

// Addr returns the listen address
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type LLMConfig struct {
	chat.Config `mapstructure:",squash"`
	Model       string  `mapstructure:"model"`
	Temperature float32 `mapstructure:"temperature" validate:"gte=0,lte=2"`
	MaxTokens   int     `mapstructure:"max_tokens" validate:"gte=0"`
}

type OrchestratorConfig struct {
	agents.OrchestratorConfig `mapstructure:",squash"`
	Fallback                  agents.FallbackPolicy `mapstructure:"fallback" validate:"omitempty,oneof=all reject"`
	// Classifier asks the llm for domains when no keyword matched
	Classifier bool `mapstructure:"classifier"`
	// Synthesis merges several domain answers with the llm
	Synthesis   bool `mapstructure:"synthesis"`
	MaxSessions int  `mapstructure:"max_sessions" validate:"gte=0"`
	MaxMessages int  `mapstructure:"max_messages" validate:"gte=0"`
}

type AgentType string

const (
	RAGAgent    AgentType = "rag"
	ChatAgent   AgentType = "chat"
	RemoteAgent AgentType = "remote"
)

type AgentConfig struct {
	Type AgentType `mapstructure:"type" validate:"omitempty,oneof=rag chat remote"`
	Name string    `mapstructure:"name"`
	// URL base url of the remote deployment
	URL   string `mapstructure:"url" validate:"required_if=Type remote,omitempty,url"`
	Token string `mapstructure:"token"`
	// Model overrides the llm model of this agent
	Model string `mapstructure:"model"`
	// TopK overrides the vectordb top k of this agent
	TopK     int     `mapstructure:"top_k" validate:"gte=0"`
	MinScore float64 `mapstructure:"min_score" validate:"gte=0,lte=1"`
	Disabled bool    `mapstructure:"disabled"`
	// Instructions are appended to the output instructions of the domain prompt
	Instructions []string `mapstructure:"instructions"`
}

type CorpusConfig struct {
	ECFRBaseURL string        `mapstructure:"ecfr_base_url" validate:"omitempty,url"`
	HTTPTimeout time.Duration `mapstructure:"http_timeout"`
	MaxDepth    int           `mapstructure:"max_depth" validate:"gte=0"`
	UserAgent   string        `mapstructure:"user_agent"`
	ChunkSize   int           `mapstructure:"chunk_size" validate:"gte=0"`
	Overlap     int           `mapstructure:"overlap" validate:"gte=0"`
	// Tokenizer tiktoken encoding or model name, empty or "words" counts words
	Tokenizer string            `mapstructure:"tokenizer"`
	S3        document.S3Config `mapstructure:"s3"`
}

// DomainAgent is the resolved agent setting of one domain
type DomainAgent struct {
	AgentConfig
	Domain regulation.Domain
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "5m")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.token", "")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")

	v.SetDefault("llm.provider", string(chat.OpenAI))
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.max_retries", chat.DefaultMaxRetries)
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.max_tokens", 2048)

	v.SetDefault("embedder.provider", "openai")
	v.SetDefault("embedder.model", "")
	v.SetDefault("embedder.api_key", "")
	v.SetDefault("embedder.base_url", "")
	v.SetDefault("embedder.dimensions", 0)

	v.SetDefault("vectordb.engine", string(vectordb.Chromem))
	v.SetDefault("vectordb.top_k", 5)
	v.SetDefault("vectordb.min_score", 0)
	v.SetDefault("vectordb.path", DefaultVectorDBPath)
	v.SetDefault("vectordb.compress", false)

	v.SetDefault("orchestrator.max_parallel", 0)
	v.SetDefault("orchestrator.agent_timeout", "60s")
	v.SetDefault("orchestrator.retries", 1)
	v.SetDefault("orchestrator.retry_backoff", "500ms")
	v.SetDefault("orchestrator.fallback", string(agents.FallbackAll))
	v.SetDefault("orchestrator.classifier", true)
	v.SetDefault("orchestrator.synthesis", true)
	v.SetDefault("orchestrator.max_sessions", 1000)
	v.SetDefault("orchestrator.max_messages", 20)

	v.SetDefault("ratelimit.rps", 5)
	v.SetDefault("ratelimit.burst", 5)
	v.SetDefault("ratelimit.idle_ttl", "15m")
	v.SetDefault("ratelimit.cleanup_every", "2m")

	v.SetDefault("cache.backend", string(cache.Memory))
	v.SetDefault("cache.ttl", "1h")
	v.SetDefault("cache.max_entries", 1000)
	v.SetDefault("cache.redis.addr", "")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.prefix", "regagent:answer")

	v.SetDefault("corpus.ecfr_base_url", "https://www.ecfr.gov/api/versioner/v1")
	v.SetDefault("corpus.http_timeout", "60s")
	v.SetDefault("corpus.max_depth", 1)
	v.SetDefault("corpus.user_agent", "")
	v.SetDefault("corpus.chunk_size", 512)
	v.SetDefault("corpus.overlap", 64)
	v.SetDefault("corpus.tokenizer", "")
	v.SetDefault("corpus.s3.region", "us-east-1")
	v.SetDefault("corpus.s3.endpoint", "")
	v.SetDefault("corpus.s3.access_key_id", "")
	v.SetDefault("corpus.s3.secret_access_key", "")
	v.SetDefault("corpus.s3.use_path_style", false)
}

// Load reads the config file at path, or regagent.yaml from the working directory
// and $HOME/.regagent when path is empty, then applies REGAGENT_ env overrides.
// A missing default file is ignored.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName(ConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.regagent")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := new(Config)
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints
func (c *Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	for tag := range c.Agents {
		if _, err := regulation.ParseDomain(tag); err != nil {
			return fmt.Errorf("invalid config: agents.%s: %w", tag, err)
		}
	}
	return nil
}

// BuildCatalog returns the built-in catalog extended with the configured entries
func (c *Config) BuildCatalog() (*regulation.Catalog, error) {
	catalog := regulation.DefaultCatalog()
	for _, e := range c.Catalog {
		if err := catalog.Register(e); err != nil {
			return nil, err
		}
	}
	return catalog, nil
}

// DomainAgents resolves the agent of every catalog domain, in catalog order.
// Configured domains missing from the catalog are appended; disabled ones are skipped.
func (c *Config) DomainAgents(catalog *regulation.Catalog) ([]DomainAgent, error) {
	configured := make(map[regulation.Domain]AgentConfig, len(c.Agents))
	var extra []regulation.Domain
	for tag, v := range c.Agents {
		d, err := regulation.ParseDomain(tag)
		if err != nil {
			return nil, err
		}
		configured[d] = v
		if _, ok := catalog.Lookup(d); !ok {
			extra = append(extra, d)
		}
	}
	slices.Sort(extra)
	domains := append(catalog.Domains(), extra...)
	ret := make([]DomainAgent, 0, len(domains))
	for _, d := range domains {
		v := configured[d]
		if v.Disabled {
			continue
		}
		if v.Type == "" {
			v.Type = RAGAgent
		}
		ret = append(ret, DomainAgent{AgentConfig: v, Domain: d})
	}
	return ret, nil
}
