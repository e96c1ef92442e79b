package vectordb

type Options struct {
	EngineType EngineType `mapstructure:"engine" validate:"omitempty,oneof=memory chromem"`
	// TopK Maximum number of results to return
	TopK int `mapstructure:"top_k" validate:"gte=0"`
	// MinScore Minimum similarity score threshold
	MinScore float64 `mapstructure:"min_score" validate:"gte=0,lte=1"`
	// Path persistent storage directory, empty keeps data in memory
	Path     string `mapstructure:"path"`
	Compress bool   `mapstructure:"compress"`
}

// Option is a function type for configuring VectorDB instances.
// It follows the functional options pattern for clean and flexible configuration.
type Option func(*Options)

// WithEngine sets the database type.
// Supported types:
// - "memory": In-memory database
// - "chromem": chromem-go, optionally persistent
func WithEngine(engine EngineType) Option {
	return func(c *Options) {
		c.EngineType = engine
	}
}

// WithTopK sets the maximum number of results to return.
// The actual number of results may be less if MinScore filtering is applied.
func WithTopK(k int) Option {
	return func(c *Options) {
		c.TopK = k
	}
}

// WithMinScore sets the minimum similarity score threshold.
// Results with scores below this threshold will be filtered out.
func WithMinScore(score float64) Option {
	return func(c *Options) {
		c.MinScore = score
	}
}

// WithPath sets the persistent storage directory
func WithPath(path string, compress bool) Option {
	return func(c *Options) {
		c.Path = path
		c.Compress = compress
	}
}

// ResolveSearch merges engine defaults into search options
func (o Options) ResolveSearch(opts ...SearchOption) SearchOptions {
	ret := SearchOptions{
		TopK:     o.TopK,
		MinScore: o.MinScore,
	}
	for _, opt := range opts {
		opt(&ret)
	}
	if ret.TopK <= 0 {
		ret.TopK = 5
	}
	return ret
}
