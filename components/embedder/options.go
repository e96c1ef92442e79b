package embedder

// Options is embedded by every provider
type Options struct {
	provider   Provider
	model      string
	dimensions int
}

type Option func(*Options)

func WithProvider(provider Provider) Option {
	return func(o *Options) {
		o.provider = provider
	}
}

func WithModel(model string) Option {
	return func(o *Options) {
		o.model = model
	}
}

// WithDimensions shortens the output vectors on models that support it.
// Zero keeps the model default.
func WithDimensions(dimensions int) Option {
	return func(o *Options) {
		if dimensions < 0 {
			dimensions = 0
		}
		o.dimensions = dimensions
	}
}

func (i Options) Provider() Provider {
	return i.provider
}

func (i Options) Model() string {
	return i.model
}

func (i Options) Dimensions() int {
	return i.dimensions
}
