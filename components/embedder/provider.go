package embedder

type Provider = string

const (
	ProviderOpenAI Provider = "openai"
	ProviderCohere Provider = "cohere"
)
