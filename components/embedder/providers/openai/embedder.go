package openai

import (
	"context"

	openai "github.com/sashabaranov/go-openai"

	"github.com/bububa/regulation-agents/components"
	"github.com/bububa/regulation-agents/components/embedder"
)

const DefaultModel = string(openai.SmallEmbedding3)

type Embedder struct {
	*openai.Client

	embedder.Options
}

var _ embedder.Embedder = (*Embedder)(nil)

func (p *Embedder) SetClient(clt *openai.Client) {
	p.Client = clt
}

func New(client *openai.Client, opts ...embedder.Option) *Embedder {
	i := &Embedder{
		Client: client,
	}
	embedder.WithProvider(embedder.ProviderOpenAI)(&i.Options)
	embedder.WithModel(DefaultModel)(&i.Options)
	for _, opt := range opts {
		opt(&i.Options)
	}
	return i
}

func (p *Embedder) Embed(ctx context.Context, text string, embedding *embedder.Embedding, usage *components.LLMUsage) error {
	ret, err := p.BatchEmbed(ctx, []string{text}, usage)
	if err != nil {
		return err
	}
	if len(ret) == 0 {
		return nil
	}
	*embedding = ret[0]
	return nil
}

func (p *Embedder) BatchEmbed(ctx context.Context, parts []string, usage *components.LLMUsage) ([]embedder.Embedding, error) {
	req := openai.EmbeddingRequest{
		Input: parts,
		Model: openai.EmbeddingModel(p.Model()),
	}
	if dim := p.Dimensions(); dim > 0 {
		req.Dimensions = dim
	}
	resp, err := p.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, err
	}
	if usage != nil {
		usage.InputTokens += int64(resp.Usage.PromptTokens)
	}
	ret := make([]embedder.Embedding, len(resp.Data))
	for _, v := range resp.Data {
		if v.Index < 0 || v.Index >= len(parts) || v.Index >= len(ret) {
			continue
		}
		ret[v.Index] = embedder.Embedding{
			Object:    parts[v.Index],
			Embedding: v.Embedding,
			Index:     v.Index,
		}
	}
	return ret, nil
}
