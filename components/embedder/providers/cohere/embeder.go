package cohere

import (
	"context"

	cohere "github.com/cohere-ai/cohere-go/v2"
	cohereClient "github.com/cohere-ai/cohere-go/v2/client"

	"github.com/bububa/regulation-agents/components"
	"github.com/bububa/regulation-agents/components/embedder"
)

const DefaultModel = "embed-multilingual-v3.0"

type Embedder struct {
	*cohereClient.Client

	embedder.Options
}

var _ embedder.Embedder = (*Embedder)(nil)

func (p *Embedder) SetClient(clt *cohereClient.Client) {
	p.Client = clt
}

func New(client *cohereClient.Client, opts ...embedder.Option) *Embedder {
	i := &Embedder{
		Client: client,
	}
	embedder.WithProvider(embedder.ProviderCohere)(&i.Options)
	embedder.WithModel(DefaultModel)(&i.Options)
	for _, opt := range opts {
		opt(&i.Options)
	}
	return i
}

func (p *Embedder) Embed(ctx context.Context, text string, embedding *embedder.Embedding, usage *components.LLMUsage) error {
	ret, err := p.embed(ctx, []string{text}, cohere.EmbedInputTypeSearchQuery, usage)
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
	return p.embed(ctx, parts, cohere.EmbedInputTypeSearchDocument, usage)
}

func (p *Embedder) embed(ctx context.Context, parts []string, inputType cohere.EmbedInputType, usage *components.LLMUsage) ([]embedder.Embedding, error) {
	model := p.Model()
	req := cohere.EmbedRequest{
		Texts:     parts,
		Model:     &model,
		InputType: &inputType,
	}
	resp, err := p.Client.Embed(ctx, &req)
	if err != nil {
		return nil, err
	}
	respV := resp.GetEmbeddingsFloats()
	if respV == nil {
		return nil, nil
	}
	if usage != nil && respV.Meta != nil && respV.Meta.Tokens != nil {
		if v := respV.Meta.Tokens.InputTokens; v != nil {
			usage.InputTokens += int64(*v)
		}
	}
	ret := make([]embedder.Embedding, 0, len(respV.Embeddings))
	for idx, v := range respV.Embeddings {
		vec := make([]float32, len(v))
		for i, f := range v {
			vec[i] = float32(f)
		}
		ret = append(ret, embedder.Embedding{
			Object:    parts[idx],
			Embedding: vec,
			Index:     idx,
		})
	}
	return ret, nil
}
