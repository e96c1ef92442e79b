package embedder

import (
	"context"
	"errors"
	"math"

	"github.com/bububa/regulation-agents/components"
)

var ErrVectorLengthMismatch = errors.New("vector length mismatch")

type Embedder interface {
	Provider() Provider
	Model() string
	// Embed embeds a search query
	Embed(context.Context, string, *Embedding, *components.LLMUsage) error
	// BatchEmbed embeds document parts, returned embeddings keep the parts order
	BatchEmbed(ctx context.Context, parts []string, usage *components.LLMUsage) ([]Embedding, error)
}

// EmbedChunks embeds chunks in batches of batchSize and pairs every embedding with its chunk.
// Returns an error if any batch fails to embed.
func EmbedChunks(ctx context.Context, embedder Embedder, chunks []Chunk, batchSize int, usage *components.LLMUsage) ([]EmbeddedChunk, error) {
	if batchSize <= 0 {
		batchSize = len(chunks)
	}
	ret := make([]EmbeddedChunk, 0, len(chunks))
	for offset := 0; offset < len(chunks); offset += batchSize {
		end := min(offset+batchSize, len(chunks))
		parts := make([]string, 0, end-offset)
		for _, chunk := range chunks[offset:end] {
			parts = append(parts, chunk.Text)
		}
		batchUsage := new(components.LLMUsage)
		embeddings, err := embedder.BatchEmbed(ctx, parts, batchUsage)
		if usage != nil {
			usage.Merge(batchUsage)
		}
		if err != nil {
			return ret, err
		}
		if len(embeddings) != len(parts) {
			return ret, errors.New("embedding count does not match chunk count")
		}
		for _, v := range embeddings {
			ret = append(ret, EmbeddedChunk{
				Embedding: v,
				Chunk:     &chunks[offset+v.Index],
			})
		}
	}
	return ret, nil
}

// DotProduct calculates the dot product of the embedding vector with another
// embedding vector. Both vectors must have the same length; otherwise, an
// ErrVectorLengthMismatch is returned.
func (e *Embedding) DotProduct(other *Embedding) (float64, error) {
	if len(e.Embedding) != len(other.Embedding) {
		return 0, ErrVectorLengthMismatch
	}
	var dotProduct float64
	for i := range e.Embedding {
		dotProduct += float64(e.Embedding[i]) * float64(other.Embedding[i])
	}
	return dotProduct, nil
}

// Cosine returns the cosine similarity of two embeddings
func (e *Embedding) Cosine(other *Embedding) (float64, error) {
	dot, err := e.DotProduct(other)
	if err != nil {
		return 0, err
	}
	var a, b float64
	for i := range e.Embedding {
		a += float64(e.Embedding[i]) * float64(e.Embedding[i])
		b += float64(other.Embedding[i]) * float64(other.Embedding[i])
	}
	if a == 0 || b == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(a) * math.Sqrt(b)), nil
}
