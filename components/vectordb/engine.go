package vectordb

import (
	"context"
)

type EngineType string

const (
	Memory  EngineType = "memory"
	Chromem EngineType = "chromem"
)

// Engine stores embeddings in named collections and runs similarity search.
// Record scores are similarities: higher is closer.
type Engine interface {
	Insert(ctx context.Context, collection string, records ...Record) error
	Search(ctx context.Context, vector []float32, opts ...SearchOption) ([]Record, error)
	Count(ctx context.Context, collection string) (int, error)
	DropCollection(ctx context.Context, collection string) error
}
