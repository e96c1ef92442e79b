package chromem

import (
	"context"
	"errors"

	"github.com/philippgille/chromem-go"

	"github.com/bububa/regulation-agents/components/vectordb"
)

var errNoEmbeddingFunc = errors.New("chromem: records must carry precomputed embeddings")

type Engine struct {
	db *chromem.DB
	vectordb.Options
}

var _ vectordb.Engine = (*Engine)(nil)

func New(db *chromem.DB, opts ...vectordb.Option) *Engine {
	ret := &Engine{
		db: db,
	}
	ret.EngineType = vectordb.Chromem
	for _, opt := range opts {
		opt(&ret.Options)
	}
	return ret
}

func (e *Engine) Collection(_ context.Context, name string) (*chromem.Collection, error) {
	return e.db.GetOrCreateCollection(name, nil, noEmbedding)
}

func (e *Engine) Count(ctx context.Context, name string) (int, error) {
	col := e.db.GetCollection(name, noEmbedding)
	if col == nil {
		return 0, nil
	}
	return col.Count(), nil
}

func (e *Engine) DropCollection(_ context.Context, name string) error {
	return e.db.DeleteCollection(name)
}

func (e *Engine) Insert(ctx context.Context, collectionName string, records ...vectordb.Record) error {
	col, err := e.Collection(ctx, collectionName)
	if err != nil {
		return err
	}
	for _, record := range records {
		var doc chromem.Document
		recordToDocument(&record, &doc)
		if err := col.AddDocument(ctx, doc); err != nil {
			return err
		}
	}
	return nil
}

// Search performs cosine similarity search on a collection.
func (e *Engine) Search(ctx context.Context, vector []float32, opts ...vectordb.SearchOption) ([]vectordb.Record, error) {
	option := e.ResolveSearch(opts...)
	col := e.db.GetCollection(option.Collection, noEmbedding)
	if col == nil {
		return nil, nil
	}
	// chromem rejects nResults above the collection size
	topK := min(option.TopK, col.Count())
	if topK == 0 {
		return nil, nil
	}
	var whereDocument map[string]string
	if option.Include != "" || option.Exclude != "" {
		whereDocument = make(map[string]string, 2)
		if option.Include != "" {
			whereDocument["$contains"] = option.Include
		}
		if option.Exclude != "" {
			whereDocument["$not_contains"] = option.Exclude
		}
	}
	results, err := col.QueryEmbedding(ctx, vector, topK, option.Meta, whereDocument)
	if err != nil {
		return nil, err
	}
	searchResults := make([]vectordb.Record, 0, len(results))
	for _, result := range results {
		var rec vectordb.Record
		resultToRecord(&result, &rec)
		searchResults = append(searchResults, rec)
	}
	return vectordb.FilterScore(searchResults, option.MinScore), nil
}

func noEmbedding(context.Context, string) ([]float32, error) {
	return nil, errNoEmbeddingFunc
}

func resultToRecord(res *chromem.Result, record *vectordb.Record) {
	record.ID = res.ID
	record.Score = float64(res.Similarity)
	record.Embedding.Object = res.Content
	record.Embedding.Meta = res.Metadata
	record.Embedding.Embedding = res.Embedding
}

func recordToDocument(record *vectordb.Record, doc *chromem.Document) {
	if record.ID == "" {
		record.ID = record.Embedding.UUID()
	}
	doc.ID = record.ID
	doc.Content = record.Embedding.Object
	doc.Metadata = record.Embedding.Meta
	doc.Embedding = record.Embedding.Embedding
}
