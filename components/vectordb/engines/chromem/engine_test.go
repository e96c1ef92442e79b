package chromem

import (
	"context"
	"testing"

	"github.com/philippgille/chromem-go"

	"github.com/bububa/regulation-agents/components/embedder"
	"github.com/bububa/regulation-agents/components/vectordb"
)

func TestInsertSearch(t *testing.T) {
	ctx := context.Background()
	engine := New(chromem.NewDB(), vectordb.WithTopK(10))
	records := []vectordb.Record{
		{Embedding: embedder.Embedding{Object: "EMAR 21 subpart J", Embedding: []float32{1, 0, 0}, Meta: map[string]string{"source": "emar21"}}},
		{Embedding: embedder.Embedding{Object: "EMAR 145 maintenance", Embedding: []float32{0, 1, 0}, Meta: map[string]string{"source": "emar145"}}},
	}
	if err := engine.Insert(ctx, "EDA", records...); err != nil {
		t.Fatal(err)
	}
	if n, _ := engine.Count(ctx, "EDA"); n != 2 {
		t.Fatalf("expect 2 documents, got %d", n)
	}
	// topK larger than the collection must be capped
	got, err := engine.Search(ctx, []float32{1, 0, 0}, vectordb.SearchWithCollection("EDA"))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expect 2 results, got %d", len(got))
	}
	if got[0].Embedding.Meta["source"] != "emar21" {
		t.Errorf("expect closest document first, got %+v", got[0])
	}
	if got[0].Score < got[1].Score {
		t.Errorf("results must be sorted by similarity, got %f < %f", got[0].Score, got[1].Score)
	}
	got, _ = engine.Search(ctx, []float32{1, 0, 0}, vectordb.SearchWithCollection("EDA"), vectordb.SearchWithMinScore(0.5))
	if len(got) != 1 {
		t.Errorf("expect min score to drop the orthogonal document, got %d", len(got))
	}
}

func TestSearchEmptyCollection(t *testing.T) {
	engine := New(chromem.NewDB())
	got, err := engine.Search(context.Background(), []float32{1, 0}, vectordb.SearchWithCollection("FAA"))
	if err != nil || got != nil {
		t.Errorf("expect no results without error, got %v %v", got, err)
	}
}
