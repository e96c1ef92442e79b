package embedder

import (
	"context"
	"errors"
	"testing"

	"github.com/bububa/regulation-agents/components"
)

func TestTextChunker(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		chunkSize  int
		overlap    int
		wantChunks []string
	}{
		{
			name:      "one sentence per chunk",
			input:     "Basic chunking one. Chunking two? Chunking three!",
			chunkSize: 1,
			wantChunks: []string{
				"Basic chunking one.",
				"Chunking two?",
				"Chunking three!",
			},
		},
		{
			name:       "sentences grouped",
			input:      "Basic chunking one. Chunking two? Chunking three!",
			chunkSize:  5,
			wantChunks: []string{"Basic chunking one. Chunking two?", "Chunking three!"},
		},
		{
			name:      "with overlap",
			input:     "One two. Three four. Five six. Seven eight.",
			chunkSize: 4,
			overlap:   2,
			wantChunks: []string{
				"One two. Three four.",
				"Three four. Five six.",
				"Five six. Seven eight.",
			},
		},
		{
			name:       "empty",
			input:      "   ",
			chunkSize:  10,
			wantChunks: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunker := NewTextChunker(WithChunkSize(tt.chunkSize), WithChunkOverlap(tt.overlap))
			chunks := chunker.Chunk(tt.input)
			if len(chunks) != len(tt.wantChunks) {
				t.Fatalf("want %d chunks, got %d: %+v", len(tt.wantChunks), len(chunks), chunks)
			}
			for i, want := range tt.wantChunks {
				if chunks[i].Text != want {
					t.Errorf("chunk %d, want %q, got %q", i, want, chunks[i].Text)
				}
			}
		})
	}
}

func TestEmbeddingUUIDStable(t *testing.T) {
	a := Embedding{Object: "CS 25.571", Meta: map[string]string{"source": "a", "domain": "EASA"}}
	b := Embedding{Object: "CS 25.571", Meta: map[string]string{"domain": "EASA", "source": "a"}}
	if a.UUID() != b.UUID() {
		t.Error("uuid must not depend on map order")
	}
}

func TestCosine(t *testing.T) {
	a := &Embedding{Embedding: []float32{1, 0}}
	b := &Embedding{Embedding: []float32{1, 1}}
	got, err := a.Cosine(b)
	if err != nil {
		t.Fatal(err)
	}
	if got < 0.707 || got > 0.708 {
		t.Errorf("unexpected cosine %f", got)
	}
	if _, err := a.Cosine(&Embedding{Embedding: []float32{1}}); !errors.Is(err, ErrVectorLengthMismatch) {
		t.Errorf("expect ErrVectorLengthMismatch, got %v", err)
	}
}

type countingEmbedder struct {
	Options
	calls int
}

func (e *countingEmbedder) Embed(ctx context.Context, text string, embedding *Embedding, usage *components.LLMUsage) error {
	return nil
}

func (e *countingEmbedder) BatchEmbed(ctx context.Context, parts []string, usage *components.LLMUsage) ([]Embedding, error) {
	e.calls++
	usage.InputTokens += int64(len(parts))
	ret := make([]Embedding, 0, len(parts))
	for idx, v := range parts {
		ret = append(ret, Embedding{Object: v, Embedding: []float32{float32(len(v))}, Index: idx})
	}
	return ret, nil
}

func TestEmbedChunksBatches(t *testing.T) {
	chunks := []Chunk{{Text: "a"}, {Text: "bb"}, {Text: "ccc"}}
	e := new(countingEmbedder)
	usage := new(components.LLMUsage)
	ret, err := EmbedChunks(context.Background(), e, chunks, 2, usage)
	if err != nil {
		t.Fatal(err)
	}
	if e.calls != 2 {
		t.Errorf("expect 2 batches, got %d", e.calls)
	}
	if len(ret) != 3 || ret[2].Chunk.Text != "ccc" || ret[2].Embedding.Embedding[0] != 3 {
		t.Errorf("unexpected embedded chunks: %+v", ret)
	}
	if usage.InputTokens != 3 {
		t.Errorf("expect merged usage, got %d", usage.InputTokens)
	}
}

func TestNewTokenCounterWords(t *testing.T) {
	for _, name := range []string{"", "words", " WORDS "} {
		counter, err := NewTokenCounter(name)
		if err != nil {
			t.Fatalf("NewTokenCounter(%q): %v", name, err)
		}
		if got := counter.Count("CS 25.571 damage tolerance"); got != 4 {
			t.Errorf("NewTokenCounter(%q) count, want 4, got %d", name, got)
		}
	}
}
