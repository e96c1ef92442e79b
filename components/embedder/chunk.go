package embedder

import (
	"bytes"
	"sort"
	"strings"

	"github.com/clipperhouse/uax29/sentences"
	"github.com/google/uuid"
)

// Embedding is a special format of data representation that can be easily utilized by machine
// learning models and algorithms. The embedding is an information dense representation of the
// semantic meaning of a piece of text. Each embedding is a vector of floating point numbers,
// such that the distance between two embeddings in the vector space is correlated with semantic similarity
// between two inputs in the original format. For example, if two texts are similar,
// then their vector representations should also be similar.
type Embedding struct {
	Object    string            `json:"object"`
	Embedding []float32         `json:"embedding"`
	Index     int               `json:"index"`
	Meta      map[string]string `json:"meta,omitempty"`
}

// UUID is a stable id derived from the text and its metadata
func (e Embedding) UUID() string {
	keys := make([]string, 0, len(e.Meta))
	for k := range e.Meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	sb := new(bytes.Buffer)
	sb.WriteString(e.Object)
	for _, k := range keys {
		sb.WriteString(k + ":" + e.Meta[k])
		sb.WriteByte('\n')
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, sb.Bytes()).String()
}

// EmbeddedChunk represents a chunk of text along with its vector embeddings
// and associated metadata. This is the core data structure for storing
// and retrieving embedded content.
type EmbeddedChunk struct {
	Embedding
	// Chunk is the original chunk content that was embedded
	Chunk *Chunk `json:"text"`
}

// Chunk represents a piece of text with associated metadata for tracking its position
// and size within the original document.
type Chunk struct {
	// Text contains the actual content of the chunk
	Text string
	// TokenSize represents the number of tokens in this chunk
	TokenSize int
	// StartSentence is the index of the first sentence in this chunk
	StartSentence int
	// EndSentence is the index of the last sentence in this chunk (exclusive)
	EndSentence int
}

// Chunker defines the interface for text chunking implementations.
type Chunker interface {
	// Chunk splits the input text into a slice of Chunks according to the
	// implementation's strategy.
	Chunk(text string) []Chunk
}

// UAX29SentenceSplitter splits text into sentences following the unicode text segmentation rules
func UAX29SentenceSplitter(text string) []string {
	segments := sentences.SegmentAll([]byte(text))
	ret := make([]string, 0, len(segments))
	for _, seg := range segments {
		if s := strings.TrimSpace(string(seg)); s != "" {
			ret = append(ret, s)
		}
	}
	return ret
}

// TextChunker provides an advanced implementation of the Chunker interface
// with support for overlapping chunks and custom tokenization.
type TextChunker struct {
	// ChunkSize is the target size of each chunk in tokens
	ChunkSize int
	// ChunkOverlap is the number of tokens that should overlap between adjacent chunks
	ChunkOverlap int
	// TokenCounter is used to count tokens in text segments
	TokenCounter TokenCounter
	// SentenceSplitter is a function that splits text into sentences
	SentenceSplitter func(string) []string
}

var _ Chunker = (*TextChunker)(nil)

// TextChunkerOption is a function type for configuring TextChunker instances.
type TextChunkerOption func(*TextChunker)

func WithChunkSize(size int) TextChunkerOption {
	return func(tc *TextChunker) {
		tc.ChunkSize = size
	}
}

func WithChunkOverlap(overlap int) TextChunkerOption {
	return func(tc *TextChunker) {
		tc.ChunkOverlap = overlap
	}
}

func WithTokenCounter(counter TokenCounter) TextChunkerOption {
	return func(tc *TextChunker) {
		tc.TokenCounter = counter
	}
}

func WithSentenceSplitter(fn func(string) []string) TextChunkerOption {
	return func(tc *TextChunker) {
		tc.SentenceSplitter = fn
	}
}

// NewTextChunker creates a new TextChunker with the given options.
// It uses sensible defaults if no options are provided:
// - ChunkSize: 200 tokens
// - ChunkOverlap: 50 tokens
// - TokenCounter: WordCounter
// - SentenceSplitter: UAX29SentenceSplitter
func NewTextChunker(options ...TextChunkerOption) *TextChunker {
	tc := &TextChunker{
		ChunkSize:        200,
		ChunkOverlap:     50,
		TokenCounter:     WordCounter{},
		SentenceSplitter: UAX29SentenceSplitter,
	}
	for _, option := range options {
		option(tc)
	}
	return tc
}

// Chunk splits the input text into chunks while preserving sentence boundaries.
// A chunk closes before the sentence that would exceed ChunkSize; the next chunk
// starts with the trailing sentences of the previous one, up to ChunkOverlap tokens.
// A single sentence larger than ChunkSize becomes its own chunk.
func (tc *TextChunker) Chunk(text string) []Chunk {
	sentences := tc.SentenceSplitter(text)
	counts := make([]int, len(sentences))
	for i, s := range sentences {
		counts[i] = tc.TokenCounter.Count(s)
	}
	var (
		chunks []Chunk
		start  int
		tokens int
	)
	for i := range sentences {
		if tokens+counts[i] > tc.ChunkSize && i > start {
			chunks = append(chunks, newChunk(sentences, start, i, tokens))
			next, overlap := i, 0
			for next > start+1 && overlap+counts[next-1] <= tc.ChunkOverlap {
				next--
				overlap += counts[next]
			}
			start, tokens = next, overlap
		}
		tokens += counts[i]
	}
	if start < len(sentences) {
		chunks = append(chunks, newChunk(sentences, start, len(sentences), tokens))
	}
	return chunks
}

func newChunk(sentences []string, start int, end int, tokens int) Chunk {
	return Chunk{
		Text:          strings.Join(sentences[start:end], " "),
		TokenSize:     tokens,
		StartSentence: start,
		EndSentence:   end,
	}
}
