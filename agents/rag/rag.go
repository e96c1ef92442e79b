// Package rag answers domain questions from a vector collection of the domain corpus
package rag

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bububa/regulation-agents/agents"
	"github.com/bububa/regulation-agents/components"
	"github.com/bububa/regulation-agents/components/document"
	"github.com/bububa/regulation-agents/components/embedder"
	"github.com/bububa/regulation-agents/components/regulation"
	"github.com/bububa/regulation-agents/components/vectordb"
	"github.com/bububa/regulation-agents/schema"
)

type Options struct {
	name              string
	enhanceQueryAgent *agents.Agent
	embedder          embedder.Embedder
	chunker           embedder.Chunker
	vectordb          vectordb.Engine
	contextGenerator  func(string, []vectordb.Record) string
	searchOptions     []vectordb.SearchOption
	batchSize         int
}

// RAG is a retrieval augmented domain agent
type RAG struct {
	agent  *agents.Agent
	domain regulation.Domain
	Options
}

var _ agents.DomainAgent = (*RAG)(nil)

type Option func(*Options)

func WithName(name string) Option {
	return func(r *Options) {
		r.name = name
	}
}

func WithChunker(chunker embedder.Chunker) Option {
	return func(r *Options) {
		r.chunker = chunker
	}
}

func WithEmbedder(e embedder.Embedder) Option {
	return func(r *Options) {
		r.embedder = e
	}
}

func WithVectorDB(v vectordb.Engine) Option {
	return func(r *Options) {
		r.vectordb = v
	}
}

// WithEnhanceQueryAgent rewrites the question into a search query before retrieval
func WithEnhanceQueryAgent(v *agents.Agent) Option {
	return func(r *Options) {
		r.enhanceQueryAgent = v
	}
}

func WithContextGenerator(fn func(string, []vectordb.Record) string) Option {
	return func(r *Options) {
		r.contextGenerator = fn
	}
}

func WithSearchOptions(opts ...vectordb.SearchOption) Option {
	return func(r *Options) {
		r.searchOptions = opts
	}
}

func WithBatchSize(size int) Option {
	return func(r *Options) {
		r.batchSize = size
	}
}

func NewRAG(domain regulation.Domain, agent *agents.Agent, opts ...Option) *RAG {
	ret := &RAG{
		agent:  agent,
		domain: domain,
	}
	for _, opt := range opts {
		opt(&ret.Options)
	}
	if ret.contextGenerator == nil {
		ret.contextGenerator = defaultContextGenerator
	}
	if ret.chunker == nil {
		ret.chunker = embedder.NewTextChunker()
	}
	if ret.batchSize <= 0 {
		ret.batchSize = 64
	}
	return ret
}

func (r *RAG) Name() string {
	if r.name != "" {
		return r.name
	}
	return fmt.Sprintf("%s rag agent", r.domain)
}

func (r *RAG) Domain() regulation.Domain {
	return r.domain
}

// Collection is the vector collection holding the domain corpus
func (r *RAG) Collection() string {
	return string(r.domain)
}

func (r *RAG) SetSearchOptions(opts ...vectordb.SearchOption) {
	r.searchOptions = opts
}

// AddDocuments chunks, embeds and stores docs in the domain collection.
// Returns the number of stored chunks.
func (r *RAG) AddDocuments(ctx context.Context, docs ...*document.Document) (int, *components.LLMUsage, error) {
	var (
		totalUsage = new(components.LLMUsage)
		count      int
	)
	for _, doc := range docs {
		chunks := r.chunker.Chunk(doc.String())
		if len(chunks) == 0 {
			continue
		}
		embeddings, err := embedder.EmbedChunks(ctx, r.embedder, chunks, r.batchSize, totalUsage)
		if err != nil {
			return count, totalUsage, fmt.Errorf("embed %s: %w", doc.Source(), err)
		}
		records := make([]vectordb.Record, 0, len(embeddings))
		for idx, embedding := range embeddings {
			meta := doc.Meta()
			meta["domain"] = string(r.domain)
			meta["chunk"] = strconv.Itoa(idx)
			embedding.Embedding.Object = embedding.Chunk.Text
			embedding.Embedding.Meta = meta
			records = append(records, vectordb.Record{Embedding: embedding.Embedding})
		}
		if err := r.vectordb.Insert(ctx, r.Collection(), records...); err != nil {
			return count, totalUsage, err
		}
		count += len(records)
	}
	return count, totalUsage, nil
}

// Search embeds query and returns the closest records of the domain collection
func (r *RAG) Search(ctx context.Context, query string, opts ...vectordb.SearchOption) ([]vectordb.Record, *components.LLMUsage, error) {
	embedding := new(embedder.Embedding)
	usage := new(components.LLMUsage)
	if err := r.embedder.Embed(ctx, query, embedding, usage); err != nil {
		return nil, usage, err
	}
	searchOpts := append([]vectordb.SearchOption{vectordb.SearchWithCollection(r.Collection())}, opts...)
	records, err := r.vectordb.Search(ctx, embedding.Embedding, searchOpts...)
	if err != nil {
		return nil, usage, err
	}
	return records, usage, nil
}

// Answer retrieves the domain context of the query and asks the chat agent.
// Returns schema.ErrNoContext when retrieval finds nothing.
func (r *RAG) Answer(ctx context.Context, query *schema.Query) (*schema.DomainAnswer, error) {
	start := time.Now()
	usage := new(components.LLMUsage)
	searchQuery, err := r.generateEnhancedQuery(ctx, query, usage)
	if err != nil {
		return nil, err
	}
	records, searchUsage, err := r.Search(ctx, searchQuery, r.searchOptions...)
	usage.Merge(searchUsage)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s", schema.ErrNoContext, query.Text)
	}
	var (
		out     schema.String
		llmResp = new(components.LLMResponse)
		input   = schema.NewString(r.contextGenerator(query.Text, records))
	)
	err = r.agent.Run(ctx, input, &out, llmResp, agents.HistoryMessages(query.History)...)
	usage.Merge(llmResp.Usage)
	if err != nil {
		return nil, err
	}
	return &schema.DomainAnswer{
		Domain:  r.domain,
		Agent:   r.Name(),
		Content: out.String(),
		Sources: Sources(records),
		Usage:   usage,
		Latency: time.Since(start),
	}, nil
}

func (r *RAG) generateEnhancedQuery(ctx context.Context, query *schema.Query, usage *components.LLMUsage) (string, error) {
	if r.enhanceQueryAgent == nil {
		return query.Text, nil
	}
	var (
		out     schema.String
		llmResp = new(components.LLMResponse)
	)
	err := r.enhanceQueryAgent.Run(ctx, schema.NewString(query.Text), &out, llmResp, agents.HistoryMessages(query.History)...)
	usage.Merge(llmResp.Usage)
	if err != nil {
		return "", err
	}
	if v := strings.TrimSpace(out.String()); v != "" {
		return v, nil
	}
	return query.Text, nil
}

// Sources lists the documents behind records, one entry per source with its best score
func Sources(records []vectordb.Record) []schema.Source {
	var (
		ret   []schema.Source
		index = make(map[string]int, len(records))
	)
	for _, record := range records {
		doc := document.NewDocument(record.Embedding.Object, record.Embedding.Meta)
		src := schema.Source{
			Title: doc.Title(),
			URL:   doc.Source(),
			Score: record.Score,
		}
		key := src.URL
		if key == "" {
			key = src.Title
		}
		if idx, ok := index[key]; ok {
			ret[idx].Score = max(ret[idx].Score, src.Score)
			continue
		}
		index[key] = len(ret)
		ret = append(ret, src)
	}
	return ret
}

func defaultContextGenerator(query string, records []vectordb.Record) string {
	sb := new(strings.Builder)
	sb.WriteString("Based on the following excerpts:\n\n")
	for i, record := range records {
		doc := document.NewDocument(record.Embedding.Object, record.Embedding.Meta)
		fmt.Fprintf(sb, "%d. %s\n", i+1, strings.TrimSpace(record.Embedding.Object))
		if src := doc.Source(); src != "" {
			fmt.Fprintf(sb, "  - Source: %s\n", src)
		}
		fmt.Fprintf(sb, "  - Score: %.3f\n", record.Score)
	}
	fmt.Fprintf(sb, "\nPlease provide a comprehensive answer citing the excerpts to this question: %s", query)
	return sb.String()
}
