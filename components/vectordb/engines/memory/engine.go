package memory

import (
	"context"
	"math"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/bububa/regulation-agents/components/vectordb"
)

// Engine implements the VectorDB interface using in-memory storage.
// It provides thread-safe operations for managing collections and performing
// vector similarity searches without the need for external database systems.
type Engine struct {
	// collections stores all vector collections in memory
	collections *sync.Map
	vectordb.Options
}

var _ vectordb.Engine = (*Engine)(nil)

// Collection is a named set of records.
type Collection struct {
	// records holds the actual records in the collection, keyed by position in order
	records []vectordb.Record
	index   map[string]int
	mu      sync.RWMutex
}

func newCollection() *Collection {
	return &Collection{
		index: make(map[string]int),
	}
}

// AddRecords appends records, replacing any record with the same id
func (c *Collection) AddRecords(records ...vectordb.Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range records {
		if idx, ok := c.index[r.ID]; ok {
			c.records[idx] = r
			continue
		}
		c.index[r.ID] = len(c.records)
		c.records = append(c.records, r)
	}
}

// Records returns a copy of the stored records
func (c *Collection) Records() []vectordb.Record {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ret := make([]vectordb.Record, len(c.records))
	copy(ret, c.records)
	return ret
}

func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}

// New creates a new in-memory vector database instance.
func New(opts ...vectordb.Option) *Engine {
	ret := &Engine{
		collections: new(sync.Map),
	}
	ret.EngineType = vectordb.Memory
	for _, opt := range opts {
		opt(&ret.Options)
	}
	return ret
}

// HasCollection checks if a collection with the given name exists in the database.
func (e *Engine) HasCollection(name string) bool {
	_, exists := e.collections.Load(name)
	return exists
}

// DropCollection removes a collection and all its data from the database.
func (e *Engine) DropCollection(_ context.Context, name string) error {
	e.collections.Delete(name)
	return nil
}

// Collection returns the named collection, creating it on first use
func (e *Engine) Collection(name string) *Collection {
	col, _ := e.collections.LoadOrStore(name, newCollection())
	return col.(*Collection)
}

func (e *Engine) Count(_ context.Context, name string) (int, error) {
	col, ok := e.collections.Load(name)
	if !ok {
		return 0, nil
	}
	return col.(*Collection).Len(), nil
}

func (e *Engine) Insert(ctx context.Context, collectionName string, records ...vectordb.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	docs := make([]vectordb.Record, 0, len(records))
	for _, record := range records {
		if record.ID == "" {
			record.ID = record.Embedding.UUID()
		}
		docs = append(docs, record)
	}
	e.Collection(collectionName).AddRecords(docs...)
	return nil
}

// Search ranks records by L2 distance. Score is 1/(1+distance) so 1 is an exact match.
func (e *Engine) Search(ctx context.Context, vector []float32, opts ...vectordb.SearchOption) ([]vectordb.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	option := e.ResolveSearch(opts...)
	col, ok := e.collections.Load(option.Collection)
	if !ok {
		return nil, nil
	}
	records := filterRecords(col.(*Collection).Records(), &option)
	ret := make([]vectordb.Record, 0, len(records))
	for _, record := range records {
		if len(record.Embedding.Embedding) != len(vector) {
			continue
		}
		record.Score = 1 / (1 + euclideanDistance(vector, record.Embedding.Embedding))
		ret = append(ret, record)
	}
	sort.SliceStable(ret, func(i, j int) bool {
		return ret[i].Score > ret[j].Score
	})
	ret = vectordb.FilterScore(ret, option.MinScore)
	topK := min(option.TopK, len(ret))
	return ret[:topK], nil
}

// filterRecords filters a map of documents by metadata and content.
// It does this concurrently.
func filterRecords(docs []vectordb.Record, opts *vectordb.SearchOptions) []vectordb.Record {
	if len(opts.Meta) == 0 && opts.Include == "" && opts.Exclude == "" {
		return docs
	}
	filteredDocs := make([]vectordb.Record, 0, len(docs))
	filteredDocsLock := sync.Mutex{}

	// Use number of docs or CPUs, whichever is smaller.
	concurrency := min(runtime.NumCPU(), len(docs))

	docChan := make(chan vectordb.Record, concurrency*2)

	wg := sync.WaitGroup{}
	for range concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for doc := range docChan {
				if recordMatchesFilters(&doc, opts) {
					filteredDocsLock.Lock()
					filteredDocs = append(filteredDocs, doc)
					filteredDocsLock.Unlock()
				}
			}
		}()
	}

	for _, doc := range docs {
		docChan <- doc
	}
	close(docChan)

	wg.Wait()
	return filteredDocs
}

// recordMatchesFilters checks if a document matches the given filters.
func recordMatchesFilters(record *vectordb.Record, opts *vectordb.SearchOptions) bool {
	// metadata must have *all* the fields in the where clause.
	for k, v := range opts.Meta {
		if record.Embedding.Meta[k] != v {
			return false
		}
	}
	if opts.Include != "" && !strings.Contains(record.Embedding.Object, opts.Include) {
		return false
	}
	if opts.Exclude != "" && strings.Contains(record.Embedding.Object, opts.Exclude) {
		return false
	}
	return true
}

// euclideanDistance computes the L2 (Euclidean) distance between two vectors.
func euclideanDistance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		diff := float64(a[i]) - float64(b[i])
		sum += diff * diff
	}
	return math.Sqrt(sum)
}
