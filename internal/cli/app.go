package cli

import (
	"fmt"

	"github.com/bububa/regulation-agents/agents"
	"github.com/bububa/regulation-agents/agents/rag"
	"github.com/bububa/regulation-agents/agents/remote"
	"github.com/bububa/regulation-agents/components"
	"github.com/bububa/regulation-agents/components/chat"
	"github.com/bububa/regulation-agents/components/embedder"
	"github.com/bububa/regulation-agents/components/embedder/providers"
	"github.com/bububa/regulation-agents/components/regulation"
	"github.com/bububa/regulation-agents/components/systemprompt"
	"github.com/bububa/regulation-agents/components/systemprompt/cot"
	"github.com/bububa/regulation-agents/components/vectordb"
	"github.com/bububa/regulation-agents/components/vectordb/engines"
	"github.com/bububa/regulation-agents/internal/cache"
	"github.com/bububa/regulation-agents/internal/config"
	"github.com/bububa/regulation-agents/internal/logger"
	"github.com/bububa/regulation-agents/internal/ratelimit"
	"github.com/bububa/regulation-agents/tools"
)

// app holds the components built from the configuration
type app struct {
	cfg          *config.Config
	catalog      *regulation.Catalog
	client       chat.Client
	embedder     embedder.Embedder
	vectordb     vectordb.Engine
	registry     *agents.Registry
	rags         map[regulation.Domain]*rag.RAG
	cache        agents.Cache
	limiter      *ratelimit.Store
	orchestrator *agents.Orchestrator
}

func newApp(cfg *config.Config) (*app, error) {
	catalog, err := cfg.BuildCatalog()
	if err != nil {
		return nil, err
	}
	a := &app{
		cfg:     cfg,
		catalog: catalog,
		rags:    make(map[regulation.Domain]*rag.RAG),
	}
	if a.client, err = chat.New(cfg.LLM.Config); err != nil {
		return nil, err
	}
	if a.embedder, err = providers.New(cfg.Embedder); err != nil {
		return nil, err
	}
	if a.vectordb, err = engines.New(cfg.VectorDB); err != nil {
		return nil, err
	}
	chunker, err := newChunker(cfg.Corpus)
	if err != nil {
		return nil, err
	}
	a.registry = agents.NewRegistry(catalog)
	list, err := cfg.DomainAgents(catalog)
	if err != nil {
		return nil, err
	}
	toolLog := tools.WithLogger(logger.Component("tool"))
	for _, v := range list {
		switch v.Type {
		case config.RemoteAgent:
			var opts []remote.Option
			if v.Name != "" {
				opts = append(opts, remote.WithName(v.Name))
			}
			if v.Token != "" {
				opts = append(opts, remote.WithToken(v.Token))
			}
			a.registry.Register(remote.New(v.Domain, v.URL, opts...), toolLog)
		case config.ChatAgent:
			a.registry.Register(agents.NewChatDomainAgent(v.Domain, a.domainAgent(v)), toolLog)
		default:
			opts := []rag.Option{
				rag.WithEmbedder(a.embedder),
				rag.WithVectorDB(a.vectordb),
				rag.WithChunker(chunker),
			}
			if v.Name != "" {
				opts = append(opts, rag.WithName(v.Name))
			}
			var search []vectordb.SearchOption
			if v.TopK > 0 {
				search = append(search, vectordb.SearchWithTopK(v.TopK))
			}
			if v.MinScore > 0 {
				search = append(search, vectordb.SearchWithMinScore(v.MinScore))
			}
			if len(search) > 0 {
				opts = append(opts, rag.WithSearchOptions(search...))
			}
			r := rag.NewRAG(v.Domain, a.domainAgent(v), opts...)
			a.rags[v.Domain] = r
			a.registry.Register(r, toolLog)
		}
	}

	routerOpts := []agents.RouterOption{
		agents.WithFallback(cfg.Orchestrator.Fallback),
		agents.WithRouterLogger(logger.Component("router")),
	}
	if cfg.Orchestrator.Classifier {
		routerOpts = append(routerOpts, agents.WithClassifier(a.llmAgent("router classifier", agents.ClassifierPrompt(), "", 0)))
	}
	aggregatorOpts := []agents.AggregatorOption{
		agents.WithAggregatorLogger(logger.Component("aggregator")),
	}
	if cfg.Orchestrator.Synthesis {
		aggregatorOpts = append(aggregatorOpts, agents.WithSynthesizer(a.llmAgent("synthesizer", agents.SynthesisPrompt(), "", cfg.LLM.Temperature)))
	}
	if a.cache, err = cache.New(cfg.Cache); err != nil {
		return nil, err
	}
	if a.limiter, err = ratelimit.New(cfg.RateLimit); err != nil {
		return nil, err
	}
	a.orchestrator = agents.NewOrchestrator(a.registry,
		agents.WithRouter(agents.NewRouter(a.registry, routerOpts...)),
		agents.WithAggregator(agents.NewAggregator(catalog, aggregatorOpts...)),
		agents.WithCache(a.cache),
		agents.WithLimiter(a.limiter),
		agents.WithSessions(components.NewSessions(cfg.Orchestrator.MaxSessions, cfg.Orchestrator.MaxMessages)),
		agents.WithOrchestratorConfig(cfg.Orchestrator.OrchestratorConfig),
		agents.WithOrchestratorLogger(logger.Component("orchestrator")),
	)
	return a, nil
}

func (a *app) domainAgent(v config.DomainAgent) *agents.Agent {
	entry, ok := a.catalog.Lookup(v.Domain)
	if !ok {
		entry = regulation.Entry{Domain: v.Domain, Title: string(v.Domain)}
	}
	name := v.Name
	if name == "" {
		name = fmt.Sprintf("%s %s agent", v.Domain, v.Type)
	}
	return a.llmAgent(name, agents.DomainPrompt(entry, cot.AddOutputInstructs(v.Instructions...)), v.Model, a.cfg.LLM.Temperature)
}

func (a *app) llmAgent(name string, prompt systemprompt.Generator, model string, temperature float32) *agents.Agent {
	if model == "" {
		model = a.cfg.LLM.Model
	}
	return agents.NewAgent(
		agents.WithName(name),
		agents.WithClient(a.client),
		agents.WithSystemPromptGenerator(prompt),
		agents.WithModel(model),
		agents.WithTemperature(temperature),
		agents.WithMaxTokens(a.cfg.LLM.MaxTokens),
	)
}

func newChunker(cfg config.CorpusConfig) (*embedder.TextChunker, error) {
	opts := []embedder.TextChunkerOption{}
	if cfg.ChunkSize > 0 {
		opts = append(opts, embedder.WithChunkSize(cfg.ChunkSize))
	}
	if cfg.Overlap > 0 {
		opts = append(opts, embedder.WithChunkOverlap(cfg.Overlap))
	}
	counter, err := embedder.NewTokenCounter(cfg.Tokenizer)
	if err != nil {
		return nil, err
	}
	opts = append(opts, embedder.WithTokenCounter(counter))
	return embedder.NewTextChunker(opts...), nil
}
