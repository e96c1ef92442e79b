package agents

import (
	"sync"

	"github.com/bububa/regulation-agents/components/regulation"
	"github.com/bububa/regulation-agents/tools"
	"github.com/bububa/regulation-agents/tools/connected"
)

// Registry keeps the connected tool of every domain agent, in registration order.
// threadsafe
type Registry struct {
	catalog *regulation.Catalog
	tools   []*connected.Tool
	mtx     sync.RWMutex
}

func NewRegistry(catalog *regulation.Catalog) *Registry {
	if catalog == nil {
		catalog = regulation.DefaultCatalog()
	}
	return &Registry{catalog: catalog}
}

func (r *Registry) Catalog() *regulation.Catalog {
	return r.catalog
}

// Register connects agent as a tool, replacing the previous agent of the same domain.
// Tool description defaults to the catalog description of the domain.
func (r *Registry) Register(agent DomainAgent, opts ...tools.Option) *connected.Tool {
	if entry, ok := r.catalog.Lookup(agent.Domain()); ok && entry.Description != "" {
		opts = append([]tools.Option{tools.WithDescription(entry.Description)}, opts...)
	}
	tool := connected.New(agent, opts...)
	r.mtx.Lock()
	defer r.mtx.Unlock()
	for idx, v := range r.tools {
		if v.Domain() == tool.Domain() {
			r.tools[idx] = tool
			return tool
		}
	}
	r.tools = append(r.tools, tool)
	return tool
}

func (r *Registry) Tool(domain regulation.Domain) (*connected.Tool, bool) {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	for _, v := range r.tools {
		if v.Domain() == domain {
			return v, true
		}
	}
	return nil, false
}

func (r *Registry) Has(domain regulation.Domain) bool {
	_, ok := r.Tool(domain)
	return ok
}

func (r *Registry) Tools() []*connected.Tool {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	ret := make([]*connected.Tool, len(r.tools))
	copy(ret, r.tools)
	return ret
}

func (r *Registry) Domains() []regulation.Domain {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	ret := make([]regulation.Domain, 0, len(r.tools))
	for _, v := range r.tools {
		ret = append(ret, v.Domain())
	}
	return ret
}
