package systemprompt

import (
	"fmt"
	"sync"
)

// Generator is system prompt generator framework
type Generator interface {
	Generate() string
	// ContextProvider retrieves a context provider by name.
	// If the context provider is not found returns not found error
	ContextProvider(title string) (ContextProvider, error)
	// AddContextProviders registers new context providers
	AddContextProviders(providers ...ContextProvider)
	// RemoveContextProviders Unregisters an existing context provider.
	RemoveContextProviders(titles ...string)
}

// BaseGenerator keeps the context providers of a generator.
// threadsafe
type BaseGenerator struct {
	contextProviders []ContextProvider
	mtx              sync.RWMutex
}

// ContextProviders returns a copy of registered providers
func (g *BaseGenerator) ContextProviders() []ContextProvider {
	g.mtx.RLock()
	defer g.mtx.RUnlock()
	ret := make([]ContextProvider, len(g.contextProviders))
	copy(ret, g.contextProviders)
	return ret
}

// ContextProvider retrieves a context provider by name.
// If the context provider is not found returns not found error
func (g *BaseGenerator) ContextProvider(title string) (ContextProvider, error) {
	g.mtx.RLock()
	defer g.mtx.RUnlock()
	for _, p := range g.contextProviders {
		if p.Title() == title {
			return p, nil
		}
	}
	return nil, fmt.Errorf("context provider '%s' not found", title)
}

// AddContextProviders registers new context providers, a provider with a known title replaces the old one
func (g *BaseGenerator) AddContextProviders(providers ...ContextProvider) {
	g.mtx.Lock()
	defer g.mtx.Unlock()
	for _, provider := range providers {
		found := false
		for idx, p := range g.contextProviders {
			if p.Title() == provider.Title() {
				g.contextProviders[idx] = provider
				found = true
				break
			}
		}
		if !found {
			g.contextProviders = append(g.contextProviders, provider)
		}
	}
}

// RemoveContextProviders Unregisters an existing context provider.
func (g *BaseGenerator) RemoveContextProviders(titles ...string) {
	mp := make(map[string]struct{}, len(titles))
	for _, v := range titles {
		mp[v] = struct{}{}
	}
	g.mtx.Lock()
	defer g.mtx.Unlock()
	providers := make([]ContextProvider, 0, len(g.contextProviders))
	for _, p := range g.contextProviders {
		if _, found := mp[p.Title()]; found {
			continue
		}
		providers = append(providers, p)
	}
	g.contextProviders = providers
}

// ContextSection renders the providers as the extra information section
func (g *BaseGenerator) ContextSection() []string {
	providers := g.ContextProviders()
	if len(providers) == 0 {
		return nil
	}
	parts := make([]string, 0, len(providers)*3+1)
	parts = append(parts, "# EXTRA INFORMATION AND CONTEXT")
	for _, provider := range providers {
		if info := provider.Info(); info != "" {
			parts = append(parts, fmt.Sprintf("## %s", provider.Title()))
			parts = append(parts, info)
			parts = append(parts, "")
		}
	}
	return parts
}
