// Package ratelimit throttles calls to the domain agents with one token bucket per domain
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/bububa/regulation-agents/agents"
	"github.com/bububa/regulation-agents/components/regulation"
)

// Limit token bucket settings, RPS <= 0 disables limiting
type Limit struct {
	RPS   float64 `mapstructure:"rps" validate:"gte=0"`
	Burst int     `mapstructure:"burst" validate:"gte=0"`
}

// Config limiter store config
type Config struct {
	Limit        `mapstructure:",squash"`
	IdleTTL      time.Duration `mapstructure:"idle_ttl" validate:"gte=0"`
	CleanupEvery time.Duration `mapstructure:"cleanup_every" validate:"gte=0"`
	// Domains per domain overrides, keyed by domain tag
	Domains map[string]Limit `mapstructure:"domains" validate:"dive"`
}

// Store keeps one limiter per domain and drops the idle ones.
// threadsafe
type Store struct {
	mu           sync.Mutex
	entries      map[regulation.Domain]*storeEntry
	limit        Limit
	overrides    map[regulation.Domain]Limit
	idleTTL      time.Duration
	cleanupEvery time.Duration
}

type storeEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

var _ agents.Limiter = (*Store)(nil)

type StoreOption func(*Store)

func WithIdleTTL(d time.Duration) StoreOption {
	return func(s *Store) { s.idleTTL = d }
}

func WithCleanupEvery(d time.Duration) StoreOption {
	return func(s *Store) { s.cleanupEvery = d }
}

// WithDomainLimit overrides the limit of one domain
func WithDomainLimit(domain regulation.Domain, l Limit) StoreOption {
	return func(s *Store) { s.overrides[domain] = l }
}

func NewStore(l Limit, opts ...StoreOption) *Store {
	s := &Store{
		entries:      make(map[regulation.Domain]*storeEntry),
		overrides:    make(map[regulation.Domain]Limit),
		limit:        l,
		idleTTL:      15 * time.Minute,
		cleanupEvery: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// New builds a store from config. Unparsable override tags are returned as error.
func New(cfg Config) (*Store, error) {
	var opts []StoreOption
	if cfg.IdleTTL > 0 {
		opts = append(opts, WithIdleTTL(cfg.IdleTTL))
	}
	if cfg.CleanupEvery > 0 {
		opts = append(opts, WithCleanupEvery(cfg.CleanupEvery))
	}
	for tag, l := range cfg.Domains {
		domain, err := regulation.ParseDomain(tag)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithDomainLimit(domain, l))
	}
	return NewStore(cfg.Limit, opts...), nil
}

// Get returns the limiter of a domain, creating it on first use
func (s *Store) Get(domain regulation.Domain) *rate.Limiter {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if ent, ok := s.entries[domain]; ok {
		ent.lastSeen = now
		return ent.lim
	}
	l, ok := s.overrides[domain]
	if !ok {
		l = s.limit
	}
	lim := rate.NewLimiter(rate.Inf, 0)
	if l.RPS > 0 {
		burst := l.Burst
		if burst <= 0 {
			burst = 1
		}
		lim = rate.NewLimiter(rate.Limit(l.RPS), burst)
	}
	s.entries[domain] = &storeEntry{lim: lim, lastSeen: now}
	return lim
}

// Wait blocks until the domain may be called or ctx is done
func (s *Store) Wait(ctx context.Context, domain regulation.Domain) error {
	return s.Get(domain).Wait(ctx)
}

func (s *Store) Cleanup() {
	cutoff := time.Now().Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, ent := range s.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(s.entries, k)
		}
	}
}

// StartJanitor removes idle limiters periodically until ctx is done
func (s *Store) StartJanitor(ctx context.Context) {
	if s.cleanupEvery <= 0 {
		return
	}
	t := time.NewTicker(s.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Cleanup()
			}
		}
	}()
}
