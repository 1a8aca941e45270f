// Package session caches service auth tokens for the lifetime of one user session.
package session

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Store holds at most one token per service.
type Store interface {
	Token(service string) (string, bool, error)
	SetToken(service, token string) error
	ClearToken(service string) error
}

// Closer is a Store that owns resources.
type Closer interface {
	Store
	Close() error
}

// Options controls retention characteristics for concrete store implementations.
type Options struct {
	// TokenTTL bounds how long a persisted token is offered before it is
	// treated as absent. The service may still expire it sooner.
	TokenTTL        time.Duration
	CleanupInterval time.Duration
	// Session scopes persisted tokens so several sessions can share one file.
	Session string
}

const (
	defaultTokenTTL        = 12 * time.Hour
	defaultCleanupInterval = time.Hour
	defaultSession         = "default"
)

// NewStore creates the configured storage backend.
func NewStore(typ, path string, opts Options) (Closer, error) {
	typ = strings.TrimSpace(strings.ToLower(typ))
	opts = normalizeOptions(opts)

	switch typ {
	case "", "memory":
		return NewMemoryStore(), nil
	case "bbolt":
		if strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("bbolt token store requires a path")
		}
		return openBolt(path, opts)
	default:
		return nil, fmt.Errorf("unsupported token store type %q", typ)
	}
}

func normalizeOptions(opts Options) Options {
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = defaultTokenTTL
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = defaultCleanupInterval
	}
	if strings.TrimSpace(opts.Session) == "" {
		opts.Session = defaultSession
	}
	return opts
}

// MemoryStore keeps tokens in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	tokens map[string]string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tokens: make(map[string]string)}
}

func (m *MemoryStore) Token(service string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tok, ok := m.tokens[service]
	return tok, ok, nil
}

func (m *MemoryStore) SetToken(service, token string) error {
	m.mu.Lock()
	m.tokens[service] = token
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) ClearToken(service string) error {
	m.mu.Lock()
	delete(m.tokens, service)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Close() error { return nil }
