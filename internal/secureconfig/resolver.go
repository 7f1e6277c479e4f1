// Package secureconfig resolves parameters and secrets from a secure
// store with TTL caching, generation-based invalidation, and
// environment-variable fallback.
package secureconfig

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"
)

const (
	// CacheTTL is how long a resolved value is served before refetch.
	CacheTTL = 10 * time.Minute
	// SourceTimeout bounds a single secure-store call.
	SourceTimeout = 2 * time.Second
)

// ErrNotFound is returned by sources when a key has no value.
var ErrNotFound = errors.New("not found")

// Source is the secure store behind the resolver. Parameters and secrets
// live in separate namespaces; both may be absent.
type Source interface {
	Parameter(ctx context.Context, name string, decrypt bool) (string, error)
	SecretValue(ctx context.Context, name string) (string, error)
}

type entry struct {
	val any
	at  time.Time
}

// Resolver caches secure-store lookups. Invalidate bumps a generation
// counter, so prior entries become misses without enumeration. Safe for
// concurrent use; entries are swapped whole under the lock.
type Resolver struct {
	src     Source
	ttl     time.Duration
	timeout time.Duration

	mu    sync.RWMutex
	gen   uint64
	cache map[string]entry

	// lookupEnv is swappable in tests; defaults to os.LookupEnv.
	lookupEnv func(string) (string, bool)
}

func NewResolver(src Source) *Resolver {
	return &Resolver{
		src:       src,
		ttl:       CacheTTL,
		timeout:   SourceTimeout,
		cache:     map[string]entry{},
		lookupEnv: os.LookupEnv,
	}
}

// Param resolves a non-secret parameter. Returns the value and true, or
// "" and false when absent everywhere. Store failures degrade to the
// fallback env var and never propagate.
func (r *Resolver) Param(ctx context.Context, name string, decrypt bool, fallbackEnv string) (string, bool) {
	key := r.cacheKey("param", name)
	if v, ok := r.cached(key); ok {
		s, _ := v.(string)
		return s, true
	}
	if r.src != nil {
		cctx, cancel := context.WithTimeout(ctx, r.timeout)
		v, err := r.src.Parameter(cctx, name, decrypt)
		cancel()
		if err == nil {
			r.put(key, v)
			return v, true
		}
		log.Printf("secureconfig: parameter %s unavailable (%v), using fallback", name, err)
	}
	if fallbackEnv != "" {
		if v, ok := r.lookupEnv(fallbackEnv); ok && v != "" {
			r.put(key, v)
			return v, true
		}
	}
	return "", false
}

// Secret resolves a secret. Values that are valid JSON are parsed and
// cached as structured data; everything else is a raw string.
func (r *Resolver) Secret(ctx context.Context, name string, fallbackEnv string) (any, bool) {
	key := r.cacheKey("secret", name)
	if v, ok := r.cached(key); ok {
		return v, true
	}
	if r.src != nil {
		cctx, cancel := context.WithTimeout(ctx, r.timeout)
		raw, err := r.src.SecretValue(cctx, name)
		cancel()
		if err == nil {
			v := parseSecret(raw)
			r.put(key, v)
			return v, true
		}
		log.Printf("secureconfig: secret %s unavailable (%v), using fallback", name, err)
	}
	if fallbackEnv != "" {
		if raw, ok := r.lookupEnv(fallbackEnv); ok && raw != "" {
			v := parseSecret(raw)
			r.put(key, v)
			return v, true
		}
	}
	return nil, false
}

// SecretString resolves a secret and coerces it to a string; structured
// secrets yield "" (callers wanting structure use Secret).
func (r *Resolver) SecretString(ctx context.Context, name string, fallbackEnv string) string {
	v, ok := r.Secret(ctx, name, fallbackEnv)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// Invalidate makes all cached entries stale by bumping the generation.
func (r *Resolver) Invalidate() {
	r.mu.Lock()
	r.gen++
	// Drop the old map wholesale; stale generations are never read again.
	r.cache = map[string]entry{}
	r.mu.Unlock()
}

func (r *Resolver) cacheKey(kind, name string) string {
	r.mu.RLock()
	g := r.gen
	r.mu.RUnlock()
	return fmt.Sprintf("%s:%s:v%d", kind, name, g)
}

func (r *Resolver) cached(key string) (any, bool) {
	r.mu.RLock()
	e, ok := r.cache[key]
	r.mu.RUnlock()
	if !ok || time.Since(e.at) > r.ttl {
		return nil, false
	}
	return e.val, true
}

func (r *Resolver) put(key string, v any) {
	r.mu.Lock()
	r.cache[key] = entry{val: v, at: time.Now()}
	r.mu.Unlock()
}

func parseSecret(raw string) any {
	var parsed any
	if err := json.Unmarshal([]byte(raw), &parsed); err == nil {
		switch parsed.(type) {
		case map[string]any, []any:
			return parsed
		}
	}
	return raw
}
