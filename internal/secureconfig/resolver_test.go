package secureconfig

import (
	"context"
	"errors"
	"sync"
	"testing"
)

// fakeSource counts calls and serves canned values.
type fakeSource struct {
	mu          sync.Mutex
	params      map[string]string
	secrets     map[string]string
	paramCalls  int
	secretCalls int
	fail        bool
}

func (f *fakeSource) Parameter(ctx context.Context, name string, decrypt bool) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paramCalls++
	if f.fail {
		return "", errors.New("access denied")
	}
	v, ok := f.params[name]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (f *fakeSource) SecretValue(ctx context.Context, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.secretCalls++
	if f.fail {
		return "", errors.New("access denied")
	}
	v, ok := f.secrets[name]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (f *fakeSource) calls() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.paramCalls, f.secretCalls
}

func TestParamCacheHit(t *testing.T) {
	src := &fakeSource{params: map[string]string{"a": "1"}}
	r := NewResolver(src)
	for i := 0; i < 3; i++ {
		v, ok := r.Param(context.Background(), "a", false, "")
		if !ok || v != "1" {
			t.Fatalf("lookup %d: got %q ok=%v", i, v, ok)
		}
	}
	if pc, _ := src.calls(); pc != 1 {
		t.Fatalf("expected exactly 1 store call within TTL, got %d", pc)
	}
}

func TestInvalidateBypassesCacheOnce(t *testing.T) {
	src := &fakeSource{params: map[string]string{"a": "1"}}
	r := NewResolver(src)
	r.Param(context.Background(), "a", false, "")
	r.Invalidate()
	r.Param(context.Background(), "a", false, "")
	r.Param(context.Background(), "a", false, "")
	if pc, _ := src.calls(); pc != 2 {
		t.Fatalf("expected 2 store calls (one per generation), got %d", pc)
	}
}

func TestParamFallbackOnStoreFailure(t *testing.T) {
	src := &fakeSource{fail: true}
	r := NewResolver(src)
	r.lookupEnv = func(k string) (string, bool) {
		if k == "FALLBACK" {
			return "from-env", true
		}
		return "", false
	}
	v, ok := r.Param(context.Background(), "a", false, "FALLBACK")
	if !ok || v != "from-env" {
		t.Fatalf("got %q ok=%v", v, ok)
	}
	// fallback value is cached too
	r.Param(context.Background(), "a", false, "FALLBACK")
	if pc, _ := src.calls(); pc != 1 {
		t.Fatalf("expected fallback to be cached, store calls=%d", pc)
	}
}

func TestParamAbsentEverywhere(t *testing.T) {
	r := NewResolver(&fakeSource{})
	r.lookupEnv = func(string) (string, bool) { return "", false }
	if v, ok := r.Param(context.Background(), "missing", false, "NOPE"); ok {
		t.Fatalf("expected absent, got %q", v)
	}
}

func TestSecretJSONParsed(t *testing.T) {
	src := &fakeSource{secrets: map[string]string{
		"j": `{"user":"u","pass":"p"}`,
		"s": "plain-string",
	}}
	r := NewResolver(src)
	v, ok := r.Secret(context.Background(), "j", "")
	if !ok {
		t.Fatal("expected secret")
	}
	m, ok := v.(map[string]any)
	if !ok || m["user"] != "u" {
		t.Fatalf("expected parsed JSON map, got %T %v", v, v)
	}
	v, _ = r.Secret(context.Background(), "s", "")
	if s, ok := v.(string); !ok || s != "plain-string" {
		t.Fatalf("expected raw string, got %T %v", v, v)
	}
}

func TestSecretStringOnStructured(t *testing.T) {
	src := &fakeSource{secrets: map[string]string{"j": `{"k":"v"}`}}
	r := NewResolver(src)
	if s := r.SecretString(context.Background(), "j", ""); s != "" {
		t.Fatalf("structured secret should coerce to empty string, got %q", s)
	}
}

func TestNilSourceUsesEnvOnly(t *testing.T) {
	r := NewResolver(nil)
	r.lookupEnv = func(k string) (string, bool) { return "env-val", k == "E" }
	if v, ok := r.Param(context.Background(), "x", false, "E"); !ok || v != "env-val" {
		t.Fatalf("got %q ok=%v", v, ok)
	}
}
