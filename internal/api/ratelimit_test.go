package api

import (
	"fmt"
	"testing"
)

func TestIPLimiterPerClient(t *testing.T) {
	l := newIPLimiter(1, 1)
	if !l.allow("10.0.0.1") {
		t.Fatal("first request must pass")
	}
	if l.allow("10.0.0.1") {
		t.Fatal("second request within the window must be limited")
	}
	// a different client has its own bucket
	if !l.allow("10.0.0.2") {
		t.Fatal("other clients must not share the bucket")
	}
}

func TestIPLimiterBoundedEntries(t *testing.T) {
	l := newIPLimiter(1, 1)
	for i := 0; i < maxLimiterEntries+50; i++ {
		l.allow(fmt.Sprintf("203.0.113.%d.%d", i/256, i%256))
	}
	l.mu.Lock()
	n := len(l.lims)
	l.mu.Unlock()
	if n > maxLimiterEntries {
		t.Fatalf("limiter map must stay bounded, got %d entries", n)
	}
	// limiting still works after the reset
	if !l.allow("198.51.100.1") {
		t.Fatal("first request after reset must pass")
	}
	if l.allow("198.51.100.1") {
		t.Fatal("rate limiting must survive the reset")
	}
}
