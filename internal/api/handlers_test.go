package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"formbridge/internal/config"
	"formbridge/internal/model"
	"formbridge/internal/signature"
	"formbridge/internal/store"
)

func testConfig(hmacEnabled bool) config.Config {
	return config.Config{
		Listen:     ":0",
		CORSOrigin: "*",
		HMAC:       config.HMACConfig{Enabled: hmacEnabled, MaxSkewSec: 300},
		Webhook:    config.WebhookConfig{TimeoutSec: 10, MaxAttempts: 3, BatchSize: 10},
		RateLimit:  config.RateLimitConfig{RPS: 1000, Burst: 1000},
	}
}

func newTestServer(t *testing.T, hmacEnabled bool) *Server {
	t.Helper()
	s, err := NewServer(testConfig(hmacEnabled))
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return s
}

func postSubmission(t *testing.T, s *Server, body []byte, sign func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/submissions", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if sign != nil {
		sign(req)
	}
	s.SubmitHandler(rr, req)
	return rr
}

func TestHealthReady(t *testing.T) {
	s := newTestServer(t, false)
	rr := httptest.NewRecorder()
	s.HealthHandler(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != 200 {
		t.Fatalf("health: got %d", rr.Code)
	}
	rr = httptest.NewRecorder()
	s.ReadyHandler(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != 200 {
		t.Fatalf("ready: got %d", rr.Code)
	}
}

func TestSubmitAndAdminList(t *testing.T) {
	s := newTestServer(t, false)
	body := []byte(`{"tenant_id":"acme","name":"Ada","email":"ada@example.com","message":"hello","page":"/contact"}`)
	rr := postSubmission(t, s, body, nil)
	if rr.Code != 200 {
		t.Fatalf("submit: got %d body=%s", rr.Code, rr.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil || resp["id"] == "" {
		t.Fatalf("response: %s err=%v", rr.Body.String(), err)
	}

	rr = httptest.NewRecorder()
	s.AdminSubmissionsHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/admin/submissions?tenant_id=acme", nil))
	if rr.Code != 200 {
		t.Fatalf("admin list: got %d", rr.Code)
	}
	var list struct {
		Items []model.Submission `json:"items"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil || len(list.Items) != 1 {
		t.Fatalf("items: %s err=%v", rr.Body.String(), err)
	}
	if list.Items[0].ID != resp["id"] || list.Items[0].UA == "" && list.Items[0].Name != "Ada" {
		t.Fatalf("stored submission: %+v", list.Items[0])
	}
}

func TestSubmitValidation(t *testing.T) {
	s := newTestServer(t, false)
	cases := []struct {
		name string
		body string
	}{
		{"missing name", `{"email":"a@b.co","message":"x"}`},
		{"missing email", `{"name":"A","message":"x"}`},
		{"bad email", `{"name":"A","email":"not-an-email","message":"x"}`},
		{"missing message", `{"name":"A","email":"a@b.co"}`},
		{"invalid json", `{`},
	}
	for _, tc := range cases {
		rr := postSubmission(t, s, []byte(tc.body), nil)
		if rr.Code != 400 {
			t.Fatalf("%s: got %d", tc.name, rr.Code)
		}
		var resp map[string]string
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil || resp["error"] == "" {
			t.Fatalf("%s: error body %s", tc.name, rr.Body.String())
		}
	}
}

func TestSubmitSignatureRequired(t *testing.T) {
	t.Setenv("HMAC_SECRET", "shh")
	s := newTestServer(t, true)
	body := []byte(`{"name":"Ada","email":"ada@example.com","message":"signed"}`)

	// unsigned
	rr := postSubmission(t, s, body, nil)
	if rr.Code != 401 {
		t.Fatalf("unsigned: got %d", rr.Code)
	}

	// properly signed
	rr = postSubmission(t, s, body, func(req *http.Request) {
		ts := time.Now().Unix()
		req.Header.Set("X-Timestamp", strconv.FormatInt(ts, 10))
		req.Header.Set("X-Signature", signature.SignRequest("shh", ts, body))
	})
	if rr.Code != 200 {
		t.Fatalf("signed: got %d body=%s", rr.Code, rr.Body.String())
	}

	// wrong secret
	rr = postSubmission(t, s, body, func(req *http.Request) {
		ts := time.Now().Unix()
		req.Header.Set("X-Timestamp", strconv.FormatInt(ts, 10))
		req.Header.Set("X-Signature", signature.SignRequest("wrong", ts, body))
	})
	if rr.Code != 401 {
		t.Fatalf("bad secret: got %d", rr.Code)
	}
	var resp map[string]string
	_ = json.Unmarshal(rr.Body.Bytes(), &resp)
	if resp["error"] != "invalid signature" {
		t.Fatalf("reason: %q", resp["error"])
	}

	// stale timestamp, correctly signed
	rr = postSubmission(t, s, body, func(req *http.Request) {
		ts := time.Now().Add(-time.Hour).Unix()
		req.Header.Set("X-Timestamp", strconv.FormatInt(ts, 10))
		req.Header.Set("X-Signature", signature.SignRequest("shh", ts, body))
	})
	if rr.Code != 401 {
		t.Fatalf("stale: got %d", rr.Code)
	}
	_ = json.Unmarshal(rr.Body.Bytes(), &resp)
	if resp["error"] != "stale or missing timestamp" {
		t.Fatalf("stale reason: %q", resp["error"])
	}
}

func TestSubmitDisabledVerificationIgnoresHeaders(t *testing.T) {
	s := newTestServer(t, false)
	body := []byte(`{"name":"Ada","email":"ada@example.com","message":"hi"}`)
	rr := postSubmission(t, s, body, func(req *http.Request) {
		req.Header.Set("X-Timestamp", "garbage")
		req.Header.Set("X-Signature", "garbage")
	})
	if rr.Code != 200 {
		t.Fatalf("disabled verification: got %d", rr.Code)
	}
}

func TestSubmitEnqueuesWebhookJob(t *testing.T) {
	s := newTestServer(t, false)
	mem := s.Store.(*store.Memory)
	_ = mem.SaveTenantOverride(context.Background(), "acme", map[string]any{
		"webhooks": []any{
			map[string]any{"type": "slack", "url": "https://hooks.example/x"},
		},
	})
	body := []byte(`{"tenant_id":"acme","name":"Ada","email":"ada@example.com","message":"hi"}`)
	if rr := postSubmission(t, s, body, nil); rr.Code != 200 {
		t.Fatalf("submit: got %d", rr.Code)
	}
	jobs, err := s.Queue.Dequeue(context.Background(), 1, 100*time.Millisecond)
	if err != nil || len(jobs) != 1 {
		t.Fatalf("jobs: %d err=%v", len(jobs), err)
	}
	if jobs[0].TenantID != "acme" || len(jobs[0].Webhooks) != 1 {
		t.Fatalf("job: %+v", jobs[0])
	}
}

func TestSubmitNoWebhooksNoJob(t *testing.T) {
	s := newTestServer(t, false)
	body := []byte(`{"name":"Ada","email":"ada@example.com","message":"hi"}`)
	if rr := postSubmission(t, s, body, nil); rr.Code != 200 {
		t.Fatal("submit failed")
	}
	if jobs, _ := s.Queue.Dequeue(context.Background(), 1, 20*time.Millisecond); len(jobs) != 0 {
		t.Fatalf("no webhooks configured, queue should be empty: %+v", jobs)
	}
}

func TestSubmitMethodsAndCORS(t *testing.T) {
	s := newTestServer(t, false)
	rr := httptest.NewRecorder()
	s.SubmitHandler(rr, httptest.NewRequest(http.MethodOptions, "/v1/submissions", nil))
	if rr.Code != 204 {
		t.Fatalf("options: got %d", rr.Code)
	}
	if rr.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Fatal("missing CORS header")
	}
	rr = httptest.NewRecorder()
	s.SubmitHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/submissions", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("get: got %d", rr.Code)
	}
}

func TestAdminInvalidate(t *testing.T) {
	s := newTestServer(t, false)
	rr := httptest.NewRecorder()
	s.AdminInvalidateHandler(rr, httptest.NewRequest(http.MethodPost, "/v1/admin/config/invalidate", nil))
	if rr.Code != 200 {
		t.Fatalf("invalidate: got %d", rr.Code)
	}
	rr = httptest.NewRecorder()
	s.AdminInvalidateHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/admin/config/invalidate", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("get: got %d", rr.Code)
	}
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig(false)
	cfg.RateLimit = config.RateLimitConfig{RPS: 1, Burst: 1}
	s, err := NewServer(cfg)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	body := []byte(`{"name":"Ada","email":"ada@example.com","message":"hi"}`)
	if rr := postSubmission(t, s, body, nil); rr.Code != 200 {
		t.Fatalf("first: got %d", rr.Code)
	}
	if rr := postSubmission(t, s, body, nil); rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second: got %d", rr.Code)
	}
}
