package api

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"formbridge/internal/buildinfo"
	"formbridge/internal/metrics"
	"formbridge/internal/model"
)

const maxBodyBytes = 1 << 20 // 1 MB

// DefaultTenant is used when the payload names no tenant.
const DefaultTenant = "default"

// SubmitHandler handles POST /v1/submissions: verify the signature,
// persist, then notify (email, live feed, webhook queue). Notification
// failures never fail the response; the stored submission is the source
// of truth.
func (s *Server) SubmitHandler(w http.ResponseWriter, r *http.Request) {
	s.cors(w)
	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusNoContent)
		return
	case http.MethodPost:
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	ip := clientIP(r)
	if !s.limiter.allow(ip) {
		writeError(w, http.StatusTooManyRequests, "rate limited")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "body too large or unreadable")
		return
	}

	secret := s.Secrets.SecretString(r.Context(), SecretHMAC, "HMAC_SECRET")
	if err := s.Verifier.Verify(r.Header, body, secret, time.Now()); err != nil {
		metrics.Submissions.WithLabelValues("unknown", "unauthorized").Inc()
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	var in model.SubmissionIn
	if err := json.Unmarshal(body, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := validateSubmission(&in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	tenant := in.TenantID
	if tenant == "" {
		tenant = DefaultTenant
	}

	tc := s.Tenants.Resolve(r.Context(), tenant)
	sub := model.Submission{
		ID:              uuid.New().String(),
		TenantID:        tenant,
		TS:              time.Now().Unix(),
		Name:            in.Name,
		Email:           in.Email,
		Message:         in.Message,
		Page:            in.Page,
		IP:              ip,
		UA:              r.UserAgent(),
		BrandPrimaryHex: tc.BrandPrimaryHex,
	}
	if err := s.Store.CreateSubmission(r.Context(), sub); err != nil {
		log.Printf("api: submission write failed tenant=%s: %v", tenant, err)
		metrics.Submissions.WithLabelValues(tenant, "storage_error").Inc()
		writeError(w, http.StatusInternalServerError, "storage failure")
		return
	}
	metrics.Submissions.WithLabelValues(tenant, "ok").Inc()

	s.notifyEmail(r, tc, sub)
	s.Broker.Publish(tenant, model.SubmissionEvent{
		Type: "submission.created",
		Data: map[string]any{"id": sub.ID, "tenant_id": tenant, "name": sub.Name, "ts": sub.TS, "page": sub.Page},
	})
	// Enqueue failure is logged inside; the submission is already durable.
	_ = s.Enq.Enqueue(r.Context(), sub, tc.Webhooks)

	writeJSON(w, http.StatusOK, map[string]string{"id": sub.ID})
}

func (s *Server) notifyEmail(r *http.Request, tc model.TenantConfig, sub model.Submission) {
	if s.Mail == nil || len(tc.Recipients) == 0 {
		return
	}
	subject := fmt.Sprintf("New submission from %s", sub.Name)
	if tc.SubjectPrefix != "" {
		subject = tc.SubjectPrefix + " " + subject
	}
	body := fmt.Sprintf("Tenant: %s\nFrom: %s <%s>\nPage: %s\n\n%s\n", sub.TenantID, sub.Name, sub.Email, sub.Page, sub.Message)
	if tc.DashboardURL != "" {
		body += "\nDashboard: " + tc.DashboardURL + "\n"
	}
	if err := s.Mail.Send(r.Context(), tc.Recipients, subject, body); err != nil {
		log.Printf("api: email notify failed tenant=%s: %v", sub.TenantID, err)
		metrics.EmailSends.WithLabelValues("error").Inc()
		return
	}
	metrics.EmailSends.WithLabelValues("ok").Inc()
}

// AdminSubmissionsHandler handles GET /v1/admin/submissions for the
// dashboard's recent-activity view.
func (s *Server) AdminSubmissionsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	tenant := r.URL.Query().Get("tenant_id")
	if tenant == "" {
		tenant = DefaultTenant
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		fmt.Sscanf(v, "%d", &limit)
	}
	items, err := s.Store.ListSubmissions(r.Context(), tenant, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// AdminInvalidateHandler handles POST /v1/admin/config/invalidate:
// bumps the resolver generation so the next lookups refetch.
func (s *Server) AdminInvalidateHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	s.Secrets.Invalidate()
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// EventsStreamHandler streams submission events over SSE for the
// dashboard: GET /v1/events/stream?tenant_id=...
func (s *Server) EventsStreamHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	tenant := r.URL.Query().Get("tenant_id")
	if tenant == "" {
		tenant = DefaultTenant
	}
	fl, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	ch := s.Broker.Subscribe(tenant)
	defer s.Broker.Unsubscribe(tenant, ch)
	keepalive := time.NewTicker(15 * time.Second)
	defer keepalive.Stop()
	for {
		select {
		case evt, open := <-ch:
			if !open {
				return
			}
			data, _ := json.Marshal(evt.Data)
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Type, data)
			fl.Flush()
		case <-keepalive.C:
			fmt.Fprint(w, ": ping\n\n")
			fl.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "build": buildinfo.Info()})
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	if _, err := s.Store.ListSubmissions(r.Context(), DefaultTenant, 1); err != nil {
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// MetricsHandler serves the Prometheus registry.
func (s *Server) MetricsHandler() http.Handler {
	metrics.RegisterDefault()
	return promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})
}

func (s *Server) cors(w http.ResponseWriter) {
	origin := s.Cfg.CORSOrigin
	if origin == "" {
		origin = "*"
	}
	w.Header().Set("Access-Control-Allow-Origin", origin)
	w.Header().Set("Access-Control-Allow-Methods", "POST,OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Timestamp, X-Signature")
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
