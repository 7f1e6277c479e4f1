package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"formbridge/internal/metrics"
	"formbridge/internal/model"
	"formbridge/internal/signature"
)

const (
	// DefaultTimeout bounds one outbound webhook POST.
	DefaultTimeout = 10 * time.Second
	// DefaultFallbackColor is the embed color used when the brand hex
	// does not parse.
	DefaultFallbackColor = 953833

	slackExcerptLen   = 100
	discordExcerptLen = 200
)

// Engine delivers one dispatch job to all of its webhooks. Webhooks are
// independent: a failure in one never aborts the others.
type Engine struct {
	HTTP    *http.Client
	Timeout time.Duration
}

func NewEngine() *Engine {
	return &Engine{
		HTTP:    &http.Client{Timeout: DefaultTimeout},
		Timeout: DefaultTimeout,
	}
}

// DispatchJob fans the job out to each webhook concurrently and returns
// one result per webhook, keyed by ordinal index. Never returns an
// error: partial failure is reported in the batch, not raised.
func (e *Engine) DispatchJob(ctx context.Context, job model.DispatchJob) model.BatchResult {
	results := make([]model.DispatchResult, len(job.Webhooks))
	var wg sync.WaitGroup
	for i, wh := range job.Webhooks {
		wg.Add(1)
		go func(i int, wh model.WebhookSpec) {
			defer wg.Done()
			results[i] = e.deliver(ctx, job, i, wh)
		}(i, wh)
	}
	wg.Wait()
	success := true
	for _, r := range results {
		if !r.Success {
			success = false
			break
		}
	}
	return model.BatchResult{JobID: job.ID, TenantID: job.TenantID, Success: success, Results: results}
}

func (e *Engine) deliver(ctx context.Context, job model.DispatchJob, idx int, wh model.WebhookSpec) model.DispatchResult {
	res := model.DispatchResult{Index: idx, Kind: wh.Kind}
	if wh.URL == "" {
		log.Printf("dispatch: tenant=%s job=%s webhook=%d missing url", job.TenantID, job.ID, idx)
		res.Category = model.ErrCategoryConfig
		res.Error = "missing url"
		metrics.WebhookDeliveries.WithLabelValues(string(wh.Kind), "config_error").Inc()
		return res
	}
	body, header, err := buildPayload(job, wh)
	if err != nil {
		res.Category = model.ErrCategoryConfig
		res.Error = err.Error()
		metrics.WebhookDeliveries.WithLabelValues(string(wh.Kind), "config_error").Inc()
		return res
	}

	timeout := e.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(cctx, http.MethodPost, wh.URL, bytes.NewReader(body))
	if err != nil {
		res.Category = model.ErrCategoryConfig
		res.Error = err.Error()
		metrics.WebhookDeliveries.WithLabelValues(string(wh.Kind), "config_error").Inc()
		return res
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}

	host := hostForLog(wh.URL)
	start := time.Now()
	resp, err := e.HTTP.Do(req)
	res.LatencyMs = int(time.Since(start).Milliseconds())
	status := "ok"
	switch {
	case err != nil:
		if isTimeout(err) {
			res.Category = model.ErrCategoryTimeout
			res.Error = fmt.Sprintf("timeout after %s", timeout)
			status = "timeout"
		} else {
			res.Category = model.ErrCategoryTransport
			res.Error = err.Error()
			status = "transport_error"
		}
		log.Printf("dispatch: tenant=%s job=%s type=%s host=%s failed: %s", job.TenantID, job.ID, wh.Kind, host, res.Error)
	default:
		if resp.Body != nil {
			_ = resp.Body.Close()
		}
		res.StatusCode = resp.StatusCode
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			res.Success = true
			log.Printf("dispatch: tenant=%s job=%s type=%s host=%s status=%d", job.TenantID, job.ID, wh.Kind, host, resp.StatusCode)
		} else {
			res.Category = model.ErrCategoryHTTP
			res.Error = "HTTP " + strconv.Itoa(resp.StatusCode)
			status = "http_error"
			log.Printf("dispatch: tenant=%s job=%s type=%s host=%s status=%d", job.TenantID, job.ID, wh.Kind, host, resp.StatusCode)
		}
	}
	metrics.WebhookDeliveries.WithLabelValues(string(wh.Kind), status).Inc()
	metrics.WebhookLatency.WithLabelValues(string(wh.Kind), status).Observe(float64(res.LatencyMs))
	return res
}

// buildPayload shapes the provider-specific body and extra headers.
// The switch is exhaustive over the known kinds; unknown kinds fall back
// to the generic shape so a config typo degrades rather than drops.
func buildPayload(job model.DispatchJob, wh model.WebhookSpec) ([]byte, map[string]string, error) {
	switch wh.Kind {
	case model.WebhookSlack:
		return slackPayload(job), nil, nil
	case model.WebhookDiscord:
		return discordPayload(job), nil, nil
	case model.WebhookGeneric:
		return genericPayload(job, wh)
	default:
		return genericPayload(job, wh)
	}
}

func slackPayload(job model.DispatchJob) []byte {
	sub := job.Submission
	text := fmt.Sprintf("[%s] %s: %s", job.TenantID, sub.Name, excerpt(sub.Message, slackExcerptLen))
	b, _ := json.Marshal(map[string]string{"text": text})
	return b
}

type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type discordEmbed struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Fields      []discordField `json:"fields"`
	Color       int64          `json:"color"`
}

type discordMessage struct {
	Username string         `json:"username"`
	Embeds   []discordEmbed `json:"embeds"`
}

func discordPayload(job model.DispatchJob) []byte {
	sub := job.Submission
	msg := discordMessage{
		Username: "FormBridge",
		Embeds: []discordEmbed{{
			Title:       "New Submission: " + job.TenantID,
			Description: fmt.Sprintf("%s (%s)", sub.Name, sub.Email),
			Fields: []discordField{{
				Name:  "Message",
				Value: excerpt(sub.Message, discordExcerptLen),
			}},
			Color: parseBrandColor(sub.BrandPrimaryHex),
		}},
	}
	b, _ := json.Marshal(msg)
	return b
}

// genericPayload serializes the full submission record. Field order is
// fixed by the struct, so the signed bytes are canonical.
func genericPayload(job model.DispatchJob, wh model.WebhookSpec) ([]byte, map[string]string, error) {
	sub := job.Submission
	body, err := json.Marshal(struct {
		TenantID        string `json:"tenant_id"`
		ID              string `json:"id"`
		TS              int64  `json:"ts"`
		Name            string `json:"name"`
		Email           string `json:"email"`
		Message         string `json:"message"`
		Page            string `json:"page"`
		IP              string `json:"ip"`
		UA              string `json:"ua"`
		BrandPrimaryHex string `json:"brand_primary_hex,omitempty"`
	}{sub.TenantID, sub.ID, sub.TS, sub.Name, sub.Email, sub.Message, sub.Page, sub.IP, sub.UA, sub.BrandPrimaryHex})
	if err != nil {
		return nil, nil, err
	}
	if wh.HMACSecret == "" {
		return body, nil, nil
	}
	name := wh.HMACHeader
	if name == "" {
		name = model.DefaultHMACHeader
	}
	return body, map[string]string{name: signature.Sign(wh.HMACSecret, body)}, nil
}

// parseBrandColor converts "#RRGGBB" to its decimal value for Discord.
func parseBrandColor(hexColor string) int64 {
	v, err := strconv.ParseInt(strings.TrimPrefix(hexColor, "#"), 16, 64)
	if err != nil || v < 0 {
		return DefaultFallbackColor
	}
	return v
}

// excerpt truncates to n runes with an ellipsis marker.
func excerpt(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// hostForLog reduces a webhook URL to its hostname so logs never leak
// embedded tokens or credentials.
func hostForLog(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		if len(raw) > 20 {
			return raw[:20]
		}
		return raw
	}
	return u.Hostname()
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
