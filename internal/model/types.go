package model

// SubmissionIn is the inbound form payload before validation.
type SubmissionIn struct {
	TenantID string `json:"tenant_id,omitempty"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Message  string `json:"message"`
	Page     string `json:"page,omitempty"`
}

// Submission is a persisted form submission.
type Submission struct {
	ID              string `json:"id"`
	TenantID        string `json:"tenant_id"`
	TS              int64  `json:"ts"`
	Name            string `json:"name"`
	Email           string `json:"email"`
	Message         string `json:"message"`
	Page            string `json:"page,omitempty"`
	IP              string `json:"ip,omitempty"`
	UA              string `json:"ua,omitempty"`
	BrandPrimaryHex string `json:"brand_primary_hex,omitempty"`
}

// WebhookKind selects the outbound payload shape for a webhook.
type WebhookKind string

const (
	WebhookSlack   WebhookKind = "slack"
	WebhookDiscord WebhookKind = "discord"
	WebhookGeneric WebhookKind = "generic"
)

// WebhookSpec is one configured outbound endpoint for a tenant.
// An empty URL is rejected at dispatch time, not at config load.
type WebhookSpec struct {
	Kind       WebhookKind `json:"type"`
	URL        string      `json:"url"`
	HMACSecret string      `json:"hmac_secret,omitempty"`
	HMACHeader string      `json:"hmac_header,omitempty"`
}

// DefaultHMACHeader is used when a generic webhook spec carries a secret
// but no header name.
const DefaultHMACHeader = "X-Webhook-Signature"

// TenantConfig is the resolved routing configuration for one tenant,
// layered field-by-field over global defaults.
type TenantConfig struct {
	TenantID        string        `json:"tenant_id"`
	Recipients      []string      `json:"recipients"`
	SubjectPrefix   string        `json:"subject_prefix,omitempty"`
	BrandPrimaryHex string        `json:"brand_primary_hex,omitempty"`
	DashboardURL    string        `json:"dashboard_url,omitempty"`
	Webhooks        []WebhookSpec `json:"webhooks,omitempty"`
}

// DispatchJob is one queued unit of webhook fan-out work. Immutable once
// enqueued; exactly one job per submission with at least one webhook.
type DispatchJob struct {
	ID         string        `json:"id"`
	TenantID   string        `json:"tenant_id"`
	TS         int64         `json:"ts"`
	Submission Submission    `json:"submission"`
	Webhooks   []WebhookSpec `json:"webhooks"`
	Attempt    int           `json:"attempt,omitempty"`
}

// Error categories for a failed webhook delivery.
const (
	ErrCategoryConfig    = "config"
	ErrCategoryHTTP      = "http"
	ErrCategoryTimeout   = "timeout"
	ErrCategoryTransport = "transport"
)

// DispatchResult is the outcome of delivering to a single webhook.
type DispatchResult struct {
	Index      int         `json:"index"`
	Kind       WebhookKind `json:"type"`
	Success    bool        `json:"success"`
	StatusCode int         `json:"status_code,omitempty"`
	Category   string      `json:"category,omitempty"`
	Error      string      `json:"error,omitempty"`
	LatencyMs  int         `json:"latency_ms,omitempty"`
}

// BatchResult aggregates one DispatchResult per webhook in a job.
type BatchResult struct {
	JobID    string           `json:"job_id"`
	TenantID string           `json:"tenant_id"`
	Success  bool             `json:"success"`
	Results  []DispatchResult `json:"results"`
}

// SubmissionEvent is published to the live feed after a submission is stored.
type SubmissionEvent struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}
