// Package tenantcfg resolves per-tenant routing configuration layered
// over global defaults from the secure config resolver.
package tenantcfg

import (
	"context"
	"log"
	"strings"

	"formbridge/internal/model"
	"formbridge/internal/secureconfig"
)

// Parameter names for the global defaults, with their env fallbacks.
const (
	ParamRecipients    = "formbridge/recipients"
	ParamSubjectPrefix = "formbridge/subject_prefix"
	ParamBrandHex      = "formbridge/brand_primary_hex"
	ParamDashboardURL  = "formbridge/dashboard_url"
)

// DefaultBrandHex is the accent color used when nothing else is set.
const DefaultBrandHex = "#0EA5E9"

// OverrideSource looks up the raw per-tenant override record.
type OverrideSource interface {
	GetTenantOverride(ctx context.Context, tenantID string) (map[string]any, error)
}

// Service resolves tenant configuration. Resolution never fails: a
// missing or broken override source yields the global defaults.
type Service struct {
	Cfg       *secureconfig.Resolver
	Overrides OverrideSource
}

func NewService(cfg *secureconfig.Resolver, overrides OverrideSource) *Service {
	return &Service{Cfg: cfg, Overrides: overrides}
}

// Resolve returns the effective config for a tenant. Only fields present
// and correctly typed in the override record replace defaults; malformed
// fields keep the default for that field alone.
func (s *Service) Resolve(ctx context.Context, tenantID string) model.TenantConfig {
	cfg := s.defaults(ctx)
	cfg.TenantID = tenantID
	if s.Overrides == nil {
		return cfg
	}
	rec, err := s.Overrides.GetTenantOverride(ctx, tenantID)
	if err != nil || rec == nil {
		return cfg
	}
	if v, ok := stringList(rec["recipients"]); ok {
		cfg.Recipients = v
	}
	if v, ok := rec["subject_prefix"].(string); ok {
		cfg.SubjectPrefix = v
	}
	if v, ok := rec["brand_primary_hex"].(string); ok && v != "" {
		cfg.BrandPrimaryHex = v
	}
	if v, ok := rec["dashboard_url"].(string); ok && v != "" {
		cfg.DashboardURL = v
	}
	if raw, ok := rec["webhooks"].([]any); ok {
		cfg.Webhooks = parseWebhooks(tenantID, raw)
	}
	return cfg
}

func (s *Service) defaults(ctx context.Context) model.TenantConfig {
	cfg := model.TenantConfig{BrandPrimaryHex: DefaultBrandHex}
	if s.Cfg == nil {
		return cfg
	}
	if v, ok := s.Cfg.Param(ctx, ParamRecipients, false, "RECIPIENTS"); ok {
		cfg.Recipients = splitRecipients(v)
	}
	if v, ok := s.Cfg.Param(ctx, ParamSubjectPrefix, false, "SUBJECT_PREFIX"); ok {
		cfg.SubjectPrefix = v
	}
	if v, ok := s.Cfg.Param(ctx, ParamBrandHex, false, "BRAND_PRIMARY_HEX"); ok && v != "" {
		cfg.BrandPrimaryHex = v
	}
	if v, ok := s.Cfg.Param(ctx, ParamDashboardURL, false, "DASHBOARD_URL"); ok {
		cfg.DashboardURL = v
	}
	return cfg
}

func splitRecipients(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func stringList(v any) ([]string, bool) {
	raw, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(raw))
	for _, it := range raw {
		s, ok := it.(string)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}

func parseWebhooks(tenantID string, raw []any) []model.WebhookSpec {
	out := make([]model.WebhookSpec, 0, len(raw))
	for i, it := range raw {
		rec, ok := it.(map[string]any)
		if !ok {
			log.Printf("tenantcfg: tenant=%s webhook %d is not an object, skipping", tenantID, i)
			continue
		}
		spec := model.WebhookSpec{Kind: model.WebhookGeneric}
		if v, ok := rec["type"].(string); ok && v != "" {
			spec.Kind = model.WebhookKind(v)
		}
		// URL may be empty here; the dispatch engine rejects it per item.
		if v, ok := rec["url"].(string); ok {
			spec.URL = v
		}
		if v, ok := rec["hmac_secret"].(string); ok {
			spec.HMACSecret = v
		}
		if v, ok := rec["hmac_header"].(string); ok {
			spec.HMACHeader = v
		}
		out = append(out, spec)
	}
	return out
}
