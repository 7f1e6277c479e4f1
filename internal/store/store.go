package store

import (
	"context"
	"errors"

	"formbridge/internal/model"
)

// Store is the persistence interface used by the API server. Submission
// writes are the durable source of truth; notification state never lives
// here.
type Store interface {
	// Submissions
	CreateSubmission(ctx context.Context, sub model.Submission) error
	GetSubmission(ctx context.Context, tenantID, id string) (model.Submission, error)
	ListSubmissions(ctx context.Context, tenantID string, limit int) ([]model.Submission, error)

	// Tenant override records, raw JSON objects keyed by tenant id.
	// Missing records return ErrNotFound.
	GetTenantOverride(ctx context.Context, tenantID string) (map[string]any, error)
	SaveTenantOverride(ctx context.Context, tenantID string, rec map[string]any) error
}

var ErrNotFound = errors.New("not found")
