package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	_ "github.com/jackc/pgx/v5/stdlib"

	"formbridge/internal/model"
)

type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &Postgres{db: db}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS submissions (
    id          uuid PRIMARY KEY,
    tenant_id   text NOT NULL,
    ts          bigint NOT NULL,
    name        text NOT NULL,
    email       text NOT NULL,
    message     text NOT NULL,
    page        text,
    ip          text,
    ua          text,
    created_at  timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS submissions_tenant_ts ON submissions (tenant_id, ts DESC);

CREATE TABLE IF NOT EXISTS tenant_overrides (
    tenant_id   text PRIMARY KEY,
    record      jsonb NOT NULL,
    updated_at  timestamptz NOT NULL DEFAULT now()
);
`

// Migrate applies the schema. Dev helper; production deploys run
// migrations out of band.
func (p *Postgres) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, schema)
	return err
}

func (p *Postgres) CreateSubmission(ctx context.Context, sub model.Submission) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO submissions (id, tenant_id, ts, name, email, message, page, ip, ua)
         VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		sub.ID, sub.TenantID, sub.TS, sub.Name, sub.Email, sub.Message,
		nullIfEmpty(sub.Page), nullIfEmpty(sub.IP), nullIfEmpty(sub.UA))
	return err
}

func (p *Postgres) GetSubmission(ctx context.Context, tenantID, id string) (model.Submission, error) {
	var sub model.Submission
	var page, ip, ua sql.NullString
	err := p.db.QueryRowContext(ctx,
		`SELECT id::text, tenant_id, ts, name, email, message, page, ip, ua
         FROM submissions WHERE tenant_id=$1 AND id=$2`, tenantID, id).
		Scan(&sub.ID, &sub.TenantID, &sub.TS, &sub.Name, &sub.Email, &sub.Message, &page, &ip, &ua)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Submission{}, ErrNotFound
	}
	if err != nil {
		return model.Submission{}, err
	}
	sub.Page, sub.IP, sub.UA = page.String, ip.String, ua.String
	return sub, nil
}

func (p *Postgres) ListSubmissions(ctx context.Context, tenantID string, limit int) ([]model.Submission, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := p.db.QueryContext(ctx,
		`SELECT id::text, tenant_id, ts, name, email, message, page, ip, ua
         FROM submissions WHERE tenant_id=$1 ORDER BY ts DESC LIMIT $2`, tenantID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Submission{}
	for rows.Next() {
		var sub model.Submission
		var page, ip, ua sql.NullString
		if err := rows.Scan(&sub.ID, &sub.TenantID, &sub.TS, &sub.Name, &sub.Email, &sub.Message, &page, &ip, &ua); err != nil {
			return nil, err
		}
		sub.Page, sub.IP, sub.UA = page.String, ip.String, ua.String
		out = append(out, sub)
	}
	return out, rows.Err()
}

func (p *Postgres) GetTenantOverride(ctx context.Context, tenantID string) (map[string]any, error) {
	var raw []byte
	err := p.db.QueryRowContext(ctx,
		`SELECT record FROM tenant_overrides WHERE tenant_id=$1`, tenantID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var rec map[string]any
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (p *Postgres) SaveTenantOverride(ctx context.Context, tenantID string, rec map[string]any) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx,
		`INSERT INTO tenant_overrides (tenant_id, record) VALUES ($1,$2)
         ON CONFLICT (tenant_id) DO UPDATE SET record=$2, updated_at=now()`, tenantID, raw)
	return err
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
