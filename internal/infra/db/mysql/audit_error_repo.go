package mysql

import (
	"context"
	"database/sql"
	"strings"
	"time"

	domain "labsentinel/internal/domain/auditerrors"
)

type AuditErrorRepository struct {
	db *sql.DB
}

func NewAuditErrorRepository(db *sql.DB) *AuditErrorRepository {
	return &AuditErrorRepository{db: db}
}

func (r *AuditErrorRepository) Save(ctx context.Context, e *domain.AuditError) error {
	const q = `
INSERT INTO audit_errors
  (tenant_id, fingerprint, procedure_id, phase, message, created_at)
VALUES (?,?,?,?,?,?)
`
	tenant := stringOrDash(e.TenantID)
	fp := stringOrDash(e.Fingerprint)
	phase := stringOrDash(e.Phase)
	msg := e.Message
	if strings.TrimSpace(msg) == "" {
		msg = "-"
	}
	created := e.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := r.db.ExecContext(ctx, q, tenant, fp, e.ProcedureID, phase, msg, created)
	return err
}

func (r *AuditErrorRepository) Latest(ctx context.Context, tenant string, limit int) ([]*domain.AuditError, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT id, tenant_id, fingerprint, procedure_id, phase, message, created_at
FROM audit_errors
WHERE tenant_id = ?
ORDER BY created_at DESC, id DESC
LIMIT ?;`
	rows, err := r.db.QueryContext(ctx, q, tenant, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.AuditError
	for rows.Next() {
		var e domain.AuditError
		if err := rows.Scan(&e.ID, &e.TenantID, &e.Fingerprint, &e.ProcedureID, &e.Phase, &e.Message, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
