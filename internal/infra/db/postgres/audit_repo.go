package postgres

import (
	"context"
	"database/sql"
	"math"
	"strings"
	"time"

	domain "labsentinel/internal/domain/audits"
)

type AuditRepository struct{ db *sql.DB }

func NewAuditRepository(db *sql.DB) *AuditRepository { return &AuditRepository{db: db} }

const auditColumns = `id, tenant_id, audited_at, fingerprint, procedure_id,
       detected_type, expected_type, mismatch, score, status,
       critical, major, minor, observations, findings_total,
       cached, artifact_url, duration_ms`

// Save insert/update an audit history row
func (r *AuditRepository) Save(ctx context.Context, a *domain.Record) error {
	const q = `
INSERT INTO audit_results
(id, tenant_id, audited_at, fingerprint, procedure_id,
 detected_type, expected_type, mismatch, score, status,
 critical, major, minor, observations, findings_total,
 cached, artifact_url, duration_ms)
VALUES ($1,$2,$3,$4,$5,
        $6,$7,$8,$9,$10,
        $11,$12,$13,$14,$15,
        $16,$17,$18)
ON CONFLICT (id) DO UPDATE SET
 score = EXCLUDED.score,
 status = EXCLUDED.status,
 mismatch = EXCLUDED.mismatch,
 critical = EXCLUDED.critical,
 major = EXCLUDED.major,
 minor = EXCLUDED.minor,
 observations = EXCLUDED.observations,
 findings_total = EXCLUDED.findings_total,
 cached = EXCLUDED.cached,
 artifact_url = EXCLUDED.artifact_url,
 duration_ms = EXCLUDED.duration_ms;`

	tenant := stringOrDash(a.TenantID)
	status := stringOrDash(string(a.Status))
	audited := a.AuditedAt
	if audited.IsZero() {
		audited = time.Now()
	}

	_, err := r.db.ExecContext(ctx, q,
		a.ID, tenant, audited, a.Fingerprint, a.ProcedureID,
		a.DetectedType, a.ExpectedType, a.Mismatch, a.Score, status,
		a.Counts.Critical, a.Counts.Major, a.Counts.Minor, a.Counts.Observations, a.Counts.Total,
		a.Cached, a.ArtifactURL, a.DurationMS,
	)
	return err
}

// Get by ID + Tenant
func (r *AuditRepository) Get(ctx context.Context, tenant string, id domain.AuditID) (*domain.Record, error) {
	const q = `
SELECT ` + auditColumns + `
FROM audit_results
WHERE tenant_id=$1 AND id=$2
LIMIT 1;`
	row := r.db.QueryRowContext(ctx, q, tenant, id)
	return scanRecord(row.Scan)
}

// Latest audits per tenant
func (r *AuditRepository) Latest(ctx context.Context, tenant string, limit int) ([]*domain.Record, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT ` + auditColumns + `
FROM audit_results
WHERE tenant_id=$1 ORDER BY audited_at DESC
LIMIT $2;`
	rows, err := r.db.QueryContext(ctx, q, tenant, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Record
	for rows.Next() {
		rec, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Summary tallies verdicts since N days
func (r *AuditRepository) Summary(ctx context.Context, tenant string, sinceDays int) (domain.Summary, error) {
	if sinceDays <= 0 {
		sinceDays = 7
	}
	cut := time.Now().AddDate(0, 0, -sinceDays)

	const q = `
SELECT COUNT(*) AS total_audits,
       COALESCE(SUM(CASE WHEN status = 'PASS' THEN 1 ELSE 0 END),0)        AS passed,
       COALESCE(SUM(CASE WHEN status = 'INVESTIGATE' THEN 1 ELSE 0 END),0) AS investigate,
       COALESCE(SUM(CASE WHEN status = 'FAIL' THEN 1 ELSE 0 END),0)        AS failed,
       COALESCE(SUM(CASE WHEN mismatch THEN 1 ELSE 0 END),0)               AS mismatches
FROM audit_results
WHERE tenant_id=$1 AND audited_at >= $2;`
	var s domain.Summary
	if err := r.db.QueryRowContext(ctx, q, tenant, cut).Scan(
		&s.Total, &s.Passed, &s.Investigate, &s.Failed, &s.Mismatches,
	); err != nil {
		return domain.Summary{}, err
	}
	return s, nil
}

// Paginate with offset + limit
func (r *AuditRepository) Paginate(ctx context.Context, tenant string, page, pageSize int) (domain.PaginatedRecords, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	const q = `
SELECT ` + auditColumns + `
FROM audit_results
WHERE tenant_id=$1
ORDER BY audited_at DESC, id DESC
LIMIT $2 OFFSET $3;`
	rows, err := r.db.QueryContext(ctx, q, tenant, pageSize, offset)
	if err != nil {
		return domain.PaginatedRecords{}, err
	}
	defer rows.Close()

	var recs []*domain.Record
	for rows.Next() {
		rec, err := scanRecord(rows.Scan)
		if err != nil {
			return domain.PaginatedRecords{}, err
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return domain.PaginatedRecords{}, err
	}

	var total int64
	if err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM audit_results WHERE tenant_id = $1", tenant,
	).Scan(&total); err != nil {
		return domain.PaginatedRecords{}, err
	}

	return domain.PaginatedRecords{
		Data:       recs,
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: int(math.Ceil(float64(total) / float64(pageSize))),
	}, nil
}

// Cursor-based pagination (after cursorTime, cursorID)
func (r *AuditRepository) Cursor(ctx context.Context, tenant string, cursorTime time.Time, cursorID string, pageSize int) ([]*domain.Record, error) {
	if pageSize <= 0 {
		pageSize = 20
	}
	const q = `
SELECT ` + auditColumns + `
FROM audit_results
WHERE tenant_id=$1
  AND (audited_at < $2 OR (audited_at = $2 AND id < $3))
ORDER BY audited_at DESC, id DESC
LIMIT $4;`
	rows, err := r.db.QueryContext(ctx, q, tenant, cursorTime, cursorID, pageSize)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Record
	for rows.Next() {
		rec, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanRecord(scan func(dest ...any) error) (*domain.Record, error) {
	var rec domain.Record
	var crit, maj, min, obs, tot int
	if err := scan(
		&rec.ID, &rec.TenantID, &rec.AuditedAt, &rec.Fingerprint, &rec.ProcedureID,
		&rec.DetectedType, &rec.ExpectedType, &rec.Mismatch, &rec.Score, &rec.Status,
		&crit, &maj, &min, &obs, &tot,
		&rec.Cached, &rec.ArtifactURL, &rec.DurationMS,
	); err != nil {
		return nil, err
	}
	rec.Counts = domain.SeverityCounts{Critical: crit, Major: maj, Minor: min, Observations: obs, Total: tot}
	return &rec, nil
}

func stringOrDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
