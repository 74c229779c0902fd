package mysql

import (
	"context"
	"database/sql"
	"math"
	"time"

	domain "labsentinel/internal/domain/audits"
)

type AuditRepository struct {
	db *sql.DB
}

func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

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
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
ON DUPLICATE KEY UPDATE
 score=VALUES(score), status=VALUES(status), mismatch=VALUES(mismatch),
 critical=VALUES(critical), major=VALUES(major), minor=VALUES(minor),
 observations=VALUES(observations), findings_total=VALUES(findings_total),
 cached=VALUES(cached), artifact_url=VALUES(artifact_url), duration_ms=VALUES(duration_ms);
`
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
WHERE tenant_id=? AND id=? LIMIT 1;
`
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
WHERE tenant_id=? ORDER BY audited_at DESC LIMIT ?;
`
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
       COALESCE(SUM(status = 'PASS'),0)        AS passed,
       COALESCE(SUM(status = 'INVESTIGATE'),0) AS investigate,
       COALESCE(SUM(status = 'FAIL'),0)        AS failed,
       COALESCE(SUM(mismatch),0)               AS mismatches
FROM audit_results
WHERE tenant_id=? AND audited_at >= ?;
`
	var s domain.Summary
	if err := r.db.QueryRowContext(ctx, q, tenant, cut).Scan(
		&s.Total, &s.Passed, &s.Investigate, &s.Failed, &s.Mismatches,
	); err != nil {
		return domain.Summary{}, err
	}
	return s, nil
}

// Paginate with offset + limit (classic pagination)
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
WHERE tenant_id=?
ORDER BY audited_at DESC, id DESC
LIMIT ? OFFSET ?;
`
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
		"SELECT COUNT(*) FROM audit_results WHERE tenant_id = ?", tenant,
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
WHERE tenant_id=?
  AND (audited_at < ? OR (audited_at = ? AND id < ?))
ORDER BY audited_at DESC, id DESC
LIMIT ?;
`
	rows, err := r.db.QueryContext(ctx, q, tenant, cursorTime, cursorTime, cursorID, pageSize)
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

// scanRecord maps one row onto a Record; shared by every query above.
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
