package audits

import (
	"context"
	"time"
)

// ResultCache port: the persistent fingerprint -> AuditResult store.
// Put is write-once per key: storing a differing result for an existing
// fingerprint must return ErrCacheConflict and leave the original intact;
// re-storing an identical result is a no-op.
type ResultCache interface {
	Get(ctx context.Context, fingerprint string) (*AuditResult, error)
	Put(ctx context.Context, fingerprint string, res *AuditResult) error
	Clear(ctx context.Context) error
}

// DescriptionCache port: memoized vision-stage text keyed by evidence hash,
// so a replay never re-invokes the vision model either.
type DescriptionCache interface {
	Description(ctx context.Context, key string) (string, bool)
	SaveDescription(ctx context.Context, key, text string) error
}

// Summary rekap for a tenant over a window.
type Summary struct {
	Total       int `json:"total_audits"`
	Passed      int `json:"passed"`
	Investigate int `json:"investigate"`
	Failed      int `json:"failed"`
	Mismatches  int `json:"mismatches"`
}

// PaginatedRecords represents a paginated history response.
type PaginatedRecords struct {
	Data       []*Record `json:"data"`
	Page       int       `json:"page"`
	PageSize   int       `json:"pageSize"`
	Total      int64     `json:"totalItems"`
	TotalPages int       `json:"totalPages"`
}

// Repository port (persistence for audit history rows)
type Repository interface {
	Save(ctx context.Context, rec *Record) error
	Get(ctx context.Context, tenant string, id AuditID) (*Record, error)
	Latest(ctx context.Context, tenant string, limit int) ([]*Record, error)
	Summary(ctx context.Context, tenant string, sinceDays int) (Summary, error)
	Paginate(ctx context.Context, tenant string, page, pageSize int) (PaginatedRecords, error)
	Cursor(ctx context.Context, tenant string, cursorTime time.Time, cursorID string, pageSize int) ([]*Record, error)
}

// ArtifactStore port (object storage for evidence images and result exports)
type ArtifactStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}
