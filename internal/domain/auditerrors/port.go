package auditerrors

import "context"

// Repository defines persistence for audit errors
type Repository interface {
	Save(ctx context.Context, e *AuditError) error
	Latest(ctx context.Context, tenant string, limit int) ([]*AuditError, error)
}
