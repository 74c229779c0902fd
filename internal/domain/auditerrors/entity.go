package auditerrors

import "time"

// Phase of the pipeline an upstream failure occurred in.
const (
	PhaseVision    = "vision"
	PhaseReasoning = "reasoning"
	PhaseParse     = "parse"
)

// AuditError is a persisted record of an audit attempt that could not
// complete. Incomplete audits are surfaced here, never cached.
type AuditError struct {
	ID          int64     `json:"id"`
	TenantID    string    `json:"tenant_id"`
	Fingerprint string    `json:"fingerprint"`
	ProcedureID string    `json:"procedure_id,omitempty"`
	Phase       string    `json:"phase"`
	Message     string    `json:"message"`
	CreatedAt   time.Time `json:"created_at"`
}
