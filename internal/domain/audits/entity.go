package audits

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// ID tipe untuk Audit
type AuditID string

// ExperimentType enum: what kind of experiment the evidence shows
type ExperimentType string

const (
	TypeMTT     ExperimentType = "MTT_CELL_VIABILITY"
	TypeGel     ExperimentType = "GEL_ELECTROPHORESIS"
	TypeHPLC    ExperimentType = "HPLC_CHROMATOGRAPHY"
	TypeColony  ExperimentType = "COLONY_COUNTING"
	TypeUnknown ExperimentType = "UNKNOWN"
)

// KnownTypes is the fixed total order over classifiable types.
// The classifier breaks keyword-vote ties by this order, never by map
// iteration.
var KnownTypes = []ExperimentType{TypeMTT, TypeGel, TypeHPLC, TypeColony}

// ChecklistStatus enum
type ChecklistStatus string

const (
	StatusCompliant      ChecklistStatus = "COMPLIANT"
	StatusNonCompliant   ChecklistStatus = "NON_COMPLIANT"
	StatusUnableToAssess ChecklistStatus = "UNABLE_TO_ASSESS"
)

// Severity enum
type Severity string

const (
	SeverityCritical    Severity = "CRITICAL"
	SeverityMajor       Severity = "MAJOR"
	SeverityMinor       Severity = "MINOR"
	SeverityObservation Severity = "OBSERVATION"
)

// Verdict enum: the three-level outcome of an audit
type Verdict string

const (
	VerdictPass        Verdict = "PASS"
	VerdictInvestigate Verdict = "INVESTIGATE"
	VerdictFail        Verdict = "FAIL"
)

// ChecklistItem is one procedure requirement with its assessed status.
type ChecklistItem struct {
	Criterion string          `json:"criterion"`
	Status    ChecklistStatus `json:"status"`
	Notes     string          `json:"notes,omitempty"`
}

// Finding is one detected deviation.
type Finding struct {
	ID             string   `json:"id,omitempty"`
	Severity       Severity `json:"severity"`
	Category       string   `json:"category,omitempty"`
	Observation    string   `json:"observation"`
	Requirement    string   `json:"sop_requirement,omitempty"`
	Discrepancy    string   `json:"discrepancy,omitempty"`
	Impact         string   `json:"impact,omitempty"`
	Recommendation string   `json:"recommendation,omitempty"`
}

// SeverityCounts value object
type SeverityCounts struct {
	Critical     int `json:"critical"`
	Major        int `json:"major"`
	Minor        int `json:"minor"`
	Observations int `json:"observations"`
	Total        int `json:"total"`
}

// CountBySeverity tallies findings into a SeverityCounts.
func CountBySeverity(findings []Finding) SeverityCounts {
	var c SeverityCounts
	for _, f := range findings {
		switch f.Severity {
		case SeverityCritical:
			c.Critical++
		case SeverityMajor:
			c.Major++
		case SeverityMinor:
			c.Minor++
		case SeverityObservation:
			c.Observations++
		}
		c.Total++
	}
	return c
}

// EvidenceDescription is the vision-stage output for one image: free text,
// optionally carrying the explicit EXPERIMENT_TYPE tag from its marker line.
type EvidenceDescription struct {
	Text         string `json:"text"`
	ExplicitType string `json:"explicit_type,omitempty"`
}

// ProcedureRef identifies the procedure an audit ran against and the
// experiment type it expects.
type ProcedureRef struct {
	ID       string         `json:"id"`
	Version  string         `json:"version"`
	Expected ExperimentType `json:"expected_type"`
}

// AuditResult is the deterministic verdict for one (evidence, procedure)
// pair. It carries no timestamps or request identity on purpose: replaying
// the same fingerprint must reproduce it byte for byte.
type AuditResult struct {
	Fingerprint        string          `json:"fingerprint"`
	ProcedureID        string          `json:"procedure_id"`
	ProcedureVersion   string          `json:"procedure_version"`
	DetectedType       ExperimentType  `json:"detected_type"`
	ExpectedType       ExperimentType  `json:"expected_type"`
	Mismatch           bool            `json:"mismatch"`
	Score              int             `json:"score"`
	Status             Verdict         `json:"status"`
	Summary            string          `json:"summary,omitempty"`
	Checklist          []ChecklistItem `json:"checklist"`
	Findings           []Finding       `json:"findings"`
	Counts             SeverityCounts  `json:"counts"`
	RiskAssessment     string          `json:"risk_assessment,omitempty"`
	RecommendedActions []string        `json:"recommended_actions,omitempty"`
}

// Record is the history row persisted for a completed audit request.
type Record struct {
	ID           AuditID        `json:"id"`
	TenantID     string         `json:"tenant_id"`
	AuditedAt    time.Time      `json:"audited_at"`
	Fingerprint  string         `json:"fingerprint"`
	ProcedureID  string         `json:"procedure_id"`
	DetectedType ExperimentType `json:"detected_type"`
	ExpectedType ExperimentType `json:"expected_type"`
	Mismatch     bool           `json:"mismatch"`
	Score        int            `json:"score"`
	Status       Verdict        `json:"status"`
	Counts       SeverityCounts `json:"counts"`
	Cached       bool           `json:"cached"`
	ArtifactURL  string         `json:"artifact_url,omitempty"`
	DurationMS   int64          `json:"duration_ms"`
}

// Fingerprint derives the stable cache key for an (evidence, procedure)
// pair: SHA-256 over the raw evidence bytes plus the procedure identity,
// NUL-separated so field boundaries cannot collide.
func Fingerprint(evidence []byte, procedureID, procedureVersion string) string {
	h := sha256.New()
	h.Write(evidence)
	h.Write([]byte{0})
	h.Write([]byte(procedureID))
	h.Write([]byte{0})
	h.Write([]byte(procedureVersion))
	return hex.EncodeToString(h.Sum(nil))
}

// EvidenceKey is the cache key for memoized vision-stage descriptions,
// derived from the evidence bytes alone.
func EvidenceKey(evidence []byte) string {
	sum := sha256.Sum256(evidence)
	return hex.EncodeToString(sum[:])
}
