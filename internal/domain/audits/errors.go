package audits

import "errors"

var (
	// ErrEmptyChecklist indicates the reasoning stage produced zero checklist
	// items. A checklist of zero items cannot be scored; this is a hard
	// failure, never a zero or perfect score.
	ErrEmptyChecklist = errors.New("checklist has no items")

	// ErrEmptyEvidence indicates an audit was requested without evidence bytes.
	ErrEmptyEvidence = errors.New("evidence is empty")

	// ErrUpstreamFormat indicates the reasoning-stage output could not be
	// parsed into a report. The audit is incomplete; nothing is cached.
	ErrUpstreamFormat = errors.New("reasoning output does not parse into an audit report")

	// ErrNotFound is the cache miss signal.
	ErrNotFound = errors.New("audit result not found")

	// ErrCacheConflict indicates a put for an existing fingerprint carried a
	// different result. The first recorded value stays authoritative.
	ErrCacheConflict = errors.New("cached result conflicts with recomputed value")
)
