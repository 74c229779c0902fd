package audits

// Rule tables for the scorer, penalizer and status classifier. Kept as data
// so each table is testable on its own.

// severityWeights: fixed point deductions per surviving finding.
var severityWeights = map[Severity]float64{
	SeverityCritical:    15,
	SeverityMajor:       10,
	SeverityMinor:       5,
	SeverityObservation: 2,
}

const (
	// unableWeight is the partial credit for UNABLE_TO_ASSESS items.
	unableWeight = 0.25

	passThreshold        = 80
	investigateThreshold = 50

	// mismatchScoreCap is the ceiling applied when the gate trips.
	mismatchScoreCap = 15
)

// RawChecklistScore converts per-requirement statuses into an unrounded
// percentage: (compliant + 0.25*unable) / total * 100. An empty checklist is
// a hard ErrEmptyChecklist, never a silent 0 or 100. Rounding is deferred to
// the end of the pipeline so intermediate stages never compound error.
func RawChecklistScore(items []ChecklistItem) (float64, error) {
	if len(items) == 0 {
		return 0, ErrEmptyChecklist
	}
	var compliant, unable float64
	for _, it := range items {
		switch it.Status {
		case StatusCompliant:
			compliant++
		case StatusUnableToAssess:
			unable++
		}
	}
	return (compliant + unableWeight*unable) / float64(len(items)) * 100, nil
}

// Penalty sums the fixed severity weights over the surviving findings.
// No clamp here; clamping happens once after combination with the raw score.
func Penalty(findings []Finding) float64 {
	var p float64
	for _, f := range findings {
		p += severityWeights[f.Severity]
	}
	return p
}

// StatusForScore is the table lookup on the clamped final score.
// A gate-forced FAIL supersedes this table.
func StatusForScore(score int) Verdict {
	switch {
	case score >= passThreshold:
		return VerdictPass
	case score >= investigateThreshold:
		return VerdictInvestigate
	default:
		return VerdictFail
	}
}

// clampScore corrects out-of-range values by construction; it never errors.
func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
