package audits

import "fmt"

// Mismatch reports whether the classified evidence type disagrees with the
// procedure's expected type. UNKNOWN never trips the gate: an evidence image
// the classifier could not place gets the benefit of the doubt.
func Mismatch(classified, expected ExperimentType) bool {
	return classified != TypeUnknown && classified != expected
}

// MismatchFinding builds the synthetic CRITICAL finding appended when the
// gate trips. The template is fixed so identical inputs yield identical
// findings.
func MismatchFinding(classified, expected ExperimentType) Finding {
	return Finding{
		ID:          "F-MISMATCH",
		Severity:    SeverityCritical,
		Category:    "Procedural Deviation",
		Observation: fmt.Sprintf("Evidence was classified as %s.", classified),
		Requirement: fmt.Sprintf("The selected procedure covers %s experiments.", expected),
		Discrepancy: fmt.Sprintf("Detected experiment type %s does not match the procedure's expected type %s.", classified, expected),
		Impact:      "The evidence cannot substantiate compliance with the selected procedure.",
		Recommendation: "Re-run the audit against the procedure that matches this evidence, " +
			"or upload the evidence for the selected procedure.",
	}
}

// applyMismatchCap caps a preliminary combined score at the mismatch
// ceiling. min, not assignment: a legitimately lower score is never raised.
func applyMismatchCap(preliminary float64) float64 {
	if preliminary > mismatchScoreCap {
		return mismatchScoreCap
	}
	return preliminary
}
