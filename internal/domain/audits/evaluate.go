package audits

import "math"

// Evaluate runs the deterministic decision pipeline over one classified
// evidence description and one normalized report:
//
//	classify -> phantom filter -> checklist score -> severity penalty
//	         -> mismatch gate -> round once -> clamp -> status
//
// The whole evaluation runs even when a mismatch is detected; the gate only
// overrides the combined score and status at the end, so the caller still
// sees the underlying checklist and findings next to the override.
func Evaluate(fingerprint string, desc EvidenceDescription, rep Report, proc ProcedureRef) (*AuditResult, error) {
	if len(rep.Checklist) == 0 {
		return nil, ErrEmptyChecklist
	}

	detected := Classify(desc)
	mismatch := Mismatch(detected, proc.Expected)

	findings := FilterPhantoms(rep.Findings)

	raw, err := RawChecklistScore(rep.Checklist)
	if err != nil {
		return nil, err
	}
	preliminary := raw - Penalty(findings)

	if mismatch {
		// The synthetic finding is appended for visibility only; the cap
		// already dominates any further penalty it could contribute.
		findings = append(findings, MismatchFinding(detected, proc.Expected))
		preliminary = applyMismatchCap(preliminary)
	}

	// The single rounding point in the pipeline.
	score := clampScore(int(math.Round(preliminary)))

	status := StatusForScore(score)
	if mismatch {
		status = VerdictFail
	}

	return &AuditResult{
		Fingerprint:        fingerprint,
		ProcedureID:        proc.ID,
		ProcedureVersion:   proc.Version,
		DetectedType:       detected,
		ExpectedType:       proc.Expected,
		Mismatch:           mismatch,
		Score:              score,
		Status:             status,
		Summary:            rep.Summary,
		Checklist:          rep.Checklist,
		Findings:           findings,
		Counts:             CountBySeverity(findings),
		RiskAssessment:     rep.RiskAssessment,
		RecommendedActions: rep.RecommendedActions,
	}, nil
}
