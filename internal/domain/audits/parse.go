package audits

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Report is the normalized reasoning-stage output: everything the engine
// consumes from the comparison model, with labels already forced into the
// closed enums. The model's own score and status fields are deliberately
// dropped; the engine recomputes both.
type Report struct {
	Summary            string          `json:"summary"`
	Checklist          []ChecklistItem `json:"checklist"`
	Findings           []Finding       `json:"findings"`
	RiskAssessment     string          `json:"risk_assessment"`
	RecommendedActions []string        `json:"recommended_actions"`
}

// rawReport mirrors the JSON schema the auditor prompt requests.
type rawReport struct {
	Summary  string `json:"summary"`
	Findings []struct {
		ID             string `json:"id"`
		Severity       string `json:"severity"`
		Category       string `json:"category"`
		Observation    string `json:"observation"`
		SOPRequirement string `json:"sop_requirement"`
		Discrepancy    string `json:"discrepancy"`
		Impact         string `json:"impact"`
		Recommendation string `json:"recommendation"`
	} `json:"findings"`
	Checklist []struct {
		Criterion string `json:"criterion"`
		Status    string `json:"status"`
		Notes     string `json:"notes"`
	} `json:"sop_compliance_checklist"`
	RiskAssessment     string   `json:"risk_assessment"`
	RecommendedActions []string `json:"recommended_actions"`
}

var (
	fencedJSON = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)\\s*```")
	bracedJSON = regexp.MustCompile(`\{[\s\S]*\}`)
)

// extractJSON salvages a JSON object from raw model output: the whole body,
// then a fenced code block, then the outermost brace span.
func extractJSON(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if json.Valid([]byte(trimmed)) {
		return trimmed
	}
	if m := fencedJSON.FindStringSubmatch(raw); m != nil && json.Valid([]byte(m[1])) {
		return m[1]
	}
	if m := bracedJSON.FindString(raw); m != "" && json.Valid([]byte(m)) {
		return m
	}
	return ""
}

// ParseReport normalizes raw reasoning-stage output into a Report.
// The upstream generator is untrusted text: anything that does not parse is
// ErrUpstreamFormat, and unrecognized labels fail closed rather than being
// dropped.
func ParseReport(raw string) (Report, error) {
	payload := extractJSON(raw)
	if payload == "" {
		return Report{}, fmt.Errorf("%w: no JSON object in output", ErrUpstreamFormat)
	}

	var rr rawReport
	if err := json.Unmarshal([]byte(payload), &rr); err != nil {
		return Report{}, fmt.Errorf("%w: %v", ErrUpstreamFormat, err)
	}

	rep := Report{
		Summary:            strings.TrimSpace(rr.Summary),
		RiskAssessment:     strings.TrimSpace(rr.RiskAssessment),
		RecommendedActions: rr.RecommendedActions,
	}
	for _, item := range rr.Checklist {
		rep.Checklist = append(rep.Checklist, ChecklistItem{
			Criterion: strings.TrimSpace(item.Criterion),
			Status:    NormalizeStatus(item.Status),
			Notes:     strings.TrimSpace(item.Notes),
		})
	}
	for _, f := range rr.Findings {
		rep.Findings = append(rep.Findings, Finding{
			ID:             strings.TrimSpace(f.ID),
			Severity:       NormalizeSeverity(f.Severity),
			Category:       strings.TrimSpace(f.Category),
			Observation:    strings.TrimSpace(f.Observation),
			Requirement:    strings.TrimSpace(f.SOPRequirement),
			Discrepancy:    strings.TrimSpace(f.Discrepancy),
			Impact:         strings.TrimSpace(f.Impact),
			Recommendation: strings.TrimSpace(f.Recommendation),
		})
	}
	return rep, nil
}

// NormalizeStatus maps a free-form status label into the closed enum.
// Unrecognized labels fail closed to NON_COMPLIANT.
func NormalizeStatus(s string) ChecklistStatus {
	switch canonicalLabel(s) {
	case "COMPLIANT":
		return StatusCompliant
	case "NON_COMPLIANT", "NONCOMPLIANT", "NOT_COMPLIANT":
		return StatusNonCompliant
	case "UNABLE_TO_ASSESS", "UNABLE_TO_VERIFY", "NOT_ASSESSABLE":
		return StatusUnableToAssess
	default:
		return StatusNonCompliant
	}
}

// NormalizeSeverity maps a free-form severity label into the closed enum.
// Unrecognized labels fail closed to CRITICAL.
func NormalizeSeverity(s string) Severity {
	switch canonicalLabel(s) {
	case "CRITICAL":
		return SeverityCritical
	case "MAJOR":
		return SeverityMajor
	case "MINOR":
		return SeverityMinor
	case "OBSERVATION":
		return SeverityObservation
	default:
		return SeverityCritical
	}
}

// canonicalLabel uppercases and joins label words with underscores so
// "Non-Compliant", "NON COMPLIANT" and "non_compliant" all compare equal.
func canonicalLabel(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, " ", "_")
	for strings.Contains(s, "__") {
		s = strings.ReplaceAll(s, "__", "_")
	}
	return s
}
