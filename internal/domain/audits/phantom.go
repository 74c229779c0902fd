package audits

import "strings"

// phantomPatterns match findings that merely restate what an image can
// never show. Such findings duplicate the checklist's UNABLE_TO_ASSESS
// entries and would double-penalize an unavoidable sensing gap.
// Matching is case-insensitive substring.
var phantomPatterns = []string{
	"cannot be verified",
	"can not be verified",
	"cannot verify",
	"unable to verify",
	"no way to verify",
	"impossible to verify",
	"cannot be assessed",
	"cannot assess",
	"unable to assess",
	"cannot be determined",
	"cannot determine",
	"unable to determine",
	"indeterminate from the image",
	"cannot be confirmed",
	"cannot confirm",
	"unable to confirm",
	"cannot be evaluated",
	"unable to evaluate",
	"cannot be judged",
	"cannot be measured",
	"not measurable from",
	"not visible",
	"is not shown",
	"not observable",
	"cannot be observed",
	"not discernible",
	"not legible",
	"cannot be read from",
	"image does not show",
	"image does not capture",
	"not captured in the image",
	"outside the frame",
	"beyond the resolution",
	"image quality prevents",
}

// IsPhantom reports whether a finding's text only restates an inherent
// inability of the evidence to show something.
func IsPhantom(f Finding) bool {
	text := strings.ToLower(f.Observation + " " + f.Discrepancy)
	for _, p := range phantomPatterns {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}

// FilterPhantoms drops phantom findings, preserving order. CRITICAL and
// MAJOR findings always survive regardless of wording: a severe deviation is
// never discarded on phrasing alone.
func FilterPhantoms(findings []Finding) []Finding {
	out := make([]Finding, 0, len(findings))
	for _, f := range findings {
		if f.Severity == SeverityCritical || f.Severity == SeverityMajor {
			out = append(out, f)
			continue
		}
		if IsPhantom(f) {
			continue
		}
		out = append(out, f)
	}
	return out
}
