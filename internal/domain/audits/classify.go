package audits

import "strings"

// typeMarker is the prefix the vision prompt asks for on its first line.
const typeMarker = "EXPERIMENT_TYPE:"

// markerScanLines limits how deep into the description the marker is looked
// for; a compliant vision model puts it on line one.
const markerScanLines = 3

// typeKeywords: per-type keyword sets for the fallback classifier.
// Matching is case-insensitive substring over the whole description.
var typeKeywords = map[ExperimentType][]string{
	TypeMTT:    {"mtt", "96-well", "microplate", "well plate", "formazan", "purple well", "cell viability"},
	TypeGel:    {"gel electrophoresis", "agarose", "gel band", "dna gel", "gel lane", "electrophoresis"},
	TypeHPLC:   {"hplc", "chromatogram", "chromatography", "retention time", "peak area"},
	TypeColony: {"colony count", "cfu", "petri dish", "bacterial colony", "agar plate"},
}

// ParseEvidenceText splits raw vision output into an EvidenceDescription,
// pulling the explicit tag off the marker line when the model emitted one.
func ParseEvidenceText(raw string) EvidenceDescription {
	desc := EvidenceDescription{Text: raw}
	lines := strings.Split(raw, "\n")
	limit := markerScanLines
	if len(lines) < limit {
		limit = len(lines)
	}
	for _, line := range lines[:limit] {
		idx := strings.Index(strings.ToUpper(line), typeMarker)
		if idx < 0 {
			continue
		}
		desc.ExplicitType = strings.TrimSpace(line[idx+len(typeMarker):])
		break
	}
	return desc
}

// TypeFromTag maps an explicit marker tag onto a known experiment type.
// Anything unrecognized, including the model's own OTHER, is UNKNOWN.
func TypeFromTag(tag string) ExperimentType {
	t := ExperimentType(strings.ToUpper(strings.TrimSpace(tag)))
	for _, known := range KnownTypes {
		if t == known {
			return known
		}
	}
	return TypeUnknown
}

// Classify derives the canonical experiment type for a description.
// An explicit tag that maps to a known type wins outright. Otherwise each
// type's keyword set is scored by substring hits and the highest count wins,
// with ties going to the earliest type in KnownTypes. Zero hits everywhere
// yields UNKNOWN, which downstream always gets the benefit of the doubt.
func Classify(desc EvidenceDescription) ExperimentType {
	if desc.ExplicitType != "" {
		if t := TypeFromTag(desc.ExplicitType); t != TypeUnknown {
			return t
		}
	}

	text := strings.ToLower(desc.Text)
	best := TypeUnknown
	bestHits := 0
	for _, t := range KnownTypes {
		hits := 0
		for _, kw := range typeKeywords[t] {
			if strings.Contains(text, kw) {
				hits++
			}
		}
		if hits > bestHits {
			best, bestHits = t, hits
		}
	}
	return best
}
