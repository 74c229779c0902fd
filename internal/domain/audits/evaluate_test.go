package audits

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gelProc() ProcedureRef {
	return ProcedureRef{ID: "SOP-GEL-001", Version: "2.1", Expected: TypeGel}
}

func TestEvaluate_NoiseHeavyChecklist(t *testing.T) {
	// 19 criteria: 4 compliant, 1 non-compliant, 14 unable to assess.
	// One MAJOR finding survives the filter.
	// (4 + 0.25*14)/19*100 = 39.47..., minus 10 = 29.47..., rounds to 29.
	rep := Report{
		Checklist: items(4, 1, 14),
		Findings: []Finding{
			{ID: "F1", Severity: SeverityMajor, Observation: "loading dye omitted"},
		},
	}
	desc := EvidenceDescription{ExplicitType: string(TypeGel)}

	res, err := Evaluate("fp-a", desc, rep, gelProc())
	require.NoError(t, err)

	assert.Equal(t, 29, res.Score)
	assert.Equal(t, VerdictFail, res.Status)
	assert.False(t, res.Mismatch)
	assert.Equal(t, TypeGel, res.DetectedType)
	assert.Len(t, res.Findings, 1)
}

func TestEvaluate_MismatchGate(t *testing.T) {
	// Clean gel evidence audited against an HPLC procedure. The checklist
	// alone would score well; the gate caps it and forces FAIL.
	rep := Report{
		Checklist: items(9, 0, 1),
	}
	desc := EvidenceDescription{ExplicitType: string(TypeGel)}
	proc := ProcedureRef{ID: "SOP-HPLC-001", Version: "1.0", Expected: TypeHPLC}

	res, err := Evaluate("fp-b", desc, rep, proc)
	require.NoError(t, err)

	assert.True(t, res.Mismatch)
	assert.Equal(t, VerdictFail, res.Status)
	assert.LessOrEqual(t, res.Score, 15)
	assert.Equal(t, 15, res.Score)

	require.Len(t, res.Findings, 1)
	assert.Equal(t, "F-MISMATCH", res.Findings[0].ID)
	assert.Equal(t, SeverityCritical, res.Findings[0].Severity)
	assert.Equal(t, 1, res.Counts.Critical)
}

func TestEvaluate_MismatchNeverRaisesScore(t *testing.T) {
	// A score already below the cap stays where it is.
	rep := Report{
		Checklist: items(0, 10, 0),
		Findings: []Finding{
			{ID: "F1", Severity: SeverityCritical, Observation: "wrong instrument entirely"},
		},
	}
	desc := EvidenceDescription{ExplicitType: string(TypeGel)}
	proc := ProcedureRef{ID: "SOP-HPLC-001", Version: "1.0", Expected: TypeHPLC}

	res, err := Evaluate("fp-b2", desc, rep, proc)
	require.NoError(t, err)

	assert.True(t, res.Mismatch)
	assert.Equal(t, 0, res.Score)
	assert.Equal(t, VerdictFail, res.Status)
}

func TestEvaluate_UnknownTypeNeverTripsGate(t *testing.T) {
	rep := Report{
		Checklist: items(9, 1, 0),
	}
	// Nothing in the text matches any keyword set.
	desc := EvidenceDescription{Text: "an unlabeled photo of laboratory equipment"}
	proc := ProcedureRef{ID: "SOP-MTT-001", Version: "1.3", Expected: TypeMTT}

	res, err := Evaluate("fp-c", desc, rep, proc)
	require.NoError(t, err)

	assert.Equal(t, TypeUnknown, res.DetectedType)
	assert.False(t, res.Mismatch)
	assert.Equal(t, 90, res.Score)
	assert.Equal(t, VerdictPass, res.Status)
}

func TestEvaluate_EmptyChecklist(t *testing.T) {
	rep := Report{Findings: []Finding{{Severity: SeverityMinor}}}
	desc := EvidenceDescription{ExplicitType: string(TypeGel)}

	_, err := Evaluate("fp-d", desc, rep, gelProc())
	require.ErrorIs(t, err, ErrEmptyChecklist)
}

func TestEvaluate_ScoreClampedAtZero(t *testing.T) {
	rep := Report{
		Checklist: items(1, 9, 0),
		Findings: []Finding{
			{ID: "F1", Severity: SeverityCritical, Observation: "contaminated sample"},
			{ID: "F2", Severity: SeverityCritical, Observation: "expired reagent in use"},
		},
	}
	desc := EvidenceDescription{ExplicitType: string(TypeGel)}

	res, err := Evaluate("fp-e", desc, rep, gelProc())
	require.NoError(t, err)

	// 10 - 30 clamps to 0, never negative.
	assert.Equal(t, 0, res.Score)
	assert.Equal(t, VerdictFail, res.Status)
}

func TestEvaluate_RoundsOnceAtTheEnd(t *testing.T) {
	// The raw score stays unrounded until after the penalty; rounding the
	// 50.0 intermediate early would not change this case, but the final
	// value must come from a single math.Round at the end.
	rep := Report{
		Checklist: items(1, 0, 2), // (1 + 0.25*2)/3*100 = 50
		Findings: []Finding{
			{ID: "F1", Severity: SeverityObservation, Observation: "label partly smudged"},
		},
	}
	desc := EvidenceDescription{ExplicitType: string(TypeGel)}

	res, err := Evaluate("fp-f", desc, rep, gelProc())
	require.NoError(t, err)

	// 50 - 2 = 48
	assert.Equal(t, 48, res.Score)
	assert.Equal(t, VerdictFail, res.Status)
}

func TestEvaluate_DeterministicReplay(t *testing.T) {
	rep := Report{
		Checklist: items(5, 2, 3),
		Findings: []Finding{
			{ID: "F1", Severity: SeverityMinor, Observation: "lid left ajar"},
		},
	}
	desc := EvidenceDescription{ExplicitType: string(TypeGel), Text: "an agarose gel"}

	a, err := Evaluate("fp-g", desc, rep, gelProc())
	require.NoError(t, err)
	b, err := Evaluate("fp-g", desc, rep, gelProc())
	require.NoError(t, err)

	assert.Equal(t, a, b)
}
