package audits

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func items(compliant, nonCompliant, unable int) []ChecklistItem {
	var out []ChecklistItem
	for i := 0; i < compliant; i++ {
		out = append(out, ChecklistItem{Criterion: "c", Status: StatusCompliant})
	}
	for i := 0; i < nonCompliant; i++ {
		out = append(out, ChecklistItem{Criterion: "n", Status: StatusNonCompliant})
	}
	for i := 0; i < unable; i++ {
		out = append(out, ChecklistItem{Criterion: "u", Status: StatusUnableToAssess})
	}
	return out
}

func TestRawChecklistScore(t *testing.T) {
	t.Run("empty checklist is a hard error", func(t *testing.T) {
		_, err := RawChecklistScore(nil)
		require.ErrorIs(t, err, ErrEmptyChecklist)

		_, err = RawChecklistScore([]ChecklistItem{})
		require.ErrorIs(t, err, ErrEmptyChecklist)
	})

	t.Run("all compliant is 100", func(t *testing.T) {
		raw, err := RawChecklistScore(items(7, 0, 0))
		require.NoError(t, err)
		assert.Equal(t, 100.0, raw)
	})

	t.Run("all non-compliant is 0", func(t *testing.T) {
		raw, err := RawChecklistScore(items(0, 5, 0))
		require.NoError(t, err)
		assert.Equal(t, 0.0, raw)
	})

	t.Run("unable to assess earns quarter credit", func(t *testing.T) {
		// (0 + 0.25*4) / 4 * 100 = 25
		raw, err := RawChecklistScore(items(0, 0, 4))
		require.NoError(t, err)
		assert.Equal(t, 25.0, raw)
	})

	t.Run("mixed statuses", func(t *testing.T) {
		// (4 + 0.25*14) / 19 * 100 = 39.4736...
		raw, err := RawChecklistScore(items(4, 1, 14))
		require.NoError(t, err)
		assert.InDelta(t, 39.47368, raw, 0.0001)
	})
}

func TestPenalty(t *testing.T) {
	findings := []Finding{
		{Severity: SeverityCritical},
		{Severity: SeverityMajor},
		{Severity: SeverityMinor},
		{Severity: SeverityObservation},
		{Severity: SeverityObservation},
	}
	// 15 + 10 + 5 + 2 + 2
	assert.Equal(t, 34.0, Penalty(findings))
	assert.Equal(t, 0.0, Penalty(nil))
}

func TestStatusForScore(t *testing.T) {
	cases := []struct {
		score int
		want  Verdict
	}{
		{100, VerdictPass},
		{80, VerdictPass},
		{79, VerdictInvestigate},
		{50, VerdictInvestigate},
		{49, VerdictFail},
		{0, VerdictFail},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, StatusForScore(c.score), "score %d", c.score)
	}
}

func TestClampScore(t *testing.T) {
	assert.Equal(t, 0, clampScore(-12))
	assert.Equal(t, 0, clampScore(0))
	assert.Equal(t, 57, clampScore(57))
	assert.Equal(t, 100, clampScore(100))
	assert.Equal(t, 100, clampScore(140))
}
