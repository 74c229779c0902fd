package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"labsentinel/internal/domain/audits"
)

func sampleResult(fp string, score int) *audits.AuditResult {
	return &audits.AuditResult{
		Fingerprint:      fp,
		ProcedureID:      "SOP-GE-002",
		ProcedureVersion: "2.1",
		DetectedType:     audits.TypeGel,
		ExpectedType:     audits.TypeGel,
		Score:            score,
		Status:           audits.VerdictPass,
		Checklist: []audits.ChecklistItem{
			{Criterion: "ladder present", Status: audits.StatusCompliant},
		},
	}
}

func TestFileCacheRoundtrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.json")
	c := New(path, zap.NewNop())

	_, err := c.Get(ctx, "fp1")
	require.ErrorIs(t, err, audits.ErrNotFound)

	res := sampleResult("fp1", 92)
	require.NoError(t, c.Put(ctx, "fp1", res))

	got, err := c.Get(ctx, "fp1")
	require.NoError(t, err)
	assert.Equal(t, res, got)
}

func TestFileCacheSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.json")

	c := New(path, zap.NewNop())
	require.NoError(t, c.Put(ctx, "fp1", sampleResult("fp1", 85)))
	require.NoError(t, c.SaveDescription(ctx, "ev1", "a gel image"))

	// fresh instance over the same file
	c2 := New(path, zap.NewNop())
	got, err := c2.Get(ctx, "fp1")
	require.NoError(t, err)
	assert.Equal(t, 85, got.Score)

	text, ok := c2.Description(ctx, "ev1")
	require.True(t, ok)
	assert.Equal(t, "a gel image", text)
}

func TestFileCacheFirstWriteWins(t *testing.T) {
	ctx := context.Background()
	c := New(filepath.Join(t.TempDir(), "cache.json"), zap.NewNop())

	require.NoError(t, c.Put(ctx, "fp1", sampleResult("fp1", 85)))

	t.Run("identical re-put is a no-op", func(t *testing.T) {
		require.NoError(t, c.Put(ctx, "fp1", sampleResult("fp1", 85)))
	})

	t.Run("differing re-put is a conflict and the original stays", func(t *testing.T) {
		err := c.Put(ctx, "fp1", sampleResult("fp1", 40))
		require.ErrorIs(t, err, audits.ErrCacheConflict)

		got, err := c.Get(ctx, "fp1")
		require.NoError(t, err)
		assert.Equal(t, 85, got.Score)
	})
}

func TestFileCacheDescriptionFirstWriteWins(t *testing.T) {
	ctx := context.Background()
	c := New(filepath.Join(t.TempDir(), "cache.json"), zap.NewNop())

	require.NoError(t, c.SaveDescription(ctx, "ev1", "first"))
	require.NoError(t, c.SaveDescription(ctx, "ev1", "second"))

	text, ok := c.Description(ctx, "ev1")
	require.True(t, ok)
	assert.Equal(t, "first", text)
}

func TestFileCacheCorruptFileStartsEmpty(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.json")
	require.NoError(t, os.WriteFile(path, []byte("{torn write"), 0o644))

	c := New(path, zap.NewNop())
	_, err := c.Get(ctx, "fp1")
	require.ErrorIs(t, err, audits.ErrNotFound)

	// still usable for new writes
	require.NoError(t, c.Put(ctx, "fp1", sampleResult("fp1", 70)))
	got, err := c.Get(ctx, "fp1")
	require.NoError(t, err)
	assert.Equal(t, 70, got.Score)
}

func TestFileCacheClear(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.json")
	c := New(path, zap.NewNop())

	require.NoError(t, c.Put(ctx, "fp1", sampleResult("fp1", 85)))
	require.NoError(t, c.SaveDescription(ctx, "ev1", "a gel image"))
	require.NoError(t, c.Clear(ctx))

	_, err := c.Get(ctx, "fp1")
	require.ErrorIs(t, err, audits.ErrNotFound)
	_, ok := c.Description(ctx, "ev1")
	assert.False(t, ok)

	// the clear is persisted too
	c2 := New(path, zap.NewNop())
	_, err = c2.Get(ctx, "fp1")
	require.ErrorIs(t, err, audits.ErrNotFound)
}

func TestFileCacheNoTempFilesLeftBehind(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	c := New(filepath.Join(dir, "cache.json"), zap.NewNop())

	require.NoError(t, c.Put(ctx, "fp1", sampleResult("fp1", 85)))
	require.NoError(t, c.Put(ctx, "fp2", sampleResult("fp2", 60)))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "cache.json", entries[0].Name())
}
