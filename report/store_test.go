package report

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore_RecordAndGetRun(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	// GIVEN one planning run with a short history
	run := RunRecord{
		PatientCount:     3,
		Strategy:         "always-cooperative",
		ExpectedValue:    412.5,
		TotalIterations:  20,
		CumulativeRegret: 88.25,
		NashDistance:     0.12,
		AveragePolicy:    map[string]float64{"always-cooperative": 0.7, "role-split-by-severity": 0.3},
		RegretHistory:    []float64{10, 50, 88.25},
		DistanceHistory:  []float64{0.4, 0.2, 0.12},
	}

	// WHEN recorded and read back
	id, err := store.RecordRun(ctx, run)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, err := store.GetRun(ctx, id)
	require.NoError(t, err)

	// THEN every field round-trips
	assert.Equal(t, id, got.ID)
	assert.Equal(t, 3, got.PatientCount)
	assert.Equal(t, "always-cooperative", got.Strategy)
	assert.Equal(t, 412.5, got.ExpectedValue)
	assert.Equal(t, 20, got.TotalIterations)
	assert.Equal(t, run.AveragePolicy, got.AveragePolicy)
	assert.Equal(t, run.RegretHistory, got.RegretHistory)
	assert.Equal(t, run.DistanceHistory, got.DistanceHistory)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestStore_GeneratesDistinctIDs(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	a, err := store.RecordRun(ctx, RunRecord{Strategy: "a"})
	require.NoError(t, err)
	b, err := store.RecordRun(ctx, RunRecord{Strategy: "b"})
	require.NoError(t, err)

	assert.NotEqual(t, a, b)

	n, err := store.CountRuns(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestStore_GetUnknownRunFails(t *testing.T) {
	store := openTestStore(t)

	_, err := store.GetRun(context.Background(), "no-such-run")
	assert.Error(t, err)
}

func TestExportArchive_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	archive := Archive{
		CreatedAt: time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
		GameParams: GameParams{
			Rounds:  20,
			Samples: 5,
			Horizon: 100,
		},
		TotalIterations:  40,
		CumulativeRegret: 123.4,
		AveragePolicy:    map[string]float64{"critical-first-then-split": 1},
		NashDistance:     0.05,
		RegretHistory:    []float64{1, 2, 3},
		DistanceHistory:  []float64{0.9, 0.5, 0.05},
	}

	path, err := ExportArchive(dir, archive)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "cfr_data_20260314_093000.json.zst"), path)

	got, err := ReadArchive(path)
	require.NoError(t, err)
	assert.Equal(t, archive.GameParams, got.GameParams)
	assert.Equal(t, archive.AveragePolicy, got.AveragePolicy)
	assert.Equal(t, archive.RegretHistory, got.RegretHistory)
	assert.Equal(t, archive.DistanceHistory, got.DistanceHistory)
	assert.True(t, archive.CreatedAt.Equal(got.CreatedAt))
}

func TestReadArchive_MissingFile(t *testing.T) {
	_, err := ReadArchive(filepath.Join(t.TempDir(), "absent.json.zst"))
	assert.Error(t, err)
}
