package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "manifest.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestCreateAndFinishRun(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	r, err := s.CreateRun(ctx, "bcn", KindDownload, 18)
	require.NoError(t, err)
	assert.NotEmpty(t, r.ID)
	assert.Equal(t, StatusRunning, r.Status)

	require.NoError(t, s.FinishRun(ctx, r.ID, StatusComplete, 12, 3, 0, "/data/bcn/tiles"))

	got, tiles, err := s.GetRun(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusComplete, got.Status)
	assert.Equal(t, 12, got.TileCount)
	assert.Equal(t, 3, got.FailedFetches)
	assert.Equal(t, "/data/bcn/tiles", got.OutputDir)
	assert.Empty(t, tiles)
}

func TestFinishUnknownRun(t *testing.T) {
	s := openTestStore(t)
	err := s.FinishRun(context.Background(), "nope", StatusFailed, 0, 0, 0, "")
	assert.ErrorContains(t, err, "not found")
}

func TestAddAndGetTiles(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	r, err := s.CreateRun(ctx, "bcn", KindDownload, 18)
	require.NoError(t, err)

	in := []TileRecord{
		{Filename: "10_20_18.jpg", X: 10, Y: 20, Z: 18},
		{Filename: "11_20_18.jpg", X: 11, Y: 20, Z: 18, FailedSubtiles: 2},
	}
	require.NoError(t, s.AddTiles(ctx, r.ID, in))

	_, tiles, err := s.GetRun(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, in, tiles)
}

func TestListRunsNewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first, err := s.CreateRun(ctx, "one", KindDownload, 15)
	require.NoError(t, err)
	second, err := s.CreateRun(ctx, "two", KindDetect, 0)
	require.NoError(t, err)

	runs, err := s.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	ids := []string{runs[0].ID, runs[1].ID}
	assert.ElementsMatch(t, []string{first.ID, second.ID}, ids)

	limited, err := s.ListRuns(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestGetUnknownRun(t *testing.T) {
	s := openTestStore(t)
	_, _, err := s.GetRun(context.Background(), "missing")
	assert.ErrorContains(t, err, "not found")
}
