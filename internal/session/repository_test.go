package session

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"satellitor-desktop/internal/analysis"
	"satellitor-desktop/internal/geo"
)

const body = `{"percentage":{"Urban":40,"Water":2},"normalized_FI":{"Urban":0.002},"ph":6.8}`

func sampleRecord(t *testing.T) Record {
	t.Helper()
	result, err := analysis.ParseResult([]byte(body))
	require.NoError(t, err)
	return Record{
		Coordinates: geo.Coordinate{Latitude: 30.0444, Longitude: 31.2357},
		Analysis:    result,
	}
}

func exerciseRepository(t *testing.T, repo Repository) {
	_, err := repo.CapturedImage()
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = repo.Analysis()
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, repo.SetCapturedImage("data:image/png;base64,AAAA"))
	require.NoError(t, repo.SetCapturedImage("data:image/png;base64,BBBB"))
	img, err := repo.CapturedImage()
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,BBBB", img)

	rec := sampleRecord(t)
	require.NoError(t, repo.SetAnalysis(rec))
	got, err := repo.Analysis()
	require.NoError(t, err)
	assert.Equal(t, rec.Coordinates, got.Coordinates)
	assert.Equal(t, []string{"Urban", "Water"}, got.Analysis.Percentage.Keys())

	raw, err := got.Analysis.Raw()
	require.NoError(t, err)
	assert.JSONEq(t, body, string(raw))

	require.NoError(t, repo.Clear())
	_, err = repo.Analysis()
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryRepository(t *testing.T) {
	exerciseRepository(t, NewMemoryRepository())
}

func TestFileRepository(t *testing.T) {
	repo, err := NewFileRepository(t.TempDir())
	require.NoError(t, err)
	assert.NotEmpty(t, repo.ID())
	exerciseRepository(t, repo)

	_, err = os.Stat(repo.Dir())
	assert.True(t, os.IsNotExist(err))
}

func TestFileRepositoryReopen(t *testing.T) {
	root := t.TempDir()
	first, err := NewFileRepository(root)
	require.NoError(t, err)
	require.NoError(t, first.SetAnalysis(sampleRecord(t)))

	second, err := OpenFileRepository(root, first.ID())
	require.NoError(t, err)
	rec, err := second.Analysis()
	require.NoError(t, err)
	assert.InDelta(t, 30.0444, rec.Coordinates.Latitude, 1e-9)

	// Slot files are whole JSON documents named by key.
	data, err := os.ReadFile(filepath.Join(first.Dir(), KeyAnalysis+".json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"coordinates"`)
	assert.Contains(t, string(data), `"analysis"`)
}

func TestOpenFileRepositoryRequiresID(t *testing.T) {
	_, err := OpenFileRepository(t.TempDir(), "")
	assert.Error(t, err)
}
