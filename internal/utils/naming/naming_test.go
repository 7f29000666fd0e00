package naming

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"satellitor-desktop/internal/geo"
)

func TestSanitizeCoordinate(t *testing.T) {
	assert.Equal(t, "30p0444N", SanitizeCoordinate(30.0444, true))
	assert.Equal(t, "12p5000S", SanitizeCoordinate(-12.5, true))
	assert.Equal(t, "31p2357E", SanitizeCoordinate(31.2357, false))
	assert.Equal(t, "0p1000W", SanitizeCoordinate(-0.1, false))
}

func TestGenerateQuadkey(t *testing.T) {
	// The north-west quadrant of the world is quadkey "0" at zoom 1.
	assert.Equal(t, "0", GenerateQuadkey(geo.Coordinate{Latitude: 45, Longitude: -90}, 1))
	assert.Equal(t, "3", GenerateQuadkey(geo.Coordinate{Latitude: -45, Longitude: 90}, 1))
	assert.Len(t, GenerateQuadkey(geo.Coordinate{Latitude: 30, Longitude: 31}, 15), 15)
}

func TestCaptureFilename(t *testing.T) {
	name := CaptureFilename(geo.Coordinate{Latitude: 30.0444, Longitude: 31.2357}, 15)
	assert.Regexp(t, `^capture_30p0444N_31p2357E_z15_[0-3]{15}\.png$`, name)
}

func TestUniquePath(t *testing.T) {
	dir := t.TempDir()

	p, err := UniquePath(dir, "land_analysis_report.pdf")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "land_analysis_report.pdf"), p)
	require.NoError(t, os.WriteFile(p, []byte("a"), 0644))

	p, err = UniquePath(dir, "land_analysis_report.pdf")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "land_analysis_report (1).pdf"), p)
}
