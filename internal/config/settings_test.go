package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"satellitor-desktop/internal/geo"
)

func TestDefaultSettingsAreValid(t *testing.T) {
	s := DefaultSettings()
	require.NoError(t, s.Validate())

	assert.Equal(t, geo.EgyptBounds, s.Bounds)
	assert.Equal(t, 5, s.MinZoom)
	assert.Equal(t, 15, s.MaxZoom)
	assert.Equal(t, 560, s.SmallScreenWidth)
	assert.Equal(t, 1000, s.OffscreenSettleMs)
	assert.Equal(t, 500, s.GoToSettleMs)
	assert.Equal(t, 512, s.TileSize)
	assert.Equal(t, -1, s.TileZoomOffset)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	s, err := LoadSettingsFrom(filepath.Join(t.TempDir(), "settings.json"))
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings(), s)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.json")
	s := DefaultSettings()
	s.MapTilerKey = "stored-key"
	s.CacheMaxSizeMB = 512

	require.NoError(t, SaveSettingsTo(path, s))
	loaded, err := LoadSettingsFrom(path)
	require.NoError(t, err)
	assert.Equal(t, s, loaded)
}

func TestLoadMergesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"mapTilerKey":"abc","maxZoom":14}`), 0644))

	s, err := LoadSettingsFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "abc", s.MapTilerKey)
	assert.Equal(t, 14, s.MaxZoom)
	assert.Equal(t, 5, s.MinZoom)
	assert.Equal(t, geo.EgyptBounds, s.Bounds)
	assert.Equal(t, DefaultSettings().AnalysisURL, s.AnalysisURL)
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0644))

	_, err := LoadSettingsFrom(path)
	assert.Error(t, err)
}

func TestLoadInvalidSettingsFallsBackToDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	body := `{"mapTilerKey":"abc","bounds":{"minLat":31.6,"maxLat":22,"minLng":25,"maxLng":36.9}}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))

	s, err := LoadSettingsFrom(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings(), s)
	assert.NoError(t, s.Validate())
}

func TestSaveRejectsInvalidSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")

	s := DefaultSettings()
	s.MinZoom = 16
	assert.Error(t, SaveSettingsTo(path, s))

	s = DefaultSettings()
	s.DefaultCenterLat = 40
	assert.Error(t, SaveSettingsTo(path, s))

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestResolvedMapTilerKey(t *testing.T) {
	s := DefaultSettings()
	s.MapTilerKey = "stored"

	t.Setenv(MapTilerKeyEnv, "")
	assert.Equal(t, "stored", s.ResolvedMapTilerKey())

	t.Setenv(MapTilerKeyEnv, "from-env")
	assert.Equal(t, "from-env", s.ResolvedMapTilerKey())
	assert.Equal(t, "from-env", s.TileConfig().APIKey)
}

func TestDerivedConfigs(t *testing.T) {
	s := DefaultSettings()

	vp := s.ViewportConfig(400, 300)
	assert.Equal(t, 400, vp.Width)
	assert.Equal(t, 300, vp.Height)
	assert.Equal(t, 500*time.Millisecond, vp.SettleDelay)

	cp := s.CaptureConfig()
	assert.Equal(t, 15, cp.TargetZoom)
	assert.Equal(t, time.Second, cp.OffscreenSettle)
}

func TestCacheConfig(t *testing.T) {
	s := DefaultSettings()
	s.CacheMaxSizeMB = 64
	s.CacheTTLDays = 7

	cc := s.CacheConfig()
	assert.Equal(t, 64, cc.MaxSizeMB)
	assert.Equal(t, 7, cc.TTLDays)
	assert.Equal(t, 256, cc.MemoryEntries)
}
