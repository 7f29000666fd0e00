package tileserver

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"satellitor-desktop/internal/tiles"
)

type fakeFetcher struct {
	mu    sync.Mutex
	calls []tiles.Tile
	err   error
}

func (f *fakeFetcher) FetchTile(ctx context.Context, t tiles.Tile) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, t)
	if f.err != nil {
		return nil, f.err
	}
	return []byte("\xff\xd8\xff\xe0 jpeg tile"), nil
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestServesTileFromSource(t *testing.T) {
	f := &fakeFetcher{}
	h := NewServer(f, false).Handler()

	rec := get(t, h, "/tiles/9/300/210")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, []tiles.Tile{{Z: 9, X: 300, Y: 210}}, f.calls)
}

func TestBadPathsRejected(t *testing.T) {
	h := NewServer(&fakeFetcher{}, false).Handler()

	for _, path := range []string{"/tiles/9/300", "/tiles/a/1/2", "/tiles/3/x/2", "/tiles/3/1/y"} {
		assert.Equal(t, http.StatusBadRequest, get(t, h, path).Code, path)
	}
}

func TestMissingTileIsTransparent(t *testing.T) {
	f := &fakeFetcher{err: errors.New("boom")}
	h := NewServer(f, true).Handler()

	rec := get(t, h, "/tiles/5/1/1")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "1", rec.Header().Get("X-Tile-Missing"))

	// Out of range tiles never reach the source
	rec = get(t, h, "/tiles/2/4/0")
	assert.Equal(t, "1", rec.Header().Get("X-Tile-Missing"))
	assert.Len(t, f.calls, 1)
}

func TestPreflight(t *testing.T) {
	h := NewServer(&fakeFetcher{}, false).Handler()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/tiles/1/0/0", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "GET, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
}

func TestStartAndStop(t *testing.T) {
	s := NewServer(&fakeFetcher{}, false)
	assert.Empty(t, s.TileURLTemplate())

	require.NoError(t, s.Start())
	base := s.GetTileServerURL()
	require.NotEmpty(t, base)
	assert.Equal(t, base+"/tiles/{z}/{x}/{y}", s.TileURLTemplate())

	resp, err := http.Get(base + "/tiles/1/1/1")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), "jpeg tile")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	assert.Empty(t, s.GetTileServerURL())
}
