package tileserver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"satellitor-desktop/internal/tiles"
)

// TileFetcher returns the bytes of one map tile
type TileFetcher interface {
	FetchTile(ctx context.Context, t tiles.Tile) ([]byte, error)
}

// Server proxies map tiles to the webview through the tile source and its cache
type Server struct {
	source        TileFetcher
	tileServerURL string
	devMode       bool

	mu     sync.Mutex
	server *http.Server
}

// NewServer creates a tile server instance
func NewServer(source TileFetcher, devMode bool) *Server {
	return &Server{
		source:  source,
		devMode: devMode,
	}
}

// GetTileServerURL returns the tile server URL, empty until started
func (s *Server) GetTileServerURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tileServerURL
}

// TileURLTemplate returns the XYZ template the map view should load
func (s *Server) TileURLTemplate() string {
	base := s.GetTileServerURL()
	if base == "" {
		return ""
	}
	return base + "/tiles/{z}/{x}/{y}"
}

// corsMiddleware adds CORS headers to allow requests from Wails frontend
// On macOS/Linux, Wails uses wails://wails origin which requires CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Handler returns the HTTP handler serving /tiles/{z}/{x}/{y}
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/tiles/", s.handleTile)
	return corsMiddleware(mux)
}

// Start listens on a random loopback port and serves in the background
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("failed to start tile server: %w", err)
	}

	port := listener.Addr().(*net.TCPAddr).Port
	server := &http.Server{Handler: s.Handler()}

	s.mu.Lock()
	s.tileServerURL = fmt.Sprintf("http://127.0.0.1:%d", port)
	s.server = server
	s.mu.Unlock()
	log.Printf("[TileServer] Started on http://127.0.0.1:%d", port)

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("[TileServer] Stopped: %v", err)
		}
	}()

	return nil
}

// Stop shuts the server down
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	server := s.server
	s.server = nil
	s.tileServerURL = ""
	s.mu.Unlock()

	if server == nil {
		return nil
	}
	return server.Shutdown(ctx)
}

// handleTile serves one tile
// URL format: /tiles/{z}/{x}/{y}
func (s *Server) handleTile(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/tiles/")
	parts := strings.Split(path, "/")
	if len(parts) != 3 {
		http.Error(w, "Invalid URL format. Expected: /tiles/{z}/{x}/{y}", http.StatusBadRequest)
		return
	}

	z, err := strconv.Atoi(parts[0])
	if err != nil || z < 0 {
		http.Error(w, "Invalid zoom level", http.StatusBadRequest)
		return
	}
	x, err := strconv.Atoi(parts[1])
	if err != nil {
		http.Error(w, "Invalid X coordinate", http.StatusBadRequest)
		return
	}
	y, err := strconv.Atoi(strings.TrimSuffix(parts[2], ".jpg"))
	if err != nil {
		http.Error(w, "Invalid Y coordinate", http.StatusBadRequest)
		return
	}

	n := 1 << z
	if x < 0 || y < 0 || x >= n || y >= n {
		s.serveTransparentTile(w)
		return
	}

	data, err := s.source.FetchTile(r.Context(), tiles.Tile{Z: z, X: x, Y: y})
	if err != nil {
		if s.devMode {
			log.Printf("[TileServer] Failed to fetch tile %d/%d/%d: %v", z, x, y, err)
		}
		s.serveTransparentTile(w)
		return
	}

	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.Header().Set("Cache-Control", "max-age=86400")
	w.Write(data)
}

var (
	transparentOnce sync.Once
	transparentPNG  []byte
)

// serveTransparentTile answers missing tiles with a 1x1 transparent PNG
func (s *Server) serveTransparentTile(w http.ResponseWriter) {
	transparentOnce.Do(func() {
		var buf bytes.Buffer
		png.Encode(&buf, image.NewNRGBA(image.Rect(0, 0, 1, 1)))
		transparentPNG = buf.Bytes()
	})

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Tile-Missing", "1")
	w.Write(transparentPNG)
}
