package report

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"satellitor-desktop/internal/analysis"
)

const pdf = "%PDF-1.4 fake report"

func result(t *testing.T, body string) *analysis.Result {
	t.Helper()
	r, err := analysis.ParseResult([]byte(body))
	require.NoError(t, err)
	return r
}

func waitTerminal(t *testing.T, g *Generator) State {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s, err := g.Wait(ctx)
	require.NoError(t, err)
	return s
}

func TestGenerateOnceForSameResult(t *testing.T) {
	var hits atomic.Int64
	var gotBody atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/generate_report", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		gotBody.Store(string(body))
		w.Header().Set("Content-Type", "application/pdf")
		io.WriteString(w, pdf)
	}))
	defer srv.Close()

	g := NewGenerator(srv.URL, 0)
	assert.Equal(t, StatusNotStarted, g.State().Status)

	body := `{"percentage": {"Urban": 40}, "ph": 7}`
	r := result(t, body)
	require.NoError(t, g.Generate(context.Background(), r))
	require.NoError(t, g.Generate(context.Background(), r))

	s := waitTerminal(t, g)
	assert.Equal(t, StatusReady, s.Status)
	assert.Equal(t, len(pdf), s.Size)

	// Ready is terminal for this result.
	require.NoError(t, g.Generate(context.Background(), result(t, body)))
	assert.Equal(t, StatusReady, g.State().Status)
	assert.Equal(t, int64(1), hits.Load())
	assert.Equal(t, body, gotBody.Load())
}

func TestGenerateEmptyBodyFails(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	g := NewGenerator(srv.URL, 0)
	r := result(t, `{"percentage": {"Water": 3}}`)
	require.NoError(t, g.Generate(context.Background(), r))

	s := waitTerminal(t, g)
	assert.Equal(t, StatusFailed, s.Status)
	assert.Contains(t, s.Error, analysis.ErrEmptyResponse.Error())

	// Failed is terminal: no retry for the same result.
	require.NoError(t, g.Generate(context.Background(), r))
	assert.Equal(t, StatusFailed, g.State().Status)
	assert.Equal(t, int64(1), hits.Load())

	_, err := g.Download(t.TempDir())
	assert.ErrorIs(t, err, ErrReportNotReady)
}

func TestGenerateServerErrorFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, `{"error": "model offline"}`)
	}))
	defer srv.Close()

	g := NewGenerator(srv.URL, 0)
	require.NoError(t, g.Generate(context.Background(), result(t, `{"ph": 6}`)))

	s := waitTerminal(t, g)
	assert.Equal(t, StatusFailed, s.Status)
	assert.Contains(t, s.Error, "500")
	assert.Contains(t, s.Error, "model offline")
}

func TestNewResultAbandonsInFlightRequest(t *testing.T) {
	firstArrived := make(chan struct{})
	firstCancelled := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if strings.Contains(string(body), "first") {
			close(firstArrived)
			<-r.Context().Done()
			close(firstCancelled)
			return
		}
		io.WriteString(w, "second report")
	}))
	defer srv.Close()

	g := NewGenerator(srv.URL, 0)
	first := result(t, `{"soil_type": "first"}`)
	second := result(t, `{"soil_type": "second"}`)

	require.NoError(t, g.Generate(context.Background(), first))
	firstID := g.State().ResultID
	assert.Equal(t, StatusPending, g.State().Status)

	select {
	case <-firstArrived:
	case <-time.After(5 * time.Second):
		t.Fatal("first request never reached the server")
	}

	require.NoError(t, g.Generate(context.Background(), second))
	assert.NotEqual(t, firstID, g.State().ResultID)

	select {
	case <-firstCancelled:
	case <-time.After(5 * time.Second):
		t.Fatal("first request was not cancelled")
	}

	s := waitTerminal(t, g)
	assert.Equal(t, StatusReady, s.Status)
	a, err := g.Artifact()
	require.NoError(t, err)
	assert.Equal(t, "second report", string(a.Data))
}

func TestAbandonResetsState(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
		io.WriteString(w, pdf)
	}))
	defer srv.Close()
	defer close(release)

	g := NewGenerator(srv.URL, 0)
	require.NoError(t, g.Generate(context.Background(), result(t, `{"ph": 5}`)))
	g.Abandon()

	s := waitTerminal(t, g)
	assert.Equal(t, StatusNotStarted, s.Status)
	assert.Empty(t, s.ResultID)
}

func TestDownloadDoesNotOverwrite(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, pdf)
	}))
	defer srv.Close()

	g := NewGenerator(srv.URL, 0)
	require.NoError(t, g.Generate(context.Background(), result(t, `{"ph": 8}`)))
	waitTerminal(t, g)

	dir := t.TempDir()
	first, err := g.Download(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, Filename), first)

	second, err := g.Download(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "land_analysis_report (1).pdf"), second)

	data, err := os.ReadFile(second)
	require.NoError(t, err)
	assert.Equal(t, pdf, string(data))
}

func TestJSONWrappedReport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"report": "`+base64.StdEncoding.EncodeToString([]byte(pdf))+`"}`)
	}))
	defer srv.Close()

	g := NewGenerator(srv.URL, 0)
	require.NoError(t, g.Generate(context.Background(), result(t, `{"ph": 9}`)))
	s := waitTerminal(t, g)
	require.Equal(t, StatusReady, s.Status)

	a, err := g.Artifact()
	require.NoError(t, err)
	assert.Equal(t, pdf, string(a.Data))
	assert.Equal(t, "application/pdf", a.ContentType)
}

func TestJSONWrappedPlainText(t *testing.T) {
	// "Soil" is also valid base64 and must not be decoded.
	for _, body := range []string{`{"report": "Soil"}`, `"Soil"`} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			io.WriteString(w, body)
		}))

		g := NewGenerator(srv.URL, 0)
		require.NoError(t, g.Generate(context.Background(), result(t, `{"ph": 7}`)))
		s := waitTerminal(t, g)
		require.Equal(t, StatusReady, s.Status, body)

		a, err := g.Artifact()
		require.NoError(t, err)
		assert.Equal(t, "Soil", string(a.Data), body)
		assert.Equal(t, "text/plain; charset=utf-8", a.ContentType, body)
		srv.Close()
	}
}

func TestJSONWrappedReportWithEncoding(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		io.WriteString(w, `{"report": "`+base64.StdEncoding.EncodeToString([]byte("Soil"))+`", "encoding": "base64"}`)
	}))
	defer srv.Close()

	g := NewGenerator(srv.URL, 0)
	require.NoError(t, g.Generate(context.Background(), result(t, `{"ph": 8}`)))
	s := waitTerminal(t, g)
	require.Equal(t, StatusReady, s.Status)

	a, err := g.Artifact()
	require.NoError(t, err)
	assert.Equal(t, "Soil", string(a.Data))
}

func TestResultIDIsStable(t *testing.T) {
	a, _, err := ResultID(result(t, `{"ph": 1}`))
	require.NoError(t, err)
	b, _, err := ResultID(result(t, `{"ph": 1}`))
	require.NoError(t, err)
	c, _, err := ResultID(result(t, `{"ph": 2}`))
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
