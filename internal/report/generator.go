package report

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"satellitor-desktop/internal/analysis"
	"satellitor-desktop/internal/utils/naming"
)

const (
	// DefaultBaseURL is the report generation service
	DefaultBaseURL = "https://web-production-6017.up.railway.app"

	// DefaultTimeout covers LLM text generation plus PDF layout
	DefaultTimeout = 5 * time.Minute

	// Filename is the name a downloaded report is saved under
	Filename = "land_analysis_report.pdf"
)

// ErrReportNotReady is returned by Download before a report is available
var ErrReportNotReady = errors.New("report is not ready")

// Status is the report lifecycle for the current result
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusPending    Status = "pending"
	StatusReady      Status = "ready"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further transition happens for this result
func (s Status) Terminal() bool {
	return s == StatusReady || s == StatusFailed
}

// Artifact is a generated report document
type Artifact struct {
	Data        []byte
	ContentType string
}

// State is a snapshot of the generator
type State struct {
	Status      Status `json:"status"`
	ResultID    string `json:"resultId,omitempty"`
	Size        int    `json:"size"`
	ContentType string `json:"contentType,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Generator requests one report per distinct analysis result
type Generator struct {
	baseURL    string
	httpClient *http.Client

	mu         sync.Mutex
	status     Status
	resultID   string
	artifact   *Artifact
	err        error
	generation int
	cancel     context.CancelFunc
	done       chan struct{}
	onChange   func(State)
}

// NewGenerator creates a generator for the service at baseURL
func NewGenerator(baseURL string, timeout time.Duration) *Generator {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Generator{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
			},
		},
		status: StatusNotStarted,
	}
}

// OnChange registers a callback for state transitions
func (g *Generator) OnChange(fn func(State)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onChange = fn
}

// ResultID identifies a result by the hash of its JSON body
func ResultID(r *analysis.Result) (string, []byte, error) {
	raw, err := r.Raw()
	if err != nil {
		return "", nil, fmt.Errorf("failed to encode analysis result: %w", err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), raw, nil
}

// Generate starts report generation for r. Calling it again for the same
// result is a no-op whatever the state. A different result abandons any
// request in flight and starts over.
func (g *Generator) Generate(ctx context.Context, r *analysis.Result) error {
	if r == nil {
		return fmt.Errorf("no analysis result")
	}
	id, raw, err := ResultID(r)
	if err != nil {
		return err
	}

	g.mu.Lock()
	if id == g.resultID && g.status != StatusNotStarted {
		g.mu.Unlock()
		return nil
	}

	g.abandonLocked()
	g.resultID = id
	g.status = StatusPending
	g.generation++
	gen := g.generation
	done := make(chan struct{})
	g.done = done

	reqCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	g.cancel = cancel
	snapshot, notify := g.stateLocked(), g.onChange
	g.mu.Unlock()

	log.Printf("[Report] Requesting report for result %s", shortID(id))
	if notify != nil {
		notify(snapshot)
	}

	go g.run(reqCtx, gen, raw, done)
	return nil
}

// Abandon stops listening for the in-flight request and forgets the result
func (g *Generator) Abandon() {
	g.mu.Lock()
	g.abandonLocked()
	g.resultID = ""
	snapshot, notify := g.stateLocked(), g.onChange
	g.mu.Unlock()

	if notify != nil {
		notify(snapshot)
	}
}

// abandonLocked must be called with g.mu held
func (g *Generator) abandonLocked() {
	if g.cancel != nil {
		g.cancel()
		g.cancel = nil
	}
	if g.status == StatusPending {
		log.Printf("[Report] Abandoned request for result %s", shortID(g.resultID))
	}
	g.generation++
	g.status = StatusNotStarted
	g.artifact = nil
	g.err = nil
	g.done = nil
}

func (g *Generator) run(ctx context.Context, gen int, body []byte, done chan struct{}) {
	defer close(done)

	artifact, err := g.request(ctx, body)

	g.mu.Lock()
	if gen != g.generation {
		// Superseded by a newer result or abandoned
		g.mu.Unlock()
		return
	}
	if err != nil {
		g.status = StatusFailed
		g.err = err
		log.Printf("[Report] Generation failed: %v", err)
	} else {
		g.status = StatusReady
		g.artifact = artifact
		log.Printf("[Report] Report ready (%d bytes)", len(artifact.Data))
	}
	if g.cancel != nil {
		g.cancel()
		g.cancel = nil
	}
	snapshot, notify := g.stateLocked(), g.onChange
	g.mu.Unlock()

	if notify != nil {
		notify(snapshot)
	}
}

func (g *Generator) request(ctx context.Context, body []byte) (*Artifact, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/generate_report", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, &analysis.NetworkError{Op: "generate_report", Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &analysis.NetworkError{Op: "generate_report", StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &analysis.NetworkError{Op: "generate_report", StatusCode: resp.StatusCode, Err: errorMessage(data)}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &analysis.NetworkError{Op: "generate_report", StatusCode: resp.StatusCode, Err: analysis.ErrEmptyResponse}
	}

	contentType := resp.Header.Get("Content-Type")
	if mediaType, _, _ := mime.ParseMediaType(contentType); mediaType == "application/json" {
		doc, docType, err := unwrapJSON(data)
		if err != nil {
			return nil, &analysis.NetworkError{Op: "generate_report", StatusCode: resp.StatusCode, Err: err}
		}
		return &Artifact{Data: doc, ContentType: docType}, nil
	}

	if contentType == "" {
		contentType = "application/pdf"
	}
	return &Artifact{Data: data, ContentType: contentType}, nil
}

// unwrapJSON extracts a document the service sent wrapped in JSON, either
// as a bare string or as {"report": "...", "encoding": "base64"}. Unmarked
// text is only base64-decoded when the result is a PDF.
func unwrapJSON(data []byte) ([]byte, string, error) {
	var text string
	var encoding string
	if err := json.Unmarshal(data, &text); err != nil {
		var wrapped struct {
			Report   string `json:"report"`
			Encoding string `json:"encoding"`
			Error    string `json:"error"`
		}
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return nil, "", fmt.Errorf("unexpected report body: %w", err)
		}
		if wrapped.Error != "" {
			return nil, "", &analysis.ServiceError{Message: wrapped.Error}
		}
		text = wrapped.Report
		encoding = strings.ToLower(wrapped.Encoding)
	}

	if strings.TrimSpace(text) == "" {
		return nil, "", analysis.ErrEmptyResponse
	}

	decoded, decodeErr := base64.StdEncoding.DecodeString(text)
	if encoding == "base64" {
		if decodeErr != nil {
			return nil, "", fmt.Errorf("invalid base64 report: %w", decodeErr)
		}
		return decoded, http.DetectContentType(decoded), nil
	}
	if decodeErr == nil && bytes.HasPrefix(decoded, []byte("%PDF")) {
		return decoded, "application/pdf", nil
	}
	return []byte(text), "text/plain; charset=utf-8", nil
}

func errorMessage(data []byte) error {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err != nil || body.Error == "" {
		return nil
	}
	return &analysis.ServiceError{Message: body.Error}
}

// State returns a snapshot
func (g *Generator) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.stateLocked()
}

func (g *Generator) stateLocked() State {
	s := State{Status: g.status, ResultID: g.resultID}
	if g.artifact != nil {
		s.Size = len(g.artifact.Data)
		s.ContentType = g.artifact.ContentType
	}
	if g.err != nil {
		s.Error = g.err.Error()
	}
	return s
}

// Artifact returns the document once ready
func (g *Generator) Artifact() (*Artifact, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.status != StatusReady || g.artifact == nil {
		return nil, ErrReportNotReady
	}
	return g.artifact, nil
}

// Wait blocks until the current result's report is ready or failed. It
// returns immediately when nothing has been requested.
func (g *Generator) Wait(ctx context.Context) (State, error) {
	for {
		g.mu.Lock()
		done := g.done
		state := g.stateLocked()
		g.mu.Unlock()

		if state.Status != StatusPending || done == nil {
			return state, nil
		}

		select {
		case <-done:
		case <-ctx.Done():
			return g.State(), ctx.Err()
		}
	}
}

// Download saves the report into dir as land_analysis_report.pdf, adding a
// " (n)" suffix instead of overwriting. It returns the written path.
func (g *Generator) Download(dir string) (string, error) {
	if _, err := g.Artifact(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create download directory: %w", err)
	}

	path, err := naming.UniquePath(dir, Filename)
	if err != nil {
		return "", err
	}
	if err := g.SaveTo(path); err != nil {
		return "", err
	}
	return path, nil
}

// SaveTo writes the report to path
func (g *Generator) SaveTo(path string) error {
	artifact, err := g.Artifact()
	if err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	if _, err := f.Write(artifact.Data); err != nil {
		f.Close()
		return fmt.Errorf("failed to write report: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close report file: %w", err)
	}

	log.Printf("[Report] Saved report to %s", path)
	return nil
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
