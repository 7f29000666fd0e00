package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"satellitor-desktop/internal/geo"
)

const (
	// DefaultBaseURL is the land analysis service
	DefaultBaseURL = "https://satellitor.duckdns.org"

	// DefaultTimeout covers segmentation plus the soil and climate lookups
	DefaultTimeout = 5 * time.Minute

	// ImageFilename is the part filename the service expects
	ImageFilename = "image.png"
)

var (
	// ErrEmptyResponse is returned when the service answers 2xx with no body
	ErrEmptyResponse = errors.New("empty response body")

	// ErrPayloadConsumed is returned when a payload is submitted twice
	ErrPayloadConsumed = errors.New("capture payload already submitted")
)

// NetworkError describes a failed call to a remote service. StatusCode is
// zero when no response was received.
type NetworkError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("%s failed with status %d: %v", e.Op, e.StatusCode, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s failed with status %d", e.Op, e.StatusCode)
	default:
		return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
	}
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ServiceError is an error body the service sent in place of a result
type ServiceError struct {
	Message string `json:"error"`
	Details string `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	if e.Details != "" {
		return e.Message + ": " + e.Details
	}
	return e.Message
}

// CapturePayload is one captured viewport ready for upload. It can be
// submitted exactly once.
type CapturePayload struct {
	Center   geo.Coordinate
	Image    []byte // PNG
	consumed atomic.Bool
}

// NewCapturePayload creates a payload for a rendered viewport
func NewCapturePayload(center geo.Coordinate, png []byte) *CapturePayload {
	return &CapturePayload{Center: center, Image: png}
}

// Consumed reports whether the payload has been submitted
func (p *CapturePayload) Consumed() bool {
	return p.consumed.Load()
}

// Client talks to the land analysis service
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for baseURL
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
			},
		},
	}
}

// BaseURL returns the service root
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ImageURL resolves an image link from a result against the service root
func (c *Client) ImageURL(path string) string {
	if path == "" || strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL + path
}

// Submit uploads the payload with a single POST /process. There is no retry:
// any failure is returned as a *NetworkError.
func (c *Client) Submit(ctx context.Context, p *CapturePayload) (*Result, error) {
	if !p.consumed.CompareAndSwap(false, true) {
		return nil, ErrPayloadConsumed
	}

	body, contentType, err := encodeForm(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode capture payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/process", body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{Op: "process", Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Op: "process", StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Printf("[Analysis] Service returned HTTP %d (%d bytes)", resp.StatusCode, len(data))
		return nil, &NetworkError{Op: "process", StatusCode: resp.StatusCode, Err: serviceError(data)}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &NetworkError{Op: "process", StatusCode: resp.StatusCode, Err: ErrEmptyResponse}
	}
	if svcErr := serviceError(data); svcErr != nil {
		return nil, &NetworkError{Op: "process", StatusCode: resp.StatusCode, Err: svcErr}
	}

	result, err := ParseResult(data)
	if err != nil {
		return nil, &NetworkError{Op: "process", StatusCode: resp.StatusCode, Err: err}
	}
	return result, nil
}

func encodeForm(p *CapturePayload) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := w.WriteField("latitude", strconv.FormatFloat(p.Center.Latitude, 'f', -1, 64)); err != nil {
		return nil, "", err
	}
	if err := w.WriteField("longitude", strconv.FormatFloat(p.Center.Longitude, 'f', -1, 64)); err != nil {
		return nil, "", err
	}

	part, err := w.CreateFormFile("image", ImageFilename)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(p.Image); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}

	return &buf, w.FormDataContentType(), nil
}

// serviceError extracts an error body. The service sometimes answers 200
// with either {"error": ...} or [{"error": ...}, status].
func serviceError(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}

	if data[0] == '[' {
		var parts []json.RawMessage
		if err := json.Unmarshal(data, &parts); err != nil || len(parts) == 0 {
			return nil
		}
		data = parts[0]
	}

	var svcErr ServiceError
	if err := json.Unmarshal(data, &svcErr); err != nil || svcErr.Message == "" {
		return nil
	}
	return &svcErr
}
