package ratelimit

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Default pacing for tile requests
const (
	DefaultRequestsPerSecond = 20
	DefaultBurst             = 10
)

// RateLimitEvent represents a throttling response from a tile provider
type RateLimitEvent struct {
	Timestamp  time.Time `json:"timestamp" ts_type:"string"`
	Provider   string    `json:"provider"`
	StatusCode int       `json:"statusCode"` // HTTP status code (403, 429, 509)
	Message    string    `json:"message"`    // User-friendly message
}

// Handler paces outgoing tile requests and records when a provider starts
// throttling. It never retries on its own: a throttled tile is simply
// missing from the next render.
type Handler struct {
	mu          sync.RWMutex
	limiter     *rate.Limiter
	rateLimited map[string]*RateLimitEvent // provider -> current rate limit state
	onRateLimit func(event RateLimitEvent) // Callback for UI notification
	onRecovered func(provider string)      // Callback when rate limit clears
}

// NewHandler creates a handler allowing rps requests per second with the given burst
func NewHandler(rps float64, burst int) *Handler {
	if rps <= 0 {
		rps = DefaultRequestsPerSecond
	}
	if burst <= 0 {
		burst = DefaultBurst
	}

	return &Handler{
		limiter:     rate.NewLimiter(rate.Limit(rps), burst),
		rateLimited: make(map[string]*RateLimitEvent),
	}
}

// SetOnRateLimit sets the callback for rate limit events
func (h *Handler) SetOnRateLimit(callback func(event RateLimitEvent)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onRateLimit = callback
}

// SetOnRecovered sets the callback for recovery from rate limit
func (h *Handler) SetOnRecovered(callback func(provider string)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onRecovered = callback
}

// Wait blocks until the next request may be sent or ctx is done
func (h *Handler) Wait(ctx context.Context) error {
	return h.limiter.Wait(ctx)
}

// IsRateLimited checks if a provider is currently rate limited
func (h *Handler) IsRateLimited(provider string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, limited := h.rateLimited[provider]
	return limited
}

// CheckResponse analyzes an HTTP response for rate limit indicators.
// It returns true when the response is a throttling response.
func (h *Handler) CheckResponse(provider string, resp *http.Response) bool {
	isRateLimited := resp.StatusCode == http.StatusTooManyRequests ||
		resp.StatusCode == http.StatusForbidden ||
		resp.StatusCode == 509 // Bandwidth Limit Exceeded

	if !isRateLimited {
		h.checkRecovery(provider)
		return false
	}

	h.record(provider, resp.StatusCode)
	return true
}

// GetCurrentState returns the current rate limit state for a provider
func (h *Handler) GetCurrentState(provider string) *RateLimitEvent {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if event, exists := h.rateLimited[provider]; exists {
		eventCopy := *event
		return &eventCopy
	}
	return nil
}

func (h *Handler) record(provider string, statusCode int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.rateLimited[provider]; exists {
		return
	}

	event := RateLimitEvent{
		Timestamp:  time.Now(),
		Provider:   provider,
		StatusCode: statusCode,
		Message: fmt.Sprintf("Map tiles from %s are being throttled (HTTP %d). "+
			"Some tiles may be missing until the provider recovers.", provider, statusCode),
	}
	h.rateLimited[provider] = &event

	log.Printf("[RateLimit] %s throttled with HTTP %d", provider, statusCode)

	if h.onRateLimit != nil {
		go h.onRateLimit(event)
	}
}

func (h *Handler) checkRecovery(provider string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.rateLimited[provider]; exists {
		delete(h.rateLimited, provider)
		log.Printf("[RateLimit] %s rate limit cleared", provider)

		if h.onRecovered != nil {
			go h.onRecovered(provider)
		}
	}
}
