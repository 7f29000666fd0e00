package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"satellitor-desktop/internal/analysis"
	"satellitor-desktop/internal/geo"
)

// Slot keys. Each write replaces the whole slot.
const (
	KeyCapturedImage = "capturedMapImage"
	KeyAnalysis      = "mapAnalysisData"
)

// ErrNotFound is returned when a slot has never been written
var ErrNotFound = errors.New("session slot is empty")

// Record is what the results view reads back after a capture
type Record struct {
	Coordinates geo.Coordinate   `json:"coordinates"`
	Analysis    *analysis.Result `json:"analysis"`
}

// Repository stores the two values a capture hands to the results view
type Repository interface {
	SetCapturedImage(dataURL string) error
	CapturedImage() (string, error)
	SetAnalysis(rec Record) error
	Analysis() (Record, error)
	Clear() error
}

// MemoryRepository keeps the slots in memory
type MemoryRepository struct {
	mu    sync.RWMutex
	slots map[string][]byte
}

// NewMemoryRepository creates an empty in-memory repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{slots: make(map[string][]byte)}
}

func (r *MemoryRepository) SetCapturedImage(dataURL string) error {
	return r.put(KeyCapturedImage, []byte(dataURL))
}

func (r *MemoryRepository) CapturedImage() (string, error) {
	data, err := r.get(KeyCapturedImage)
	return string(data), err
}

func (r *MemoryRepository) SetAnalysis(rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode analysis record: %w", err)
	}
	return r.put(KeyAnalysis, data)
}

func (r *MemoryRepository) Analysis() (Record, error) {
	data, err := r.get(KeyAnalysis)
	if err != nil {
		return Record{}, err
	}
	return decodeRecord(data)
}

func (r *MemoryRepository) Clear() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.slots = make(map[string][]byte)
	return nil
}

func (r *MemoryRepository) put(key string, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.slots[key] = data
	return nil
}

func (r *MemoryRepository) get(key string) ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	data, ok := r.slots[key]
	if !ok {
		return nil, ErrNotFound
	}
	return data, nil
}

// FileRepository keeps one JSON file per slot in a session directory
type FileRepository struct {
	mu  sync.Mutex
	id  string
	dir string
}

// NewFileRepository creates a repository for a new session under root
func NewFileRepository(root string) (*FileRepository, error) {
	id := uuid.New().String()
	return OpenFileRepository(root, id)
}

// OpenFileRepository opens (or creates) the session id under root
func OpenFileRepository(root, id string) (*FileRepository, error) {
	if id == "" {
		return nil, fmt.Errorf("session id is required")
	}

	dir := filepath.Join(root, "sessions", id)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}

	return &FileRepository{id: id, dir: dir}, nil
}

// ID returns the session identifier
func (r *FileRepository) ID() string {
	return r.id
}

// Dir returns the session directory
func (r *FileRepository) Dir() string {
	return r.dir
}

func (r *FileRepository) SetCapturedImage(dataURL string) error {
	data, err := json.Marshal(dataURL)
	if err != nil {
		return err
	}
	return r.write(KeyCapturedImage, data)
}

func (r *FileRepository) CapturedImage() (string, error) {
	data, err := r.read(KeyCapturedImage)
	if err != nil {
		return "", err
	}
	var dataURL string
	if err := json.Unmarshal(data, &dataURL); err != nil {
		return "", fmt.Errorf("failed to decode %s: %w", KeyCapturedImage, err)
	}
	return dataURL, nil
}

func (r *FileRepository) SetAnalysis(rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode analysis record: %w", err)
	}
	return r.write(KeyAnalysis, data)
}

func (r *FileRepository) Analysis() (Record, error) {
	data, err := r.read(KeyAnalysis)
	if err != nil {
		return Record{}, err
	}
	return decodeRecord(data)
}

// Clear deletes the session directory
func (r *FileRepository) Clear() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := os.RemoveAll(r.dir); err != nil {
		return fmt.Errorf("failed to remove session: %w", err)
	}
	return nil
}

func (r *FileRepository) path(key string) string {
	return filepath.Join(r.dir, key+".json")
}

func (r *FileRepository) write(key string, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.MkdirAll(r.dir, 0755); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	// Write to temp file first, then rename (atomic)
	tmpPath := r.path(key) + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	if err := os.Rename(tmpPath, r.path(key)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to store %s: %w", key, err)
	}
	return nil
}

func (r *FileRepository) read(key string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := os.ReadFile(r.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return data, nil
}

func decodeRecord(data []byte) (Record, error) {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("failed to decode %s: %w", KeyAnalysis, err)
	}
	if rec.Analysis == nil {
		return Record{}, fmt.Errorf("%s has no analysis", KeyAnalysis)
	}
	return rec, nil
}
