// Package checkpoint persists corpus build progress so a failed
// ingestion can be diagnosed and retried.
package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrInvalidCorpusID is returned when a corpus ID contains path
// traversal or other characters unsafe in file names.
var ErrInvalidCorpusID = errors.New("invalid corpus ID: contains path traversal or invalid characters")

// BuildStep is a stage of the corpus build pipeline.
type BuildStep string

const (
	StepInitial        BuildStep = "initial"
	StepGraphBuilt     BuildStep = "graph_built"
	StepChunksEmbedded BuildStep = "chunks_embedded"
	StepGraphPersisted BuildStep = "graph_persisted"
	StepIndexed        BuildStep = "indexed"
	StepCompleted      BuildStep = "completed"
)

// BuildCheckpoint records how far a corpus build got.
type BuildCheckpoint struct {
	CorpusID   string    `json:"corpus_id"`
	CorpusPath string    `json:"corpus_path"`
	Step       BuildStep `json:"step"`

	CreatedAt      time.Time `json:"created_at"`
	LastUpdatedAt  time.Time `json:"last_updated_at"`
	AttemptCount   int       `json:"attempt_count"`
	LastError      string    `json:"last_error,omitempty"`
	LastErrorStack string    `json:"last_error_stack,omitempty"`

	Modules       int `json:"modules,omitempty"`
	Concepts      int `json:"concepts,omitempty"`
	Chunks        int `json:"chunks,omitempty"`
	Relationships int `json:"relationships,omitempty"`
}

// Manager stores build checkpoints as JSON files in a directory.
type Manager struct {
	dir string
}

// NewManager creates a manager. An empty dir means
// os.TempDir()/studygraph-checkpoints.
func NewManager(dir string) (*Manager, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "studygraph-checkpoints")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating checkpoint directory: %w", err)
	}
	return &Manager{dir: dir}, nil
}

// Dir returns the checkpoint directory.
func (m *Manager) Dir() string {
	return m.dir
}

// validateCorpusID checks that the corpus ID is safe for use in file
// paths.
func validateCorpusID(corpusID string) error {
	if corpusID == "" {
		return ErrInvalidCorpusID
	}
	if strings.Contains(corpusID, "..") {
		return ErrInvalidCorpusID
	}
	if strings.ContainsAny(corpusID, `/\`) {
		return ErrInvalidCorpusID
	}
	if strings.ContainsRune(corpusID, '\x00') {
		return ErrInvalidCorpusID
	}
	return nil
}

// isPathWithinDirectory verifies the resolved path stays inside the
// expected directory.
func isPathWithinDirectory(path, directory string) bool {
	cleanPath := filepath.Clean(path)
	cleanDir := filepath.Clean(directory)
	if !strings.HasSuffix(cleanDir, string(filepath.Separator)) {
		cleanDir += string(filepath.Separator)
	}
	return strings.HasPrefix(cleanPath, cleanDir) || cleanPath == filepath.Clean(directory)
}

func (m *Manager) path(corpusID string) (string, error) {
	if err := validateCorpusID(corpusID); err != nil {
		return "", err
	}
	fullPath := filepath.Join(m.dir, fmt.Sprintf("build_%s.json", corpusID))
	if !isPathWithinDirectory(fullPath, m.dir) {
		return "", ErrInvalidCorpusID
	}
	return fullPath, nil
}

// Save persists the checkpoint atomically.
func (m *Manager) Save(ctx context.Context, cp *BuildCheckpoint) error {
	cp.LastUpdatedAt = time.Now()

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling checkpoint: %w", err)
	}

	path, err := m.path(cp.CorpusID)
	if err != nil {
		return err
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("writing checkpoint file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming checkpoint file: %w", err)
	}
	return nil
}

// Load reads a checkpoint. A missing checkpoint returns nil, nil.
func (m *Manager) Load(ctx context.Context, corpusID string) (*BuildCheckpoint, error) {
	path, err := m.path(corpusID)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading checkpoint file: %w", err)
	}

	var cp BuildCheckpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("unmarshaling checkpoint: %w", err)
	}
	return &cp, nil
}

// Delete removes a checkpoint. Missing checkpoints are not an error.
func (m *Manager) Delete(ctx context.Context, corpusID string) error {
	path, err := m.path(corpusID)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting checkpoint file: %w", err)
	}
	return nil
}

// Exists reports whether a checkpoint is on disk.
func (m *Manager) Exists(ctx context.Context, corpusID string) (bool, error) {
	path, err := m.path(corpusID)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// List returns every stored checkpoint.
func (m *Manager) List(ctx context.Context) ([]*BuildCheckpoint, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, fmt.Errorf("reading checkpoint directory: %w", err)
	}

	var checkpoints []*BuildCheckpoint
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, "build_") || !strings.HasSuffix(name, ".json") {
			continue
		}
		corpusID := strings.TrimSuffix(strings.TrimPrefix(name, "build_"), ".json")
		cp, err := m.Load(ctx, corpusID)
		if err != nil || cp == nil {
			continue
		}
		checkpoints = append(checkpoints, cp)
	}
	return checkpoints, nil
}

// UpdateStep advances an existing checkpoint to the given step.
func (m *Manager) UpdateStep(ctx context.Context, corpusID string, step BuildStep) error {
	cp, err := m.Load(ctx, corpusID)
	if err != nil {
		return err
	}
	if cp == nil {
		return fmt.Errorf("no checkpoint for corpus %q", corpusID)
	}
	cp.Step = step
	return m.Save(ctx, cp)
}

// RecordError stores the failure on the checkpoint and bumps the
// attempt count.
func (m *Manager) RecordError(ctx context.Context, corpusID string, buildErr error, stackTrace string) error {
	cp, err := m.Load(ctx, corpusID)
	if err != nil {
		return err
	}
	if cp == nil {
		return fmt.Errorf("no checkpoint for corpus %q", corpusID)
	}
	cp.LastError = buildErr.Error()
	cp.LastErrorStack = stackTrace
	cp.AttemptCount++
	return m.Save(ctx, cp)
}

// CleanOld removes checkpoints older than maxAge and returns how many
// were deleted.
func (m *Manager) CleanOld(ctx context.Context, maxAge time.Duration) (int, error) {
	checkpoints, err := m.List(ctx)
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().Add(-maxAge)
	var removed int
	for _, cp := range checkpoints {
		if cp.LastUpdatedAt.Before(cutoff) {
			if err := m.Delete(ctx, cp.CorpusID); err == nil {
				removed++
			}
		}
	}
	return removed, nil
}
