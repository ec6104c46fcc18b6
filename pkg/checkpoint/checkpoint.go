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

	"github.com/dgraph-io/badger/v4"
)

// ErrInvalidJobID is returned when a job ID is empty or contains control characters
var ErrInvalidJobID = errors.New("invalid job ID")

const keyPrefix = "import/"

// ImportKind names the bulk write a checkpoint tracks.
type ImportKind string

const (
	KindNodes ImportKind = "nodes"
	KindEdges ImportKind = "edges"
)

// ImportCheckpoint records how far a chunked import got.
type ImportCheckpoint struct {
	JobID  string     `json:"job_id"`
	Kind   ImportKind `json:"kind"`
	Target string     `json:"target"` // label or (source)-[type]->(target)
	Source string     `json:"source"` // input file

	TotalChunks int `json:"total_chunks"`
	// ChunksDone is the number of leading chunks known to be committed.
	ChunksDone int `json:"chunks_done"`

	CreatedAt     time.Time `json:"created_at"`
	LastUpdatedAt time.Time `json:"last_updated_at"`
	AttemptCount  int       `json:"attempt_count"`
	LastError     string    `json:"last_error,omitempty"`
}

// Completed reports whether every chunk was written.
func (c *ImportCheckpoint) Completed() bool {
	return c.TotalChunks > 0 && c.ChunksDone >= c.TotalChunks
}

// GetProgress returns a human-readable progress description
func (c *ImportCheckpoint) GetProgress() string {
	if c.TotalChunks == 0 {
		return fmt.Sprintf("%s %s: not started", c.Kind, c.Target)
	}
	return fmt.Sprintf("%s %s: %d/%d chunks (%.0f%%)", c.Kind, c.Target, c.ChunksDone, c.TotalChunks,
		100*float64(c.ChunksDone)/float64(c.TotalChunks))
}

// CanRetry determines if a checkpoint should be retried based on attempt count and age
func (c *ImportCheckpoint) CanRetry(maxAttempts int, maxAge time.Duration) bool {
	if c.AttemptCount >= maxAttempts {
		return false
	}
	return time.Since(c.CreatedAt) <= maxAge
}

// CheckpointManager stores import checkpoints in a badger database
type CheckpointManager struct {
	db  *badger.DB
	dir string
}

// NewCheckpointManager opens (or creates) the checkpoint store in checkpointDir.
// If checkpointDir is empty, uses os.TempDir()/minigraph-checkpoints
func NewCheckpointManager(checkpointDir string) (*CheckpointManager, error) {
	if checkpointDir == "" {
		checkpointDir = filepath.Join(os.TempDir(), "minigraph-checkpoints")
	}
	if err := os.MkdirAll(checkpointDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint directory: %w", err)
	}

	db, err := badger.Open(badger.DefaultOptions(checkpointDir).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint store: %w", err)
	}
	return &CheckpointManager{db: db, dir: checkpointDir}, nil
}

// NewInMemoryCheckpointManager returns a manager that keeps nothing on disk.
func NewInMemoryCheckpointManager() (*CheckpointManager, error) {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint store: %w", err)
	}
	return &CheckpointManager{db: db}, nil
}

// Close releases the store.
func (m *CheckpointManager) Close() error {
	return m.db.Close()
}

// GetCheckpointDir returns the checkpoint directory path ("" when in memory)
func (m *CheckpointManager) GetCheckpointDir() string {
	return m.dir
}

func validateJobID(jobID string) error {
	if jobID == "" || strings.ContainsFunc(jobID, func(r rune) bool { return r < 0x20 }) {
		return ErrInvalidJobID
	}
	return nil
}

func key(jobID string) []byte {
	return []byte(keyPrefix + jobID)
}

// Save persists the checkpoint
func (m *CheckpointManager) Save(ctx context.Context, checkpoint *ImportCheckpoint) error {
	if err := validateJobID(checkpoint.JobID); err != nil {
		return err
	}
	now := time.Now()
	if checkpoint.CreatedAt.IsZero() {
		checkpoint.CreatedAt = now
	}
	checkpoint.LastUpdatedAt = now

	data, err := json.Marshal(checkpoint)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}
	return m.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(checkpoint.JobID), data)
	})
}

// Load retrieves a checkpoint. Returns nil, nil when none exists.
func (m *CheckpointManager) Load(ctx context.Context, jobID string) (*ImportCheckpoint, error) {
	if err := validateJobID(jobID); err != nil {
		return nil, err
	}

	var checkpoint *ImportCheckpoint
	err := m.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(jobID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			checkpoint = &ImportCheckpoint{}
			return json.Unmarshal(val, checkpoint)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	return checkpoint, nil
}

// Delete removes a checkpoint
func (m *CheckpointManager) Delete(ctx context.Context, jobID string) error {
	if err := validateJobID(jobID); err != nil {
		return err
	}
	return m.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key(jobID))
	})
}

// Exists checks if a checkpoint exists for a job
func (m *CheckpointManager) Exists(ctx context.Context, jobID string) (bool, error) {
	checkpoint, err := m.Load(ctx, jobID)
	if err != nil {
		return false, err
	}
	return checkpoint != nil, nil
}

// List returns all stored checkpoints
func (m *CheckpointManager) List(ctx context.Context) ([]*ImportCheckpoint, error) {
	var checkpoints []*ImportCheckpoint
	err := m.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(keyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var c ImportCheckpoint
				if err := json.Unmarshal(val, &c); err != nil {
					return nil // skip entries we can't decode
				}
				checkpoints = append(checkpoints, &c)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	return checkpoints, nil
}

// RecordChunk marks chunk (zero-based) as committed.
func (m *CheckpointManager) RecordChunk(ctx context.Context, jobID string, chunk int) error {
	checkpoint, err := m.Load(ctx, jobID)
	if err != nil {
		return err
	}
	if checkpoint == nil {
		return fmt.Errorf("checkpoint not found for job %s", jobID)
	}
	if chunk+1 > checkpoint.ChunksDone {
		checkpoint.ChunksDone = chunk + 1
	}
	return m.Save(ctx, checkpoint)
}

// RecordError records an error in the checkpoint
func (m *CheckpointManager) RecordError(ctx context.Context, jobID string, err error) error {
	checkpoint, loadErr := m.Load(ctx, jobID)
	if loadErr != nil {
		return loadErr
	}
	if checkpoint == nil {
		return fmt.Errorf("checkpoint not found for job %s", jobID)
	}

	checkpoint.AttemptCount++
	checkpoint.LastError = err.Error()
	return m.Save(ctx, checkpoint)
}

// CleanOld removes checkpoints older than the specified duration
func (m *CheckpointManager) CleanOld(ctx context.Context, maxAge time.Duration) (int, error) {
	checkpoints, err := m.List(ctx)
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, checkpoint := range checkpoints {
		if checkpoint.LastUpdatedAt.Before(cutoff) {
			if err := m.Delete(ctx, checkpoint.JobID); err != nil {
				continue
			}
			removed++
		}
	}
	return removed, nil
}
