package checkpoint

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// JobID derives a stable identifier for an import from what it writes and
// where it reads from. The same file imported with the same settings maps to
// the same checkpoint; any change to the file or chunking starts over.
func JobID(kind ImportKind, target, sourceFile string, chunkSize int) (string, error) {
	d := xxhash.New()
	_, _ = d.WriteString(string(kind))
	_, _ = d.WriteString("\x00" + target)
	_, _ = d.WriteString("\x00" + strconv.Itoa(chunkSize) + "\x00")

	f, err := os.Open(sourceFile)
	if err != nil {
		return "", fmt.Errorf("hash %s: %w", sourceFile, err)
	}
	defer f.Close()
	if _, err := io.Copy(d, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", sourceFile, err)
	}
	return fmt.Sprintf("%s-%016x", kind, d.Sum64()), nil
}

// Begin loads the checkpoint for jobID or starts a new one.
func (m *CheckpointManager) Begin(ctx context.Context, jobID string, kind ImportKind, target, source string, totalChunks int) (*ImportCheckpoint, error) {
	checkpoint, err := m.Load(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if checkpoint != nil {
		checkpoint.TotalChunks = totalChunks
		return checkpoint, m.Save(ctx, checkpoint)
	}

	checkpoint = &ImportCheckpoint{
		JobID:       jobID,
		Kind:        kind,
		Target:      target,
		Source:      source,
		TotalChunks: totalChunks,
	}
	return checkpoint, m.Save(ctx, checkpoint)
}

// Tracker returns a chunk callback that records progress for jobID.
func (m *CheckpointManager) Tracker(ctx context.Context, jobID string) func(int) error {
	return func(chunk int) error {
		return m.RecordChunk(ctx, jobID, chunk)
	}
}
