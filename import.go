package minigraph

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/soundprediction/minigraph/pkg/checkpoint"
	"github.com/soundprediction/minigraph/pkg/driver"
	"github.com/soundprediction/minigraph/pkg/records"
	"github.com/soundprediction/minigraph/pkg/telemetry"
	"github.com/soundprediction/minigraph/pkg/utils"
)

// ImportReport summarizes one file import.
type ImportReport struct {
	JobID   string
	Records int
	Chunks  int
	// Skipped counts chunks already committed by an earlier run.
	Skipped int
}

// Importer loads record files and writes them through a BulkWriter.
// With a checkpoint manager, an interrupted import resumes at the first
// chunk that did not commit.
type Importer struct {
	db          driver.BulkWriter
	checkpoints *checkpoint.CheckpointManager
	logger      *slog.Logger
	maxAttempts int
	maxAge      time.Duration
}

// ImporterOption adjusts an Importer.
type ImporterOption func(*Importer)

// WithResumeLimits discards a checkpoint that has failed maxAttempts times
// or was created more than maxAge ago, so the import starts from the first
// chunk. Zero disables either limit.
func WithResumeLimits(maxAttempts int, maxAge time.Duration) ImporterOption {
	return func(i *Importer) {
		i.maxAttempts = maxAttempts
		i.maxAge = maxAge
	}
}

// NewImporter creates an importer. checkpoints may be nil.
func NewImporter(db driver.BulkWriter, checkpoints *checkpoint.CheckpointManager, logger *slog.Logger, opts ...ImporterOption) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	i := &Importer{db: db, checkpoints: checkpoints, logger: logger}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// ImportNodes reads node records from path and merges them into label.
func (i *Importer) ImportNodes(ctx context.Context, path, label, idProperty string, opts driver.NodeWriteOptions) (*ImportReport, error) {
	nodes, err := records.LoadFile(path)
	if err != nil {
		return nil, err
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = driver.DefaultNodeChunkSize
	}

	ctx, report, track, err := i.begin(ctx, checkpoint.KindNodes, label, path, len(nodes), opts.ChunkSize)
	if err != nil {
		return nil, err
	}
	opts.SkipChunks = report.Skipped
	opts.OnChunkWritten = chain(track, opts.OnChunkWritten)

	err = guarded(func() error {
		return i.db.WriteNodes(ctx, nodes, label, idProperty, &opts)
	})
	return i.finish(ctx, report, err)
}

// ImportEdges reads edge records ("source", "target" plus attributes) from
// path and merges them as sourceLabel-[edgeLabel]->targetLabel.
func (i *Importer) ImportEdges(ctx context.Context, path, sourceLabel, edgeLabel, targetLabel string, opts driver.EdgeWriteOptions) (*ImportReport, error) {
	edges, err := records.LoadFile(path)
	if err != nil {
		return nil, err
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = driver.DefaultEdgeChunkSize
	}

	target := fmt.Sprintf("(%s)-[%s]->(%s)", sourceLabel, edgeLabel, targetLabel)
	ctx, report, track, err := i.begin(ctx, checkpoint.KindEdges, target, path, len(edges), opts.ChunkSize)
	if err != nil {
		return nil, err
	}
	opts.SkipChunks = report.Skipped
	opts.OnChunkWritten = chain(track, opts.OnChunkWritten)

	err = guarded(func() error {
		return i.db.WriteEdges(ctx, edges, sourceLabel, edgeLabel, targetLabel, &opts)
	})
	return i.finish(ctx, report, err)
}

// begin resolves the checkpoint for an import and returns ctx tagged with
// its job id. A job whose checkpoint shows every chunk committed comes back
// with all chunks skipped.
func (i *Importer) begin(ctx context.Context, kind checkpoint.ImportKind, target, path string, n, size int) (context.Context, *ImportReport, func(int) error, error) {
	report := &ImportReport{Records: n, Chunks: (n + size - 1) / size}
	if i.checkpoints == nil || report.Chunks == 0 {
		return ctx, report, nil, nil
	}

	jobID, err := checkpoint.JobID(kind, target, path, size)
	if err != nil {
		return ctx, nil, nil, err
	}
	report.JobID = jobID
	ctx = telemetry.WithValue(ctx, telemetry.ContextKeyJobID, jobID)

	cp, err := i.checkpoints.Begin(ctx, jobID, kind, target, path, report.Chunks)
	if err != nil {
		return ctx, nil, nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	if !i.resumable(cp) {
		i.logger.WarnContext(ctx, "Discarding checkpoint", "job_id", jobID, "attempts", cp.AttemptCount, "created_at", cp.CreatedAt, "last_error", cp.LastError)
		if err := i.checkpoints.Delete(ctx, jobID); err != nil {
			return ctx, nil, nil, fmt.Errorf("failed to discard checkpoint: %w", err)
		}
		if cp, err = i.checkpoints.Begin(ctx, jobID, kind, target, path, report.Chunks); err != nil {
			return ctx, nil, nil, fmt.Errorf("failed to load checkpoint: %w", err)
		}
	}
	report.Skipped = cp.ChunksDone
	if report.Skipped > 0 {
		i.logger.InfoContext(ctx, "Resuming import", "job_id", jobID, "progress", cp.GetProgress())
	}
	return ctx, report, i.checkpoints.Tracker(ctx, jobID), nil
}

func (i *Importer) resumable(cp *checkpoint.ImportCheckpoint) bool {
	if i.maxAttempts <= 0 && i.maxAge <= 0 {
		return true
	}
	attempts, age := i.maxAttempts, i.maxAge
	if attempts <= 0 {
		attempts = math.MaxInt
	}
	if age <= 0 {
		age = time.Duration(math.MaxInt64)
	}
	return cp.CanRetry(attempts, age)
}

func (i *Importer) finish(ctx context.Context, report *ImportReport, err error) (*ImportReport, error) {
	if err != nil {
		i.logger.ErrorContext(ctx, "Import failed", "job_id", report.JobID, "records", report.Records, "chunks", report.Chunks, "error", err)
		if i.checkpoints != nil && report.JobID != "" {
			if recErr := i.checkpoints.RecordError(ctx, report.JobID, err); recErr != nil {
				i.logger.WarnContext(ctx, "Failed to record import error", "job_id", report.JobID, "error", recErr)
			}
		}
		return report, err
	}

	if i.checkpoints != nil && report.JobID != "" {
		if delErr := i.checkpoints.Delete(ctx, report.JobID); delErr != nil {
			i.logger.WarnContext(ctx, "Failed to delete checkpoint", "job_id", report.JobID, "error", delErr)
		}
	}
	i.logger.InfoContext(ctx, "Import finished", "records", report.Records, "chunks", report.Chunks, "skipped", report.Skipped)
	return report, nil
}

// guarded turns a panic in fn (typically a chunk callback) into an error so
// the checkpoint still records the failure.
func guarded(fn func() error) (err error) {
	defer utils.RecoverAsError(&err)
	return fn()
}

func chain(fns ...func(int) error) func(int) error {
	return func(chunk int) error {
		for _, fn := range fns {
			if fn == nil {
				continue
			}
			if err := fn(chunk); err != nil {
				return err
			}
		}
		return nil
	}
}
