package checkpoint

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckpointManager(t *testing.T) {
	ctx := context.Background()
	manager, err := NewInMemoryCheckpointManager()
	require.NoError(t, err)
	defer manager.Close()

	t.Run("Load non-existent checkpoint", func(t *testing.T) {
		loaded, err := manager.Load(ctx, "nodes-missing")
		require.NoError(t, err)
		assert.Nil(t, loaded)

		exists, err := manager.Exists(ctx, "nodes-missing")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("Save and load checkpoint", func(t *testing.T) {
		checkpoint := &ImportCheckpoint{
			JobID:       "nodes-1",
			Kind:        KindNodes,
			Target:      "Person",
			Source:      "people.jsonl",
			TotalChunks: 4,
		}
		require.NoError(t, manager.Save(ctx, checkpoint))
		assert.False(t, checkpoint.CreatedAt.IsZero())

		loaded, err := manager.Load(ctx, "nodes-1")
		require.NoError(t, err)
		require.NotNil(t, loaded)
		assert.Equal(t, "Person", loaded.Target)
		assert.Equal(t, 4, loaded.TotalChunks)
		assert.Equal(t, "nodes Person: 0/4 chunks (0%)", loaded.GetProgress())
	})

	t.Run("Record chunks and errors", func(t *testing.T) {
		track := manager.Tracker(ctx, "nodes-1")
		require.NoError(t, track(0))
		require.NoError(t, track(1))
		require.NoError(t, manager.RecordError(ctx, "nodes-1", errors.New("connection reset")))

		loaded, err := manager.Load(ctx, "nodes-1")
		require.NoError(t, err)
		assert.Equal(t, 2, loaded.ChunksDone)
		assert.Equal(t, 1, loaded.AttemptCount)
		assert.Equal(t, "connection reset", loaded.LastError)
		assert.False(t, loaded.Completed())
		assert.True(t, loaded.CanRetry(3, time.Hour))

		require.NoError(t, track(3))
		loaded, err = manager.Load(ctx, "nodes-1")
		require.NoError(t, err)
		assert.True(t, loaded.Completed())
	})

	t.Run("Record chunk on missing job", func(t *testing.T) {
		assert.Error(t, manager.RecordChunk(ctx, "edges-none", 0))
	})

	t.Run("List and delete", func(t *testing.T) {
		require.NoError(t, manager.Save(ctx, &ImportCheckpoint{JobID: "edges-2", Kind: KindEdges}))

		all, err := manager.List(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 2)

		require.NoError(t, manager.Delete(ctx, "edges-2"))
		all, err = manager.List(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("Clean old", func(t *testing.T) {
		removed, err := manager.CleanOld(ctx, time.Hour)
		require.NoError(t, err)
		assert.Equal(t, 0, removed)

		removed, err = manager.CleanOld(ctx, -time.Second)
		require.NoError(t, err)
		assert.Equal(t, 1, removed)
	})

	t.Run("Invalid job id", func(t *testing.T) {
		_, err := manager.Load(ctx, "")
		assert.ErrorIs(t, err, ErrInvalidJobID)
		assert.ErrorIs(t, manager.Save(ctx, &ImportCheckpoint{JobID: "a\nb"}), ErrInvalidJobID)
	})
}

func TestCheckpointManager_Persists(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	manager, err := NewCheckpointManager(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, manager.GetCheckpointDir())

	_, err = manager.Begin(ctx, "edges-9", KindEdges, "(Person)-[KNOWS]->(Person)", "knows.json", 3)
	require.NoError(t, err)
	require.NoError(t, manager.RecordChunk(ctx, "edges-9", 0))
	require.NoError(t, manager.Close())

	reopened, err := NewCheckpointManager(dir)
	require.NoError(t, err)
	defer reopened.Close()

	checkpoint, err := reopened.Begin(ctx, "edges-9", KindEdges, "(Person)-[KNOWS]->(Person)", "knows.json", 3)
	require.NoError(t, err)
	assert.Equal(t, 1, checkpoint.ChunksDone)
}

func TestJobID(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "people.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(`{"id":1}`+"\n"), 0o644))

	a, err := JobID(KindNodes, "Person", path, 100)
	require.NoError(t, err)
	b, err := JobID(KindNodes, "Person", path, 100)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Regexp(t, `^nodes-[0-9a-f]{16}$`, a)

	c, err := JobID(KindNodes, "Person", path, 50)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)

	require.NoError(t, os.WriteFile(path, []byte(`{"id":2}`+"\n"), 0o644))
	d, err := JobID(KindNodes, "Person", path, 100)
	require.NoError(t, err)
	assert.NotEqual(t, a, d)

	_, err = JobID(KindNodes, "Person", filepath.Join(dir, "missing"), 100)
	assert.Error(t, err)
}
