// logstore_test.go - Tests for the snapshot log store
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/logbook/backend/internal/models"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const snapshotPath = "/data/logs.json"

func newEntry(level models.Level, resource, ts, message string) models.LogEntry {
	return models.LogEntry{
		Level:      level,
		Message:    message,
		ResourceID: resource,
		Timestamp:  ts,
		TraceID:    "trace-" + resource,
		SpanID:     "span-1",
		Commit:     "5e5342f",
		Metadata:   map[string]any{"parentResourceId": "server-0987"},
	}
}

func createTestStore(t *testing.T) (*LogStore, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	store, err := Open(fs, snapshotPath)
	require.NoError(t, err)
	return store, fs
}

func readSnapshot(t *testing.T, fs afero.Fs) []byte {
	t.Helper()
	data, err := afero.ReadFile(fs, snapshotPath)
	require.NoError(t, err)
	return data
}

// renameFailFs lets writes through but refuses to replace the snapshot.
type renameFailFs struct {
	afero.Fs
}

func (f renameFailFs) Rename(oldname, newname string) error {
	return &os.LinkError{Op: "rename", Old: oldname, New: newname, Err: os.ErrPermission}
}

func TestOpen(t *testing.T) {
	t.Run("creates empty snapshot", func(t *testing.T) {
		_, fs := createTestStore(t)
		assert.Equal(t, "[]", string(readSnapshot(t, fs)))
	})

	t.Run("keeps existing snapshot", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		existing := `[{"level":"info","message":"m","resourceId":"r","timestamp":"2024-01-15T10:00:00Z","traceId":"t","spanId":"s","commit":"c","metadata":{}}]`
		require.NoError(t, afero.WriteFile(fs, snapshotPath, []byte(existing), 0644))

		store, err := Open(fs, snapshotPath)
		require.NoError(t, err)
		assert.Equal(t, existing, string(readSnapshot(t, fs)))

		entries, err := store.Query(context.Background(), models.Filter{})
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})

	t.Run("rejects corrupt snapshot", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		require.NoError(t, afero.WriteFile(fs, snapshotPath, []byte("{not json"), 0644))

		_, err := Open(fs, snapshotPath)
		assert.True(t, errors.Is(err, ErrPersistence))
	})

	t.Run("fails when directory cannot be created", func(t *testing.T) {
		_, err := Open(afero.NewReadOnlyFs(afero.NewMemMapFs()), snapshotPath)
		assert.True(t, errors.Is(err, ErrPersistence))
	})

	t.Run("works on the local filesystem", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "logs.json")
		store, err := OpenFile(path)
		require.NoError(t, err)
		assert.Equal(t, path, store.Path())

		_, err = store.Append(context.Background(), newEntry(models.LevelInfo, "r", "2024-01-15T10:00:00Z", "m"))
		require.NoError(t, err)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"resourceId": "r"`)

		leftovers, err := filepath.Glob(filepath.Join(filepath.Dir(path), "*.tmp-*"))
		require.NoError(t, err)
		assert.Empty(t, leftovers)
	})
}

func TestLogStore_AppendRoundTrip(t *testing.T) {
	store, _ := createTestStore(t)
	ctx := context.Background()
	e := newEntry(models.LevelError, "server-1", "2024-01-15T10:30:00.123Z", "Failed to connect")
	e.Metadata = map[string]any{"attempt": float64(3), "tags": []any{"db", "primary"}, "nested": map[string]any{"ok": false}}

	stored, err := store.Append(ctx, e)
	require.NoError(t, err)
	assert.Equal(t, e, stored)

	entries, err := store.Query(ctx, models.Filter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, e, entries[0])
}

func TestLogStore_SnapshotFormat(t *testing.T) {
	store, fs := createTestStore(t)
	e := newEntry(models.LevelWarn, "server-1", "2024-01-15T10:00:00Z", "disk almost full")
	_, err := store.Append(context.Background(), e)
	require.NoError(t, err)

	want, err := json.MarshalIndent([]models.LogEntry{e}, "", "  ")
	require.NoError(t, err)
	assert.Equal(t, string(want), string(readSnapshot(t, fs)))
}

func TestLogStore_AppendPreservesArrivalOrderOnDisk(t *testing.T) {
	store, fs := createTestStore(t)
	ctx := context.Background()
	timestamps := []string{"2024-01-15T12:00:00Z", "2024-01-15T10:00:00Z", "2024-01-15T11:00:00Z"}
	for i, ts := range timestamps {
		_, err := store.Append(ctx, newEntry(models.LevelInfo, fmt.Sprintf("r%d", i), ts, "m"))
		require.NoError(t, err)
	}

	var onDisk []models.LogEntry
	require.NoError(t, json.Unmarshal(readSnapshot(t, fs), &onDisk))
	require.Len(t, onDisk, 3)
	for i, ts := range timestamps {
		assert.Equal(t, ts, onDisk[i].Timestamp)
	}
}

func TestLogStore_QueryOrdersNewestFirst(t *testing.T) {
	store, _ := createTestStore(t)
	ctx := context.Background()
	for _, ts := range []string{"2024-01-15T10:00:00Z", "2024-01-15T11:00:00Z", "2024-01-15T12:00:00Z"} {
		_, err := store.Append(ctx, newEntry(models.LevelInfo, "r", ts, "m"))
		require.NoError(t, err)
	}

	entries, err := store.Query(ctx, models.Filter{})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "2024-01-15T12:00:00Z", entries[0].Timestamp)
	assert.Equal(t, "2024-01-15T11:00:00Z", entries[1].Timestamp)
	assert.Equal(t, "2024-01-15T10:00:00Z", entries[2].Timestamp)
}

func TestLogStore_QueryIsIdempotent(t *testing.T) {
	store, _ := createTestStore(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		// identical timestamps exercise the tie ordering
		_, err := store.Append(ctx, newEntry(models.LevelInfo, fmt.Sprintf("r%d", i), "2024-01-15T10:00:00Z", "m"))
		require.NoError(t, err)
	}

	first, err := store.Query(ctx, models.Filter{})
	require.NoError(t, err)
	second, err := store.Query(ctx, models.Filter{})
	require.NoError(t, err)
	assert.Equal(t, first, second)

	for i, e := range first {
		assert.Equal(t, fmt.Sprintf("r%d", i), e.ResourceID, "ties keep insertion order")
	}
}

func TestLogStore_QueryFilters(t *testing.T) {
	store, _ := createTestStore(t)
	ctx := context.Background()
	seed := []models.LogEntry{
		newEntry(models.LevelError, "server-1", "2024-01-15T10:00:00Z", "Connection Timeout"),
		newEntry(models.LevelError, "server-2", "2024-01-15T10:05:00Z", "Connection refused"),
		newEntry(models.LevelInfo, "server-1", "2024-01-15T10:10:00Z", "request served"),
		newEntry(models.LevelWarn, "server-3", "2024-01-15T10:15:00Z", "slow query timeout"),
	}
	for _, e := range seed {
		_, err := store.Append(ctx, e)
		require.NoError(t, err)
	}

	t.Run("conjunction", func(t *testing.T) {
		entries, err := store.Query(ctx, models.Filter{Level: "error", ResourceID: "server-1"})
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "Connection Timeout", entries[0].Message)
	})

	t.Run("case-insensitive message", func(t *testing.T) {
		entries, err := store.Query(ctx, models.Filter{Message: "timeout"})
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, "slow query timeout", entries[0].Message)
		assert.Equal(t, "Connection Timeout", entries[1].Message)
	})

	t.Run("inclusive start", func(t *testing.T) {
		entries, err := store.Query(ctx, models.Filter{TimestampStart: "2024-01-15T10:00:00Z"})
		require.NoError(t, err)
		assert.Len(t, entries, 4)

		entries, err = store.Query(ctx, models.Filter{TimestampStart: "2024-01-15T10:00:01Z"})
		require.NoError(t, err)
		assert.Len(t, entries, 3)
	})

	t.Run("window", func(t *testing.T) {
		entries, err := store.Query(ctx, models.Filter{
			TimestampStart: "2024-01-15T10:05:00Z",
			TimestampEnd:   "2024-01-15T10:10:00Z",
		})
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, "server-1", entries[0].ResourceID)
		assert.Equal(t, "server-2", entries[1].ResourceID)
	})

	t.Run("no match", func(t *testing.T) {
		entries, err := store.Query(ctx, models.Filter{Commit: "deadbeef"})
		require.NoError(t, err)
		assert.NotNil(t, entries)
		assert.Empty(t, entries)
	})
}

func TestLogStore_UnparsableTimestamps(t *testing.T) {
	store, _ := createTestStore(t)
	ctx := context.Background()
	_, err := store.Append(ctx, newEntry(models.LevelInfo, "bad", "2024-13-40T00:00:00Z", "m"))
	require.NoError(t, err)
	_, err = store.Append(ctx, newEntry(models.LevelInfo, "good", "2024-01-15T10:00:00Z", "m"))
	require.NoError(t, err)

	entries, err := store.Query(ctx, models.Filter{})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "good", entries[0].ResourceID)
	assert.Equal(t, "bad", entries[1].ResourceID)

	entries, err = store.Query(ctx, models.Filter{TimestampStart: "2000-01-01T00:00:00Z"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "good", entries[0].ResourceID)
}

func TestLogStore_QueryMissingSnapshotIsEmpty(t *testing.T) {
	store, fs := createTestStore(t)
	require.NoError(t, fs.Remove(snapshotPath))

	entries, err := store.Query(context.Background(), models.Filter{})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLogStore_QueryCorruptSnapshotFails(t *testing.T) {
	store, fs := createTestStore(t)
	require.NoError(t, afero.WriteFile(fs, snapshotPath, []byte(`[{"level":`), 0644))

	_, err := store.Query(context.Background(), models.Filter{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPersistence))

	var pe *PersistenceError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "read", pe.Op)
}

func TestLogStore_QueryHonoursCancelledContext(t *testing.T) {
	store, _ := createTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Query(ctx, models.Filter{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLogStore_AppendFailureLeavesSnapshotIntact(t *testing.T) {
	t.Run("read-only filesystem", func(t *testing.T) {
		base := afero.NewMemMapFs()
		seeded, err := Open(base, snapshotPath)
		require.NoError(t, err)
		_, err = seeded.Append(context.Background(), newEntry(models.LevelInfo, "r", "2024-01-15T10:00:00Z", "m"))
		require.NoError(t, err)
		before := readSnapshot(t, base)

		store, err := Open(afero.NewReadOnlyFs(base), snapshotPath)
		require.NoError(t, err)

		_, err = store.Append(context.Background(), newEntry(models.LevelError, "r2", "2024-01-15T11:00:00Z", "m"))
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrPersistence))
		assert.Equal(t, string(before), string(readSnapshot(t, base)))
	})

	t.Run("rename failure", func(t *testing.T) {
		base := afero.NewMemMapFs()
		store, err := Open(base, snapshotPath)
		require.NoError(t, err)
		store.fs = renameFailFs{Fs: base}

		_, err = store.Append(context.Background(), newEntry(models.LevelError, "r", "2024-01-15T11:00:00Z", "m"))
		var pe *PersistenceError
		require.True(t, errors.As(err, &pe))
		assert.Equal(t, "write", pe.Op)
		assert.Equal(t, "[]", string(readSnapshot(t, base)))

		leftovers, err := afero.Glob(base, "/data/*.tmp-*")
		require.NoError(t, err)
		assert.Empty(t, leftovers)
	})

	t.Run("corrupt snapshot is not overwritten", func(t *testing.T) {
		store, fs := createTestStore(t)
		require.NoError(t, afero.WriteFile(fs, snapshotPath, []byte("garbage"), 0644))

		_, err := store.Append(context.Background(), newEntry(models.LevelInfo, "r", "2024-01-15T10:00:00Z", "m"))
		assert.True(t, errors.Is(err, ErrPersistence))
		assert.Equal(t, "garbage", string(readSnapshot(t, fs)))
	})
}

func TestLogStore_ConcurrentAppends(t *testing.T) {
	store, _ := createTestStore(t)
	ctx := context.Background()

	const writers = 20
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := store.Append(ctx, newEntry(models.LevelInfo, fmt.Sprintf("r%d", i), "2024-01-15T10:00:00Z", "m"))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	entries, err := store.Query(ctx, models.Filter{})
	require.NoError(t, err)
	assert.Len(t, entries, writers)
}

func TestSortNewestFirst(t *testing.T) {
	entries := []models.LogEntry{
		{ResourceID: "a", Timestamp: "2024-01-15T10:00:00"},
		{ResourceID: "b", Timestamp: "garbage"},
		{ResourceID: "c", Timestamp: "2024-01-15T10:00:00.500Z"},
		{ResourceID: "d", Timestamp: "2024-01-15T10:00:00Z"},
	}
	SortNewestFirst(entries)

	var order []string
	for _, e := range entries {
		order = append(order, e.ResourceID)
	}
	assert.Equal(t, []string{"c", "a", "d", "b"}, order)
}
