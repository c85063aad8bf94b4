// Package storage persists log entries in a single JSON snapshot file.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/logbook/backend/internal/models"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

// ErrPersistence matches every error caused by reading or writing the snapshot.
var ErrPersistence = errors.New("persistence failure")

// PersistenceError reports a failed snapshot read or write.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s snapshot: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

// Store defines the operations the HTTP layer needs from log storage.
type Store interface {
	Append(ctx context.Context, entry models.LogEntry) (models.LogEntry, error)
	Query(ctx context.Context, filter models.Filter) ([]models.LogEntry, error)
}

// LogStore keeps the ordered log collection in a pretty-printed JSON array.
// Every append rewrites the whole file through a temp file and a rename,
// so readers always see a complete snapshot.
type LogStore struct {
	mu   sync.Mutex
	fs   afero.Fs
	path string
}

// Open returns a store backed by the snapshot at path, creating an empty
// snapshot when none exists. An existing snapshot must be readable.
func Open(fs afero.Fs, path string) (*LogStore, error) {
	s := &LogStore{fs: fs, path: path}

	_, err := fs.Stat(path)
	switch {
	case err == nil:
		if _, err := s.load(); err != nil {
			return nil, &PersistenceError{Op: "open", Err: err}
		}
	case os.IsNotExist(err):
		if err := fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, &PersistenceError{Op: "open", Err: errors.Wrap(err, "creating data directory")}
		}
		if err := s.write([]models.LogEntry{}); err != nil {
			return nil, &PersistenceError{Op: "open", Err: err}
		}
		log.Info().Str("path", path).Msg("created empty log snapshot")
	default:
		return nil, &PersistenceError{Op: "open", Err: errors.Wrap(err, "checking snapshot")}
	}

	return s, nil
}

// OpenFile opens a snapshot on the local filesystem.
func OpenFile(path string) (*LogStore, error) {
	return Open(afero.NewOsFs(), path)
}

// Path returns the snapshot location.
func (s *LogStore) Path() string {
	return s.path
}

// Append adds entry to the end of the collection and rewrites the snapshot.
// On failure the previous snapshot is left untouched.
func (s *LogStore) Append(ctx context.Context, entry models.LogEntry) (models.LogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil && !os.IsNotExist(errors.Cause(err)) {
		log.Error().Err(err).Str("path", s.path).Msg("failed to read log snapshot")
		return models.LogEntry{}, &PersistenceError{Op: "read", Err: err}
	}

	entries = append(entries, entry)
	if err := s.write(entries); err != nil {
		log.Error().Err(err).Str("path", s.path).Msg("failed to write log snapshot")
		return models.LogEntry{}, &PersistenceError{Op: "write", Err: err}
	}

	log.Debug().Str("level", string(entry.Level)).Str("resourceId", entry.ResourceID).
		Int("total", len(entries)).Msg("log entry stored")
	return entry, nil
}

// Query returns the entries matching filter, most recent first.
// A snapshot that was never created yields an empty result.
func (s *LogStore) Query(ctx context.Context, filter models.Filter) ([]models.LogEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := s.load()
	if err != nil {
		if os.IsNotExist(errors.Cause(err)) {
			return []models.LogEntry{}, nil
		}
		log.Error().Err(err).Str("path", s.path).Msg("failed to read log snapshot")
		return nil, &PersistenceError{Op: "read", Err: err}
	}

	m := filter.Compile()
	matched := make([]models.LogEntry, 0, len(entries))
	for _, e := range entries {
		if m.Match(e) {
			matched = append(matched, e)
		}
	}
	SortNewestFirst(matched)
	return matched, nil
}

func (s *LogStore) load() ([]models.LogEntry, error) {
	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		return nil, errors.Wrap(err, "reading snapshot")
	}

	var entries []models.LogEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, errors.Wrap(err, "decoding snapshot")
	}
	if entries == nil {
		entries = []models.LogEntry{}
	}
	return entries, nil
}

func (s *LogStore) write(entries []models.LogEntry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding snapshot")
	}

	tmp, err := afero.TempFile(s.fs, filepath.Dir(s.path), filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return errors.Wrap(err, "creating temp file")
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		s.fs.Remove(tmpName)
		return errors.Wrap(err, "writing temp file")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		s.fs.Remove(tmpName)
		return errors.Wrap(err, "syncing temp file")
	}
	if err := tmp.Close(); err != nil {
		s.fs.Remove(tmpName)
		return errors.Wrap(err, "closing temp file")
	}
	if err := s.fs.Rename(tmpName, s.path); err != nil {
		s.fs.Remove(tmpName)
		return errors.Wrap(err, "replacing snapshot")
	}
	return nil
}

type timedEntry struct {
	entry models.LogEntry
	ts    time.Time
	ok    bool
}

// SortNewestFirst orders entries by timestamp descending. The sort is stable so
// equal timestamps keep insertion order; unparsable timestamps go last.
func SortNewestFirst(entries []models.LogEntry) {
	timed := make([]timedEntry, len(entries))
	for i, e := range entries {
		ts, ok := e.Time()
		timed[i] = timedEntry{entry: e, ts: ts, ok: ok}
	}

	sort.SliceStable(timed, func(i, j int) bool {
		a, b := timed[i], timed[j]
		if a.ok != b.ok {
			return a.ok
		}
		return a.ts.After(b.ts)
	})

	for i := range timed {
		entries[i] = timed[i].entry
	}
}
