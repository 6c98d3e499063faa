// Package cache memoizes stage outputs by the content of their inputs.
//
// Each stage output is published as a file. The store keeps a badger index
// from an input fingerprint to the published path and the digest of the file
// at the time it was written, so a rerun reuses an artifact only when both the
// inputs are unchanged and the artifact itself has not been touched.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const keyPrefix = "artifact/"

// Config configures the index database
type Config struct {
	// Dir holds the badger files. Required unless InMemory.
	Dir string

	// InMemory keeps the index in memory only
	InMemory bool

	// Logger receives badger's internal logging; nil silences it
	Logger *slog.Logger
}

// Entry describes one published artifact
type Entry struct {
	Stage     string    `json:"stage"`
	Path      string    `json:"path"`
	Digest    string    `json:"digest"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is the fingerprint index
type Store struct {
	db     *badger.DB
	logger *slog.Logger
}

type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Open opens or creates the index
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Dir == "" {
		return nil, errors.New("cache directory is required for a persistent index")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Dir, 0750); err != nil {
			return nil, fmt.Errorf("create cache directory %s: %w", cfg.Dir, err)
		}
		opts = badger.DefaultOptions(filepath.Join(cfg.Dir, "index"))
	}
	opts = opts.WithNumVersionsToKeep(1)

	logger := cfg.Logger
	if logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: logger})
	} else {
		opts = opts.WithLogger(nil)
		logger = slog.Default()
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open cache index: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

// OpenInMemory opens an index that is discarded on Close
func OpenInMemory() (*Store, error) {
	return Open(Config{InMemory: true})
}

// Close releases the index
func (s *Store) Close() error {
	return s.db.Close()
}

// Lookup returns the artifact recorded for fingerprint. ok is false when no
// artifact is recorded or when the recorded file is gone or was modified
// after it was committed.
func (s *Store) Lookup(fingerprint string) (entry Entry, ok bool, err error) {
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + fingerprint))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		ok = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &entry)
		})
	})
	if err != nil || !ok {
		return Entry{}, false, err
	}

	digest, err := DigestFile(entry.Path)
	if err != nil {
		s.logger.Debug("cached artifact unreadable", slog.String("path", entry.Path), slog.String("error", err.Error()))
		return Entry{}, false, nil
	}
	if digest != entry.Digest {
		s.logger.Info("cached artifact modified since commit, recomputing",
			slog.String("stage", entry.Stage), slog.String("path", entry.Path))
		return Entry{}, false, nil
	}
	return entry, true, nil
}

// Commit records the file at path as the artifact of fingerprint
func (s *Store) Commit(fingerprint, stage, path string) error {
	digest, err := DigestFile(path)
	if err != nil {
		return fmt.Errorf("digest artifact %s: %w", path, err)
	}
	data, err := json.Marshal(Entry{Stage: stage, Path: path, Digest: digest, CreatedAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyPrefix+fingerprint), data)
	})
}

// Invalidate forgets the artifact of fingerprint
func (s *Store) Invalidate(fingerprint string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(keyPrefix + fingerprint))
	})
}
