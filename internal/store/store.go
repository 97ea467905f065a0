// Package store persists canonical documents, run metadata and cached
// payloads in a single Badger database.
//
// Key layout:
//
//	doc:<canonical_key>            document JSON
//	run:<run_id>                   run metadata JSON
//	run:idx:date:<date>:<run_id>   run date index
//	cache:<version>:<key>          cached payload with TTL
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/reelfeed/reelfeed/internal/domain"
)

// Options configures how the database is opened.
type Options struct {
	Path     string
	InMemory bool
	Logger   *slog.Logger
}

// Store wraps a Badger database instance.
type Store struct {
	db     *badger.DB
	logger *slog.Logger

	Runs *Entity[domain.RunMetadata]
}

// New opens the database described by opts.
func New(opts Options) (*Store, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	var bopts badger.Options
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if opts.Path == "" {
			return nil, errors.New("store path is required")
		}
		bopts = badger.DefaultOptions(opts.Path)
		bopts.SyncWrites = true
		bopts.CompactL0OnClose = true
	}
	bopts.Logger = nil

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	s := &Store{db: db, logger: logger}
	s.Runs = NewEntity[domain.RunMetadata](s, runPrefix).
		WithIndex("date", func(r *domain.RunMetadata) []string { return []string{r.RunDate} })

	logger.Info("badger database opened", "path", opts.Path, "in_memory", opts.InMemory)
	return s, nil
}

// Close gracefully closes the database.
func (s *Store) Close() error {
	s.logger.Info("closing database")
	return s.db.Close()
}

// get retrieves a JSON value by key.
func (s *Store) get(key []byte, dest any) error {
	return s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, dest)
		})
	})
}

// exists checks if a key exists.
func (s *Store) exists(key []byte) (bool, error) {
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetRaw returns the bytes stored under key. Expired TTL entries read as absent.
func (s *Store) GetRaw(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	var out []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", key, err)
	}
	return out, true, nil
}

// SetRaw stores value under key. A positive ttl makes the entry expire.
func (s *Store) SetRaw(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(key), value)
		if ttl > 0 {
			e = e.WithTTL(ttl)
		}
		return txn.SetEntry(e)
	})
}

// DropPrefix removes every key starting with prefix.
func (s *Store) DropPrefix(prefix string) error {
	return s.db.DropPrefix([]byte(prefix))
}
