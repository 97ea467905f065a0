package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/reelfeed/reelfeed/internal/domain"
)

const (
	docPrefix = "doc:"
	runPrefix = "run:"
)

func documentKey(canonicalKey string) []byte {
	return []byte(docPrefix + canonicalKey)
}

// GetDocument returns the document stored under a canonical key.
func (s *Store) GetDocument(ctx context.Context, canonicalKey string) (*domain.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var doc domain.Document
	if err := s.get(documentKey(canonicalKey), &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// DocumentExists reports whether a document is stored under a canonical key.
func (s *Store) DocumentExists(ctx context.Context, canonicalKey string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return s.exists(documentKey(canonicalKey))
}

// ScanDocuments iterates over every stored document in key order.
func (s *Store) ScanDocuments(ctx context.Context) iter.Seq2[*domain.Document, error] {
	return func(yield func(*domain.Document, error) bool) {
		_ = s.db.View(func(txn *badger.Txn) error {
			prefix := []byte(docPrefix)
			opts := badger.DefaultIteratorOptions
			opts.Prefix = prefix
			opts.PrefetchValues = true

			it := txn.NewIterator(opts)
			defer it.Close()

			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				if err := ctx.Err(); err != nil {
					yield(nil, err)
					return err
				}

				var doc domain.Document
				err := it.Item().Value(func(val []byte) error {
					return json.Unmarshal(val, &doc)
				})
				if err != nil {
					err = fmt.Errorf("decode %s: %w", it.Item().Key(), err)
					yield(nil, err)
					return err
				}

				if !yield(&doc, nil) {
					return nil
				}
			}
			return nil
		})
	}
}

// CountDocuments returns the number of stored documents.
func (s *Store) CountDocuments(ctx context.Context) (int, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := []byte(docPrefix)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	return count, err
}

// CreatedAt returns the creation time of every key that already has a
// document. Keys without a document are absent from the result.
func (s *Store) CreatedAt(ctx context.Context, canonicalKeys []string) (map[string]time.Time, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make(map[string]time.Time, len(canonicalKeys))
	err := s.db.View(func(txn *badger.Txn) error {
		for _, key := range canonicalKeys {
			item, err := txn.Get(documentKey(key))
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return fmt.Errorf("get %s: %w", key, err)
			}

			var stamp struct {
				CreatedAt time.Time `json:"created_at"`
			}
			if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &stamp) }); err != nil {
				return fmt.Errorf("decode %s: %w", key, err)
			}
			out[key] = stamp.CreatedAt
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// WriteDocuments stores every document under its canonical key in a single
// write batch, fully replacing any previous value.
func (s *Store) WriteDocuments(ctx context.Context, docs []*domain.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	bw := s.NewBatchWriter(0)
	for _, doc := range docs {
		if err := bw.PutDocument(doc); err != nil {
			bw.Cancel()
			return err
		}
	}
	return bw.Flush(ctx)
}
