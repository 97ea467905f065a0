package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

// Entity provides generic persistence for any JSON-serialisable type.
type Entity[T any] struct {
	store   *Store
	prefix  string
	indexes []Index[T]
}

// Index defines a non-unique secondary index on an entity.
// Index entries are stored as "<prefix>idx:<name>:<value>:<id>".
type Index[T any] struct {
	name   string
	keyGen func(*T) []string
}

// NewEntity creates a new Entity instance for type T.
func NewEntity[T any](s *Store, prefix string) *Entity[T] {
	return &Entity[T]{
		store:   s,
		prefix:  prefix,
		indexes: make([]Index[T], 0),
	}
}

// WithIndex adds a secondary index to the entity.
func (e *Entity[T]) WithIndex(name string, keyGen func(*T) []string) *Entity[T] {
	e.indexes = append(e.indexes, Index[T]{name: name, keyGen: keyGen})
	return e
}

func (e *Entity[T]) indexKey(name, value, id string) []byte {
	return []byte(e.prefix + "idx:" + name + ":" + value + ":" + id)
}

// Put creates or replaces the entity stored under id, keeping its index
// entries in step.
func (e *Entity[T]) Put(ctx context.Context, id string, entity *T) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	key := []byte(e.prefix + id)
	data, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("failed to marshal entity: %w", err)
	}

	return e.store.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		switch {
		case err == nil:
			var old T
			if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &old) }); err != nil {
				return fmt.Errorf("failed to unmarshal old entity: %w", err)
			}
			for _, idx := range e.indexes {
				for _, v := range idx.keyGen(&old) {
					if err := txn.Delete(e.indexKey(idx.name, v, id)); err != nil {
						return fmt.Errorf("failed to delete old index key: %w", err)
					}
				}
			}
		case !errors.Is(err, badger.ErrKeyNotFound):
			return fmt.Errorf("failed to get existing key: %w", err)
		}

		if err := txn.Set(key, data); err != nil {
			return fmt.Errorf("failed to set key: %w", err)
		}
		for _, idx := range e.indexes {
			for _, v := range idx.keyGen(entity) {
				if err := txn.Set(e.indexKey(idx.name, v, id), []byte(id)); err != nil {
					return fmt.Errorf("failed to set index key: %w", err)
				}
			}
		}
		return nil
	})
}

// Get retrieves an entity by ID.
// Returns ErrNotFound if the entity does not exist.
func (e *Entity[T]) Get(ctx context.Context, id string) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var entity T
	if err := e.store.get([]byte(e.prefix+id), &entity); err != nil {
		return nil, err
	}
	return &entity, nil
}

// ListByIndex returns every entity whose index name has value.
func (e *Entity[T]) ListByIndex(ctx context.Context, name, value string) ([]*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prefix := []byte(e.prefix + "idx:" + name + ":" + value + ":")
	var ids []string
	err := e.store.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			ids = append(ids, string(it.Item().Key()[len(prefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]*T, 0, len(ids))
	for _, id := range ids {
		entity, err := e.Get(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("index %s points at %s: %w", name, id, err)
		}
		out = append(out, entity)
	}
	return out, nil
}

// List returns an iterator over all entities in key order.
func (e *Entity[T]) List(ctx context.Context) iter.Seq2[*T, error] {
	return func(yield func(*T, error) bool) {
		_ = e.store.db.View(func(txn *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.Prefix = []byte(e.prefix)
			opts.PrefetchValues = true

			it := txn.NewIterator(opts)
			defer it.Close()

			for it.Seek([]byte(e.prefix)); it.ValidForPrefix([]byte(e.prefix)); it.Next() {
				if ctx.Err() != nil {
					yield(nil, ctx.Err())
					return ctx.Err()
				}

				// Skip index keys
				if strings.HasPrefix(string(it.Item().Key()[len(e.prefix):]), "idx:") {
					continue
				}

				var entity T
				err := it.Item().Value(func(val []byte) error {
					return json.Unmarshal(val, &entity)
				})
				if err != nil {
					yield(nil, err)
					return err
				}

				if !yield(&entity, nil) {
					return nil
				}
			}
			return nil
		})
	}
}
