package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"github.com/reelfeed/reelfeed/internal/domain"
)

// BatchWriter provides bulk writes using Badger's WriteBatch.
type BatchWriter struct {
	store   *Store
	batch   *badger.WriteBatch
	maxSize int
	count   int
}

// NewBatchWriter creates a batch writer. When maxSize is positive the batch
// flushes itself every maxSize documents.
func (s *Store) NewBatchWriter(maxSize int) *BatchWriter {
	return &BatchWriter{
		store:   s,
		maxSize: maxSize,
	}
}

// PutDocument adds a document to the batch.
func (b *BatchWriter) PutDocument(doc *domain.Document) error {
	if doc.Key == "" {
		return fmt.Errorf("document %s has no canonical key", doc.Candidate())
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document %s: %w", doc.Key, err)
	}

	if b.batch == nil {
		b.batch = b.store.db.NewWriteBatch()
	}
	if err := b.batch.Set(documentKey(doc.Key), data); err != nil {
		return fmt.Errorf("batch set %s: %w", doc.Key, err)
	}

	b.count++

	if b.maxSize > 0 && b.count >= b.maxSize {
		if err := b.Flush(context.Background()); err != nil {
			return fmt.Errorf("auto flush: %w", err)
		}
	}
	return nil
}

// Flush commits all pending writes in the batch.
func (b *BatchWriter) Flush(ctx context.Context) error {
	if b.count == 0 {
		b.Cancel()
		return nil
	}

	err := b.batch.Flush()
	b.batch = nil
	if err != nil {
		b.count = 0
		return fmt.Errorf("flush batch: %w", err)
	}

	b.store.logger.LogAttrs(ctx, slog.LevelDebug, "batch flushed",
		slog.Int("count", b.count),
	)

	b.count = 0
	return nil
}

// Cancel discards all pending writes in the batch.
func (b *BatchWriter) Cancel() {
	if b.batch != nil {
		b.batch.Cancel()
		b.batch = nil
	}
	b.count = 0
}

// Count returns the number of operations in the current batch.
func (b *BatchWriter) Count() int {
	return b.count
}
