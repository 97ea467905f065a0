// Package upsert writes canonical documents to the store in bounded batches.
package upsert

import (
	"context"
	"log/slog"
	"time"

	"github.com/reelfeed/reelfeed/internal/domain"
	domainerrors "github.com/reelfeed/reelfeed/internal/errors"
	"github.com/reelfeed/reelfeed/internal/util"
)

// DefaultMaxBatchSize bounds documents per store write.
const DefaultMaxBatchSize = 100

// Sink is the document store as seen by the writer.
type Sink interface {
	CreatedAt(ctx context.Context, keys []string) (map[string]time.Time, error)
	WriteDocuments(ctx context.Context, docs []*domain.Document) error
}

// Indexer receives every successfully written batch.
type Indexer interface {
	IndexDocuments(ctx context.Context, docs []*domain.Document) error
}

// Options configures a Writer.
type Options struct {
	MaxBatchSize int
	Index        Indexer // optional
	Logger       *slog.Logger
	Now          func() time.Time
}

// Writer performs keyed, overwrite-safe batch upserts.
type Writer struct {
	sink     Sink
	index    Indexer
	maxBatch int
	logger   *slog.Logger
	now      func() time.Time
}

// Result summarizes one UpsertBatch call.
type Result struct {
	Written       int // documents in batches that committed
	Batches       int
	FailedBatches int
	Duplicates    int // documents superseded by a later one with the same key
}

// New creates a writer over sink.
func New(sink Sink, opts Options) *Writer {
	w := &Writer{
		sink:     sink,
		index:    opts.Index,
		maxBatch: opts.MaxBatchSize,
		logger:   opts.Logger,
		now:      opts.Now,
	}
	if w.maxBatch <= 0 {
		w.maxBatch = DefaultMaxBatchSize
	}
	if w.logger == nil {
		w.logger = slog.New(slog.DiscardHandler)
	}
	if w.now == nil {
		w.now = time.Now
	}
	return w
}

// UpsertBatch writes docs keyed by canonical key. Within one call a key is
// written once, carrying the last document given for it. Existing documents
// keep their created_at; modified_at is bumped on every write. Documents
// without an origin are stamped with origin.
//
// Each store batch is retried once as a whole. A batch that still fails is
// skipped and reported through the returned BATCH_WRITE error; other batches
// are still attempted.
func (w *Writer) UpsertBatch(ctx context.Context, docs []*domain.Document, origin string) (Result, error) {
	var res Result

	unique := dedupe(docs)
	res.Duplicates = len(docs) - len(unique)

	var errs []error
	for _, chunk := range util.Chunk(unique, w.maxBatch) {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		res.Batches++

		if err := w.writeChunk(ctx, chunk, origin); err != nil {
			res.FailedBatches++
			w.logger.Error("batch write failed",
				"documents", len(chunk),
				"first_key", chunk[0].Key,
				"error", err,
			)
			errs = append(errs, err)
			continue
		}
		res.Written += len(chunk)

		if w.index != nil {
			if err := w.index.IndexDocuments(ctx, chunk); err != nil {
				w.logger.Warn("search index sync failed", "documents", len(chunk), "error", err)
			}
		}
	}

	if len(errs) > 0 {
		return res, domainerrors.Wrapf(domainerrors.Join(errs...), domainerrors.CodeBatchWrite,
			"%d of %d batches failed", res.FailedBatches, res.Batches)
	}
	return res, nil
}

func (w *Writer) writeChunk(ctx context.Context, chunk []*domain.Document, origin string) error {
	var lastErr error
	for attempt := range 2 {
		if attempt > 0 {
			w.logger.Warn("retrying batch write", "documents", len(chunk), "error", lastErr)
		}

		keys := make([]string, len(chunk))
		for i, d := range chunk {
			keys[i] = d.Key
		}
		created, err := w.sink.CreatedAt(ctx, keys)
		if err != nil {
			lastErr = err
			continue
		}

		now := w.now().UTC()
		for _, d := range chunk {
			d.Touch(now, created[d.Key])
			if d.Origin == "" {
				d.Origin = origin
			}
		}

		if err := w.sink.WriteDocuments(ctx, chunk); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return lastErr
}

// dedupe keeps one copy per key: the last document given, at the position of
// the first occurrence. Inputs are copied so callers' values are not mutated.
func dedupe(docs []*domain.Document) []*domain.Document {
	pos := make(map[string]int, len(docs))
	out := make([]*domain.Document, 0, len(docs))
	for _, d := range docs {
		if d == nil || d.Key == "" {
			continue
		}
		cp := *d
		if i, ok := pos[d.Key]; ok {
			out[i] = &cp
			continue
		}
		pos[d.Key] = len(out)
		out = append(out, &cp)
	}
	return out
}
