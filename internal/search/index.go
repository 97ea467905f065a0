package search

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"

	"github.com/reelfeed/reelfeed/internal/domain"
)

// Index wraps a Bleve index of canonical documents keyed by canonical key.
//
// Thread safety: all public methods are safe for concurrent use. Rebuild
// takes the write lock; everything else shares the read lock.
type Index struct {
	index  bleve.Index
	path   string
	logger *slog.Logger
	mu     sync.RWMutex
}

// Options configures the search index.
type Options struct {
	DataPath string       // Directory for index storage
	Logger   *slog.Logger // Uses discard if nil
}

// mappingVersion is bumped whenever buildIndexMapping changes. A stored
// version that differs triggers a rebuild on open.
const mappingVersion = "1"

// batchSize bounds the number of documents per Bleve batch.
const batchSize = 500

// Open creates or opens the index under opts.DataPath. A corrupt index or one
// built with an outdated mapping is removed and recreated empty; callers
// repopulate it with Reindex.
func Open(opts Options) (*Index, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if err := os.MkdirAll(opts.DataPath, 0o755); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}

	indexPath := filepath.Join(opts.DataPath, "documents.bleve")
	versionPath := filepath.Join(opts.DataPath, "documents.version")

	var (
		index        bleve.Index
		err          error
		needsRebuild bool
	)

	_, statErr := os.Stat(indexPath)
	indexExists := statErr == nil

	if indexExists {
		existingVersion, readErr := os.ReadFile(versionPath)
		switch {
		case readErr != nil:
			logger.Info("search index has no version file, will rebuild", "new_version", mappingVersion)
			needsRebuild = true
		case string(existingVersion) != mappingVersion:
			logger.Info("search index mapping version changed, will rebuild",
				"old_version", string(existingVersion),
				"new_version", mappingVersion,
			)
			needsRebuild = true
		}
	}

	if indexExists && !needsRebuild {
		index, err = bleve.Open(indexPath)
		if err != nil {
			logger.Warn("failed to open existing index, will recreate", "path", indexPath, "error", err)
			needsRebuild = true
		}
	}

	if needsRebuild {
		if err := os.RemoveAll(indexPath); err != nil {
			return nil, fmt.Errorf("remove old index: %w", err)
		}
		index = nil
	}

	if index == nil {
		index, err = bleve.New(indexPath, buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("create index: %w", err)
		}
		if err := os.WriteFile(versionPath, []byte(mappingVersion), 0o644); err != nil {
			logger.Warn("failed to write search version file", "error", err)
		}
		logger.Info("created new search index", "path", indexPath, "mapping_version", mappingVersion)
	} else {
		logger.Info("opened existing search index", "path", indexPath)
	}

	return &Index{
		index:  index,
		path:   indexPath,
		logger: logger,
	}, nil
}

// Close closes the index and releases resources.
func (s *Index) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.Close()
}

// IndexDocuments indexes docs in batches, replacing any entry under the same key.
func (s *Index) IndexDocuments(ctx context.Context, docs []*domain.Document) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := 0; i < len(docs); i += batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(i+batchSize, len(docs))

		batch := s.index.NewBatch()
		for _, doc := range docs[i:end] {
			if err := batch.Index(doc.Key, toMap(doc)); err != nil {
				return fmt.Errorf("batch index %s: %w", doc.Key, err)
			}
		}
		if err := s.index.Batch(batch); err != nil {
			return fmt.Errorf("commit batch %d-%d: %w", i, end, err)
		}
	}
	return nil
}

// DocumentCount returns the number of indexed documents.
func (s *Index) DocumentCount() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.DocCount()
}

// Rebuild drops the index and creates an empty one with the current mapping.
// It blocks all other operations while it runs.
func (s *Index) Rebuild() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.index.Close(); err != nil {
		return fmt.Errorf("close index: %w", err)
	}
	if err := os.RemoveAll(s.path); err != nil {
		return fmt.Errorf("remove index: %w", err)
	}
	index, err := bleve.New(s.path, buildIndexMapping())
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	s.index = index
	s.logger.Info("rebuilt search index", "path", s.path)
	return nil
}

// Reindex rebuilds the index and fills it from docs. It returns the number
// of documents indexed.
func (s *Index) Reindex(ctx context.Context, docs iter.Seq2[*domain.Document, error]) (int, error) {
	if err := s.Rebuild(); err != nil {
		return 0, err
	}

	total := 0
	pending := make([]*domain.Document, 0, batchSize)
	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		if err := s.IndexDocuments(ctx, pending); err != nil {
			return err
		}
		total += len(pending)
		pending = pending[:0]
		return nil
	}

	for doc, err := range docs {
		if err != nil {
			return total, fmt.Errorf("read documents: %w", err)
		}
		pending = append(pending, doc)
		if len(pending) == batchSize {
			if err := flush(); err != nil {
				return total, err
			}
		}
	}
	if err := flush(); err != nil {
		return total, err
	}

	s.logger.Info("reindexed documents", "count", total)
	return total, nil
}
