package providers

import (
	"github.com/samber/do/v2"

	"github.com/reelfeed/reelfeed/internal/cache"
	"github.com/reelfeed/reelfeed/internal/config"
	"github.com/reelfeed/reelfeed/internal/logger"
	"github.com/reelfeed/reelfeed/internal/search"
	"github.com/reelfeed/reelfeed/internal/store"
)

// StoreHandle wraps the store with shutdown capability.
type StoreHandle struct {
	*store.Store
}

// Shutdown implements Shutdowner.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore opens the document store.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	lc := do.MustInvoke[*Lifecycle](i)

	db, err := store.New(store.Options{Path: cfg.Store.Path, Logger: log.Logger})
	if err != nil {
		return nil, err
	}
	h := &StoreHandle{Store: db}
	lc.Track(h)
	return h, nil
}

// SearchIndexHandle wraps the search index with shutdown capability.
type SearchIndexHandle struct {
	*search.Index
}

// Shutdown implements Shutdowner.
func (h *SearchIndexHandle) Shutdown() error {
	return h.Close()
}

// ProvideSearchIndex opens the Bleve index.
func ProvideSearchIndex(i do.Injector) (*SearchIndexHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	lc := do.MustInvoke[*Lifecycle](i)

	index, err := search.Open(search.Options{
		DataPath: cfg.Store.IndexPath,
		Logger:   log.Logger,
	})
	if err != nil {
		return nil, err
	}

	docCount, _ := index.DocumentCount()
	log.Debug("search index opened", "documents", docCount)

	h := &SearchIndexHandle{Index: index}
	lc.Track(h)
	return h, nil
}

// ProvideCache provides the payload cache, backed by the store when enabled.
func ProvideCache(i do.Injector) (cache.Cache, error) {
	cfg := do.MustInvoke[*config.Config](i)
	if !cfg.Cache.Enabled {
		return cache.Noop{}, nil
	}
	storeHandle := do.MustInvoke[*StoreHandle](i)
	return cache.NewBadger(storeHandle.Store, cfg.Cache.SchemaVersion), nil
}
