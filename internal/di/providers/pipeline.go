package providers

import (
	"time"

	"github.com/samber/do/v2"

	"github.com/reelfeed/reelfeed/internal/cache"
	"github.com/reelfeed/reelfeed/internal/config"
	"github.com/reelfeed/reelfeed/internal/fetch"
	"github.com/reelfeed/reelfeed/internal/id"
	"github.com/reelfeed/reelfeed/internal/identity"
	"github.com/reelfeed/reelfeed/internal/logger"
	"github.com/reelfeed/reelfeed/internal/normalize"
	"github.com/reelfeed/reelfeed/internal/pipeline"
	"github.com/reelfeed/reelfeed/internal/ratelimit"
	"github.com/reelfeed/reelfeed/internal/recovery"
	"github.com/reelfeed/reelfeed/internal/report"
	"github.com/reelfeed/reelfeed/internal/upsert"
)

// ProvideScheme provides the canonical key scheme.
func ProvideScheme(i do.Injector) (identity.Scheme, error) {
	cfg := do.MustInvoke[*config.Config](i)
	return identity.New(cfg.App.Namespace)
}

// ProvideNormalizer provides the cached normalizer.
func ProvideNormalizer(i do.Injector) (*normalize.Cached, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	scheme := do.MustInvoke[identity.Scheme](i)
	c := do.MustInvoke[cache.Cache](i)

	n := normalize.New(cfg.Provider.Name, scheme, log.Logger)
	return normalize.NewCached(n, c, cfg.Cache.TTL.Std()), nil
}

// ProvideUpstream provides a factory of provider clients. Every call binds a
// fresh limiter so each worker pool has its own admission state.
func ProvideUpstream(i do.Injector) (pipeline.UpstreamFactory, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	c := do.MustInvoke[cache.Cache](i)

	if err := cfg.RequireAPIKey(); err != nil {
		return nil, err
	}

	p := cfg.Provider
	client, err := fetch.New(fetch.Config{
		BaseURL:      p.BaseURL,
		APIKey:       p.APIKey,
		Timeout:      p.Timeout.Std(),
		MaxRetries:   p.MaxRetries,
		BackoffBase:  p.BackoffBase.Std(),
		BackoffMax:   p.BackoffMax.Std(),
		DetailAppend: p.DetailAppend,
		Cache:        c,
		CacheTTL:     cfg.Cache.TTL.Std(),
		Logger:       log.Logger,
	})
	if err != nil {
		return nil, err
	}

	settings := ratelimit.Settings{RPS: p.RPS, Burst: p.Burst, MaxInFlight: p.MaxInFlight}
	return func() pipeline.Upstream {
		return client.WithLimiter(ratelimit.New(settings))
	}, nil
}

// ProvideWriter provides the upsert writer, keeping the search index in sync.
func ProvideWriter(i do.Injector) (*upsert.Writer, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)

	return upsert.New(storeHandle.Store, upsert.Options{
		MaxBatchSize: cfg.Store.MaxBatchSize,
		Index:        indexHandle.Index,
		Logger:       log.Logger,
	}), nil
}

// ProvideNotifier provides the run report destinations.
func ProvideNotifier(i do.Injector) (report.Notifier, error) {
	cfg := do.MustInvoke[*config.Config](i)
	return report.New(report.Config{
		NtfyTopic:  cfg.Notify.NtfyTopic,
		WebhookURL: cfg.Notify.WebhookURL,
		Timeout:    cfg.Notify.Timeout.Std(),
	}), nil
}

// ProvideRunner provides the job runner.
func ProvideRunner(i do.Injector) (*pipeline.Runner, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)

	upstream, err := do.Invoke[pipeline.UpstreamFactory](i)
	if err != nil {
		return nil, err
	}

	return pipeline.NewRunner(pipeline.Config{
		Jobs:       cfg.PipelineJobs(),
		Upstream:   upstream,
		Normalizer: do.MustInvoke[*normalize.Cached](i),
		Writer:     do.MustInvoke[*upsert.Writer](i),
		Runs:       storeHandle.Store,
		Notifier:   do.MustInvoke[report.Notifier](i),
		Logger:     log,
		NewID:      id.RunFunc(pipeline.KindETL, time.Now),
	}), nil
}

// ProvideScanner provides the collision recovery scanner.
func ProvideScanner(i do.Injector) (*recovery.Scanner, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)

	// A dry run needs no credentials, so a missing upstream is tolerated
	// here and reported by the scanner if a repair is attempted.
	var fetcher pipeline.DetailFetcher
	if upstream, err := do.Invoke[pipeline.UpstreamFactory](i); err == nil {
		fetcher = upstream()
	} else {
		log.Debug("recovery scanner has no upstream", "error", err)
	}

	return recovery.New(recovery.Config{
		Store:      storeHandle.Store,
		Scheme:     do.MustInvoke[identity.Scheme](i),
		Fetcher:    fetcher,
		Normalizer: do.MustInvoke[*normalize.Cached](i),
		Filter:     cfg.Filter,
		Writer:     do.MustInvoke[*upsert.Writer](i),
		Runs:       storeHandle.Store,
		Notifier:   do.MustInvoke[report.Notifier](i),
		Logger:     log.Logger,
		NewID:      id.RunFunc(pipeline.KindRecovery, time.Now),
	}), nil
}
