package config

import (
	"time"

	"github.com/reelfeed/reelfeed/internal/domain"
)

const (
	defaultBaseURL      = "https://api.themoviedb.org/3"
	defaultStorePath    = "~/.reelfeed/store"
	defaultIndexPath    = "~/.reelfeed/index"
	defaultDetailAppend = "credits,alternative_titles,external_ids"
)

// Default returns a configuration with every default applied.
func Default() *Config {
	return &Config{
		App: AppConfig{
			Environment: "development",
			LogLevel:    "info",
			Namespace:   "tmdb",
		},
		Provider: ProviderConfig{
			Name:         "tmdb",
			BaseURL:      defaultBaseURL,
			Timeout:      Duration(15 * time.Second),
			RPS:          40,
			Burst:        20,
			MaxInFlight:  20,
			MaxRetries:   5,
			BackoffBase:  Duration(time.Second),
			BackoffMax:   Duration(60 * time.Second),
			DetailAppend: defaultDetailAppend,
		},
		Store: StoreConfig{
			MaxBatchSize: 100,
		},
		Cache: CacheConfig{
			Enabled:       true,
			TTL:           Duration(24 * time.Hour),
			SchemaVersion: "v1",
		},
		Notify: NotifyConfig{
			Timeout: Duration(10 * time.Second),
		},
	}
}

// DefaultJobs is used when the file configures no [[jobs]].
func DefaultJobs() []JobConfig {
	jobs := make([]JobConfig, 0, len(domain.KnownEntityTypes()))
	for _, et := range domain.KnownEntityTypes() {
		jobs = append(jobs, JobConfig{
			Name:       string(et),
			EntityType: string(et),
			WindowDays: 1,
		})
	}
	return jobs
}
