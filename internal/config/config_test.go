package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelfeed/reelfeed/internal/domain"
	domainerrors "github.com/reelfeed/reelfeed/internal/errors"
	"github.com/reelfeed/reelfeed/internal/filter"
)

const sampleTOML = `
[app]
environment = "production"
log_level = "warn"
namespace = "tmdb"

[provider]
base_url = "https://api.example.org/3/"
api_key = "file-key"
timeout = "20s"
rps = 4.0
burst = 2
max_in_flight = 3
backoff_base = "500ms"
backoff_max = "30s"

[store]
path = "/var/lib/reelfeed/store"
index_path = "/var/lib/reelfeed/index"
max_batch_size = 50

[cache]
enabled = false
ttl = "6h"
schema_version = "v2"

[filter]
min_popularity = 1.5
min_vote_count = 10
excluded_languages = ["xx"]

[notify]
ntfy_topic = "https://ntfy.sh/reelfeed"

[[jobs]]
name = "movies"
entity_type = "movie"
window_days = 2
batch_size = 20

[[jobs]]
name = "people"
entity_type = "person"
enabled = false

[jobs.filter]
min_popularity = 5.0
`

// clearEnv unsets every variable Load reads so the host environment cannot
// leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"REELFEED_ENV", "LOG_LEVEL", "PROVIDER_API_KEY", "PROVIDER_BASE_URL",
		"STORE_PATH", "INDEX_PATH", "NTFY_TOPIC", "REPORT_WEBHOOK_URL",
		"CACHE_ENABLED", "PROVIDER_RPS",
	} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestParse_Sample(t *testing.T) {
	cfg, err := Parse([]byte(sampleTOML))
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.App.Environment)
	assert.Equal(t, "warn", cfg.App.LogLevel)
	assert.Equal(t, "https://api.example.org/3", cfg.Provider.BaseURL, "trailing slash trimmed")
	assert.Equal(t, 20*time.Second, cfg.Provider.Timeout.Std())
	assert.Equal(t, 500*time.Millisecond, cfg.Provider.BackoffBase.Std())
	assert.Equal(t, 5, cfg.Provider.MaxRetries, "default kept")
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, 6*time.Hour, cfg.Cache.TTL.Std())
	assert.Equal(t, 50, cfg.Store.MaxBatchSize)

	require.Len(t, cfg.Jobs, 2)
	assert.True(t, cfg.Jobs[0].IsEnabled())
	assert.False(t, cfg.Jobs[1].IsEnabled())
	assert.Equal(t, 1, cfg.Jobs[1].WindowDays, "window defaults to one day")
}

func TestParse_DefaultsWhenEmpty(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.App.Environment)
	assert.Equal(t, "tmdb", cfg.App.Namespace)
	assert.True(t, filepath.IsAbs(cfg.Store.Path))
	assert.True(t, filepath.IsAbs(cfg.Store.IndexPath))

	require.Len(t, cfg.Jobs, len(domain.KnownEntityTypes()))
	for _, j := range cfg.Jobs {
		assert.True(t, j.IsEnabled())
		assert.Equal(t, j.Name, j.EntityType)
	}
}

func TestPipelineJobs_MergesFilter(t *testing.T) {
	cfg, err := Parse([]byte(sampleTOML))
	require.NoError(t, err)

	jobs := cfg.PipelineJobs()
	require.Len(t, jobs, 2)

	assert.Equal(t, domain.EntityMovie, jobs[0].EntityType)
	assert.Equal(t, 2, jobs[0].WindowDays)
	assert.Equal(t, filter.Policy{MinPopularity: 1.5, MinVoteCount: 10, ExcludedLanguages: []string{"xx"}}, jobs[0].Policy)

	assert.Equal(t, domain.EntityPerson, jobs[1].EntityType)
	assert.False(t, jobs[1].Enabled)
	assert.InDelta(t, 5.0, jobs[1].Policy.MinPopularity, 1e-9)
	assert.Equal(t, 10, jobs[1].Policy.MinVoteCount, "unset override fields keep the global value")
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name string
		toml string
	}{
		{name: "bad environment", toml: "[app]\nenvironment = \"test\""},
		{name: "bad log level", toml: "[app]\nlog_level = \"verbose\""},
		{name: "bad entity type", toml: "[[jobs]]\nname = \"x\"\nentity_type = \"tv_series\""},
		{name: "missing job name", toml: "[[jobs]]\nentity_type = \"movie\""},
		{name: "negative batch size", toml: "[[jobs]]\nname = \"m\"\nentity_type = \"movie\"\nbatch_size = -1"},
		{name: "duplicate job names", toml: "[[jobs]]\nname = \"m\"\nentity_type = \"movie\"\n[[jobs]]\nname = \"m\"\nentity_type = \"tv\""},
		{name: "zero rate", toml: "[provider]\nrps = 0.0"},
		{name: "bad webhook", toml: "[notify]\nwebhook_url = \"not a url\""},
		{name: "backoff inverted", toml: "[provider]\nbackoff_base = \"2m\"\nbackoff_max = \"1m\""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.toml))
			require.Error(t, err)
			assert.Equal(t, domainerrors.CodeConfig, domainerrors.KindOf(err))
		})
	}
}

func TestParse_BadDuration(t *testing.T) {
	_, err := Parse([]byte("[provider]\ntimeout = \"soon\""))
	require.Error(t, err)
}

func TestLoad_Precedence(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Chdir(dir)

	path := writeFile(t, dir, "custom.toml", sampleTOML)
	envFile := writeFile(t, dir, "test.env", "# comment\nPROVIDER_API_KEY=dotenv-key\nLOG_LEVEL=error\nexport NTFY_TOPIC=\"https://ntfy.sh/dotenv\"\n")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(LoadOptions{
		Path:      path,
		EnvFile:   envFile,
		Overrides: Overrides{StorePath: filepath.Join(dir, "flag-store")},
	})
	require.NoError(t, err)

	assert.Equal(t, path, cfg.Source)
	assert.Equal(t, "dotenv-key", cfg.Provider.APIKey, ".env beats the file")
	assert.Equal(t, "debug", cfg.App.LogLevel, "real env beats .env")
	assert.Equal(t, "https://ntfy.sh/dotenv", cfg.Notify.NtfyTopic)
	assert.Equal(t, filepath.Join(dir, "flag-store"), cfg.Store.Path, "flag beats everything")
	assert.Equal(t, "/var/lib/reelfeed/index", cfg.Store.IndexPath)
}

func TestLoad_FlagBeatsEnv(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(LoadOptions{Overrides: Overrides{LogLevel: "error"}})
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.App.LogLevel)
	assert.Empty(t, cfg.Source)
}

func TestLoad_FindsDefaultFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Chdir(dir)
	writeFile(t, dir, DefaultConfigFile, "[app]\nenvironment = \"staging\"\n")

	cfg, err := Load(LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, "staging", cfg.App.Environment)
	assert.Equal(t, filepath.Join(dir, DefaultConfigFile), cfg.Source)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(LoadOptions{Path: filepath.Join(t.TempDir(), "nope.toml")})
	require.Error(t, err)
}

func TestLoad_UnknownKeyRejected(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Chdir(dir)
	path := writeFile(t, dir, "c.toml", "[provider]\nrate = 3\n")

	_, err := Load(LoadOptions{Path: path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate")
}

func TestRequireAPIKey(t *testing.T) {
	cfg := Default()
	err := cfg.RequireAPIKey()
	require.Error(t, err)
	assert.Equal(t, domainerrors.CodeConfig, domainerrors.KindOf(err))

	cfg.Provider.APIKey = "k"
	assert.NoError(t, cfg.RequireAPIKey())
}

func TestLoadEnvFile_InvalidLine(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bad.env", "NOEQUALS\n")
	err := loadEnvFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 1")
}
