package main

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelfeed/reelfeed/internal/domain"
	domainerrors "github.com/reelfeed/reelfeed/internal/errors"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"REELFEED_ENV", "LOG_LEVEL", "PROVIDER_API_KEY", "PROVIDER_BASE_URL",
		"STORE_PATH", "INDEX_PATH", "NTFY_TOPIC", "REPORT_WEBHOOK_URL",
		"CACHE_ENABLED", "PROVIDER_RPS",
	} {
		t.Setenv(key, "")
	}
}

func writeConfig(t *testing.T, dir, baseURL string) string {
	t.Helper()
	body := fmt.Sprintf(`
[app]
environment = "development"
log_level = "error"

[provider]
base_url = %q
api_key = "test-key"
rps = 100.0
max_retries = 0

[store]
path = %q
index_path = %q

[cache]
enabled = false

[[jobs]]
name = "movies"
entity_type = "movie"

[[jobs]]
name = "shows"
entity_type = "tv"
`, baseURL, filepath.Join(dir, "store"), filepath.Join(dir, "index"))

	path := filepath.Join(dir, "reelfeed.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

// execute runs the CLI once and releases the store before returning.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cc := &commandContext{}
	cmd := newRootCommand(cc)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	cc.close()
	return out.String(), err
}

// fakeProvider serves a movie feed with one live and one deleted id, and
// rejects the tv feed outright.
func fakeProvider(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var details atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/changes", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("type") != "movie" {
			http.Error(w, `{"status_message":"denied"}`, http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `{"page":1,"total_pages":1,"results":[{"id":550},{"id":551}]}`)
	})
	mux.HandleFunc("/movie/550", func(w http.ResponseWriter, _ *http.Request) {
		details.Add(1)
		fmt.Fprint(w, `{"id":550,"title":"Fight Club","release_date":"1999-10-15",
			"popularity":61.4,"vote_count":27000,"vote_average":8.4,
			"genres":[{"id":18,"name":"Drama"}],"original_language":"en"}`)
	})
	mux.HandleFunc("/movie/551", func(w http.ResponseWriter, r *http.Request) {
		details.Add(1)
		http.NotFound(w, r)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &details
}

func TestJobsCommand_ListsConfiguredJobs(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Chdir(dir)
	cfg := writeConfig(t, dir, "https://api.example.org/3")

	out, err := execute(t, "jobs", "--config", cfg)
	require.NoError(t, err)

	assert.Contains(t, out, "movies")
	assert.Contains(t, out, "shows")
	assert.Contains(t, out, "tv")
}

func TestRunCommand_EndToEnd(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Chdir(dir)
	srv, _ := fakeProvider(t)
	cfg := writeConfig(t, dir, srv.URL)

	out, err := execute(t, "run", "--config", cfg, "--start-date", "2026-10-16", "--end-date", "2026-10-17")
	require.ErrorIs(t, err, errJobsFailed)

	assert.Contains(t, out, ": partial")
	assert.Contains(t, out, "window 2026-10-16..2026-10-17")
	assert.Contains(t, out, "movies")
	assert.Contains(t, out, "shows: ")

	out, err = execute(t, "runs", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "etl")
	assert.Contains(t, out, "partial")

	out, err = execute(t, "search", "--config", cfg, "fight", "club")
	require.NoError(t, err)
	assert.Contains(t, out, "tmdb_movie_550")
	assert.Contains(t, out, "Fight Club")

	out, err = execute(t, "reindex", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "indexed 1 documents")
}

func TestRunCommand_DryRunWritesNothing(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Chdir(dir)
	srv, _ := fakeProvider(t)
	cfg := writeConfig(t, dir, srv.URL)

	_, err := execute(t, "run", "--config", cfg, "--job", "movies", "--dry-run", "--start-date", "2026-10-17")
	require.NoError(t, err)

	out, err := execute(t, "reindex", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "indexed 0 documents")
}

func TestRunCommand_LimitCapsCandidates(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Chdir(dir)
	srv, details := fakeProvider(t)
	cfg := writeConfig(t, dir, srv.URL)

	_, err := execute(t, "run", "--config", cfg, "--job", "movies", "--limit", "1", "--start-date", "2026-10-17")
	require.NoError(t, err)
	assert.Equal(t, int32(1), details.Load(), "only the first feed id is fetched")
}

func TestClearCacheCommand_KeepsDocuments(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Chdir(dir)
	srv, _ := fakeProvider(t)
	cfg := writeConfig(t, dir, srv.URL)

	_, err := execute(t, "run", "--config", cfg, "--job", "movies", "--start-date", "2026-10-17")
	require.NoError(t, err)

	out, err := execute(t, "clear-cache", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "cache cleared")

	out, err = execute(t, "reindex", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "indexed 1 documents")
}

func TestRecoverCommand_DryRunWithoutCredentials(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Chdir(dir)
	cfg := writeConfig(t, dir, "https://api.example.org/3")

	out, err := execute(t, "recover", "--config", cfg, "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "candidates found: 0")
}

func TestParseWindow(t *testing.T) {
	day := func(s string) time.Time {
		d, err := time.Parse(time.DateOnly, s)
		require.NoError(t, err)
		return d
	}

	tests := []struct {
		name      string
		start     string
		end       string
		wantStart string
		wantEnd   string
		wantCode  domainerrors.Code
	}{
		{name: "neither", wantCode: ""},
		{name: "both", start: "2026-10-01", end: "2026-10-03", wantStart: "2026-10-01", wantEnd: "2026-10-03"},
		{name: "start only", start: "2026-10-01", wantStart: "2026-10-01", wantEnd: "2026-10-01"},
		{name: "end only", end: "2026-10-03", wantStart: "2026-10-03", wantEnd: "2026-10-03"},
		{name: "bad date", start: "10/01/2026", wantCode: domainerrors.CodeValidation},
		{name: "inverted", start: "2026-10-03", end: "2026-10-01", wantCode: domainerrors.CodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := parseWindow(tt.start, tt.end)
			if tt.wantCode != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantCode, domainerrors.KindOf(err))
				return
			}
			require.NoError(t, err)
			if tt.wantStart == "" {
				assert.True(t, w.Start.IsZero())
				return
			}
			assert.Equal(t, day(tt.wantStart), w.Start)
			assert.Equal(t, day(tt.wantEnd), w.End)
		})
	}
}

func TestRenderRun_IncludesTotals(t *testing.T) {
	run := &domain.RunMetadata{
		RunID:  "etl-20261018-abc",
		Status: domain.RunPartial,
		Jobs: []domain.JobResult{
			{JobName: "movies", EntityType: domain.EntityMovie, Status: domain.JobSuccess, ChangesFound: 4, DocumentsUpserted: 3, NotFound: 1},
			{JobName: "shows", EntityType: domain.EntityTV, Status: domain.JobFailed, ErrorsCount: 1},
		},
	}

	out := renderRun(run)

	assert.Contains(t, out, "movies")
	assert.Contains(t, out, "failed")
	assert.Contains(t, out, "total")
	assert.Contains(t, out, "Upserted")
}

func TestRenderTable_EmptyHeaders(t *testing.T) {
	assert.Empty(t, renderTable(nil, [][]string{{"x"}}, nil, nil))
}
