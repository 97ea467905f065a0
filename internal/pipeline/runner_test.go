package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelfeed/reelfeed/internal/domain"
	domainerrors "github.com/reelfeed/reelfeed/internal/errors"
	"github.com/reelfeed/reelfeed/internal/feed"
	"github.com/reelfeed/reelfeed/internal/filter"
	"github.com/reelfeed/reelfeed/internal/upsert"
)

func jobResult(t *testing.T, run *domain.RunMetadata, name string) domain.JobResult {
	t.Helper()
	for _, j := range run.Jobs {
		if j.JobName == name {
			return j
		}
	}
	t.Fatalf("job %s not in run", name)
	return domain.JobResult{}
}

func TestRun_BatchIsolation(t *testing.T) {
	env := setupTestEnv(t, []Job{movieJob()})
	env.upstream.feeds[domain.EntityMovie] = [][]int{ids(1, 20)}
	env.upstream.missing[domain.Candidate{SourceID: "7", EntityType: domain.EntityMovie}] = true

	run, err := env.runner.Run(context.Background(), RunOptions{})
	require.NoError(t, err)

	res := jobResult(t, run, "movies")
	assert.Equal(t, domain.JobSuccess, res.Status)
	assert.Equal(t, 20, res.ChangesFound)
	assert.Equal(t, 1, res.NotFound)
	assert.Equal(t, 19, res.DocumentsUpserted)
	assert.Zero(t, res.ErrorsCount, "a 404 is a skip, not an error")
	assert.Equal(t, domain.RunCompleted, run.Status)

	count, err := env.store.CountDocuments(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 19, count)
}

func TestRun_ItemFailuresAreCountedNotFatal(t *testing.T) {
	env := setupTestEnv(t, []Job{movieJob()})
	env.upstream.feeds[domain.EntityMovie] = [][]int{ids(1, 5)}
	env.upstream.failing[domain.Candidate{SourceID: "2", EntityType: domain.EntityMovie}] = true

	run, err := env.runner.Run(context.Background(), RunOptions{})
	require.NoError(t, err)

	res := jobResult(t, run, "movies")
	assert.Equal(t, domain.JobSuccess, res.Status)
	assert.Equal(t, 1, res.ErrorsCount)
	assert.Equal(t, 4, res.DocumentsUpserted)
}

func TestRun_PartialFailureIsolation(t *testing.T) {
	env := setupTestEnv(t, []Job{tvJob(), movieJob()})
	env.upstream.failPage(domain.EntityTV, 1, domainerrors.ErrExhausted)
	env.upstream.feeds[domain.EntityMovie] = [][]int{{550, 551}}

	run, err := env.runner.Run(context.Background(), RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, domain.RunPartial, run.Status)
	assert.True(t, run.AnyFailed())

	tv := jobResult(t, run, "tv")
	assert.Equal(t, domain.JobFailed, tv.Status)
	assert.NotEmpty(t, tv.Error)

	movies := jobResult(t, run, "movies")
	assert.Equal(t, domain.JobSuccess, movies.Status)
	assert.Equal(t, 2, movies.DocumentsUpserted)

	exists, err := env.store.DocumentExists(context.Background(), "tmdb_movie_550")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestRun_AllJobsFailed(t *testing.T) {
	env := setupTestEnv(t, []Job{tvJob(), movieJob()})
	env.upstream.failPage(domain.EntityTV, 1, domainerrors.ErrExhausted)
	env.upstream.failPage(domain.EntityMovie, 1, domainerrors.Config("missing api key"))

	run, err := env.runner.Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, domain.RunFailed, run.Status)
}

func TestRun_LaterPageFailureIsPartial(t *testing.T) {
	env := setupTestEnv(t, []Job{movieJob()})
	env.upstream.feeds[domain.EntityMovie] = [][]int{{1, 2}, {3}}
	env.upstream.failPage(domain.EntityMovie, 2, domainerrors.ErrExhausted)

	run, err := env.runner.Run(context.Background(), RunOptions{})
	require.NoError(t, err)

	res := jobResult(t, run, "movies")
	assert.Equal(t, domain.JobPartial, res.Status)
	assert.Equal(t, 2, res.DocumentsUpserted)
	assert.Equal(t, domain.RunPartial, run.Status)
	assert.False(t, run.AnyFailed())
}

func TestRun_EmptyFirstPageThenFailureIsPartial(t *testing.T) {
	env := setupTestEnv(t, []Job{movieJob()})
	env.upstream.feeds[domain.EntityMovie] = [][]int{{}, {3}}
	env.upstream.failPage(domain.EntityMovie, 2, domainerrors.ErrExhausted)

	run, err := env.runner.Run(context.Background(), RunOptions{})
	require.NoError(t, err)

	res := jobResult(t, run, "movies")
	assert.Equal(t, domain.JobPartial, res.Status, "the feed was reachable")
	assert.Zero(t, res.ChangesFound)
	assert.NotEmpty(t, res.Error)
}

func TestRun_ChangedPayloadIsRefetched(t *testing.T) {
	env := setupTestEnv(t, []Job{movieJob()})
	env.upstream.feeds[domain.EntityMovie] = [][]int{{550}}
	c := domain.Candidate{SourceID: "550", EntityType: domain.EntityMovie}
	env.upstream.titles[c] = "Old Title"
	ctx := context.Background()

	_, err := env.runner.Run(ctx, RunOptions{})
	require.NoError(t, err)
	doc, err := env.store.GetDocument(ctx, "tmdb_movie_550")
	require.NoError(t, err)
	assert.Equal(t, "Old Title", doc.Display.Title)

	env.upstream.titles[c] = "New Title"

	_, err = env.runner.Run(ctx, RunOptions{})
	require.NoError(t, err)
	doc, err = env.store.GetDocument(ctx, "tmdb_movie_550")
	require.NoError(t, err)
	assert.Equal(t, "New Title", doc.Display.Title)
	assert.Equal(t, 2, env.upstream.hits(c))
}

func TestRun_LimitCapsCandidatesPerJob(t *testing.T) {
	env := setupTestEnv(t, []Job{movieJob()})
	env.upstream.feeds[domain.EntityMovie] = [][]int{ids(1, 10)}

	run, err := env.runner.Run(context.Background(), RunOptions{Limit: 4})
	require.NoError(t, err)

	res := jobResult(t, run, "movies")
	assert.Equal(t, 10, res.ChangesFound)
	assert.Equal(t, 4, res.Fetched)
	assert.Equal(t, 4, res.DocumentsUpserted)
	assert.Zero(t, env.upstream.hits(domain.Candidate{SourceID: "5", EntityType: domain.EntityMovie}))
}

func TestRun_IdempotentRerun(t *testing.T) {
	env := setupTestEnv(t, []Job{movieJob(), tvJob()})
	env.upstream.feeds[domain.EntityMovie] = [][]int{{550, 551, 552}}
	env.upstream.feeds[domain.EntityTV] = [][]int{{550}}
	ctx := context.Background()

	_, err := env.runner.Run(ctx, RunOptions{})
	require.NoError(t, err)

	snapshot := func() map[string]domain.Document {
		out := map[string]domain.Document{}
		for d, err := range env.store.ScanDocuments(ctx) {
			require.NoError(t, err)
			out[d.Key] = *d
		}
		return out
	}
	first := snapshot()

	_, err = env.runner.Run(ctx, RunOptions{})
	require.NoError(t, err)
	second := snapshot()

	require.Len(t, second, len(first), "no new keys on rerun")
	for key, a := range first {
		b, ok := second[key]
		require.True(t, ok, key)
		assert.Equal(t, a.Search, b.Search, key)
		assert.Equal(t, a.Display, b.Display, key)
		assert.True(t, a.CreatedAt.Equal(b.CreatedAt), key)
	}
	assert.Contains(t, first, "tmdb_movie_550")
	assert.Contains(t, first, "tmdb_tv_550")
}

func TestRun_DryRunWritesNothing(t *testing.T) {
	env := setupTestEnv(t, []Job{movieJob()})
	env.upstream.feeds[domain.EntityMovie] = [][]int{ids(1, 3)}

	run, err := env.runner.Run(context.Background(), RunOptions{DryRun: true})
	require.NoError(t, err)

	res := jobResult(t, run, "movies")
	assert.Equal(t, 3, res.Fetched)
	assert.Zero(t, res.DocumentsUpserted)
	assert.True(t, run.DryRun)

	count, err := env.store.CountDocuments(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestRun_MaxBatchesAndMaxPages(t *testing.T) {
	env := setupTestEnv(t, []Job{movieJob()})
	env.upstream.feeds[domain.EntityMovie] = [][]int{ids(1, 30), ids(31, 30), ids(61, 30)}

	run, err := env.runner.Run(context.Background(), RunOptions{MaxBatches: 2, MaxPages: 2})
	require.NoError(t, err)

	res := jobResult(t, run, "movies")
	assert.Equal(t, 60, res.ChangesFound, "third page never read")
	assert.Equal(t, 40, res.Fetched, "two batches of twenty")
	assert.Equal(t, 40, res.DocumentsUpserted)
}

func TestRun_FilterReasons(t *testing.T) {
	job := movieJob()
	job.Policy = filter.Policy{MinPopularity: 50}
	env := setupTestEnv(t, []Job{job})
	env.upstream.feeds[domain.EntityMovie] = [][]int{{1, 2}}

	run, err := env.runner.Run(context.Background(), RunOptions{})
	require.NoError(t, err)

	res := jobResult(t, run, "movies")
	assert.Equal(t, 2, res.Filtered)
	assert.Equal(t, map[string]int{filter.ReasonPopularity: 2}, res.FilterReasons)
	assert.Zero(t, res.DocumentsUpserted)
	assert.Equal(t, domain.JobSuccess, res.Status)
}

func TestRun_RunScopedClaims(t *testing.T) {
	recent := movieJob()
	backfill := movieJob()
	backfill.Name = "movies-backfill"
	env := setupTestEnv(t, []Job{recent, backfill})
	env.upstream.feeds[domain.EntityMovie] = [][]int{{1, 2, 3}}

	run, err := env.runner.Run(context.Background(), RunOptions{})
	require.NoError(t, err)

	total := run.Totals()
	assert.Equal(t, 3, total.Skipped)
	assert.Equal(t, 3, total.DocumentsUpserted)
	for _, id := range []string{"1", "2", "3"} {
		assert.Equal(t, 1, env.upstream.hits(domain.Candidate{SourceID: id, EntityType: domain.EntityMovie}))
	}
}

func TestRun_SelectsJobsByName(t *testing.T) {
	disabled := tvJob()
	disabled.Enabled = false
	env := setupTestEnv(t, []Job{movieJob(), disabled})

	run, err := env.runner.Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	require.Len(t, run.Jobs, 1, "disabled jobs are skipped by default")

	run, err = env.runner.Run(context.Background(), RunOptions{Jobs: []string{"tv"}})
	require.NoError(t, err)
	require.Len(t, run.Jobs, 1)
	assert.Equal(t, "tv", run.Jobs[0].JobName, "named jobs run even when disabled")

	_, err = env.runner.Run(context.Background(), RunOptions{Jobs: []string{"nope"}})
	require.Error(t, err)
	assert.Equal(t, domainerrors.CodeConfig, domainerrors.KindOf(err))
}

func TestRun_InvalidWindow(t *testing.T) {
	env := setupTestEnv(t, []Job{movieJob()})

	_, err := env.runner.Run(context.Background(), RunOptions{Window: feed.Window{
		Start: time.Date(2026, 10, 10, 0, 0, 0, 0, time.UTC),
	}})
	require.Error(t, err)
	assert.Equal(t, domainerrors.CodeValidation, domainerrors.KindOf(err))
}

func TestRun_PersistsAndNotifies(t *testing.T) {
	env := setupTestEnv(t, []Job{movieJob()})
	env.upstream.feeds[domain.EntityMovie] = [][]int{{1}}
	ctx := context.Background()

	run, err := env.runner.Run(ctx, RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, "run-1", run.RunID)
	assert.Equal(t, "2026-10-18", run.RunDate)
	assert.Equal(t, "2026-10-17", run.StartDate)
	assert.Equal(t, "2026-10-17", run.EndDate)

	stored, err := env.store.Runs.Get(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, domain.RunCompleted, stored.Status)
	require.Len(t, stored.Jobs, 1)

	require.Len(t, env.notifier.runs, 1)
	assert.Equal(t, run, env.notifier.runs[0])
}

type failingWriter struct{}

func (failingWriter) UpsertBatch(context.Context, []*domain.Document, string) (upsert.Result, error) {
	return upsert.Result{Batches: 1, FailedBatches: 1},
		domainerrors.Wrap(errors.New("disk full"), domainerrors.CodeBatchWrite, "1 of 1 batches failed")
}

func TestRun_PersistentWriteFailureFailsJob(t *testing.T) {
	env := setupTestEnv(t, []Job{movieJob(), tvJob()}, func(c *Config) { c.Writer = failingWriter{} })
	env.upstream.feeds[domain.EntityMovie] = [][]int{{1, 2}}

	run, err := env.runner.Run(context.Background(), RunOptions{})
	require.NoError(t, err)

	movies := jobResult(t, run, "movies")
	assert.Equal(t, domain.JobFailed, movies.Status)
	assert.Equal(t, 2, movies.ErrorsCount)
	assert.Equal(t, domain.JobSuccess, jobResult(t, run, "tv").Status, "other jobs continue")
	assert.Equal(t, domain.RunPartial, run.Status)
}

func TestDefaultWindow(t *testing.T) {
	now := time.Date(2026, 10, 18, 23, 30, 0, 0, time.UTC)

	w := DefaultWindow(now, 1)
	assert.Equal(t, "2026-10-17", w.Start.Format(feed.DateLayout))
	assert.Equal(t, "2026-10-17", w.End.Format(feed.DateLayout))

	w = DefaultWindow(now, 3)
	assert.Equal(t, "2026-10-15", w.Start.Format(feed.DateLayout))
	assert.Equal(t, "2026-10-17", w.End.Format(feed.DateLayout))

	assert.Equal(t, DefaultWindow(now, 1), DefaultWindow(now, 0))
}
