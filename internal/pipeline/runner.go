// Package pipeline orchestrates change-feed ingestion: poll, fetch, normalize,
// filter and upsert, one job per configured entity type.
package pipeline

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/reelfeed/reelfeed/internal/domain"
	domainerrors "github.com/reelfeed/reelfeed/internal/errors"
	"github.com/reelfeed/reelfeed/internal/feed"
	"github.com/reelfeed/reelfeed/internal/filter"
	"github.com/reelfeed/reelfeed/internal/logger"
	"github.com/reelfeed/reelfeed/internal/upsert"
	"github.com/reelfeed/reelfeed/internal/util"
)

// Run kinds recorded in run metadata.
const (
	KindETL      = "etl"
	KindRecovery = "recovery"
)

// DefaultBatchSize is the number of candidates processed together.
const DefaultBatchSize = 20

// Refresher reads a detail payload from upstream, bypassing any cached copy.
type Refresher interface {
	Refresh(ctx context.Context, et domain.EntityType, sourceID string) ([]byte, error)
}

// Upstream is the provider as seen by one worker pool.
type Upstream interface {
	Fetch(ctx context.Context, path string, params url.Values) ([]byte, error)
	DetailFetcher
	Refresher
}

// freshDetails serves every detail read from upstream. Candidates come from
// the change feed, so any cached payload for them predates the change.
type freshDetails struct {
	up Refresher
}

func (f freshDetails) Detail(ctx context.Context, et domain.EntityType, sourceID string) ([]byte, error) {
	return f.up.Refresh(ctx, et, sourceID)
}

// UpstreamFactory builds an upstream client with its own admission limiter.
// It is called once per job so no limiter state is shared between pools.
type UpstreamFactory func() Upstream

// Writer persists documents.
type Writer interface {
	UpsertBatch(ctx context.Context, docs []*domain.Document, origin string) (upsert.Result, error)
}

// RunStore persists run metadata.
type RunStore interface {
	SaveRun(ctx context.Context, run *domain.RunMetadata) error
}

// Notifier hands finished run metadata to the reporting collaborator.
type Notifier interface {
	Notify(ctx context.Context, run *domain.RunMetadata) error
}

// Job is one configured ingestion job.
type Job struct {
	Name        string
	EntityType  domain.EntityType
	Enabled     bool
	WindowDays  int
	MaxPages    int
	BatchSize   int
	Concurrency int
	Policy      filter.Policy
}

// RunOptions are per-invocation overrides.
type RunOptions struct {
	Jobs       []string    // job names; empty runs every enabled job
	Window     feed.Window // zero uses each job's default window
	DryRun     bool        // poll, fetch, normalize and filter without writing
	MaxBatches int         // candidate batches per job; 0 = unlimited
	Limit      int         // candidates processed per job; 0 = unlimited
	MaxPages   int         // overrides each job's max_pages when > 0
}

// Config wires a Runner.
type Config struct {
	Jobs       []Job
	Upstream   UpstreamFactory
	Normalizer Normalizer
	Writer     Writer
	Runs       RunStore // optional
	Notifier   Notifier // optional
	Logger     *logger.Logger
	NewID      func() string
	Now        func() time.Time
}

// Runner executes jobs.
type Runner struct {
	cfg    Config
	logger *logger.Logger
}

// NewRunner creates a runner.
func NewRunner(cfg Config) *Runner {
	if cfg.Logger == nil {
		cfg.Logger = logger.Discard()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = func() string { return fmt.Sprintf("run-%d", cfg.Now().UnixNano()) }
	}
	return &Runner{cfg: cfg, logger: cfg.Logger}
}

// Jobs returns the configured jobs.
func (r *Runner) Jobs() []Job {
	return slices.Clone(r.cfg.Jobs)
}

// DefaultWindow ends yesterday (UTC) and spans windowDays days.
func DefaultWindow(now time.Time, windowDays int) feed.Window {
	if windowDays <= 0 {
		windowDays = 1
	}
	y, m, d := now.UTC().Date()
	end := time.Date(y, m, d, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
	return feed.Window{Start: end.AddDate(0, 0, -(windowDays - 1)), End: end}
}

func (r *Runner) selectJobs(names []string) ([]Job, error) {
	if len(names) == 0 {
		var jobs []Job
		for _, j := range r.cfg.Jobs {
			if j.Enabled {
				jobs = append(jobs, j)
			}
		}
		return jobs, nil
	}

	jobs := make([]Job, 0, len(names))
	for _, name := range names {
		i := slices.IndexFunc(r.cfg.Jobs, func(j Job) bool { return j.Name == name })
		if i < 0 {
			return nil, domainerrors.Configf("unknown job %q", name)
		}
		jobs = append(jobs, r.cfg.Jobs[i])
	}
	return jobs, nil
}

// Run executes the selected jobs concurrently and returns the finalized run
// metadata. A failing job never stops its siblings; the only errors returned
// are for invalid options, before any job starts.
func (r *Runner) Run(ctx context.Context, opts RunOptions) (*domain.RunMetadata, error) {
	jobs, err := r.selectJobs(opts.Jobs)
	if err != nil {
		return nil, err
	}
	explicit := !opts.Window.Start.IsZero() || !opts.Window.End.IsZero()
	if explicit {
		if err := opts.Window.Validate(); err != nil {
			return nil, err
		}
	}

	now := r.cfg.Now().UTC()
	windows := make([]feed.Window, len(jobs))
	for i, j := range jobs {
		if explicit {
			windows[i] = opts.Window
		} else {
			windows[i] = DefaultWindow(now, j.WindowDays)
		}
	}

	run := &domain.RunMetadata{
		RunID:     r.cfg.NewID(),
		RunDate:   now.Format(feed.DateLayout),
		Kind:      KindETL,
		DryRun:    opts.DryRun,
		Status:    domain.RunRunning,
		StartedAt: now,
	}
	if len(windows) > 0 {
		start, end := windows[0].Start, windows[0].End
		for _, w := range windows[1:] {
			if w.Start.Before(start) {
				start = w.Start
			}
			if w.End.After(end) {
				end = w.End
			}
		}
		run.StartDate = start.Format(feed.DateLayout)
		run.EndDate = end.Format(feed.DateLayout)
	}

	log := r.logger.WithField("run_id", run.RunID)
	log.Info("run started", "jobs", len(jobs), "dry_run", opts.DryRun, "window", run.StartDate+".."+run.EndDate)
	r.saveRun(ctx, log, run)

	claims := NewClaims()
	results := make([]domain.JobResult, len(jobs))
	var g errgroup.Group
	for i, job := range jobs {
		g.Go(func() error {
			results[i] = r.runJob(ctx, log, job, windows[i], opts, claims)
			return nil
		})
	}
	_ = g.Wait()

	for _, res := range results {
		run.Append(res)
	}
	run.Finalize(r.cfg.Now().UTC())

	totals := run.Totals()
	log.Info("run finished",
		"status", run.Status,
		"changes_found", totals.ChangesFound,
		"documents_upserted", totals.DocumentsUpserted,
		"errors", totals.ErrorsCount,
	)

	r.saveRun(ctx, log, run)
	if r.cfg.Notifier != nil {
		if err := r.cfg.Notifier.Notify(ctx, run); err != nil {
			log.Warn("run notification failed", "error", err)
		}
	}
	return run, nil
}

func (r *Runner) saveRun(ctx context.Context, log *logger.Logger, run *domain.RunMetadata) {
	if r.cfg.Runs == nil {
		return
	}
	if err := r.cfg.Runs.SaveRun(ctx, run); err != nil {
		log.Warn("failed to persist run metadata", "error", err)
	}
}

// runJob executes one job. It always returns a result; failures are
// recorded in it rather than returned.
func (r *Runner) runJob(ctx context.Context, runLogger *logger.Logger, job Job, w feed.Window, opts RunOptions, claims *Claims) domain.JobResult {
	started := r.cfg.Now()
	log := runLogger.WithJob(job.Name, string(job.EntityType))
	res := domain.JobResult{JobName: job.Name, EntityType: job.EntityType, Status: domain.JobSuccess}
	defer func() {
		res.Duration = r.cfg.Now().Sub(started)
		log.Info("job finished",
			"status", res.Status,
			"changes_found", res.ChangesFound,
			"fetched", res.Fetched,
			"not_found", res.NotFound,
			"filtered", res.Filtered,
			"documents_upserted", res.DocumentsUpserted,
			"errors", res.ErrorsCount,
			"duration", res.Duration,
		)
	}()

	up := r.cfg.Upstream()

	maxPages := job.MaxPages
	if opts.MaxPages > 0 {
		maxPages = opts.MaxPages
	}
	polled, pollErr := feed.NewPoller(up, log.Logger).Poll(ctx, job.EntityType, w, maxPages)
	res.ChangesFound = len(polled.Candidates)
	if pollErr != nil {
		if polled.Pages == 0 {
			res.Status = domain.JobFailed
			res.Error = pollErr.Error()
			log.WithError(pollErr).Error("change feed unavailable")
			return res
		}
		res.Status = domain.JobPartial
		res.Error = pollErr.Error()
		log.WithError(pollErr).Warn("change feed read incomplete, processing collected candidates")
	}

	cands := make([]domain.Candidate, 0, len(polled.Candidates))
	for _, c := range polled.Candidates {
		if owner, ok := claims.Claim(c, job.Name); !ok {
			res.Skipped++
			log.Debug("candidate claimed by another job", "candidate", c.String(), "owner", owner)
			continue
		}
		cands = append(cands, c)
	}
	if opts.Limit > 0 && len(cands) > opts.Limit {
		log.Info("candidate limit reached", "limit", opts.Limit, "dropped", len(cands)-opts.Limit)
		cands = cands[:opts.Limit]
	}

	batchSize := job.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	proc := NewProcessor(freshDetails{up: up}, r.cfg.Normalizer, job.Policy, job.Concurrency, log.Logger)

	for n, batch := range util.Chunk(cands, batchSize) {
		if opts.MaxBatches > 0 && n >= opts.MaxBatches {
			log.Info("batch limit reached", "max_batches", opts.MaxBatches)
			break
		}
		if err := ctx.Err(); err != nil {
			res.Status = domain.JobFailed
			res.Error = err.Error()
			return res
		}

		outcomes := proc.Process(ctx, batch)
		Tally(&res, outcomes)
		docs := Documents(outcomes)
		if opts.DryRun || len(docs) == 0 {
			continue
		}

		written, err := r.cfg.Writer.UpsertBatch(ctx, docs, domain.OriginNightlyETL)
		res.DocumentsUpserted += written.Written
		if err != nil {
			res.Status = domain.JobFailed
			res.Error = err.Error()
			res.ErrorsCount += len(docs) - written.Written
			log.WithError(err).Error("batch write failed, aborting job")
			return res
		}
	}

	return res
}
