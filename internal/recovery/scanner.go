// Package recovery finds and repairs documents lost to key collisions under
// the legacy untyped identity scheme.
package recovery

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/reelfeed/reelfeed/internal/domain"
	domainerrors "github.com/reelfeed/reelfeed/internal/errors"
	"github.com/reelfeed/reelfeed/internal/filter"
	"github.com/reelfeed/reelfeed/internal/identity"
	"github.com/reelfeed/reelfeed/internal/pipeline"
	"github.com/reelfeed/reelfeed/internal/util"
)

// JobName labels the single job result a recovery run records.
const JobName = "collision-recovery"

// DocumentSource is the read side of the document store.
type DocumentSource interface {
	ScanDocuments(ctx context.Context) iter.Seq2[*domain.Document, error]
	DocumentExists(ctx context.Context, canonicalKey string) (bool, error)
}

// Config wires a Scanner.
type Config struct {
	Store       DocumentSource
	Scheme      identity.Scheme
	Policy      SiblingPolicy // nil uses DefaultPolicy
	Fetcher     pipeline.DetailFetcher
	Normalizer  pipeline.Normalizer
	Filter      filter.Policy
	Writer      pipeline.Writer
	Runs        pipeline.RunStore // optional
	Notifier    pipeline.Notifier // optional
	BatchSize   int
	Concurrency int
	Logger      *slog.Logger
	NewID       func() string
	Now         func() time.Time
}

// Options controls one recovery pass.
type Options struct {
	Limit  int  // candidates to repair; 0 = all
	DryRun bool // discover only, no fetch and no write
}

// Report summarizes a recovery pass.
type Report struct {
	Found  int              // candidates discovered
	DryRun bool             // nothing was fetched or written
	Job    domain.JobResult // counts for the candidates attempted
	Run    *domain.RunMetadata
}

// Scanner audits the store for missing siblings.
type Scanner struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a scanner.
func New(cfg Config) *Scanner {
	if cfg.Policy == nil {
		cfg.Policy = DefaultPolicy()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = pipeline.DefaultBatchSize
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = func() string { return fmt.Sprintf("recovery-%d", cfg.Now().UnixNano()) }
	}
	return &Scanner{cfg: cfg, logger: cfg.Logger.With("component", "recovery")}
}

// FindCandidates scans every stored document and returns, in scan order, one
// candidate per (source id, sibling type) whose document is absent.
// Each source id is examined once, on its first sighting under a type that
// has siblings. A document still stored under an untyped legacy key is also a
// candidate for its own type. Documents keyed from alternative ids carry no
// source id and are ignored.
func (s *Scanner) FindCandidates(ctx context.Context) ([]domain.Candidate, error) {
	var (
		seen    = make(map[string]struct{})
		queued  = make(map[domain.Candidate]struct{})
		pending []domain.Candidate
		scanned int
		legacy  int
	)
	queue := func(c domain.Candidate) {
		if _, ok := queued[c]; ok {
			return
		}
		queued[c] = struct{}{}
		pending = append(pending, c)
	}

	for doc, err := range s.cfg.Store.ScanDocuments(ctx) {
		if err != nil {
			return nil, fmt.Errorf("scan documents: %w", err)
		}
		scanned++
		c, ok := s.identify(doc)
		if !ok {
			continue
		}
		if s.cfg.Scheme.IsLegacyKey(doc.Key) {
			legacy++
			queue(c)
		}
		siblings := s.cfg.Policy.Siblings(c.EntityType)
		if len(siblings) == 0 {
			continue
		}
		if _, ok := seen[c.SourceID]; ok {
			continue
		}
		seen[c.SourceID] = struct{}{}
		for _, sib := range siblings {
			queue(domain.Candidate{SourceID: c.SourceID, EntityType: sib})
		}
	}

	var missing []domain.Candidate
	for _, c := range pending {
		key, err := s.cfg.Scheme.MakeKey(c.EntityType, c.SourceID)
		if err != nil {
			s.logger.Warn("cannot derive sibling key", "candidate", c.String(), "error", err)
			continue
		}
		exists, err := s.cfg.Store.DocumentExists(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("check %s: %w", key, err)
		}
		if !exists {
			missing = append(missing, c)
		}
	}

	s.logger.Info("recovery scan complete",
		"documents", scanned,
		"source_ids", len(seen),
		"legacy_keys", legacy,
		"candidates", len(missing),
	)
	return missing, nil
}

// identify returns the (source id, type) pair a document stands for, falling
// back to its key when the fields are empty.
func (s *Scanner) identify(doc *domain.Document) (domain.Candidate, bool) {
	if doc.SourceID != "" && doc.EntityType.Valid() {
		return domain.Candidate{SourceID: doc.SourceID, EntityType: doc.EntityType}, true
	}
	return s.cfg.Scheme.ParseKey(doc.Key)
}

// Recover re-drives fetch, normalize, filter and upsert for cands, up to
// opts.Limit of them. A dry run returns the counts without any I/O.
func (s *Scanner) Recover(ctx context.Context, cands []domain.Candidate, opts Options) *Report {
	rep := &Report{Found: len(cands), DryRun: opts.DryRun}
	if opts.Limit > 0 && len(cands) > opts.Limit {
		cands = cands[:opts.Limit]
	}

	started := s.cfg.Now()
	res := domain.JobResult{JobName: JobName, Status: domain.JobSuccess, ChangesFound: len(cands)}
	if opts.DryRun {
		for _, c := range cands {
			s.logger.Info("would recover", "candidate", c.String())
		}
		rep.Job = res
		return rep
	}

	proc := pipeline.NewProcessor(s.cfg.Fetcher, s.cfg.Normalizer, s.cfg.Filter, s.cfg.Concurrency, s.logger)
	for _, batch := range util.Chunk(cands, s.cfg.BatchSize) {
		if err := ctx.Err(); err != nil {
			res.Status = domain.JobFailed
			res.Error = err.Error()
			break
		}
		outcomes := proc.Process(ctx, batch)
		pipeline.Tally(&res, outcomes)
		docs := pipeline.Documents(outcomes)
		if len(docs) == 0 {
			continue
		}
		written, err := s.cfg.Writer.UpsertBatch(ctx, docs, domain.OriginCollisionRecovery)
		res.DocumentsUpserted += written.Written
		if err != nil {
			res.Status = domain.JobFailed
			res.Error = err.Error()
			res.ErrorsCount += len(docs) - written.Written
			s.logger.Error("recovery write failed, stopping", "error", err)
			break
		}
	}
	res.Duration = s.cfg.Now().Sub(started)

	s.logger.Info("recovery finished",
		"status", res.Status,
		"attempted", len(cands),
		"recovered", res.DocumentsUpserted,
		"not_found", res.NotFound,
		"filtered", res.Filtered,
		"errors", res.ErrorsCount,
	)
	rep.Job = res
	return rep
}

// Run performs a full pass, scan then repair, and records it as run metadata
// of kind recovery.
func (s *Scanner) Run(ctx context.Context, opts Options) (*Report, error) {
	if !opts.DryRun && s.cfg.Fetcher == nil {
		return nil, domainerrors.Config("recovery needs an upstream client; set provider.api_key or use a dry run")
	}
	now := s.cfg.Now().UTC()
	run := &domain.RunMetadata{
		RunID:     s.cfg.NewID(),
		RunDate:   now.Format(time.DateOnly),
		Kind:      pipeline.KindRecovery,
		DryRun:    opts.DryRun,
		Status:    domain.RunRunning,
		StartedAt: now,
	}

	cands, err := s.FindCandidates(ctx)
	if err != nil {
		return nil, err
	}
	rep := s.Recover(ctx, cands, opts)

	run.Append(rep.Job)
	run.Finalize(s.cfg.Now().UTC())
	rep.Run = run
	if s.cfg.Runs != nil {
		if err := s.cfg.Runs.SaveRun(ctx, run); err != nil {
			s.logger.Warn("failed to persist recovery run", "error", err)
		}
	}
	if s.cfg.Notifier != nil {
		if err := s.cfg.Notifier.Notify(ctx, run); err != nil {
			s.logger.Warn("recovery notification failed", "error", err)
		}
	}
	return rep, nil
}
