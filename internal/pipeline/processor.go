package pipeline

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/reelfeed/reelfeed/internal/domain"
	domainerrors "github.com/reelfeed/reelfeed/internal/errors"
	"github.com/reelfeed/reelfeed/internal/filter"
	"github.com/reelfeed/reelfeed/internal/normalize"
)

// DefaultConcurrency is the number of in-flight detail fetches per batch.
const DefaultConcurrency = 20

// DetailFetcher returns raw detail payloads.
type DetailFetcher interface {
	Detail(ctx context.Context, et domain.EntityType, sourceID string) ([]byte, error)
}

// Normalizer maps raw payloads to documents.
type Normalizer interface {
	Normalize(ctx context.Context, raw []byte, et domain.EntityType) (*domain.Document, bool)
}

// Processor runs fetch, normalize and filter for a batch of candidates.
type Processor struct {
	fetcher     DetailFetcher
	normalizer  Normalizer
	policy      filter.Policy
	concurrency int
	logger      *slog.Logger
}

// NewProcessor creates a processor. concurrency <= 0 uses DefaultConcurrency.
func NewProcessor(f DetailFetcher, n Normalizer, policy filter.Policy, concurrency int, logger *slog.Logger) *Processor {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Processor{
		fetcher:     f,
		normalizer:  n,
		policy:      policy,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Process handles cands concurrently and returns one outcome per candidate,
// in input order. Each item's outcome is captured in its own slot; no item
// failure affects another.
func (p *Processor) Process(ctx context.Context, cands []domain.Candidate) []Outcome {
	outcomes := make([]Outcome, len(cands))

	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for i, c := range cands {
		g.Go(func() error {
			outcomes[i] = p.processOne(ctx, c)
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

func (p *Processor) processOne(ctx context.Context, c domain.Candidate) Outcome {
	out := Outcome{Candidate: c}

	raw, err := p.fetcher.Detail(ctx, c.EntityType, c.SourceID)
	if err != nil {
		if domainerrors.Is(err, domainerrors.ErrNotFound) {
			out.Kind = OutcomeNotFound
			p.logger.Debug("candidate not found", "candidate", c.String())
			return out
		}
		out.Kind = OutcomeFailed
		out.Err = err
		p.logger.Warn("detail fetch failed",
			"candidate", c.String(),
			"error_kind", domainerrors.KindOf(err),
			"error", err,
		)
		return out
	}

	doc, ok := p.normalizer.Normalize(ctx, raw, c.EntityType)
	if !ok {
		out.Kind = OutcomeFiltered
		out.Reason = normalize.ReasonUnusable
		return out
	}

	if pass, reason := filter.Passes(doc, p.policy); !pass {
		out.Kind = OutcomeFiltered
		out.Reason = reason
		return out
	}

	out.Kind = OutcomeOK
	out.Doc = doc
	return out
}
