// Package feed walks the provider change feed and produces deduplicated candidates.
package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/reelfeed/reelfeed/internal/domain"
	domainerrors "github.com/reelfeed/reelfeed/internal/errors"
)

// DateLayout is the change-feed date format.
const DateLayout = "2006-01-02"

const changesPath = "changes"

// Fetcher performs one upstream read.
type Fetcher interface {
	Fetch(ctx context.Context, path string, params url.Values) ([]byte, error)
}

// Window is an inclusive date range.
type Window struct {
	Start time.Time
	End   time.Time
}

// Validate reports whether the window is usable.
func (w Window) Validate() error {
	if w.Start.IsZero() || w.End.IsZero() {
		return domainerrors.ValidationWithDetails("change window requires start and end dates", nil)
	}
	if w.Start.After(w.End) {
		return domainerrors.ValidationWithDetails(
			fmt.Sprintf("start date %s is after end date %s", w.Start.Format(DateLayout), w.End.Format(DateLayout)),
			nil,
		)
	}
	return nil
}

func (w Window) String() string {
	return w.Start.Format(DateLayout) + ".." + w.End.Format(DateLayout)
}

// Result is what one poll produced.
type Result struct {
	Candidates []domain.Candidate
	Pages      int // pages fetched successfully
	TotalPages int // as last reported by the feed
	Duplicates int // ids skipped because they were already seen
}

// Poller pages through the change feed for one entity type at a time.
type Poller struct {
	fetcher Fetcher
	logger  *slog.Logger
}

// NewPoller creates a poller reading through f.
func NewPoller(f Fetcher, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Poller{fetcher: f, logger: logger}
}

type rawPage struct {
	Page       int         `json:"page"`
	TotalPages int         `json:"total_pages"`
	Results    []rawChange `json:"results"`
}

type rawChange struct {
	ID sourceID `json:"id"`
}

// sourceID accepts ids encoded as JSON numbers or strings.
type sourceID string

func (s *sourceID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = sourceID(strings.TrimSpace(str))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	if _, err := strconv.ParseInt(n.String(), 10, 64); err != nil {
		return fmt.Errorf("non-integer id %s", n)
	}
	*s = sourceID(n.String())
	return nil
}

// Poll collects candidates changed within w. Ids repeated across pages are
// kept at their first occurrence. Paging stops when the feed reports no more
// pages or maxPages is reached; maxPages <= 0 means unlimited.
//
// When a page fails after some pages succeeded, Poll returns the candidates
// gathered so far together with the error.
func (p *Poller) Poll(ctx context.Context, et domain.EntityType, w Window, maxPages int) (Result, error) {
	var res Result
	if err := w.Validate(); err != nil {
		return res, err
	}

	seen := make(map[string]struct{})
	for page := 1; maxPages <= 0 || page <= maxPages; page++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		params := url.Values{}
		params.Set("type", string(et))
		params.Set("start_date", w.Start.Format(DateLayout))
		params.Set("end_date", w.End.Format(DateLayout))
		params.Set("page", strconv.Itoa(page))

		body, err := p.fetcher.Fetch(ctx, changesPath, params)
		if err != nil {
			return res, fmt.Errorf("change feed %s page %d: %w", et, page, err)
		}

		var raw rawPage
		if err := json.Unmarshal(body, &raw); err != nil {
			return res, domainerrors.Wrapf(err, domainerrors.CodeMalformed, "change feed %s page %d", et, page)
		}
		res.Pages++
		res.TotalPages = raw.TotalPages

		for _, c := range raw.Results {
			id := string(c.ID)
			if id == "" {
				continue
			}
			if _, dup := seen[id]; dup {
				res.Duplicates++
				continue
			}
			seen[id] = struct{}{}
			res.Candidates = append(res.Candidates, domain.Candidate{SourceID: id, EntityType: et})
		}

		p.logger.Debug("change feed page",
			"entity_type", et,
			"page", page,
			"total_pages", raw.TotalPages,
			"results", len(raw.Results),
		)

		if raw.TotalPages <= page {
			break
		}
	}

	p.logger.Info("change feed polled",
		"entity_type", et,
		"window", w.String(),
		"pages", res.Pages,
		"candidates", len(res.Candidates),
		"duplicates", res.Duplicates,
	)
	return res, nil
}
