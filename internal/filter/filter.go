// Package filter decides whether a normalized document is kept.
package filter

import (
	"fmt"
	"slices"
	"strings"

	"github.com/reelfeed/reelfeed/internal/domain"
)

// Policy is the keep/drop configuration for one job.
type Policy struct {
	MinPopularity      float64  `toml:"min_popularity" validate:"gte=0"`
	MinVoteCount       int      `toml:"min_vote_count" validate:"gte=0"`
	DisallowedStatuses []string `toml:"disallowed_statuses"`
	ExcludedLanguages  []string `toml:"excluded_languages"`
	AllowAdult         bool     `toml:"allow_adult"`
}

// Reasons recorded when a document is dropped.
const (
	ReasonAdult          = "adult content"
	ReasonPopularity     = "below minimum popularity"
	ReasonVoteCount      = "below minimum vote count"
	ReasonStatusPrefix   = "disallowed status"
	ReasonLanguagePrefix = "excluded language"
)

// Passes evaluates doc against p. It is pure: the verdict depends only on
// its inputs. Checks run in a fixed order and the first failing check
// supplies the reason.
func Passes(doc *domain.Document, p Policy) (bool, string) {
	if doc == nil {
		return false, "no document"
	}
	if doc.Adult && !p.AllowAdult {
		return false, ReasonAdult
	}
	if doc.Popularity < p.MinPopularity {
		return false, ReasonPopularity
	}
	// Vote counts are meaningless for people.
	if doc.EntityType != domain.EntityPerson && doc.VoteCount < p.MinVoteCount {
		return false, ReasonVoteCount
	}
	if doc.Status != "" && containsFold(p.DisallowedStatuses, doc.Status) {
		return false, fmt.Sprintf("%s: %s", ReasonStatusPrefix, strings.ToLower(doc.Status))
	}
	if doc.Language != "" && containsFold(p.ExcludedLanguages, doc.Language) {
		return false, fmt.Sprintf("%s: %s", ReasonLanguagePrefix, strings.ToLower(doc.Language))
	}
	return true, ""
}

// Merge returns base with every non-zero field of override applied.
// AllowAdult is only ever widened by an override.
func Merge(base Policy, override *Policy) Policy {
	if override == nil {
		return base
	}
	out := base
	if override.MinPopularity != 0 {
		out.MinPopularity = override.MinPopularity
	}
	if override.MinVoteCount != 0 {
		out.MinVoteCount = override.MinVoteCount
	}
	if override.DisallowedStatuses != nil {
		out.DisallowedStatuses = slices.Clone(override.DisallowedStatuses)
	}
	if override.ExcludedLanguages != nil {
		out.ExcludedLanguages = slices.Clone(override.ExcludedLanguages)
	}
	if override.AllowAdult {
		out.AllowAdult = true
	}
	return out
}

func containsFold(list []string, v string) bool {
	v = strings.TrimSpace(v)
	return slices.ContainsFunc(list, func(s string) bool {
		return strings.EqualFold(strings.TrimSpace(s), v)
	})
}
