// Package normalize maps raw provider payloads onto the canonical document shape.
//
// Each (provider, entity type) pair has one mapping function. Mapping never
// fails with an error: a payload that cannot yield a usable document is
// reported as unusable and counted as filtered by the caller.
package normalize

import (
	"log/slog"

	"github.com/reelfeed/reelfeed/internal/domain"
	"github.com/reelfeed/reelfeed/internal/identity"
	"github.com/reelfeed/reelfeed/internal/util"
)

// ReasonUnusable is the filter reason recorded for payloads that cannot be mapped.
const ReasonUnusable = "unusable payload"

// Variant names one provider mapping.
type Variant struct {
	Provider   string
	EntityType domain.EntityType
}

func (v Variant) String() string {
	return v.Provider + "/" + string(v.EntityType)
}

// mapped is what a variant extracts before keys and search fields are derived.
type mapped struct {
	doc      domain.Document
	sourceID string
	altIDs   map[string]string
	alts     []string
}

// mapFunc maps one raw payload. The bool is false when the payload does not parse.
type mapFunc func(raw []byte) (mapped, bool)

var builtin = map[Variant]mapFunc{
	{Provider: "tmdb", EntityType: domain.EntityMovie}:  mapTMDBMovie,
	{Provider: "tmdb", EntityType: domain.EntityTV}:     mapTMDBTV,
	{Provider: "tmdb", EntityType: domain.EntityPerson}: mapTMDBPerson,
}

// Normalizer turns raw payloads for one provider into canonical documents.
type Normalizer struct {
	provider string
	scheme   identity.Scheme
	variants map[Variant]mapFunc
	logger   *slog.Logger
}

// New creates a normalizer for provider using scheme for keys.
func New(provider string, scheme identity.Scheme, logger *slog.Logger) *Normalizer {
	if provider == "" {
		provider = "tmdb"
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Normalizer{
		provider: provider,
		scheme:   scheme,
		variants: builtin,
		logger:   logger,
	}
}

// Provider returns the source tag stamped on documents.
func (n *Normalizer) Provider() string {
	return n.provider
}

// Supports reports whether a mapping exists for et.
func (n *Normalizer) Supports(et domain.EntityType) bool {
	_, ok := n.variants[Variant{Provider: n.provider, EntityType: et}]
	return ok
}

// Normalize maps raw into a document. It returns false when the payload is
// unusable: unknown variant, unparseable JSON, no display title, or no
// identity from which a canonical key can be derived.
// Timestamps and origin are left for the writer to stamp.
func (n *Normalizer) Normalize(raw []byte, et domain.EntityType) (*domain.Document, bool) {
	fn, ok := n.variants[Variant{Provider: n.provider, EntityType: et}]
	if !ok {
		n.logger.Debug("no mapping for variant", "provider", n.provider, "entity_type", et)
		return nil, false
	}
	m, ok := fn(raw)
	if !ok || m.doc.Display.Title == "" {
		return nil, false
	}

	var (
		key string
		err error
	)
	if m.sourceID != "" {
		key, err = n.scheme.MakeKey(et, m.sourceID)
	} else {
		key, err = n.scheme.MakeKeyFromAltIDs(et, m.altIDs)
	}
	if err != nil {
		return nil, false
	}

	doc := m.doc
	doc.Key = key
	doc.EntityType = et
	doc.SourceID = m.sourceID
	doc.Source = n.provider
	doc.Search = searchFields(&doc.Display, m.alts)
	return &doc, true
}

func searchFields(d *domain.DisplayFields, alts []string) domain.SearchFields {
	title := Fold(d.Title)
	original := Fold(d.OriginalTitle)
	if original == title {
		original = ""
	}

	var slugs []string
	seen := map[string]struct{}{}
	for _, g := range d.Genres {
		slug := util.Slug(Fold(g))
		if slug == "" {
			continue
		}
		if _, ok := seen[slug]; ok {
			continue
		}
		seen[slug] = struct{}{}
		slugs = append(slugs, slug)
	}

	return domain.SearchFields{
		Title:         title,
		OriginalTitle: original,
		AltTitles:     FoldAll(alts, title, original),
		GenreSlugs:    slugs,
	}
}
