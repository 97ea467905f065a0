// Package search maintains a Bleve full-text index over canonical documents.
//
// Only search fields are analysed. Display fields are stored for result
// rendering but never tokenized.
package search

import (
	"github.com/reelfeed/reelfeed/internal/domain"
)

// Field names used by the index mapping.
const (
	fieldKey           = "key"
	fieldEntityType    = "entity_type"
	fieldSourceID      = "source_id"
	fieldTitle         = "title"
	fieldOriginalTitle = "original_title"
	fieldAltTitles     = "alt_titles"
	fieldGenreSlugs    = "genre_slugs"
	fieldDisplayTitle  = "display_title"
	fieldPosterPath    = "poster_path"
	fieldPopularity    = "popularity"
	fieldRating        = "rating"
	fieldVoteCount     = "vote_count"
	fieldReleaseYear   = "release_year"
	fieldModifiedAt    = "modified_at"
)

// toMap converts a document to the field layout of the index mapping.
// Bleve would otherwise use Go struct field names.
func toMap(d *domain.Document) map[string]any {
	m := map[string]any{
		fieldKey:          d.Key,
		fieldEntityType:   string(d.EntityType),
		fieldSourceID:     d.SourceID,
		fieldTitle:        d.Search.Title,
		fieldDisplayTitle: d.Display.Title,
		fieldPopularity:   d.Popularity,
		fieldRating:       d.Rating,
		fieldVoteCount:    d.VoteCount,
		fieldModifiedAt:   d.ModifiedAt.UnixMilli(),
	}

	if d.Search.OriginalTitle != "" {
		m[fieldOriginalTitle] = d.Search.OriginalTitle
	}
	if len(d.Search.AltTitles) > 0 {
		m[fieldAltTitles] = d.Search.AltTitles
	}
	if len(d.Search.GenreSlugs) > 0 {
		m[fieldGenreSlugs] = d.Search.GenreSlugs
	}
	if d.ReleaseYear > 0 {
		m[fieldReleaseYear] = d.ReleaseYear
	}
	poster := d.Display.PosterPath
	if poster == "" {
		poster = d.Display.ProfilePath
	}
	if poster != "" {
		m[fieldPosterPath] = poster
	}

	return m
}
