package domain

import "time"

// Origin tags record which process last wrote a document.
const (
	OriginNightlyETL        = "nightly-etl"
	OriginCollisionRecovery = "collision-recovery"
)

// Document is the canonical unit stored and searched.
//
// Search holds folded text used only for matching; Display holds the
// upstream text untouched and is what callers get back.
type Document struct {
	Key        string     `json:"key"`
	EntityType EntityType `json:"entity_type"`
	SourceID   string     `json:"source_id"`
	Source     string     `json:"source"`

	Search  SearchFields  `json:"search"`
	Display DisplayFields `json:"display"`

	Popularity  float64 `json:"popularity"`
	Rating      float64 `json:"rating"`
	VoteCount   int     `json:"vote_count"`
	ReleaseYear int     `json:"release_year,omitempty"`
	Status      string  `json:"status,omitempty"`
	Language    string  `json:"language,omitempty"`
	Adult       bool    `json:"adult"`

	CreatedAt  time.Time `json:"created_at"`
	ModifiedAt time.Time `json:"modified_at"`
	Origin     string    `json:"origin"`
}

// SearchFields is tokenization-safe text derived from the display fields.
type SearchFields struct {
	Title         string   `json:"title"`
	OriginalTitle string   `json:"original_title,omitempty"`
	AltTitles     []string `json:"alt_titles,omitempty"`
	GenreSlugs    []string `json:"genre_slugs,omitempty"`
}

// DisplayFields is upstream text returned to callers as-is.
type DisplayFields struct {
	Title         string       `json:"title"`
	OriginalTitle string       `json:"original_title,omitempty"`
	Overview      string       `json:"overview,omitempty"`
	PosterPath    string       `json:"poster_path,omitempty"`
	BackdropPath  string       `json:"backdrop_path,omitempty"`
	ProfilePath   string       `json:"profile_path,omitempty"`
	ReleaseDate   string       `json:"release_date,omitempty"`
	Genres        []string     `json:"genres,omitempty"`
	Cast          []CastMember `json:"cast,omitempty"`
	KnownFor      string       `json:"known_for,omitempty"`
}

// CastMember is a top-billed credit shown alongside a title.
type CastMember struct {
	SourceID  string `json:"source_id"`
	Name      string `json:"name"`
	Character string `json:"character,omitempty"`
	Order     int    `json:"order"`
}

// Candidate returns the (source id, entity type) pair this document answers.
func (d *Document) Candidate() Candidate {
	return Candidate{SourceID: d.SourceID, EntityType: d.EntityType}
}

// Touch stamps modification time, keeping an existing creation time.
func (d *Document) Touch(now time.Time, existingCreatedAt time.Time) {
	if existingCreatedAt.IsZero() {
		d.CreatedAt = now
	} else {
		d.CreatedAt = existingCreatedAt
	}
	d.ModifiedAt = now
}
