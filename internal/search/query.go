package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/reelfeed/reelfeed/internal/domain"
	"github.com/reelfeed/reelfeed/internal/normalize"
)

const (
	defaultLimit = 20
	maxLimit     = 200
)

// Query configures a search.
type Query struct {
	Text        string              // folded with the same rules as documents
	EntityTypes []domain.EntityType // empty = all
	GenreSlugs  []string            // OR across slugs
	MinYear     int
	MaxYear     int
	Limit       int
	Offset      int
	SortBy      string // "relevance" (default), "popularity", "rating", "year"
	Facets      bool
}

// Result is a page of hits.
type Result struct {
	Query  string       `json:"query"`
	Total  uint64       `json:"total"`
	TookMs int64        `json:"took_ms"`
	Hits   []Hit        `json:"hits"`
	Facets []FacetCount `json:"facets,omitempty"`
}

// Hit is one matching document.
type Hit struct {
	Key         string            `json:"key"`
	EntityType  domain.EntityType `json:"entity_type"`
	SourceID    string            `json:"source_id"`
	Title       string            `json:"title"`
	PosterPath  string            `json:"poster_path,omitempty"`
	ReleaseYear int               `json:"release_year,omitempty"`
	Popularity  float64           `json:"popularity"`
	Score       float64           `json:"score"`
}

// FacetCount is the number of hits per facet value.
type FacetCount struct {
	Field string `json:"field"`
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Search executes q.
func (s *Index) Search(ctx context.Context, q Query) (*Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := q.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	limit = min(limit, maxLimit)

	text := normalize.Fold(q.Text)
	req := bleve.NewSearchRequestOptions(buildQuery(text, q), limit, max(q.Offset, 0), false)
	addSorting(req, q.SortBy)
	if q.Facets {
		req.AddFacet(fieldEntityType, bleve.NewFacetRequest(fieldEntityType, 10))
		req.AddFacet(fieldGenreSlugs, bleve.NewFacetRequest(fieldGenreSlugs, 20))
	}
	req.Fields = []string{
		fieldEntityType, fieldSourceID, fieldDisplayTitle, fieldPosterPath,
		fieldReleaseYear, fieldPopularity,
	}

	res, err := s.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	out := &Result{
		Query:  text,
		Total:  res.Total,
		TookMs: res.Took.Milliseconds(),
		Hits:   make([]Hit, 0, len(res.Hits)),
	}
	for _, h := range res.Hits {
		hit := Hit{Key: h.ID, Score: h.Score}
		if v, ok := h.Fields[fieldEntityType].(string); ok {
			hit.EntityType = domain.EntityType(v)
		}
		if v, ok := h.Fields[fieldSourceID].(string); ok {
			hit.SourceID = v
		}
		if v, ok := h.Fields[fieldDisplayTitle].(string); ok {
			hit.Title = v
		}
		if v, ok := h.Fields[fieldPosterPath].(string); ok {
			hit.PosterPath = v
		}
		if v, ok := h.Fields[fieldReleaseYear].(float64); ok {
			hit.ReleaseYear = int(v)
		}
		if v, ok := h.Fields[fieldPopularity].(float64); ok {
			hit.Popularity = v
		}
		out.Hits = append(out.Hits, hit)
	}

	for _, field := range []string{fieldEntityType, fieldGenreSlugs} {
		f, ok := res.Facets[field]
		if !ok || f.Terms == nil {
			continue
		}
		for _, term := range f.Terms.Terms() {
			out.Facets = append(out.Facets, FacetCount{Field: field, Value: term.Term, Count: term.Count})
		}
	}

	return out, nil
}

// buildQuery constructs the Bleve query. text must already be folded.
func buildQuery(text string, q Query) query.Query {
	var queries []query.Query

	if text != "" {
		titleMatch := bleve.NewMatchQuery(text)
		titleMatch.SetField(fieldTitle)
		titleMatch.SetBoost(3.0)

		originalMatch := bleve.NewMatchQuery(text)
		originalMatch.SetField(fieldOriginalTitle)
		originalMatch.SetBoost(2.0)

		altMatch := bleve.NewMatchQuery(text)
		altMatch.SetField(fieldAltTitles)

		fuzzy := bleve.NewMatchQuery(text)
		fuzzy.SetField(fieldTitle)
		fuzzy.SetFuzziness(1)
		fuzzy.SetBoost(0.8)

		textQueries := []query.Query{titleMatch, originalMatch, altMatch, fuzzy}

		// Prefix on the last token supports type-ahead.
		tokens := strings.Fields(text)
		if last := tokens[len(tokens)-1]; len(last) >= 2 {
			prefix := bleve.NewPrefixQuery(last)
			prefix.SetField(fieldTitle)
			prefix.SetBoost(0.5)
			textQueries = append(textQueries, prefix)
		}

		queries = append(queries, bleve.NewDisjunctionQuery(textQueries...))
	}

	if len(q.EntityTypes) > 0 {
		typeQueries := make([]query.Query, len(q.EntityTypes))
		for i, et := range q.EntityTypes {
			tq := bleve.NewTermQuery(string(et))
			tq.SetField(fieldEntityType)
			typeQueries[i] = tq
		}
		queries = append(queries, bleve.NewDisjunctionQuery(typeQueries...))
	}

	if len(q.GenreSlugs) > 0 {
		genreQueries := make([]query.Query, len(q.GenreSlugs))
		for i, slug := range q.GenreSlugs {
			gq := bleve.NewTermQuery(slug)
			gq.SetField(fieldGenreSlugs)
			genreQueries[i] = gq
		}
		queries = append(queries, bleve.NewDisjunctionQuery(genreQueries...))
	}

	if q.MinYear > 0 || q.MaxYear > 0 {
		lo := float64(q.MinYear)
		hi := float64(q.MaxYear)
		if q.MaxYear == 0 {
			hi = 3000
		}
		inclusive := true
		rq := bleve.NewNumericRangeInclusiveQuery(&lo, &hi, &inclusive, &inclusive)
		rq.SetField(fieldReleaseYear)
		queries = append(queries, rq)
	}

	switch len(queries) {
	case 0:
		return bleve.NewMatchAllQuery()
	case 1:
		return queries[0]
	default:
		return bleve.NewConjunctionQuery(queries...)
	}
}

func addSorting(req *bleve.SearchRequest, sortBy string) {
	switch sortBy {
	case "popularity":
		req.SortBy([]string{"-" + fieldPopularity, "-_score"})
	case "rating":
		req.SortBy([]string{"-" + fieldRating, "-" + fieldVoteCount})
	case "year":
		req.SortBy([]string{"-" + fieldReleaseYear, "-" + fieldPopularity})
	default:
		req.SortBy([]string{"-_score", "-" + fieldPopularity})
	}
}
