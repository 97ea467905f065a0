package search

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/simple"
	"github.com/blevesearch/bleve/v2/mapping"
)

// buildIndexMapping creates the Bleve mapping for canonical documents.
//
// Search text is already folded by the normalizer, so the simple analyzer
// (lowercase, split on non-letters) is enough and no stemming is applied.
func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = simple.Name

	docMapping := bleve.NewDocumentMapping()

	// --- Search text ---

	titleFieldMapping := bleve.NewTextFieldMapping()
	titleFieldMapping.Analyzer = simple.Name
	titleFieldMapping.Store = true
	titleFieldMapping.IncludeTermVectors = true
	docMapping.AddFieldMappingsAt(fieldTitle, titleFieldMapping)

	originalFieldMapping := bleve.NewTextFieldMapping()
	originalFieldMapping.Analyzer = simple.Name
	docMapping.AddFieldMappingsAt(fieldOriginalTitle, originalFieldMapping)

	altFieldMapping := bleve.NewTextFieldMapping()
	altFieldMapping.Analyzer = simple.Name
	docMapping.AddFieldMappingsAt(fieldAltTitles, altFieldMapping)

	// --- Keywords (exact match, facetable) ---

	for _, name := range []string{fieldKey, fieldEntityType, fieldSourceID, fieldGenreSlugs} {
		fm := bleve.NewKeywordFieldMapping()
		fm.Analyzer = keyword.Name
		fm.Store = true
		docMapping.AddFieldMappingsAt(name, fm)
	}

	// --- Display (stored, never indexed) ---

	for _, name := range []string{fieldDisplayTitle, fieldPosterPath} {
		fm := bleve.NewTextFieldMapping()
		fm.Index = false
		fm.Store = true
		fm.IncludeInAll = false
		docMapping.AddFieldMappingsAt(name, fm)
	}

	// --- Numeric (range queries, sorting) ---

	for _, name := range []string{fieldPopularity, fieldRating, fieldVoteCount, fieldReleaseYear, fieldModifiedAt} {
		fm := bleve.NewNumericFieldMapping()
		fm.Store = true
		docMapping.AddFieldMappingsAt(name, fm)
	}

	indexMapping.AddDocumentMapping("_default", docMapping)

	return indexMapping
}
