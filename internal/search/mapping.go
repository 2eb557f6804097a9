package search

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/simple"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"
)

// buildIndexMapping creates the Bleve mapping for work documents.
//
// Titles use English stemming and keep term vectors for highlighting.
// Contributor names use the simple analyzer so "Tolkien" never stems.
// Tag slugs and external keys are keywords.
func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = en.AnalyzerName

	docMapping := bleve.NewDocumentMapping()

	titleField := bleve.NewTextFieldMapping()
	titleField.Analyzer = en.AnalyzerName
	titleField.Store = true
	titleField.IncludeTermVectors = true
	docMapping.AddFieldMappingsAt("title", titleField)

	subtitleField := bleve.NewTextFieldMapping()
	subtitleField.Analyzer = en.AnalyzerName
	subtitleField.Store = true
	docMapping.AddFieldMappingsAt("subtitle", subtitleField)

	// Searchable but not stored (too large).
	descField := bleve.NewTextFieldMapping()
	descField.Analyzer = en.AnalyzerName
	descField.Store = false
	docMapping.AddFieldMappingsAt("description", descField)

	contributorField := bleve.NewTextFieldMapping()
	contributorField.Analyzer = simple.Name
	contributorField.Store = true
	contributorField.IncludeTermVectors = true
	docMapping.AddFieldMappingsAt("contributors", contributorField)

	tagsField := bleve.NewTextFieldMapping()
	tagsField.Analyzer = keyword.Name
	tagsField.Store = true
	docMapping.AddFieldMappingsAt("tags", tagsField)

	idField := bleve.NewTextFieldMapping()
	idField.Analyzer = keyword.Name
	docMapping.AddFieldMappingsAt("id", idField)

	keyField := bleve.NewTextFieldMapping()
	keyField.Analyzer = keyword.Name
	keyField.Store = true
	docMapping.AddFieldMappingsAt("external_key", keyField)

	yearField := bleve.NewNumericFieldMapping()
	yearField.Store = true
	docMapping.AddFieldMappingsAt("publish_year", yearField)

	createdField := bleve.NewNumericFieldMapping()
	createdField.Store = true
	docMapping.AddFieldMappingsAt("created_at", createdField)

	indexMapping.AddDocumentMapping("_default", docMapping)
	return indexMapping
}
