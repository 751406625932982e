package search

import (
	bleve "github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/token/ngram"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/single"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/forumkit/searchd/internal/log"
)

// Analyzed sub-field names. The *_py fields hold pinyin transliterations
// materialized at write time; the *_zh fields re-index the raw source text
// through the 2-3 character n-gram analyzer for CJK substring recall.
const (
	fieldTitle       = "title"
	fieldTitlePY     = "title_py"
	fieldTitleZH     = "title_zh"
	fieldContent     = "content"
	fieldContentPY   = "content_py"
	fieldContentZH   = "content_zh"
	fieldAuthor      = "author"
	fieldCategory    = "category"
	fieldTags        = "tags"
	fieldPostID      = "postId"
	fieldCreatedAt   = "createdAt"
	fieldType        = "type"
	analyzerCJKNgram = "cjk_ngram"
	analyzerExact    = "keyword_lc"
	ngramFilterName  = "ngram_2_3"
)

// buildIndexMapping declares the shared mapping for every logical index:
// free-text fields in raw, phonetic and n-gram analyzed forms, exact-match
// keyword fields run through a lowercasing single-token analyzer.
func buildIndexMapping() (mapping.IndexMapping, error) {
	m := bleve.NewIndexMapping()

	err := m.AddCustomTokenFilter(ngramFilterName, map[string]interface{}{
		"type": ngram.Name,
		"min":  2.0,
		"max":  3.0,
	})
	if err != nil {
		return nil, err
	}

	err = m.AddCustomAnalyzer(analyzerCJKNgram, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     single.Name,
		"token_filters": []interface{}{lowercase.Name, ngramFilterName},
	})
	if err != nil {
		return nil, err
	}

	err = m.AddCustomAnalyzer(analyzerExact, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     single.Name,
		"token_filters": []interface{}{lowercase.Name},
	})
	if err != nil {
		return nil, err
	}

	doc := bleve.NewDocumentMapping()

	typeField := bleve.NewTextFieldMapping()
	typeField.Analyzer = analyzerExact
	typeField.Store = true
	doc.AddFieldMappingsAt(fieldType, typeField)

	titleField := bleve.NewTextFieldMapping()
	titleField.Analyzer = standard.Name
	titleField.Store = true
	titleField.IncludeTermVectors = true

	titleNgram := bleve.NewTextFieldMapping()
	titleNgram.Name = fieldTitleZH
	titleNgram.Analyzer = analyzerCJKNgram
	titleNgram.Store = true
	titleNgram.IncludeTermVectors = true
	doc.AddFieldMappingsAt(fieldTitle, titleField, titleNgram)

	contentField := bleve.NewTextFieldMapping()
	contentField.Analyzer = standard.Name
	contentField.Store = true
	contentField.IncludeTermVectors = true

	contentNgram := bleve.NewTextFieldMapping()
	contentNgram.Name = fieldContentZH
	contentNgram.Analyzer = analyzerCJKNgram
	contentNgram.Store = true
	contentNgram.IncludeTermVectors = true
	doc.AddFieldMappingsAt(fieldContent, contentField, contentNgram)

	for _, name := range []string{fieldTitlePY, fieldContentPY} {
		py := bleve.NewTextFieldMapping()
		py.Analyzer = standard.Name
		py.Store = true
		py.IncludeTermVectors = true
		doc.AddFieldMappingsAt(name, py)
	}

	for _, name := range []string{fieldAuthor, fieldCategory, fieldTags} {
		exact := bleve.NewTextFieldMapping()
		exact.Analyzer = analyzerExact
		exact.Store = true
		doc.AddFieldMappingsAt(name, exact)
	}

	postIDField := bleve.NewNumericFieldMapping()
	postIDField.Store = true
	doc.AddFieldMappingsAt(fieldPostID, postIDField)

	createdField := bleve.NewDateTimeFieldMapping()
	createdField.Store = true
	doc.AddFieldMappingsAt(fieldCreatedAt, createdField)

	m.DefaultMapping = doc
	return m, nil
}

// openOrCreateIndex ensures the index at path exists with the declared
// mapping. Existing indices keep the mapping they were created with.
func openOrCreateIndex(path string) (bleve.Index, error) {
	idx, err := bleve.Open(path)
	if err == bleve.ErrorIndexPathDoesNotExist {
		m, merr := buildIndexMapping()
		if merr != nil {
			return nil, merr
		}
		idx, err = bleve.NewUsing(path, m, "scorch", "scorch", nil)
		if err != nil {
			return nil, err
		}
		log.Infof("created search index at %s", path)
		return idx, nil
	}
	if err != nil {
		return nil, err
	}
	log.Debugf("opened existing search index at %s", path)
	return idx, nil
}
