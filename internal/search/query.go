package search

import (
	"strings"

	bleve "github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

// clause kinds. A phrase clause analyzes the text against the field's
// analyzer; a term clause matches the lowercased keyword exactly; a grams
// clause is a disjunction over the keyword's n-grams with a minimum match
// count.
const (
	clausePhrase = "phrase"
	clauseTerm   = "term"
	clauseGrams  = "grams"
)

// clause is one scored layer of the relevance query, described as data so the
// shape of the whole query can be inspected and tested without an index.
type clause struct {
	kind      string
	field     string
	text      string
	boost     float64
	grams     []string
	minShould int
}

// Field weights. Title matches outrank author matches, which outrank the
// keyword fields, the phonetic forms, and finally the body; the n-gram
// layers score lowest so an exact hit always sorts above a substring hit.
const (
	boostTitle     = 3.0
	boostAuthor    = 2.6
	boostCategory  = 2.2
	boostTags      = 2.2
	boostTitlePY   = 1.6
	boostContentPY = 1.3
	boostContent   = 1.0
	boostTitleZH   = 0.6
	boostContentZH = 0.5
)

// titleClauses is the title slice of the layered query: strict phrase over
// the raw and phonetic forms, relaxed n-grams when the keyword contains CJK
// text.
func titleClauses(keyword string) []clause {
	clauses := []clause{
		{kind: clausePhrase, field: fieldTitle, text: keyword, boost: boostTitle},
	}
	if py := Transliterate(keyword); py != "" {
		clauses = append(clauses, clause{kind: clausePhrase, field: fieldTitlePY, text: py, boost: boostTitlePY})
	}
	if ContainsCJK(keyword) {
		if grams := cjkGrams(keyword); len(grams) > 0 {
			clauses = append(clauses, clause{
				kind: clauseGrams, field: fieldTitleZH, grams: grams,
				boost: boostTitleZH, minShould: gramMinShould(len(grams)),
			})
		}
	}
	return clauses
}

// contentClauses mirrors titleClauses for the body fields.
func contentClauses(keyword string) []clause {
	clauses := []clause{
		{kind: clausePhrase, field: fieldContent, text: keyword, boost: boostContent},
	}
	if py := Transliterate(keyword); py != "" {
		clauses = append(clauses, clause{kind: clausePhrase, field: fieldContentPY, text: py, boost: boostContentPY})
	}
	if ContainsCJK(keyword) {
		if grams := cjkGrams(keyword); len(grams) > 0 {
			clauses = append(clauses, clause{
				kind: clauseGrams, field: fieldContentZH, grams: grams,
				boost: boostContentZH, minShould: gramMinShould(len(grams)),
			})
		}
	}
	return clauses
}

// buildClauses assembles the full layered relevance query for a keyword:
// title and body layers plus exact-term matches on the keyword fields.
func buildClauses(keyword string) []clause {
	clauses := titleClauses(keyword)
	clauses = append(clauses, contentClauses(keyword)...)
	clauses = append(clauses,
		clause{kind: clauseTerm, field: fieldAuthor, text: strings.ToLower(keyword), boost: boostAuthor},
		clause{kind: clauseTerm, field: fieldCategory, text: strings.ToLower(keyword), boost: boostCategory},
		clause{kind: clauseTerm, field: fieldTags, text: strings.ToLower(keyword), boost: boostTags},
	)
	return clauses
}

// toBleveQuery translates the clause list into a single should-match-one
// disjunction.
func toBleveQuery(clauses []clause) query.Query {
	parts := make([]query.Query, 0, len(clauses))
	for _, c := range clauses {
		switch c.kind {
		case clausePhrase:
			q := bleve.NewMatchPhraseQuery(c.text)
			q.SetField(c.field)
			q.SetBoost(c.boost)
			parts = append(parts, q)
		case clauseTerm:
			q := bleve.NewTermQuery(c.text)
			q.SetField(c.field)
			q.SetBoost(c.boost)
			parts = append(parts, q)
		case clauseGrams:
			gramQueries := make([]query.Query, 0, len(c.grams))
			for _, g := range c.grams {
				tq := bleve.NewTermQuery(g)
				tq.SetField(c.field)
				gramQueries = append(gramQueries, tq)
			}
			q := bleve.NewDisjunctionQuery(gramQueries...)
			q.SetMin(float64(c.minShould))
			q.SetBoost(c.boost)
			parts = append(parts, q)
		}
	}

	root := bleve.NewDisjunctionQuery(parts...)
	root.SetMin(1)
	return root
}

// buildClauseRequest is the per-index request for a clause set: stored fields
// for result shaping, highlights on every analyzed form.
func buildClauseRequest(clauses []clause, size int) *bleve.SearchRequest {
	req := bleve.NewSearchRequestOptions(toBleveQuery(clauses), size, 0, false)
	req.Fields = []string{
		fieldType, fieldTitle, fieldTitlePY, fieldContent, fieldContentPY,
		fieldAuthor, fieldCategory, fieldTags, fieldPostID, fieldCreatedAt,
	}
	req.Highlight = bleve.NewHighlight()
	req.Highlight.Fields = []string{
		fieldTitle, fieldTitlePY, fieldTitleZH,
		fieldContent, fieldContentPY, fieldContentZH,
	}
	return req
}

func buildSearchRequest(keyword string, size int) *bleve.SearchRequest {
	return buildClauseRequest(buildClauses(keyword), size)
}
