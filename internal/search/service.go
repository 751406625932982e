package search

import (
	"strings"

	blevesearch "github.com/blevesearch/bleve/v2/search"
	"github.com/forumkit/searchd/internal/domain"
	"github.com/forumkit/searchd/internal/log"
	"github.com/forumkit/searchd/internal/metrics"
)

// Primary is the slice of the primary store the query engine needs: substring
// queries for the fallback path and id lookups for the typed searches.
type Primary interface {
	SearchUsersByName(keyword string) ([]domain.User, error)
	SearchPostsByTitle(keyword string) ([]domain.Post, error)
	SearchPostsByContent(keyword string) ([]domain.Post, error)
	SearchCommentsByContent(keyword string) ([]domain.Comment, error)
	SearchCategoriesByName(keyword string) ([]domain.Category, error)
	SearchTagsByName(keyword string) ([]domain.Tag, error)
	UsersByIDs(ids []int64) ([]domain.User, error)
	PostsByIDs(ids []int64) ([]domain.Post, error)
	CommentsByIDs(ids []int64) ([]domain.Comment, error)
	CategoriesByIDs(ids []int64) ([]domain.Category, error)
	TagsByIDs(ids []int64) ([]domain.Tag, error)
}

// Mode records which path served a query. It is decided per call; a failed
// backend query falls back for that call only.
type Mode struct {
	Fallback bool   `json:"fallback"`
	Reason   string `json:"reason,omitempty"`
}

func activeMode() Mode { return Mode{} }

func fallbackMode(reason string) Mode { return Mode{Fallback: true, Reason: reason} }

// Result is the unified read model returned to callers, identical in shape
// for both query paths. Highlighted variants carry HTML-escaped text with
// matches wrapped in <mark> markers.
type Result struct {
	Type               string `json:"type"`
	ID                 int64  `json:"id"`
	Text               string `json:"text"`
	SubText            string `json:"subText,omitempty"`
	Extra              string `json:"extra,omitempty"`
	PostID             int64  `json:"postId,omitempty"`
	TextHighlighted    string `json:"textHighlighted,omitempty"`
	SubTextHighlighted string `json:"subTextHighlighted,omitempty"`
	ExtraHighlighted   string `json:"extraHighlighted,omitempty"`
}

// Service is the query engine.
type Service struct {
	backend  *Backend
	settings *Settings
	primary  Primary
}

func NewService(backend *Backend, settings *Settings, primary Primary) *Service {
	return &Service{backend: backend, settings: settings, primary: primary}
}

// GlobalSearch runs the keyword across all logical indices and returns a
// relevance-ordered, deduplicated result list. A blank keyword returns an
// empty list without touching either path.
func (s *Service) GlobalSearch(keyword string) ([]Result, Mode) {
	results, mode := s.globalSearch(keyword)
	metrics.RecordQuery(mode.Fallback)
	return results, mode
}

func (s *Service) globalSearch(keyword string) ([]Result, Mode) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, activeMode()
	}

	if !s.settings.Enabled() {
		return s.fallbackSearch(keyword), fallbackMode("backend disabled")
	}

	results, err := s.backendSearch(keyword)
	if err != nil {
		log.Warnf("backend search failed, falling back: %v", err)
		return s.fallbackSearch(keyword), fallbackMode("backend error")
	}
	if len(results) == 0 {
		return s.fallbackSearch(keyword), fallbackMode("no backend hits")
	}
	return results, activeMode()
}

func (s *Service) backendSearch(keyword string) ([]Result, error) {
	size := s.settings.MaxResults()
	var results []Result
	for _, logical := range logicalIndices {
		res, err := s.backend.search(logical, buildSearchRequest(keyword, size))
		if err != nil {
			return nil, err
		}
		for _, hit := range res.Hits {
			results = append(results, s.shapeHit(logical, keyword, hit))
		}
	}
	return capResults(results, size), nil
}

// shapeHit turns one backend hit into a Result. Snippets and highlight
// markup are synthesized from the stored fields so escaping is uniform
// across both paths; the backend's own fragments only decide whether the
// title matched.
func (s *Service) shapeHit(logical, keyword string, hit *blevesearch.DocumentMatch) Result {
	window := s.settings.HighlightWindow()
	limit := s.settings.SnippetLength()

	title := hitString(hit, fieldTitle)
	content := hitString(hit, fieldContent)
	author := hitString(hit, fieldAuthor)
	category := hitString(hit, fieldCategory)

	r := Result{
		Type: typeForIndex(logical),
		ID:   parseDocID(hit.ID),
		Text: title,
	}
	r.Extra, r.ExtraHighlighted = highlightSnippet(content, keyword, window, limit)
	r.TextHighlighted = markOccurrences(title, keyword)

	switch logical {
	case IndexPosts:
		r.SubText = category
		if hitHasFragment(hit, fieldTitle, fieldTitleZH, fieldTitlePY) {
			r.Type = TypePostTitle
		}
	case IndexComments:
		r.SubText = author
		r.PostID = hitInt(hit, fieldPostID)
	}
	if r.SubText != "" {
		r.SubTextHighlighted = markOccurrences(r.SubText, keyword)
	}
	return r
}

// fallbackSearch runs case-insensitive substring queries against the primary
// store per type and shapes the matches exactly like the backend path. Post
// title and body matches are merged by id with the title match winning.
func (s *Service) fallbackSearch(keyword string) []Result {
	window := s.settings.HighlightWindow()
	limit := s.settings.SnippetLength()
	var results []Result

	users, err := s.primary.SearchUsersByName(keyword)
	if err != nil {
		log.Warnf("fallback user search failed: %v", err)
	}
	for _, u := range users {
		r := Result{Type: TypeUser, ID: u.ID, Text: u.Username}
		r.TextHighlighted = markOccurrences(u.Username, keyword)
		r.Extra, r.ExtraHighlighted = highlightSnippet(u.Introduction, keyword, window, limit)
		results = append(results, r)
	}

	categories, err := s.primary.SearchCategoriesByName(keyword)
	if err != nil {
		log.Warnf("fallback category search failed: %v", err)
	}
	for _, c := range categories {
		r := Result{Type: TypeCategory, ID: c.ID, Text: c.Name}
		r.TextHighlighted = markOccurrences(c.Name, keyword)
		r.Extra, r.ExtraHighlighted = highlightSnippet(c.Description, keyword, window, limit)
		results = append(results, r)
	}

	tags, err := s.primary.SearchTagsByName(keyword)
	if err != nil {
		log.Warnf("fallback tag search failed: %v", err)
	}
	for _, t := range tags {
		r := Result{Type: TypeTag, ID: t.ID, Text: t.Name}
		r.TextHighlighted = markOccurrences(t.Name, keyword)
		r.Extra, r.ExtraHighlighted = highlightSnippet(t.Description, keyword, window, limit)
		results = append(results, r)
	}

	results = append(results, s.fallbackPosts(keyword, window, limit)...)

	comments, err := s.primary.SearchCommentsByContent(keyword)
	if err != nil {
		log.Warnf("fallback comment search failed: %v", err)
	}
	for _, c := range comments {
		r := Result{Type: TypeComment, ID: c.ID, SubText: c.Author, PostID: c.PostID}
		r.SubTextHighlighted = markOccurrences(c.Author, keyword)
		r.Extra, r.ExtraHighlighted = highlightSnippet(c.Content, keyword, window, limit)
		results = append(results, r)
	}

	return capResults(results, s.settings.MaxResults())
}

// fallbackPosts merges title and body matches. An id present in both sets
// yields a single post_title result: title relevance dominates.
func (s *Service) fallbackPosts(keyword string, window, limit int) []Result {
	byTitle, err := s.primary.SearchPostsByTitle(keyword)
	if err != nil {
		log.Warnf("fallback post title search failed: %v", err)
	}
	byContent, err := s.primary.SearchPostsByContent(keyword)
	if err != nil {
		log.Warnf("fallback post content search failed: %v", err)
	}

	seen := make(map[int64]bool, len(byTitle))
	var results []Result
	for _, p := range byTitle {
		seen[p.ID] = true
		results = append(results, s.postResult(p, TypePostTitle, keyword, window, limit))
	}
	for _, p := range byContent {
		if seen[p.ID] {
			continue
		}
		results = append(results, s.postResult(p, TypePost, keyword, window, limit))
	}
	return results
}

func (s *Service) postResult(p domain.Post, typ, keyword string, window, limit int) Result {
	r := Result{Type: typ, ID: p.ID, Text: p.Title, SubText: p.Category}
	r.TextHighlighted = markOccurrences(p.Title, keyword)
	if p.Category != "" {
		r.SubTextHighlighted = markOccurrences(p.Category, keyword)
	}
	r.Extra, r.ExtraHighlighted = highlightSnippet(p.Content, keyword, window, limit)
	return r
}

// Typed variants. Each resolves the ranked ids against the primary store so
// callers get full entities in relevance order; when the backend is out, the
// substring queries stand in.

func (s *Service) SearchUsers(keyword string) ([]domain.User, Mode) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, activeMode()
	}
	if ids, mode, ok := s.typedIDs(IndexUsers, buildClauses(keyword)); ok {
		users, err := s.primary.UsersByIDs(ids)
		if err != nil {
			log.Warnf("user lookup failed: %v", err)
			return nil, mode
		}
		return users, mode
	}
	users, err := s.primary.SearchUsersByName(keyword)
	if err != nil {
		log.Warnf("fallback user search failed: %v", err)
	}
	return users, fallbackMode("backend unavailable")
}

func (s *Service) SearchPosts(keyword string) ([]domain.Post, Mode) {
	return s.searchPostsWith(keyword, buildClauses, s.mergedFallbackPosts)
}

func (s *Service) SearchPostsByTitle(keyword string) ([]domain.Post, Mode) {
	return s.searchPostsWith(keyword, titleClauses, s.primary.SearchPostsByTitle)
}

func (s *Service) SearchPostsByContent(keyword string) ([]domain.Post, Mode) {
	return s.searchPostsWith(keyword, contentClauses, s.primary.SearchPostsByContent)
}

func (s *Service) searchPostsWith(keyword string, build func(string) []clause, fallback func(string) ([]domain.Post, error)) ([]domain.Post, Mode) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, activeMode()
	}
	if ids, mode, ok := s.typedIDs(IndexPosts, build(keyword)); ok {
		posts, err := s.primary.PostsByIDs(ids)
		if err != nil {
			log.Warnf("post lookup failed: %v", err)
			return nil, mode
		}
		return posts, mode
	}
	posts, err := fallback(keyword)
	if err != nil {
		log.Warnf("fallback post search failed: %v", err)
	}
	return posts, fallbackMode("backend unavailable")
}

func (s *Service) mergedFallbackPosts(keyword string) ([]domain.Post, error) {
	byTitle, err := s.primary.SearchPostsByTitle(keyword)
	if err != nil {
		return nil, err
	}
	byContent, err := s.primary.SearchPostsByContent(keyword)
	if err != nil {
		return nil, err
	}
	seen := make(map[int64]bool, len(byTitle))
	for _, p := range byTitle {
		seen[p.ID] = true
	}
	merged := byTitle
	for _, p := range byContent {
		if !seen[p.ID] {
			merged = append(merged, p)
		}
	}
	return merged, nil
}

func (s *Service) SearchComments(keyword string) ([]domain.Comment, Mode) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, activeMode()
	}
	if ids, mode, ok := s.typedIDs(IndexComments, buildClauses(keyword)); ok {
		comments, err := s.primary.CommentsByIDs(ids)
		if err != nil {
			log.Warnf("comment lookup failed: %v", err)
			return nil, mode
		}
		return comments, mode
	}
	comments, err := s.primary.SearchCommentsByContent(keyword)
	if err != nil {
		log.Warnf("fallback comment search failed: %v", err)
	}
	return comments, fallbackMode("backend unavailable")
}

func (s *Service) SearchCategories(keyword string) ([]domain.Category, Mode) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, activeMode()
	}
	if ids, mode, ok := s.typedIDs(IndexCategories, buildClauses(keyword)); ok {
		categories, err := s.primary.CategoriesByIDs(ids)
		if err != nil {
			log.Warnf("category lookup failed: %v", err)
			return nil, mode
		}
		return categories, mode
	}
	categories, err := s.primary.SearchCategoriesByName(keyword)
	if err != nil {
		log.Warnf("fallback category search failed: %v", err)
	}
	return categories, fallbackMode("backend unavailable")
}

func (s *Service) SearchTags(keyword string) ([]domain.Tag, Mode) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, activeMode()
	}
	if ids, mode, ok := s.typedIDs(IndexTags, buildClauses(keyword)); ok {
		tags, err := s.primary.TagsByIDs(ids)
		if err != nil {
			log.Warnf("tag lookup failed: %v", err)
			return nil, mode
		}
		return tags, mode
	}
	tags, err := s.primary.SearchTagsByName(keyword)
	if err != nil {
		log.Warnf("fallback tag search failed: %v", err)
	}
	return tags, fallbackMode("backend unavailable")
}

// typedIDs runs a clause set against one index and returns the ranked entity
// ids. ok is false when the typed search should use the fallback path.
func (s *Service) typedIDs(logical string, clauses []clause) ([]int64, Mode, bool) {
	if !s.settings.Enabled() {
		return nil, fallbackMode("backend disabled"), false
	}
	res, err := s.backend.search(logical, buildClauseRequest(clauses, s.settings.MaxResults()))
	if err != nil {
		log.Warnf("backend search failed for %s, falling back: %v", logical, err)
		return nil, fallbackMode("backend error"), false
	}
	if len(res.Hits) == 0 {
		return nil, fallbackMode("no backend hits"), false
	}
	ids := make([]int64, 0, len(res.Hits))
	for _, hit := range res.Hits {
		if id := parseDocID(hit.ID); id != 0 {
			ids = append(ids, id)
		}
	}
	return ids, activeMode(), true
}

func typeForIndex(logical string) string {
	switch logical {
	case IndexUsers:
		return TypeUser
	case IndexPosts:
		return TypePost
	case IndexComments:
		return TypeComment
	case IndexCategories:
		return TypeCategory
	case IndexTags:
		return TypeTag
	}
	return logical
}

func capResults(results []Result, max int) []Result {
	if max > 0 && len(results) > max {
		return results[:max]
	}
	return results
}

func hitString(hit *blevesearch.DocumentMatch, field string) string {
	if v, ok := hit.Fields[field].(string); ok {
		return v
	}
	return ""
}

func hitInt(hit *blevesearch.DocumentMatch, field string) int64 {
	if v, ok := hit.Fields[field].(float64); ok {
		return int64(v)
	}
	return 0
}

func hitHasFragment(hit *blevesearch.DocumentMatch, fields ...string) bool {
	for _, f := range fields {
		for _, frag := range hit.Fragments[f] {
			if frag != "" {
				return true
			}
		}
	}
	return false
}
