package search

import (
	"strings"
	"testing"

	"github.com/forumkit/searchd/internal/config"
	"github.com/forumkit/searchd/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSearchConfig(t *testing.T) config.SearchConfig {
	t.Helper()
	return config.SearchConfig{
		Enabled:         true,
		IndexDir:        t.TempDir(),
		IndexPrefix:     "test",
		MaxResults:      50,
		SnippetLength:   200,
		HighlightWindow: 20,
	}
}

func newTestBackend(t *testing.T, cfg config.SearchConfig) *Backend {
	t.Helper()
	b := NewBackend(cfg)
	b.Open()
	t.Cleanup(func() { b.Close() })
	return b
}

// fakePrimary serves canned entities for the fallback path and typed
// lookups.
type fakePrimary struct {
	users      []domain.User
	posts      []domain.Post
	comments   []domain.Comment
	categories []domain.Category
	tags       []domain.Tag
}

func (f *fakePrimary) SearchUsersByName(keyword string) ([]domain.User, error) {
	var out []domain.User
	for _, u := range f.users {
		if containsFold(u.Username, keyword) {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakePrimary) SearchPostsByTitle(keyword string) ([]domain.Post, error) {
	var out []domain.Post
	for _, p := range f.posts {
		if p.Status == domain.PostStatusPublished && containsFold(p.Title, keyword) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePrimary) SearchPostsByContent(keyword string) ([]domain.Post, error) {
	var out []domain.Post
	for _, p := range f.posts {
		if p.Status == domain.PostStatusPublished && containsFold(p.Content, keyword) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePrimary) SearchCommentsByContent(keyword string) ([]domain.Comment, error) {
	var out []domain.Comment
	for _, c := range f.comments {
		if containsFold(c.Content, keyword) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakePrimary) SearchCategoriesByName(keyword string) ([]domain.Category, error) {
	var out []domain.Category
	for _, c := range f.categories {
		if containsFold(c.Name, keyword) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakePrimary) SearchTagsByName(keyword string) ([]domain.Tag, error) {
	var out []domain.Tag
	for _, tag := range f.tags {
		if tag.Approved && containsFold(tag.Name, keyword) {
			out = append(out, tag)
		}
	}
	return out, nil
}

func (f *fakePrimary) UsersByIDs(ids []int64) ([]domain.User, error) {
	var out []domain.User
	for _, id := range ids {
		for _, u := range f.users {
			if u.ID == id {
				out = append(out, u)
			}
		}
	}
	return out, nil
}

func (f *fakePrimary) PostsByIDs(ids []int64) ([]domain.Post, error) {
	var out []domain.Post
	for _, id := range ids {
		for _, p := range f.posts {
			if p.ID == id {
				out = append(out, p)
			}
		}
	}
	return out, nil
}

func (f *fakePrimary) CommentsByIDs(ids []int64) ([]domain.Comment, error) {
	var out []domain.Comment
	for _, id := range ids {
		for _, c := range f.comments {
			if c.ID == id {
				out = append(out, c)
			}
		}
	}
	return out, nil
}

func (f *fakePrimary) CategoriesByIDs(ids []int64) ([]domain.Category, error) {
	var out []domain.Category
	for _, id := range ids {
		for _, c := range f.categories {
			if c.ID == id {
				out = append(out, c)
			}
		}
	}
	return out, nil
}

func (f *fakePrimary) TagsByIDs(ids []int64) ([]domain.Tag, error) {
	var out []domain.Tag
	for _, id := range ids {
		for _, tag := range f.tags {
			if tag.ID == id {
				out = append(out, tag)
			}
		}
	}
	return out, nil
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func newTestService(t *testing.T, cfg config.SearchConfig, primary *fakePrimary) (*Service, *Backend) {
	t.Helper()
	backend := newTestBackend(t, cfg)
	settings := NewSettings(cfg)
	return NewService(backend, settings, primary), backend
}

func TestGlobalSearch_BlankKeyword(t *testing.T) {
	svc, _ := newTestService(t, testSearchConfig(t), &fakePrimary{})

	results, mode := svc.GlobalSearch("   ")
	assert.Empty(t, results)
	assert.False(t, mode.Fallback)
}

func TestGlobalSearch_IdempotentUpsert(t *testing.T) {
	svc, backend := newTestService(t, testSearchConfig(t), &fakePrimary{})

	post := &domain.Post{ID: 1, Title: "first draft words", Content: "body", Status: domain.PostStatusPublished}
	require.NoError(t, backend.Index(IndexPosts, FromPost(post)))

	post.Title = "rewritten title"
	require.NoError(t, backend.Index(IndexPosts, FromPost(post)))

	assert.Equal(t, uint64(1), backend.DocCounts()[IndexPosts])

	results, mode := svc.GlobalSearch("rewritten")
	require.False(t, mode.Fallback)
	require.Len(t, results, 1)
	assert.Equal(t, int64(1), results[0].ID)
	assert.Equal(t, "rewritten title", results[0].Text)
}

func TestGlobalSearch_DeleteThenSearch(t *testing.T) {
	svc, backend := newTestService(t, testSearchConfig(t), &fakePrimary{})

	post := &domain.Post{ID: 2, Title: "ephemeral topic", Status: domain.PostStatusPublished}
	require.NoError(t, backend.Index(IndexPosts, FromPost(post)))

	results, mode := svc.GlobalSearch("ephemeral")
	require.False(t, mode.Fallback)
	require.Len(t, results, 1)

	require.NoError(t, backend.Delete(IndexPosts, post.ID))

	results, mode = svc.GlobalSearch("ephemeral")
	assert.True(t, mode.Fallback)
	assert.Empty(t, results)
}

func TestGlobalSearch_DedupPrecedence(t *testing.T) {
	svc, backend := newTestService(t, testSearchConfig(t), &fakePrimary{})

	post := &domain.Post{
		ID:      3,
		Title:   "Open Source Guide",
		Content: "how to contribute to open projects",
		Status:  domain.PostStatusPublished,
	}
	require.NoError(t, backend.Index(IndexPosts, FromPost(post)))

	results, mode := svc.GlobalSearch("open")
	require.False(t, mode.Fallback)
	require.Len(t, results, 1)
	assert.Equal(t, TypePostTitle, results[0].Type)
	assert.Equal(t, int64(3), results[0].ID)
}

func TestGlobalSearch_CommentLinkage(t *testing.T) {
	svc, backend := newTestService(t, testSearchConfig(t), &fakePrimary{})

	parent := &domain.Post{ID: 5, Title: "Parent Thread", Status: domain.PostStatusPublished}
	comment := &domain.Comment{ID: 11, PostID: 5, Author: "bob", Content: "insightful remark"}
	require.NoError(t, backend.Index(IndexComments, FromComment(comment, parent)))

	results, mode := svc.GlobalSearch("insightful")
	require.False(t, mode.Fallback)
	require.Len(t, results, 1)
	assert.Equal(t, TypeComment, results[0].Type)
	assert.Equal(t, int64(5), results[0].PostID)
	assert.Equal(t, "bob", results[0].SubText)
}

func TestGlobalSearch_SnippetSafety(t *testing.T) {
	svc, backend := newTestService(t, testSearchConfig(t), &fakePrimary{})

	post := &domain.Post{
		ID:      6,
		Title:   "Escaping",
		Content: "inline <script>alert(1)</script> payload",
		Status:  domain.PostStatusPublished,
	}
	require.NoError(t, backend.Index(IndexPosts, FromPost(post)))

	results, mode := svc.GlobalSearch("payload")
	require.False(t, mode.Fallback)
	require.Len(t, results, 1)
	assert.NotContains(t, results[0].ExtraHighlighted, "<script>")
	assert.Contains(t, results[0].ExtraHighlighted, markOpen+"payload"+markClose)
}

func TestGlobalSearch_PinyinKeyword(t *testing.T) {
	svc, backend := newTestService(t, testSearchConfig(t), &fakePrimary{})

	post := &domain.Post{ID: 7, Title: "开源指南", Content: "正文", Status: domain.PostStatusPublished}
	require.NoError(t, backend.Index(IndexPosts, FromPost(post)))

	results, mode := svc.GlobalSearch("kai yuan")
	require.False(t, mode.Fallback)
	require.Len(t, results, 1)
	assert.Equal(t, int64(7), results[0].ID)
}

func TestGlobalSearch_CJKSubstring(t *testing.T) {
	svc, backend := newTestService(t, testSearchConfig(t), &fakePrimary{})

	post := &domain.Post{ID: 8, Title: "开源社区运营手册", Content: "正文内容", Status: domain.PostStatusPublished}
	require.NoError(t, backend.Index(IndexPosts, FromPost(post)))

	results, mode := svc.GlobalSearch("社区")
	require.False(t, mode.Fallback)
	require.Len(t, results, 1)
	assert.Equal(t, int64(8), results[0].ID)
}

func TestGlobalSearch_FallbackEquivalence(t *testing.T) {
	primary := &fakePrimary{
		users: []domain.User{{ID: 1, Username: "open sourcerer"}},
		posts: []domain.Post{
			{ID: 2, Title: "Open Source Guide", Content: "contributing", Status: domain.PostStatusPublished},
			{ID: 3, Title: "Unrelated", Content: "open floor discussion", Status: domain.PostStatusPublished},
		},
	}

	cfg := testSearchConfig(t)
	activeSvc, backend := newTestService(t, cfg, primary)
	require.NoError(t, backend.Index(IndexUsers, FromUser(&primary.users[0])))
	for i := range primary.posts {
		require.NoError(t, backend.Index(IndexPosts, FromPost(&primary.posts[i])))
	}

	activeResults, mode := activeSvc.GlobalSearch("open")
	require.False(t, mode.Fallback)

	disabled := cfg
	disabled.Enabled = false
	fallbackSvc := NewService(backend, NewSettings(disabled), primary)
	fallbackResults, mode := fallbackSvc.GlobalSearch("open")
	require.True(t, mode.Fallback)
	assert.Equal(t, "backend disabled", mode.Reason)

	ids := func(results []Result) map[int64]bool {
		set := make(map[int64]bool)
		for _, r := range results {
			set[r.ID] = true
		}
		return set
	}
	assert.Equal(t, ids(activeResults), ids(fallbackResults))
}

func TestFallback_PostDedupPrecedence(t *testing.T) {
	primary := &fakePrimary{
		posts: []domain.Post{
			{ID: 4, Title: "Open Source Guide", Content: "contribute to open projects", Status: domain.PostStatusPublished},
		},
	}
	cfg := testSearchConfig(t)
	cfg.Enabled = false
	svc, _ := newTestService(t, cfg, primary)

	results, mode := svc.GlobalSearch("open")
	require.True(t, mode.Fallback)
	require.Len(t, results, 1)
	assert.Equal(t, TypePostTitle, results[0].Type)
}

func TestFallback_SnippetSynthesis(t *testing.T) {
	primary := &fakePrimary{
		comments: []domain.Comment{{ID: 9, PostID: 2, Author: "eve", Content: "a <b> tagged remark"}},
	}
	cfg := testSearchConfig(t)
	cfg.Enabled = false
	svc, _ := newTestService(t, cfg, primary)

	results, mode := svc.GlobalSearch("remark")
	require.True(t, mode.Fallback)
	require.Len(t, results, 1)
	assert.Equal(t, int64(2), results[0].PostID)
	assert.Contains(t, results[0].ExtraHighlighted, "&lt;b&gt;")
	assert.Contains(t, results[0].ExtraHighlighted, markOpen+"remark"+markClose)
}

func TestTypedSearch_RelevanceOrder(t *testing.T) {
	primary := &fakePrimary{
		posts: []domain.Post{
			{ID: 1, Title: "other things entirely", Content: "mentions searching once", Status: domain.PostStatusPublished},
			{ID: 2, Title: "searching well", Content: "body", Status: domain.PostStatusPublished},
		},
	}
	svc, backend := newTestService(t, testSearchConfig(t), primary)
	for i := range primary.posts {
		require.NoError(t, backend.Index(IndexPosts, FromPost(&primary.posts[i])))
	}

	posts, mode := svc.SearchPosts("searching")
	require.False(t, mode.Fallback)
	require.Len(t, posts, 2)
	assert.Equal(t, int64(2), posts[0].ID, "title match should outrank content match")
}

func TestTypedSearch_TitleScope(t *testing.T) {
	primary := &fakePrimary{
		posts: []domain.Post{
			{ID: 1, Title: "plain", Content: "special topic inside", Status: domain.PostStatusPublished},
			{ID: 2, Title: "special topic", Content: "plain body", Status: domain.PostStatusPublished},
		},
	}
	svc, backend := newTestService(t, testSearchConfig(t), primary)
	for i := range primary.posts {
		require.NoError(t, backend.Index(IndexPosts, FromPost(&primary.posts[i])))
	}

	posts, mode := svc.SearchPostsByTitle("special")
	require.False(t, mode.Fallback)
	require.Len(t, posts, 1)
	assert.Equal(t, int64(2), posts[0].ID)

	posts, mode = svc.SearchPostsByContent("special")
	require.False(t, mode.Fallback)
	require.Len(t, posts, 1)
	assert.Equal(t, int64(1), posts[0].ID)
}

func TestTypedSearch_FallbackWhenDisabled(t *testing.T) {
	primary := &fakePrimary{
		users: []domain.User{{ID: 3, Username: "carol"}},
	}
	cfg := testSearchConfig(t)
	cfg.Enabled = false
	svc, _ := newTestService(t, cfg, primary)

	users, mode := svc.SearchUsers("carol")
	require.True(t, mode.Fallback)
	require.Len(t, users, 1)
	assert.Equal(t, int64(3), users[0].ID)
}
