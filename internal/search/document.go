package search

import (
	"time"

	"github.com/forumkit/searchd/internal/domain"
)

// Result type identifiers. TypePostTitle marks a post hit whose title
// matched the keyword, so callers can render it differently from a body hit.
const (
	TypeUser      = "user"
	TypePost      = "post"
	TypePostTitle = "post_title"
	TypeComment   = "comment"
	TypeCategory  = "category"
	TypeTag       = "tag"
)

// Logical index names, one per entity type. The configured prefix is applied
// on top of these when the bleve index is opened.
const (
	IndexUsers      = "users"
	IndexPosts      = "posts"
	IndexComments   = "comments"
	IndexCategories = "categories"
	IndexTags       = "tags"
)

// Document is the indexed projection of one domain entity. Field names are a
// wire contract shared with the index mappings and the query engine.
type Document struct {
	Type      string     `json:"type"`
	EntityID  int64      `json:"entityId"`
	Title     string     `json:"title"`
	Content   string     `json:"content"`
	Author    string     `json:"author,omitempty"`
	Category  string     `json:"category,omitempty"`
	Tags      []string   `json:"tags,omitempty"`
	PostID    int64      `json:"postId,omitempty"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
}

// FromUser maps a user snapshot to its document. Returns nil when the
// snapshot has no primary key; a nil document is never submitted.
func FromUser(u *domain.User) *Document {
	if u == nil || u.ID == 0 {
		return nil
	}
	return &Document{
		Type:      TypeUser,
		EntityID:  u.ID,
		Title:     u.Username,
		Content:   u.Introduction,
		CreatedAt: optionalTime(u.CreatedAt),
	}
}

func FromPost(p *domain.Post) *Document {
	if p == nil || p.ID == 0 {
		return nil
	}
	return &Document{
		Type:      TypePost,
		EntityID:  p.ID,
		Title:     p.Title,
		Content:   p.Content,
		Author:    p.Author,
		Category:  p.Category,
		Tags:      p.Tags,
		PostID:    p.ID,
		CreatedAt: optionalTime(p.CreatedAt),
	}
}

// FromComment maps a comment and its parent post. The parent supplies the
// title, category and tags so a comment is findable through its thread; a
// nil parent still yields a valid document linked by the comment's PostID.
func FromComment(c *domain.Comment, parent *domain.Post) *Document {
	if c == nil || c.ID == 0 {
		return nil
	}
	doc := &Document{
		Type:      TypeComment,
		EntityID:  c.ID,
		Content:   c.Content,
		Author:    c.Author,
		PostID:    c.PostID,
		CreatedAt: optionalTime(c.CreatedAt),
	}
	if parent != nil {
		doc.Title = parent.Title
		doc.Category = parent.Category
		doc.Tags = parent.Tags
	}
	return doc
}

func FromCategory(c *domain.Category) *Document {
	if c == nil || c.ID == 0 {
		return nil
	}
	return &Document{
		Type:     TypeCategory,
		EntityID: c.ID,
		Title:    c.Name,
		Content:  c.Description,
	}
}

func FromTag(t *domain.Tag) *Document {
	if t == nil || t.ID == 0 {
		return nil
	}
	return &Document{
		Type:      TypeTag,
		EntityID:  t.ID,
		Title:     t.Name,
		Content:   t.Description,
		CreatedAt: optionalTime(t.CreatedAt),
	}
}

// indexablePost reports whether a post may appear in the index. Only
// published posts are searchable; anything else must be deleted, not updated.
func indexablePost(p *domain.Post) bool {
	return p != nil && p.Status == domain.PostStatusPublished
}

// indexableTag reports whether a tag may appear in the index.
func indexableTag(t *domain.Tag) bool {
	return t != nil && t.Approved
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
