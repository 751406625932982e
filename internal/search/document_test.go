package search

import (
	"testing"
	"time"

	"github.com/forumkit/searchd/internal/domain"
)

func TestFromUser(t *testing.T) {
	if doc := FromUser(nil); doc != nil {
		t.Error("nil user should map to nil document")
	}
	if doc := FromUser(&domain.User{Username: "alice"}); doc != nil {
		t.Error("user without id should map to nil document")
	}

	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	doc := FromUser(&domain.User{ID: 7, Username: "alice", Introduction: "hi", CreatedAt: created})
	if doc == nil {
		t.Fatal("expected a document")
	}
	if doc.Type != TypeUser || doc.EntityID != 7 || doc.Title != "alice" || doc.Content != "hi" {
		t.Errorf("unexpected document: %+v", doc)
	}
	if doc.CreatedAt == nil || !doc.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v, want %v", doc.CreatedAt, created)
	}
}

func TestFromUser_ZeroTime(t *testing.T) {
	doc := FromUser(&domain.User{ID: 1, Username: "bob"})
	if doc.CreatedAt != nil {
		t.Errorf("zero time should map to nil, got %v", doc.CreatedAt)
	}
}

func TestFromPost(t *testing.T) {
	p := &domain.Post{
		ID:       3,
		Title:    "Open Source Guide",
		Content:  "how to contribute",
		Author:   "alice",
		Category: "engineering",
		Tags:     []string{"oss", "guide"},
		Status:   domain.PostStatusPublished,
	}
	doc := FromPost(p)
	if doc == nil {
		t.Fatal("expected a document")
	}
	if doc.Type != TypePost || doc.PostID != 3 || doc.Category != "engineering" {
		t.Errorf("unexpected document: %+v", doc)
	}
	if len(doc.Tags) != 2 {
		t.Errorf("Tags = %v, want 2 entries", doc.Tags)
	}

	if FromPost(&domain.Post{Title: "no id"}) != nil {
		t.Error("post without id should map to nil document")
	}
}

func TestFromComment(t *testing.T) {
	parent := &domain.Post{ID: 3, Title: "Open Source Guide", Category: "engineering", Tags: []string{"oss"}}
	c := &domain.Comment{ID: 9, PostID: 3, Author: "bob", Content: "great post"}

	doc := FromComment(c, parent)
	if doc == nil {
		t.Fatal("expected a document")
	}
	if doc.PostID != 3 {
		t.Errorf("PostID = %d, want parent post id 3", doc.PostID)
	}
	if doc.Title != parent.Title || doc.Category != parent.Category {
		t.Errorf("comment should inherit parent title and category: %+v", doc)
	}

	orphan := FromComment(c, nil)
	if orphan == nil {
		t.Fatal("comment without parent should still map")
	}
	if orphan.PostID != 3 || orphan.Title != "" {
		t.Errorf("unexpected orphan document: %+v", orphan)
	}
}

func TestIndexablePost(t *testing.T) {
	if indexablePost(&domain.Post{ID: 1, Status: domain.PostStatusDraft}) {
		t.Error("draft post must not be indexable")
	}
	if indexablePost(&domain.Post{ID: 1, Status: domain.PostStatusPending}) {
		t.Error("pending post must not be indexable")
	}
	if !indexablePost(&domain.Post{ID: 1, Status: domain.PostStatusPublished}) {
		t.Error("published post must be indexable")
	}
	if indexablePost(nil) {
		t.Error("nil post must not be indexable")
	}
}

func TestIndexableTag(t *testing.T) {
	if indexableTag(&domain.Tag{ID: 1}) {
		t.Error("unapproved tag must not be indexable")
	}
	if !indexableTag(&domain.Tag{ID: 1, Approved: true}) {
		t.Error("approved tag must be indexable")
	}
}
