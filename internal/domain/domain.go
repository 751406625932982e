// Package domain holds the entity snapshots produced by the primary store.
// The search subsystem treats these as read-only inputs; their lifecycle
// (validation, business rules) belongs to the platform backend.
package domain

import "time"

type PostStatus string

const (
	PostStatusDraft     PostStatus = "DRAFT"
	PostStatusPending   PostStatus = "PENDING"
	PostStatusPublished PostStatus = "PUBLISHED"
)

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Introduction string    `json:"introduction,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

type Post struct {
	ID        int64      `json:"id"`
	Title     string     `json:"title"`
	Content   string     `json:"content"`
	Author    string     `json:"author"`
	Category  string     `json:"category,omitempty"`
	Tags      []string   `json:"tags,omitempty"`
	Status    PostStatus `json:"status"`
	CreatedAt time.Time  `json:"createdAt"`
}

type Comment struct {
	ID        int64     `json:"id"`
	PostID    int64     `json:"postId"`
	Author    string    `json:"author"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

type Category struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type Tag struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Approved    bool      `json:"approved"`
	CreatedAt   time.Time `json:"createdAt"`
}
