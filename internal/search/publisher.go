package search

import (
	"github.com/forumkit/searchd/internal/domain"
	"github.com/forumkit/searchd/internal/log"
)

// PostLookup resolves a comment's parent post when building its document.
type PostLookup interface {
	PostByID(id int64) (*domain.Post, bool, error)
}

// Publisher translates entity save/delete notifications into index writes.
// It runs after the storage transaction has committed, so every failure here
// is logged and swallowed: the entity write must never be rolled back or
// blocked by the index.
type Publisher struct {
	backend  *Backend
	settings *Settings
	posts    PostLookup
}

func NewPublisher(backend *Backend, settings *Settings, posts PostLookup) *Publisher {
	return &Publisher{backend: backend, settings: settings, posts: posts}
}

// EntitySaved indexes the saved entity, or removes it when it is no longer
// visible (an unpublished post, an unapproved tag).
func (p *Publisher) EntitySaved(entity any) {
	if !p.settings.Enabled() {
		return
	}
	for _, in := range p.intents(entity, false) {
		p.apply(in)
	}
}

// EntityDeleted removes the entity's document. Only the id of the deleted
// entity is required.
func (p *Publisher) EntityDeleted(entity any) {
	if !p.settings.Enabled() {
		return
	}
	for _, in := range p.intents(entity, true) {
		p.apply(in)
	}
}

// intent is one pending index write: an upsert when doc is set, a delete
// otherwise.
type intent struct {
	index string
	id    int64
	doc   *Document
}

func (p *Publisher) intents(entity any, deleted bool) []intent {
	switch e := entity.(type) {
	case *domain.User:
		if e == nil || e.ID == 0 {
			return nil
		}
		if deleted {
			return []intent{{index: IndexUsers, id: e.ID}}
		}
		return []intent{{index: IndexUsers, id: e.ID, doc: FromUser(e)}}
	case *domain.Post:
		if e == nil || e.ID == 0 {
			return nil
		}
		if deleted || !indexablePost(e) {
			return []intent{{index: IndexPosts, id: e.ID}}
		}
		return []intent{{index: IndexPosts, id: e.ID, doc: FromPost(e)}}
	case *domain.Comment:
		if e == nil || e.ID == 0 {
			return nil
		}
		if deleted {
			return []intent{{index: IndexComments, id: e.ID}}
		}
		return []intent{{index: IndexComments, id: e.ID, doc: FromComment(e, p.parentPost(e.PostID))}}
	case *domain.Category:
		if e == nil || e.ID == 0 {
			return nil
		}
		if deleted {
			return []intent{{index: IndexCategories, id: e.ID}}
		}
		return []intent{{index: IndexCategories, id: e.ID, doc: FromCategory(e)}}
	case *domain.Tag:
		if e == nil || e.ID == 0 {
			return nil
		}
		if deleted || !indexableTag(e) {
			return []intent{{index: IndexTags, id: e.ID}}
		}
		return []intent{{index: IndexTags, id: e.ID, doc: FromTag(e)}}
	default:
		return nil
	}
}

func (p *Publisher) parentPost(id int64) *domain.Post {
	if id == 0 || p.posts == nil {
		return nil
	}
	post, found, err := p.posts.PostByID(id)
	if err != nil {
		log.Warnf("parent post lookup failed for %d: %v", id, err)
		return nil
	}
	if !found {
		return nil
	}
	return post
}

func (p *Publisher) apply(in intent) {
	var err error
	if in.doc != nil {
		err = p.backend.Index(in.index, in.doc)
	} else {
		err = p.backend.Delete(in.index, in.id)
	}
	if err != nil {
		log.Warnf("index write failed for %s/%d: %v", in.index, in.id, err)
	}
}
