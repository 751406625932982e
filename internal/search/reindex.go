package search

import (
	"sync/atomic"
	"time"

	"github.com/forumkit/searchd/internal/domain"
	"github.com/forumkit/searchd/internal/errdefs"
	"github.com/forumkit/searchd/internal/log"
)

// Source is the paged view of the primary store the reindexer walks.
type Source interface {
	PostLookup
	Users(offset, limit int) ([]domain.User, bool, error)
	Posts(offset, limit int) ([]domain.Post, bool, error)
	Comments(offset, limit int) ([]domain.Comment, bool, error)
	Categories(offset, limit int) ([]domain.Category, bool, error)
	Tags(offset, limit int) ([]domain.Tag, bool, error)
}

// Reindexer rebuilds every index from the primary store using the same
// factories and visibility filters as the incremental path. Rebuilds rely on
// idempotent upserts rather than clearing first, so a run never leaves an
// index emptier than it found it; entities deleted from the primary store
// since the last run stay behind until the index directory is recreated.
type Reindexer struct {
	backend   *Backend
	source    Source
	batchSize int
	running   atomic.Bool
}

func NewReindexer(backend *Backend, source Source, batchSize int) *Reindexer {
	if batchSize <= 0 {
		batchSize = 200
	}
	return &Reindexer{backend: backend, source: source, batchSize: batchSize}
}

// Running reports whether a rebuild is in progress.
func (r *Reindexer) Running() bool {
	return r.running.Load()
}

// ReindexAll walks the primary store in pages and upserts every visible
// entity. A page failure logs and moves on; only one run may be active at a
// time.
func (r *Reindexer) ReindexAll() error {
	if !r.running.CompareAndSwap(false, true) {
		return errdefs.ErrReindexRunning
	}
	defer r.running.Store(false)

	start := time.Now()
	total := 0
	total += r.walkPages("users", r.userPage)
	total += r.walkPages("categories", r.categoryPage)
	total += r.walkPages("tags", r.tagPage)
	total += r.walkPages("posts", r.postPage)
	total += r.walkPages("comments", r.commentPage)
	log.Infof("reindex complete: %d documents in %s", total, time.Since(start).Round(time.Millisecond))
	return nil
}

// walkPages drives one type's paged scan. A failed page is skipped and the
// scan moves to the next offset; three consecutive failures abort the scan
// rather than spinning on a broken bucket.
func (r *Reindexer) walkPages(name string, fetch func(offset, limit int) (int, bool, error)) int {
	indexed := 0
	failures := 0
	for offset := 0; ; offset += r.batchSize {
		n, more, err := fetch(offset, r.batchSize)
		if err != nil {
			failures++
			log.Warnf("reindex %s page at %d failed: %v", name, offset, err)
			if failures >= 3 {
				break
			}
			continue
		}
		failures = 0
		indexed += n
		if !more {
			break
		}
	}
	return indexed
}

func (r *Reindexer) userPage(offset, limit int) (int, bool, error) {
	users, more, err := r.source.Users(offset, limit)
	if err != nil {
		return 0, false, err
	}
	indexed := 0
	for i := range users {
		if r.submit(IndexUsers, FromUser(&users[i])) {
			indexed++
		}
	}
	return indexed, more, nil
}

func (r *Reindexer) postPage(offset, limit int) (int, bool, error) {
	posts, more, err := r.source.Posts(offset, limit)
	if err != nil {
		return 0, false, err
	}
	indexed := 0
	for i := range posts {
		if !indexablePost(&posts[i]) {
			continue
		}
		if r.submit(IndexPosts, FromPost(&posts[i])) {
			indexed++
		}
	}
	return indexed, more, nil
}

func (r *Reindexer) commentPage(offset, limit int) (int, bool, error) {
	comments, more, err := r.source.Comments(offset, limit)
	if err != nil {
		return 0, false, err
	}
	indexed := 0
	parents := make(map[int64]*domain.Post, limit)
	for i := range comments {
		c := &comments[i]
		parent, cached := parents[c.PostID]
		if !cached {
			parent = r.lookupPost(c.PostID)
			parents[c.PostID] = parent
		}
		if r.submit(IndexComments, FromComment(c, parent)) {
			indexed++
		}
	}
	return indexed, more, nil
}

func (r *Reindexer) categoryPage(offset, limit int) (int, bool, error) {
	categories, more, err := r.source.Categories(offset, limit)
	if err != nil {
		return 0, false, err
	}
	indexed := 0
	for i := range categories {
		if r.submit(IndexCategories, FromCategory(&categories[i])) {
			indexed++
		}
	}
	return indexed, more, nil
}

func (r *Reindexer) tagPage(offset, limit int) (int, bool, error) {
	tags, more, err := r.source.Tags(offset, limit)
	if err != nil {
		return 0, false, err
	}
	indexed := 0
	for i := range tags {
		if !indexableTag(&tags[i]) {
			continue
		}
		if r.submit(IndexTags, FromTag(&tags[i])) {
			indexed++
		}
	}
	return indexed, more, nil
}

func (r *Reindexer) lookupPost(id int64) *domain.Post {
	if id == 0 {
		return nil
	}
	post, found, err := r.source.PostByID(id)
	if err != nil {
		log.Warnf("reindex parent post lookup failed for %d: %v", id, err)
		return nil
	}
	if !found {
		return nil
	}
	return post
}

func (r *Reindexer) submit(logical string, doc *Document) bool {
	if doc == nil {
		return false
	}
	if err := r.backend.Index(logical, doc); err != nil {
		log.Warnf("reindex write failed for %s/%d: %v", logical, doc.EntityID, err)
		return false
	}
	return true
}
