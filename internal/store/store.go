// Package store is the embedded primary store for forum entities. It is the
// source of truth the search indices are derived from: every successful write
// is reported to the registered Listener after the owning bolt transaction
// commits, and never before.
package store

import (
	"encoding/binary"
	"encoding/json"
	"strings"
	"time"

	"github.com/forumkit/searchd/internal/domain"
	"github.com/forumkit/searchd/internal/errdefs"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketUsers      = []byte("users")
	bucketPosts      = []byte("posts")
	bucketComments   = []byte("comments")
	bucketCategories = []byte("categories")
	bucketTags       = []byte("tags")
)

// Listener receives entity change notifications. Saved and Deleted fire
// after the owning transaction has committed; implementations must not
// return errors into the write path.
type Listener interface {
	EntitySaved(entity any)
	EntityDeleted(entity any)
}

type Store struct {
	db       *bolt.DB
	listener Listener
}

func New(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, errdefs.NewCustomError(errdefs.ErrTypeStoreFailed, "failed to open store", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketUsers, bucketPosts, bucketComments, bucketCategories, bucketTags} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, errdefs.NewCustomError(errdefs.ErrTypeStoreFailed, "failed to create buckets", err)
	}

	return &Store{db: db}, nil
}

// SetListener registers the change listener. Must be called before writes
// that should be observed; a nil listener disables notification.
func (s *Store) SetListener(l Listener) {
	s.listener = l
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) put(bucket []byte, id int64, entity any) error {
	data, err := json.Marshal(entity)
	if err != nil {
		return errdefs.NewCustomError(errdefs.ErrTypeStoreFailed, "encode failed", err)
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Put(itob(id), data)
	})
	if err != nil {
		return errdefs.NewCustomError(errdefs.ErrTypeStoreFailed, "put failed", err)
	}
	// Transaction has committed; safe to notify.
	if s.listener != nil {
		s.listener.EntitySaved(entity)
	}
	return nil
}

func (s *Store) delete(bucket []byte, id int64, entity any) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Delete(itob(id))
	})
	if err != nil {
		return errdefs.NewCustomError(errdefs.ErrTypeStoreFailed, "delete failed", err)
	}
	if s.listener != nil {
		s.listener.EntityDeleted(entity)
	}
	return nil
}

func (s *Store) SaveUser(u *domain.User) error { return s.put(bucketUsers, u.ID, u) }
func (s *Store) DeleteUser(id int64) error {
	return s.delete(bucketUsers, id, &domain.User{ID: id})
}

func (s *Store) SavePost(p *domain.Post) error { return s.put(bucketPosts, p.ID, p) }
func (s *Store) DeletePost(id int64) error {
	return s.delete(bucketPosts, id, &domain.Post{ID: id})
}

func (s *Store) SaveComment(c *domain.Comment) error { return s.put(bucketComments, c.ID, c) }
func (s *Store) DeleteComment(id int64) error {
	return s.delete(bucketComments, id, &domain.Comment{ID: id})
}

func (s *Store) SaveCategory(c *domain.Category) error { return s.put(bucketCategories, c.ID, c) }
func (s *Store) DeleteCategory(id int64) error {
	return s.delete(bucketCategories, id, &domain.Category{ID: id})
}

func (s *Store) SaveTag(t *domain.Tag) error { return s.put(bucketTags, t.ID, t) }
func (s *Store) DeleteTag(id int64) error {
	return s.delete(bucketTags, id, &domain.Tag{ID: id})
}

func (s *Store) get(bucket []byte, id int64, out any) (bool, error) {
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucket).Get(itob(id))
		if v == nil {
			return nil
		}
		found = true
		return json.Unmarshal(v, out)
	})
	if err != nil {
		return false, errdefs.NewCustomError(errdefs.ErrTypeStoreFailed, "get failed", err)
	}
	return found, nil
}

func (s *Store) UserByID(id int64) (*domain.User, bool, error) {
	var u domain.User
	found, err := s.get(bucketUsers, id, &u)
	return &u, found, err
}

func (s *Store) PostByID(id int64) (*domain.Post, bool, error) {
	var p domain.Post
	found, err := s.get(bucketPosts, id, &p)
	return &p, found, err
}

func (s *Store) CommentByID(id int64) (*domain.Comment, bool, error) {
	var c domain.Comment
	found, err := s.get(bucketComments, id, &c)
	return &c, found, err
}

func (s *Store) CategoryByID(id int64) (*domain.Category, bool, error) {
	var c domain.Category
	found, err := s.get(bucketCategories, id, &c)
	return &c, found, err
}

func (s *Store) TagByID(id int64) (*domain.Tag, bool, error) {
	var t domain.Tag
	found, err := s.get(bucketTags, id, &t)
	return &t, found, err
}

// page iterates a bucket in key order, invoking fn for entries in
// [offset, offset+limit). It reports whether more entries remain.
func (s *Store) page(bucket []byte, offset, limit int, fn func(v []byte) error) (bool, error) {
	var more bool
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucket).Cursor()
		i := 0
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if i < offset {
				i++
				continue
			}
			if i >= offset+limit {
				more = true
				return nil
			}
			if err := fn(v); err != nil {
				return err
			}
			i++
		}
		return nil
	})
	if err != nil {
		return false, errdefs.NewCustomError(errdefs.ErrTypeStoreFailed, "page scan failed", err)
	}
	return more, nil
}

func (s *Store) Users(offset, limit int) ([]domain.User, bool, error) {
	var out []domain.User
	more, err := s.page(bucketUsers, offset, limit, func(v []byte) error {
		var u domain.User
		if err := json.Unmarshal(v, &u); err != nil {
			return err
		}
		out = append(out, u)
		return nil
	})
	return out, more, err
}

func (s *Store) Posts(offset, limit int) ([]domain.Post, bool, error) {
	var out []domain.Post
	more, err := s.page(bucketPosts, offset, limit, func(v []byte) error {
		var p domain.Post
		if err := json.Unmarshal(v, &p); err != nil {
			return err
		}
		out = append(out, p)
		return nil
	})
	return out, more, err
}

func (s *Store) Comments(offset, limit int) ([]domain.Comment, bool, error) {
	var out []domain.Comment
	more, err := s.page(bucketComments, offset, limit, func(v []byte) error {
		var c domain.Comment
		if err := json.Unmarshal(v, &c); err != nil {
			return err
		}
		out = append(out, c)
		return nil
	})
	return out, more, err
}

func (s *Store) Categories(offset, limit int) ([]domain.Category, bool, error) {
	var out []domain.Category
	more, err := s.page(bucketCategories, offset, limit, func(v []byte) error {
		var c domain.Category
		if err := json.Unmarshal(v, &c); err != nil {
			return err
		}
		out = append(out, c)
		return nil
	})
	return out, more, err
}

func (s *Store) Tags(offset, limit int) ([]domain.Tag, bool, error) {
	var out []domain.Tag
	more, err := s.page(bucketTags, offset, limit, func(v []byte) error {
		var t domain.Tag
		if err := json.Unmarshal(v, &t); err != nil {
			return err
		}
		out = append(out, t)
		return nil
	})
	return out, more, err
}

func (s *Store) scan(bucket []byte, fn func(v []byte) error) error {
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).ForEach(func(_, v []byte) error {
			return fn(v)
		})
	})
	if err != nil {
		return errdefs.NewCustomError(errdefs.ErrTypeStoreFailed, "scan failed", err)
	}
	return nil
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// SearchUsersByName returns users whose username contains the keyword,
// case-insensitively.
func (s *Store) SearchUsersByName(keyword string) ([]domain.User, error) {
	var out []domain.User
	err := s.scan(bucketUsers, func(v []byte) error {
		var u domain.User
		if err := json.Unmarshal(v, &u); err != nil {
			return err
		}
		if containsFold(u.Username, keyword) {
			out = append(out, u)
		}
		return nil
	})
	return out, err
}

// SearchPostsByTitle returns published posts whose title contains the keyword.
func (s *Store) SearchPostsByTitle(keyword string) ([]domain.Post, error) {
	var out []domain.Post
	err := s.scan(bucketPosts, func(v []byte) error {
		var p domain.Post
		if err := json.Unmarshal(v, &p); err != nil {
			return err
		}
		if p.Status == domain.PostStatusPublished && containsFold(p.Title, keyword) {
			out = append(out, p)
		}
		return nil
	})
	return out, err
}

// SearchPostsByContent returns published posts whose content contains the keyword.
func (s *Store) SearchPostsByContent(keyword string) ([]domain.Post, error) {
	var out []domain.Post
	err := s.scan(bucketPosts, func(v []byte) error {
		var p domain.Post
		if err := json.Unmarshal(v, &p); err != nil {
			return err
		}
		if p.Status == domain.PostStatusPublished && containsFold(p.Content, keyword) {
			out = append(out, p)
		}
		return nil
	})
	return out, err
}

func (s *Store) SearchCommentsByContent(keyword string) ([]domain.Comment, error) {
	var out []domain.Comment
	err := s.scan(bucketComments, func(v []byte) error {
		var c domain.Comment
		if err := json.Unmarshal(v, &c); err != nil {
			return err
		}
		if containsFold(c.Content, keyword) {
			out = append(out, c)
		}
		return nil
	})
	return out, err
}

func (s *Store) SearchCategoriesByName(keyword string) ([]domain.Category, error) {
	var out []domain.Category
	err := s.scan(bucketCategories, func(v []byte) error {
		var c domain.Category
		if err := json.Unmarshal(v, &c); err != nil {
			return err
		}
		if containsFold(c.Name, keyword) {
			out = append(out, c)
		}
		return nil
	})
	return out, err
}

// SearchTagsByName returns approved tags whose name contains the keyword.
func (s *Store) SearchTagsByName(keyword string) ([]domain.Tag, error) {
	var out []domain.Tag
	err := s.scan(bucketTags, func(v []byte) error {
		var t domain.Tag
		if err := json.Unmarshal(v, &t); err != nil {
			return err
		}
		if t.Approved && containsFold(t.Name, keyword) {
			out = append(out, t)
		}
		return nil
	})
	return out, err
}

func (s *Store) UsersByIDs(ids []int64) ([]domain.User, error) {
	out := make([]domain.User, 0, len(ids))
	for _, id := range ids {
		u, found, err := s.UserByID(id)
		if err != nil {
			return nil, err
		}
		if found {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (s *Store) PostsByIDs(ids []int64) ([]domain.Post, error) {
	out := make([]domain.Post, 0, len(ids))
	for _, id := range ids {
		p, found, err := s.PostByID(id)
		if err != nil {
			return nil, err
		}
		if found {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s *Store) CommentsByIDs(ids []int64) ([]domain.Comment, error) {
	out := make([]domain.Comment, 0, len(ids))
	for _, id := range ids {
		c, found, err := s.CommentByID(id)
		if err != nil {
			return nil, err
		}
		if found {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (s *Store) CategoriesByIDs(ids []int64) ([]domain.Category, error) {
	out := make([]domain.Category, 0, len(ids))
	for _, id := range ids {
		c, found, err := s.CategoryByID(id)
		if err != nil {
			return nil, err
		}
		if found {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (s *Store) TagsByIDs(ids []int64) ([]domain.Tag, error) {
	out := make([]domain.Tag, 0, len(ids))
	for _, id := range ids {
		t, found, err := s.TagByID(id)
		if err != nil {
			return nil, err
		}
		if found {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (s *Store) Counts() (map[string]int, error) {
	counts := make(map[string]int, 5)
	err := s.db.View(func(tx *bolt.Tx) error {
		counts["users"] = tx.Bucket(bucketUsers).Stats().KeyN
		counts["posts"] = tx.Bucket(bucketPosts).Stats().KeyN
		counts["comments"] = tx.Bucket(bucketComments).Stats().KeyN
		counts["categories"] = tx.Bucket(bucketCategories).Stats().KeyN
		counts["tags"] = tx.Bucket(bucketTags).Stats().KeyN
		return nil
	})
	if err != nil {
		return nil, errdefs.NewCustomError(errdefs.ErrTypeStoreFailed, "stats failed", err)
	}
	return counts, nil
}

func itob(id int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(id))
	return buf
}
