package search

import (
	"path/filepath"
	"strconv"
	"sync"
	"time"

	bleve "github.com/blevesearch/bleve/v2"
	"github.com/forumkit/searchd/internal/config"
	"github.com/forumkit/searchd/internal/errdefs"
	"github.com/forumkit/searchd/internal/log"
	"github.com/forumkit/searchd/internal/metrics"
)

// Logical index names in the order results are assembled.
var logicalIndices = []string{IndexUsers, IndexCategories, IndexTags, IndexPosts, IndexComments}

// Backend owns the bleve indices, one per logical index. It is a long-lived
// shared resource; all mutation is idempotent upsert/delete by entity id, so
// concurrent readers and writers need no coordination beyond the handle map
// lock.
type Backend struct {
	cfg     config.SearchConfig
	mu      sync.RWMutex
	indices map[string]bleve.Index
}

func NewBackend(cfg config.SearchConfig) *Backend {
	return &Backend{
		cfg:     cfg,
		indices: make(map[string]bleve.Index, len(logicalIndices)),
	}
}

// Open ensures every logical index exists with the declared mapping.
// Idempotent; a failure is logged and leaves that index absent, which
// queries treat the same as an unavailable backend. Called once at startup.
func (b *Backend) Open() {
	if !b.cfg.Enabled {
		log.Infof("search backend disabled, indices not opened")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, logical := range logicalIndices {
		if _, ok := b.indices[logical]; ok {
			continue
		}
		path := filepath.Join(b.cfg.IndexDir, b.cfg.IndexName(logical))
		idx, err := openOrCreateIndex(path)
		if err != nil {
			log.Warnf("failed to ensure index %s: %v", b.cfg.IndexName(logical), err)
			continue
		}
		b.indices[logical] = idx
	}
}

func (b *Backend) index(logical string) (bleve.Index, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	idx, ok := b.indices[logical]
	return idx, ok
}

// indexRecord is the on-index shape of a Document: the factory output plus
// the materialized phonetic forms.
type indexRecord struct {
	Type      string     `json:"type"`
	Title     string     `json:"title"`
	TitlePY   string     `json:"title_py,omitempty"`
	Content   string     `json:"content"`
	ContentPY string     `json:"content_py,omitempty"`
	Author    string     `json:"author,omitempty"`
	Category  string     `json:"category,omitempty"`
	Tags      []string   `json:"tags,omitempty"`
	PostID    int64      `json:"postId,omitempty"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
}

// Index upserts a document keyed by its entity id. Documents without an id
// are dropped silently; re-indexing an id overwrites, never duplicates.
func (b *Backend) Index(logical string, doc *Document) error {
	if doc == nil || doc.EntityID == 0 {
		return nil
	}

	idx, ok := b.index(logical)
	if !ok {
		return errdefs.ErrIndexNotFound
	}

	record := indexRecord{
		Type:      doc.Type,
		Title:     doc.Title,
		TitlePY:   Transliterate(doc.Title),
		Content:   doc.Content,
		ContentPY: Transliterate(doc.Content),
		Author:    doc.Author,
		Category:  doc.Category,
		Tags:      doc.Tags,
		PostID:    doc.PostID,
		CreatedAt: doc.CreatedAt,
	}

	err := idx.Index(docID(doc.EntityID), record)
	metrics.RecordIndexWrite(logical, "index", err)
	if err != nil {
		return errdefs.NewCustomError(errdefs.ErrTypeIndexingFailed, logical, err)
	}
	log.Debugf("indexed %s/%d", logical, doc.EntityID)
	return nil
}

// Delete removes the document for an entity id. Deleting an absent id is a
// no-op.
func (b *Backend) Delete(logical string, id int64) error {
	if id == 0 {
		return nil
	}

	idx, ok := b.index(logical)
	if !ok {
		return errdefs.ErrIndexNotFound
	}

	err := idx.Delete(docID(id))
	metrics.RecordIndexWrite(logical, "delete", err)
	if err != nil {
		return errdefs.NewCustomError(errdefs.ErrTypeIndexingFailed, logical, err)
	}
	log.Debugf("deleted %s/%d", logical, id)
	return nil
}

func (b *Backend) search(logical string, req *bleve.SearchRequest) (*bleve.SearchResult, error) {
	idx, ok := b.index(logical)
	if !ok {
		return nil, errdefs.ErrIndexNotFound
	}

	result, err := idx.Search(req)
	if err != nil {
		return nil, errdefs.NewCustomError(errdefs.ErrTypeSearchFailed, logical, err)
	}
	return result, nil
}

// DocCounts returns the document count per logical index.
func (b *Backend) DocCounts() map[string]uint64 {
	counts := make(map[string]uint64, len(logicalIndices))
	b.mu.RLock()
	defer b.mu.RUnlock()
	for logical, idx := range b.indices {
		count, err := idx.DocCount()
		if err != nil {
			log.Warnf("doc count failed for %s: %v", logical, err)
			continue
		}
		counts[logical] = count
	}
	return counts
}

func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var firstErr error
	for logical, idx := range b.indices {
		if err := idx.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(b.indices, logical)
	}
	return firstErr
}

func docID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func parseDocID(id string) int64 {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
