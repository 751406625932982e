package search

import (
	"sync/atomic"

	"github.com/forumkit/searchd/internal/config"
)

// Settings holds the hot-reloadable search parameters. Reads are lock-free;
// Apply swaps all values at once when the config file changes on disk.
type Settings struct {
	enabled         atomic.Bool
	maxResults      atomic.Int64
	snippetLength   atomic.Int64
	highlightWindow atomic.Int64
}

func NewSettings(cfg config.SearchConfig) *Settings {
	s := &Settings{}
	s.Apply(cfg)
	return s
}

func (s *Settings) Apply(cfg config.SearchConfig) {
	s.enabled.Store(cfg.Enabled)
	s.maxResults.Store(int64(cfg.MaxResults))
	s.snippetLength.Store(int64(cfg.SnippetLength))
	s.highlightWindow.Store(int64(cfg.HighlightWindow))
}

func (s *Settings) Enabled() bool { return s.enabled.Load() }

func (s *Settings) MaxResults() int { return int(s.maxResults.Load()) }

func (s *Settings) SnippetLength() int { return int(s.snippetLength.Load()) }

func (s *Settings) HighlightWindow() int { return int(s.highlightWindow.Load()) }
