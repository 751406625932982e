package api

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"github.com/forumkit/searchd/internal/domain"
	"github.com/forumkit/searchd/internal/errdefs"
	"github.com/forumkit/searchd/internal/log"
	"github.com/forumkit/searchd/internal/search"
)

type SearchInterface interface {
	GlobalSearch(keyword string) ([]search.Result, search.Mode)
	SearchUsers(keyword string) ([]domain.User, search.Mode)
	SearchPosts(keyword string) ([]domain.Post, search.Mode)
	SearchPostsByTitle(keyword string) ([]domain.Post, search.Mode)
	SearchPostsByContent(keyword string) ([]domain.Post, search.Mode)
	SearchComments(keyword string) ([]domain.Comment, search.Mode)
	SearchCategories(keyword string) ([]domain.Category, search.Mode)
	SearchTags(keyword string) ([]domain.Tag, search.Mode)
}

type ReindexInterface interface {
	ReindexAll() error
	Running() bool
}

// StatsInterface reports document counts per index and entity counts from
// the primary store.
type StatsInterface interface {
	DocCounts() map[string]uint64
	Counts() (map[string]int, error)
}

type Server struct {
	Search    SearchInterface
	Reindexer ReindexInterface
	Stats     StatsInterface
}

type SearchInput struct {
	Query string `query:"q" required:"true" minLength:"1" doc:"Search keyword" example:"open source"`
}

type TypedSearchInput struct {
	Type  string `path:"type" enum:"users,posts,post-titles,post-contents,comments,categories,tags" doc:"Entity type to search"`
	Query string `query:"q" required:"true" minLength:"1" doc:"Search keyword" example:"open source"`
}

type SearchOutput struct {
	Body struct {
		Mode    search.Mode     `json:"mode"`
		Results []search.Result `json:"results"`
	}
}

type TypedSearchOutput struct {
	Body struct {
		Mode       search.Mode       `json:"mode"`
		Users      []domain.User     `json:"users,omitempty"`
		Posts      []domain.Post     `json:"posts,omitempty"`
		Comments   []domain.Comment  `json:"comments,omitempty"`
		Categories []domain.Category `json:"categories,omitempty"`
		Tags       []domain.Tag      `json:"tags,omitempty"`
	}
}

type ReindexOutput struct {
	Body struct {
		Status string `json:"status" example:"reindex started"`
	}
}

type StatsOutput struct {
	Body struct {
		Indexed    map[string]uint64 `json:"indexed"`
		Stored     map[string]int    `json:"stored"`
		Reindexing bool              `json:"reindexing"`
	}
}

func RegisterHandlers(srv *Server, api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "search",
		Summary:     "Search all entity types",
		Description: "Relevance-ranked search across users, posts, comments, categories and tags with highlighted snippets",
		Method:      "GET",
		Path:        "/search",
		Tags:        []string{"Search"},
	}, func(ctx context.Context, input *SearchInput) (*SearchOutput, error) {
		results, mode := srv.Search.GlobalSearch(input.Query)
		out := &SearchOutput{}
		out.Body.Mode = mode
		out.Body.Results = results
		if out.Body.Results == nil {
			out.Body.Results = []search.Result{}
		}
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "searchTyped",
		Summary:     "Search one entity type",
		Description: "Returns full entities of a single type in relevance order",
		Method:      "GET",
		Path:        "/search/{type}",
		Tags:        []string{"Search"},
	}, func(ctx context.Context, input *TypedSearchInput) (*TypedSearchOutput, error) {
		out := &TypedSearchOutput{}
		switch input.Type {
		case "users":
			out.Body.Users, out.Body.Mode = srv.Search.SearchUsers(input.Query)
		case "posts":
			out.Body.Posts, out.Body.Mode = srv.Search.SearchPosts(input.Query)
		case "post-titles":
			out.Body.Posts, out.Body.Mode = srv.Search.SearchPostsByTitle(input.Query)
		case "post-contents":
			out.Body.Posts, out.Body.Mode = srv.Search.SearchPostsByContent(input.Query)
		case "comments":
			out.Body.Comments, out.Body.Mode = srv.Search.SearchComments(input.Query)
		case "categories":
			out.Body.Categories, out.Body.Mode = srv.Search.SearchCategories(input.Query)
		case "tags":
			out.Body.Tags, out.Body.Mode = srv.Search.SearchTags(input.Query)
		default:
			return nil, huma.Error400BadRequest("unknown search type " + input.Type)
		}
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "reindex",
		Summary:     "Trigger full reindex",
		Description: "Rebuild all indices from the primary store (async operation)",
		Method:      "POST",
		Path:        "/reindex",
		Tags:        []string{"Index"},
	}, func(ctx context.Context, input *struct{}) (*ReindexOutput, error) {
		if srv.Reindexer.Running() {
			return nil, huma.Error409Conflict("reindex already running")
		}

		go func() {
			if err := srv.Reindexer.ReindexAll(); err != nil {
				if errors.Is(err, errdefs.ErrReindexRunning) {
					return
				}
				log.Errorf("reindex failed: %v", err)
			}
		}()

		return &ReindexOutput{
			Body: struct {
				Status string `json:"status" example:"reindex started"`
			}{
				Status: "reindex started",
			},
		}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "stats",
		Summary:     "Get index statistics",
		Description: "Document counts per index and entity counts in the primary store",
		Method:      "GET",
		Path:        "/stats",
		Tags:        []string{"Index"},
	}, func(ctx context.Context, input *struct{}) (*StatsOutput, error) {
		stored, err := srv.Stats.Counts()
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to read store counts", err)
		}

		out := &StatsOutput{}
		out.Body.Indexed = srv.Stats.DocCounts()
		out.Body.Stored = stored
		out.Body.Reindexing = srv.Reindexer.Running()
		return out, nil
	})
}
