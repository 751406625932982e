package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/forumkit/searchd/internal/domain"
	"github.com/forumkit/searchd/internal/search"
)

type mockSearch struct{}

func (m *mockSearch) GlobalSearch(keyword string) ([]search.Result, search.Mode) {
	return []search.Result{{Type: search.TypePost, ID: 1, Text: "hit"}}, search.Mode{}
}

func (m *mockSearch) SearchUsers(keyword string) ([]domain.User, search.Mode) {
	return []domain.User{{ID: 1, Username: "alice"}}, search.Mode{}
}

func (m *mockSearch) SearchPosts(keyword string) ([]domain.Post, search.Mode) {
	return nil, search.Mode{}
}

func (m *mockSearch) SearchPostsByTitle(keyword string) ([]domain.Post, search.Mode) {
	return nil, search.Mode{}
}

func (m *mockSearch) SearchPostsByContent(keyword string) ([]domain.Post, search.Mode) {
	return nil, search.Mode{}
}

func (m *mockSearch) SearchComments(keyword string) ([]domain.Comment, search.Mode) {
	return nil, search.Mode{}
}

func (m *mockSearch) SearchCategories(keyword string) ([]domain.Category, search.Mode) {
	return nil, search.Mode{}
}

func (m *mockSearch) SearchTags(keyword string) ([]domain.Tag, search.Mode) {
	return nil, search.Mode{}
}

type mockReindexer struct {
	running bool
}

func (m *mockReindexer) ReindexAll() error { return nil }

func (m *mockReindexer) Running() bool { return m.running }

type mockStats struct{}

func (m *mockStats) DocCounts() map[string]uint64 { return map[string]uint64{"posts": 2} }

func (m *mockStats) Counts() (map[string]int, error) { return map[string]int{"posts": 2}, nil }

func testServer(username, password string) *HTTPServer {
	return NewHTTP(Options{
		Addr:      ":0",
		Search:    &mockSearch{},
		Reindexer: &mockReindexer{},
		Stats:     &mockStats{},
		Username:  username,
		Password:  password,
	})
}

func TestNewHTTP(t *testing.T) {
	srv := testServer("", "")

	if srv == nil {
		t.Fatal("NewHTTP() returned nil")
	}

	if srv.server == nil {
		t.Error("server should not be nil")
	}
}

func TestHTTPServer_Routes(t *testing.T) {
	srv := testServer("", "")

	tests := []struct {
		name   string
		path   string
		method string
		status int
	}{
		{
			name:   "health endpoint",
			path:   "/health",
			method: http.MethodGet,
			status: http.StatusOK,
		},
		{
			name:   "metrics endpoint",
			path:   "/metrics",
			method: http.MethodGet,
			status: http.StatusOK,
		},
		{
			name:   "search endpoint",
			path:   "/search?q=test",
			method: http.MethodGet,
			status: http.StatusOK,
		},
		{
			name:   "search requires keyword",
			path:   "/search",
			method: http.MethodGet,
			status: http.StatusUnprocessableEntity,
		},
		{
			name:   "typed search endpoint",
			path:   "/search/users?q=test",
			method: http.MethodGet,
			status: http.StatusOK,
		},
		{
			name:   "typed search rejects unknown type",
			path:   "/search/bogus?q=test",
			method: http.MethodGet,
			status: http.StatusUnprocessableEntity,
		},
		{
			name:   "reindex endpoint",
			path:   "/reindex",
			method: http.MethodPost,
			status: http.StatusOK,
		},
		{
			name:   "stats endpoint",
			path:   "/stats",
			method: http.MethodGet,
			status: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			rec := httptest.NewRecorder()

			srv.server.Handler.ServeHTTP(rec, req)

			if rec.Code != tt.status {
				t.Errorf("status = %v, want %v", rec.Code, tt.status)
			}
		})
	}
}

func TestHTTPServer_BasicAuth(t *testing.T) {
	srv := testServer("admin", "secret")

	req := httptest.NewRequest(http.MethodGet, "/search?q=test", nil)
	rec := httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status without credentials = %v, want %v", rec.Code, http.StatusUnauthorized)
	}

	req = httptest.NewRequest(http.MethodGet, "/search?q=test", nil)
	req.SetBasicAuth("admin", "secret")
	rec = httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status with credentials = %v, want %v", rec.Code, http.StatusOK)
	}

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	rec = httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("health must not require auth, got %v", rec.Code)
	}
}

func TestHTTPServer_Shutdown(t *testing.T) {
	srv := testServer("", "")

	go func() {
		srv.Start()
	}()

	time.Sleep(100 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}
