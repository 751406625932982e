package server

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/forumkit/searchd/internal/api"
	"github.com/forumkit/searchd/internal/log"
	"github.com/forumkit/searchd/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServer struct {
	server *http.Server
	api    huma.API
}

// Options carries the server wiring: the query, reindex and stats
// collaborators plus optional basic-auth credentials guarding the API.
type Options struct {
	Addr      string
	Search    api.SearchInterface
	Reindexer api.ReindexInterface
	Stats     api.StatsInterface
	Username  string
	Password  string
}

func NewHumaConfig(title, version string) huma.Config {
	schemaPrefix := "#/components/schemas/"
	schemasPath := "/schemas"

	registry := huma.NewMapRegistry(schemaPrefix, huma.DefaultSchemaNamer)

	return huma.Config{
		OpenAPI: &huma.OpenAPI{
			OpenAPI: "3.1.0",
			Info: &huma.Info{
				Title:       title,
				Version:     version,
				Description: "Community platform search service with per-type indices and primary-store fallback",
			},
			Components: &huma.Components{
				Schemas: registry,
			},
		},
		OpenAPIPath:   "/openapi",
		DocsPath:      "/docs",
		SchemasPath:   schemasPath,
		Formats:       huma.DefaultFormats,
		DefaultFormat: "application/json",
	}
}

func NewHTTP(opts Options) *HTTPServer {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequestID)
		r.Use(middleware.RealIP)
		r.Use(middleware.Logger)
		r.Use(middleware.Recoverer)
		r.Use(middleware.Timeout(30 * time.Second))
		r.Use(metrics.Middleware())
		if opts.Username != "" {
			r.Use(middleware.BasicAuth("searchd", map[string]string{opts.Username: opts.Password}))
		}

		config := NewHumaConfig("Searchd API", "1.0.0")
		config.DocsPath = ""
		humaAPI := humachi.New(r, config)

		r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte(`<!doctype html>
<html>
	<head>
		<title>Searchd API Reference</title>
		<meta charset="utf-8" />
		<meta name="viewport" content="width=device-width, initial-scale=1" />
	</head>
	<body>
		<script
			id="api-reference"
			data-url="/openapi.json"></script>
		<script src="https://cdn.jsdelivr.net/npm/@scalar/api-reference"></script>
	</body>
</html>`))
		})

		srv := &api.Server{
			Search:    opts.Search,
			Reindexer: opts.Reindexer,
			Stats:     opts.Stats,
		}

		api.RegisterHandlers(srv, humaAPI)
	})

	return &HTTPServer{
		server: &http.Server{
			Addr:         opts.Addr,
			Handler:      r,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

func (s *HTTPServer) Start() error {
	log.Infof("HTTP server listening on %s", s.server.Addr)
	log.Infof("API Documentation: http://localhost%s/docs", s.server.Addr)
	log.Infof("OpenAPI Spec: http://localhost%s/openapi.json", s.server.Addr)
	log.Infof("Health Check: http://localhost%s/health", s.server.Addr)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	log.Infof("shutting down HTTP server")
	return s.server.Shutdown(ctx)
}
