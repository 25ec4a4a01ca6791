package main

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/graphgen-api/internal/api"
	apiMiddleware "github.com/phrazzld/graphgen-api/internal/api/middleware"
)

// setupRouter creates the application router with all routes and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.Trace(app.logger))
	r.Use(apiMiddleware.CORS(app.config.Server.CORSAllowedOrigins))

	jobHandler := api.NewJobHandler(app.jobs, app.eventLister())
	catalogHandler := api.NewCatalogHandler(app.catalog, app.credentials)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", api.Health)

		r.Group(func(r chi.Router) {
			if app.jwtService != nil {
				r.Use(apiMiddleware.NewAuthMiddleware(app.jwtService).Authenticate)
			}
			api.RegisterRoutes(r, jobHandler, catalogHandler)
		})
	})

	if dir := app.config.Server.StaticDir; dir != "" {
		r.Handle("/*", spaHandler(dir))
	}

	return r
}

// spaHandler serves files under dir and falls back to dir/index.html for
// paths that do not name a file, so client-side routes resolve.
func spaHandler(dir string) http.Handler {
	files := http.FileServer(http.Dir(dir))
	index := filepath.Join(dir, "index.html")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			http.NotFound(w, r)
			return
		}
		name := filepath.Join(dir, filepath.FromSlash(filepath.Clean("/"+r.URL.Path)))
		if info, err := os.Stat(name); err == nil && !info.IsDir() {
			files.ServeHTTP(w, r)
			return
		}
		http.ServeFile(w, r, index)
	})
}
