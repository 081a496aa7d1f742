package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/veritaslabs/mnemo/internal/api"
	"github.com/veritaslabs/mnemo/internal/api/handlers"
	"github.com/veritaslabs/mnemo/internal/api/middleware"
)

type RouterConfig struct {
	SearchHandler    *handlers.SearchHandler
	DuplicateHandler *handlers.DuplicateHandler
	ArchiveHandler   *handlers.ArchiveHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 5 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/projects/{projectID}", func(r chi.Router) {
		r.Post("/search", cfg.SearchHandler.Search)
		r.Post("/duplicates/detect", cfg.DuplicateHandler.Detect)
		r.Get("/duplicates/stats", cfg.DuplicateHandler.Stats)
	})

	r.Route("/knowledge/{id}", func(r chi.Router) {
		r.Delete("/duplicate-group", cfg.DuplicateHandler.RemoveFromGroup)
		r.Post("/unarchive", cfg.ArchiveHandler.Unarchive)
	})

	r.Route("/archive", func(r chi.Router) {
		r.Post("/scan", cfg.ArchiveHandler.Scan)
		r.Get("/stats", cfg.ArchiveHandler.Stats)
		r.Get("/log", cfg.ArchiveHandler.Log)
		r.Post("/jobs/{jobID}/export", cfg.ArchiveHandler.Export)
	})

	return r
}
