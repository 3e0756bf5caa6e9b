package web

import (
	"io/fs"
	"net/http"
)

// RegisterRoutes registers all dashboard routes on the provided mux.
// Pages are served at / and /app/*, static assets at /static/*.
func RegisterRoutes(mux *http.ServeMux, h *Handler) {
	staticFS, _ := fs.Sub(StaticFS, "static")
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(staticFS)))

	mux.HandleFunc("GET /{$}", h.Dashboard)
	mux.HandleFunc("GET /app/changes/{change}/{patchset}", h.ChangeDetail)
	mux.HandleFunc("POST /app/changes/{change}/{patchset}/refresh", h.RefreshChange)
}
