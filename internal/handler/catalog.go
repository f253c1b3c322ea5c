package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/toptuitions/toptuitions/internal/service"
)

// CatalogHandler serves the read-only tuition listings.
type CatalogHandler struct {
	catalog *service.CatalogService
	logger  *slog.Logger
}

func NewCatalogHandler(catalog *service.CatalogService, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{catalog: catalog, logger: logger}
}

// HandleList runs a listing query.
//
// HTTP: GET /api/tuitions?name=&location=&sort=rating|name-asc|name-desc
func (h *CatalogHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := h.catalog.Search(q.Get("name"), q.Get("location"), q.Get("sort"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleGet returns one listing.
//
// HTTP: GET /api/tuitions/{id}
func (h *CatalogHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := h.catalog.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	rec, err := h.catalog.Get(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// HandleFeatured returns the home page selection.
//
// HTTP: GET /api/tuitions/featured
func (h *CatalogHandler) HandleFeatured(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.catalog.Featured())
}

// HandleLocations lists the location filter choices, "All" first.
//
// HTTP: GET /api/locations
func (h *CatalogHandler) HandleLocations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.catalog.Locations())
}
