package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/toptuitions/toptuitions/internal/auth"
	"github.com/toptuitions/toptuitions/internal/service"
)

// EnrollmentHandler serves a student's enrollments and activity.
type EnrollmentHandler struct {
	enrollments *service.EnrollmentService
	catalog     *service.CatalogService
	logger      *slog.Logger
}

func NewEnrollmentHandler(enrollments *service.EnrollmentService, catalog *service.CatalogService, logger *slog.Logger) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments, catalog: catalog, logger: logger}
}

// HandleEnroll joins a catalog tuition. Unknown IDs are 404.
//
// HTTP: POST /api/tuitions/{id}/enroll
func (h *EnrollmentHandler) HandleEnroll(w http.ResponseWriter, r *http.Request) {
	id, err := h.catalog.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	userID, _ := auth.UserIDFromContext(r.Context())
	created, err := h.enrollments.Enroll(r.Context(), userID, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, changedResponse{Changed: created})
}

// HandleUnenroll leaves a catalog tuition.
//
// HTTP: DELETE /api/tuitions/{id}/enroll
func (h *EnrollmentHandler) HandleUnenroll(w http.ResponseWriter, r *http.Request) {
	id, err := h.catalog.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	userID, _ := auth.UserIDFromContext(r.Context())
	removed, err := h.enrollments.Unenroll(r.Context(), userID, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, changedResponse{Changed: removed})
}

// HandleList returns the student's enrolled tuitions.
//
// HTTP: GET /api/enrollments
func (h *EnrollmentHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	list, err := h.enrollments.List(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// HandleActivity returns the enrolled/liked/commented membership sets.
//
// HTTP: GET /api/activity
func (h *EnrollmentHandler) HandleActivity(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	act, err := h.enrollments.Activity(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, act.Snapshot())
}
