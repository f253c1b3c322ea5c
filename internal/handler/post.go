package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/toptuitions/toptuitions/internal/apperror"
	"github.com/toptuitions/toptuitions/internal/auth"
	"github.com/toptuitions/toptuitions/internal/feed"
	"github.com/toptuitions/toptuitions/internal/model"
	"github.com/toptuitions/toptuitions/internal/service"
	"github.com/toptuitions/toptuitions/internal/storage"
)

// maxPostForm bounds a whole create-post request: every image at its size
// limit plus room for the text fields.
const maxPostForm = storage.MaxImages*storage.MaxImageBytes + 1<<20

// PostHandler serves the feed, posts, likes, comments and enroll-via-post.
type PostHandler struct {
	posts       *service.PostService
	enrollments *service.EnrollmentService
	catalog     *service.CatalogService
	logger      *slog.Logger
}

func NewPostHandler(
	posts *service.PostService,
	enrollments *service.EnrollmentService,
	catalog *service.CatalogService,
	logger *slog.Logger,
) *PostHandler {
	return &PostHandler{posts: posts, enrollments: enrollments, catalog: catalog, logger: logger}
}

// HandleFeed returns the feed with a filter and sort applied.
//
// HTTP: GET /api/feed?filter=all|enrolled|popular&sort=recent|popular&more=true
//
// more=true fetches the next page before answering. The enrolled filter
// needs a signed-in student; for anyone else it matches nothing.
func (h *PostHandler) HandleFeed(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	view, err := feed.ParseView(q.Get("filter"), q.Get("sort"))
	if err != nil {
		writeError(w, err)
		return
	}
	more := false
	if raw := q.Get("more"); raw != "" {
		if more, err = strconv.ParseBool(raw); err != nil {
			writeError(w, apperror.ValidationFailed("more", "more must be true or false"))
			return
		}
	}

	if err := h.withEnrolled(r, &view); err != nil {
		writeError(w, err)
		return
	}

	page, err := h.posts.Feed(r.Context(), view, more)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *PostHandler) withEnrolled(r *http.Request, view *feed.View) error {
	if view.Filter != feed.FilterEnrolled {
		return nil
	}
	s := auth.SessionFromContext(r.Context())
	if !s.IsStudent() {
		view.Enrolled = map[int]bool{}
		return nil
	}
	act, err := h.enrollments.Activity(r.Context(), s.User.UID)
	if err != nil {
		return err
	}
	view.Enrolled = act.EnrolledMap()
	return nil
}

// HandleCreate publishes a post.
//
// HTTP: POST /api/posts   (multipart: content, images[])
// Auth: tuition owner
func (h *PostHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	uploads, cleanup, err := readUploads(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	defer cleanup()

	post, err := h.posts.Create(r.Context(), userID, r.FormValue("content"), uploads)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, post)
}

// HandleGet returns one post.
//
// HTTP: GET /api/posts/{id}
func (h *PostHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	post, err := h.posts.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// HandleUpdate edits the caller's own post.
//
// HTTP: PATCH /api/posts/{id}
// BODY: {"content": "...", "images": ["/uploads/..."]}
func (h *PostHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var patch model.PostPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, err)
		return
	}
	patch.ID = chi.URLParam(r, "id")

	userID, _ := auth.UserIDFromContext(r.Context())
	post, err := h.posts.Update(r.Context(), userID, patch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// HandleDelete removes the caller's own post.
//
// HTTP: DELETE /api/posts/{id}
func (h *PostHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	if err := h.posts.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleLike and HandleUnlike are idempotent.
//
// HTTP: POST|DELETE /api/posts/{id}/like
func (h *PostHandler) HandleLike(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	changed, err := h.posts.Like(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, changedResponse{Changed: changed})
}

func (h *PostHandler) HandleUnlike(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	changed, err := h.posts.Unlike(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, changedResponse{Changed: changed})
}

type commentRequest struct {
	Text string `json:"text"`
}

// HandleAddComment adds a comment under a post.
//
// HTTP: POST /api/posts/{id}/comments
// BODY: {"text": "..."}
func (h *PostHandler) HandleAddComment(w http.ResponseWriter, r *http.Request) {
	var req commentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	userID, _ := auth.UserIDFromContext(r.Context())
	c, err := h.posts.AddComment(r.Context(), userID, chi.URLParam(r, "id"), req.Text)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// HandleComments lists a post's comments, oldest first.
//
// HTTP: GET /api/posts/{id}/comments
func (h *PostHandler) HandleComments(w http.ResponseWriter, r *http.Request) {
	cs, err := h.posts.Comments(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cs)
}

// HandleEnroll enrolls the student in the tuition the post belongs to.
//
// HTTP: POST /api/posts/{id}/enroll
func (h *PostHandler) HandleEnroll(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	created, err := h.posts.Enroll(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, changedResponse{Changed: created})
}

// HandleOwnerPosts lists the caller's posts for the owner dashboard.
//
// HTTP: GET /api/owners/me/posts
func (h *PostHandler) HandleOwnerPosts(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	posts, err := h.posts.OwnerPosts(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

// HandleTuitionPosts lists the latest posts linked to a catalog listing.
//
// HTTP: GET /api/tuitions/{id}/posts
func (h *PostHandler) HandleTuitionPosts(w http.ResponseWriter, r *http.Request) {
	id, err := h.catalog.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	posts, err := h.posts.TuitionPosts(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

// readUploads parses a multipart post form and opens every "images" part.
// The returned cleanup closes the files and removes multipart temp files;
// it is safe to call even when err != nil.
func readUploads(w http.ResponseWriter, r *http.Request) ([]storage.Upload, func(), error) {
	noop := func() {}
	r.Body = http.MaxBytesReader(w, r.Body, maxPostForm)
	if err := r.ParseMultipartForm(storage.MaxImageBytes); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return nil, noop, apperror.ValidationFailed("images", "upload is too large")
		}
		return nil, noop, apperror.ValidationFailed("body", "expected a multipart form")
	}

	headers := r.MultipartForm.File["images"]
	if len(headers) > storage.MaxImages {
		r.MultipartForm.RemoveAll()
		return nil, noop, apperror.ValidationFailed("images", fmt.Sprintf("at most %d images per post", storage.MaxImages))
	}

	var files []multipart.File
	cleanup := func() {
		for _, f := range files {
			f.Close()
		}
		r.MultipartForm.RemoveAll()
	}

	uploads := make([]storage.Upload, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			cleanup()
			return nil, noop, fmt.Errorf("handler: opening upload %s: %w", fh.Filename, err)
		}
		files = append(files, f)
		uploads = append(uploads, storage.Upload{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
			Body:        f,
		})
	}
	return uploads, cleanup, nil
}
