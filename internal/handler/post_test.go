package handler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toptuitions/toptuitions/internal/handler"
	"github.com/toptuitions/toptuitions/internal/model"
	"github.com/toptuitions/toptuitions/internal/service"
	"github.com/toptuitions/toptuitions/internal/session"
)

type postFixture struct {
	app     *testApp
	h       *handler.PostHandler
	owner   *model.User
	ownerSt *session.State
	student *model.User
	studSt  *session.State
}

func newPostFixture(t *testing.T) *postFixture {
	t.Helper()
	app := newTestApp(t)
	owner, ownerSt := app.user(t, "owner@example.com", model.RoleTuitionOwner,
		model.Profile{Name: "Rao", TuitionName: "Rao Classes", TuitionID: 4})
	student, studSt := app.user(t, "kiran@example.com", model.RoleStudent, model.Profile{Name: "Kiran"})
	return &postFixture{
		app:     app,
		h:       handler.NewPostHandler(app.posts, app.enrollments, app.catalog, app.logger),
		owner:   owner,
		ownerSt: ownerSt,
		student: student,
		studSt:  studSt,
	}
}

func (f *postFixture) create(t *testing.T, content string, images ...image) model.Post {
	t.Helper()
	rec := httptest.NewRecorder()
	f.h.HandleCreate(rec, as(multipartRequest(t, "/api/posts", map[string]string{"content": content}, images...), f.ownerSt))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[model.Post](t, rec)
}

func TestPostHandler_CreateWithImages(t *testing.T) {
	f := newPostFixture(t)

	post := f.create(t, "Admissions open", pngImage("front.png"), pngImage("class room.png"))

	assert.Equal(t, "Rao Classes", post.TuitionName)
	assert.Equal(t, 4, post.TuitionID)
	require.Len(t, post.Images, 2)
	for _, url := range post.Images {
		assert.True(t, strings.HasPrefix(url, "/uploads/posts/"+f.owner.ID+"/"), url)
		rel := strings.TrimPrefix(url, "/uploads/")
		_, err := os.Stat(filepath.Join(f.app.images.Root(), filepath.FromSlash(rel)))
		assert.NoError(t, err, "image %s should exist on disk", url)
	}
}

func TestPostHandler_CreateRejections(t *testing.T) {
	f := newPostFixture(t)

	tests := []struct {
		name   string
		req    *http.Request
		status int
	}{
		{"empty content", as(multipartRequest(t, "/api/posts", map[string]string{"content": "  "}), f.ownerSt), http.StatusBadRequest},
		{"student", as(multipartRequest(t, "/api/posts", map[string]string{"content": "hi"}), f.studSt), http.StatusForbidden},
		{"bad type", as(multipartRequest(t, "/api/posts", map[string]string{"content": "hi"},
			image{name: "notes.pdf", contentType: "application/pdf", data: []byte("%PDF")}), f.ownerSt), http.StatusBadRequest},
		{"five images", as(multipartRequest(t, "/api/posts", map[string]string{"content": "hi"},
			pngImage("1.png"), pngImage("2.png"), pngImage("3.png"), pngImage("4.png"), pngImage("5.png")), f.ownerSt), http.StatusBadRequest},
		{"not multipart", as(jsonRequest(http.MethodPost, "/api/posts", `{"content":"hi"}`), f.ownerSt), http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			f.h.HandleCreate(rec, tt.req)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}

	entries, _ := os.ReadDir(filepath.Join(f.app.images.Root(), "posts"))
	assert.Empty(t, entries, "rejected posts must not leave files behind")
}

func TestPostHandler_Feed(t *testing.T) {
	f := newPostFixture(t)
	first := f.create(t, "first")
	f.create(t, "second")

	rec := httptest.NewRecorder()
	f.h.HandleFeed(rec, httptest.NewRequest(http.MethodGet, "/api/feed", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[service.FeedPage](t, rec)
	require.Len(t, page.Posts, 2)
	assert.Equal(t, "second", page.Posts[0].Content)
	assert.False(t, page.HasMore)

	t.Run("enrolled filter for a student", func(t *testing.T) {
		_, err := f.app.posts.Enroll(context.Background(), f.student.ID, first.ID)
		require.NoError(t, err)

		rec := httptest.NewRecorder()
		f.h.HandleFeed(rec, as(httptest.NewRequest(http.MethodGet, "/api/feed?filter=enrolled", nil), f.studSt))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decode[service.FeedPage](t, rec).Posts, 2, "both posts belong to listing 4")
	})

	t.Run("enrolled filter for a visitor is empty", func(t *testing.T) {
		rec := httptest.NewRecorder()
		f.h.HandleFeed(rec, httptest.NewRequest(http.MethodGet, "/api/feed?filter=enrolled", nil))
		assert.Empty(t, decode[service.FeedPage](t, rec).Posts)
	})

	for _, q := range []string{"filter=mine", "sort=oldest", "more=maybe"} {
		t.Run("bad query "+q, func(t *testing.T) {
			rec := httptest.NewRecorder()
			f.h.HandleFeed(rec, httptest.NewRequest(http.MethodGet, "/api/feed?"+q, nil))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestPostHandler_LikeCommentEnroll(t *testing.T) {
	f := newPostFixture(t)
	post := f.create(t, "hello")
	byID := func(r *http.Request) *http.Request { return withParams(as(r, f.studSt), "id", post.ID) }

	rec := httptest.NewRecorder()
	f.h.HandleLike(rec, byID(httptest.NewRequest(http.MethodPost, "/", nil)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"changed":true}`, rec.Body.String())

	rec = httptest.NewRecorder()
	f.h.HandleLike(rec, byID(httptest.NewRequest(http.MethodPost, "/", nil)))
	assert.JSONEq(t, `{"changed":false}`, rec.Body.String())

	rec = httptest.NewRecorder()
	f.h.HandleAddComment(rec, byID(jsonRequest(http.MethodPost, "/", map[string]string{"text": "Is there a demo class?"})))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "Kiran", decode[model.Comment](t, rec).AuthorName)

	rec = httptest.NewRecorder()
	f.h.HandleEnroll(rec, byID(httptest.NewRequest(http.MethodPost, "/", nil)))
	assert.JSONEq(t, `{"changed":true}`, rec.Body.String())

	rec = httptest.NewRecorder()
	f.h.HandleGet(rec, byID(httptest.NewRequest(http.MethodGet, "/", nil)))
	got := decode[model.Post](t, rec)
	assert.Equal(t, 1, got.Likes)
	assert.Equal(t, 1, got.Comments)
	assert.Equal(t, 1, got.Enrollments)

	rec = httptest.NewRecorder()
	f.h.HandleComments(rec, byID(httptest.NewRequest(http.MethodGet, "/", nil)))
	assert.Len(t, decode[[]model.Comment](t, rec), 1)

	rec = httptest.NewRecorder()
	f.h.HandleUnlike(rec, byID(httptest.NewRequest(http.MethodDelete, "/", nil)))
	assert.JSONEq(t, `{"changed":true}`, rec.Body.String())

	rec = httptest.NewRecorder()
	f.h.HandleLike(rec, withParams(as(httptest.NewRequest(http.MethodPost, "/", nil), f.studSt), "id", "missing"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPostHandler_UpdateAndDelete(t *testing.T) {
	f := newPostFixture(t)
	post := f.create(t, "draft", pngImage("a.png"))

	rec := httptest.NewRecorder()
	f.h.HandleUpdate(rec, withParams(as(jsonRequest(http.MethodPatch, "/", map[string]any{
		"content": "final", "images": []string{},
	}), f.ownerSt), "id", post.ID))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[model.Post](t, rec)
	assert.Equal(t, "final", updated.Content)
	assert.Empty(t, updated.Images)

	rec = httptest.NewRecorder()
	f.h.HandleDelete(rec, withParams(as(httptest.NewRequest(http.MethodDelete, "/", nil), f.studSt), "id", post.ID))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	f.h.HandleDelete(rec, withParams(as(httptest.NewRequest(http.MethodDelete, "/", nil), f.ownerSt), "id", post.ID))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	f.h.HandleGet(rec, withParams(httptest.NewRequest(http.MethodGet, "/", nil), "id", post.ID))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPostHandler_OwnerAndTuitionPosts(t *testing.T) {
	f := newPostFixture(t)
	f.create(t, "one")

	rec := httptest.NewRecorder()
	f.h.HandleOwnerPosts(rec, as(httptest.NewRequest(http.MethodGet, "/api/owners/me/posts", nil), f.ownerSt))
	assert.Len(t, decode[[]model.Post](t, rec), 1)

	rec = httptest.NewRecorder()
	f.h.HandleTuitionPosts(rec, withParams(httptest.NewRequest(http.MethodGet, "/", nil), "id", "4"))
	assert.Len(t, decode[[]model.Post](t, rec), 1)

	for _, id := range []string{"0", "abc", "9999"} {
		rec = httptest.NewRecorder()
		f.h.HandleTuitionPosts(rec, withParams(httptest.NewRequest(http.MethodGet, "/", nil), "id", id))
		assert.Equal(t, http.StatusNotFound, rec.Code, "id %s", id)
	}
}
