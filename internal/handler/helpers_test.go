package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/toptuitions/toptuitions/internal/auth"
	"github.com/toptuitions/toptuitions/internal/catalog"
	"github.com/toptuitions/toptuitions/internal/model"
	"github.com/toptuitions/toptuitions/internal/otp"
	sqliteRepo "github.com/toptuitions/toptuitions/internal/repository/sqlite"
	"github.com/toptuitions/toptuitions/internal/service"
	"github.com/toptuitions/toptuitions/internal/session"
	"github.com/toptuitions/toptuitions/internal/storage"
)

const testCatalogSize = 50

// testApp wires the real services over an in-memory database, the way the
// server does, minus the router.
type testApp struct {
	db          *sqliteRepo.DB
	images      *storage.DiskStore
	sms         *otp.Recorder
	tokens      *auth.TokenService
	auth        *service.AuthService
	catalog     *service.CatalogService
	posts       *service.PostService
	enrollments *service.EnrollmentService
	profiles    *service.ProfileService
	logger      *slog.Logger
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := sqliteRepo.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	images, err := storage.NewDiskStore(t.TempDir(), "/uploads")
	require.NoError(t, err)

	tokens, err := auth.NewTokenService("handler-test-secret-0123456789", time.Hour)
	require.NoError(t, err)

	sms := &otp.Recorder{}
	cat := service.NewCatalogService(catalog.New(testCatalogSize, 1, catalog.NewImageSet("/static", nil)))

	app := &testApp{
		db:      db,
		images:  images,
		sms:     sms,
		tokens:  tokens,
		catalog: cat,
		logger:  logger,
		auth: service.NewAuthService(db, db, tokens, auth.NewPasswordServiceForTest(4), sms,
			service.AuthOptions{CountryCode: "+91"}, logger),
		posts: service.NewPostService(service.PostDeps{
			Posts: db, Likes: db, Comments: db, Enrollments: db, Users: db,
			Images: images, Catalog: cat, PageSize: 10,
		}, logger),
		enrollments: service.NewEnrollmentService(db, db, db, cat, logger),
		profiles:    service.NewProfileService(db, cat, logger),
	}
	return app
}

// user creates an account and returns the session a signed-in request for
// it would carry.
func (a *testApp) user(t *testing.T, email string, role model.Role, profile model.Profile) (*model.User, *session.State) {
	t.Helper()
	if profile.Name == "" {
		profile.Name = "User " + email
	}
	u := &model.User{Email: email, Role: role, Profile: profile}
	require.NoError(t, a.db.CreateUser(context.Background(), u))
	st := a.auth.Session(context.Background(), u.ID)
	require.True(t, st.Authenticated, "session for %s: %s", email, st.Err)
	return u, st
}

// as attaches a session to the request, as auth.LoadSession would.
func as(r *http.Request, st *session.State) *http.Request {
	return r.WithContext(auth.WithSession(r.Context(), st))
}

// withParams sets chi URL parameters on a request served without a router.
func withParams(r *http.Request, kv ...string) *http.Request {
	rctx := chi.NewRouteContext()
	for i := 0; i+1 < len(kv); i += 2 {
		rctx.URLParams.Add(kv[i], kv[i+1])
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func jsonRequest(method, target string, body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			_ = json.NewEncoder(&buf).Encode(body)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), "body: %s", rec.Body.String())
	return v
}

// image is one file part of a multipart form.
type image struct {
	name        string
	contentType string
	data        []byte
}

func pngImage(name string) image {
	return image{name: name, contentType: "image/png", data: []byte("\x89PNG\r\n\x1a\nfake")}
}

// multipartRequest builds a create-post style form.
func multipartRequest(t *testing.T, target string, fields map[string]string, images ...image) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for _, img := range images {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="images"; filename="`+img.name+`"`)
		h.Set("Content-Type", img.contentType)
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(img.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func tokenCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.CookieName {
			return c
		}
	}
	return nil
}
