// Package handler contains the HTTP handlers of TopTuitions: a JSON API
// under /api and server-rendered pages for the browser.
//
// Handlers are glue. They parse the request, call one service method and
// write the response; rules about roles, ownership and validation live in
// the service package. Role guards run earlier, as middleware in the
// server package, so a page handler can assume its role is already checked.
package handler

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/toptuitions/toptuitions/internal/apperror"
	"github.com/toptuitions/toptuitions/internal/auth"
	"github.com/toptuitions/toptuitions/internal/feed"
	"github.com/toptuitions/toptuitions/internal/model"
	"github.com/toptuitions/toptuitions/internal/service"
	"github.com/toptuitions/toptuitions/internal/session"
	"github.com/toptuitions/toptuitions/internal/storage"
	"github.com/toptuitions/toptuitions/web"
)

// pageNames are the templates under web/templates, each rendered inside base.html.
var pageNames = []string{
	"home", "feed", "about", "tuitions", "tuition", "login",
	"student_dashboard", "profile", "tuition_dashboard", "create_post", "not_found",
}

// PageDeps bundles the services the pages read from. Auth may be nil when
// authentication is disabled.
type PageDeps struct {
	Auth        *service.AuthService
	Catalog     *service.CatalogService
	Posts       *service.PostService
	Enrollments *service.EnrollmentService
	Profiles    *service.ProfileService
}

// PageHandler renders the HTML pages. Templates are parsed once at startup,
// one set per page, so every page can define its own "content" block.
type PageHandler struct {
	deps      PageDeps
	templates map[string]*template.Template
	logger    *slog.Logger
}

// page is the data every template receives.
type page struct {
	Title   string
	Session *session.State
	Error   string
	Notice  string
	Data    any
}

var templateFuncs = template.FuncMap{
	"date":   func(t time.Time) string { return t.Format("2 Jan 2006") },
	"rating": func(f float64) string { return strconv.FormatFloat(f, 'f', 1, 64) },
}

func NewPageHandler(deps PageDeps, logger *slog.Logger) (*PageHandler, error) {
	templates := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		t, err := template.New("base").Funcs(templateFuncs).ParseFS(web.Templates,
			"templates/base.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("handler: parsing %s template: %w", name, err)
		}
		templates[name] = t
	}
	return &PageHandler{deps: deps, templates: templates, logger: logger}, nil
}

// render executes into a buffer first so a template error still produces a
// clean 500 instead of half a page.
func (h *PageHandler) render(w http.ResponseWriter, r *http.Request, status int, name string, p page) {
	t, ok := h.templates[name]
	if !ok {
		h.logger.Error("unknown template", slog.String("name", name))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if p.Session == nil {
		p.Session = auth.SessionFromContext(r.Context())
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "base", p); err != nil {
		h.logger.Error("failed to render template",
			slog.String("template", name),
			slog.String("error", err.Error()),
		)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

func (h *PageHandler) renderError(w http.ResponseWriter, r *http.Request, err error) {
	status, _ := statusFor(err)
	if status == http.StatusNotFound {
		h.render(w, r, status, "not_found", page{Title: "Not found", Error: errorMessage(err)})
		return
	}
	if status == http.StatusInternalServerError {
		h.logger.Error("page error", slog.String("path", r.URL.Path), slog.String("error", err.Error()))
	}
	http.Error(w, errorMessage(err), status)
}

// =========================================================================
// PUBLIC PAGES
// =========================================================================

// HandleHome: GET /
func (h *PageHandler) HandleHome(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "home", page{
		Title: "TopTuitions",
		Data:  h.deps.Catalog.Featured(),
	})
}

// HandleAbout: GET /about
func (h *PageHandler) HandleAbout(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "about", page{Title: "About TopTuitions"})
}

type tuitionsData struct {
	*service.CatalogResult
	Sorts    []string
	Enrolled map[int]bool
}

// HandleTuitions: GET /all-tuitions?name=&location=&sort=
func (h *PageHandler) HandleTuitions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := h.deps.Catalog.Search(q.Get("name"), q.Get("location"), q.Get("sort"))
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, "tuitions", page{
		Title: "All tuitions",
		Data: tuitionsData{
			CatalogResult: res,
			Sorts:         []string{"rating", "name-asc", "name-desc"},
			Enrolled:      h.enrolledMap(r),
		},
	})
}

type tuitionData struct {
	Tuition  model.TuitionRecord
	Posts    []model.Post
	Enrolled bool
}

// HandleTuition: GET /tuition/{id}. Unknown or malformed IDs get the
// not-found page.
func (h *PageHandler) HandleTuition(w http.ResponseWriter, r *http.Request) {
	id, err := h.deps.Catalog.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	rec, err := h.deps.Catalog.Get(id)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	posts, err := h.deps.Posts.TuitionPosts(r.Context(), id)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, "tuition", page{
		Title: rec.Name,
		Data:  tuitionData{Tuition: rec, Posts: posts, Enrolled: h.enrolledMap(r)[id]},
	})
}

type feedData struct {
	*service.FeedPage
	Liked    func(postID string) bool
	Enrolled map[int]bool
}

// HandleFeed: GET /feed?filter=&sort=&more=
func (h *PageHandler) HandleFeed(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	view, err := feed.ParseView(q.Get("filter"), q.Get("sort"))
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	data := feedData{Liked: func(string) bool { return false }, Enrolled: map[int]bool{}}
	if s := auth.SessionFromContext(r.Context()); s.IsStudent() {
		act, err := h.deps.Enrollments.Activity(r.Context(), s.User.UID)
		if err != nil {
			h.renderError(w, r, err)
			return
		}
		data.Enrolled = act.EnrolledMap()
		data.Liked = act.HasLiked
	}
	view.Enrolled = data.Enrolled

	more := q.Get("more") == "true"
	fp, err := h.deps.Posts.Feed(r.Context(), view, more)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	data.FeedPage = fp
	h.render(w, r, http.StatusOK, "feed", page{Title: "Feed", Data: data})
}

// HandleNotFound sends unknown paths home.
func (h *PageHandler) HandleNotFound(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *PageHandler) enrolledMap(r *http.Request) map[int]bool {
	s := auth.SessionFromContext(r.Context())
	if !s.IsStudent() {
		return map[int]bool{}
	}
	act, err := h.deps.Enrollments.Activity(r.Context(), s.User.UID)
	if err != nil {
		h.logger.Warn("loading activity", slog.String("error", err.Error()))
		return map[int]bool{}
	}
	return act.EnrolledMap()
}

// =========================================================================
// SIGN-IN PAGES
// =========================================================================

type loginData struct {
	GoogleEnabled bool
	AuthEnabled   bool
	Email         string
	Phone         string
	Role          string
	ChallengeID   string
}

func (h *PageHandler) loginPage(w http.ResponseWriter, r *http.Request, status int, data loginData, errMsg string) {
	data.AuthEnabled = h.deps.Auth != nil
	data.GoogleEnabled = data.AuthEnabled && h.deps.Auth.GoogleEnabled()
	if data.Role == "" {
		data.Role = string(model.RoleStudent)
	}
	if errMsg == "" {
		switch r.URL.Query().Get("auth") {
		case "denied":
			errMsg = "Google sign-in was cancelled."
		case "failed":
			errMsg = "Google sign-in failed, please try again."
		}
	}
	if !data.AuthEnabled && errMsg == "" {
		errMsg = "Sign-in is disabled on this server."
	}
	h.render(w, r, status, "login", page{Title: "Sign in", Error: errMsg, Data: data})
}

// HandleLogin: GET /login
func (h *PageHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	h.loginPage(w, r, http.StatusOK, loginData{}, "")
}

// signInFailed re-renders the login form with what the user typed.
func (h *PageHandler) signInFailed(w http.ResponseWriter, r *http.Request, data loginData, err error) {
	status, _ := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("sign-in failed", slog.String("error", err.Error()))
	}
	h.loginPage(w, r, status, data, errorMessage(err))
}

func (h *PageHandler) signedIn(w http.ResponseWriter, r *http.Request, res *service.AuthResult) {
	auth.SetTokenCookie(w, res.Token, h.deps.Auth.TokenTTL())
	http.Redirect(w, r, res.User.Role.Dashboard(), http.StatusSeeOther)
}

func (h *PageHandler) authDisabled(w http.ResponseWriter, r *http.Request) bool {
	if h.deps.Auth == nil {
		h.loginPage(w, r, http.StatusServiceUnavailable, loginData{}, "")
		return true
	}
	return false
}

// HandleLoginSubmit: POST /login (email + password form)
func (h *PageHandler) HandleLoginSubmit(w http.ResponseWriter, r *http.Request) {
	if h.authDisabled(w, r) {
		return
	}
	in := service.LoginInput{Email: r.PostFormValue("email"), Password: r.PostFormValue("password")}
	res, err := h.deps.Auth.Login(r.Context(), in)
	if err != nil {
		h.signInFailed(w, r, loginData{Email: in.Email}, err)
		return
	}
	h.signedIn(w, r, res)
}

// HandleRegisterSubmit: POST /register
func (h *PageHandler) HandleRegisterSubmit(w http.ResponseWriter, r *http.Request) {
	if h.authDisabled(w, r) {
		return
	}
	in := service.RegisterInput{
		Email:    r.PostFormValue("email"),
		Password: r.PostFormValue("password"),
		Name:     r.PostFormValue("name"),
		Role:     model.Role(r.PostFormValue("userType")),
	}
	res, err := h.deps.Auth.Register(r.Context(), in)
	if err != nil {
		h.signInFailed(w, r, loginData{Email: in.Email, Role: string(in.Role)}, err)
		return
	}
	h.signedIn(w, r, res)
}

// HandlePhoneStartSubmit: POST /login/phone. On success the login page comes
// back with the code field.
func (h *PageHandler) HandlePhoneStartSubmit(w http.ResponseWriter, r *http.Request) {
	if h.authDisabled(w, r) {
		return
	}
	in := service.PhoneStartInput{Phone: r.PostFormValue("phone"), Role: model.Role(r.PostFormValue("userType"))}
	data := loginData{Phone: in.Phone, Role: string(in.Role)}
	ch, err := h.deps.Auth.StartPhone(r.Context(), in)
	if err != nil {
		h.signInFailed(w, r, data, err)
		return
	}
	data.ChallengeID = ch.ID
	h.loginPage(w, r, http.StatusOK, data, "")
}

// HandlePhoneVerifySubmit: POST /login/phone/verify
func (h *PageHandler) HandlePhoneVerifySubmit(w http.ResponseWriter, r *http.Request) {
	if h.authDisabled(w, r) {
		return
	}
	in := service.PhoneVerifyInput{ChallengeID: r.PostFormValue("challengeId"), Code: r.PostFormValue("code")}
	res, err := h.deps.Auth.VerifyPhone(r.Context(), in)
	if err != nil {
		h.signInFailed(w, r, loginData{Phone: r.PostFormValue("phone"), ChallengeID: in.ChallengeID}, err)
		return
	}
	h.signedIn(w, r, res)
}

// HandleLogoutSubmit: POST /logout
func (h *PageHandler) HandleLogoutSubmit(w http.ResponseWriter, r *http.Request) {
	auth.ClearTokenCookie(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// =========================================================================
// STUDENT PAGES
// =========================================================================

type studentDashboardData struct {
	Enrollments []service.EnrolledTuition
	Liked       int
	Comments    int
}

// HandleStudentDashboard: GET /student-dashboard
func (h *PageHandler) HandleStudentDashboard(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	list, err := h.deps.Enrollments.List(r.Context(), userID)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	act, err := h.deps.Enrollments.Activity(r.Context(), userID)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, "student_dashboard", page{
		Title: "My dashboard",
		Data:  studentDashboardData{Enrollments: list, Liked: act.Liked.Len(), Comments: act.Comments.Len()},
	})
}

// =========================================================================
// PROFILE PAGES (/profile for students, /tuition-profile for owners)
// =========================================================================

type profileData struct {
	Profile model.Profile
	Action  string
	IsOwner bool
}

// HandleProfile: GET /profile, GET /tuition-profile
func (h *PageHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	user, err := h.deps.Profiles.Get(r.Context(), userID)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	notice := ""
	if r.URL.Query().Get("saved") == "1" {
		notice = "Profile saved."
	}
	h.render(w, r, http.StatusOK, "profile", page{
		Title:  "Profile",
		Notice: notice,
		Data:   profileData{Profile: user.Profile, Action: r.URL.Path, IsOwner: user.Role == model.RoleTuitionOwner},
	})
}

// HandleProfileSubmit: POST /profile, POST /tuition-profile
func (h *PageHandler) HandleProfileSubmit(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	s := auth.SessionFromContext(r.Context())

	patch, err := profilePatchFromForm(r)
	if err == nil {
		_, err = h.deps.Profiles.Update(r.Context(), userID, patch)
	}
	if err != nil {
		status, _ := statusFor(err)
		if status == http.StatusInternalServerError {
			h.renderError(w, r, err)
			return
		}
		var current model.Profile
		if s.Profile != nil {
			current = *s.Profile
		}
		h.render(w, r, status, "profile", page{
			Title: "Profile",
			Error: errorMessage(err),
			Data:  profileData{Profile: current.Merge(patch), Action: r.URL.Path, IsOwner: s.IsTuitionOwner()},
		})
		return
	}
	http.Redirect(w, r, r.URL.Path+"?saved=1", http.StatusSeeOther)
}

// profilePatchFromForm turns the fields present in the form into a patch.
// Absent fields stay nil and are not touched.
func profilePatchFromForm(r *http.Request) (model.ProfilePatch, error) {
	if err := r.ParseForm(); err != nil {
		return model.ProfilePatch{}, apperror.ValidationFailed("body", "invalid form")
	}
	field := func(name string) *string {
		if _, ok := r.PostForm[name]; !ok {
			return nil
		}
		v := r.PostForm.Get(name)
		return &v
	}

	patch := model.ProfilePatch{
		Name:        field("name"),
		Bio:         field("bio"),
		Location:    field("location"),
		Phone:       field("phone"),
		PhotoURL:    field("photoURL"),
		TuitionName: field("tuitionName"),
	}
	// Optional inputs submitted blank mean "leave as is".
	if patch.Phone != nil && strings.TrimSpace(*patch.Phone) == "" {
		patch.Phone = nil
	}
	if patch.PhotoURL != nil && strings.TrimSpace(*patch.PhotoURL) == "" {
		patch.PhotoURL = nil
	}
	if raw := field("tuitionId"); raw != nil && strings.TrimSpace(*raw) != "" {
		id, err := strconv.Atoi(strings.TrimSpace(*raw))
		if err != nil {
			return patch, apperror.ValidationFailed("tuitionId", "tuition id must be a number")
		}
		patch.TuitionID = &id
	}
	return patch, nil
}

// =========================================================================
// OWNER PAGES
// =========================================================================

// HandleTuitionDashboard: GET /tuition-dashboard
func (h *PageHandler) HandleTuitionDashboard(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	posts, err := h.deps.Posts.OwnerPosts(r.Context(), userID)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	notice := ""
	if r.URL.Query().Get("posted") == "1" {
		notice = "Your post is live."
	}
	h.render(w, r, http.StatusOK, "tuition_dashboard", page{Title: "Tuition dashboard", Notice: notice, Data: posts})
}

type createPostData struct {
	Content   string
	MaxLength int
	MaxImages int
}

func newCreatePostData(content string) createPostData {
	return createPostData{Content: content, MaxLength: service.MaxPostLength, MaxImages: storage.MaxImages}
}

// HandleCreatePost: GET /create-post
func (h *PageHandler) HandleCreatePost(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "create_post", page{Title: "New post", Data: newCreatePostData("")})
}

// HandleCreatePostSubmit: POST /create-post. On failure the form comes back
// with the submitted text and the error; uploaded files must be picked again.
func (h *PageHandler) HandleCreatePostSubmit(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	head := &bodyHead{ReadCloser: r.Body, limit: maxFormHead}
	r.Body = head

	uploads, cleanup, err := readUploads(w, r)
	defer cleanup()
	content := ""
	if r.MultipartForm != nil {
		content = r.FormValue("content")
	} else {
		// The body was rejected before the form was parsed (too large).
		content = fieldFromHead(r, head.buf, "content")
	}
	if err == nil {
		_, err = h.deps.Posts.Create(r.Context(), userID, content, uploads)
	}
	if err != nil {
		status, _ := statusFor(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("create post failed", slog.String("userID", userID), slog.String("error", err.Error()))
		}
		h.render(w, r, status, "create_post", page{
			Title: "New post",
			Error: errorMessage(err),
			Data:  newCreatePostData(content),
		})
		return
	}
	http.Redirect(w, r, "/tuition-dashboard?posted=1", http.StatusSeeOther)
}

// maxFormHead covers the boundary, the part headers and a full-length post
// text in four-byte runes.
const maxFormHead = 8 << 10

// bodyHead keeps a copy of the first limit bytes read from a request body.
type bodyHead struct {
	io.ReadCloser
	buf   []byte
	limit int
}

func (b *bodyHead) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	if room := b.limit - len(b.buf); room > 0 && n > 0 {
		b.buf = append(b.buf, p[:min(n, room)]...)
	}
	return n, err
}

// fieldFromHead finds a text field in the start of a multipart body. It
// returns "" when the field is missing or was cut off.
func fieldFromHead(r *http.Request, head []byte, name string) string {
	_, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || params["boundary"] == "" {
		return ""
	}
	mr := multipart.NewReader(bytes.NewReader(head), params["boundary"])
	for {
		part, err := mr.NextPart()
		if err != nil {
			return ""
		}
		if part.FormName() != name {
			continue
		}
		value, err := io.ReadAll(part)
		if err != nil {
			return ""
		}
		return string(value)
	}
}
