package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/toptuitions/toptuitions/internal/apperror"
	"github.com/toptuitions/toptuitions/internal/auth"
	"github.com/toptuitions/toptuitions/internal/catalog"
	"github.com/toptuitions/toptuitions/internal/model"
	"github.com/toptuitions/toptuitions/internal/otp"
	"github.com/toptuitions/toptuitions/internal/repository"
	"github.com/toptuitions/toptuitions/internal/storage"
)

// =========================================================================
// FAKE REPOSITORY
// =========================================================================
//
// fakeDB implements every repository interface in memory. Set one of the
// *Err fields to simulate a database failure on that call.

type fakeDB struct {
	mu         sync.Mutex
	users      map[string]*model.User
	posts      map[string]*model.Post
	likes      map[[2]string]bool
	comments   []model.Comment
	enrolled   []model.Enrollment
	challenges map[string]*model.OTPChallenge
	nextID     int

	getUserErr    error
	createPostErr error
	listPostsErr  error
	listCalls     int
	ownerCalls    int

	// afterList runs once ListPosts has read its page, outside the lock.
	afterList func()
}

var (
	_ repository.UserRepository       = (*fakeDB)(nil)
	_ repository.PostRepository       = (*fakeDB)(nil)
	_ repository.LikeRepository       = (*fakeDB)(nil)
	_ repository.CommentRepository    = (*fakeDB)(nil)
	_ repository.EnrollmentRepository = (*fakeDB)(nil)
	_ repository.OTPRepository        = (*fakeDB)(nil)
)

func newFakeDB() *fakeDB {
	return &fakeDB{
		users:      make(map[string]*model.User),
		posts:      make(map[string]*model.Post),
		likes:      make(map[[2]string]bool),
		challenges: make(map[string]*model.OTPChallenge),
	}
}

func (f *fakeDB) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

// --- users ---

func (f *fakeDB) CreateUser(_ context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.users {
		if (u.Email != "" && existing.Email == u.Email) ||
			(u.Phone != "" && existing.Phone == u.Phone) ||
			(u.GoogleSub != "" && existing.GoogleSub == u.GoogleSub) {
			return &apperror.AppError{Err: apperror.ErrConflict, Message: "duplicate"}
		}
	}
	u.ID = f.id("user")
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	stored := *u
	f.users[u.ID] = &stored
	return nil
}

func (f *fakeDB) findUser(match func(*model.User) bool, key string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getUserErr != nil {
		return nil, f.getUserErr
	}
	for _, u := range f.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperror.NotFound("user", key)
}

func (f *fakeDB) GetUserByID(_ context.Context, id string) (*model.User, error) {
	return f.findUser(func(u *model.User) bool { return u.ID == id }, id)
}

func (f *fakeDB) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	return f.findUser(func(u *model.User) bool { return email != "" && u.Email == email }, email)
}

func (f *fakeDB) GetUserByPhone(_ context.Context, phone string) (*model.User, error) {
	return f.findUser(func(u *model.User) bool { return phone != "" && u.Phone == phone }, phone)
}

func (f *fakeDB) GetUserByGoogleSub(_ context.Context, sub string) (*model.User, error) {
	return f.findUser(func(u *model.User) bool { return sub != "" && u.GoogleSub == sub }, sub)
}

func (f *fakeDB) UpdateProfile(_ context.Context, id string, p model.Profile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return apperror.NotFound("user", id)
	}
	u.Profile = p
	return nil
}

// --- posts ---

func (f *fakeDB) CreatePost(_ context.Context, p *model.Post) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createPostErr != nil {
		return f.createPostErr
	}
	p.ID = f.id("post")
	if p.CreatedAt.IsZero() {
		// Strictly increasing so feed order is deterministic.
		p.CreatedAt = time.Date(2025, 1, 1, 0, 0, f.nextID, 0, time.UTC)
	}
	if p.Images == nil {
		p.Images = []string{}
	}
	stored := p.Clone()
	f.posts[p.ID] = &stored
	return nil
}

func (f *fakeDB) GetPost(_ context.Context, id string) (*model.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.posts[id]
	if !ok {
		return nil, apperror.NotFound("post", id)
	}
	cp := p.Clone()
	return &cp, nil
}

func (f *fakeDB) sortedPosts(keep func(*model.Post) bool) []model.Post {
	out := make([]model.Post, 0)
	for _, p := range f.posts {
		if keep(p) {
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (f *fakeDB) ListPosts(_ context.Context, opts repository.PageOptions) ([]model.Post, error) {
	posts, err := f.listPosts(opts)
	if f.afterList != nil {
		f.afterList()
	}
	return posts, err
}

func (f *fakeDB) listPosts(opts repository.PageOptions) ([]model.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listPostsErr != nil {
		return nil, f.listPostsErr
	}
	out := f.sortedPosts(func(p *model.Post) bool {
		if opts.Before == nil {
			return true
		}
		return p.CreatedAt.Before(opts.Before.CreatedAt) ||
			(p.CreatedAt.Equal(opts.Before.CreatedAt) && p.ID < opts.Before.ID)
	})
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (f *fakeDB) ListPostsByOwner(_ context.Context, ownerID string) ([]model.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ownerCalls++
	return f.sortedPosts(func(p *model.Post) bool { return p.OwnerID == ownerID }), nil
}

func (f *fakeDB) ListPostsByTuition(_ context.Context, tuitionID, limit int) ([]model.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.sortedPosts(func(p *model.Post) bool { return p.TuitionID == tuitionID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeDB) UpdatePost(_ context.Context, p *model.Post) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.posts[p.ID]
	if !ok {
		return apperror.NotFound("post", p.ID)
	}
	stored.Content = p.Content
	stored.Images = append([]string(nil), p.Images...)
	return nil
}

func (f *fakeDB) DeletePost(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.posts[id]; !ok {
		return apperror.NotFound("post", id)
	}
	delete(f.posts, id)
	return nil
}

// --- likes, comments, enrollments ---

func (f *fakeDB) Like(_ context.Context, userID, postID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.posts[postID]
	if !ok {
		return false, apperror.NotFound("post", postID)
	}
	key := [2]string{userID, postID}
	if f.likes[key] {
		return false, nil
	}
	f.likes[key] = true
	p.Likes++
	return true, nil
}

func (f *fakeDB) Unlike(_ context.Context, userID, postID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.posts[postID]
	if !ok {
		return false, apperror.NotFound("post", postID)
	}
	key := [2]string{userID, postID}
	if !f.likes[key] {
		return false, nil
	}
	delete(f.likes, key)
	if p.Likes > 0 {
		p.Likes--
	}
	return true, nil
}

func (f *fakeDB) LikedPostIDs(_ context.Context, userID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for k := range f.likes {
		if k[0] == userID {
			out = append(out, k[1])
		}
	}
	sort.Strings(out)
	return out, nil
}

func (f *fakeDB) AddComment(_ context.Context, c *model.Comment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.posts[c.PostID]
	if !ok {
		return apperror.NotFound("post", c.PostID)
	}
	c.ID = f.id("comment")
	c.CreatedAt = time.Now()
	f.comments = append(f.comments, *c)
	p.Comments++
	return nil
}

func (f *fakeDB) ListComments(_ context.Context, postID string) ([]model.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Comment, 0)
	for _, c := range f.comments {
		if c.PostID == postID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeDB) CommentIDsByUser(_ context.Context, userID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.comments {
		if c.UserID == userID {
			out = append(out, c.ID)
		}
	}
	return out, nil
}

func (f *fakeDB) Enroll(_ context.Context, userID string, tuitionID int, postID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.enrolled {
		if e.UserID == userID && e.TuitionID == tuitionID {
			return false, nil
		}
	}
	f.enrolled = append(f.enrolled, model.Enrollment{UserID: userID, TuitionID: tuitionID, CreatedAt: time.Now()})
	if p, ok := f.posts[postID]; ok {
		p.Enrollments++
	}
	return true, nil
}

func (f *fakeDB) Unenroll(_ context.Context, userID string, tuitionID int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, e := range f.enrolled {
		if e.UserID == userID && e.TuitionID == tuitionID {
			f.enrolled = append(f.enrolled[:i], f.enrolled[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeDB) ListEnrollments(_ context.Context, userID string) ([]model.Enrollment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Enrollment, 0)
	for _, e := range f.enrolled {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

// --- otp challenges ---

func (f *fakeDB) CreateChallenge(_ context.Context, c *model.OTPChallenge) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c.ID = f.id("otp")
	c.CreatedAt = time.Now()
	stored := *c
	f.challenges[c.ID] = &stored
	return nil
}

func (f *fakeDB) GetChallenge(_ context.Context, id string) (*model.OTPChallenge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.challenges[id]
	if !ok {
		return nil, apperror.NotFound("otp challenge", id)
	}
	cp := *c
	return &cp, nil
}

func (f *fakeDB) RecordFailedAttempt(_ context.Context, id string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.challenges[id]
	if !ok {
		return 0, apperror.NotFound("otp challenge", id)
	}
	c.Attempts++
	return c.Attempts, nil
}

func (f *fakeDB) ConsumeChallenge(_ context.Context, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.challenges[id]
	if !ok {
		return apperror.NotFound("otp challenge", id)
	}
	if c.ConsumedAt != nil {
		return &apperror.AppError{Err: apperror.ErrConflict, Message: "used"}
	}
	c.ConsumedAt = &at
	return nil
}

func (f *fakeDB) DeleteExpiredChallenges(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for id, c := range f.challenges {
		if c.Expired(now) {
			delete(f.challenges, id)
			n++
		}
	}
	return n, nil
}

// =========================================================================
// FAKE IMAGE STORE AND GOOGLE PROVIDER
// =========================================================================

type fakeImages struct {
	saved   []string
	removed []string
	err     error
}

func (f *fakeImages) SavePostImages(ownerID string, uploads []storage.Upload) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	var urls []string
	for i, u := range uploads {
		urls = append(urls, fmt.Sprintf("/uploads/posts/%s/%d_%s", ownerID, len(f.saved)+i, u.Name))
	}
	f.saved = append(f.saved, urls...)
	return urls, nil
}

func (f *fakeImages) Remove(urls ...string) {
	f.removed = append(f.removed, urls...)
}

type fakeGoogle struct {
	user *auth.GoogleUser
	err  error
}

func (g *fakeGoogle) AuthURL(state string) string {
	return "https://accounts.example/auth?state=" + state
}

func (g *fakeGoogle) Exchange(_ context.Context, code string) (*auth.GoogleUser, error) {
	if g.err != nil {
		return nil, g.err
	}
	return g.user, nil
}

// =========================================================================
// HELPERS
// =========================================================================

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testCatalogService() *CatalogService {
	return NewCatalogService(catalog.New(100, 1, catalog.NewImageSet("/static", catalog.DefaultImages)))
}

func newTestTokens(t *testing.T) *auth.TokenService {
	t.Helper()
	ts, err := auth.NewTokenService("test-secret-at-least-16-chars!!", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return ts
}

type authFixture struct {
	svc    *AuthService
	db     *fakeDB
	sms    *otp.Recorder
	tokens *auth.TokenService
	google *fakeGoogle
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	db := newFakeDB()
	sms := &otp.Recorder{}
	tokens := newTestTokens(t)
	google := &fakeGoogle{user: &auth.GoogleUser{Sub: "g-1", Email: "Asha@Example.com", Name: "Asha", Picture: "http://img/a.png"}}
	svc := NewAuthService(db, db, tokens, auth.NewPasswordServiceForTest(4), sms,
		AuthOptions{Google: google, CountryCode: "+91", OTPTTL: 5 * time.Minute},
		quietLogger())
	return &authFixture{svc: svc, db: db, sms: sms, tokens: tokens, google: google}
}

func createUser(t *testing.T, db *fakeDB, u *model.User) *model.User {
	t.Helper()
	if err := db.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return u
}
