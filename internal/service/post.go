package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/toptuitions/toptuitions/internal/apperror"
	"github.com/toptuitions/toptuitions/internal/feed"
	"github.com/toptuitions/toptuitions/internal/model"
	"github.com/toptuitions/toptuitions/internal/repository"
	"github.com/toptuitions/toptuitions/internal/storage"
)

const (
	MaxPostLength     = 1000
	MaxCommentLength  = 500
	TuitionPostsLimit = 10
	DefaultFeedPage   = 50
)

// ImageStore is where post images go. *storage.DiskStore implements it.
type ImageStore interface {
	SavePostImages(ownerID string, uploads []storage.Upload) ([]string, error)
	Remove(urls ...string)
}

// PostService owns posts and the process-wide feed.Store that mirrors the
// newest posts. Every write goes to SQLite first and is mirrored into the
// store only after it succeeded, so the store never shows a post or a
// counter the database does not have.
//
// STORE LIFECYCLE:
//  1. The first Feed call loads one page (ensureLoaded). Until then the
//     store is empty and writes only touch the database.
//  2. LoadMore appends older pages by keyset cursor until a short page
//     clears HasMore.
//  3. After that, Create prepends, Update and Delete patch in place, and
//     the like, comment and enrollment counters move by one.
//
// LOCKING:
// mu is taken by every path that touches both the database and the store.
// Page loads hold it exclusively; writes share it. Nothing holding mu calls
// another method that takes it, and feed.Store has its own lock for the
// readers that do not need both.
type PostService struct {
	posts       repository.PostRepository
	likes       repository.LikeRepository
	comments    repository.CommentRepository
	enrollments repository.EnrollmentRepository
	users       repository.UserRepository
	images      ImageStore
	catalog     *CatalogService
	store       *feed.Store
	pageSize    int
	logger      *slog.Logger

	// mu orders page loads against mirrored writes. Loads hold the write
	// lock from the database read until the page is in the store; writes
	// hold the read lock from the database write until the store mirrors
	// it. A write can therefore never land between a load's read and its
	// store update, where it would be overwritten by the stale page.
	mu     sync.RWMutex
	loaded bool
}

// PostDeps bundles PostService's collaborators.
type PostDeps struct {
	Posts       repository.PostRepository
	Likes       repository.LikeRepository
	Comments    repository.CommentRepository
	Enrollments repository.EnrollmentRepository
	Users       repository.UserRepository
	Images      ImageStore
	Catalog     *CatalogService
	PageSize    int
}

func NewPostService(deps PostDeps, logger *slog.Logger) *PostService {
	if deps.PageSize <= 0 {
		deps.PageSize = DefaultFeedPage
	}
	return &PostService{
		posts:       deps.Posts,
		likes:       deps.Likes,
		comments:    deps.Comments,
		enrollments: deps.Enrollments,
		users:       deps.Users,
		images:      deps.Images,
		catalog:     deps.Catalog,
		store:       feed.NewStore(),
		pageSize:    deps.PageSize,
		logger:      logger,
	}
}

// Store exposes the feed store (read-only use by handlers and tests).
func (s *PostService) Store() *feed.Store {
	return s.store
}

// FeedPage is one response of the feed endpoint.
type FeedPage struct {
	Posts   []model.Post `json:"posts"`
	HasMore bool         `json:"hasMore"`
	Cursor  feed.Cursor  `json:"cursor"`
	Filter  feed.Filter  `json:"filter"`
	Order   feed.Order   `json:"sort"`
}

// Feed returns the loaded feed with view applied. more asks for the next
// page to be fetched first.
func (s *PostService) Feed(ctx context.Context, view feed.View, more bool) (*FeedPage, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	if more {
		if err := s.LoadMore(ctx); err != nil {
			return nil, err
		}
	}
	posts := view.Apply(s.store.Posts())
	return &FeedPage{
		Posts:   posts,
		HasMore: s.store.HasMore(),
		Cursor:  s.store.Cursor(),
		Filter:  view.Filter,
		Order:   view.Order,
	}, nil
}

// ensureLoaded fetches the first page once per process.
func (s *PostService) ensureLoaded(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return nil
	}

	s.store.SetLoading(true)
	posts, err := s.posts.ListPosts(ctx, repository.PageOptions{Limit: s.pageSize})
	if err != nil {
		s.store.SetError("could not load the feed")
		return fmt.Errorf("service/post: loading feed: %w", err)
	}

	// Writes made before the first load are in posts already; the lock
	// keeps later ones out until SetPosts is done.
	s.store.ClearPosts()
	s.store.SetPosts(posts)
	s.store.LoadMorePosts(nil, lastCursor(posts), len(posts) == s.pageSize)
	s.loaded = true
	return nil
}

// LoadMore appends the next page after the store's cursor.
func (s *PostService) LoadMore(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.store.HasMore() {
		return nil
	}

	cursor := s.store.Cursor()
	opts := repository.PageOptions{Limit: s.pageSize}
	if !cursor.IsZero() {
		opts.Before = &repository.PostKey{CreatedAt: time.Unix(0, cursor.CreatedAt), ID: cursor.PostID}
	}

	s.store.SetLoading(true)
	posts, err := s.posts.ListPosts(ctx, opts)
	if err != nil {
		s.store.SetError("could not load more posts")
		return fmt.Errorf("service/post: loading more: %w", err)
	}

	next := cursor
	if len(posts) > 0 {
		next = lastCursor(posts)
	}
	s.store.LoadMorePosts(posts, next, len(posts) == s.pageSize)
	return nil
}

// Create publishes a post for ownerID. Images are written first; if the
// database insert then fails they are removed again.
func (s *PostService) Create(ctx context.Context, ownerID, content string, uploads []storage.Upload) (*model.Post, error) {
	content, err := requireText("content", content, MaxPostLength)
	if err != nil {
		return nil, err
	}
	if err := storage.CheckAll(uploads); err != nil {
		return nil, err
	}

	owner, err := s.users.GetUserByID(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("service/post: loading owner %s: %w", ownerID, err)
	}
	if owner.Role != model.RoleTuitionOwner {
		return nil, apperror.Forbidden("only tuition owners can post")
	}

	var urls []string
	if len(uploads) > 0 {
		urls, err = s.images.SavePostImages(ownerID, uploads)
		if err != nil {
			return nil, fmt.Errorf("service/post: saving images: %w", err)
		}
	}

	post := &model.Post{
		OwnerID:     ownerID,
		TuitionID:   owner.Profile.TuitionID,
		TuitionName: owner.Profile.DisplayTuitionName(),
		OwnerPhoto:  owner.Profile.PhotoURL,
		Content:     content,
		Images:      urls,
	}
	s.mu.RLock()
	err = s.posts.CreatePost(ctx, post)
	if err == nil {
		s.store.AddPost(*post)
	}
	s.mu.RUnlock()
	if err != nil {
		s.images.Remove(urls...)
		return nil, fmt.Errorf("service/post: creating post: %w", err)
	}

	s.logger.Info("post created",
		slog.String("postID", post.ID),
		slog.String("ownerID", ownerID),
		slog.Int("images", len(urls)),
	)
	return post, nil
}

// Get returns a post, from the feed store when it is loaded there.
func (s *PostService) Get(ctx context.Context, id string) (*model.Post, error) {
	if p, ok := s.store.Get(id); ok {
		return &p, nil
	}
	p, err := s.posts.GetPost(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/post: getting %s: %w", id, err)
	}
	return p, nil
}

// Update edits content and/or the image list of the caller's own post.
// Images dropped from the list are deleted from disk.
func (s *PostService) Update(ctx context.Context, userID string, patch model.PostPatch) (*model.Post, error) {
	post, err := s.ownPost(ctx, userID, patch.ID)
	if err != nil {
		return nil, err
	}

	if patch.Content != nil {
		c, err := requireText("content", *patch.Content, MaxPostLength)
		if err != nil {
			return nil, err
		}
		patch.Content = &c
	}
	if patch.Images != nil {
		if len(*patch.Images) > storage.MaxImages {
			return nil, apperror.ValidationFailed("images", fmt.Sprintf("at most %d images per post", storage.MaxImages))
		}
		// Only images already attached may be kept; new files go through Create.
		for _, img := range *patch.Images {
			if !slices.Contains(post.Images, img) {
				return nil, apperror.ValidationFailed("images", "unknown image "+img)
			}
		}
	}
	// Display fields follow the owner's profile, not the request.
	patch.TuitionName, patch.OwnerPhoto = nil, nil

	updated := post.Apply(patch)
	s.mu.RLock()
	err = s.posts.UpdatePost(ctx, &updated)
	if err == nil {
		s.store.UpdatePost(patch)
	}
	s.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("service/post: updating %s: %w", post.ID, err)
	}

	if patch.Images != nil {
		s.images.Remove(removedImages(post.Images, updated.Images)...)
	}
	return &updated, nil
}

// Delete removes the caller's own post and its images.
func (s *PostService) Delete(ctx context.Context, userID, postID string) error {
	post, err := s.ownPost(ctx, userID, postID)
	if err != nil {
		return err
	}
	s.mu.RLock()
	err = s.posts.DeletePost(ctx, postID)
	if err == nil {
		s.store.DeletePost(postID)
	}
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("service/post: deleting %s: %w", postID, err)
	}
	s.images.Remove(post.Images...)
	s.logger.Info("post deleted", slog.String("postID", postID), slog.String("ownerID", userID))
	return nil
}

// Like is idempotent; the feed counter moves only when the like is new.
func (s *PostService) Like(ctx context.Context, userID, postID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	changed, err := s.likes.Like(ctx, userID, postID)
	if err != nil {
		return false, fmt.Errorf("service/post: liking %s: %w", postID, err)
	}
	if changed {
		s.store.IncrementLikes(postID)
	}
	return changed, nil
}

func (s *PostService) Unlike(ctx context.Context, userID, postID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	changed, err := s.likes.Unlike(ctx, userID, postID)
	if err != nil {
		return false, fmt.Errorf("service/post: unliking %s: %w", postID, err)
	}
	if changed {
		s.store.DecrementLikes(postID)
	}
	return changed, nil
}

// AddComment stores a comment signed with the author's profile name.
func (s *PostService) AddComment(ctx context.Context, userID, postID, text string) (*model.Comment, error) {
	text, err := requireText("text", text, MaxCommentLength)
	if err != nil {
		return nil, err
	}
	author, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/post: loading author %s: %w", userID, err)
	}

	c := &model.Comment{
		PostID:     postID,
		UserID:     userID,
		AuthorName: authorName(author),
		Text:       text,
	}
	s.mu.RLock()
	err = s.comments.AddComment(ctx, c)
	if err == nil {
		s.store.IncrementComments(postID)
	}
	s.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("service/post: commenting on %s: %w", postID, err)
	}
	return c, nil
}

func (s *PostService) Comments(ctx context.Context, postID string) ([]model.Comment, error) {
	if _, err := s.Get(ctx, postID); err != nil {
		return nil, err
	}
	cs, err := s.comments.ListComments(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("service/post: listing comments of %s: %w", postID, err)
	}
	return cs, nil
}

// Enroll enrolls the student in the catalog tuition a post is linked to.
func (s *PostService) Enroll(ctx context.Context, userID, postID string) (bool, error) {
	post, err := s.Get(ctx, postID)
	if err != nil {
		return false, err
	}
	if post.TuitionID == 0 {
		return false, apperror.ValidationFailed("postId", "this post is not linked to a tuition listing")
	}
	if _, err := s.catalog.Get(post.TuitionID); err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	created, err := s.enrollments.Enroll(ctx, userID, post.TuitionID, postID)
	if err != nil {
		return false, fmt.Errorf("service/post: enrolling via %s: %w", postID, err)
	}
	if created {
		s.store.IncrementEnrollments(postID)
	}
	return created, nil
}

// OwnerPosts lists one owner's posts, newest first (owner dashboard). Once
// the feed has loaded its last page the store holds every post, so the
// list comes from memory.
func (s *PostService) OwnerPosts(ctx context.Context, ownerID string) ([]model.Post, error) {
	s.mu.RLock()
	complete := s.loaded && !s.store.HasMore()
	var cached []model.Post
	if complete {
		cached = s.store.ByOwner(ownerID)
	}
	s.mu.RUnlock()
	if complete {
		if cached == nil {
			cached = []model.Post{}
		}
		return cached, nil
	}

	posts, err := s.posts.ListPostsByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("service/post: listing posts of %s: %w", ownerID, err)
	}
	return posts, nil
}

// TuitionPosts returns the latest posts linked to a catalog listing.
func (s *PostService) TuitionPosts(ctx context.Context, tuitionID int) ([]model.Post, error) {
	if _, err := s.catalog.Get(tuitionID); err != nil {
		return nil, err
	}
	posts, err := s.posts.ListPostsByTuition(ctx, tuitionID, TuitionPostsLimit)
	if err != nil {
		return nil, fmt.Errorf("service/post: listing posts of tuition %d: %w", tuitionID, err)
	}
	return posts, nil
}

func (s *PostService) ownPost(ctx context.Context, userID, postID string) (*model.Post, error) {
	post, err := s.posts.GetPost(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("service/post: getting %s: %w", postID, err)
	}
	if post.OwnerID != userID {
		return nil, apperror.Forbidden("you can only change your own posts")
	}
	return post, nil
}

func lastCursor(posts []model.Post) feed.Cursor {
	if len(posts) == 0 {
		return feed.Cursor{}
	}
	return feed.CursorFor(posts[len(posts)-1])
}

func removedImages(before, after []string) []string {
	var gone []string
	for _, img := range before {
		if !slices.Contains(after, img) {
			gone = append(gone, img)
		}
	}
	return gone
}

func authorName(u *model.User) string {
	switch {
	case strings.TrimSpace(u.Profile.Name) != "":
		return u.Profile.Name
	case u.Email != "":
		return strings.SplitN(u.Email, "@", 2)[0]
	default:
		return "Student"
	}
}
