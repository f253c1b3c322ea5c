// Package repository declares the storage contracts the services depend on.
//
// Services only see these interfaces; internal/repository/sqlite is the
// production implementation and the service tests use in-memory fakes.
// Every "not found" is reported as apperror.ErrNotFound and every unique
// constraint violation as apperror.ErrConflict.
package repository

import (
	"context"
	"time"

	"github.com/toptuitions/toptuitions/internal/model"
)

// PageOptions selects one page of the feed, newest first.
// When Before is set only posts strictly older than it are returned
// (ties on created_at are broken by id, descending).
type PageOptions struct {
	Limit  int
	Before *PostKey
}

// PostKey is the (created_at, id) position of a post in the feed order.
type PostKey struct {
	CreatedAt time.Time
	ID        string
}

type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByPhone(ctx context.Context, phone string) (*model.User, error)
	GetUserByGoogleSub(ctx context.Context, sub string) (*model.User, error)
	UpdateProfile(ctx context.Context, id string, profile model.Profile) error
}

type PostRepository interface {
	CreatePost(ctx context.Context, post *model.Post) error
	GetPost(ctx context.Context, id string) (*model.Post, error)
	ListPosts(ctx context.Context, opts PageOptions) ([]model.Post, error)
	ListPostsByOwner(ctx context.Context, ownerID string) ([]model.Post, error)
	ListPostsByTuition(ctx context.Context, tuitionID, limit int) ([]model.Post, error)
	UpdatePost(ctx context.Context, post *model.Post) error
	DeletePost(ctx context.Context, id string) error
}

// LikeRepository stores (user, post) likes. Like and Unlike report whether
// anything changed, and keep posts.likes in step within one transaction.
type LikeRepository interface {
	Like(ctx context.Context, userID, postID string) (bool, error)
	Unlike(ctx context.Context, userID, postID string) (bool, error)
	LikedPostIDs(ctx context.Context, userID string) ([]string, error)
}

type CommentRepository interface {
	AddComment(ctx context.Context, comment *model.Comment) error
	ListComments(ctx context.Context, postID string) ([]model.Comment, error)
	CommentIDsByUser(ctx context.Context, userID string) ([]string, error)
}

// EnrollmentRepository stores (user, tuition) enrollments. When postID is
// non-empty a new enrollment also bumps that post's enrollment counter.
type EnrollmentRepository interface {
	Enroll(ctx context.Context, userID string, tuitionID int, postID string) (bool, error)
	Unenroll(ctx context.Context, userID string, tuitionID int) (bool, error)
	ListEnrollments(ctx context.Context, userID string) ([]model.Enrollment, error)
}

type OTPRepository interface {
	CreateChallenge(ctx context.Context, c *model.OTPChallenge) error
	GetChallenge(ctx context.Context, id string) (*model.OTPChallenge, error)
	// RecordFailedAttempt increments the attempt counter and returns the new value.
	RecordFailedAttempt(ctx context.Context, id string) (int, error)
	// ConsumeChallenge marks the challenge used. It fails with ErrConflict
	// if the challenge was already consumed.
	ConsumeChallenge(ctx context.Context, id string, at time.Time) error
	DeleteExpiredChallenges(ctx context.Context, now time.Time) (int64, error)
}
