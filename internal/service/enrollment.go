package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/toptuitions/toptuitions/internal/activity"
	"github.com/toptuitions/toptuitions/internal/model"
	"github.com/toptuitions/toptuitions/internal/repository"
)

// EnrollmentService manages which catalog tuitions a student joined, and
// loads a student's whole activity (enrollments, likes, comments).
//
// Enrolling is idempotent: the (user, tuition) pair is unique in SQLite and
// a repeat reports created=false instead of an error. An enrollment made
// through a post also records the post ID, which is how the post's
// enrollment counter knows to move.
type EnrollmentService struct {
	enrollments repository.EnrollmentRepository
	likes       repository.LikeRepository
	comments    repository.CommentRepository
	catalog     *CatalogService
	logger      *slog.Logger
}

func NewEnrollmentService(
	enrollments repository.EnrollmentRepository,
	likes repository.LikeRepository,
	comments repository.CommentRepository,
	catalog *CatalogService,
	logger *slog.Logger,
) *EnrollmentService {
	return &EnrollmentService{
		enrollments: enrollments,
		likes:       likes,
		comments:    comments,
		catalog:     catalog,
		logger:      logger,
	}
}

// EnrolledTuition is one row of the student dashboard.
type EnrolledTuition struct {
	model.TuitionRecord
	EnrolledAt string `json:"enrolledAt"`
}

// Enroll joins a catalog tuition. Joining twice is not an error; the bool
// reports whether this call created the enrollment.
func (s *EnrollmentService) Enroll(ctx context.Context, userID string, tuitionID int) (bool, error) {
	if _, err := s.catalog.Get(tuitionID); err != nil {
		return false, err
	}
	created, err := s.enrollments.Enroll(ctx, userID, tuitionID, "")
	if err != nil {
		return false, fmt.Errorf("service/enrollment: enrolling %s in %d: %w", userID, tuitionID, err)
	}
	if created {
		s.logger.Info("student enrolled", slog.String("userID", userID), slog.Int("tuitionID", tuitionID))
	}
	return created, nil
}

func (s *EnrollmentService) Unenroll(ctx context.Context, userID string, tuitionID int) (bool, error) {
	if _, err := s.catalog.Get(tuitionID); err != nil {
		return false, err
	}
	removed, err := s.enrollments.Unenroll(ctx, userID, tuitionID)
	if err != nil {
		return false, fmt.Errorf("service/enrollment: unenrolling %s from %d: %w", userID, tuitionID, err)
	}
	return removed, nil
}

// List returns the student's enrollments joined with their catalog records.
// Enrollments whose listing no longer exists (a smaller catalog after a
// config change) are skipped.
func (s *EnrollmentService) List(ctx context.Context, userID string) ([]EnrolledTuition, error) {
	rows, err := s.enrollments.ListEnrollments(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/enrollment: listing %s: %w", userID, err)
	}

	out := make([]EnrolledTuition, 0, len(rows))
	for _, e := range rows {
		rec, err := s.catalog.Get(e.TuitionID)
		if err != nil {
			s.logger.Warn("enrollment for unknown tuition",
				slog.String("userID", userID),
				slog.Int("tuitionID", e.TuitionID),
			)
			continue
		}
		out = append(out, EnrolledTuition{TuitionRecord: rec, EnrolledAt: e.CreatedAt.Format("2006-01-02")})
	}
	return out, nil
}

// Activity loads everything a student did into membership sets.
func (s *EnrollmentService) Activity(ctx context.Context, userID string) (*activity.Student, error) {
	st := activity.NewStudent()

	rows, err := s.enrollments.ListEnrollments(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/enrollment: loading enrollments: %w", err)
	}
	ids := make([]int, len(rows))
	for i, e := range rows {
		ids[i] = e.TuitionID
	}
	st.Enrolled.Replace(ids)

	liked, err := s.likes.LikedPostIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/enrollment: loading likes: %w", err)
	}
	st.Liked.Replace(liked)

	comments, err := s.comments.CommentIDsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/enrollment: loading comments: %w", err)
	}
	st.Comments.Replace(comments)

	return st, nil
}
