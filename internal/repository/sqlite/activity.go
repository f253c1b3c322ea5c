package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/toptuitions/toptuitions/internal/apperror"
	"github.com/toptuitions/toptuitions/internal/model"
	"github.com/toptuitions/toptuitions/internal/repository"
)

var (
	_ repository.LikeRepository       = (*DB)(nil)
	_ repository.CommentRepository    = (*DB)(nil)
	_ repository.EnrollmentRepository = (*DB)(nil)
)

// Like records that userID likes postID. Liking twice is a no-op and
// returns false; the posts.likes counter moves only on a real insert.
func (db *DB) Like(ctx context.Context, userID, postID string) (bool, error) {
	var changed bool
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		if err := postExists(ctx, tx, postID); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO likes (user_id, post_id, created_at) VALUES (?, ?, ?)`,
			userID, postID, toNanos(time.Now()),
		)
		if err != nil {
			return fmt.Errorf("sqlite: liking post %s: %w", postID, err)
		}
		if changed, err = inserted(res); err != nil || !changed {
			return err
		}
		_, err = tx.ExecContext(ctx, `UPDATE posts SET likes = likes + 1 WHERE id = ?`, postID)
		return err
	})
	return changed, err
}

// Unlike removes a like. The counter never drops below zero.
func (db *DB) Unlike(ctx context.Context, userID, postID string) (bool, error) {
	var changed bool
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		if err := postExists(ctx, tx, postID); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			`DELETE FROM likes WHERE user_id = ? AND post_id = ?`, userID, postID)
		if err != nil {
			return fmt.Errorf("sqlite: unliking post %s: %w", postID, err)
		}
		if changed, err = inserted(res); err != nil || !changed {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE posts SET likes = MAX(likes - 1, 0) WHERE id = ?`, postID)
		return err
	})
	return changed, err
}

// LikedPostIDs lists the posts userID likes, oldest like first.
func (db *DB) LikedPostIDs(ctx context.Context, userID string) ([]string, error) {
	return db.queryStrings(ctx,
		`SELECT post_id FROM likes WHERE user_id = ? ORDER BY created_at, post_id`, userID)
}

// AddComment stores a comment and bumps the post's comment counter.
func (db *DB) AddComment(ctx context.Context, c *model.Comment) error {
	c.ID = xid.New().String()
	c.CreatedAt = time.Now()

	return db.withTx(ctx, func(tx *sql.Tx) error {
		if err := postExists(ctx, tx, c.PostID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO comments (id, post_id, user_id, author_name, text, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			c.ID, c.PostID, c.UserID, c.AuthorName, c.Text, toNanos(c.CreatedAt),
		)
		if err != nil {
			return fmt.Errorf("sqlite: adding comment to %s: %w", c.PostID, err)
		}
		_, err = tx.ExecContext(ctx, `UPDATE posts SET comments = comments + 1 WHERE id = ?`, c.PostID)
		return err
	})
}

// ListComments returns a post's comments in the order they were written.
func (db *DB) ListComments(ctx context.Context, postID string) ([]model.Comment, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, post_id, user_id, author_name, text, created_at
		 FROM comments WHERE post_id = ?
		 ORDER BY created_at, id`,
		postID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing comments of %s: %w", postID, err)
	}
	defer rows.Close()

	comments := make([]model.Comment, 0)
	for rows.Next() {
		var (
			c  model.Comment
			at int64
		)
		if err := rows.Scan(&c.ID, &c.PostID, &c.UserID, &c.AuthorName, &c.Text, &at); err != nil {
			return nil, fmt.Errorf("sqlite: scanning comment row: %w", err)
		}
		c.CreatedAt = fromNanos(at)
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating comments: %w", err)
	}
	return comments, nil
}

func (db *DB) CommentIDsByUser(ctx context.Context, userID string) ([]string, error) {
	return db.queryStrings(ctx,
		`SELECT id FROM comments WHERE user_id = ? ORDER BY created_at, id`, userID)
}

// Enroll records (userID, tuitionID). Enrolling twice is a no-op. When
// postID is set and the enrollment is new, that post's counter goes up.
func (db *DB) Enroll(ctx context.Context, userID string, tuitionID int, postID string) (bool, error) {
	var changed bool
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		if postID != "" {
			if err := postExists(ctx, tx, postID); err != nil {
				return err
			}
		}
		res, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO enrollments (user_id, tuition_id, created_at) VALUES (?, ?, ?)`,
			userID, tuitionID, toNanos(time.Now()),
		)
		if err != nil {
			if isForeignKeyViolation(err) {
				return apperror.NotFound("user", userID)
			}
			return fmt.Errorf("sqlite: enrolling in %d: %w", tuitionID, err)
		}
		if changed, err = inserted(res); err != nil || !changed || postID == "" {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE posts SET enrollments = enrollments + 1 WHERE id = ?`, postID)
		return err
	})
	return changed, err
}

func (db *DB) Unenroll(ctx context.Context, userID string, tuitionID int) (bool, error) {
	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM enrollments WHERE user_id = ? AND tuition_id = ?`, userID, tuitionID)
	if err != nil {
		return false, fmt.Errorf("sqlite: unenrolling from %d: %w", tuitionID, err)
	}
	return inserted(res)
}

// ListEnrollments returns userID's enrollments, oldest first.
func (db *DB) ListEnrollments(ctx context.Context, userID string) ([]model.Enrollment, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT user_id, tuition_id, created_at FROM enrollments
		 WHERE user_id = ? ORDER BY created_at, tuition_id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing enrollments: %w", err)
	}
	defer rows.Close()

	out := make([]model.Enrollment, 0)
	for rows.Next() {
		var (
			e  model.Enrollment
			at int64
		)
		if err := rows.Scan(&e.UserID, &e.TuitionID, &at); err != nil {
			return nil, fmt.Errorf("sqlite: scanning enrollment row: %w", err)
		}
		e.CreatedAt = fromNanos(at)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating enrollments: %w", err)
	}
	return out, nil
}

func (db *DB) queryStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: querying ids: %w", err)
	}
	defer rows.Close()

	out := make([]string, 0)
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("sqlite: scanning id: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func postExists(ctx context.Context, tx *sql.Tx, postID string) error {
	var one int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM posts WHERE id = ?`, postID).Scan(&one)
	if err == sql.ErrNoRows {
		return apperror.NotFound("post", postID)
	}
	if err != nil {
		return fmt.Errorf("sqlite: checking post %s: %w", postID, err)
	}
	return nil
}

// inserted reports whether an INSERT OR IGNORE / DELETE touched a row.
func inserted(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	return n > 0, nil
}
