package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/toptuitions/toptuitions/internal/apperror"
	"github.com/toptuitions/toptuitions/internal/model"
	"github.com/toptuitions/toptuitions/internal/repository"
)

var _ repository.PostRepository = (*DB)(nil)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

const postColumns = `id, owner_id, tuition_id, tuition_name, owner_photo, content,
	images, likes, comments, enrollments, created_at`

// CreatePost inserts a post with zeroed counters. ID and CreatedAt are set
// here unless the caller already chose a CreatedAt.
func (db *DB) CreatePost(ctx context.Context, post *model.Post) error {
	post.ID = xid.New().String()
	if post.CreatedAt.IsZero() {
		post.CreatedAt = time.Now()
	}
	post.Likes, post.Comments, post.Enrollments = 0, 0, 0
	if post.Images == nil {
		post.Images = []string{}
	}

	images, err := json.Marshal(post.Images)
	if err != nil {
		return fmt.Errorf("sqlite: encoding post images: %w", err)
	}

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO posts (`+postColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, 0, 0, 0, ?)`,
		post.ID,
		post.OwnerID,
		post.TuitionID,
		post.TuitionName,
		post.OwnerPhoto,
		post.Content,
		string(images),
		toNanos(post.CreatedAt),
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return apperror.NotFound("user", post.OwnerID)
		}
		return fmt.Errorf("sqlite: creating post: %w", err)
	}

	return nil
}

func (db *DB) GetPost(ctx context.Context, id string) (*model.Post, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+postColumns+` FROM posts WHERE id = ?`, id)

	p, err := scanPost(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("post", id)
		}
		return nil, fmt.Errorf("sqlite: getting post %s: %w", id, err)
	}
	return p, nil
}

// ListPosts returns one page of the feed, newest first.
//
// Pagination is keyset based: the page after a post is everything strictly
// older in (created_at, id) order, so inserts at the head of the feed never
// shift the next page the way OFFSET would.
func (db *DB) ListPosts(ctx context.Context, opts repository.PageOptions) ([]model.Post, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	var (
		rows *sql.Rows
		err  error
	)
	if opts.Before == nil {
		rows, err = db.conn.QueryContext(ctx,
			`SELECT `+postColumns+` FROM posts
			 ORDER BY created_at DESC, id DESC
			 LIMIT ?`,
			limit,
		)
	} else {
		at := toNanos(opts.Before.CreatedAt)
		rows, err = db.conn.QueryContext(ctx,
			`SELECT `+postColumns+` FROM posts
			 WHERE created_at < ? OR (created_at = ? AND id < ?)
			 ORDER BY created_at DESC, id DESC
			 LIMIT ?`,
			at, at, opts.Before.ID, limit,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing posts: %w", err)
	}
	return collectPosts(rows, limit)
}

// ListPostsByOwner returns every post of one owner, newest first.
func (db *DB) ListPostsByOwner(ctx context.Context, ownerID string) ([]model.Post, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+postColumns+` FROM posts
		 WHERE owner_id = ?
		 ORDER BY created_at DESC, id DESC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing posts of %s: %w", ownerID, err)
	}
	return collectPosts(rows, 0)
}

// ListPostsByTuition returns the latest posts linked to a catalog listing.
func (db *DB) ListPostsByTuition(ctx context.Context, tuitionID, limit int) ([]model.Post, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+postColumns+` FROM posts
		 WHERE tuition_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		tuitionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing posts of tuition %d: %w", tuitionID, err)
	}
	return collectPosts(rows, limit)
}

// UpdatePost writes the editable fields. Counters are owned by the
// like, comment and enrollment writes and are not touched here.
func (db *DB) UpdatePost(ctx context.Context, post *model.Post) error {
	if post.Images == nil {
		post.Images = []string{}
	}
	images, err := json.Marshal(post.Images)
	if err != nil {
		return fmt.Errorf("sqlite: encoding post images: %w", err)
	}

	res, err := db.conn.ExecContext(ctx,
		`UPDATE posts
		 SET content = ?, images = ?, tuition_name = ?, owner_photo = ?
		 WHERE id = ?`,
		post.Content,
		string(images),
		post.TuitionName,
		post.OwnerPhoto,
		post.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating post %s: %w", post.ID, err)
	}
	return rowsAffected(res, func() error { return apperror.NotFound("post", post.ID) })
}

// DeletePost removes a post; its likes and comments go with it (cascade).
func (db *DB) DeletePost(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting post %s: %w", id, err)
	}
	return rowsAffected(res, func() error { return apperror.NotFound("post", id) })
}

func collectPosts(rows *sql.Rows, capHint int) ([]model.Post, error) {
	defer rows.Close()

	posts := make([]model.Post, 0, capHint)
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning post row: %w", err)
		}
		posts = append(posts, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating posts: %w", err)
	}
	return posts, nil
}

func scanPost(s scanner) (*model.Post, error) {
	var (
		p         model.Post
		images    string
		createdAt int64
	)
	err := s.Scan(
		&p.ID, &p.OwnerID, &p.TuitionID, &p.TuitionName, &p.OwnerPhoto, &p.Content,
		&images, &p.Likes, &p.Comments, &p.Enrollments, &createdAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(images), &p.Images); err != nil {
		return nil, fmt.Errorf("decoding images of post %s: %w", p.ID, err)
	}
	if p.Images == nil {
		p.Images = []string{}
	}
	p.CreatedAt = fromNanos(createdAt)
	return &p, nil
}
