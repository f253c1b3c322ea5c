package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/toptuitions/toptuitions/internal/apperror"
	"github.com/toptuitions/toptuitions/internal/model"
	"github.com/toptuitions/toptuitions/internal/repository"
)

var _ repository.OTPRepository = (*DB)(nil)

func (db *DB) CreateChallenge(ctx context.Context, c *model.OTPChallenge) error {
	c.ID = xid.New().String()
	c.CreatedAt = time.Now()
	c.Attempts = 0
	c.ConsumedAt = nil

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO otp_challenges (id, phone, role, code_hash, attempts, expires_at, created_at)
		 VALUES (?, ?, ?, ?, 0, ?, ?)`,
		c.ID, c.Phone, string(c.Role), c.CodeHash, toNanos(c.ExpiresAt), toNanos(c.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating otp challenge: %w", err)
	}
	return nil
}

func (db *DB) GetChallenge(ctx context.Context, id string) (*model.OTPChallenge, error) {
	var (
		c                    model.OTPChallenge
		role                 string
		expiresAt, createdAt int64
		consumedAt           sql.NullInt64
	)
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, phone, role, code_hash, attempts, expires_at, consumed_at, created_at
		 FROM otp_challenges WHERE id = ?`,
		id,
	).Scan(&c.ID, &c.Phone, &role, &c.CodeHash, &c.Attempts, &expiresAt, &consumedAt, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("otp challenge", id)
		}
		return nil, fmt.Errorf("sqlite: getting otp challenge %s: %w", id, err)
	}

	c.Role = model.Role(role)
	c.ExpiresAt = fromNanos(expiresAt)
	c.CreatedAt = fromNanos(createdAt)
	if consumedAt.Valid {
		t := fromNanos(consumedAt.Int64)
		c.ConsumedAt = &t
	}
	return &c, nil
}

func (db *DB) RecordFailedAttempt(ctx context.Context, id string) (int, error) {
	var attempts int
	err := db.conn.QueryRowContext(ctx,
		`UPDATE otp_challenges SET attempts = attempts + 1 WHERE id = ? RETURNING attempts`,
		id,
	).Scan(&attempts)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, apperror.NotFound("otp challenge", id)
		}
		return 0, fmt.Errorf("sqlite: recording otp attempt %s: %w", id, err)
	}
	return attempts, nil
}

// ConsumeChallenge is a compare-and-set on consumed_at: of two concurrent
// verifications of the same code only one succeeds.
func (db *DB) ConsumeChallenge(ctx context.Context, id string, at time.Time) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE otp_challenges SET consumed_at = ? WHERE id = ? AND consumed_at IS NULL`,
		toNanos(at), id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: consuming otp challenge %s: %w", id, err)
	}
	return rowsAffected(res, func() error {
		return &apperror.AppError{Err: apperror.ErrConflict, Message: "this code has already been used"}
	})
}

// DeleteExpiredChallenges removes challenges whose deadline passed before now.
func (db *DB) DeleteExpiredChallenges(ctx context.Context, now time.Time) (int64, error) {
	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM otp_challenges WHERE expires_at <= ?`, toNanos(now))
	if err != nil {
		return 0, fmt.Errorf("sqlite: deleting expired otp challenges: %w", err)
	}
	return res.RowsAffected()
}
