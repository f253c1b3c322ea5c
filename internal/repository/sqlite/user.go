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

var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, email, phone, google_sub, password_hash, role,
	name, bio, location, contact_phone, photo_url, tuition_name, tuition_id,
	created_at, updated_at`

// CreateUser inserts a new user and fills in ID and timestamps.
// A duplicate email, phone or Google subject is an apperror.ErrConflict.
func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	if !user.Role.Valid() {
		return apperror.ValidationFailed("userType", fmt.Sprintf("unknown role %q", user.Role))
	}

	now := time.Now()
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now

	p := user.Profile
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		nullable(user.Email),
		nullable(user.Phone),
		nullable(user.GoogleSub),
		user.PasswordHash,
		string(user.Role),
		p.Name, p.Bio, p.Location, p.Phone, p.PhotoURL, p.TuitionName, p.TuitionID,
		toNanos(user.CreatedAt),
		toNanos(user.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return &apperror.AppError{Err: apperror.ErrConflict, Message: "an account with these sign-in details already exists"}
		}
		return fmt.Errorf("sqlite: creating user: %w", err)
	}

	return nil
}

// GetUserByID returns apperror.ErrNotFound when no user has that ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return db.getUserBy(ctx, "id", id)
}

func (db *DB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return db.getUserBy(ctx, "email", email)
}

func (db *DB) GetUserByPhone(ctx context.Context, phone string) (*model.User, error) {
	return db.getUserBy(ctx, "phone", phone)
}

func (db *DB) GetUserByGoogleSub(ctx context.Context, sub string) (*model.User, error) {
	return db.getUserBy(ctx, "google_sub", sub)
}

// getUserBy looks a user up by one unique column. column is always one of
// the constants above, never user input.
func (db *DB) getUserBy(ctx context.Context, column, value string) (*model.User, error) {
	if value == "" {
		return nil, apperror.NotFound("user", value)
	}

	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE `+column+` = ?`,
		value,
	)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", value)
		}
		return nil, fmt.Errorf("sqlite: getting user by %s: %w", column, err)
	}
	return u, nil
}

// UpdateProfile replaces the editable profile columns of user id.
func (db *DB) UpdateProfile(ctx context.Context, id string, p model.Profile) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE users
		 SET name = ?, bio = ?, location = ?, contact_phone = ?, photo_url = ?,
		     tuition_name = ?, tuition_id = ?, updated_at = ?
		 WHERE id = ?`,
		p.Name, p.Bio, p.Location, p.Phone, p.PhotoURL, p.TuitionName, p.TuitionID,
		toNanos(time.Now()),
		id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating profile %s: %w", id, err)
	}
	return rowsAffected(res, func() error { return apperror.NotFound("user", id) })
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(s scanner) (*model.User, error) {
	var (
		u                       model.User
		email, phone, googleSub sql.NullString
		role                    string
		createdAt, updatedAt    int64
	)
	err := s.Scan(
		&u.ID, &email, &phone, &googleSub, &u.PasswordHash, &role,
		&u.Profile.Name, &u.Profile.Bio, &u.Profile.Location, &u.Profile.Phone,
		&u.Profile.PhotoURL, &u.Profile.TuitionName, &u.Profile.TuitionID,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.Email = email.String
	u.Phone = phone.String
	u.GoogleSub = googleSub.String
	u.Role = model.Role(role)
	u.CreatedAt = fromNanos(createdAt)
	u.UpdatedAt = fromNanos(updatedAt)
	return &u, nil
}
