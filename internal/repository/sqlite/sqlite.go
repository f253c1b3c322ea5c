// Package sqlite implements the repository interfaces on SQLite.
//
// It uses modernc.org/sqlite, a pure Go translation of SQLite, so the binary
// builds without a C toolchain. One *DB serves every repository interface.
//
// Conventions used by every file in this package:
//   - timestamps are stored as INTEGER unix nanoseconds (sortable, and cursor
//     comparisons in SQL stay numeric)
//   - optional unique keys (email, phone, google_sub) are stored as NULL when
//     empty, so many rows may lack them
//   - sql.ErrNoRows becomes apperror.NotFound, unique violations become
//     apperror.Conflict
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// DB wraps a sql.DB connection pool.
type DB struct {
	conn *sql.DB
}

// New opens the database at dbPath and runs migrations.
//
//   - "data/toptuitions.db" → file database (the parent dir must exist)
//   - ":memory:"            → private in-memory database, used by tests
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Every new connection to ":memory:" is a separate, empty database,
	// so the pool must never open a second one.
	if dbPath == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets readers proceed while a write is in progress.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	// Off by default in SQLite. Post deletion relies on ON DELETE CASCADE.
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting busy timeout: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping reports whether the database is reachable. Used by /healthz.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// migrate creates the schema. Every statement is idempotent, so it runs on
// every start.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			email         TEXT UNIQUE,
			phone         TEXT UNIQUE,
			google_sub    TEXT UNIQUE,
			password_hash TEXT NOT NULL DEFAULT '',
			role          TEXT NOT NULL,
			name          TEXT NOT NULL DEFAULT '',
			bio           TEXT NOT NULL DEFAULT '',
			location      TEXT NOT NULL DEFAULT '',
			contact_phone TEXT NOT NULL DEFAULT '',
			photo_url     TEXT NOT NULL DEFAULT '',
			tuition_name  TEXT NOT NULL DEFAULT '',
			created_at    INTEGER NOT NULL,
			updated_at    INTEGER NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	// Linking an owner to a catalog listing came after the first schema.
	if err := db.addColumnIfNotExists("users", "tuition_id",
		"INTEGER NOT NULL DEFAULT 0"); err != nil {
		return fmt.Errorf("adding tuition_id to users: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS posts (
			id           TEXT PRIMARY KEY,
			owner_id     TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			tuition_id   INTEGER NOT NULL DEFAULT 0,
			tuition_name TEXT NOT NULL DEFAULT '',
			owner_photo  TEXT NOT NULL DEFAULT '',
			content      TEXT NOT NULL,
			images       TEXT NOT NULL DEFAULT '[]',
			likes        INTEGER NOT NULL DEFAULT 0 CHECK (likes >= 0),
			comments     INTEGER NOT NULL DEFAULT 0,
			enrollments  INTEGER NOT NULL DEFAULT 0,
			created_at   INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_posts_feed ON posts(created_at DESC, id DESC);
		CREATE INDEX IF NOT EXISTS idx_posts_owner ON posts(owner_id);
		CREATE INDEX IF NOT EXISTS idx_posts_tuition ON posts(tuition_id);
	`)
	if err != nil {
		return fmt.Errorf("creating posts table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS likes (
			user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			post_id    TEXT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
			created_at INTEGER NOT NULL,
			PRIMARY KEY (user_id, post_id)
		);

		CREATE TABLE IF NOT EXISTS comments (
			id          TEXT PRIMARY KEY,
			post_id     TEXT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
			user_id     TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			author_name TEXT NOT NULL DEFAULT '',
			text        TEXT NOT NULL,
			created_at  INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_comments_post ON comments(post_id, created_at);

		CREATE TABLE IF NOT EXISTS enrollments (
			user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			tuition_id INTEGER NOT NULL,
			created_at INTEGER NOT NULL,
			PRIMARY KEY (user_id, tuition_id)
		);

		CREATE TABLE IF NOT EXISTS otp_challenges (
			id          TEXT PRIMARY KEY,
			phone       TEXT NOT NULL,
			role        TEXT NOT NULL,
			code_hash   TEXT NOT NULL,
			attempts    INTEGER NOT NULL DEFAULT 0,
			expires_at  INTEGER NOT NULL,
			consumed_at INTEGER,
			created_at  INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_otp_expires ON otp_challenges(expires_at);
	`)
	if err != nil {
		return fmt.Errorf("creating activity tables: %w", err)
	}

	return nil
}

// addColumnIfNotExists makes ALTER TABLE ADD COLUMN idempotent.
func (db *DB) addColumnIfNotExists(table, column, definition string) error {
	var count int
	err := db.conn.QueryRow(
		`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`,
		table, column,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("checking column %s.%s: %w", table, column, err)
	}
	if count > 0 {
		return nil
	}
	_, err = db.conn.Exec(fmt.Sprintf(
		`ALTER TABLE %s ADD COLUMN %s %s`, table, column, definition,
	))
	return err
}

// withTx runs fn in a transaction, rolling back on error.
// fn must use tx only: on ":memory:" the pool holds a single connection.
func (db *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func isUniqueViolation(err error) bool {
	var se *msqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	code := se.Code()
	return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}

func isForeignKeyViolation(err error) bool {
	var se *msqlite.Error
	return errors.As(err, &se) && se.Code() == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY
}

func toNanos(t time.Time) int64 {
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

// nullable stores "" as NULL so optional UNIQUE columns do not collide.
func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// rowsAffected turns a zero-row UPDATE or DELETE into NotFound via notFound.
func rowsAffected(res sql.Result, notFound func() error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return notFound()
	}
	return nil
}
