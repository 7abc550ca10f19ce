// Package sqlite provides a SQLite-backed implementation of the store.Index
// port for persisting OAuth tokens with encrypted secrets.
package sqlite

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/haukened/mealplanner/internal/app"
	"github.com/haukened/mealplanner/internal/domain"
	"github.com/haukened/mealplanner/internal/store"
)

var _ store.Index = (*Index)(nil)

// Open opens the database at dsn and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, classify(err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, classify(err)
	}
	return db, nil
}

// Index implements store.Index using SQLite (via database/sql). It is safe for
// concurrent use; database/sql manages connection pooling and serialization.
type Index struct{ db *sql.DB }

// New constructs an Index, initializing the required schema if absent.
func New(db *sql.DB) (*Index, error) {
	ix := &Index{db: db}
	if err := ix.init(); err != nil {
		return nil, classify(err)
	}
	return ix, nil
}

func (i *Index) init() error {
	schema := `CREATE TABLE IF NOT EXISTS oauth_tokens (
user_id TEXT NOT NULL,
kind TEXT NOT NULL CHECK (kind IN ('pending','access')),
token TEXT NOT NULL,
version INTEGER NOT NULL,
secret_nonce BLOB NOT NULL,
secret_ciphertext BLOB NOT NULL,
created_at INTEGER NOT NULL,
last_used_at INTEGER NOT NULL,
PRIMARY KEY (user_id, kind, token)
);
CREATE INDEX IF NOT EXISTS oauth_tokens_kind_created ON oauth_tokens (kind, created_at);`
	_, err := i.db.Exec(schema)
	return err
}

// Ping reports whether the database is reachable.
func (i *Index) Ping(ctx context.Context) error {
	return classify(i.db.PingContext(ctx))
}

// Put stores a token row. Access rows replace the user's previous access
// token inside one transaction.
func (i *Index) Put(ctx context.Context, rec store.Record) (err error) {
	if !rec.Kind.Valid() {
		return fmt.Errorf("invalid token kind %q", rec.Kind)
	}
	tx, err := i.db.BeginTx(ctx, nil)
	if err != nil {
		return classify(err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if rec.Kind == domain.KindAccess {
		const del = `DELETE FROM oauth_tokens WHERE user_id=? AND kind=?`
		if _, err = tx.ExecContext(ctx, del, rec.UserID, string(rec.Kind)); err != nil {
			return classify(err)
		}
	}
	const ins = `INSERT OR REPLACE INTO oauth_tokens (user_id, kind, token, version, secret_nonce, secret_ciphertext, created_at, last_used_at) VALUES (?,?,?,?,?,?,?,?)`
	if _, err = tx.ExecContext(ctx, ins, rec.UserID, string(rec.Kind), rec.Token, rec.Version, rec.Nonce, rec.Ciphertext, rec.CreatedAt.Unix(), rec.LastUsedAt.Unix()); err != nil {
		return classify(err)
	}
	if err = tx.Commit(); err != nil {
		return classify(err)
	}
	return nil
}

const columns = `user_id, kind, token, version, secret_nonce, secret_ciphertext, created_at, last_used_at`

// selector returns the WHERE clause and args matching one row; an empty
// token picks the newest row of kind for the user.
func selector(user string, kind domain.TokenKind, token string) (string, []any) {
	if token != "" {
		return `user_id=? AND kind=? AND token=?`, []any{user, string(kind), token}
	}
	return `rowid = (SELECT rowid FROM oauth_tokens WHERE user_id=? AND kind=? ORDER BY created_at DESC, rowid DESC LIMIT 1)`, []any{user, string(kind)}
}

// Get returns one row without modifying it.
func (i *Index) Get(ctx context.Context, user string, kind domain.TokenKind, token string) (store.Record, error) {
	where, args := selector(user, kind, token)
	row := i.db.QueryRowContext(ctx, `SELECT `+columns+` FROM oauth_tokens WHERE `+where, args...)
	return scanRecord(row)
}

// Take hard-deletes the row and returns its data if it existed.
// Expiration is not interpreted here; callers decide if an expired row constitutes not found.
func (i *Index) Take(ctx context.Context, user string, kind domain.TokenKind, token string) (store.Record, error) {
	where, args := selector(user, kind, token)
	row := i.db.QueryRowContext(ctx, `DELETE FROM oauth_tokens WHERE `+where+` RETURNING `+columns, args...)
	return scanRecord(row)
}

func scanRecord(row *sql.Row) (store.Record, error) {
	var (
		rec           store.Record
		kind          string
		created, used int64
	)
	if err := row.Scan(&rec.UserID, &kind, &rec.Token, &rec.Version, &rec.Nonce, &rec.Ciphertext, &created, &used); err != nil {
		return store.Record{}, classify(err)
	}
	rec.Kind = domain.TokenKind(kind)
	rec.CreatedAt = time.Unix(created, 0).UTC()
	rec.LastUsedAt = time.Unix(used, 0).UTC()
	return rec, nil
}

// Delete removes matching rows and returns the count.
func (i *Index) Delete(ctx context.Context, user string, kind domain.TokenKind, token string) (int, error) {
	q := `DELETE FROM oauth_tokens WHERE user_id=? AND kind=?`
	args := []any{user, string(kind)}
	if token != "" {
		q += ` AND token=?`
		args = append(args, token)
	}
	return execCount(ctx, i.db, q, args...)
}

// Touch updates last_used_at on the newest row of kind for the user.
func (i *Index) Touch(ctx context.Context, user string, kind domain.TokenKind, t time.Time) error {
	where, args := selector(user, kind, "")
	n, err := execCount(ctx, i.db, `UPDATE oauth_tokens SET last_used_at=? WHERE `+where, append([]any{t.Unix()}, args...)...)
	if err != nil {
		return err
	}
	if n == 0 {
		return app.ErrNotFound
	}
	return nil
}

// DeleteCreatedBefore removes rows of kind created strictly before t.
func (i *Index) DeleteCreatedBefore(ctx context.Context, kind domain.TokenKind, t time.Time) (int, error) {
	return execCount(ctx, i.db, `DELETE FROM oauth_tokens WHERE kind=? AND created_at < ?`, string(kind), t.Unix())
}

func execCount(ctx context.Context, db *sql.DB, q string, args ...any) (int, error) {
	res, err := db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, classify(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, classify(err)
	}
	return int(n), nil
}

// classify maps driver errors onto the storage error taxonomy.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return app.ErrNotFound
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var se sqlite3.Error
	if errors.As(err, &se) {
		switch se.Code {
		case sqlite3.ErrCantOpen, sqlite3.ErrIoErr, sqlite3.ErrBusy, sqlite3.ErrLocked,
			sqlite3.ErrNotADB, sqlite3.ErrCorrupt, sqlite3.ErrPerm, sqlite3.ErrAuth:
			return fmt.Errorf("%w: %w", app.ErrConnectionFailed, err)
		}
		return err
	}
	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, driver.ErrBadConn) ||
		strings.Contains(err.Error(), "database is closed") {
		return fmt.Errorf("%w: %w", app.ErrConnectionFailed, err)
	}
	return err
}
