package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"igtracker/pkg/models"
)

// Schema is applied on every open
const Schema = `
CREATE TABLE IF NOT EXISTS tracked_accounts (
	identifier    TEXT PRIMARY KEY,
	reciprocates  INTEGER NOT NULL DEFAULT 0,
	first_seen    INTEGER NOT NULL,
	last_seen     INTEGER NOT NULL,
	active        INTEGER NOT NULL DEFAULT 1,
	CHECK (first_seen <= last_seen)
);

CREATE INDEX IF NOT EXISTS idx_tracked_accounts_active ON tracked_accounts(active);

CREATE TABLE IF NOT EXISTS follow_history (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	identifier   TEXT NOT NULL REFERENCES tracked_accounts(identifier),
	event_kind   TEXT NOT NULL CHECK (event_kind IN ('NEW_FOLLOW', 'UNFOLLOW')),
	occurred_at  INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_follow_history_occurred ON follow_history(occurred_at);
CREATE INDEX IF NOT EXISTS idx_follow_history_identifier ON follow_history(identifier);
`

const pragmas = "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(10000)&_pragma=synchronous(NORMAL)"

// SQLiteStore implements Store on a single SQLite file
type SQLiteStore struct {
	db *sql.DB
}

// Open opens or creates the database at path and applies Schema
func Open(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path+pragmas)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", path, err)
	}
	return newSQLiteStore(db)
}

// OpenMemory opens a private in-memory database
func OpenMemory() (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", ":memory:?_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open memory: %w", err)
	}
	// every connection would get its own empty database
	db.SetMaxOpenConns(1)
	return newSQLiteStore(db)
}

func newSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// DB exposes the handle for tests and maintenance
func (s *SQLiteStore) DB() *sql.DB { return s.db }

func (s *SQLiteStore) Close() error { return s.db.Close() }

// RunAtomic implements Store
func (s *SQLiteStore) RunAtomic(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&sqlTx{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetAccount(ctx context.Context, identifier string) (*models.TrackedAccount, error) {
	return getAccount(ctx, s.db, identifier)
}

func (s *SQLiteStore) ListAccounts(ctx context.Context, filter AccountFilter) ([]models.TrackedAccount, error) {
	return listAccounts(ctx, s.db, filter)
}

func (s *SQLiteStore) ListHistory(ctx context.Context, limit int) ([]models.HistoryEvent, error) {
	return listHistory(ctx, s.db, limit)
}

// Summary implements Store
func (s *SQLiteStore) Summary(ctx context.Context) (Summary, error) {
	var sum Summary
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN active = 1 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN active = 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN active = 1 AND reciprocates = 1 THEN 1 ELSE 0 END), 0)
		FROM tracked_accounts`).Scan(&sum.Active, &sum.Inactive, &sum.Mutual)
	if err != nil {
		return sum, fmt.Errorf("summarise accounts: %w", err)
	}
	sum.NotMutual = sum.Active - sum.Mutual

	var last sql.NullInt64
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), MAX(occurred_at) FROM follow_history`).Scan(&sum.Events, &last)
	if err != nil {
		return sum, fmt.Errorf("summarise history: %w", err)
	}
	if last.Valid {
		sum.LastActivity = fromMillis(last.Int64)
	}
	return sum, nil
}

// querier is satisfied by *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type sqlTx struct {
	q querier
}

func (t *sqlTx) GetAccount(ctx context.Context, identifier string) (*models.TrackedAccount, error) {
	return getAccount(ctx, t.q, identifier)
}

func (t *sqlTx) ListAccounts(ctx context.Context, filter AccountFilter) ([]models.TrackedAccount, error) {
	return listAccounts(ctx, t.q, filter)
}

func (t *sqlTx) ListHistory(ctx context.Context, limit int) ([]models.HistoryEvent, error) {
	return listHistory(ctx, t.q, limit)
}

func (t *sqlTx) UpsertAccount(ctx context.Context, a models.TrackedAccount) error {
	if a.Identifier == "" {
		return errors.New("upsert account: empty identifier")
	}
	_, err := t.q.ExecContext(ctx, `
		INSERT INTO tracked_accounts (identifier, reciprocates, first_seen, last_seen, active)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(identifier) DO UPDATE SET
			reciprocates = excluded.reciprocates,
			last_seen    = excluded.last_seen,
			active       = excluded.active`,
		a.Identifier, boolInt(a.Reciprocates), toMillis(a.FirstSeen), toMillis(a.LastSeen), boolInt(a.Active),
	)
	if err != nil {
		return fmt.Errorf("upsert account %s: %w", a.Identifier, err)
	}
	return nil
}

func (t *sqlTx) AppendHistory(ctx context.Context, e models.HistoryEvent) (int64, error) {
	if !e.Kind.Valid() {
		return 0, fmt.Errorf("append history: unknown event kind %q", e.Kind)
	}
	res, err := t.q.ExecContext(ctx,
		`INSERT INTO follow_history (identifier, event_kind, occurred_at) VALUES (?, ?, ?)`,
		e.Identifier, string(e.Kind), toMillis(e.OccurredAt),
	)
	if err != nil {
		return 0, fmt.Errorf("append history %s: %w", e.Identifier, err)
	}
	return res.LastInsertId()
}

func getAccount(ctx context.Context, q querier, identifier string) (*models.TrackedAccount, error) {
	row := q.QueryRowContext(ctx, `
		SELECT identifier, reciprocates, first_seen, last_seen, active
		FROM tracked_accounts WHERE identifier = ?`, identifier)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get account %s: %w", identifier, err)
	}
	return a, nil
}

func listAccounts(ctx context.Context, q querier, f AccountFilter) ([]models.TrackedAccount, error) {
	var (
		where []string
		args  []any
	)
	if f.Active != nil {
		where = append(where, "active = ?")
		args = append(args, boolInt(*f.Active))
	}
	if f.Reciprocates != nil {
		where = append(where, "reciprocates = ?")
		args = append(args, boolInt(*f.Reciprocates))
	}

	query := `SELECT identifier, reciprocates, first_seen, last_seen, active FROM tracked_accounts`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	switch f.Order {
	case OrderByFirstSeenDesc:
		query += " ORDER BY first_seen DESC, identifier"
	case OrderByLastSeenDesc:
		query += " ORDER BY last_seen DESC, identifier"
	default:
		query += " ORDER BY identifier"
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var out []models.TrackedAccount
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// listHistory returns the newest events first. A non-positive limit means all.
func listHistory(ctx context.Context, q querier, limit int) ([]models.HistoryEvent, error) {
	query := `SELECT id, identifier, event_kind, occurred_at FROM follow_history ORDER BY occurred_at DESC, id DESC`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var out []models.HistoryEvent
	for rows.Next() {
		var (
			e    models.HistoryEvent
			kind string
			at   int64
		)
		if err := rows.Scan(&e.ID, &e.Identifier, &kind, &at); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		e.Kind = models.EventKind(kind)
		e.OccurredAt = fromMillis(at)
		out = append(out, e)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(s scanner) (*models.TrackedAccount, error) {
	var (
		a                   models.TrackedAccount
		recip, active       int
		firstSeen, lastSeen int64
	)
	if err := s.Scan(&a.Identifier, &recip, &firstSeen, &lastSeen, &active); err != nil {
		return nil, err
	}
	a.Reciprocates = recip == 1
	a.Active = active == 1
	a.FirstSeen = fromMillis(firstSeen)
	a.LastSeen = fromMillis(lastSeen)
	return &a, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func toMillis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }
