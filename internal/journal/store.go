package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"audio2subs/internal/services"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion must be bumped whenever schema.sql changes. Older databases
// are rejected rather than migrated.
const schemaVersion = 1

// ErrSchemaMismatch is returned when the database was created by a
// different schema version.
var ErrSchemaMismatch = errors.New("journal schema version mismatch")

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Store is the SQLite-backed journal.
type Store struct {
	db   *sql.DB
	path string
}

var _ Recorder = (*Store)(nil)

// Open creates or opens the journal database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "journal", "open", "journal path required", nil)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure journal directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}
	store := &Store{db: db, path: path}
	if err := store.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file.
func (s *Store) Path() string { return s.path }

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists); err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableExists == 0 {
		return s.createSchema(ctx)
	}
	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to reset history)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := range busyRetryAttempts {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay = min(delay*2, busyRetryMaxBackoff)
	}
	return lastErr
}

func (s *Store) exec(ctx context.Context, query string, args ...any) error {
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	})
}

// BeginSession inserts a running session.
func (s *Store) BeginSession(ctx context.Context, sess Session) error {
	if sess.ID == "" {
		return services.Wrap(services.ErrValidation, "journal", "begin session", "session id required", nil)
	}
	if sess.StartedAt.IsZero() {
		sess.StartedAt = time.Now()
	}
	if sess.Status == "" {
		sess.Status = StatusRunning
	}
	err := s.exec(ctx,
		`INSERT INTO sessions (
            id, video_path, subtitle_path, backend, duration_s, started_at, status, chunks_total
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID,
		sess.VideoPath,
		nullableString(sess.SubtitlePath),
		sess.Backend,
		sess.Duration,
		formatTime(sess.StartedAt),
		string(sess.Status),
		sess.ChunksTotal,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// RecordAttempt appends one chunk attempt.
func (s *Store) RecordAttempt(ctx context.Context, a Attempt) error {
	if a.At.IsZero() {
		a.At = time.Now()
	}
	err := s.exec(ctx,
		`INSERT INTO chunk_attempts (
            session_id, chunk_id, attempt, start_s, end_s, outcome, error, words, duration_ms, at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.SessionID,
		a.ChunkID,
		a.Attempt,
		a.Start,
		a.End,
		a.Outcome,
		nullableString(a.Error),
		a.Words,
		a.Elapsed.Milliseconds(),
		formatTime(a.At),
	)
	if err != nil {
		return fmt.Errorf("insert chunk attempt: %w", err)
	}
	return nil
}

// FinishSession stores the final counts and status.
func (s *Store) FinishSession(ctx context.Context, id string, sum Summary) error {
	if sum.Status == "" {
		sum.Status = StatusComplete
	}
	var affected int64
	err := retryOnBusy(ctx, func() error {
		res, err := s.db.ExecContext(ctx,
			`UPDATE sessions
             SET finished_at = ?, status = ?, chunks_total = ?, chunks_done = ?,
                 chunks_failed = ?, lines = ?, error = ?
             WHERE id = ?`,
			formatTime(time.Now()),
			string(sum.Status),
			sum.ChunksTotal,
			sum.ChunksDone,
			sum.ChunksFailed,
			sum.Lines,
			nullableString(sum.Error),
			id,
		)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("finish session: %w", err)
	}
	if affected == 0 {
		return services.Wrap(services.ErrNotFound, "journal", "finish session", "unknown session "+id, nil)
	}
	return nil
}

const sessionColumns = "id, video_path, subtitle_path, backend, duration_s, started_at, finished_at, status, chunks_total, chunks_done, chunks_failed, lines, error"

// RecentSessions returns up to limit sessions, newest first.
func (s *Store) RecentSessions(ctx context.Context, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()
	var out []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// GetSession returns one session. The id may be a unique prefix.
func (s *Store) GetSession(ctx context.Context, id string) (Session, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Session{}, services.Wrap(services.ErrValidation, "journal", "get session", "session id required", nil)
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = ? OR id LIKE ? ORDER BY id LIMIT 2`,
		id, stripWildcards(id)+"%")
	if err != nil {
		return Session{}, fmt.Errorf("get session: %w", err)
	}
	defer rows.Close()
	var found []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return Session{}, err
		}
		if sess.ID == id {
			return sess, nil
		}
		found = append(found, sess)
	}
	if err := rows.Err(); err != nil {
		return Session{}, err
	}
	switch len(found) {
	case 0:
		return Session{}, services.Wrap(services.ErrNotFound, "journal", "get session", "no session "+id, nil)
	case 1:
		return found[0], nil
	default:
		return Session{}, services.Wrap(services.ErrValidation, "journal", "get session", "ambiguous session prefix "+id, nil)
	}
}

// SessionAttempts lists a session's attempts in the order they happened.
func (s *Store) SessionAttempts(ctx context.Context, id string) ([]Attempt, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, chunk_id, attempt, start_s, end_s, outcome, error, words, duration_ms, at
         FROM chunk_attempts WHERE session_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()
	var out []Attempt
	for rows.Next() {
		var (
			a      Attempt
			errMsg sql.NullString
			ms     int64
			at     string
		)
		if err := rows.Scan(&a.SessionID, &a.ChunkID, &a.Attempt, &a.Start, &a.End,
			&a.Outcome, &errMsg, &a.Words, &ms, &at); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		a.Error = errMsg.String
		a.Elapsed = time.Duration(ms) * time.Millisecond
		a.At = parseTime(at)
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanSession(scanner interface{ Scan(dest ...any) error }) (Session, error) {
	var (
		sess         Session
		subtitlePath sql.NullString
		startedRaw   string
		finishedRaw  sql.NullString
		status       string
		errMsg       sql.NullString
	)
	if err := scanner.Scan(
		&sess.ID,
		&sess.VideoPath,
		&subtitlePath,
		&sess.Backend,
		&sess.Duration,
		&startedRaw,
		&finishedRaw,
		&status,
		&sess.ChunksTotal,
		&sess.ChunksDone,
		&sess.ChunksFailed,
		&sess.Lines,
		&errMsg,
	); err != nil {
		return Session{}, fmt.Errorf("scan session: %w", err)
	}
	sess.SubtitlePath = subtitlePath.String
	sess.StartedAt = parseTime(startedRaw)
	if finishedRaw.Valid {
		sess.FinishedAt = parseTime(finishedRaw.String)
	}
	sess.Status = Status(status)
	sess.Error = errMsg.String
	return sess, nil
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(raw string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

func stripWildcards(s string) string {
	return strings.NewReplacer("%", "", "_", "").Replace(s)
}
