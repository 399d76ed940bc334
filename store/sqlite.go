package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/lukemcguire/portalaudit/result"
)

// DatabaseFile is the SQLite file name inside the data directory.
const DatabaseFile = "portalaudit.db"

// SQLiteStore stores results in a single SQLite file. Violations are kept as
// a JSON column.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// OpenSQLite opens or creates the database in dataDir.
func OpenSQLite(ctx context.Context, dataDir string) (*SQLiteStore, error) {
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, DatabaseFile)

	db, err := sql.Open("sqlite", dbPath+"?mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite has a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	s := &SQLiteStore{db: db, dbPath: dbPath}

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return s, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string { return s.dbPath }

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) createTables(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		url TEXT NOT NULL,
		violations TEXT NOT NULL,
		timestamp TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_results_url ON results(url);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func (s *SQLiteStore) ListAll(ctx context.Context) ([]result.AnalysisResult, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, url, violations, timestamp FROM results ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer func() { _ = rows.Close() }()

	results := []result.AnalysisResult{}
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func (s *SQLiteStore) Get(ctx context.Context, id int64) (result.AnalysisResult, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, url, violations, timestamp FROM results WHERE id = ?`, id)
	r, err := scanResult(row)
	if errors.Is(err, sql.ErrNoRows) {
		return result.AnalysisResult{}, ErrNotFound
	}
	return r, err
}

func (s *SQLiteStore) InsertMany(ctx context.Context, results []result.AnalysisResult) ([]result.AnalysisResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO results (url, violations, timestamp) VALUES (?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	inserted := make([]result.AnalysisResult, 0, len(results))
	for _, r := range results {
		violations, err := encodeViolations(r.Violations)
		if err != nil {
			return nil, err
		}
		res, err := stmt.ExecContext(ctx, r.URL, violations, formatTimestamp(r.Timestamp))
		if err != nil {
			return nil, fmt.Errorf("insert %s: %w", r.URL, err)
		}
		if r.ID, err = res.LastInsertId(); err != nil {
			return nil, fmt.Errorf("read id for %s: %w", r.URL, err)
		}
		inserted = append(inserted, r)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return inserted, nil
}

func (s *SQLiteStore) Update(ctx context.Context, r result.AnalysisResult) error {
	violations, err := encodeViolations(r.Violations)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE results SET url = ?, violations = ?, timestamp = ? WHERE id = ?`,
		r.URL, violations, formatTimestamp(r.Timestamp), r.ID)
	if err != nil {
		return fmt.Errorf("update result %d: %w", r.ID, err)
	}
	return requireRow(res, r.ID)
}

func (s *SQLiteStore) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM results WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete result %d: %w", id, err)
	}
	return requireRow(res, id)
}

func requireRow(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for result %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("result %d: %w", id, ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanResult(row rowScanner) (result.AnalysisResult, error) {
	var (
		r          result.AnalysisResult
		violations string
		timestamp  string
	)
	if err := row.Scan(&r.ID, &r.URL, &violations, &timestamp); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r, err
		}
		return r, fmt.Errorf("scan result: %w", err)
	}
	if err := json.Unmarshal([]byte(violations), &r.Violations); err != nil {
		return r, fmt.Errorf("decode violations of result %d: %w", r.ID, err)
	}
	if r.Violations == nil {
		r.Violations = []result.Violation{}
	}
	r.Timestamp = parseTimestamp(timestamp)
	return r, nil
}

func encodeViolations(v []result.Violation) (string, error) {
	if v == nil {
		v = []result.Violation{}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode violations: %w", err)
	}
	return string(data), nil
}

var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
