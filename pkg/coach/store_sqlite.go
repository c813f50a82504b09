package coach

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// fixed width so created_at orders lexically
const sortableTime = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore keeps reports in an insert-only SQLite table
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and if needed creates) the database at dbPath
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, Wrapf(err, ErrCodeStorage, "create database directory")
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, Wrapf(err, ErrCodeStorage, "open database")
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, Wrapf(err, ErrCodeStorage, "ping database")
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, Wrapf(err, ErrCodeStorage, "migrate database")
	}
	return store, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS reports (
		id TEXT PRIMARY KEY,
		created_at DATETIME NOT NULL,
		language TEXT NOT NULL,
		role TEXT NOT NULL,
		level TEXT NOT NULL,
		overall_score INTEGER NOT NULL,
		body TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_reports_created_at ON reports(created_at DESC);
	`)
	return err
}

func (s *SQLiteStore) Save(ctx context.Context, report *FeedbackReport) error {
	if err := checkReport(report); err != nil {
		return err
	}
	body, err := json.Marshal(report)
	if err != nil {
		return Wrapf(err, ErrCodeStorage, "encode report")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO reports (id, created_at, language, role, level, overall_score, body) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		report.ID, report.CreatedAt.UTC().Format(sortableTime),
		report.Selection.Language, report.Selection.Role, report.Selection.Level,
		report.OverallScore, string(body),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") || strings.Contains(err.Error(), "PRIMARY KEY") {
			return NewStorageError("report "+report.ID+" already saved").AddDetail("id", report.ID)
		}
		return Wrapf(err, ErrCodeStorage, "insert report")
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]*FeedbackReport, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT body FROM reports ORDER BY created_at DESC`)
	if err != nil {
		return nil, Wrapf(err, ErrCodeStorage, "query reports")
	}
	defer rows.Close()

	reports := []*FeedbackReport{}
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, Wrapf(err, ErrCodeStorage, "scan report")
		}
		report := &FeedbackReport{}
		if err := json.Unmarshal([]byte(body), report); err != nil {
			return nil, Wrapf(err, ErrCodeStorage, "decode report")
		}
		reports = append(reports, report)
	}
	if err := rows.Err(); err != nil {
		return nil, Wrapf(err, ErrCodeStorage, "iterate reports")
	}
	return reports, nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*FeedbackReport, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM reports WHERE id = ?`, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, Wrapf(err, ErrCodeStorage, "query report")
	}
	report := &FeedbackReport{}
	if err := json.Unmarshal([]byte(body), report); err != nil {
		return nil, Wrapf(err, ErrCodeStorage, "decode report")
	}
	return report, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
