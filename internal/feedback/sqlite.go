package feedback

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/joseph-ayodele/tradedocs/constants"
	"github.com/joseph-ayodele/tradedocs/internal/common"
)

const schema = `
CREATE TABLE IF NOT EXISTS feedback (
	id         TEXT PRIMARY KEY,
	doc_type   TEXT NOT NULL,
	filename   TEXT NOT NULL DEFAULT '',
	result     TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS feedback_created_at ON feedback (created_at DESC);`

// SQLiteStore persists records in a single-file SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(ctx context.Context, path string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create feedback dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open feedback db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init feedback schema: %w", err)
	}
	logger.Info("feedback store opened", "path", path)
	return &SQLiteStore{db: db, logger: logger}, nil
}

func (s *SQLiteStore) Save(ctx context.Context, rec Record) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	blob, err := json.Marshal(rec.Result)
	if err != nil {
		return fmt.Errorf("encode feedback: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO feedback (id, doc_type, filename, result, created_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET doc_type = excluded.doc_type, filename = excluded.filename,
		 result = excluded.result, created_at = excluded.created_at`,
		rec.ID, string(rec.DocType), rec.Filename, string(blob), rec.CreatedAt.UnixNano())
	if err != nil {
		s.logger.Error("failed to save feedback", "id", rec.ID, "error", err)
		return fmt.Errorf("save feedback: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, doc_type, filename, result, created_at FROM feedback WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, common.NotFoundErrorf("feedback for document %s not found", id)
	}
	return rec, err
}

func (s *SQLiteStore) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, doc_type, filename, result, created_at FROM feedback ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (Record, error) {
	var (
		rec     Record
		docType string
		blob    string
		created int64
	)
	if err := sc.Scan(&rec.ID, &docType, &rec.Filename, &blob, &created); err != nil {
		return Record{}, err
	}
	if err := json.Unmarshal([]byte(blob), &rec.Result); err != nil {
		return Record{}, fmt.Errorf("decode feedback %s: %w", rec.ID, err)
	}
	rec.DocType = constants.DocType(docType)
	rec.CreatedAt = time.Unix(0, created).UTC()
	return rec, nil
}
