package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/koprjaa/protext-scraper/internal/model"
	"github.com/koprjaa/protext-scraper/internal/store"
)

// SQLiteFileName is the database file created inside the mirror directory.
const SQLiteFileName = "protext.db"

// SQLiteMirror keeps a queryable copy of scraped records in SQLite.
type SQLiteMirror struct {
	db     *sql.DB
	dbPath string
}

// Options configures how the SQLite file is opened.
type Options struct {
	// CreateIfNotExists creates the directory and database file if missing.
	CreateIfNotExists bool

	// EnableWAL switches the journal to write-ahead logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// OpenSQLite opens or creates the mirror database in dbDir.
func OpenSQLite(dbDir string, opts Options) (*SQLiteMirror, error) {
	dbPath := filepath.Join(dbDir, SQLiteFileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrDatabaseNotFound, dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dbDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// mode=rw refuses to create a missing file.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	m := &SQLiteMirror{db: db, dbPath: dbPath}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}
	if err := m.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return m, nil
}

// Path returns the database file path.
func (m *SQLiteMirror) Path() string {
	return m.dbPath
}

// Close closes the database connection.
func (m *SQLiteMirror) Close() error {
	return m.db.Close()
}

func (m *SQLiteMirror) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS articles (
		id INTEGER PRIMARY KEY,
		title TEXT NOT NULL,
		content TEXT NOT NULL,
		link TEXT NOT NULL,
		date TEXT,
		keywords TEXT,
		category TEXT,
		stored_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_articles_category ON articles(category);
	`
	_, err := m.db.ExecContext(context.Background(), schema)
	return err
}

// Save inserts records whose id is not stored yet. Records without an id
// are not mirrored and count as skipped.
func (m *SQLiteMirror) Save(ctx context.Context, records []*model.Record) (store.AppendResult, error) {
	var res store.AppendResult

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO articles (id, title, content, link, date, keywords, category)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO NOTHING
	`)
	if err != nil {
		return res, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if r == nil || r.ID == 0 {
			res.Skipped++
			continue
		}
		result, err := stmt.ExecContext(ctx, r.ID, r.Title, r.Content, r.Link,
			nullString(r.Date), nullString(r.Keywords), nullString(r.Category))
		if err != nil {
			return store.AppendResult{}, fmt.Errorf("failed to insert article %d: %w", r.ID, err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return store.AppendResult{}, err
		}
		if n > 0 {
			res.Written++
		} else {
			res.Skipped++
		}
	}

	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM articles").Scan(&res.Total); err != nil {
		return store.AppendResult{}, fmt.Errorf("failed to count articles: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return store.AppendResult{}, fmt.Errorf("failed to commit: %w", err)
	}
	return res, nil
}

// IDs returns every stored article id in ascending order.
func (m *SQLiteMirror) IDs(ctx context.Context) ([]int, error) {
	rows, err := m.db.QueryContext(ctx, "SELECT id FROM articles ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query ids: %w", err)
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Get returns the stored article with the given id, or nil if absent.
func (m *SQLiteMirror) Get(ctx context.Context, id int) (*model.Record, error) {
	var (
		r                        model.Record
		date, keywords, category sql.NullString
	)
	err := m.db.QueryRowContext(ctx, `
	SELECT id, title, content, link, date, keywords, category
	FROM articles WHERE id = ?
	`, id).Scan(&r.ID, &r.Title, &r.Content, &r.Link, &date, &keywords, &category)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get article: %w", err)
	}
	r.Date, r.Keywords, r.Category = date.String, keywords.String, category.String
	return &r, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
