package database

import (
	"context"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/koprjaa/protext-scraper/internal/model"
	"github.com/koprjaa/protext-scraper/internal/store"
)

const (
	// DefaultPostgresSchema is the schema holding the articles table.
	DefaultPostgresSchema = "public"
	// defaultPostgresBatch is the number of inserts sent per round trip.
	defaultPostgresBatch = 200
	// defaultPostgresConns caps the pool size.
	defaultPostgresConns = 2
)

var schemaPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// PostgresOptions configures the PostgreSQL mirror.
type PostgresOptions struct {
	// Schema is the schema holding the articles table.
	Schema string
	// MaxConns caps the connection pool.
	MaxConns int
	// ViaBouncer switches to the simple protocol for PgBouncer in
	// transaction pooling mode.
	ViaBouncer bool
	// BatchSize is the number of inserts sent per round trip.
	BatchSize int
}

// PostgresMirror keeps a copy of scraped records in PostgreSQL.
type PostgresMirror struct {
	pool      *pgxpool.Pool
	table     string
	batchSize int
}

// OpenPostgres creates a connection pool for dsn and ensures the articles
// table exists.
func OpenPostgres(ctx context.Context, dsn string, opts PostgresOptions) (*PostgresMirror, error) {
	if opts.Schema == "" {
		opts.Schema = DefaultPostgresSchema
	}
	if !schemaPattern.MatchString(opts.Schema) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSchema, opts.Schema)
	}
	if opts.MaxConns <= 0 {
		opts.MaxConns = defaultPostgresConns
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultPostgresBatch
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres dsn: %w", err)
	}
	cfg.MaxConns = int32(opts.MaxConns) //nolint:gosec // small positive value
	if opts.ViaBouncer {
		cfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	m := &PostgresMirror{
		pool:      pool,
		table:     fmt.Sprintf(`%q.articles`, opts.Schema),
		batchSize: opts.BatchSize,
	}
	if err := m.createTables(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return m, nil
}

// Close closes the pool.
func (m *PostgresMirror) Close() {
	m.pool.Close()
}

func (m *PostgresMirror) createTables(ctx context.Context) error {
	_, err := m.pool.Exec(ctx, `
	CREATE TABLE IF NOT EXISTS `+m.table+` (
		id BIGINT PRIMARY KEY,
		title TEXT NOT NULL,
		content TEXT NOT NULL,
		link TEXT NOT NULL,
		date TEXT,
		keywords TEXT,
		category TEXT,
		stored_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`)
	return err
}

// Save inserts records in batches, ignoring ids already present. Records
// without an id are not mirrored and count as skipped.
func (m *PostgresMirror) Save(ctx context.Context, records []*model.Record) (store.AppendResult, error) {
	var res store.AppendResult
	rows := make([]*model.Record, 0, len(records))
	for _, r := range records {
		if r == nil || r.ID == 0 {
			res.Skipped++
			continue
		}
		rows = append(rows, r)
	}

	insert := `INSERT INTO ` + m.table + `
		(id, title, content, link, date, keywords, category)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING`

	for i := 0; i < len(rows); i += m.batchSize {
		chunk := rows[i:min(i+m.batchSize, len(rows))]
		b := &pgx.Batch{}
		for _, r := range chunk {
			b.Queue(insert, r.ID, r.Title, r.Content, r.Link,
				nullable(r.Date), nullable(r.Keywords), nullable(r.Category))
		}

		br := m.pool.SendBatch(ctx, b)
		for range chunk {
			tag, err := br.Exec()
			if err != nil {
				_ = br.Close() //nolint:errcheck
				return res, fmt.Errorf("failed to insert articles: %w", err)
			}
			if tag.RowsAffected() > 0 {
				res.Written++
			} else {
				res.Skipped++
			}
		}
		if err := br.Close(); err != nil {
			return res, err
		}
	}

	if err := m.pool.QueryRow(ctx, `SELECT COUNT(*) FROM `+m.table).Scan(&res.Total); err != nil {
		return res, fmt.Errorf("failed to count articles: %w", err)
	}
	return res, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
