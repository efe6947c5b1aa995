package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog/log"
	"github.com/seanblong/timemachine/internal/faults"
	"github.com/seanblong/timemachine/pkg/models"
)

// Store provides methods to interact with the database.
type Store struct {
	pool *pgxpool.Pool
}

// CommitStore defines the methods that the Store must implement.
type CommitStore interface {
	EnsureCatalog(ctx context.Context) error
	UpsertCatalog(ctx context.Context, repoURL, table string) error
	ListCatalog(ctx context.Context) ([]models.CatalogEntry, error)
	TableFor(ctx context.Context, repoURL string) (string, error)
	ReplaceTable(ctx context.Context, table string, dim, partitionDays int) error
	InsertChunks(ctx context.Context, table string, dim int, chunks []models.EmbeddedChunk) error
	CreateIndexes(ctx context.Context, table string) error
	Search(ctx context.Context, table string, vec []float32, k int, f Filters) ([]models.SearchResult, error)
}

// New creates a new Store instance connected to the given database URL.
func New(ctx context.Context, url string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", faults.ErrConfiguration, err)
	}
	p, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", faults.ErrStorage, err)
	}
	return &Store{pool: p}, nil
}

func (s *Store) Close() { s.pool.Close() }

// Ping checks the database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return s.pool.Ping(ctx)
}

// EnsureCatalog creates the repository catalog table if missing.
func (s *Store) EnsureCatalog(ctx context.Context) error {
	const q = `
CREATE TABLE IF NOT EXISTS time_machine_catalog (
  repo_url   TEXT PRIMARY KEY,
  table_name TEXT NOT NULL
);`
	if _, err := s.pool.Exec(ctx, q); err != nil {
		return fmt.Errorf("%w: ensure catalog: %v", faults.ErrStorage, err)
	}
	return nil
}

// UpsertCatalog records which table holds the given repository's history,
// replacing any previous entry for the same URL.
func (s *Store) UpsertCatalog(ctx context.Context, repoURL, table string) error {
	const q = `
INSERT INTO time_machine_catalog (repo_url, table_name)
VALUES ($1, $2)
ON CONFLICT (repo_url) DO UPDATE SET table_name = EXCLUDED.table_name;`
	if _, err := s.pool.Exec(ctx, q, repoURL, table); err != nil {
		return fmt.Errorf("%w: upsert catalog: %v", faults.ErrStorage, err)
	}
	return nil
}

// ListCatalog returns all ingested repositories.
func (s *Store) ListCatalog(ctx context.Context) ([]models.CatalogEntry, error) {
	rows, err := s.pool.Query(ctx, `SELECT repo_url, table_name FROM time_machine_catalog ORDER BY repo_url`)
	if err != nil {
		return nil, fmt.Errorf("%w: list catalog: %v", faults.ErrStorage, err)
	}
	defer rows.Close()

	var entries []models.CatalogEntry
	for rows.Next() {
		var e models.CatalogEntry
		if err := rows.Scan(&e.RepoURL, &e.TableName); err != nil {
			return nil, fmt.Errorf("%w: %v", faults.ErrStorage, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// TableFor resolves a repository URL to its vector table. An unknown
// repository is a configuration error, not a storage one.
func (s *Store) TableFor(ctx context.Context, repoURL string) (string, error) {
	var table string
	err := s.pool.QueryRow(ctx,
		`SELECT table_name FROM time_machine_catalog WHERE repo_url = $1`, repoURL).Scan(&table)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("%w: repository %q has not been ingested", faults.ErrConfiguration, repoURL)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", faults.ErrStorage, err)
	}
	return table, nil
}

// ReplaceTable drops and recreates the vector table with the fixed schema
// and declares it time-partitioned on date. When the timescaledb extension
// is unavailable the table stays plain; the date index added by
// CreateIndexes keeps range filters cheap either way.
func (s *Store) ReplaceTable(ctx context.Context, table string, dim, partitionDays int) error {
	if err := validateTable(table); err != nil {
		return err
	}
	if dim <= 0 {
		return fmt.Errorf("%w: embedding dimension must be positive, got %d", faults.ErrConfiguration, dim)
	}
	if partitionDays <= 0 {
		partitionDays = 30
	}

	if _, err := s.pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return fmt.Errorf("%w: create vector extension: %v", faults.ErrStorage, err)
	}
	if _, err := s.pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS timescaledb`); err != nil {
		log.Warn().Err(err).Msg("timescaledb extension unavailable, using a plain table")
	}

	ddl := fmt.Sprintf(`
DROP TABLE IF EXISTS %s;
CREATE TABLE %s (
  id        uuid,
  date      TIMESTAMP WITH TIME ZONE NOT NULL,
  metadata  jsonb,
  content   text,
  embedding vector(%d)
);`, table, table, dim)
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("%w: create table %s: %v", faults.ErrStorage, table, err)
	}

	hyper := fmt.Sprintf(
		`SELECT create_hypertable('%s', by_range('date', INTERVAL '%d days'))`,
		table, partitionDays)
	if _, err := s.pool.Exec(ctx, hyper); err != nil {
		log.Warn().Err(err).Str("table", table).Msg("hypertable conversion skipped")
	}
	return nil
}

// InsertChunks bulk-inserts all rows in one transaction; any failure rolls
// the whole load back.
func (s *Store) InsertChunks(ctx context.Context, table string, dim int, chunks []models.EmbeddedChunk) error {
	if err := validateTable(table); err != nil {
		return err
	}
	for _, c := range chunks {
		if len(c.Embedding) != dim {
			return fmt.Errorf("%w: chunk %s has embedding of dimension %d, table expects %d",
				faults.ErrConfiguration, c.ID, len(c.Embedding), dim)
		}
		if c.Date.IsZero() {
			return fmt.Errorf("%w: chunk %s has no date", faults.ErrConfiguration, c.ID)
		}
	}

	q := fmt.Sprintf(`
INSERT INTO %s (id, date, metadata, content, embedding)
VALUES ($1, $2, $3, $4, $5)`, table)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", faults.ErrStorage, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	for _, c := range chunks {
		meta, err := json.Marshal(c.Meta)
		if err != nil {
			return fmt.Errorf("%w: marshal metadata: %v", faults.ErrStorage, err)
		}
		batch.Queue(q, c.ID, c.Date, meta, c.Content, pgvector.NewVector(c.Embedding))
	}

	br := tx.SendBatch(ctx, batch)
	for range chunks {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("%w: insert into %s: %v", faults.ErrStorage, table, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("%w: %v", faults.ErrStorage, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit: %v", faults.ErrStorage, err)
	}
	return nil
}

// CreateIndexes builds the ANN index on embedding and the range index on
// date. Call strictly after the last insert so the index reflects the final
// data set.
func (s *Store) CreateIndexes(ctx context.Context, table string) error {
	if err := validateTable(table); err != nil {
		return err
	}

	ann := fmt.Sprintf(
		`CREATE INDEX IF NOT EXISTS %s_embedding_idx ON %s USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100)`,
		table, table)
	if _, err := s.pool.Exec(ctx, ann); err != nil {
		return fmt.Errorf("%w: create embedding index: %v", faults.ErrStorage, err)
	}

	dateIdx := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_date_idx ON %s (date DESC)`, table, table)
	if _, err := s.pool.Exec(ctx, dateIdx); err != nil {
		return fmt.Errorf("%w: create date index: %v", faults.ErrStorage, err)
	}
	return nil
}

// Filters narrow a similarity search. Zero values mean "no constraint".
type Filters struct {
	Since  time.Time // only rows with date >= Since
	Until  time.Time // only rows with date < Until
	Author string    // exact metadata author match
}

// Search runs one ranked query: filter by date range and author, order the
// survivors by ascending cosine distance to vec, truncate to k.
func (s *Store) Search(ctx context.Context, table string, vec []float32, k int, f Filters) ([]models.SearchResult, error) {
	if err := validateTable(table); err != nil {
		return nil, err
	}
	if k <= 0 {
		k = 5
	}

	q, args := searchSQL(table, vec, k, f)
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: search %s: %v", faults.ErrStorage, table, err)
	}
	defer rows.Close()

	var out []models.SearchResult
	for rows.Next() {
		var r models.SearchResult
		if err := rows.Scan(&r.Date, &r.Author, &r.Commit, &r.Subject, &r.Content, &r.Distance); err != nil {
			return nil, fmt.Errorf("%w: %v", faults.ErrStorage, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// searchSQL builds the ranked query. The embedding is always $1; filter
// predicates take the following placeholders in declaration order.
func searchSQL(table string, vec []float32, k int, f Filters) (string, []any) {
	args := []any{pgvector.NewVector(vec)}
	ai := 2

	where := "TRUE"
	if !f.Since.IsZero() {
		where += fmt.Sprintf(" AND date >= $%d", ai)
		args = append(args, f.Since)
		ai++
	}
	if !f.Until.IsZero() {
		where += fmt.Sprintf(" AND date < $%d", ai)
		args = append(args, f.Until)
		ai++
	}
	if f.Author != "" {
		where += fmt.Sprintf(" AND metadata @> jsonb_build_object('author', $%d::text)", ai)
		args = append(args, f.Author)
	}

	q := fmt.Sprintf(`
SELECT
  date
, COALESCE(metadata->>'author', '')  AS author
, COALESCE(metadata->>'commit', '')  AS commit
, COALESCE(metadata->>'subject', '') AS subject
, content
, embedding <=> $1 AS distance
FROM %s
WHERE %s
ORDER BY embedding <=> $1
LIMIT %d;`, table, where, k)

	return q, args
}
