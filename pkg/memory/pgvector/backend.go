// Package pgvector provides a memory.Backend implementation over PostgreSQL with
// the pgvector extension, grounded on internal/memory/backend/pgvector/backend.go.
package pgvector

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	pq "github.com/lib/pq"

	"github.com/nexuscore/agentkit/pkg/memory"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Backend implements memory.Backend over PostgreSQL + pgvector.
type Backend struct {
	db        *sql.DB
	dimension int
	ownsDB    bool
}

// Config configures a Backend.
type Config struct {
	// DSN is the PostgreSQL connection string. Ignored if DB is set.
	DSN string

	// DB reuses an existing connection; Close then becomes a no-op.
	DB *sql.DB

	// Dimension is the embedding dimensionality entries in this store must carry.
	Dimension int

	// RunMigrations applies pending migrations on New when true. The zero value
	// (false) skips them.
	RunMigrations bool
}

// New opens a pgvector-backed Backend.
func New(cfg Config) (*Backend, error) {
	if cfg.Dimension == 0 {
		cfg.Dimension = 1536
	}

	var db *sql.DB
	var ownsDB bool
	var err error

	switch {
	case cfg.DB != nil:
		db = cfg.DB
	case cfg.DSN != "":
		db, err = sql.Open("postgres", cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		ownsDB = true

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("ping database: %w", err)
		}
	default:
		return nil, fmt.Errorf("either DSN or DB must be provided")
	}

	b := &Backend{db: db, dimension: cfg.Dimension, ownsDB: ownsDB}

	if cfg.RunMigrations {
		if err := b.runMigrations(context.Background()); err != nil {
			if ownsDB {
				db.Close()
			}
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	return b, nil
}

func (b *Backend) runMigrations(ctx context.Context) error {
	_, err := b.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS memory_schema_migrations (
			id TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	migrations, err := loadMigrations()
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}

	applied, err := b.appliedMigrations(ctx)
	if err != nil {
		return fmt.Errorf("get applied migrations: %w", err)
	}

	for _, m := range migrations {
		if applied[m.ID] {
			continue
		}
		if strings.TrimSpace(m.UpSQL) == "" {
			return fmt.Errorf("missing up migration for %s", m.ID)
		}

		tx, err := b.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", m.ID, err)
		}
		if _, err := tx.ExecContext(ctx, m.UpSQL); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply migration %s: %w", m.ID, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO memory_schema_migrations (id) VALUES ($1)`, m.ID); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", m.ID, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", m.ID, err)
		}
	}
	return nil
}

func (b *Backend) appliedMigrations(ctx context.Context) (map[string]bool, error) {
	rows, err := b.db.QueryContext(ctx, `SELECT id FROM memory_schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("query memory_schema_migrations: %w", err)
	}
	defer rows.Close()

	applied := map[string]bool{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan memory_schema_migrations: %w", err)
		}
		applied[id] = true
	}
	return applied, rows.Err()
}

// Dimension returns the embedding dimensionality this Backend was created with.
func (b *Backend) Dimension() int { return b.dimension }

// Index upserts entries.
func (b *Backend) Index(ctx context.Context, entries []*memory.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			_ = rbErr
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO entries (id, content, kind, source, chunk_index, collection_path, metadata, importance, embedding, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			content = EXCLUDED.content,
			kind = EXCLUDED.kind,
			source = EXCLUDED.source,
			chunk_index = EXCLUDED.chunk_index,
			collection_path = EXCLUDED.collection_path,
			metadata = EXCLUDED.metadata,
			importance = EXCLUDED.importance,
			embedding = EXCLUDED.embedding,
			updated_at = EXCLUDED.updated_at
	`)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	for _, e := range entries {
		if len(e.Embedding) > 0 && len(e.Embedding) != b.dimension {
			return fmt.Errorf("entry %s: embedding dimension %d does not match store dimension %d", e.ID, len(e.Embedding), b.dimension)
		}
		if e.ID == "" {
			e.ID = uuid.New().String()
		}

		metadataJSON, err := json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}

		var chunkIndex any
		if e.ChunkIndex != nil {
			chunkIndex = *e.ChunkIndex
		}

		_, err = stmt.ExecContext(ctx,
			e.ID, e.Content, string(e.Kind), e.Source, chunkIndex, e.CollectionPath,
			string(metadataJSON), e.Importance, encodeEmbedding(e.Embedding), now, now,
		)
		if err != nil {
			return fmt.Errorf("insert entry %s: %w", e.ID, err)
		}
	}

	return tx.Commit()
}

// Search routes to vector, lexical, or hybrid (reciprocal-rank-fused) search based
// on opts.Mode.
func (b *Backend) Search(ctx context.Context, queryEmbedding []float32, opts memory.SearchOptions) ([]memory.SearchResult, error) {
	if opts.Limit <= 0 {
		opts.Limit = 10
	}

	switch opts.Mode {
	case memory.SearchModeLexical:
		return b.searchLexical(ctx, opts)
	case memory.SearchModeHybrid:
		return b.searchHybrid(ctx, queryEmbedding, opts)
	default:
		return b.searchVector(ctx, queryEmbedding, opts)
	}
}

func (b *Backend) searchVector(ctx context.Context, queryEmbedding []float32, opts memory.SearchOptions) ([]memory.SearchResult, error) {
	queryVec := encodeEmbedding(queryEmbedding)

	query := `
		SELECT id, content, kind, source, chunk_index, collection_path, metadata, importance,
			1 - (embedding <=> $1::vector) as score
		FROM entries
		WHERE embedding IS NOT NULL
	`
	args := []any{queryVec}
	argNum := 2

	query, args, argNum = addCollectionFilter(query, args, argNum, opts.CollectionPath)

	if opts.Threshold > 0 {
		query += fmt.Sprintf(" AND (1 - (embedding <=> $1::vector)) >= $%d", argNum)
		args = append(args, opts.Threshold)
		argNum++
	}

	query += " ORDER BY embedding <=> $1::vector ASC"
	query += fmt.Sprintf(" LIMIT $%d", argNum)
	args = append(args, opts.Limit)

	return b.executeSearch(ctx, query, args, opts.Filters)
}

func (b *Backend) searchLexical(ctx context.Context, opts memory.SearchOptions) ([]memory.SearchResult, error) {
	if opts.Query == "" {
		return nil, fmt.Errorf("query text is required for lexical search")
	}

	query := `
		SELECT id, content, kind, source, chunk_index, collection_path, metadata, importance,
			ts_rank_cd(content_tsv, plainto_tsquery('english', $1)) as score
		FROM entries
		WHERE content_tsv @@ plainto_tsquery('english', $1)
	`
	args := []any{opts.Query}
	argNum := 2

	query, args, argNum = addCollectionFilter(query, args, argNum, opts.CollectionPath)

	if opts.Threshold > 0 {
		query += fmt.Sprintf(" AND ts_rank_cd(content_tsv, plainto_tsquery('english', $1)) >= $%d", argNum)
		args = append(args, opts.Threshold)
		argNum++
	}

	query += " ORDER BY score DESC"
	query += fmt.Sprintf(" LIMIT $%d", argNum)
	args = append(args, opts.Limit)

	return b.executeSearch(ctx, query, args, opts.Filters)
}

// searchHybrid fuses vector and lexical rank using Reciprocal Rank Fusion with
// k=60, matching the spec's hybrid retrieval scenario.
func (b *Backend) searchHybrid(ctx context.Context, queryEmbedding []float32, opts memory.SearchOptions) ([]memory.SearchResult, error) {
	if opts.Query == "" {
		return b.searchVector(ctx, queryEmbedding, opts)
	}

	weight := opts.HybridWeight
	if weight <= 0 {
		weight = 0.7
	}
	queryVec := encodeEmbedding(queryEmbedding)

	query := `
		WITH vector_results AS (
			SELECT id, content, kind, source, chunk_index, collection_path, metadata, importance,
				ROW_NUMBER() OVER (ORDER BY embedding <=> $1::vector ASC) as vec_rank
			FROM entries
			WHERE embedding IS NOT NULL
		),
		lexical_results AS (
			SELECT id,
				ROW_NUMBER() OVER (ORDER BY ts_rank_cd(content_tsv, plainto_tsquery('english', $2)) DESC) as lex_rank
			FROM entries
			WHERE content_tsv @@ plainto_tsquery('english', $2)
		)
		SELECT v.id, v.content, v.kind, v.source, v.chunk_index, v.collection_path, v.metadata, v.importance,
			($3 * (1.0 / (60 + v.vec_rank))) + ((1 - $3) * COALESCE(1.0 / (60 + l.lex_rank), 0)) as score
		FROM vector_results v
		LEFT JOIN lexical_results l ON v.id = l.id
		WHERE 1=1
	`
	args := []any{queryVec, opts.Query, weight}
	argNum := 4

	query, args, argNum = addCollectionFilter(query, args, argNum, opts.CollectionPath)

	query += " ORDER BY score DESC"
	query += fmt.Sprintf(" LIMIT $%d", argNum)
	args = append(args, opts.Limit)

	return b.executeSearch(ctx, query, args, opts.Filters)
}

func addCollectionFilter(query string, args []any, argNum int, collectionPath string) (string, []any, int) {
	if collectionPath == "" {
		return query, args, argNum
	}
	query += fmt.Sprintf(" AND (collection_path = $%d OR collection_path LIKE $%d)", argNum, argNum+1)
	args = append(args, collectionPath, collectionPath+"/%")
	return query, args, argNum + 2
}

func (b *Backend) executeSearch(ctx context.Context, query string, args []any, filters map[string]any) ([]memory.SearchResult, error) {
	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var results []memory.SearchResult
	for rows.Next() {
		e, score, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		if !matchesFilters(e, filters) {
			continue
		}
		results = append(results, memory.SearchResult{Entry: e, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return results, nil
}

// FindIDsBySource returns the IDs of all entries with the given Source.
func (b *Backend) FindIDsBySource(ctx context.Context, source string) ([]string, error) {
	rows, err := b.db.QueryContext(ctx, "SELECT id FROM entries WHERE source = $1", source)
	if err != nil {
		return nil, fmt.Errorf("query entries by source: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Delete removes entries by ID.
func (b *Backend) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := b.db.ExecContext(ctx, "DELETE FROM entries WHERE id = ANY($1)", pq.Array(ids))
	return err
}

// Count returns the number of entries under collectionPath ("" means all).
func (b *Backend) Count(ctx context.Context, collectionPath string) (int64, error) {
	query := "SELECT COUNT(*) FROM entries WHERE 1=1"
	var args []any
	if collectionPath != "" {
		query += " AND (collection_path = $1 OR collection_path LIKE $2)"
		args = append(args, collectionPath, collectionPath+"/%")
	}

	var count int64
	err := b.db.QueryRowContext(ctx, query, args...).Scan(&count)
	return count, err
}

// Compact runs VACUUM ANALYZE.
func (b *Backend) Compact(ctx context.Context) error {
	_, err := b.db.ExecContext(ctx, "VACUUM ANALYZE entries")
	return err
}

// Close releases the underlying connection, unless it was supplied externally.
func (b *Backend) Close() error {
	if b.ownsDB && b.db != nil {
		return b.db.Close()
	}
	return nil
}

func matchesFilters(e *memory.Entry, filters map[string]any) bool {
	for k, v := range filters {
		want := fmt.Sprintf("%v", v)
		if got, ok := e.Metadata[k]; !ok || got != want {
			return false
		}
	}
	return true
}

func scanEntry(rows *sql.Rows) (*memory.Entry, float32, error) {
	var e memory.Entry
	var kind string
	var source, collectionPath sql.NullString
	var chunkIndex sql.NullInt64
	var metadataJSON []byte
	var score float64

	err := rows.Scan(&e.ID, &e.Content, &kind, &source, &chunkIndex, &collectionPath, &metadataJSON, &e.Importance, &score)
	if err != nil {
		return nil, 0, fmt.Errorf("scan row: %w", err)
	}

	e.Kind = memory.Kind(kind)
	e.Source = source.String
	e.CollectionPath = collectionPath.String
	if chunkIndex.Valid {
		v := int(chunkIndex.Int64)
		e.ChunkIndex = &v
	}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &e.Metadata); err != nil {
			return nil, 0, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}

	return &e, float32(score), nil
}

// encodeEmbedding renders []float32 in pgvector's literal format: [0.1,0.2,...]
func encodeEmbedding(embedding []float32) sql.NullString {
	if len(embedding) == 0 {
		return sql.NullString{}
	}
	var sb strings.Builder
	sb.WriteByte('[')
	for i, f := range embedding {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(fmt.Sprintf("%g", f))
	}
	sb.WriteByte(']')
	return sql.NullString{String: sb.String(), Valid: true}
}

// Migration is one embedded schema migration.
type Migration struct {
	ID    string
	UpSQL string
}

func loadMigrations() ([]Migration, error) {
	paths, err := fs.Glob(migrationsFS, "migrations/*.up.sql")
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}

	migrations := make([]Migration, 0, len(paths))
	for _, path := range paths {
		base := strings.TrimPrefix(path, "migrations/")
		id := strings.TrimSuffix(base, ".up.sql")
		data, err := migrationsFS.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", path, err)
		}
		migrations = append(migrations, Migration{ID: id, UpSQL: string(data)})
	}

	sort.Slice(migrations, func(i, j int) bool { return migrations[i].ID < migrations[j].ID })
	return migrations, nil
}
