// Package sqlitevec provides a memory.Backend implementation over SQLite, grounded
// on internal/memory/backend/sqlitevec/backend.go. It brute-force scans for cosine
// similarity rather than using the vec0 extension, since the pack's sqlite driver
// (modernc.org/sqlite, pure Go) carries no vector index.
package sqlitevec

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // pure-Go SQLite driver

	"github.com/nexuscore/agentkit/pkg/memory"
)

// Backend implements memory.Backend over a SQLite database.
type Backend struct {
	db        *sql.DB
	dimension int
}

// Config configures a Backend.
type Config struct {
	// Path to the SQLite database file; ":memory:" for an ephemeral store.
	Path string

	// Dimension is the embedding dimensionality entries in this store must carry.
	Dimension int
}

// New opens (creating if absent) a sqlite-backed Backend.
func New(cfg Config) (*Backend, error) {
	if cfg.Path == "" {
		cfg.Path = ":memory:"
	}
	if cfg.Dimension == 0 {
		cfg.Dimension = 1536
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	b := &Backend{db: db, dimension: cfg.Dimension}
	if err := b.init(); err != nil {
		db.Close()
		return nil, err
	}
	return b, nil
}

func (b *Backend) init() error {
	_, err := b.db.Exec(`
		CREATE TABLE IF NOT EXISTS entries (
			id TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			kind TEXT NOT NULL,
			source TEXT,
			chunk_index INTEGER,
			collection_path TEXT,
			metadata TEXT,
			importance REAL,
			embedding BLOB,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("create entries table: %w", err)
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_entries_collection ON entries(collection_path)",
		"CREATE INDEX IF NOT EXISTS idx_entries_kind ON entries(kind)",
	}
	for _, idx := range indexes {
		if _, err := b.db.Exec(idx); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}

// Dimension returns the embedding dimensionality this Backend was created with.
func (b *Backend) Dimension() int { return b.dimension }

// Index upserts entries, assigning IDs where absent and validating embedding
// dimensionality against the store.
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
		INSERT OR REPLACE INTO entries
			(id, content, kind, source, chunk_index, collection_path, metadata, importance, embedding, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
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

// Search performs a brute-force cosine-similarity scan over entries matching
// opts.CollectionPath/Filters, ranked descending and capped at opts.Limit.
func (b *Backend) Search(ctx context.Context, queryEmbedding []float32, opts memory.SearchOptions) ([]memory.SearchResult, error) {
	if opts.Limit <= 0 {
		opts.Limit = 10
	}

	query := `SELECT id, content, kind, source, chunk_index, collection_path, metadata, importance, embedding FROM entries WHERE 1=1`
	var args []any

	if opts.CollectionPath != "" {
		query += " AND (collection_path = ? OR collection_path LIKE ?)"
		args = append(args, opts.CollectionPath, opts.CollectionPath+"/%")
	}

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	mode := opts.Mode
	if mode == "" {
		mode = memory.SearchModeVector
	}
	hybridWeight := opts.HybridWeight
	if hybridWeight <= 0 {
		hybridWeight = 0.7
	}
	queryWords := strings.Fields(strings.ToLower(opts.Query))

	var results []memory.SearchResult
	for rows.Next() {
		e, embeddingBlob, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		if !matchesFilters(e, opts.Filters) {
			continue
		}

		var score float32
		switch mode {
		case memory.SearchModeLexical:
			score = lexicalScore(e.Content, queryWords)
		case memory.SearchModeHybrid:
			vecScore := cosineSimilarity(queryEmbedding, decodeEmbedding(embeddingBlob))
			lexScore := lexicalScore(e.Content, queryWords)
			score = hybridWeight*vecScore + (1-hybridWeight)*lexScore
		default:
			score = cosineSimilarity(queryEmbedding, decodeEmbedding(embeddingBlob))
		}

		if opts.Threshold > 0 && score < opts.Threshold {
			continue
		}

		results = append(results, memory.SearchResult{Entry: e, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results, nil
}

// FindIDsBySource returns the IDs of all entries with the given Source.
func (b *Backend) FindIDsBySource(ctx context.Context, source string) ([]string, error) {
	rows, err := b.db.QueryContext(ctx, "SELECT id FROM entries WHERE source = ?", source)
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

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, "DELETE FROM entries WHERE id = ?")
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare delete: %w", err)
	}
	defer stmt.Close()

	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, id); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("delete entry %s: %w", id, err)
		}
	}
	return tx.Commit()
}

// Count returns the number of entries under collectionPath ("" means all).
func (b *Backend) Count(ctx context.Context, collectionPath string) (int64, error) {
	query := "SELECT COUNT(*) FROM entries WHERE 1=1"
	var args []any
	if collectionPath != "" {
		query += " AND (collection_path = ? OR collection_path LIKE ?)"
		args = append(args, collectionPath, collectionPath+"/%")
	}

	var count int64
	err := b.db.QueryRowContext(ctx, query, args...).Scan(&count)
	return count, err
}

// Compact reclaims space via VACUUM.
func (b *Backend) Compact(ctx context.Context) error {
	_, err := b.db.ExecContext(ctx, "VACUUM")
	return err
}

// Close releases the underlying database connection.
func (b *Backend) Close() error { return b.db.Close() }

// lexicalScore is a crude term-frequency scorer: the fraction of query words present
// in content. It stands in for a real BM25 index,
// which this pure-Go SQLite build has no extension for.
func lexicalScore(content string, queryWords []string) float32 {
	if len(queryWords) == 0 {
		return 0
	}
	lower := strings.ToLower(content)
	var hits int
	for _, w := range queryWords {
		if strings.Contains(lower, w) {
			hits++
		}
	}
	return float32(hits) / float32(len(queryWords))
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

func scanEntry(rows *sql.Rows) (*memory.Entry, []byte, error) {
	var e memory.Entry
	var kind string
	var source sql.NullString
	var chunkIndex sql.NullInt64
	var collectionPath sql.NullString
	var metadataJSON string
	var embeddingBlob []byte

	err := rows.Scan(&e.ID, &e.Content, &kind, &source, &chunkIndex, &collectionPath, &metadataJSON, &e.Importance, &embeddingBlob)
	if err != nil {
		return nil, nil, fmt.Errorf("scan row: %w", err)
	}

	e.Kind = memory.Kind(kind)
	e.Source = source.String
	e.CollectionPath = collectionPath.String
	if chunkIndex.Valid {
		v := int(chunkIndex.Int64)
		e.ChunkIndex = &v
	}
	if metadataJSON != "" {
		if err := json.Unmarshal([]byte(metadataJSON), &e.Metadata); err != nil {
			return nil, nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}

	return &e, embeddingBlob, nil
}

// encodeEmbedding packs []float32 into bytes, 4 bytes per component (IEEE 754 bits).
func encodeEmbedding(embedding []float32) []byte {
	if len(embedding) == 0 {
		return nil
	}
	data := make([]byte, len(embedding)*4)
	for i, f := range embedding {
		bits := math.Float32bits(f)
		data[i*4] = byte(bits)
		data[i*4+1] = byte(bits >> 8)
		data[i*4+2] = byte(bits >> 16)
		data[i*4+3] = byte(bits >> 24)
	}
	return data
}

// decodeEmbedding unpacks bytes back into []float32.
func decodeEmbedding(data []byte) []float32 {
	if len(data) == 0 || len(data)%4 != 0 {
		return nil
	}
	embedding := make([]float32, len(data)/4)
	for i := range embedding {
		bits := uint32(data[i*4]) | uint32(data[i*4+1])<<8 | uint32(data[i*4+2])<<16 | uint32(data[i*4+3])<<24
		embedding[i] = math.Float32frombits(bits)
	}
	return embedding
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float32
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (sqrt32(normA) * sqrt32(normB))
}

// sqrt32 is a Newton-Raphson approximation, matching the teacher's brute-force
// scan (avoids pulling in math.Sqrt's float64 round trip per comparison).
func sqrt32(x float32) float32 {
	if x <= 0 {
		return 0
	}
	z := x
	for i := 0; i < 10; i++ {
		z = (z + x/z) / 2
	}
	return z
}
