// Package memstore implements the durable memory store on Postgres with
// pgvector embeddings.
package memstore

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/wolflogic/wolfmem/pkg/logger"
)

// DefaultNamespace is assigned when a producer supplies no namespace.
const DefaultNamespace = "ingested"

// Memory is one stored memory row.
type Memory struct {
	ID         int64          `json:"id"`
	UserID     string         `json:"user_id"`
	Content    string         `json:"content"`
	Metadata   map[string]any `json:"metadata"`
	MemoryType string         `json:"memory_type"`
	Namespace  string         `json:"namespace"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	// Embedding is nil when the vector fleet has not caught up yet.
	Embedding []float32 `json:"-"`
}

// NamespaceStat summarizes one namespace.
type NamespaceStat struct {
	Name        string    `json:"namespace"`
	Count       int64     `json:"count"`
	LastUpdated time.Time `json:"last_updated"`
}

// InsertParams carries the fields of a new memory.
type InsertParams struct {
	UserID     string
	Content    string
	Metadata   map[string]any
	MemoryType string
	Namespace  string
	Embedding  []float32 // optional; backfilled later when nil
}

// SemanticQuery describes a k-NN search. When QueryVector is nil the
// store embeds QueryText with its configured model, so stored and query
// vectors always come from the same model.
type SemanticQuery struct {
	Namespaces  []string
	QueryText   string
	QueryVector []float32
	Limit       int
}

// SemanticResult pairs a memory with its cosine distance to the query.
type SemanticResult struct {
	Memory   Memory
	Distance float64
}

// Neighbor is a nearest-neighbor hit used by the graph similarity pass.
type Neighbor struct {
	ID       int64
	Distance float64
}

// QueryEmbedder turns text into a vector. Implemented by pkg/embed.
type QueryEmbedder interface {
	Embed(ctx context.Context, model, text string) ([]float32, error)
}

// Store is the Postgres-backed memory store.
type Store struct {
	pool     *pgxpool.Pool
	dim      int
	model    string
	embedder QueryEmbedder
	log      logger.Logger
}

// Options configures a Store.
type Options struct {
	// DSN is the Postgres connection string.
	DSN string
	// EmbeddingDim is the declared vector dimension.
	EmbeddingDim int
	// EmbeddingModel is the model used for query-time embeddings.
	EmbeddingModel string
	// Embedder embeds query text; may be nil when only vector queries are used.
	Embedder QueryEmbedder
	// MaxConns caps the pool size (0 = driver default).
	MaxConns int32
	// Logger defaults to the global logger.
	Logger logger.Logger
}

// New connects the pool and registers pgvector types on every connection.
func New(ctx context.Context, opts Options) (*Store, error) {
	if opts.EmbeddingDim <= 0 {
		return nil, E(KindConfig, "memstore.New", "embedding dimension must be positive", nil)
	}

	cfg, err := pgxpool.ParseConfig(opts.DSN)
	if err != nil {
		return nil, E(KindConfig, "memstore.New", "invalid DSN", err)
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, E(KindTransient, "memstore.New", "connect failed", err)
	}

	log := opts.Logger
	if log == nil {
		log = logger.Global()
	}

	return &Store{
		pool:     pool,
		dim:      opts.EmbeddingDim,
		model:    opts.EmbeddingModel,
		embedder: opts.Embedder,
		log:      log.With("component", "memstore"),
	}, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ping verifies database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return E(KindTransient, "memstore.Ping", "database unreachable", err)
	}
	return nil
}

// Dim returns the declared embedding dimension.
func (s *Store) Dim() int {
	return s.dim
}

// EmbeddingModel returns the configured query-embedding model.
func (s *Store) EmbeddingModel() string {
	return s.model
}

// Insert stores a new memory and returns its assigned id.
func (s *Store) Insert(ctx context.Context, p InsertParams) (int64, error) {
	const op = "memstore.Insert"

	if p.Content == "" {
		return 0, E(KindBadInput, op, "content must not be empty", nil)
	}
	if p.Embedding != nil && len(p.Embedding) != s.dim {
		return 0, E(KindBadInput, op, "embedding dimension mismatch", nil)
	}
	if p.Namespace == "" {
		p.Namespace = DefaultNamespace
	}
	if p.MemoryType == "" {
		p.MemoryType = "conversation"
	}
	if p.Metadata == nil {
		p.Metadata = map[string]any{}
	}

	metaJSON, err := json.Marshal(p.Metadata)
	if err != nil {
		return 0, E(KindBadInput, op, "metadata not serializable", err)
	}

	var vec any
	if p.Embedding != nil {
		vec = pgvector.NewVector(p.Embedding)
	}

	var id int64
	err = s.pool.QueryRow(ctx, `
INSERT INTO memories (user_id, content, metadata, memory_type, namespace, embedding)
VALUES ($1, $2, $3::jsonb, $4, $5, $6)
RETURNING id`,
		p.UserID, p.Content, string(metaJSON), p.MemoryType, p.Namespace, vec,
	).Scan(&id)
	if err != nil {
		return 0, classify(op, err)
	}
	return id, nil
}

// GetByID fetches one memory.
func (s *Store) GetByID(ctx context.Context, id int64) (Memory, error) {
	const op = "memstore.GetByID"

	row := s.pool.QueryRow(ctx, `
SELECT id, user_id, content, metadata, memory_type, namespace, created_at, updated_at,
       COALESCE(embedding::text, '')
FROM memories
WHERE id = $1`, id)

	m, err := scanMemory(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Memory{}, E(KindNotFound, op, "memory not found", nil)
		}
		return Memory{}, classify(op, err)
	}
	return m, nil
}

// Delete removes one memory. Nothing on the ingestion path calls this;
// it exists for operator cleanup only.
func (s *Store) Delete(ctx context.Context, id int64) error {
	const op = "memstore.Delete"

	tag, err := s.pool.Exec(ctx, `DELETE FROM memories WHERE id = $1`, id)
	if err != nil {
		return classify(op, err)
	}
	if tag.RowsAffected() == 0 {
		return E(KindNotFound, op, "memory not found", nil)
	}
	return nil
}

// Recent returns memories in a namespace created after since, newest first.
func (s *Store) Recent(ctx context.Context, namespace string, since time.Time, limit int) ([]Memory, error) {
	const op = "memstore.Recent"

	if limit <= 0 {
		limit = 10
	}

	rows, err := s.pool.Query(ctx, `
SELECT id, user_id, content, metadata, memory_type, namespace, created_at, updated_at,
       COALESCE(embedding::text, '')
FROM memories
WHERE namespace = $1 AND created_at > $2
ORDER BY created_at DESC
LIMIT $3`, namespace, since, limit)
	if err != nil {
		return nil, classify(op, err)
	}
	defer rows.Close()

	return scanMemories(rows, op)
}

// Semantic performs k-NN retrieval ordered by ascending cosine distance,
// ties broken by recency.
func (s *Store) Semantic(ctx context.Context, q SemanticQuery) ([]SemanticResult, error) {
	const op = "memstore.Semantic"

	if q.Limit <= 0 {
		q.Limit = 5
	}

	vec := q.QueryVector
	if vec == nil {
		if q.QueryText == "" {
			return nil, E(KindBadInput, op, "query text or vector required", nil)
		}
		if s.embedder == nil {
			return nil, E(KindConfig, op, "no query embedder configured", nil)
		}
		var err error
		vec, err = s.embedder.Embed(ctx, s.model, q.QueryText)
		if err != nil {
			return nil, E(KindTransient, op, "query embedding failed", err)
		}
	}
	if len(vec) != s.dim {
		return nil, E(KindBadInput, op, "query vector dimension mismatch", nil)
	}

	query := `
SELECT id, user_id, content, metadata, memory_type, namespace, created_at, updated_at,
       COALESCE(embedding::text, ''),
       (embedding <=> $1) AS distance
FROM memories
WHERE embedding IS NOT NULL`
	args := []any{pgvector.NewVector(vec)}

	if len(q.Namespaces) > 0 {
		query += " AND namespace = ANY($2)"
		args = append(args, q.Namespaces)
	}
	query += `
ORDER BY embedding <=> $1, created_at DESC
LIMIT $` + strconv.Itoa(len(args)+1)
	args = append(args, q.Limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, classify(op, err)
	}
	defer rows.Close()

	results := []SemanticResult{}
	for rows.Next() {
		var (
			m        Memory
			metaJSON []byte
			vecText  string
			dist     float64
		)
		if err := rows.Scan(&m.ID, &m.UserID, &m.Content, &metaJSON, &m.MemoryType,
			&m.Namespace, &m.CreatedAt, &m.UpdatedAt, &vecText, &dist); err != nil {
			return nil, classify(op, err)
		}
		decodeMemoryExtras(&m, metaJSON, vecText)
		results = append(results, SemanticResult{Memory: m, Distance: dist})
	}
	if err := rows.Err(); err != nil {
		return nil, classify(op, err)
	}
	return results, nil
}

// Namespaces enumerates namespaces with memory counts and last activity.
func (s *Store) Namespaces(ctx context.Context) ([]NamespaceStat, error) {
	const op = "memstore.Namespaces"

	rows, err := s.pool.Query(ctx, `
SELECT namespace, COUNT(*), MAX(updated_at)
FROM memories
GROUP BY namespace
ORDER BY COUNT(*) DESC`)
	if err != nil {
		return nil, classify(op, err)
	}
	defer rows.Close()

	stats := []NamespaceStat{}
	for rows.Next() {
		var st NamespaceStat
		if err := rows.Scan(&st.Name, &st.Count, &st.LastUpdated); err != nil {
			return nil, classify(op, err)
		}
		stats = append(stats, st)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(op, err)
	}
	return stats, nil
}

// MissingEmbeddings returns rows awaiting a vector, oldest first. The
// SKIP LOCKED clause only skips rows locked by open transactions; this
// query autocommits, so its own locks end with the statement. The real
// claim guarantee is per-pass: one batch hands each row to exactly one
// worker, and a rare double-embed across fleets just rewrites the same
// vector.
func (s *Store) MissingEmbeddings(ctx context.Context, lookback time.Duration, limit int) ([]Memory, error) {
	const op = "memstore.MissingEmbeddings"

	if limit <= 0 {
		limit = 100
	}

	rows, err := s.pool.Query(ctx, `
SELECT id, user_id, content, metadata, memory_type, namespace, created_at, updated_at, ''
FROM memories
WHERE embedding IS NULL AND created_at > now() - $1::interval
ORDER BY created_at ASC
LIMIT $2
FOR UPDATE SKIP LOCKED`, lookback, limit)
	if err != nil {
		return nil, classify(op, err)
	}
	defer rows.Close()

	return scanMemories(rows, op)
}

// SetEmbedding writes a vector for one row and bumps updated_at.
func (s *Store) SetEmbedding(ctx context.Context, id int64, vec []float32) error {
	const op = "memstore.SetEmbedding"

	if len(vec) != s.dim {
		return E(KindBadInput, op, "embedding dimension mismatch", nil)
	}

	tag, err := s.pool.Exec(ctx, `
UPDATE memories SET embedding = $2, updated_at = now() WHERE id = $1`,
		id, pgvector.NewVector(vec))
	if err != nil {
		return classify(op, err)
	}
	if tag.RowsAffected() == 0 {
		return E(KindNotFound, op, "memory not found", nil)
	}
	return nil
}

// MergeMetadata JSONB-merges patch into the row's metadata under a row lock.
// Keys in patch win; everything else is preserved.
func (s *Store) MergeMetadata(ctx context.Context, id int64, patch map[string]any) error {
	const op = "memstore.MergeMetadata"

	patchJSON, err := json.Marshal(patch)
	if err != nil {
		return E(KindBadInput, op, "patch not serializable", err)
	}

	tag, err := s.pool.Exec(ctx, `
UPDATE memories
SET metadata = metadata || $2::jsonb, updated_at = now()
WHERE id = $1`, id, string(patchJSON))
	if err != nil {
		return classify(op, err)
	}
	if tag.RowsAffected() == 0 {
		return E(KindNotFound, op, "memory not found", nil)
	}
	return nil
}

// Neighbors returns the k nearest memories to the given row by embedding
// distance, excluding the row itself and rows without vectors.
func (s *Store) Neighbors(ctx context.Context, id int64, k int) ([]Neighbor, error) {
	const op = "memstore.Neighbors"

	if k <= 0 {
		k = 5
	}

	rows, err := s.pool.Query(ctx, `
SELECT n.id, (n.embedding <=> m.embedding) AS distance
FROM memories m
CROSS JOIN LATERAL (
  SELECT id, embedding
  FROM memories
  WHERE id <> m.id AND embedding IS NOT NULL
  ORDER BY embedding <=> m.embedding
  LIMIT $2
) n
WHERE m.id = $1 AND m.embedding IS NOT NULL`, id, k)
	if err != nil {
		return nil, classify(op, err)
	}
	defer rows.Close()

	neighbors := []Neighbor{}
	for rows.Next() {
		var n Neighbor
		if err := rows.Scan(&n.ID, &n.Distance); err != nil {
			return nil, classify(op, err)
		}
		neighbors = append(neighbors, n)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(op, err)
	}
	return neighbors, nil
}

// StreamBatch returns up to limit memories with id > afterID in ascending
// id order, the paging unit of the graph ETL.
func (s *Store) StreamBatch(ctx context.Context, afterID int64, limit int) ([]Memory, error) {
	const op = "memstore.StreamBatch"

	if limit <= 0 {
		limit = 1000
	}

	rows, err := s.pool.Query(ctx, `
SELECT id, user_id, content, metadata, memory_type, namespace, created_at, updated_at,
       COALESCE(embedding::text, '')
FROM memories
WHERE id > $1
ORDER BY id ASC
LIMIT $2`, afterID, limit)
	if err != nil {
		return nil, classify(op, err)
	}
	defer rows.Close()

	return scanMemories(rows, op)
}

// Count returns the total number of stored memories.
func (s *Store) Count(ctx context.Context) (int64, error) {
	const op = "memstore.Count"

	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM memories`).Scan(&n); err != nil {
		return 0, classify(op, err)
	}
	return n, nil
}

// scanMemory reads one memory row including metadata and vector text.
func scanMemory(row pgx.Row) (Memory, error) {
	var (
		m        Memory
		metaJSON []byte
		vecText  string
	)
	err := row.Scan(&m.ID, &m.UserID, &m.Content, &metaJSON, &m.MemoryType,
		&m.Namespace, &m.CreatedAt, &m.UpdatedAt, &vecText)
	if err != nil {
		return Memory{}, err
	}
	decodeMemoryExtras(&m, metaJSON, vecText)
	return m, nil
}

func scanMemories(rows pgx.Rows, op string) ([]Memory, error) {
	memories := []Memory{}
	for rows.Next() {
		var (
			m        Memory
			metaJSON []byte
			vecText  string
		)
		if err := rows.Scan(&m.ID, &m.UserID, &m.Content, &metaJSON, &m.MemoryType,
			&m.Namespace, &m.CreatedAt, &m.UpdatedAt, &vecText); err != nil {
			return nil, classify(op, err)
		}
		decodeMemoryExtras(&m, metaJSON, vecText)
		memories = append(memories, m)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(op, err)
	}
	return memories, nil
}

func decodeMemoryExtras(m *Memory, metaJSON []byte, vecText string) {
	m.Metadata = map[string]any{}
	if len(metaJSON) > 0 {
		_ = json.Unmarshal(metaJSON, &m.Metadata)
	}
	if vecText != "" {
		var vec pgvector.Vector
		if err := vec.Parse(vecText); err == nil {
			m.Embedding = vec.Slice()
		}
	}
}

// classify maps driver errors onto domain kinds: unique violations are
// conflicts, connection-class failures are transient, the rest permanent.
func classify(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "23505":
			return E(KindConflict, op, "duplicate idempotency key", err)
		case len(pgErr.Code) >= 2 && pgErr.Code[:2] == "08":
			return E(KindTransient, op, "connection failure", err)
		case pgErr.Code == "57P01" || pgErr.Code == "57014":
			return E(KindTransient, op, "server terminating", err)
		default:
			return E(KindPermanent, op, "database error", err)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return E(KindTransient, op, "operation timed out", err)
	}
	if pgconn.SafeToRetry(err) {
		return E(KindTransient, op, "retryable network failure", err)
	}
	// Network-level failures from the pool surface as plain errors.
	return E(KindTransient, op, "database unavailable", err)
}
