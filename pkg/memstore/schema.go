package memstore

import (
	"context"
	"fmt"
)

// EnsureSchema creates the vector extension, the memories table, and all
// indexes. Every statement is idempotent; reruns are no-ops.
func (s *Store) EnsureSchema(ctx context.Context) error {
	const op = "memstore.EnsureSchema"

	if _, err := s.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return classify(op, err)
	}

	schema := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS memories (
  id BIGSERIAL PRIMARY KEY,
  user_id TEXT NOT NULL DEFAULT 'scripty',
  content TEXT NOT NULL,
  metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
  memory_type TEXT NOT NULL DEFAULT 'conversation',
  namespace TEXT NOT NULL DEFAULT '%s',
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  embedding VECTOR(%d)
)`, DefaultNamespace, s.dim)

	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return classify(op, err)
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_memories_created ON memories(created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_memories_namespace ON memories(namespace)",
		"CREATE INDEX IF NOT EXISTS idx_memories_embedding ON memories USING hnsw (embedding vector_cosine_ops)",
		"CREATE INDEX IF NOT EXISTS idx_memories_missing_embedding ON memories(created_at) WHERE embedding IS NULL",
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_memories_idempotency
		   ON memories ((metadata->>'idempotency_key'))
		   WHERE metadata ? 'idempotency_key'`,
	}
	for _, stmt := range indexes {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return classify(op, err)
		}
	}
	return nil
}
