package graph

import (
	"context"
	"time"

	"github.com/wolflogic/wolfmem/config"
	"github.com/wolflogic/wolfmem/pkg/logger"
	"github.com/wolflogic/wolfmem/pkg/memstore"
	"github.com/wolflogic/wolfmem/pkg/metrics"
)

// Store is the slice of the memory store the ETL reads from.
type Store interface {
	StreamBatch(ctx context.Context, afterID int64, limit int) ([]memstore.Memory, error)
	Neighbors(ctx context.Context, id int64, k int) ([]memstore.Neighbor, error)
}

// Stats summarizes one ETL run.
type Stats struct {
	Processed       int
	Nodes           int
	Relationships   int
	SimilarityEdges int
	Errors          int
}

// ETL streams memories in id order and upserts them into the graph,
// then optionally adds RELATED_TO edges from vector similarity.
type ETL struct {
	store        Store
	runner       Runner
	batchSize    int
	threshold    float64
	k            int
	similarity   bool
	writeTimeout time.Duration
	metrics      *metrics.Manager
	log          logger.Logger
}

func New(cfg config.GraphConfig, store Store, runner Runner, m *metrics.Manager, log logger.Logger) *ETL {
	if log == nil {
		log = logger.Global()
	}
	if m == nil {
		m = metrics.NoOpManager()
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 1000
	}
	k := cfg.KNeighbors
	if k <= 0 {
		k = 5
	}
	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 30 * time.Second
	}
	return &ETL{
		store:        store,
		runner:       runner,
		batchSize:    batchSize,
		threshold:    cfg.SimilarityThreshold,
		k:            k,
		similarity:   cfg.Similarity,
		writeTimeout: writeTimeout,
		metrics:      m,
		log:          log.With("service", "graph-etl"),
	}
}

var schemaStatements = []string{
	"CREATE CONSTRAINT memory_id IF NOT EXISTS FOR (m:Memory) REQUIRE m.id IS UNIQUE",
	"CREATE CONSTRAINT user_id IF NOT EXISTS FOR (u:User) REQUIRE u.id IS UNIQUE",
	"CREATE CONSTRAINT namespace_name IF NOT EXISTS FOR (n:Namespace) REQUIRE n.name IS UNIQUE",
	"CREATE INDEX memory_created IF NOT EXISTS FOR (m:Memory) ON (m.created_at)",
	"CREATE INDEX memory_type IF NOT EXISTS FOR (m:Memory) ON (m.memory_type)",
}

// EnsureSchema creates the uniqueness constraints and lookup indexes.
func (e *ETL) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if err := e.run(ctx, stmt, nil); err != nil {
			return err
		}
	}
	return nil
}

// Run executes a full projection: schema, node/edge upserts in id-order
// batches, then the similarity pass when enabled. Per-row failures are
// counted and logged; they never abort the run.
func (e *ETL) Run(ctx context.Context) (Stats, error) {
	if err := e.EnsureSchema(ctx); err != nil {
		return Stats{}, err
	}

	var stats Stats
	afterID := int64(0)
	for {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		batch, err := e.store.StreamBatch(ctx, afterID, e.batchSize)
		if err != nil {
			return stats, err
		}
		if len(batch) == 0 {
			break
		}
		for _, mem := range batch {
			if err := e.upsertMemory(ctx, mem, &stats); err != nil {
				e.log.Warn("failed to project memory", "id", mem.ID, "error", err)
				stats.Errors++
				e.metrics.RecordGraphError()
				continue
			}
			stats.Processed++
		}
		afterID = batch[len(batch)-1].ID
	}

	if e.similarity {
		if err := e.similarityPass(ctx, &stats); err != nil {
			return stats, err
		}
	}

	e.metrics.RecordGraphNodes(stats.Nodes)
	e.metrics.RecordGraphRelationships(stats.Relationships + stats.SimilarityEdges)
	e.log.Info("projection complete", "processed", stats.Processed,
		"nodes", stats.Nodes, "relationships", stats.Relationships,
		"similarity_edges", stats.SimilarityEdges, "errors", stats.Errors)
	return stats, nil
}

func (e *ETL) upsertMemory(ctx context.Context, mem memstore.Memory, stats *Stats) error {
	err := e.run(ctx, `
		MERGE (m:Memory {id: $id})
		SET m.content = $content,
		    m.memory_type = $memory_type,
		    m.namespace = $namespace,
		    m.created_at = $created_at,
		    m.updated_at = $updated_at`,
		map[string]any{
			"id":          mem.ID,
			"content":     mem.Content,
			"memory_type": mem.MemoryType,
			"namespace":   mem.Namespace,
			"created_at":  mem.CreatedAt.Format(time.RFC3339),
			"updated_at":  mem.UpdatedAt.Format(time.RFC3339),
		})
	if err != nil {
		return err
	}
	stats.Nodes++

	if mem.UserID != "" {
		err := e.run(ctx, `
			MERGE (u:User {id: $user_id})
			WITH u
			MATCH (m:Memory {id: $memory_id})
			MERGE (u)-[:CREATED]->(m)`,
			map[string]any{"user_id": mem.UserID, "memory_id": mem.ID})
		if err != nil {
			return err
		}
		stats.Relationships++
	}

	if mem.Namespace != "" {
		err := e.run(ctx, `
			MERGE (n:Namespace {name: $namespace})
			WITH n
			MATCH (m:Memory {id: $memory_id})
			MERGE (m)-[:BELONGS_TO]->(n)`,
			map[string]any{"namespace": mem.Namespace, "memory_id": mem.ID})
		if err != nil {
			return err
		}
		stats.Relationships++
	}

	for _, tag := range stringTags(mem.Metadata) {
		err := e.run(ctx, `
			MERGE (t:Tag {name: $tag})
			WITH t
			MATCH (m:Memory {id: $memory_id})
			MERGE (m)-[:TAGGED_WITH]->(t)`,
			map[string]any{"tag": tag, "memory_id": mem.ID})
		if err != nil {
			return err
		}
		stats.Relationships++
	}
	return nil
}

// similarityPass adds RELATED_TO edges between each embedded memory and
// its nearest neighbors above the similarity threshold. Cosine
// similarity is 1 - distance.
func (e *ETL) similarityPass(ctx context.Context, stats *Stats) error {
	afterID := int64(0)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		batch, err := e.store.StreamBatch(ctx, afterID, e.batchSize)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}
		for _, mem := range batch {
			if mem.Embedding == nil {
				continue
			}
			neighbors, err := e.store.Neighbors(ctx, mem.ID, e.k)
			if err != nil {
				e.log.Warn("neighbor lookup failed", "id", mem.ID, "error", err)
				stats.Errors++
				continue
			}
			for _, nb := range neighbors {
				similarity := 1 - nb.Distance
				if similarity < e.threshold {
					continue
				}
				err := e.run(ctx, `
					MATCH (m1:Memory {id: $m1_id})
					MATCH (m2:Memory {id: $m2_id})
					MERGE (m1)-[r:RELATED_TO]->(m2)
					SET r.similarity = $similarity`,
					map[string]any{"m1_id": mem.ID, "m2_id": nb.ID, "similarity": similarity})
				if err != nil {
					e.log.Warn("failed to upsert similarity edge",
						"from", mem.ID, "to", nb.ID, "error", err)
					stats.Errors++
					continue
				}
				stats.SimilarityEdges++
			}
		}
		afterID = batch[len(batch)-1].ID
	}
}

func (e *ETL) run(ctx context.Context, cypher string, params map[string]any) error {
	runCtx, cancel := context.WithTimeout(ctx, e.writeTimeout)
	defer cancel()
	return e.runner.Run(runCtx, cypher, params)
}

// stringTags returns metadata.tags when it holds the list-of-strings
// shape, nothing otherwise.
func stringTags(metadata map[string]any) []string {
	raw, ok := metadata["tags"].([]any)
	if !ok {
		return nil
	}
	var tags []string
	for _, v := range raw {
		s, ok := v.(string)
		if !ok {
			return nil
		}
		tags = append(tags, s)
	}
	return tags
}
