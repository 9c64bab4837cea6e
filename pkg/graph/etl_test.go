package graph

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wolflogic/wolfmem/config"
	"github.com/wolflogic/wolfmem/pkg/memstore"
)

type recordedQuery struct {
	cypher string
	params map[string]any
}

// fakeRunner records every statement; failOn makes statements whose
// cypher contains the marker fail.
type fakeRunner struct {
	queries []recordedQuery
	failOn  string
}

func (r *fakeRunner) Run(_ context.Context, cypher string, params map[string]any) error {
	if r.failOn != "" && strings.Contains(cypher, r.failOn) {
		return errors.New("boom")
	}
	r.queries = append(r.queries, recordedQuery{cypher: cypher, params: params})
	return nil
}

func (r *fakeRunner) matching(marker string) []recordedQuery {
	var out []recordedQuery
	for _, q := range r.queries {
		if strings.Contains(q.cypher, marker) {
			out = append(out, q)
		}
	}
	return out
}

type fakeGraphStore struct {
	memories  []memstore.Memory
	neighbors map[int64][]memstore.Neighbor
}

func (s *fakeGraphStore) StreamBatch(_ context.Context, afterID int64, limit int) ([]memstore.Memory, error) {
	var out []memstore.Memory
	for _, m := range s.memories {
		if m.ID > afterID {
			out = append(out, m)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *fakeGraphStore) Neighbors(_ context.Context, id int64, _ int) ([]memstore.Neighbor, error) {
	return s.neighbors[id], nil
}

func testETL(store Store, runner Runner, similarity bool) *ETL {
	return New(config.GraphConfig{
		BatchSize:           2,
		SimilarityThreshold: 0.7,
		KNeighbors:          5,
		WriteTimeout:        time.Second,
		Similarity:          similarity,
	}, store, runner, nil, nil)
}

func memoryRow(id int64, namespace string) memstore.Memory {
	return memstore.Memory{
		ID:        id,
		UserID:    "scripty",
		Content:   "content",
		Namespace: namespace,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
}

func TestRun_ProjectsNodesAndEdges(t *testing.T) {
	store := &fakeGraphStore{memories: []memstore.Memory{
		memoryRow(1, "scripty"),
		memoryRow(2, "scripty"),
		memoryRow(3, "ingested"),
	}}
	runner := &fakeRunner{}

	stats, err := testETL(store, runner, false).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, stats.Processed)
	require.Equal(t, 3, stats.Nodes)
	// Per memory: CREATED + BELONGS_TO.
	require.Equal(t, 6, stats.Relationships)
	require.Zero(t, stats.Errors)

	require.Len(t, runner.matching("MERGE (m:Memory"), 3)
	require.Len(t, runner.matching("MERGE (u)-[:CREATED]->(m)"), 3)
	require.Len(t, runner.matching("MERGE (m)-[:BELONGS_TO]->(n)"), 3)
	require.Len(t, runner.matching("CREATE CONSTRAINT"), 3)
	require.Len(t, runner.matching("CREATE INDEX"), 2)
}

func TestRun_TagsOnlyForStringLists(t *testing.T) {
	tagged := memoryRow(1, "scripty")
	tagged.Metadata = map[string]any{"tags": []any{"wolf", "hunt"}}
	badShape := memoryRow(2, "scripty")
	badShape.Metadata = map[string]any{"tags": []any{"ok", 42}}
	noTags := memoryRow(3, "scripty")

	store := &fakeGraphStore{memories: []memstore.Memory{tagged, badShape, noTags}}
	runner := &fakeRunner{}

	_, err := testETL(store, runner, false).Run(context.Background())
	require.NoError(t, err)

	tagQueries := runner.matching("TAGGED_WITH")
	require.Len(t, tagQueries, 2)
	require.Equal(t, "wolf", tagQueries[0].params["tag"])
	require.Equal(t, "hunt", tagQueries[1].params["tag"])
}

func TestRun_PerRowErrorsDoNotAbort(t *testing.T) {
	store := &fakeGraphStore{memories: []memstore.Memory{
		memoryRow(1, "scripty"),
		memoryRow(2, "scripty"),
	}}
	runner := &fakeRunner{failOn: "MERGE (m:Memory"}

	stats, err := testETL(store, runner, false).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, stats.Errors)
	require.Zero(t, stats.Processed)
}

func TestRun_SimilarityPass(t *testing.T) {
	near := memoryRow(1, "scripty")
	near.Embedding = []float32{0.1, 0.2, 0.3}
	unembedded := memoryRow(2, "scripty")

	store := &fakeGraphStore{
		memories: []memstore.Memory{near, unembedded},
		neighbors: map[int64][]memstore.Neighbor{
			1: {
				{ID: 5, Distance: 0.1},  // similarity 0.9 — kept
				{ID: 6, Distance: 0.25}, // similarity 0.75 — kept
				{ID: 7, Distance: 0.5},  // similarity 0.5 — dropped
			},
		},
	}
	runner := &fakeRunner{}

	stats, err := testETL(store, runner, true).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, stats.SimilarityEdges)

	edges := runner.matching("RELATED_TO")
	require.Len(t, edges, 2)
	require.Equal(t, int64(5), edges[0].params["m2_id"])
	require.InDelta(t, 0.9, edges[0].params["similarity"].(float64), 1e-9)
	require.Equal(t, int64(6), edges[1].params["m2_id"])
}

func TestStringTags(t *testing.T) {
	require.Equal(t, []string{"a", "b"}, stringTags(map[string]any{"tags": []any{"a", "b"}}))
	require.Nil(t, stringTags(map[string]any{"tags": []any{"a", 1}}))
	require.Nil(t, stringTags(map[string]any{"tags": "not-a-list"}))
	require.Nil(t, stringTags(nil))
}
