// Package graph projects the memory store into a Neo4j labeled-property
// graph. The graph is a derived view: every write is a MERGE upsert, so
// reruns converge and the whole thing is rebuildable from the store.
package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Runner executes one Cypher statement. The ETL depends on this narrow
// interface so tests can fake the database away.
type Runner interface {
	Run(ctx context.Context, cypher string, params map[string]any) error
}

// Neo4jRunner is the production Runner backed by the bolt driver.
type Neo4jRunner struct {
	driver neo4j.DriverWithContext
}

// NewRunner connects to Neo4j and verifies connectivity.
func NewRunner(ctx context.Context, uri, user, password string) (*Neo4jRunner, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("verify neo4j connectivity: %w", err)
	}
	return &Neo4jRunner{driver: driver}, nil
}

func (r *Neo4jRunner) Run(ctx context.Context, cypher string, params map[string]any) error {
	_, err := neo4j.ExecuteQuery(ctx, r.driver, cypher, params, neo4j.EagerResultTransformer)
	return err
}

func (r *Neo4jRunner) Close(ctx context.Context) error {
	return r.driver.Close(ctx)
}
