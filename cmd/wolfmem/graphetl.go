package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/wolflogic/wolfmem/pkg/graph"
)

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "graph-etl",
		Short: "Project memories into the Neo4j graph view",
		Run:   runGraphETL,
	})
}

func runGraphETL(cmd *cobra.Command, args []string) {
	a := newApp()
	ctx, stop := signalContext()
	defer stop()

	store := a.openStore(ctx)
	defer store.Close()

	runner, err := graph.NewRunner(ctx, a.cfg.Graph.URI, a.cfg.Graph.User, a.cfg.Graph.Password)
	if err != nil {
		a.fatal("failed to connect neo4j", err)
	}
	defer runner.Close(context.Background())

	etl := graph.New(a.cfg.Graph, store, runner, a.metrics, a.log)
	stats, err := etl.Run(ctx)
	if err != nil {
		a.fatal("graph projection failed", err)
	}
	a.log.Info("graph projection complete",
		"processed", stats.Processed,
		"nodes", stats.Nodes,
		"relationships", stats.Relationships,
		"similarity_edges", stats.SimilarityEdges)
}
