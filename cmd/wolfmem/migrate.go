package main

import (
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Create or update the memory store schema",
		Run:   runMigrate,
	})
}

func runMigrate(cmd *cobra.Command, args []string) {
	a := newApp()
	ctx, stop := signalContext()
	defer stop()

	store := a.openStore(ctx)
	defer store.Close()

	if err := store.EnsureSchema(ctx); err != nil {
		a.fatal("schema migration failed", err)
	}
	a.log.Info("schema up to date",
		"database", a.cfg.Store.Database,
		"embedding_dim", a.cfg.Store.EmbeddingDim)
}
