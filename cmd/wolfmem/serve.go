package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/wolflogic/wolfmem/pkg/api"
	"github.com/wolflogic/wolfmem/pkg/api/handlers"
)

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP query surface",
		Run:   runServe,
	})
}

func runServe(cmd *cobra.Command, args []string) {
	a := newApp()
	ctx, stop := signalContext()
	defer stop()

	stopTracing := a.startTracing(ctx)
	defer stopTracing(context.Background())

	store := a.openStore(ctx)
	defer store.Close()

	a.startMetrics(ctx)
	a.watchConfig(ctx, nil)

	server := api.NewHTTPServer(a.cfg, a.log, &api.Handlers{
		Query: handlers.NewQueryHandler(store),
		Health: handlers.NewHealthHandler(store, map[string]string{
			"dump_dir":  a.cfg.Intake.DumpDir,
			"queue_dir": a.cfg.Intake.QueueDir,
		}),
		Metrics: a.metrics,
	})

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("query surface listening", "host", a.cfg.Server.Host, "port", a.cfg.Server.Port)
		if err := server.Start(); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("received shutdown signal")
	case err := <-errCh:
		a.log.Error("http server error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout())
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		a.log.Error("error shutting down http server", "error", err)
	}
	a.log.Info("query surface stopped")
}
