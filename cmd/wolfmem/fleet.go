package main

import (
	"github.com/spf13/cobra"

	"github.com/wolflogic/wolfmem/pkg/embed"
	"github.com/wolflogic/wolfmem/pkg/fleet"
)

func init() {
	cmd := &cobra.Command{
		Use:   "fleet",
		Short: "Run the embedding backfill fleet",
		Run:   runFleet,
	}
	cmd.Flags().Bool("once", false, "Run a single backfill pass and exit")
	rootCmd.AddCommand(cmd)
}

func runFleet(cmd *cobra.Command, args []string) {
	once, _ := cmd.Flags().GetBool("once")

	a := newApp()
	ctx, stop := signalContext()
	defer stop()

	store := a.openStore(ctx)
	defer store.Close()

	a.startMetrics(ctx)
	a.watchConfig(ctx, nil)

	f := fleet.New(a.cfg.Fleet, store, embed.NewOllamaClient(a.cfg.Fleet.OllamaURL), a.metrics, a.log)

	if once {
		if _, err := f.RunOnce(ctx); err != nil {
			a.fatal("backfill pass failed", err)
		}
		return
	}
	if err := f.Run(ctx); err != nil && ctx.Err() == nil {
		a.fatal("embedding fleet failed", err)
	}
}
