package main

import (
	"github.com/spf13/cobra"

	"github.com/wolflogic/wolfmem/config"
	"github.com/wolflogic/wolfmem/pkg/intake"
	"github.com/wolflogic/wolfmem/pkg/llm"
)

func init() {
	cmd := &cobra.Command{
		Use:   "intake",
		Short: "Run the intake pipeline (enrich + persist)",
		Run:   runIntake,
	}
	cmd.Flags().Bool("once", false, "Run a single pass and exit")
	rootCmd.AddCommand(cmd)
}

func runIntake(cmd *cobra.Command, args []string) {
	once, _ := cmd.Flags().GetBool("once")

	a := newApp()
	ctx, stop := signalContext()
	defer stop()

	store := a.openStore(ctx)
	defer store.Close()

	a.startMetrics(ctx)

	client := llm.NewOllamaClient(a.cfg.Intake.OllamaURL)
	pipeline, err := intake.NewPipeline(a.cfg.Intake, store, client, a.metrics, a.log)
	if err != nil {
		a.fatal("failed to build intake pipeline", err)
	}

	if once {
		if err := pipeline.RunOnce(ctx); err != nil {
			a.fatal("intake pass failed", err)
		}
		return
	}
	a.watchConfig(ctx, func(next config.Reloadable) {
		pipeline.SetInterval(next.IntakePollInterval)
	})
	if err := pipeline.Run(ctx); err != nil && ctx.Err() == nil {
		a.fatal("intake pipeline failed", err)
	}
}
