package main

import (
	"github.com/spf13/cobra"

	"github.com/wolflogic/wolfmem/pkg/supervisor"
)

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "supervisor",
		Short: "Keep one stenographer per active session",
		Run:   runSupervisor,
	})
}

func runSupervisor(cmd *cobra.Command, args []string) {
	a := newApp()
	ctx, stop := signalContext()
	defer stop()

	a.startMetrics(ctx)
	a.watchConfig(ctx, nil)

	s := supervisor.New(a.cfg.Supervisor, supervisor.Options{
		Metrics: a.metrics,
		Logger:  a.log,
	})
	if err := s.Run(ctx); err != nil && ctx.Err() == nil {
		a.fatal("supervisor failed", err)
	}
}
