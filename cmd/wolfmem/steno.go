package main

import (
	"github.com/spf13/cobra"

	"github.com/wolflogic/wolfmem/config"
	"github.com/wolflogic/wolfmem/pkg/memstore"
	"github.com/wolflogic/wolfmem/pkg/queue"
	"github.com/wolflogic/wolfmem/pkg/steno"
)

func init() {
	cmd := &cobra.Command{
		Use:   "steno",
		Short: "Tail one agent session and emit exchanges",
		Run:   runSteno,
	}
	cmd.Flags().String("session", "", "Session file to tail (default: newest active session)")
	cmd.Flags().String("source", "", "Session source: claude or gemini")
	cmd.Flags().Bool("once", false, "Run a single poll and exit")
	rootCmd.AddCommand(cmd)
}

func runSteno(cmd *cobra.Command, args []string) {
	session, _ := cmd.Flags().GetString("session")
	source, _ := cmd.Flags().GetString("source")
	once, _ := cmd.Flags().GetBool("once")

	a := newApp()
	ctx, stop := signalContext()
	defer stop()

	if source == "" {
		source = a.cfg.Steno.Source
	}

	if session == "" {
		var err error
		switch source {
		case "gemini":
			session, err = steno.FindGeminiSession(a.cfg.Supervisor.SessionsDir)
		default:
			session, err = steno.FindClaudeSession(a.cfg.Supervisor.SessionsDir)
		}
		if err != nil {
			a.fatal("no session to tail", err)
		}
	}

	out, err := queue.New(a.cfg.Steno.QueueDir)
	if err != nil {
		a.fatal("failed to open exchange queue", err)
	}

	// The counter is a nicety; tailing works without the database.
	var counter steno.MemoryCounter
	if store, err := memstore.New(ctx, memstore.Options{
		DSN:            a.cfg.Store.DSN(),
		EmbeddingDim:   a.cfg.Store.EmbeddingDim,
		EmbeddingModel: a.cfg.Store.EmbeddingModel,
		Logger:         a.log,
	}); err == nil {
		defer store.Close()
		counter = store
	} else {
		a.log.Warn("memory counter unavailable", "error", err)
	}

	tailer := steno.NewTailer(steno.TailerOptions{
		SessionPath: session,
		Source:      source,
		Out:         out,
		Interval:    a.cfg.Steno.PollInterval,
		Counter:     counter,
		Metrics:     a.metrics,
		Logger:      a.log,
	})

	a.startMetrics(ctx)

	if once {
		if _, err := tailer.Poll(ctx); err != nil {
			a.fatal("poll failed", err)
		}
		return
	}
	a.watchConfig(ctx, func(next config.Reloadable) {
		tailer.SetInterval(next.StenoPollInterval)
	})
	if err := tailer.Run(ctx); err != nil && ctx.Err() == nil {
		a.fatal("stenographer failed", err)
	}
}
