package intake

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/wolflogic/wolfmem/config"
	"github.com/wolflogic/wolfmem/pkg/llm"
	"github.com/wolflogic/wolfmem/pkg/logger"
	"github.com/wolflogic/wolfmem/pkg/metrics"
	"github.com/wolflogic/wolfmem/pkg/queue"
)

// Pipeline ties the enrich and persist stages to their directories and
// drives them on the configured poll cadence.
type Pipeline struct {
	enrich   *EnrichStage
	persist  *Persister
	interval atomic.Int64
	log      logger.Logger
}

// NewPipeline builds the full pipeline from config: queue directories
// are created as needed and the tracking file lives next to the dump
// directory.
func NewPipeline(cfg config.IntakeConfig, store Inserter, client llm.Client, m *metrics.Manager, log logger.Logger) (*Pipeline, error) {
	if log == nil {
		log = logger.Global()
	}
	if m == nil {
		m = metrics.NoOpManager()
	}

	dumps, err := queue.New(cfg.DumpDir)
	if err != nil {
		return nil, fmt.Errorf("dump dir: %w", err)
	}
	enriched, err := queue.New(cfg.QueueDir)
	if err != nil {
		return nil, fmt.Errorf("queue dir: %w", err)
	}
	processed, err := queue.New(cfg.ProcessedDir)
	if err != nil {
		return nil, fmt.Errorf("processed dir: %w", err)
	}
	failed, err := queue.New(cfg.FailedDir)
	if err != nil {
		return nil, fmt.Errorf("failed dir: %w", err)
	}
	archive, err := queue.New(cfg.ArchiveDir)
	if err != nil {
		return nil, fmt.Errorf("archive dir: %w", err)
	}
	tracking, err := LoadTracking(filepath.Join(cfg.DumpDir, "tracking.log"))
	if err != nil {
		return nil, err
	}

	enricher := NewEnricher(EnricherOptions{
		Client:         client,
		KeywordModel:   cfg.KeywordModel,
		SentimentModel: cfg.SentimentModel,
		SummaryModel:   cfg.SummaryModel,
		Timeout:        cfg.EnrichTimeout,
		RateLimit:      cfg.RateLimit,
		Logger:         log,
	})

	interval := cfg.PollInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}

	p := &Pipeline{
		enrich: NewEnrichStage(EnrichStageOptions{
			In:       dumps,
			Out:      enriched,
			Archive:  archive,
			Enricher: enricher,
			Tracking: tracking,
			Workers:  cfg.Workers,
			Metrics:  m,
			Logger:   log,
		}),
		persist: NewPersister(PersisterOptions{
			Queue:      enriched,
			Processed:  processed,
			Failed:     failed,
			Store:      store,
			MaxRetries: cfg.MaxRetries,
			Metrics:    m,
			Logger:     log,
		}),
		log: log,
	}
	p.interval.Store(int64(interval))
	return p, nil
}

// Interval reports the current pause between passes.
func (p *Pipeline) Interval() time.Duration {
	return time.Duration(p.interval.Load())
}

// SetInterval adjusts the pause between passes. The running loop picks
// the new value up at its next sleep. Non-positive values are ignored.
func (p *Pipeline) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	p.interval.Store(int64(d))
}

// RunOnce drives both stages through one pass each.
func (p *Pipeline) RunOnce(ctx context.Context) error {
	enriched, err := p.enrich.RunOnce(ctx)
	if err != nil {
		return err
	}
	persisted, err := p.persist.RunOnce(ctx)
	if err != nil {
		return err
	}
	if enriched > 0 || persisted > 0 {
		p.log.Info("pipeline pass complete", "enriched", enriched, "persisted", persisted)
	}
	return nil
}

// Run loops RunOnce until the context is canceled.
func (p *Pipeline) Run(ctx context.Context) error {
	p.log.Info("intake pipeline started", "interval", p.Interval())
	for {
		if err := p.RunOnce(ctx); err != nil && ctx.Err() == nil {
			p.log.Error("pipeline pass failed", "error", err)
		}
		timer := time.NewTimer(p.Interval())
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
