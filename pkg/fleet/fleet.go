// Package fleet backfills embeddings on memories that are missing one,
// spreading the work round-robin across a fleet of lightweight
// embedding models.
package fleet

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/wolflogic/wolfmem/config"
	"github.com/wolflogic/wolfmem/pkg/embed"
	"github.com/wolflogic/wolfmem/pkg/logger"
	"github.com/wolflogic/wolfmem/pkg/memstore"
	"github.com/wolflogic/wolfmem/pkg/metrics"
	"github.com/wolflogic/wolfmem/pkg/pool"
)

const (
	embedAttempts = 3
	embedBackoff  = time.Second
)

// Store is the slice of the memory store the fleet needs. Claimed rows
// are disjoint by id, so workers never coordinate.
type Store interface {
	MissingEmbeddings(ctx context.Context, lookback time.Duration, limit int) ([]memstore.Memory, error)
	SetEmbedding(ctx context.Context, id int64, vec []float32) error
	MergeMetadata(ctx context.Context, id int64, patch map[string]any) error
	Dim() int
}

// Stats summarizes one backfill pass.
type Stats struct {
	Scanned  int64
	Embedded int64
	Flagged  int64
	Failed   int64
}

// Fleet runs backfill passes over rows with null embeddings.
type Fleet struct {
	store    Store
	embedder embed.Client
	models   []string
	next     atomic.Uint64

	batchSize int
	workers   int
	lookback  time.Duration
	interval  time.Duration
	backoff   time.Duration
	metrics   *metrics.Manager
	log       logger.Logger
}

func New(cfg config.FleetConfig, store Store, embedder embed.Client, m *metrics.Manager, log logger.Logger) *Fleet {
	if log == nil {
		log = logger.Global()
	}
	if m == nil {
		m = metrics.NoOpManager()
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	lookback := cfg.Lookback
	if lookback <= 0 {
		lookback = time.Hour
	}
	return &Fleet{
		store:     store,
		embedder:  embedder,
		models:    cfg.Models,
		batchSize: cfg.BatchSize,
		workers:   cfg.Workers,
		lookback:  lookback,
		interval:  interval,
		backoff:   embedBackoff,
		metrics:   m,
		log:       log.With("service", "fleet"),
	}
}

// nextModel rotates through the configured fleet.
func (f *Fleet) nextModel() string {
	n := f.next.Add(1) - 1
	return f.models[n%uint64(len(f.models))]
}

// RunOnce claims one batch of unembedded rows and processes it across
// the worker pool.
func (f *Fleet) RunOnce(ctx context.Context) (Stats, error) {
	rows, err := f.store.MissingEmbeddings(ctx, f.lookback, f.batchSize)
	if err != nil {
		return Stats{}, err
	}

	var stats Stats
	stats.Scanned = int64(len(rows))
	if len(rows) == 0 {
		return stats, nil
	}

	workers := pool.New(f.workers, func(mem memstore.Memory) {
		switch f.process(ctx, mem) {
		case outcomeEmbedded:
			atomic.AddInt64(&stats.Embedded, 1)
		case outcomeFlagged:
			atomic.AddInt64(&stats.Flagged, 1)
		default:
			atomic.AddInt64(&stats.Failed, 1)
		}
	})
	workers.Start()
	for _, mem := range rows {
		workers.Submit(mem)
	}
	workers.Stop()

	f.log.Info("backfill pass complete", "scanned", stats.Scanned,
		"embedded", stats.Embedded, "flagged", stats.Flagged, "failed", stats.Failed)
	return stats, nil
}

// Run executes passes continuously until the context is canceled.
func (f *Fleet) Run(ctx context.Context) error {
	f.log.Info("vector fleet started", "models", f.models,
		"workers", f.workers, "interval", f.interval)
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		if _, err := f.RunOnce(ctx); err != nil && ctx.Err() == nil {
			f.log.Error("backfill pass failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

type outcome int

const (
	outcomeFailed outcome = iota
	outcomeEmbedded
	outcomeFlagged
)

// process embeds one row with the next model in rotation. A model whose
// output dimension disagrees with the store never writes a vector; the
// row is flagged needs_conversion instead. Permanent model errors flag
// embed_error and leave the embedding null for the next pass.
func (f *Fleet) process(ctx context.Context, mem memstore.Memory) outcome {
	model := f.nextModel()
	log := f.log.With("id", mem.ID, "model", model)

	start := time.Now()
	vec, err := f.embedWithRetry(ctx, model, mem.Content)
	f.metrics.RecordEmbedDuration(model, time.Since(start))
	if err != nil {
		if isPermanent(err) {
			log.Warn("permanent embed failure, flagging row", "error", err)
			if mergeErr := f.store.MergeMetadata(ctx, mem.ID, map[string]any{
				"embed_error": "permanent",
			}); mergeErr != nil {
				log.Error("failed to flag row", "error", mergeErr)
				return outcomeFailed
			}
			f.metrics.RecordFlagged("embed_error")
			return outcomeFlagged
		}
		log.Warn("embed failed", "error", err)
		f.metrics.RecordEmbedFailed()
		return outcomeFailed
	}

	if len(vec) != f.store.Dim() {
		log.Warn("model dimension mismatch, flagging row",
			"got", len(vec), "want", f.store.Dim())
		if mergeErr := f.store.MergeMetadata(ctx, mem.ID, map[string]any{
			"needs_conversion": model,
		}); mergeErr != nil {
			log.Error("failed to flag row", "error", mergeErr)
			return outcomeFailed
		}
		f.metrics.RecordFlagged("needs_conversion")
		return outcomeFlagged
	}

	if err := f.store.SetEmbedding(ctx, mem.ID, vec); err != nil {
		log.Error("failed to write embedding", "error", err)
		return outcomeFailed
	}
	f.metrics.RecordEmbedded(model)
	log.Debug("embedded row")
	return outcomeEmbedded
}

func (f *Fleet) embedWithRetry(ctx context.Context, model, text string) ([]float32, error) {
	var lastErr error
	for attempt := 0; attempt < embedAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(f.backoff << (attempt - 1)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		vec, err := f.embedder.Embed(ctx, model, text)
		if err == nil {
			return vec, nil
		}
		if isPermanent(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

func isPermanent(err error) bool {
	var statusErr *embed.StatusError
	return errors.As(err, &statusErr) && statusErr.Permanent()
}
