package intake

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/wolflogic/wolfmem/pkg/logger"
	"github.com/wolflogic/wolfmem/pkg/metrics"
	"github.com/wolflogic/wolfmem/pkg/pool"
	"github.com/wolflogic/wolfmem/pkg/queue"
	"github.com/wolflogic/wolfmem/pkg/steno"
)

// EnrichStage consumes raw exchange files from the dump directory,
// enriches them, and hands the results to the persist queue. Raw files
// move to the archive directory once their enrichment is queued.
//
// Besides per-exchange files the stage also follows append-only .jsonl
// session dumps dropped in the same directory (full-context dumps);
// their tail positions live in the tracking file so a restart never
// replays consumed records.
type EnrichStage struct {
	in       *queue.Dir
	out      *queue.Dir
	archive  *queue.Dir
	enricher *Enricher
	tracking *Tracking
	workers  int
	metrics  *metrics.Manager
	log      logger.Logger
}

// EnrichStageOptions configures an EnrichStage.
type EnrichStageOptions struct {
	In       *queue.Dir
	Out      *queue.Dir
	Archive  *queue.Dir
	Enricher *Enricher
	// Tracking is optional; without it .jsonl dumps are ignored.
	Tracking *Tracking
	// Workers bounds the enrichment fan-out. Zero means 1.
	Workers int
	Metrics *metrics.Manager
	Logger  logger.Logger
}

func NewEnrichStage(opts EnrichStageOptions) *EnrichStage {
	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}
	log := opts.Logger
	if log == nil {
		log = logger.Global()
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.NoOpManager()
	}
	return &EnrichStage{
		in:       opts.In,
		out:      opts.Out,
		archive:  opts.Archive,
		enricher: opts.Enricher,
		tracking: opts.Tracking,
		workers:  workers,
		metrics:  m,
		log:      log.With("stage", "enrich"),
	}
}

// RunOnce makes one pass over the dump directory and returns the
// number of exchanges queued for persistence.
func (s *EnrichStage) RunOnce(ctx context.Context) (int, error) {
	names, err := s.in.List()
	if err != nil {
		return 0, fmt.Errorf("list dump dir: %w", err)
	}
	s.metrics.SetQueueDepth("raw", float64(len(names)))

	var queued atomic.Int64
	workers := pool.New(s.workers, func(name string) {
		if ctx.Err() != nil {
			return
		}
		if s.processFile(ctx, name) {
			queued.Add(1)
		}
	})
	workers.Start()
	for _, name := range names {
		workers.Submit(name)
	}
	workers.Stop()

	n, err := s.followDumps(ctx)
	queued.Add(int64(n))
	if err != nil {
		return int(queued.Load()), err
	}
	return int(queued.Load()), ctx.Err()
}

// processFile enriches one raw exchange file. Parse failures are
// logged and the file skipped; it stays in place for an operator to
// inspect or delete.
func (s *EnrichStage) processFile(ctx context.Context, name string) bool {
	var raw RawExchange
	if err := s.in.ReadJSON(name, &raw); err != nil {
		s.log.Warn("skipping unreadable exchange file", "file", name, "error", err)
		return false
	}

	start := time.Now()
	rec := s.enricher.Enrich(ctx, raw)
	s.metrics.RecordEnrichDuration(time.Since(start))
	if err := s.out.WriteJSON("pgai_"+name, rec); err != nil {
		s.log.Error("failed to queue enriched record", "file", name, "error", err)
		return false
	}
	if err := s.in.Move(name, s.archive); err != nil {
		s.log.Error("failed to archive raw exchange", "file", name, "error", err)
		return false
	}
	s.metrics.RecordEnriched(rec.Source)
	s.log.Info("enriched exchange", "file", name,
		"keywords", len(rec.Keywords), "sentiment", rec.Sentiment.Score)
	return true
}

// followDumps consumes new exchanges from .jsonl session dumps. The
// tracked offset counts parsed records, mirroring the stenographer's
// position semantics.
func (s *EnrichStage) followDumps(ctx context.Context) (int, error) {
	if s.tracking == nil {
		return 0, nil
	}
	paths, err := filepath.Glob(filepath.Join(s.in.Path(), "*.jsonl"))
	if err != nil {
		return 0, fmt.Errorf("glob session dumps: %w", err)
	}

	queued := 0
	for _, path := range paths {
		if ctx.Err() != nil {
			return queued, ctx.Err()
		}
		data, err := os.ReadFile(path)
		if err != nil {
			s.log.Warn("unreadable session dump", "file", path, "error", err)
			continue
		}
		name := filepath.Base(path)
		records := steno.ParseSessionFile(data, s.log)
		offset := s.tracking.Get(name)
		if int64(len(records)) <= offset {
			continue
		}

		session := name[:len(name)-len(filepath.Ext(name))]
		pairs, consumed := steno.PairRecords(records[offset:])
		for i, pair := range pairs {
			raw := RawExchange{
				Num:       int(offset) + i + 1,
				Timestamp: time.Now().Format(time.RFC3339),
				User:      pair.User,
				Assistant: pair.Assistant,
				Source:    "dump",
				Session:   session,
				Model:     pair.Model,
				Type:      "verbatim_transcript",
			}
			rec := s.enricher.Enrich(ctx, raw)
			outName := fmt.Sprintf("pgai_dump_%s_%06d.json", session, raw.Num)
			if err := s.out.WriteJSON(outName, rec); err != nil {
				return queued, fmt.Errorf("queue dump exchange: %w", err)
			}
			s.metrics.RecordEnriched(rec.Source)
			queued++
		}
		// Advance only past the last paired assistant; an unanswered
		// trailing user turn keeps the offset behind so the exchange
		// completes on a later pass.
		if consumed > 0 {
			if err := s.tracking.Set(name, offset+int64(consumed)); err != nil {
				return queued, err
			}
			s.log.Info("followed session dump", "file", name,
				"records", len(records), "offset", offset+int64(consumed))
		}
	}
	return queued, nil
}
