package intake

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/wolflogic/wolfmem/pkg/logger"
	"github.com/wolflogic/wolfmem/pkg/memstore"
	"github.com/wolflogic/wolfmem/pkg/metrics"
	"github.com/wolflogic/wolfmem/pkg/queue"
)

// Inserter is the slice of the memory store the persist stage needs.
type Inserter interface {
	Insert(ctx context.Context, p memstore.InsertParams) (int64, error)
}

// Persister drains the enriched queue into the memory store. The
// atomic rename into the processed directory is the commit point: a
// crash between insert and rename makes the record run again, and the
// idempotency key turns that rerun into a logged duplicate.
type Persister struct {
	queue      *queue.Dir
	processed  *queue.Dir
	failed     *queue.Dir
	store      Inserter
	maxRetries int
	backoff    time.Duration
	metrics    *metrics.Manager
	log        logger.Logger
}

// PersisterOptions configures a Persister.
type PersisterOptions struct {
	Queue     *queue.Dir
	Processed *queue.Dir
	Failed    *queue.Dir
	Store     Inserter
	// MaxRetries bounds insert attempts on transient errors. Zero
	// means 3.
	MaxRetries int
	// Backoff is the base retry delay, doubled per attempt. Zero
	// means 2s.
	Backoff time.Duration
	Metrics *metrics.Manager
	Logger  logger.Logger
}

func NewPersister(opts PersisterOptions) *Persister {
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	backoff := opts.Backoff
	if backoff <= 0 {
		backoff = 2 * time.Second
	}
	log := opts.Logger
	if log == nil {
		log = logger.Global()
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.NoOpManager()
	}
	return &Persister{
		queue:      opts.Queue,
		processed:  opts.Processed,
		failed:     opts.Failed,
		store:      opts.Store,
		maxRetries: maxRetries,
		backoff:    backoff,
		metrics:    m,
		log:        log.With("stage", "persist"),
	}
}

// IdempotencyKey derives the content key that rejects reprocessed
// records: SHA-256 over session, producer timestamp, and the hash of
// the raw user text.
func IdempotencyKey(session, timestamp, userText string) string {
	userHash := sha256.Sum256([]byte(userText))
	sum := sha256.Sum256([]byte(session + "|" + timestamp + "|" + hex.EncodeToString(userHash[:])))
	return hex.EncodeToString(sum[:])
}

// RunOnce makes one pass over the enriched queue and returns the
// number of records committed (inserted or recognized as duplicates).
func (p *Persister) RunOnce(ctx context.Context) (int, error) {
	names, err := p.queue.List()
	if err != nil {
		return 0, fmt.Errorf("list enriched queue: %w", err)
	}
	p.metrics.SetQueueDepth("enriched", float64(len(names)))
	committed := 0
	for _, name := range names {
		if ctx.Err() != nil {
			return committed, ctx.Err()
		}
		if p.processFile(ctx, name) {
			committed++
		}
	}
	return committed, nil
}

func (p *Persister) processFile(ctx context.Context, name string) bool {
	var rec EnrichedRecord
	if err := p.queue.ReadJSON(name, &rec); err != nil {
		p.log.Error("unreadable enriched record", "file", name, "error", err)
		p.reject(name, err, "bad_record")
		return false
	}

	params := p.buildParams(rec)
	for attempt := 1; ; attempt++ {
		_, err := p.store.Insert(ctx, params)
		switch {
		case err == nil:
			return p.commit(name)
		case errors.Is(err, memstore.ErrConflict):
			p.log.Info("duplicate record dropped", "file", name, "session", rec.Session)
			return p.commit(name)
		case memstore.Retryable(err) && attempt < p.maxRetries:
			p.metrics.RecordPersistRetry()
			delay := p.backoff << (attempt - 1)
			p.log.Warn("transient insert failure, retrying",
				"file", name, "attempt", attempt, "delay", delay, "error", err)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return false
			}
		case memstore.Retryable(err):
			// Out of attempts; leave the file queued for the next pass.
			p.log.Error("insert failed after retries", "file", name, "error", err)
			return false
		default:
			p.log.Error("permanent insert failure", "file", name, "error", err)
			p.reject(name, err, "permanent")
			return false
		}
	}
}

func (p *Persister) buildParams(rec EnrichedRecord) memstore.InsertParams {
	namespace := rec.Namespace
	if namespace == "" {
		namespace = DefaultNamespace
	}
	userID := rec.Username
	if userID == "" {
		userID = DefaultUsername
	}
	return memstore.InsertParams{
		UserID:    userID,
		Content:   rec.Text,
		Namespace: namespace,
		Metadata: map[string]any{
			"content":         rec.Content,
			"keywords":        rec.Keywords,
			"sentiment":       rec.Sentiment,
			"session":         rec.Session,
			"timestamp":       rec.Timestamp,
			"source":          rec.Source,
			"idempotency_key": IdempotencyKey(rec.Session, rec.Timestamp, rec.User),
		},
	}
}

func (p *Persister) commit(name string) bool {
	if err := p.queue.Move(name, p.processed); err != nil {
		p.log.Error("failed to commit record", "file", name, "error", err)
		return false
	}
	p.metrics.RecordPersisted()
	p.log.Info("persisted record", "file", name)
	return true
}

func (p *Persister) reject(name string, cause error, reason string) {
	if err := p.queue.Move(name, p.failed); err != nil {
		p.log.Error("failed to park rejected record", "file", name, "error", err)
		return
	}
	p.metrics.RecordFailed(reason)
	if err := p.failed.WriteErrorSidecar(name, cause); err != nil {
		p.log.Error("failed to write error sidecar", "file", name, "error", err)
	}
}
