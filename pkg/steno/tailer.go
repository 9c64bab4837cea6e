package steno

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/wolflogic/wolfmem/pkg/logger"
	"github.com/wolflogic/wolfmem/pkg/metrics"
	"github.com/wolflogic/wolfmem/pkg/queue"
)

// Exchange is one user/assistant turn emitted to the intake queue.
type Exchange struct {
	Num       int    `json:"exchange_num"`
	Timestamp string `json:"timestamp"`
	User      string `json:"user"`
	Assistant string `json:"assistant"`
	Source    string `json:"source"`
	Session   string `json:"session"`
	Model     string `json:"model,omitempty"`
	Type      string `json:"type"`
}

const exchangeType = "verbatim_transcript"

// MemoryCounter reports the store's total memory count. The tailer
// logs it whenever it changes so a watcher can see ingestion moving.
type MemoryCounter interface {
	Count(ctx context.Context) (int64, error)
}

// TailerOptions configures a Tailer for one session file.
type TailerOptions struct {
	// SessionPath is the session file to follow. The file may not
	// exist yet; the tailer waits it out.
	SessionPath string
	// Source tags emitted exchanges, "claude" or "gemini".
	Source string
	// Out is the queue directory receiving exchange files.
	Out *queue.Dir
	// Interval is the poll cadence for Run. Zero means 2s.
	Interval time.Duration
	// Counter is optional; when set the tailer logs count changes.
	Counter MemoryCounter
	Metrics *metrics.Manager
	Logger  logger.Logger
}

// Tailer follows a single session file and emits each user/assistant
// exchange exactly once, in file order. The position state is
// lastPosition, the count of parsed records already consumed; every
// poll reopens and fully reparses the file, which is cheap at session
// sizes, and resumes from that count. The position and exchange
// counter are persisted to a hidden sidecar in the queue directory
// after every emit, so a restarted tailer resumes where it left off
// instead of re-emitting the whole session.
type Tailer struct {
	path     string
	source   string
	out      *queue.Dir
	interval atomic.Int64
	counter  MemoryCounter
	metrics  *metrics.Manager
	log      logger.Logger

	lastPosition int
	currentUser  string
	userPending  bool
	seq          int
	lastCount    int64
}

// tailerState is the durable slice of the tailer. Position counts
// records through the last emitted assistant turn, never past an
// unanswered user turn, so a restart mid-exchange re-reads the user
// record and still emits the pair.
type tailerState struct {
	Position int `json:"position"`
	Seq      int `json:"seq"`
}

func NewTailer(opts TailerOptions) *Tailer {
	interval := opts.Interval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	log := opts.Logger
	if log == nil {
		log = logger.Global()
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.NoOpManager()
	}
	t := &Tailer{
		path:      opts.SessionPath,
		source:    opts.Source,
		out:       opts.Out,
		counter:   opts.Counter,
		metrics:   m,
		log:       log.With("session", filepath.Base(opts.SessionPath), "source", opts.Source),
		lastCount: -1,
	}
	t.interval.Store(int64(interval))
	t.loadState()
	return t
}

// Interval reports the current poll cadence.
func (t *Tailer) Interval() time.Duration {
	return time.Duration(t.interval.Load())
}

// SetInterval adjusts the poll cadence. The running loop picks the new
// value up at its next sleep. Non-positive values are ignored.
func (t *Tailer) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	t.interval.Store(int64(d))
}

// stateName is the sidecar filename for this session. The leading dot
// keeps it out of queue listings.
func (t *Tailer) stateName() string {
	return "." + sessionName(t.path) + ".pos"
}

func (t *Tailer) loadState() {
	if t.out == nil {
		return
	}
	data, err := os.ReadFile(t.out.Join(t.stateName()))
	if err != nil {
		return
	}
	var st tailerState
	if err := json.Unmarshal(data, &st); err != nil || st.Position < 0 || st.Seq < 0 {
		t.log.Warn("ignoring corrupt position sidecar", "file", t.stateName())
		return
	}
	t.lastPosition = st.Position
	t.seq = st.Seq
	t.log.Info("resuming session", "position", st.Position, "seq", st.Seq)
}

func (t *Tailer) saveState() {
	if t.out == nil {
		return
	}
	data, err := json.Marshal(tailerState{Position: t.lastPosition, Seq: t.seq})
	if err != nil {
		return
	}
	if err := t.out.WriteBytes(t.stateName(), data); err != nil {
		t.log.Warn("failed to persist position", "error", err)
	}
}

// SessionPath returns the file this tailer follows.
func (t *Tailer) SessionPath() string {
	return t.path
}

// Run polls the session file until the context is canceled.
func (t *Tailer) Run(ctx context.Context) error {
	t.log.Info("tailing session", "path", t.path, "interval", t.Interval())
	for {
		if _, err := t.Poll(ctx); err != nil {
			t.log.Error("poll failed", "error", err)
		}
		timer := time.NewTimer(t.Interval())
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Poll performs one tick: reparse the file, emit any newly completed
// exchanges, advance the position. It returns the number of exchanges
// emitted. A missing session file is not an error.
func (t *Tailer) Poll(ctx context.Context) (int, error) {
	data, err := os.ReadFile(t.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read session: %w", err)
	}

	records := ParseSessionFile(data, t.log)
	if len(records) < t.lastPosition {
		// Rotation: the file shrank below where we left off, so this
		// is a new session under the same name.
		t.log.Info("session file shrank, restarting from the top",
			"had", t.lastPosition, "now", len(records))
		t.lastPosition = 0
		t.userPending = false
		t.saveState()
	}

	start := t.lastPosition
	emitted := 0
	for i, rec := range records[start:] {
		switch rec.Type {
		case RecordUser:
			t.currentUser = rec.Text
			t.userPending = true
		case RecordAssistant:
			if !t.userPending {
				// No user turn in flight; this assistant record
				// belongs to a turn we never saw. Drop it.
				continue
			}
			if err := t.emit(rec); err != nil {
				return emitted, err
			}
			t.userPending = false
			emitted++
			// Persist through this assistant record. The in-memory
			// cursor may run further ahead, but the durable one
			// never passes an unanswered user turn.
			t.lastPosition = start + i + 1
			t.saveState()
		}
	}
	t.lastPosition = len(records)

	if emitted > 0 {
		t.logMemoryCount(ctx)
	}
	return emitted, nil
}

func (t *Tailer) emit(assistant Record) error {
	t.seq++
	now := time.Now()
	exchange := Exchange{
		Num:       t.seq,
		Timestamp: now.Format(time.RFC3339),
		User:      t.currentUser,
		Assistant: assistant.Text,
		Source:    t.source,
		Session:   sessionName(t.path),
		Model:     assistant.Model,
		Type:      exchangeType,
	}
	// Nanosecond timestamps keep names collision-free even if two
	// emits land in the same second or the counter ever restarts.
	name := fmt.Sprintf("transcript_%06d_%s.json", t.seq, now.Format(time.RFC3339Nano))
	if err := t.out.WriteJSON(name, exchange); err != nil {
		return fmt.Errorf("write exchange: %w", err)
	}
	t.metrics.RecordExchange(t.source)
	t.log.Info("transcribed exchange", "num", t.seq, "file", name)
	return nil
}

func (t *Tailer) logMemoryCount(ctx context.Context) {
	if t.counter == nil {
		return
	}
	count, err := t.counter.Count(ctx)
	if err != nil {
		t.log.Warn("memory counter unavailable", "error", err)
		return
	}
	if count != t.lastCount {
		t.log.Info("memory count", "total", count)
		t.lastCount = count
	}
}

// sessionName derives the session identifier from the file path,
// which is the filename without its extension.
func sessionName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// FindClaudeSession returns the most recently modified session file
// under the Claude projects directory. Agent transcripts are skipped;
// only main session files carry user/assistant turns worth tailing.
func FindClaudeSession(projectsDir string) (string, error) {
	var newest string
	var newestMod time.Time
	err := filepath.WalkDir(projectsDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".jsonl") {
			return nil
		}
		if strings.HasPrefix(d.Name(), "agent-") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.ModTime().After(newestMod) {
			newest = path
			newestMod = info.ModTime()
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("walk projects dir: %w", err)
	}
	if newest == "" {
		return "", fmt.Errorf("no session files under %s", projectsDir)
	}
	return newest, nil
}

// FindGeminiSession returns the most recently modified chat file under
// the Gemini tmp directory (layout tmp/<hash>/chats/*.json).
func FindGeminiSession(tmpDir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(tmpDir, "*", "chats", "*.json"))
	if err != nil {
		return "", fmt.Errorf("glob gemini sessions: %w", err)
	}
	var newest string
	var newestMod time.Time
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if info.ModTime().After(newestMod) {
			newest = path
			newestMod = info.ModTime()
		}
	}
	if newest == "" {
		return "", fmt.Errorf("no session files under %s", tmpDir)
	}
	return newest, nil
}

// ListSessions enumerates every candidate session file for the given
// source, newest first. The supervisor uses this to decide which
// sessions deserve a tailer.
func ListSessions(source, dir string) ([]string, error) {
	var paths []string
	switch source {
	case "claude":
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if d.IsDir() || !strings.HasSuffix(d.Name(), ".jsonl") || strings.HasPrefix(d.Name(), "agent-") {
				return nil
			}
			paths = append(paths, path)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk projects dir: %w", err)
		}
	case "gemini":
		matches, err := filepath.Glob(filepath.Join(dir, "*", "chats", "*.json"))
		if err != nil {
			return nil, fmt.Errorf("glob gemini sessions: %w", err)
		}
		paths = matches
	default:
		return nil, fmt.Errorf("unknown session source %q", source)
	}

	type entry struct {
		path string
		mod  time.Time
	}
	entries := make([]entry, 0, len(paths))
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		entries = append(entries, entry{path, info.ModTime()})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].mod.After(entries[j].mod) })
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.path
	}
	return out, nil
}
