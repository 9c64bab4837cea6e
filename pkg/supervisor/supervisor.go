// Package supervisor keeps one stenographer child alive per active
// agent session. Sessions are enumerated on an interval; a session
// whose transcript has gone quiet past the stale threshold gets its
// child terminated, and brand-new sessions get one spawned.
package supervisor

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/wolflogic/wolfmem/config"
	"github.com/wolflogic/wolfmem/pkg/logger"
	"github.com/wolflogic/wolfmem/pkg/metrics"
	"github.com/wolflogic/wolfmem/pkg/steno"
)

// Process is the handle the supervisor keeps on a spawned child.
type Process interface {
	// PID identifies the child for logging.
	PID() int

	// Signal delivers a signal to the child.
	Signal(sig os.Signal) error

	// Kill forcibly terminates the child.
	Kill() error

	// Done is closed once the child has exited and been reaped.
	Done() <-chan struct{}
}

// SpawnFunc starts a stenographer child tailing one session file.
type SpawnFunc func(session string) (Process, error)

// Supervisor maintains the 1:1 mapping of active sessions to
// stenographer children.
type Supervisor struct {
	cfg     config.SupervisorConfig
	spawn   SpawnFunc
	metrics *metrics.Manager
	log     logger.Logger

	mu       sync.Mutex
	children map[string]Process
}

// Options configures a Supervisor.
type Options struct {
	// Spawn overrides how children are started. Defaults to
	// re-executing the current binary's steno subcommand.
	Spawn SpawnFunc

	Metrics *metrics.Manager
	Logger  logger.Logger
}

// New builds a Supervisor from configuration.
func New(cfg config.SupervisorConfig, opts Options) *Supervisor {
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = 10 * time.Second
	}
	if cfg.StaleThreshold <= 0 {
		cfg.StaleThreshold = 5 * time.Minute
	}
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = 5 * time.Second
	}
	if cfg.Source == "" {
		cfg.Source = "claude"
	}
	cfg.SessionsDir = expandHome(cfg.SessionsDir)
	cfg.LogsDir = expandHome(cfg.LogsDir)

	log := opts.Logger
	if log == nil {
		log = logger.Global()
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.NoOpManager()
	}
	s := &Supervisor{
		cfg:      cfg,
		spawn:    opts.Spawn,
		metrics:  m,
		log:      log.With("service", "supervisor"),
		children: make(map[string]Process),
	}
	if s.spawn == nil {
		s.spawn = s.execSpawn
	}
	return s
}

// expandHome resolves a leading ~/ against the current user's home.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

// activeSessions enumerates session files modified within the stale
// threshold.
func (s *Supervisor) activeSessions() (map[string]bool, error) {
	paths, err := steno.ListSessions(s.cfg.Source, s.cfg.SessionsDir)
	if err != nil {
		return nil, err
	}
	active := make(map[string]bool, len(paths))
	cutoff := time.Now().Add(-s.cfg.StaleThreshold)
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			active[path] = true
		}
	}
	return active, nil
}

// RunOnce reconciles children against the current set of active
// sessions and returns the number of children now managed.
func (s *Supervisor) RunOnce(ctx context.Context) (int, error) {
	active, err := s.activeSessions()
	if err != nil {
		return s.ManagedCount(), err
	}

	s.mu.Lock()
	// Reap children that exited on their own so an active session
	// gets a fresh child below.
	for path, p := range s.children {
		select {
		case <-p.Done():
			s.log.Warn("child exited", "session", filepath.Base(path), "pid", p.PID())
			delete(s.children, path)
		default:
		}
	}

	var toStop []string
	for path := range s.children {
		if !active[path] {
			toStop = append(toStop, path)
		}
	}
	var toStart []string
	for path := range active {
		if _, ok := s.children[path]; !ok {
			toStart = append(toStart, path)
		}
	}
	s.mu.Unlock()

	for _, path := range toStop {
		s.stopChild(path)
	}
	for _, path := range toStart {
		if ctx.Err() != nil {
			break
		}
		s.startChild(path)
	}

	n := s.ManagedCount()
	s.metrics.SetSupervisorChildren(n)
	return n, nil
}

// Run reconciles continuously until the context is canceled, then
// terminates every remaining child.
func (s *Supervisor) Run(ctx context.Context) error {
	s.log.Info("session supervisor started",
		"sessions_dir", s.cfg.SessionsDir,
		"check_interval", s.cfg.CheckInterval,
		"stale_threshold", s.cfg.StaleThreshold)

	ticker := time.NewTicker(s.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		n, err := s.RunOnce(ctx)
		if err != nil && ctx.Err() == nil {
			s.log.Error("session scan failed", "error", err)
		} else if n > 0 {
			s.log.Info("managing children", "count", n)
		}
		select {
		case <-ctx.Done():
			s.Shutdown()
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Shutdown terminates all managed children.
func (s *Supervisor) Shutdown() {
	s.mu.Lock()
	paths := make([]string, 0, len(s.children))
	for path := range s.children {
		paths = append(paths, path)
	}
	s.mu.Unlock()

	for _, path := range paths {
		s.stopChild(path)
	}
	s.metrics.SetSupervisorChildren(0)
}

// ManagedCount reports how many children are currently managed.
func (s *Supervisor) ManagedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.children)
}

func (s *Supervisor) startChild(path string) {
	p, err := s.spawn(path)
	if err != nil {
		s.log.Error("failed to spawn child", "session", filepath.Base(path), "error", err)
		return
	}

	s.mu.Lock()
	if _, ok := s.children[path]; ok {
		// Lost a race with another reconcile pass.
		s.mu.Unlock()
		_ = p.Kill()
		return
	}
	s.children[path] = p
	s.mu.Unlock()

	s.log.Info("child spawned", "session", filepath.Base(path), "pid", p.PID())
}

// stopChild sends SIGTERM, waits out the grace period, then SIGKILLs.
func (s *Supervisor) stopChild(path string) {
	s.mu.Lock()
	p, ok := s.children[path]
	if ok {
		delete(s.children, path)
	}
	s.mu.Unlock()
	if !ok {
		return
	}

	s.log.Info("stopping child", "session", filepath.Base(path), "pid", p.PID())
	if err := p.Signal(syscall.SIGTERM); err != nil {
		_ = p.Kill()
		return
	}
	select {
	case <-p.Done():
		return
	case <-time.After(s.cfg.GracePeriod):
	}
	s.log.Warn("child ignored SIGTERM, killing", "session", filepath.Base(path), "pid", p.PID())
	_ = p.Kill()
	<-p.Done()
}
