package supervisor

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
)

// execProcess wraps an exec.Cmd child and reaps it in the background.
type execProcess struct {
	cmd  *exec.Cmd
	done chan struct{}
}

func (p *execProcess) PID() int                   { return p.cmd.Process.Pid }
func (p *execProcess) Signal(sig os.Signal) error { return p.cmd.Process.Signal(sig) }
func (p *execProcess) Kill() error                { return p.cmd.Process.Kill() }
func (p *execProcess) Done() <-chan struct{}      { return p.done }

// execSpawn re-executes the current binary as a stenographer bound to
// one session file, with its output appended to a per-session log.
func (s *Supervisor) execSpawn(session string) (Process, error) {
	self, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("resolve executable: %w", err)
	}

	var logSink *os.File
	if s.cfg.LogsDir != "" {
		if err := os.MkdirAll(s.cfg.LogsDir, 0o755); err != nil {
			return nil, fmt.Errorf("create logs dir: %w", err)
		}
		stem := strings.TrimSuffix(filepath.Base(session), filepath.Ext(session))
		logPath := filepath.Join(s.cfg.LogsDir, "steno-"+stem+".log")
		logSink, err = os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open child log: %w", err)
		}
	}

	cmd := exec.Command(self, "steno",
		"--session", session,
		"--source", s.cfg.Source)
	cmd.Stdout = logSink
	cmd.Stderr = logSink
	// Detach into its own session so supervisor signals stay targeted.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		if logSink != nil {
			logSink.Close()
		}
		return nil, fmt.Errorf("start steno child: %w", err)
	}

	p := &execProcess{cmd: cmd, done: make(chan struct{})}
	go func() {
		_ = cmd.Wait()
		if logSink != nil {
			logSink.Close()
		}
		close(p.done)
	}()
	return p, nil
}
