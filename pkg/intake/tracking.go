package intake

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Tracking persists tail positions for log-following sources as a flat
// text file of filename:offset lines. It is reloaded on restart so a
// follower never re-consumes records it already handed downstream.
type Tracking struct {
	path string

	mu        sync.Mutex
	positions map[string]int64
}

// LoadTracking reads the tracking file at path. A missing file yields
// an empty tracker.
func LoadTracking(path string) (*Tracking, error) {
	t := &Tracking{path: path, positions: make(map[string]int64)}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return t, nil
		}
		return nil, fmt.Errorf("read tracking file: %w", err)
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		// The filename may itself contain colons (RFC3339 stamps), so
		// the offset is everything after the last one.
		i := strings.LastIndex(line, ":")
		if i <= 0 {
			continue
		}
		offset, err := strconv.ParseInt(line[i+1:], 10, 64)
		if err != nil {
			continue
		}
		t.positions[line[:i]] = offset
	}
	return t, nil
}

// Get returns the recorded offset for name, zero when unseen.
func (t *Tracking) Get(name string) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.positions[name]
}

// Set records the offset for name and rewrites the tracking file.
func (t *Tracking) Set(name string, offset int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.positions[name] = offset
	return t.save()
}

func (t *Tracking) save() error {
	names := make([]string, 0, len(t.positions))
	for name := range t.positions {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		fmt.Fprintf(&b, "%s:%d\n", name, t.positions[name])
	}
	tmp := t.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write tracking file: %w", err)
	}
	if err := os.Rename(tmp, t.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("commit tracking file: %w", err)
	}
	return nil
}
