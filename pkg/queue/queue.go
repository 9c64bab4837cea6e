// Package queue implements the flat-file work queues connecting the
// pipeline stages. Every handoff is an atomic rename so a crash leaves
// each record either fully in one directory or fully in another, never
// torn.
package queue

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Dir is one queue directory.
type Dir struct {
	path string
}

// New returns a Dir rooted at path, creating it if needed.
func New(path string) (*Dir, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("create queue dir %s: %w", path, err)
	}
	return &Dir{path: path}, nil
}

// Path returns the directory path.
func (d *Dir) Path() string {
	return d.path
}

// Join returns the full path of a file in this directory.
func (d *Dir) Join(name string) string {
	return filepath.Join(d.path, name)
}

// List returns the JSON record filenames in the directory, sorted by
// name. Hidden files, temp files, and error sidecars are skipped.
func (d *Dir) List() ([]string, error) {
	entries, err := os.ReadDir(d.path)
	if err != nil {
		return nil, fmt.Errorf("read queue dir %s: %w", d.path, err)
	}

	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") ||
			strings.HasSuffix(name, ".tmp") || strings.HasSuffix(name, ".error") {
			continue
		}
		if !strings.HasSuffix(name, ".json") {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// WriteJSON commits v as a JSON file under name. The bytes are written
// to a temp file in the same directory first, then renamed into place.
func (d *Dir) WriteJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}
	return d.WriteBytes(name, data)
}

// WriteBytes commits raw bytes under name via temp-file + rename.
func (d *Dir) WriteBytes(name string, data []byte) error {
	tmp := d.Join("." + uuid.NewString() + ".tmp")
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write temp for %s: %w", name, err)
	}
	if err := os.Rename(tmp, d.Join(name)); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("commit %s: %w", name, err)
	}
	return nil
}

// ReadJSON reads the named record into v.
func (d *Dir) ReadJSON(name string, v any) error {
	data, err := os.ReadFile(d.Join(name))
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	return nil
}

// Move transfers the named file from d into dst atomically. Queue
// directories live on one filesystem, so rename is sufficient.
func (d *Dir) Move(name string, dst *Dir) error {
	if err := os.Rename(d.Join(name), dst.Join(name)); err != nil {
		return fmt.Errorf("move %s to %s: %w", name, dst.path, err)
	}
	return nil
}

// MoveAs transfers the named file into dst under a new name.
func (d *Dir) MoveAs(name string, dst *Dir, newName string) error {
	if err := os.Rename(d.Join(name), dst.Join(newName)); err != nil {
		return fmt.Errorf("move %s to %s/%s: %w", name, dst.path, newName, err)
	}
	return nil
}

// Remove deletes the named file.
func (d *Dir) Remove(name string) error {
	return os.Remove(d.Join(name))
}

// WriteErrorSidecar records why a file was rejected, next to the file
// itself, as <name>.error.
func (d *Dir) WriteErrorSidecar(name string, cause error) error {
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	return os.WriteFile(d.Join(name)+".error", []byte(msg+"\n"), 0644)
}
