package intake

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTracking_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracking.log")

	tr, err := LoadTracking(path)
	require.NoError(t, err)
	require.Zero(t, tr.Get("dump.jsonl"))

	require.NoError(t, tr.Set("dump.jsonl", 42))
	require.NoError(t, tr.Set("context_dump_2026-09-01T10:00:00Z.jsonl", 7))

	reloaded, err := LoadTracking(path)
	require.NoError(t, err)
	require.EqualValues(t, 42, reloaded.Get("dump.jsonl"))
	require.EqualValues(t, 7, reloaded.Get("context_dump_2026-09-01T10:00:00Z.jsonl"))
	require.Zero(t, reloaded.Get("never-seen.jsonl"))
}

func TestTracking_IgnoresGarbageLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tracking.log")
	writeFile(t, path, "good.jsonl:3\n\nnot a line\nbad.jsonl:NaN\n")

	tr, err := LoadTracking(path)
	require.NoError(t, err)
	require.EqualValues(t, 3, tr.Get("good.jsonl"))
	require.Zero(t, tr.Get("bad.jsonl"))
}
