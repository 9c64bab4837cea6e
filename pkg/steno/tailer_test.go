package steno

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wolflogic/wolfmem/pkg/queue"
)

func testTailer(t *testing.T) (*Tailer, string, *queue.Dir) {
	t.Helper()
	dir := t.TempDir()
	session := filepath.Join(dir, "session-abc.jsonl")
	out, err := queue.New(filepath.Join(dir, "client-dumps"))
	require.NoError(t, err)
	tailer := NewTailer(TailerOptions{
		SessionPath: session,
		Source:      "claude",
		Out:         out,
	})
	return tailer, session, out
}

func writeSession(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

const pairOne = `{"type":"user","message":{"content":"what is 2+2"}}
{"type":"assistant","message":{"content":[{"type":"text","text":"4"}]}}
`

func TestTailer_EmitsExchangeOnce(t *testing.T) {
	tailer, session, out := testTailer(t)
	writeSession(t, session, pairOne)

	n, err := tailer.Poll(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)

	names, err := out.List()
	require.NoError(t, err)
	require.Len(t, names, 1)

	var ex Exchange
	require.NoError(t, out.ReadJSON(names[0], &ex))
	require.Equal(t, 1, ex.Num)
	require.Equal(t, "what is 2+2", ex.User)
	require.Equal(t, "4", ex.Assistant)
	require.Equal(t, "claude", ex.Source)
	require.Equal(t, "session-abc", ex.Session)
	require.Equal(t, "verbatim_transcript", ex.Type)

	// Second poll over the same content emits nothing.
	n, err = tailer.Poll(context.Background())
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestTailer_RestartDoesNotReEmit(t *testing.T) {
	dir := t.TempDir()
	session := filepath.Join(dir, "session-abc.jsonl")
	out, err := queue.New(filepath.Join(dir, "client-dumps"))
	require.NoError(t, err)
	writeSession(t, session, pairOne+pairOne)

	first := NewTailer(TailerOptions{SessionPath: session, Source: "claude", Out: out})
	n, err := first.Poll(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, n)

	// A fresh tailer over the same session resumes from the sidecar
	// instead of reparsing from record zero.
	second := NewTailer(TailerOptions{SessionPath: session, Source: "claude", Out: out})
	n, err = second.Poll(context.Background())
	require.NoError(t, err)
	require.Zero(t, n)

	names, err := out.List()
	require.NoError(t, err)
	require.Len(t, names, 2)
}

func TestTailer_RestartResumesMidExchange(t *testing.T) {
	dir := t.TempDir()
	session := filepath.Join(dir, "session-abc.jsonl")
	out, err := queue.New(filepath.Join(dir, "client-dumps"))
	require.NoError(t, err)
	writeSession(t, session, pairOne+`{"type":"user","message":{"content":"still waiting"}}`+"\n")

	first := NewTailer(TailerOptions{SessionPath: session, Source: "claude", Out: out})
	n, err := first.Poll(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)

	writeSession(t, session, pairOne+`{"type":"user","message":{"content":"still waiting"}}
{"type":"assistant","message":{"content":[{"type":"text","text":"here"}]}}
`)

	// The durable position stops at the last emitted assistant, so a
	// restarted tailer re-reads the pending user turn and completes
	// the pair.
	second := NewTailer(TailerOptions{SessionPath: session, Source: "claude", Out: out})
	n, err = second.Poll(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)

	names, err := out.List()
	require.NoError(t, err)
	require.Len(t, names, 2)

	var ex Exchange
	require.NoError(t, out.ReadJSON(names[1], &ex))
	require.Equal(t, 2, ex.Num)
	require.Equal(t, "still waiting", ex.User)
	require.Equal(t, "here", ex.Assistant)
}

func TestTailer_CorruptSidecarStartsFresh(t *testing.T) {
	dir := t.TempDir()
	session := filepath.Join(dir, "session-abc.jsonl")
	out, err := queue.New(filepath.Join(dir, "client-dumps"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(out.Join(".session-abc.pos"), []byte("not json"), 0o644))
	writeSession(t, session, pairOne)

	tailer := NewTailer(TailerOptions{SessionPath: session, Source: "claude", Out: out})
	n, err := tailer.Poll(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestTailer_AppendedPairEmitted(t *testing.T) {
	tailer, session, out := testTailer(t)
	writeSession(t, session, pairOne)

	_, err := tailer.Poll(context.Background())
	require.NoError(t, err)

	appended := pairOne + `{"type":"user","message":{"content":"and 3+3"}}
{"type":"assistant","message":{"content":[{"type":"text","text":"6"}]}}
`
	writeSession(t, session, appended)

	n, err := tailer.Poll(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)

	names, err := out.List()
	require.NoError(t, err)
	require.Len(t, names, 2)
}

func TestTailer_UserPendingAcrossPolls(t *testing.T) {
	tailer, session, out := testTailer(t)
	writeSession(t, session, `{"type":"user","message":{"content":"slow question"}}`+"\n")

	n, err := tailer.Poll(context.Background())
	require.NoError(t, err)
	require.Zero(t, n)

	writeSession(t, session, `{"type":"user","message":{"content":"slow question"}}
{"type":"assistant","message":{"content":[{"type":"text","text":"slow answer"}]}}
`)
	n, err = tailer.Poll(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)

	names, err := out.List()
	require.NoError(t, err)
	var ex Exchange
	require.NoError(t, out.ReadJSON(names[0], &ex))
	require.Equal(t, "slow question", ex.User)
	require.Equal(t, "slow answer", ex.Assistant)
}

func TestTailer_OrphanAssistantDiscarded(t *testing.T) {
	tailer, session, out := testTailer(t)
	writeSession(t, session, `{"type":"assistant","message":{"content":[{"type":"text","text":"to nobody"}]}}`+"\n")

	n, err := tailer.Poll(context.Background())
	require.NoError(t, err)
	require.Zero(t, n)

	names, err := out.List()
	require.NoError(t, err)
	require.Empty(t, names)
}

func TestTailer_RotationResetsPosition(t *testing.T) {
	tailer, session, out := testTailer(t)
	writeSession(t, session, pairOne+pairOne)

	n, err := tailer.Poll(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, n)

	// New, shorter session under the same path.
	writeSession(t, session, pairOne)
	n, err = tailer.Poll(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)

	names, err := out.List()
	require.NoError(t, err)
	require.Len(t, names, 3)
}

func TestTailer_MissingFileWaitedOut(t *testing.T) {
	tailer, _, _ := testTailer(t)
	n, err := tailer.Poll(context.Background())
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestTailer_GeminiSession(t *testing.T) {
	dir := t.TempDir()
	session := filepath.Join(dir, "chat-1.json")
	out, err := queue.New(filepath.Join(dir, "client-dumps"))
	require.NoError(t, err)
	tailer := NewTailer(TailerOptions{SessionPath: session, Source: "gemini", Out: out})

	writeSession(t, session, `{"messages":[
		{"type":"user","content":"ping"},
		{"type":"gemini","content":"pong","model":"gemini-2.0-flash"}
	]}`)

	n, err := tailer.Poll(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)

	names, err := out.List()
	require.NoError(t, err)
	var ex Exchange
	require.NoError(t, out.ReadJSON(names[0], &ex))
	require.Equal(t, "gemini", ex.Source)
	require.Equal(t, "gemini-2.0-flash", ex.Model)
	require.Equal(t, "pong", ex.Assistant)
}

func TestFindClaudeSession(t *testing.T) {
	root := t.TempDir()
	project := filepath.Join(root, "proj-a")
	require.NoError(t, os.MkdirAll(project, 0o755))

	older := filepath.Join(project, "older.jsonl")
	newer := filepath.Join(project, "newer.jsonl")
	agent := filepath.Join(project, "agent-xyz.jsonl")
	for _, p := range []string{older, newer, agent} {
		require.NoError(t, os.WriteFile(p, []byte("{}\n"), 0o644))
	}
	now := time.Now()
	require.NoError(t, os.Chtimes(older, now.Add(-2*time.Hour), now.Add(-2*time.Hour)))
	require.NoError(t, os.Chtimes(newer, now.Add(-time.Minute), now.Add(-time.Minute)))
	// The agent file is newest of all but must not win.
	require.NoError(t, os.Chtimes(agent, now, now))

	got, err := FindClaudeSession(root)
	require.NoError(t, err)
	require.Equal(t, newer, got)
}

func TestFindClaudeSession_NoSessions(t *testing.T) {
	_, err := FindClaudeSession(t.TempDir())
	require.Error(t, err)
}

func TestFindGeminiSession(t *testing.T) {
	root := t.TempDir()
	chats := filepath.Join(root, "hash123", "chats")
	require.NoError(t, os.MkdirAll(chats, 0o755))
	session := filepath.Join(chats, "chat-1.json")
	require.NoError(t, os.WriteFile(session, []byte("{}"), 0o644))

	got, err := FindGeminiSession(root)
	require.NoError(t, err)
	require.Equal(t, session, got)
}

func TestListSessions(t *testing.T) {
	root := t.TempDir()
	project := filepath.Join(root, "proj")
	require.NoError(t, os.MkdirAll(project, 0o755))
	a := filepath.Join(project, "a.jsonl")
	b := filepath.Join(project, "b.jsonl")
	require.NoError(t, os.WriteFile(a, []byte("{}\n"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("{}\n"), 0o644))
	now := time.Now()
	require.NoError(t, os.Chtimes(a, now.Add(-time.Hour), now.Add(-time.Hour)))
	require.NoError(t, os.Chtimes(b, now, now))

	got, err := ListSessions("claude", root)
	require.NoError(t, err)
	require.Equal(t, []string{b, a}, got)

	_, err = ListSessions("copilot", root)
	require.Error(t, err)
}
