package steno

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wolflogic/wolfmem/pkg/logger"
)

func TestParseSessionFile_JSONLines(t *testing.T) {
	data := []byte(`{"type":"user","message":{"content":"fix the build"}}
{"type":"assistant","message":{"content":[{"type":"text","text":"On it."}]}}
{"type":"file-history-snapshot","snapshot":{}}
`)
	records := ParseSessionFile(data, logger.Global())
	require.Len(t, records, 3)
	require.Equal(t, RecordUser, records[0].Type)
	require.Equal(t, "fix the build", records[0].Text)
	require.Equal(t, RecordAssistant, records[1].Type)
	require.Equal(t, "On it.", records[1].Text)
	require.Equal(t, RecordUnknown, records[2].Type)
}

func TestParseSessionFile_AssistantBlockMarkers(t *testing.T) {
	data := []byte(`{"type":"assistant","message":{"content":[` +
		`{"type":"thinking","thinking":"need to check the config"},` +
		`{"type":"text","text":"Checking now."},` +
		`{"type":"tool_use","name":"read_file","input":{"path":"config.yaml"}}` +
		`]}}`)
	records := ParseSessionFile(data, logger.Global())
	require.Len(t, records, 1)

	want := "[THINKING]\nneed to check the config\n\n" +
		"Checking now.\n\n" +
		"[TOOL: read_file]\n{\n  \"path\": \"config.yaml\"\n}"
	require.Equal(t, want, records[0].Text)
}

func TestParseSessionFile_ToolUseWithoutName(t *testing.T) {
	data := []byte(`{"type":"assistant","message":{"content":[{"type":"tool_use","input":{}}]}}`)
	records := ParseSessionFile(data, logger.Global())
	require.Len(t, records, 1)
	require.Equal(t, "[TOOL: unknown]\n{}", records[0].Text)
}

func TestParseSessionFile_StringAssistantContent(t *testing.T) {
	data := []byte(`{"type":"assistant","message":{"content":"plain reply"}}`)
	records := ParseSessionFile(data, logger.Global())
	require.Len(t, records, 1)
	require.Equal(t, "plain reply", records[0].Text)
}

func TestParseSessionFile_MalformedLineSkipped(t *testing.T) {
	data := []byte(`{"type":"user","message":{"content":"first"}}
{not json at all
{"type":"user","message":{"content":"second"}}
`)
	records := ParseSessionFile(data, logger.Global())
	require.Len(t, records, 2)
	require.Equal(t, "first", records[0].Text)
	require.Equal(t, "second", records[1].Text)
}

func TestParseSessionFile_GeminiDocument(t *testing.T) {
	data := []byte(`{
  "sessionId": "abc",
  "messages": [
    {"type": "user", "content": "hello"},
    {"type": "gemini", "content": "hi there", "model": "gemini-2.0-flash"},
    {"type": "info", "content": "ignored"}
  ]
}`)
	records := ParseSessionFile(data, logger.Global())
	require.Len(t, records, 3)
	require.Equal(t, RecordUser, records[0].Type)
	require.Equal(t, "hello", records[0].Text)
	require.Equal(t, RecordAssistant, records[1].Type)
	require.Equal(t, "hi there", records[1].Text)
	require.Equal(t, "gemini-2.0-flash", records[1].Model)
	require.Equal(t, RecordUnknown, records[2].Type)
}

func TestParseSessionFile_Empty(t *testing.T) {
	require.Nil(t, ParseSessionFile(nil, logger.Global()))
	require.Nil(t, ParseSessionFile([]byte("  \n\n"), logger.Global()))
}

func TestRenderUserContent_ToolResultBlocks(t *testing.T) {
	raw := []byte(`[{"type":"tool_result","content":"exit status 0"},{"type":"text","text":"looks done"}]`)
	require.Equal(t, "exit status 0\n\nlooks done", renderUserContent(raw))
}

func TestRenderAssistantContent_MalformedBlockKeptRaw(t *testing.T) {
	raw := []byte(`[{"type":"text","text":"ok"},"stray string block"]`)
	got := renderAssistantContent(raw)
	require.Contains(t, got, "ok")
	require.Contains(t, got, `"stray string block"`)
}
