// Package steno transcribes live CLI sessions into raw exchange files.
//
// A session file comes in one of two shapes: newline-delimited JSON
// (one record per line, Claude-style) or a single JSON document with a
// messages array (Gemini-style). ParseSessionFile handles both by
// inspection, so callers never need to know which shape they are
// tailing.
package steno

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/wolflogic/wolfmem/pkg/logger"
)

// RecordType classifies a parsed session record.
type RecordType string

const (
	RecordUser       RecordType = "user"
	RecordAssistant  RecordType = "assistant"
	RecordToolResult RecordType = "tool_result"
	RecordUnknown    RecordType = "unknown"
)

// Record is one parsed session entry, normalized across the two file
// shapes. Text carries the user input or the fully rendered assistant
// response. Model is populated only for Gemini messages that name one.
type Record struct {
	Type  RecordType
	Text  string
	Model string
}

// Pair is a completed user/assistant exchange from a fully written
// session file.
type Pair struct {
	User      string
	Assistant string
	Model     string
}

// PairRecords walks records in order and pairs each assistant turn with
// the most recent user turn. Orphan assistants are dropped. The second
// return value counts records through the last paired assistant: a
// caller tracking its position must advance only that far, so a
// trailing unanswered user turn is re-read on the next pass and still
// pairs with the assistant that arrives later.
func PairRecords(records []Record) ([]Pair, int) {
	var pairs []Pair
	var user string
	pending := false
	consumed := 0
	for i, rec := range records {
		switch rec.Type {
		case RecordUser:
			user = rec.Text
			pending = true
		case RecordAssistant:
			if !pending {
				continue
			}
			pairs = append(pairs, Pair{User: user, Assistant: rec.Text, Model: rec.Model})
			pending = false
			consumed = i + 1
		}
	}
	return pairs, consumed
}

// claudeEntry mirrors one line of a newline-delimited session file.
// The content field is duck-typed: a plain string for user input, a
// block list for assistant responses and tool results.
type claudeEntry struct {
	Type    string `json:"type"`
	Message struct {
		Content json.RawMessage `json:"content"`
	} `json:"message"`
}

type contentBlock struct {
	Type     string          `json:"type"`
	Text     string          `json:"text"`
	Thinking string          `json:"thinking"`
	Name     string          `json:"name"`
	Input    json.RawMessage `json:"input"`
	Content  json.RawMessage `json:"content"`
}

type geminiSession struct {
	Messages []geminiMessage `json:"messages"`
}

type geminiMessage struct {
	Type    string `json:"type"`
	Content string `json:"content"`
	Model   string `json:"model"`
}

// ParseSessionFile parses a complete session file into records. It
// returns every record that could be parsed, in file order; malformed
// lines are skipped with a warning and contribute nothing to the
// result, so position counters advance only over intact records.
func ParseSessionFile(data []byte, log logger.Logger) []Record {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) == 0 {
		return nil
	}
	if trimmed[0] == '{' {
		var sess geminiSession
		if err := json.Unmarshal(trimmed, &sess); err == nil && sess.Messages != nil {
			return parseGeminiMessages(sess.Messages)
		}
	}
	return parseJSONLines(data, log)
}

func parseJSONLines(data []byte, log logger.Logger) []Record {
	var records []Record
	for i, line := range bytes.Split(data, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		var entry claudeEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			if log != nil {
				log.Warn("skipping malformed session line", "line", i+1, "error", err)
			}
			continue
		}
		records = append(records, normalizeClaudeEntry(entry))
	}
	return records
}

func normalizeClaudeEntry(entry claudeEntry) Record {
	switch entry.Type {
	case "user":
		return Record{Type: RecordUser, Text: renderUserContent(entry.Message.Content)}
	case "assistant":
		return Record{Type: RecordAssistant, Text: renderAssistantContent(entry.Message.Content)}
	case "tool_result":
		return Record{Type: RecordToolResult}
	default:
		// file-history-snapshot, summary, and whatever else the CLI
		// writes between turns.
		return Record{Type: RecordUnknown}
	}
}

func parseGeminiMessages(messages []geminiMessage) []Record {
	records := make([]Record, 0, len(messages))
	for _, msg := range messages {
		switch msg.Type {
		case "user":
			records = append(records, Record{Type: RecordUser, Text: msg.Content})
		case "gemini":
			records = append(records, Record{Type: RecordAssistant, Text: msg.Content, Model: msg.Model})
		default:
			records = append(records, Record{Type: RecordUnknown})
		}
	}
	return records
}

// renderUserContent flattens user content to a string. Plain string
// content passes through verbatim. Block-list content (tool results
// folded into the user turn) keeps its text and stringified payloads.
func renderUserContent(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var blocks []contentBlock
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return string(raw)
	}
	var parts []string
	for _, block := range blocks {
		switch block.Type {
		case "text":
			parts = append(parts, block.Text)
		case "tool_result":
			parts = append(parts, renderUserContent(block.Content))
		}
	}
	return strings.Join(parts, "\n\n")
}

// renderAssistantContent joins the assistant's content blocks into one
// verbatim string. Thinking and tool-use blocks keep their content,
// prefixed with markers so the block boundaries stay recoverable
// downstream.
func renderAssistantContent(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var blocks []json.RawMessage
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return string(raw)
	}
	var parts []string
	for _, rawBlock := range blocks {
		var block contentBlock
		if err := json.Unmarshal(rawBlock, &block); err != nil {
			// Keep malformed blocks raw rather than dropping content.
			parts = append(parts, string(rawBlock))
			continue
		}
		switch block.Type {
		case "text":
			parts = append(parts, block.Text)
		case "thinking":
			parts = append(parts, fmt.Sprintf("[THINKING]\n%s", block.Thinking))
		case "tool_use":
			name := block.Name
			if name == "" {
				name = "unknown"
			}
			parts = append(parts, fmt.Sprintf("[TOOL: %s]\n%s", name, prettyJSON(block.Input)))
		}
	}
	return strings.Join(parts, "\n\n")
}

func prettyJSON(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "{}"
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}
