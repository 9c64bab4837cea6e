// Package intake implements the capture → enrich → persist pipeline.
// Filesystem directories act as the queues between stages so every
// stage can crash and resume without losing records.
package intake

import "fmt"

// RawExchange is the wire shape of a raw transcript file dropped in the
// dump directory by a stenographer (or any other producer).
type RawExchange struct {
	Num       int    `json:"exchange_num"`
	Timestamp string `json:"timestamp"`
	User      string `json:"user"`
	Assistant string `json:"assistant"`
	Source    string `json:"source"`
	Session   string `json:"session"`
	Model     string `json:"model,omitempty"`
	Type      string `json:"type"`
}

// CombinedText is the full exchange text handed to the enrichment
// models and preserved in memory metadata.
func (r RawExchange) CombinedText() string {
	return fmt.Sprintf("USER: %s\n\nASSISTANT: %s", r.User, r.Assistant)
}

// Sentiment is the 1..5 sentiment verdict for an exchange.
type Sentiment struct {
	Score    int    `json:"score"`
	Analysis string `json:"analysis"`
	Model    string `json:"model,omitempty"`
}

// EnrichedRecord is the wire shape between the enrich and persist
// stages. Text carries the summary that becomes the memory content;
// Content keeps the raw exchange verbatim.
type EnrichedRecord struct {
	Text      string    `json:"text"`
	Content   string    `json:"content"`
	User      string    `json:"user"`
	Namespace string    `json:"namespace"`
	Username  string    `json:"username"`
	Session   string    `json:"session"`
	Timestamp string    `json:"timestamp"`
	Keywords  []string  `json:"keywords"`
	Sentiment Sentiment `json:"sentiment"`
	Source    string    `json:"source"`
}
