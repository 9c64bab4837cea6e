// Package llm provides language model completion clients for enrichment.
package llm

import "context"

// Client is the uniform "prompt in, text out" contract used by the
// intake enrich stage.
type Client interface {
	// Complete sends a prompt to the named model and returns the raw
	// completion text.
	Complete(ctx context.Context, model, prompt string) (string, error)
}
