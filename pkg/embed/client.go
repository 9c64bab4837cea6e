// Package embed provides embedding clients for the vector fleet and the
// query surface.
package embed

import "context"

// Client turns text into a vector with the named model.
type Client interface {
	Embed(ctx context.Context, model, text string) ([]float32, error)
}
