// Package llm abstracts the remote embedding and chat-completion services
// behind small capability interfaces so fixtures can stand in for the
// vendor API in tests.
package llm

import "context"

// Embedder converts texts into fixed-dimension vectors. Implementations
// must return exactly one vector per input text, in input order.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Generator produces a completion for a rendered prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
