package oracle

import "context"

// provider is the model backend behind the oracle service. Complete runs one
// prompt, optionally multimodal with a PNG screenshot. Embed turns texts into
// vectors; backends without an embedding API return an error and semantic
// dedup degrades gracefully upstream.
type provider interface {
	Name() string
	Complete(ctx context.Context, prompt string, screenshot []byte) (string, error)
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}
