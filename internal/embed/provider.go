package embed

import "context"

// Provider defines the interface for embedding providers. A provider is
// bound to one model identity; vectors from the same model are
// comparable and share a fixed dimension.
type Provider interface {
	// Name returns the provider name ("openai", "ollama").
	Name() string

	// ModelID returns the model identity the provider embeds with.
	ModelID() string

	// BatchSize returns the provider's native batch size, the number
	// of texts sent per upstream call.
	BatchSize() int

	// Embed returns one vector per input text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedOne is the single-text special case used for queries.
	EmbedOne(ctx context.Context, text string) ([]float32, error)
}

// embedOne implements EmbedOne in terms of Embed; shared by providers.
func embedOne(ctx context.Context, p Provider, text string) ([]float32, error) {
	vecs, err := p.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}
