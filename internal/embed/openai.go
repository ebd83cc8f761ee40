package embed

import (
	"context"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/pkorolev/factscan/internal/model"
)

// OpenAIProvider implements the Provider interface using the OpenAI
// embeddings API (or any OpenAI-compatible endpoint via BaseURL).
type OpenAIProvider struct {
	client    *openai.Client
	modelID   string
	timeout   time.Duration
	batchSize int
}

// NewOpenAIProvider creates an OpenAI embedding provider.
func NewOpenAIProvider(cfg model.EmbeddingConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	modelID := cfg.Model
	if modelID == "" {
		modelID = string(openai.SmallEmbedding3)
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 64
	}

	return &OpenAIProvider{
		client:    openai.NewClientWithConfig(clientConfig),
		modelID:   modelID,
		timeout:   timeout,
		batchSize: batchSize,
	}, nil
}

// Name returns the provider name.
func (p *OpenAIProvider) Name() string { return "openai" }

// ModelID returns the embedding model identity.
func (p *OpenAIProvider) ModelID() string { return p.modelID }

// BatchSize returns the number of texts sent per API call.
func (p *OpenAIProvider) BatchSize() int { return p.batchSize }

// Embed computes embeddings for all texts, batching by BatchSize.
func (p *OpenAIProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += p.batchSize {
		end := start + p.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := p.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

// EmbedOne embeds a single query text.
func (p *OpenAIProvider) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	return embedOne(ctx, p, text)
}

func (p *OpenAIProvider) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := p.client.CreateEmbeddings(ctxWithTimeout, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(p.modelID),
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %v: %w", err, model.ErrEmbedding)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai embeddings: got %d vectors for %d texts: %w",
			len(resp.Data), len(texts), model.ErrEmbedding)
	}

	vectors := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(vectors) {
			return nil, fmt.Errorf("openai embeddings: out-of-range index %d: %w",
				item.Index, model.ErrEmbedding)
		}
		vectors[item.Index] = item.Embedding
	}
	for i, v := range vectors {
		if len(v) == 0 {
			return nil, fmt.Errorf("openai embeddings: empty vector at %d: %w", i, model.ErrEmbedding)
		}
	}
	return vectors, nil
}
