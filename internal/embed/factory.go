package embed

import (
	"fmt"
	"strings"

	"github.com/pkorolev/factscan/internal/model"
)

// NewProvider creates an embedding provider based on configuration,
// wrapping it with the embedding cache when one is supplied and
// caching is enabled.
func NewProvider(cfg model.EmbeddingConfig, cacheStore CacheStore) (Provider, error) {
	var (
		provider Provider
		err      error
	)

	switch strings.ToLower(cfg.Provider) {
	case "openai", "":
		provider, err = NewOpenAIProvider(cfg)
	case "ollama":
		provider, err = NewOllamaProvider(cfg)
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (supported: openai, ollama)", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	if cfg.Cache && cacheStore != nil {
		provider = NewCached(provider, cacheStore)
	}
	return provider, nil
}
