package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/pkorolev/factscan/internal/cache"
	"github.com/pkorolev/factscan/internal/connector"
	"github.com/pkorolev/factscan/internal/embed"
	"github.com/pkorolev/factscan/internal/index"
	"github.com/pkorolev/factscan/internal/ledger"
	"github.com/pkorolev/factscan/internal/model"
)

// loadConfig builds the effective configuration: defaults, overlaid
// with the config file and FACTSCAN_* environment variables, with API
// keys taken from their conventional environment variables last.
func loadConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(cfg, func(dc *mapstructure.DecoderConfig) { dc.TagName = "yaml" }); err != nil {
		return nil, fmt.Errorf("parse configuration: %w", err)
	}

	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		cfg.Embedding.APIKey = key
	}
	if key := os.Getenv("GOOGLE_FACTCHECK_API_KEY"); key != "" {
		cfg.Google.APIKey = key
	}
	if base := os.Getenv("OLLAMA_BASE_URL"); base != "" && cfg.Embedding.Provider == "ollama" {
		cfg.Embedding.BaseURL = base
	}

	cfg.Output.Verbose = verbose
	return cfg, nil
}

// buildCache returns the layered response/embedding cache, or nil when
// caching is disabled.
func buildCache(cfg *model.Config) cache.Cache {
	if !cfg.Cache.Enabled {
		return nil
	}
	return cache.NewLayeredCache(cfg.Cache.MemoryTTL, cfg.Cache.Dir, cfg.Cache.DiskTTL)
}

// openIndex constructs the embedding provider and opens the vector
// index under the data directory.
func openIndex(cfg *model.Config, store cache.Cache) (embed.Provider, *index.Index, error) {
	provider, err := embed.NewProvider(cfg.Embedding, store)
	if err != nil {
		return nil, nil, fmt.Errorf("embedding provider: %w", err)
	}
	ix, err := index.Open(provider, index.Options{
		Dir:             filepath.Join(cfg.Data.Dir, "index"),
		InsertBatchSize: cfg.Index.InsertBatchSize,
		MemoryFallback:  cfg.Index.MemoryFallback,
		Verbose:         cfg.Output.Verbose,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("open index: %w", err)
	}
	return provider, ix, nil
}

// openLedger returns the raw record ledger under the data directory.
func openLedger(cfg *model.Config) *ledger.Ledger {
	return ledger.New(filepath.Join(cfg.Data.Dir, "raw.jsonl"))
}

// buildConnectors assembles one connector per configured feed, plus the
// Google Fact Check connector when an API key is present.
func buildConnectors(cfg *model.Config, store cache.Cache) []connector.Connector {
	var robots *connector.RobotsChecker
	if cfg.Feeds.RespectRobots {
		robots = connector.NewRobotsChecker(cfg.HTTP.UserAgent, cfg.HTTP.Timeout)
	}
	fetcher := connector.NewFetcher(cfg.HTTP, robots, store)

	connectors := make([]connector.Connector, 0, len(cfg.Feeds.URLs)+1)
	for _, feedURL := range cfg.Feeds.URLs {
		connectors = append(connectors, connector.NewFeedConnector(feedURL, cfg.Feeds.LimitPerFeed, fetcher))
	}
	if google := connector.NewGoogleFactCheck(cfg.Google, cfg.HTTP.Timeout); google.Enabled() {
		connectors = append(connectors, google)
	}
	return connectors
}
