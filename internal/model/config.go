package model

import "time"

// Config holds the complete factscan configuration. All components
// receive their settings through this struct at construction time;
// nothing reads environment variables or global state internally, so a
// given Config fully determines index identity (model, dimension,
// storage location).
type Config struct {
	Data        DataConfig        `yaml:"data"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	Index       IndexConfig       `yaml:"index"`
	Feeds       FeedsConfig       `yaml:"feeds"`
	Google      GoogleConfig      `yaml:"google"`
	HTTP        HTTPConfig        `yaml:"http"`
	Cache       CacheConfig       `yaml:"cache"`
	Query       QueryConfig       `yaml:"query"`
	Concurrency ConcurrencyConfig `yaml:"concurrency"`
	Output      OutputConfig      `yaml:"output"`
}

// DataConfig locates the on-disk state (ledger and index snapshot).
type DataConfig struct {
	Dir string `yaml:"dir"` // ledger lives at <dir>/raw.jsonl, index at <dir>/index
}

// EmbeddingConfig selects and configures the embedding provider.
type EmbeddingConfig struct {
	Provider  string        `yaml:"provider"`   // "openai" or "ollama"
	Model     string        `yaml:"model"`      // model identity; fixes the vector dimension
	APIKey    string        `yaml:"api_key"`    // OpenAI only
	BaseURL   string        `yaml:"base_url"`   // custom endpoint (Ollama, proxies)
	Timeout   time.Duration `yaml:"timeout"`
	BatchSize int           `yaml:"batch_size"` // texts per provider call
	Cache     bool          `yaml:"cache"`      // cache embeddings by model+text
}

// IndexConfig controls the vector index.
type IndexConfig struct {
	InsertBatchSize int  `yaml:"insert_batch_size"` // items per snapshot insert chunk
	MemoryFallback  bool `yaml:"memory_fallback"`   // permit ephemeral in-memory index when storage fails
}

// FeedsConfig configures the RSS/Atom connectors.
type FeedsConfig struct {
	URLs          []string `yaml:"urls"`
	LimitPerFeed  int      `yaml:"limit_per_feed"`
	RespectRobots bool     `yaml:"respect_robots"`
}

// GoogleConfig configures the Google Fact Check Tools connector.
// An empty APIKey disables it entirely (soft skip, never an error).
type GoogleConfig struct {
	APIKey   string `yaml:"api_key"`
	PageSize int    `yaml:"page_size"`
	Language string `yaml:"language"`
}

// HTTPConfig applies to all outbound connector requests.
type HTTPConfig struct {
	Timeout           time.Duration `yaml:"timeout"`
	UserAgent         string        `yaml:"user_agent"`
	MaxBodyBytes      int64         `yaml:"max_body_bytes"`
	RequestsPerSecond float64       `yaml:"requests_per_second"` // per-domain
	Burst             int           `yaml:"burst"`
	HTTPProxy         string        `yaml:"http_proxy"`
	HTTPSProxy        string        `yaml:"https_proxy"`
}

// CacheConfig controls the layered response/embedding cache.
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Dir       string        `yaml:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl"`
}

// QueryConfig holds query defaults, overridable per call.
type QueryConfig struct {
	TopK           int     `yaml:"top_k"`
	ScoreThreshold float64 `yaml:"score_threshold"`
}

// ConcurrencyConfig sizes the connector fetch pool.
type ConcurrencyConfig struct {
	FetchWorkers int `yaml:"fetch_workers"`
}

// OutputConfig controls CLI output.
type OutputConfig struct {
	Verbose bool `yaml:"verbose"`
	JSON    bool `yaml:"json"`
}

// DefaultFeeds are the fact-check feeds ingested when none are
// configured.
var DefaultFeeds = []string{
	"https://factly.in/feed/",
	"https://www.altnews.in/feed/",
	"https://www.boomlive.in/feed/",
	"https://www.politifact.com/rss/whats-hot/",
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Data: DataConfig{
			Dir: "./data",
		},
		Embedding: EmbeddingConfig{
			Provider:  "openai",
			Model:     "text-embedding-3-small",
			Timeout:   30 * time.Second,
			BatchSize: 64,
			Cache:     true,
		},
		Index: IndexConfig{
			InsertBatchSize: 256,
			MemoryFallback:  true,
		},
		Feeds: FeedsConfig{
			URLs:          DefaultFeeds,
			LimitPerFeed:  40,
			RespectRobots: true,
		},
		Google: GoogleConfig{
			PageSize: 20,
			Language: "en",
		},
		HTTP: HTTPConfig{
			Timeout:           30 * time.Second,
			UserAgent:         "factscan/0.1 (+https://github.com/pkorolev/factscan)",
			MaxBodyBytes:      2_000_000,
			RequestsPerSecond: 1,
			Burst:             3,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       "./data/cache",
			MemoryTTL: 15 * time.Minute,
			DiskTTL:   24 * time.Hour,
		},
		Query: QueryConfig{
			TopK:           5,
			ScoreThreshold: 0.7,
		},
		Concurrency: ConcurrencyConfig{
			FetchWorkers: 4,
		},
		Output: OutputConfig{},
	}
}
