package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/enstso/JuriRH-Assistant/internal/chunker"
	"github.com/enstso/JuriRH-Assistant/internal/embedder"
	"github.com/enstso/JuriRH-Assistant/internal/indexer"
	"github.com/enstso/JuriRH-Assistant/internal/lexical"
	"github.com/enstso/JuriRH-Assistant/internal/retriever"
)

// DefaultPath is read when no path is given and JURIRH_CONFIG is unset
const DefaultPath = "jurirh.toml"

// ErrInvalidConfig is returned by Validate
var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	Paths      PathsConfig      `toml:"paths"`
	Embeddings EmbeddingsConfig `toml:"embeddings"`
	Chunking   ChunkingConfig   `toml:"chunking"`
	Retrieval  RetrievalConfig  `toml:"retrieval"`
	Server     ServerConfig     `toml:"server"`
	Log        LogConfig        `toml:"log"`
}

type PathsConfig struct {
	CorpusDir string `toml:"corpus_dir"`
	IndexDir  string `toml:"index_dir"`
}

type EmbeddingsConfig struct {
	Provider  string `toml:"provider"`
	Model     string `toml:"model_name"`
	BaseURL   string `toml:"base_url"`
	APIKey    string `toml:"api_key"`
	Dimension int    `toml:"dimension"`
	BatchSize int    `toml:"batch_size"`
	CacheSize int    `toml:"cache_size"`
	Workers   int    `toml:"workers"`
}

type ChunkingConfig struct {
	ChunkSize int `toml:"chunk_size"`
	Overlap   int `toml:"overlap"`
}

type RetrievalConfig struct {
	TopKDense int     `toml:"top_k_dense"`
	TopKBM25  int     `toml:"top_k_bm25"`
	TopKFinal int     `toml:"top_k_final"`
	Alpha     float64 `toml:"alpha"`
	K1        float64 `toml:"k1"`
	B         float64 `toml:"b"`
}

type ServerConfig struct {
	Host       string `toml:"host"`
	Port       int    `toml:"port"`
	GinMode    string `toml:"gin_mode"`
	WatchIndex bool   `toml:"watch_index"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path falls back to JURIRH_CONFIG, then to
// DefaultPath; only an explicitly named file must exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = getEnv("JURIRH_CONFIG", DefaultPath)
		explicit = path != DefaultPath
	}

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("decode config file failed: %w", err)
		}
	} else if explicit || !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}

	overrideByEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Paths: PathsConfig{
			CorpusDir: "data/corpus",
			IndexDir:  "data/index",
		},
		Embeddings: EmbeddingsConfig{
			Provider:  embedder.ProviderLocal,
			BatchSize: embedder.DefaultBatchSize,
			CacheSize: embedder.DefaultCacheSize,
		},
		Chunking: ChunkingConfig{
			ChunkSize: chunker.DefaultChunkSize,
			Overlap:   chunker.DefaultOverlap,
		},
		Retrieval: RetrievalConfig{
			TopKDense: retriever.DefaultTopKDense,
			TopKBM25:  retriever.DefaultTopKBM25,
			TopKFinal: retriever.DefaultTopKFinal,
			Alpha:     retriever.DefaultAlpha,
			K1:        lexical.DefaultK1,
			B:         lexical.DefaultB,
		},
		Server: ServerConfig{
			Host:       "0.0.0.0",
			Port:       8000,
			GinMode:    "release",
			WatchIndex: true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate rejects settings the engine would otherwise have to clamp
func (c *Config) Validate() error {
	var errs []error

	if c.Paths.IndexDir == "" {
		errs = append(errs, errors.New("paths.index_dir is required"))
	}
	switch c.Embeddings.Provider {
	case embedder.ProviderLocal, embedder.ProviderOpenAI:
	default:
		errs = append(errs, fmt.Errorf("embeddings.provider %q is not supported", c.Embeddings.Provider))
	}
	if c.Embeddings.Dimension < 0 {
		errs = append(errs, fmt.Errorf("embeddings.dimension must be non-negative, got %d", c.Embeddings.Dimension))
	}
	if c.Embeddings.BatchSize <= 0 || c.Embeddings.BatchSize > embedder.MaxBatchSize {
		errs = append(errs, fmt.Errorf("embeddings.batch_size must be in [1, %d], got %d", embedder.MaxBatchSize, c.Embeddings.BatchSize))
	}
	if c.Chunking.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("chunking.chunk_size must be positive, got %d", c.Chunking.ChunkSize))
	}
	if c.Chunking.Overlap < 0 {
		errs = append(errs, fmt.Errorf("chunking.overlap must be non-negative, got %d", c.Chunking.Overlap))
	}
	r := c.Retrieval
	if r.TopKDense < 0 || r.TopKBM25 < 0 || r.TopKFinal < 0 {
		errs = append(errs, errors.New("retrieval.top_k_* must be non-negative"))
	}
	if math.IsNaN(r.Alpha) || r.Alpha < 0 || r.Alpha > 1 {
		errs = append(errs, fmt.Errorf("retrieval.alpha must be in [0, 1], got %v", r.Alpha))
	}
	if r.K1 <= 0 || math.IsNaN(r.B) || r.B < 0 || r.B > 1 {
		errs = append(errs, fmt.Errorf("retrieval.k1 must be positive and retrieval.b in [0, 1], got k1=%v b=%v", r.K1, r.B))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// EmbedderConfig returns the embedder factory configuration
func (c *Config) EmbedderConfig() embedder.Config {
	return embedder.Config{
		Provider:  c.Embeddings.Provider,
		Model:     c.Embeddings.Model,
		BaseURL:   c.Embeddings.BaseURL,
		APIKey:    c.Embeddings.APIKey,
		Dimension: c.Embeddings.Dimension,
		CacheSize: c.Embeddings.CacheSize,
	}
}

// IndexerConfig returns the build configuration for the configured corpus
func (c *Config) IndexerConfig() *indexer.Config {
	return &indexer.Config{
		ChunkSize: c.Chunking.ChunkSize,
		Overlap:   c.Chunking.Overlap,
		BatchSize: c.Embeddings.BatchSize,
		SourceDir: c.Paths.CorpusDir,
	}
}

// BM25Params returns the lexical scoring parameters
func (c *Config) BM25Params() lexical.Params {
	return lexical.Params{K1: c.Retrieval.K1, B: c.Retrieval.B, Epsilon: lexical.DefaultEpsilon}
}

// SearchRequest returns a request for query carrying the configured defaults
func (c *Config) SearchRequest(query string) retriever.SearchRequest {
	return retriever.SearchRequest{
		Query:     query,
		TopKDense: c.Retrieval.TopKDense,
		TopKBM25:  c.Retrieval.TopKBM25,
		TopKFinal: c.Retrieval.TopKFinal,
		Alpha:     c.Retrieval.Alpha,
	}
}

// ParseLevel maps a level name to a slog level
func ParseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(name))); err != nil {
		return 0, fmt.Errorf("log.level %q: %w", name, err)
	}
	return level, nil
}

func overrideByEnv(cfg *Config) {
	cfg.Paths.IndexDir = getEnv("JURIRH_INDEX_DIR", cfg.Paths.IndexDir)
	cfg.Paths.CorpusDir = getEnv("JURIRH_CORPUS_DIR", cfg.Paths.CorpusDir)

	cfg.Embeddings.Provider = getEnv("JURIRH_EMBEDDING_PROVIDER", cfg.Embeddings.Provider)
	cfg.Embeddings.Model = getEnv("JURIRH_EMBEDDING_MODEL", cfg.Embeddings.Model)
	cfg.Embeddings.BaseURL = getEnv("JURIRH_EMBEDDING_BASE_URL", cfg.Embeddings.BaseURL)
	cfg.Embeddings.APIKey = getEnv("OPENAI_API_KEY", cfg.Embeddings.APIKey)

	cfg.Server.Port = getEnvAsInt("JURIRH_HTTP_PORT", cfg.Server.Port)
	cfg.Log.Level = getEnv("JURIRH_LOG_LEVEL", cfg.Log.Level)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}
