package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/enstso/JuriRH-Assistant/internal/embedder"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "jurirh.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 900, cfg.Chunking.ChunkSize)
	assert.Equal(t, 120, cfg.Chunking.Overlap)
	assert.Equal(t, 32, cfg.Embeddings.BatchSize)
	assert.Equal(t, 8, cfg.Retrieval.TopKDense)
	assert.Equal(t, 12, cfg.Retrieval.TopKBM25)
	assert.Equal(t, 8, cfg.Retrieval.TopKFinal)
	assert.Equal(t, 0.55, cfg.Retrieval.Alpha)
	assert.Equal(t, 1.5, cfg.Retrieval.K1)
	assert.Equal(t, 0.75, cfg.Retrieval.B)
	assert.Equal(t, embedder.ProviderLocal, cfg.Embeddings.Provider)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
[paths]
corpus_dir = "corpus"
index_dir = "out/index"

[embeddings]
provider = "openai"
model_name = "intfloat/multilingual-e5-small"
base_url = "http://localhost:8080/v1"
batch_size = 16

[chunking]
chunk_size = 600
overlap = 80

[retrieval]
alpha = 0.3
top_k_final = 5

[server]
port = 9000
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "corpus", cfg.Paths.CorpusDir)
	assert.Equal(t, "out/index", cfg.Paths.IndexDir)
	assert.Equal(t, embedder.ProviderOpenAI, cfg.Embeddings.Provider)
	assert.Equal(t, "http://localhost:8080/v1", cfg.Embeddings.BaseURL)
	assert.Equal(t, 16, cfg.Embeddings.BatchSize)
	assert.Equal(t, 600, cfg.Chunking.ChunkSize)
	assert.Equal(t, 80, cfg.Chunking.Overlap)
	assert.Equal(t, 0.3, cfg.Retrieval.Alpha)
	assert.Equal(t, 5, cfg.Retrieval.TopKFinal)
	assert.Equal(t, 12, cfg.Retrieval.TopKBM25, "unset keys keep their defaults")
	assert.Equal(t, "0.0.0.0:9000", cfg.HTTPAddr())
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "[paths]\nindex_dir = \"from-file\"\n")

	t.Setenv("JURIRH_INDEX_DIR", "from-env")
	t.Setenv("JURIRH_CORPUS_DIR", "corpus-env")
	t.Setenv("JURIRH_EMBEDDING_PROVIDER", "openai")
	t.Setenv("JURIRH_EMBEDDING_MODEL", "text-embedding-3-small")
	t.Setenv("JURIRH_EMBEDDING_BASE_URL", "http://tei:80/v1")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("JURIRH_HTTP_PORT", "8081")
	t.Setenv("JURIRH_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Paths.IndexDir)
	assert.Equal(t, "corpus-env", cfg.Paths.CorpusDir)
	assert.Equal(t, "openai", cfg.Embeddings.Provider)
	assert.Equal(t, "text-embedding-3-small", cfg.Embeddings.Model)
	assert.Equal(t, "http://tei:80/v1", cfg.Embeddings.BaseURL)
	assert.Equal(t, "sk-test", cfg.Embeddings.APIKey)
	assert.Equal(t, 8081, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_InvalidPortEnvIgnored(t *testing.T) {
	t.Setenv("JURIRH_HTTP_PORT", "not-a-port")
	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, 8000, cfg.Server.Port)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}

func TestLoad_MissingDefaultFileUsesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Retrieval, cfg.Retrieval)
	assert.Equal(t, Default().Chunking, cfg.Chunking)
}

func TestLoad_MalformedFile(t *testing.T) {
	_, err := Load(writeConfig(t, "[retrieval\nalpha = "))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"alpha above one", func(c *Config) { c.Retrieval.Alpha = 1.2 }},
		{"negative alpha", func(c *Config) { c.Retrieval.Alpha = -0.1 }},
		{"negative top_k", func(c *Config) { c.Retrieval.TopKBM25 = -1 }},
		{"zero chunk size", func(c *Config) { c.Chunking.ChunkSize = 0 }},
		{"negative overlap", func(c *Config) { c.Chunking.Overlap = -5 }},
		{"unknown provider", func(c *Config) { c.Embeddings.Provider = "cohere" }},
		{"batch too large", func(c *Config) { c.Embeddings.BatchSize = embedder.MaxBatchSize + 1 }},
		{"empty index dir", func(c *Config) { c.Paths.IndexDir = "" }},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }},
		{"bad log level", func(c *Config) { c.Log.Level = "verbose" }},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }},
		{"negative b", func(c *Config) { c.Retrieval.B = -0.1 }},
		{"b above one", func(c *Config) { c.Retrieval.B = 1.5 }},
		{"zero k1", func(c *Config) { c.Retrieval.K1 = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestDerivedConfigs(t *testing.T) {
	cfg := Default()
	cfg.Embeddings.Provider = embedder.ProviderOpenAI
	cfg.Embeddings.Model = "m"
	cfg.Embeddings.Dimension = 384

	ec := cfg.EmbedderConfig()
	assert.Equal(t, embedder.ProviderOpenAI, ec.Provider)
	assert.Equal(t, "m", ec.Model)
	assert.Equal(t, 384, ec.Dimension)

	ic := cfg.IndexerConfig()
	assert.Equal(t, 900, ic.ChunkSize)
	assert.Equal(t, 120, ic.Overlap)
	assert.Equal(t, "data/corpus", ic.SourceDir)

	req := cfg.SearchRequest("préavis")
	assert.Equal(t, "préavis", req.Query)
	assert.Equal(t, 0.55, req.Alpha)
	assert.Equal(t, 8, req.TopKFinal)

	p := cfg.BM25Params()
	assert.Equal(t, 1.5, p.K1)
	assert.Equal(t, 0.75, p.B)
}

func TestParseLevel(t *testing.T) {
	for _, name := range []string{"debug", "INFO", "warn", "error"} {
		_, err := ParseLevel(name)
		assert.NoError(t, err, name)
	}
	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestLoad_ZeroBIsKept(t *testing.T) {
	path := writeConfig(t, "[retrieval]\nb = 0.0\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Zero(t, cfg.BM25Params().B)
}
