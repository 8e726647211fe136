package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/clausewise/clausewise/internal/answer"
	"github.com/clausewise/clausewise/internal/blobstore"
	"github.com/clausewise/clausewise/internal/chunker"
	"github.com/clausewise/clausewise/internal/chunkstore"
	"github.com/clausewise/clausewise/internal/config"
	"github.com/clausewise/clausewise/internal/db"
	"github.com/clausewise/clausewise/internal/embeddings"
	"github.com/clausewise/clausewise/internal/extract"
	"github.com/clausewise/clausewise/internal/index"
	"github.com/clausewise/clausewise/internal/ingest"
	"github.com/clausewise/clausewise/internal/llm"
	"github.com/clausewise/clausewise/internal/parser"
	"github.com/clausewise/clausewise/internal/registry"
	"github.com/clausewise/clausewise/internal/retriever"
	"github.com/clausewise/clausewise/internal/router"
)

// loadConfig loads .env and the config file, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	_ = godotenv.Load()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `clausewise init` to create a config file", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// createEmbedderFromConfig creates an embeddings.Embedder based on config.
func createEmbedderFromConfig(cfg *config.Config) (embeddings.Embedder, error) {
	provider := cfg.EmbeddingProvider
	if provider == "" {
		provider = cfg.Provider
	}

	switch provider {
	case config.ProviderOpenAI:
		apiKey := os.Getenv(config.APIKeyEnvVar(config.ProviderOpenAI))
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable is required for OpenAI embeddings")
		}
		return embeddings.NewOpenAIEmbedder(apiKey, embeddings.OpenAIModel(cfg.EmbeddingModel)), nil
	case config.ProviderOllama:
		return embeddings.NewOllamaEmbedder(cfg.EmbeddingModel, 768, ""), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", provider)
	}
}

// createLLMProviderFromConfig creates the generation provider, wrapped with
// the shared rate and concurrency limits so that ingestion-time extraction
// and query-time answering draw from the same budget.
func createLLMProviderFromConfig(cfg *config.Config) (llm.Provider, error) {
	provider, err := llm.NewProvider(string(cfg.Provider), cfg.Model)
	if err != nil {
		return nil, err
	}
	if cfg.Generation.RequestsPerMinute > 0 {
		provider = llm.NewRateLimitedProvider(provider, cfg.Generation.RequestsPerMinute)
	}
	if cfg.Generation.MaxConcurrent > 0 {
		provider = llm.NewConcurrencyLimitedProvider(provider, cfg.Generation.MaxConcurrent)
	}
	return provider, nil
}

// createBlobStoreFromConfig creates the raw-document blob store.
func createBlobStoreFromConfig(ctx context.Context, cfg *config.Config) (blobstore.BlobStore, error) {
	switch cfg.Storage.Backend {
	case "s3":
		return blobstore.NewS3(ctx, cfg.Storage.S3Bucket, cfg.Storage.S3Prefix, cfg.Storage.S3Region)
	default:
		return blobstore.NewFS(filepath.Join(cfg.DataDir, "blobs"))
	}
}

// app holds the fully wired component graph shared by serve, ingest,
// ask, and watch.
type app struct {
	cfg       *config.Config
	db        *db.DB
	reg       *registry.Registry
	chunks    *chunkstore.Store
	blobs     blobstore.BlobStore
	provider  llm.Provider
	lexical   *index.Lexical
	vector    *index.Vector
	backends  []index.Backend
	retriever *retriever.Retriever
	assembler *answer.Assembler
	pipeline  *ingest.Pipeline
}

// openApp wires the full component graph from config. The lexical index is
// rebuilt from the chunk store; the vector index is loaded from disk.
func openApp(ctx context.Context, cfg *config.Config) (*app, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}

	database, err := db.Open(filepath.Join(cfg.DataDir, "clausewise.db"))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	reg, err := registry.Open(cfg.DataDir)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("opening registry: %w", err)
	}

	blobs, err := createBlobStoreFromConfig(ctx, cfg)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("creating blob store: %w", err)
	}

	embedder, err := createEmbedderFromConfig(cfg)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	provider, err := createLLMProviderFromConfig(cfg)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("creating LLM provider: %w", err)
	}

	lexical := index.NewLexical()
	vector, err := index.NewVector(embedder)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("creating vector index: %w", err)
	}
	vectorDir := filepath.Join(cfg.DataDir, "vectordb")
	if err := vector.Load(vectorDir); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not load vector index from %s: %v\n", vectorDir, err)
	}

	chunks := chunkstore.NewStore(database)
	backends := []index.Backend{lexical, vector}

	parsers := parser.NewRegistry(parser.NewPlainText())
	extractor := extract.NewLLMExtractor(provider, cfg.Model)
	pipeline := ingest.NewPipeline(reg, blobs, parsers, chunker.New(), extractor, chunks, backends, cfg.IndexRetries)

	// The lexical index lives in memory only; replay the chunk store.
	if err := pipeline.RebuildLexical(ctx, lexical); err != nil {
		database.Close()
		return nil, fmt.Errorf("rebuilding lexical index: %w", err)
	}

	weights := map[string]float64{
		lexical.Name(): cfg.Retrieval.LexicalWeight,
		vector.Name():  cfg.Retrieval.VectorWeight,
	}
	var opts []retriever.Option
	if cfg.Retrieval.RerankTopN > 0 {
		if key := os.Getenv("COHERE_API_KEY"); key != "" {
			opts = append(opts, retriever.WithReranker(
				retriever.NewCohereReranker(key, cfg.Retrieval.RerankModel),
				cfg.Retrieval.RerankTopN,
			))
		}
	}
	rt := retriever.New(chunks, backends, weights, cfg.Retrieval.RRFConstant, opts...)

	assembler := answer.New(provider, cfg.Model, reg, rt, router.New(reg),
		cfg.Answer.MaxContextChunks, cfg.Answer.MaxTokens, cfg.Retrieval.K)

	return &app{
		cfg:       cfg,
		db:        database,
		reg:       reg,
		chunks:    chunks,
		blobs:     blobs,
		provider:  provider,
		lexical:   lexical,
		vector:    vector,
		backends:  backends,
		retriever: rt,
		assembler: assembler,
		pipeline:  pipeline,
	}, nil
}

// persistIndexes writes the vector index to disk. The lexical index is
// rebuilt on startup and needs no persistence.
func (a *app) persistIndexes() error {
	return a.vector.Persist(filepath.Join(a.cfg.DataDir, "vectordb"))
}

func (a *app) Close() error {
	return a.db.Close()
}
