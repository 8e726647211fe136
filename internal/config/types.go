package config

// ProviderType identifies a generation/embedding provider.
type ProviderType string

const (
	ProviderOpenAI ProviderType = "openai"
	ProviderOllama ProviderType = "ollama"
)

// Config is the top-level clausewise configuration, corresponding to .clausewise.yml.
type Config struct {
	Provider          ProviderType `yaml:"provider" koanf:"provider"`
	Model             string       `yaml:"model" koanf:"model"`
	EmbeddingProvider ProviderType `yaml:"embedding_provider" koanf:"embedding_provider"`
	EmbeddingModel    string       `yaml:"embedding_model" koanf:"embedding_model"`

	DataDir string `yaml:"data_dir" koanf:"data_dir"`
	Port    int    `yaml:"port" koanf:"port"`

	// Workers is the size of the ingestion worker pool.
	Workers int `yaml:"workers" koanf:"workers"`
	// IndexRetries bounds retries of index backend upserts before a
	// document is flipped to error status.
	IndexRetries int `yaml:"index_retries" koanf:"index_retries"`

	MaxUploadBytes    int64    `yaml:"max_upload_bytes" koanf:"max_upload_bytes"`
	AllowedExtensions []string `yaml:"allowed_extensions" koanf:"allowed_extensions"`

	Inbox      InboxConfig      `yaml:"inbox" koanf:"inbox"`
	Retrieval  RetrievalConfig  `yaml:"retrieval" koanf:"retrieval"`
	Answer     AnswerConfig     `yaml:"answer" koanf:"answer"`
	Generation GenerationConfig `yaml:"generation" koanf:"generation"`
	Competency CompetencyConfig `yaml:"competency" koanf:"competency"`
	Storage    StorageConfig    `yaml:"storage" koanf:"storage"`
}

// InboxConfig controls the watch command's inbox directory.
type InboxConfig struct {
	Dir     string   `yaml:"dir" koanf:"dir"`
	Include []string `yaml:"include" koanf:"include"`
	Exclude []string `yaml:"exclude" koanf:"exclude"`
}

// RetrievalConfig holds hybrid search tuning parameters.
type RetrievalConfig struct {
	// K is the per-backend result depth requested before fusion.
	K int `yaml:"k" koanf:"k"`
	// RRFConstant is the smoothing constant in weight/(const+rank).
	RRFConstant   int     `yaml:"rrf_constant" koanf:"rrf_constant"`
	LexicalWeight float64 `yaml:"lexical_weight" koanf:"lexical_weight"`
	VectorWeight  float64 `yaml:"vector_weight" koanf:"vector_weight"`
	// RerankTopN enables reranking of the top N fused results when > 0
	// and COHERE_API_KEY is set.
	RerankTopN  int    `yaml:"rerank_top_n" koanf:"rerank_top_n"`
	RerankModel string `yaml:"rerank_model" koanf:"rerank_model"`
}

// AnswerConfig controls answer assembly.
type AnswerConfig struct {
	MaxContextChunks int `yaml:"max_context_chunks" koanf:"max_context_chunks"`
	MaxTokens        int `yaml:"max_tokens" koanf:"max_tokens"`
}

// GenerationConfig bounds calls to the generation provider. The limits are
// shared between ingestion-time extraction and query-time answering.
type GenerationConfig struct {
	MaxConcurrent     int `yaml:"max_concurrent" koanf:"max_concurrent"`
	RequestsPerMinute int `yaml:"requests_per_minute" koanf:"requests_per_minute"`
}

// CompetencyConfig holds competency test defaults.
type CompetencyConfig struct {
	// DefaultThreshold is used when a question has no per-question threshold.
	DefaultThreshold float64 `yaml:"default_threshold" koanf:"default_threshold"`
}

// StorageConfig selects the raw-document blob store backend.
type StorageConfig struct {
	Backend  string `yaml:"backend" koanf:"backend"` // "fs" or "s3"
	S3Bucket string `yaml:"s3_bucket" koanf:"s3_bucket"`
	S3Prefix string `yaml:"s3_prefix" koanf:"s3_prefix"`
	S3Region string `yaml:"s3_region" koanf:"s3_region"`
}
