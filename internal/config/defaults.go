package config

// DefaultAllowedExtensions are the upload file types accepted by default.
var DefaultAllowedExtensions = []string{".pdf", ".docx", ".txt", ".md"}

// DefaultInboxInclude are glob patterns matched against files dropped into
// the watch inbox.
var DefaultInboxInclude = []string{"**/*.pdf", "**/*.docx", "**/*.txt", "**/*.md"}

// DefaultInboxExclude filters out partial downloads and editor temp files.
var DefaultInboxExclude = []string{"**/.*", "**/*.tmp", "**/*.part", "**/~$*"}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Provider:          ProviderOpenAI,
		Model:             "gpt-4o",
		EmbeddingProvider: ProviderOpenAI,
		EmbeddingModel:    "text-embedding-3-small",
		DataDir:           ".clausewise",
		Port:              8420,
		Workers:           3,
		IndexRetries:      3,
		MaxUploadBytes:    32 << 20, // 32 MiB
		AllowedExtensions: DefaultAllowedExtensions,
		Inbox: InboxConfig{
			Dir:     "inbox",
			Include: DefaultInboxInclude,
			Exclude: DefaultInboxExclude,
		},
		Retrieval: RetrievalConfig{
			K:             50,
			RRFConstant:   60,
			LexicalWeight: 1.0,
			VectorWeight:  1.0,
			RerankTopN:    10,
			RerankModel:   "rerank-english-v3.0",
		},
		Answer: AnswerConfig{
			MaxContextChunks: 12,
			MaxTokens:        2048,
		},
		Generation: GenerationConfig{
			MaxConcurrent:     4,
			RequestsPerMinute: 60,
		},
		Competency: CompetencyConfig{
			DefaultThreshold: 0.7,
		},
		Storage: StorageConfig{
			Backend: "fs",
		},
	}
}
