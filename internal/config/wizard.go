package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/manifoldco/promptui"
)

// RunWizard runs an interactive configuration wizard and returns the
// resulting Config. It also saves the config to .clausewise.yml.
func RunWizard() (*Config, error) {
	fmt.Println("Welcome to clausewise! Let's configure your contract workspace.")
	fmt.Println()

	cfg := DefaultConfig()

	// 1. Provider selection.
	providerPrompt := promptui.Select{
		Label: "Select generation provider",
		Items: []string{"openai", "ollama"},
	}
	_, providerStr, err := providerPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("provider selection: %w", err)
	}
	cfg.Provider = ProviderType(providerStr)
	cfg.EmbeddingProvider = cfg.Provider

	switch cfg.Provider {
	case ProviderOllama:
		cfg.Model = "llama3"
		cfg.EmbeddingModel = "nomic-embed-text"
	default:
		cfg.Model = "gpt-4o"
		cfg.EmbeddingModel = "text-embedding-3-small"
	}

	// 2. Data directory.
	dataPrompt := promptui.Prompt{
		Label:   "Data directory (registry, chunks, indexes)",
		Default: cfg.DataDir,
	}
	dataDir, err := dataPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("data dir: %w", err)
	}
	cfg.DataDir = dataDir

	// 3. Ingestion worker count.
	workersPrompt := promptui.Prompt{
		Label:   "Concurrent ingestion workers",
		Default: strconv.Itoa(cfg.Workers),
		Validate: func(s string) error {
			n, err := strconv.Atoi(s)
			if err != nil || n < 1 {
				return fmt.Errorf("enter a positive number")
			}
			return nil
		},
	}
	workersStr, err := workersPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("workers: %w", err)
	}
	cfg.Workers, _ = strconv.Atoi(workersStr)

	// 4. Blob storage backend.
	storagePrompt := promptui.Select{
		Label: "Raw document storage",
		Items: []string{"fs (local disk)", "s3"},
	}
	storageIdx, _, err := storagePrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("storage selection: %w", err)
	}
	if storageIdx == 1 {
		cfg.Storage.Backend = "s3"
		bucketPrompt := promptui.Prompt{Label: "S3 bucket"}
		bucket, err := bucketPrompt.Run()
		if err != nil {
			return nil, fmt.Errorf("s3 bucket: %w", err)
		}
		cfg.Storage.S3Bucket = bucket
		regionPrompt := promptui.Prompt{Label: "S3 region", Default: "us-east-1"}
		region, err := regionPrompt.Run()
		if err != nil {
			return nil, fmt.Errorf("s3 region: %w", err)
		}
		cfg.Storage.S3Region = region
	}

	// Check for API key.
	envVar := APIKeyEnvVar(cfg.Provider)
	if envVar != "" && os.Getenv(envVar) == "" {
		fmt.Printf("\nNote: Set %s in your environment before running clausewise serve.\n", envVar)
	}

	configPath := ".clausewise.yml"
	if err := cfg.Save(configPath); err != nil {
		return nil, fmt.Errorf("saving config: %w", err)
	}

	fmt.Printf("\nConfiguration saved to %s\n", configPath)
	return cfg, nil
}
