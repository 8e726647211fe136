package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/clausewise/clausewise/internal/ingest"
	"github.com/clausewise/clausewise/internal/progress"
	"github.com/clausewise/clausewise/internal/registry"
)

var (
	ingestInclude []string
	ingestExclude []string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [files or directories...]",
	Short: "Ingest contract documents from the command line",
	Long: `Parses, chunks, extracts metadata from, and indexes the given
documents. Directories are walked recursively with include/exclude
glob filtering.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringSliceVar(&ingestInclude, "include", nil, "glob patterns to include (default from config)")
	ingestCmd.Flags().StringSliceVar(&ingestExclude, "exclude", nil, "glob patterns to exclude (default from config)")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	include := ingestInclude
	if len(include) == 0 {
		include = cfg.Inbox.Include
	}
	exclude := ingestExclude
	if len(exclude) == 0 {
		exclude = cfg.Inbox.Exclude
	}

	paths, err := collectPaths(args, include, exclude)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		fmt.Println("No matching documents found.")
		return nil
	}

	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	reporter := progress.NewReporter("Ingesting")
	reporter.Start(len(paths))

	var processed, duplicates, failed int
	for i, path := range paths {
		reporter.Update(i, filepath.Base(path))

		result, err := ingestFile(ctx, a, path)
		switch {
		case err != nil:
			failed++
			if verbose {
				fmt.Fprintf(os.Stderr, "\n%s: %v\n", path, err)
			}
		case result.duplicate:
			duplicates++
		default:
			processed++
		}
	}
	reporter.Finish()

	if err := a.persistIndexes(); err != nil {
		return fmt.Errorf("persisting vector index: %w", err)
	}

	fmt.Printf("Ingested %d documents (%d duplicates, %d failed)\n", processed, duplicates, failed)
	if failed > 0 && !verbose {
		fmt.Println("Re-run with --verbose for per-file errors.")
	}
	return nil
}

type ingestResult struct {
	id        string
	duplicate bool
}

// ingestFile runs the full pipeline for one file: duplicate check, blob
// upload, registry record, then synchronous processing.
func ingestFile(ctx context.Context, a *app, path string) (*ingestResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%s is empty", path)
	}

	filename := filepath.Base(path)
	hash := ingest.HashContent(data)

	if canonical, ok := a.reg.FindByHash(hash); ok {
		dup := registry.DocumentRecord{
			ID:          uuid.NewString(),
			ContentHash: hash,
			Filename:    filename,
			Status:      registry.StatusProcessed,
			DuplicateOf: canonical.ID,
		}
		if err := a.reg.Create(dup); err != nil {
			return nil, err
		}
		return &ingestResult{id: dup.ID, duplicate: true}, nil
	}

	docID := uuid.NewString()
	uri, err := a.blobs.Put(ctx, ingest.BlobKey(docID, filename), bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("storing %s: %w", filename, err)
	}

	rec := registry.DocumentRecord{
		ID:          docID,
		ContentHash: hash,
		Filename:    filename,
		StorageURI:  uri,
		Status:      registry.StatusPending,
	}
	if err := a.reg.Create(rec); err != nil {
		return nil, err
	}

	if err := a.pipeline.Process(ctx, docID); err != nil {
		return nil, err
	}
	return &ingestResult{id: docID}, nil
}

// collectPaths expands the given files and directories into a flat list of
// document paths, applying include/exclude glob filtering.
func collectPaths(args, include, exclude []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("accessing %s: %w", arg, err)
		}

		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}

		root := arg
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			rel = filepath.ToSlash(rel)
			if matchesAny(exclude, rel) {
				return nil
			}
			if len(include) > 0 && !matchesAny(include, rel) {
				return nil
			}
			paths = append(paths, path)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", root, err)
		}
	}
	return paths, nil
}

func matchesAny(patterns []string, rel string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}
