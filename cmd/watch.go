package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

// settleDelay is how long a file must be quiet before ingestion starts.
// Copies into the inbox arrive as a burst of write events.
const settleDelay = 2 * time.Second

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the inbox directory and ingest new documents",
	Long: `Watches the configured inbox directory and automatically ingests
documents dropped into it, applying the inbox include/exclude globs.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	inbox := cfg.Inbox.Dir
	if err := os.MkdirAll(inbox, 0755); err != nil {
		return fmt.Errorf("creating inbox %s: %w", inbox, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(inbox); err != nil {
		return fmt.Errorf("watching %s: %w", inbox, err)
	}

	fmt.Fprintf(os.Stderr, "Watching %s (Ctrl+C to stop)\n", inbox)

	var mu sync.Mutex
	timers := make(map[string]*time.Timer)

	ingestSettled := func(path string) {
		mu.Lock()
		delete(timers, path)
		mu.Unlock()

		result, err := ingestFile(ctx, a, path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", filepath.Base(path), err)
			return
		}
		if result.duplicate {
			fmt.Fprintf(os.Stderr, "%s: duplicate of existing document\n", filepath.Base(path))
			return
		}
		if err := a.persistIndexes(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: persisting vector index: %v\n", err)
		}
		fmt.Fprintf(os.Stderr, "%s: ingested as %s\n", filepath.Base(path), result.id)
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !inboxMatch(cfg.Inbox.Include, cfg.Inbox.Exclude, inbox, event.Name) {
				continue
			}

			// Reset the settle timer on every event for the path.
			path := event.Name
			mu.Lock()
			if t, ok := timers[path]; ok {
				t.Stop()
			}
			timers[path] = time.AfterFunc(settleDelay, func() { ingestSettled(path) })
			mu.Unlock()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "watch error: %v\n", err)
		}
	}
}

// inboxMatch applies the inbox include/exclude globs to a path relative to
// the inbox directory.
func inboxMatch(include, exclude []string, inbox, path string) bool {
	rel, err := filepath.Rel(inbox, path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, p := range exclude {
		if ok, _ := doublestar.Match(p, rel); ok {
			return false
		}
	}
	if len(include) == 0 {
		return true
	}
	for _, p := range include {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}
