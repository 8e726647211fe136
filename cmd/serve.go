package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/clausewise/clausewise/internal/competency"
	"github.com/clausewise/clausewise/internal/ingest"
	"github.com/clausewise/clausewise/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the clausewise HTTP server",
	Long:  `Starts the clausewise server with the document, search, answer, and competency REST APIs.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if servePort > 0 {
			cfg.Port = servePort
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := openApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		scheduler := ingest.NewScheduler(a.pipeline, cfg.Workers, 64)
		scheduler.Start(ctx)
		defer scheduler.Stop()

		compStore := competency.NewStore(a.db)
		compRunner := competency.NewRunner(compStore, a.assembler, a.provider, cfg.Model, cfg.Competency.DefaultThreshold)

		srv := server.New(server.Config{
			Port:              cfg.Port,
			MaxUploadBytes:    cfg.MaxUploadBytes,
			AllowedExtensions: cfg.AllowedExtensions,
			DefaultK:          cfg.Retrieval.K,
			AllowAll:          true,
		}, server.Deps{
			Registry:         a.reg,
			Pipeline:         a.pipeline,
			Scheduler:        scheduler,
			Retriever:        a.retriever,
			Assembler:        a.assembler,
			CompetencyStore:  compStore,
			CompetencyRunner: compRunner,
		})

		go func() {
			<-ctx.Done()
			fmt.Fprintln(os.Stderr, "\nShutting down server...")
			srv.Shutdown(context.Background())
			if err := a.persistIndexes(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: persisting vector index: %v\n", err)
			}
		}()

		fmt.Fprintf(os.Stderr, "clausewise v%s starting on port %d\n", Version, cfg.Port)
		fmt.Fprintf(os.Stderr, "  Data dir: %s\n", cfg.DataDir)
		fmt.Fprintf(os.Stderr, "  Documents: %d\n", a.reg.Count())
		fmt.Fprintf(os.Stderr, "  Indexed chunks: %d\n", a.vector.Count())

		return srv.Start()
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides config)")
	rootCmd.AddCommand(serveCmd)
}
