package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var askJSON bool

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question about the ingested contracts",
	Long:  `Answers a natural language question over the indexed contracts, with citations back to the source clauses.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output the answer as JSON")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	question := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.reg.Count() == 0 {
		fmt.Println("No documents ingested yet. Run `clausewise ingest` first.")
		return nil
	}

	ans, err := a.assembler.Answer(ctx, question)
	if err != nil {
		return fmt.Errorf("answering: %w", err)
	}

	if askJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(ans)
	}

	fmt.Println(ans.Answer)
	if ans.Degraded {
		fmt.Println("\n(generation unavailable; showing retrieved clauses only)")
	}
	if len(ans.Citations) > 0 {
		fmt.Println("\nSources:")
		for _, c := range ans.Citations {
			loc := fmt.Sprintf("p.%d", c.PageNum)
			if c.ClauseNumber != "" {
				loc = fmt.Sprintf("clause %s, %s", c.ClauseNumber, loc)
			}
			fmt.Printf("  [%d] %s (%s)\n", c.Ref, c.Filename, loc)
		}
	}
	return nil
}
