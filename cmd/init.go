package cmd

import (
	"github.com/spf13/cobra"

	"github.com/clausewise/clausewise/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize clausewise configuration with an interactive wizard",
	Long:  `Runs an interactive wizard to configure clausewise and generates a .clausewise.yml file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := config.RunWizard()
		return err
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
