package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"pulse/internal/config"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "Work with configured feed sources",
}

var sourcesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured feed sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return printJSON(cfg.Sources)
	},
}

func init() {
	sourcesCmd.AddCommand(sourcesListCmd)
	rootCmd.AddCommand(sourcesCmd)
}
