package cmd

import (
	"github.com/spf13/cobra"
)

var digestCmd = &cobra.Command{
	Use:   "digest",
	Short: "Run the daily ingestion pipeline and write a digest",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		app, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer app.Close()

		result := app.orchestrator.Run(ctx)
		return printJSON(result)
	},
}

var weeklyCmd = &cobra.Command{
	Use:   "weekly",
	Short: "Roll the trailing week into a narrative and enrich top entities",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		app, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer app.Close()

		result := app.orchestrator.RunWeekly(ctx)
		return printJSON(result)
	},
}

func init() {
	rootCmd.AddCommand(digestCmd)
	rootCmd.AddCommand(weeklyCmd)
}
