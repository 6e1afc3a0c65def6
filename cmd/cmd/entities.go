package cmd

import (
	"github.com/spf13/cobra"
)

var catchupBatchSize int

var entitiesCmd = &cobra.Command{
	Use:   "entities",
	Short: "Work with the entity knowledge base",
}

var entitiesCatchupCmd = &cobra.Command{
	Use:   "catchup",
	Short: "Resolve entities for stored articles the daily runs skipped",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		app, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer app.Close()

		result, err := app.orchestrator.ProcessPendingEntities(ctx, catchupBatchSize)
		if err != nil {
			return err
		}
		return printJSON(result)
	},
}

var entitiesPendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "Show how many stored articles still await entity resolution",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		app, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer app.Close()

		count, err := app.orchestrator.PendingEntityCount(ctx)
		if err != nil {
			return err
		}
		return printJSON(map[string]int{"pending": count})
	},
}

func init() {
	entitiesCatchupCmd.Flags().IntVar(&catchupBatchSize, "batch-size", 10, "articles to process in one catch-up pass")
	entitiesCmd.AddCommand(entitiesCatchupCmd)
	entitiesCmd.AddCommand(entitiesPendingCmd)
	rootCmd.AddCommand(entitiesCmd)
}
