package cmd

import (
	"github.com/spf13/cobra"

	"github.com/toriidata/filermap/pkg/logging"
)

var backfillSteps int

// backfillCmd represents the backfill command
var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Ingest historical disclosure documents window by window",
	Long: `Walk the backfill cursor backwards through history, fetching one
fixed-size window of disclosure documents per step and merging each
window as its own run. The cursor persists after every committed window,
so an interrupted backfill resumes where it stopped.`,
	Example: `  filermap backfill --steps 10`,
	RunE:    runBackfill,
}

func init() {
	rootCmd.AddCommand(backfillCmd)
	backfillCmd.Flags().IntVar(&backfillSteps, "steps", 1, "number of windows to ingest")
}

func runBackfill(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	engine, err := newEngine(ctx, true)
	if err != nil {
		return err
	}

	for step := 0; step < backfillSteps; step++ {
		result, err := engine.Backfill(ctx)
		if err != nil {
			return err
		}
		if err := printJSON(result); err != nil {
			return err
		}
		if result.Done {
			logging.Info().Msg("Backfill complete")
			break
		}
	}
	return nil
}
