package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/toriidata/filermap/pkg/constants"
)

var (
	syncDate  string
	syncVenue bool
)

// syncCmd represents the sync command
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Stage one day of source data and merge it in one step",
	Long: `Run the daily pipeline end to end: fetch the disclosure documents for
one submission date, optionally the venue listing snapshot, stage them as
a delta chunk, and merge the run. Equivalent to worker followed by merge
for the same run.`,
	Example: `  filermap sync --date 2026-03-14 --venue`,
	RunE:    runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.Flags().StringVar(&syncDate, "date", "", "submission date to fetch, YYYY-MM-DD (default today)")
	syncCmd.Flags().BoolVar(&syncVenue, "venue", false, "include the full venue listing snapshot")
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), constants.MergeTimeout)
	defer cancel()

	date, runID, err := resolveRun(syncDate, "")
	if err != nil {
		return err
	}
	engine, err := newEngine(ctx, true)
	if err != nil {
		return err
	}
	if _, _, err := stageDay(ctx, engine, runID, date, syncVenue); err != nil {
		return err
	}
	result, err := engine.Merge(ctx, runID)
	if err != nil {
		return err
	}
	return printJSON(result)
}
