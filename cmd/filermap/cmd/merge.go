package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/toriidata/filermap/pkg/constants"
	"github.com/toriidata/filermap/pkg/errors"
)

var mergeRun string

// mergeCmd represents the merge command
var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Merge a run's staged delta chunks into the master dataset",
	Long: `Consume the run's completed delta chunks, reconcile their observations
against the committed entity state, fold their document rows into the
master shards, and commit the new generation atomically. The run lease
guarantees a single merger; re-merging a committed run is a no-op.`,
	Example: `  filermap merge --run daily-20260314`,
	RunE:    runMerge,
}

func init() {
	rootCmd.AddCommand(mergeCmd)
	mergeCmd.Flags().StringVar(&mergeRun, "run", "", "run id to merge (required)")
	_ = mergeCmd.MarkFlagRequired("run")
}

func runMerge(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), constants.MergeTimeout)
	defer cancel()

	engine, err := newEngine(ctx, true)
	if err != nil {
		return err
	}
	result, err := engine.Merge(ctx, mergeRun)
	if err != nil {
		if errors.IsConflict(err) {
			return errors.NewFatalError("merge", "lost the commit race too many times, re-run the merge", err)
		}
		return err
	}
	return printJSON(result)
}
