package cmd

import (
	"github.com/spf13/cobra"
)

// sweepCmd represents the sweep command
var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Reclaim abandoned delta chunks",
	Long: `Remove delta chunks whose newest write is older than the configured
maximum age. These belong to crashed workers or merges; their work is
re-proposed by a later run.`,
	RunE: runSweep,
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, args []string) error {
	engine, err := newEngine(cmd.Context(), false)
	if err != nil {
		return err
	}
	swept, err := engine.Sweep(cmd.Context())
	if err != nil {
		return err
	}
	return printJSON(map[string]int{"swept": swept})
}
