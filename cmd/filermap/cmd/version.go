package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("filermap %s (commit %s, built %s)\n", build.Version, build.Commit, build.Date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
