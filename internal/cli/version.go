package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"pricewatcher/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(os.Stdout, "pricewatcher %s (commit %s, built %s)\n", version.Version, version.Commit, version.BuildDate)
	},
}
