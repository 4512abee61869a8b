package cli

import (
	"github.com/spf13/cobra"
)

var rollupStage string

var rollupCmd = &cobra.Command{
	Use:   "rollup",
	Short: "Run one aggregation stage immediately",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().RollupOnce(cmd.Context(), rollupStage)
	},
}

func init() {
	rollupCmd.Flags().StringVar(&rollupStage, "stage", "hourly", "Rollup stage to run (hourly, daily, monthly)")
}
