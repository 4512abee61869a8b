package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"pricewatcher/internal/app"
)

var logsLimit int

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Display recent diagnostics records",
	RunE: func(cmd *cobra.Command, args []string) error {
		if logsLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}

		return getApp().Logs(cmd.Context(), app.LogsOptions{Limit: logsLimit})
	},
}

func init() {
	logsCmd.Flags().IntVar(&logsLimit, "limit", 50, "Number of records to display")
}
