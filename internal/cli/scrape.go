package cli

import (
	"github.com/spf13/cobra"
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Run a single scrape cycle over every tracked URL",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().ScrapeOnce(cmd.Context())
	},
}
