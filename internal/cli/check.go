package cli

import (
	"github.com/spf13/cobra"
)

var checkStore string

var checkCmd = &cobra.Command{
	Use:   "check <url>",
	Short: "Extract a price from a URL without persisting anything",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Check(cmd.Context(), checkStore, args[0])
	},
}

func init() {
	checkCmd.Flags().StringVar(&checkStore, "store", "amazon", "Store whose extraction strategy to use")
}
