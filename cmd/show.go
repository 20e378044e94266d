package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/bid-cli/internal/report"
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the extracted plans per file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		bids, err := loadBids(cmd)
		if err != nil {
			return err
		}
		return report.RenderPlans(os.Stdout, bids)
	},
}

func init() {
	showCmd.Flags().String("input", "", "extracted bids JSON file (default extract.output_path)")
	showCmd.Flags().String("run", "", "stored extraction run ID, or \"latest\"")
	showCmd.MarkFlagsMutuallyExclusive("input", "run")
	rootCmd.AddCommand(showCmd)
}
