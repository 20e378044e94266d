package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/bid-cli/internal/compare"
	"github.com/sells-group/bid-cli/internal/model"
	"github.com/sells-group/bid-cli/internal/report"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Write the bid comparison report and table",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("report"); err != nil {
			return err
		}

		reportPath, _ := cmd.Flags().GetString("output")
		tablePath, _ := cmd.Flags().GetString("table")
		if reportPath == "" {
			reportPath = cfg.Report.ReportPath
		}
		if tablePath == "" {
			tablePath = cfg.Report.TablePath
		}

		bids, res, err := runComparison(cmd)
		if err != nil {
			return err
		}

		text, err := writeReport(reportPath, tablePath, bids, res)
		if err != nil {
			return err
		}
		fmt.Print(text)

		zap.L().Info("report written",
			zap.String("report", reportPath),
			zap.String("table", tablePath),
			zap.Int("plans", len(res.Comparison.Rows)),
		)
		return nil
	},
}

// writeReport saves the text report and the CSV table, returning the
// report text.
func writeReport(reportPath, tablePath string, bids model.BidSet, res compare.Result) (string, error) {
	text := report.RenderReport(bids, res)
	if err := os.WriteFile(reportPath, []byte(text), 0o644); err != nil {
		return "", eris.Wrapf(err, "report: write %s", reportPath)
	}

	f, err := os.Create(tablePath)
	if err != nil {
		return "", eris.Wrapf(err, "report: create %s", tablePath)
	}
	if err := report.Export(f, report.FormatCSV, res.Comparison); err != nil {
		_ = f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", eris.Wrapf(err, "report: close %s", tablePath)
	}
	return text, nil
}

func init() {
	addBidFlags(reportCmd)
	reportCmd.Flags().String("output", "", "report text file (default report.report_path)")
	reportCmd.Flags().String("table", "", "comparison table CSV file (default report.table_path)")
	rootCmd.AddCommand(reportCmd)
}
