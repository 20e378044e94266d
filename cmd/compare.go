package main

import (
	"io"
	"os"
	"slices"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/bid-cli/internal/compare"
	"github.com/sells-group/bid-cli/internal/report"
)

const formatTable = "table"

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Compare extracted bids plan by plan",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("compare"); err != nil {
			return err
		}

		format, _ := cmd.Flags().GetString("format")
		output, _ := cmd.Flags().GetString("output")
		if format != formatTable && !slices.Contains(report.ExportFormats, format) {
			return eris.Errorf("compare: unknown format %q", format)
		}
		if format == report.FormatXLSX && output == "" {
			return eris.New("compare: xlsx format requires --output")
		}

		_, res, err := runComparison(cmd)
		if err != nil {
			return err
		}

		if output == "" {
			return writeComparison(os.Stdout, format, res)
		}
		f, err := os.Create(output)
		if err != nil {
			return eris.Wrapf(err, "compare: create %s", output)
		}
		if err := writeComparison(f, format, res); err != nil {
			_ = f.Close()
			return err
		}
		return eris.Wrap(f.Close(), "compare: close output")
	},
}

// writeComparison renders the result as a terminal table or one of the
// export formats.
func writeComparison(w io.Writer, format string, res compare.Result) error {
	if format == formatTable {
		return report.RenderTable(w, res)
	}
	return report.Export(w, format, res.Comparison)
}

func init() {
	addBidFlags(compareCmd)
	compareCmd.Flags().String("format", formatTable, "output format: table, csv, json, yaml, xlsx")
	compareCmd.Flags().String("output", "", "write to this file instead of stdout")
	rootCmd.AddCommand(compareCmd)
}
