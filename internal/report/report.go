package report

import (
	"fmt"
	"strings"

	"github.com/sells-group/bid-cli/internal/compare"
	"github.com/sells-group/bid-cli/internal/model"
)

var (
	heavyRule = strings.Repeat("=", 80)
	lightRule = strings.Repeat("-", 40)
)

// lowestMarker tags the winning price on a plan line.
const lowestMarker = " ✓ LOWEST"

// RenderReport renders the full plain-text comparison report. bids supplies
// the per-file plan counts; everything else comes from res.
func RenderReport(bids model.BidSet, res compare.Result) string {
	var b strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format, args...)
		b.WriteByte('\n')
	}
	rows := res.Comparison.Rows
	files := res.Comparison.Files

	line("%s", heavyRule)
	line("BID COMPARISON REPORT")
	line("%s", heavyRule)
	line("")

	line(" FILES ANALYZED:")
	line("%s", lightRule)
	for i, f := range bids.Files() {
		line(" %d. %s (%d plans)", i+1, f.Name, len(f.Plans))
	}
	line("")

	line(" PLAN-BY-PLAN COMPARISON:")
	line("%s", lightRule)
	line("")
	for _, row := range rows {
		line("Plan %s:", row.Plan)
		for _, f := range files {
			price := row.Price(f)
			if price == nil {
				line(" • %s: N/A", f)
				continue
			}
			marker := ""
			if f == row.Winner {
				marker = lowestMarker
			}
			line(" • %s: %s%s", f, Currency(*price), marker)
		}
		line("")
	}
	if res.Comparison.Fair && len(res.Comparison.Skipped) > 0 {
		line(" SKIPPED (fewer than 2 files priced): %s", strings.Join(res.Comparison.Skipped, ", "))
		line("")
	}

	line("%s", heavyRule)
	line(" FILE SCORES SUMMARY:")
	line("%s", lightRule)
	for i, e := range res.Ranked {
		line("")
		line("#%d %s", i+1, e.File)
		line(" Plans Won: %d out of %d", e.PlansWon, len(rows))
		line(" Win Rate: %s", Percent(compare.WinRate(e, len(rows))))
		line(" Total (if chosen): %s", Currency(e.TotalIfChosen))
		line(" Plans Priced: %d", e.PlansAvailable)
		if len(e.PlansWonList) > 0 {
			line(" Won Plans: %s", strings.Join(e.PlansWonList, ", "))
		}
	}

	line("")
	line("%s", heavyRule)
	line(" OVERALL WINNER:")
	line("%s", heavyRule)

	leader, ok := res.Leader()
	switch {
	case !ok:
		line("")
		line(" No files analyzed.")
	case len(rows) == 0:
		line("")
		line(" No plans compared.")
	default:
		line("")
		line(" %s", leader.File)
		line("")
		line(" Reason:")
		line(" • Won %d out of %d plans", leader.PlansWon, len(rows))
		line(" • Win rate: %s", Percent(compare.WinRate(leader, len(rows))))
		if len(res.Savings) > 0 {
			line("")
			line(" Savings compared to other bids:")
			for _, s := range res.Savings {
				line(" • vs %s: %s savings (%d vs %d plans priced)",
					s.File, Currency(s.Amount), s.TheirCoverage, s.WinnerCoverage)
			}
		}
	}

	line("")
	line("%s", heavyRule)
	return b.String()
}
