package report

import (
	"fmt"
	"strings"

	"github.com/sells-group/bid-cli/internal/compare"
)

var contextRule = strings.Repeat("-", 50)

// RenderContext renders the comparison as compact text for the question
// answering assistant. Output is deterministic for a given result.
func RenderContext(res compare.Result) string {
	var b strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format, args...)
		b.WriteByte('\n')
	}
	rows := res.Comparison.Rows
	files := res.Comparison.Files

	line("FILES ANALYZED:")
	for i, f := range files {
		line("  %d. %s", i+1, f)
	}
	line("")

	line("PLAN-BY-PLAN COMPARISON:")
	line("%s", contextRule)
	for _, row := range rows {
		line("")
		line("Plan %s:", row.Plan)
		for _, f := range files {
			price := row.Price(f)
			if price == nil {
				line("  - %s: N/A (no data)", f)
				continue
			}
			marker := ""
			if f == row.Winner {
				marker = lowestMarker
			}
			line("  - %s: %s%s", f, Currency(*price), marker)
		}
		if row.HasWinner() {
			line("  → Winner: %s", row.Winner)
		}
	}
	line("")

	if res.Comparison.Fair {
		line("FAIR COMPARISON: only plans priced by at least 2 files are included.")
		if len(res.Comparison.Skipped) > 0 {
			line("Skipped plans: %s", strings.Join(res.Comparison.Skipped, ", "))
		}
		line("")
	}

	line("FILE SCORES SUMMARY:")
	line("%s", contextRule)
	for i, e := range res.Ranked {
		line("")
		line("#%d %s", i+1, e.File)
		line("  - Plans Won: %d", e.PlansWon)
		line("  - Win Rate: %s", Percent(compare.WinRate(e, len(rows))))
		line("  - Total Cost: %s", Currency(e.TotalIfChosen))
		line("  - Plans Priced: %d of %d", e.PlansAvailable, len(rows))
		if len(e.PlansWonList) > 0 {
			line("  - Won Plans: %s", strings.Join(e.PlansWonList, ", "))
		}
	}

	line("")
	line("OVERALL WINNER:")
	if leader, ok := res.Leader(); ok {
		line("  %s with %d plans won", leader.File, leader.PlansWon)
	} else {
		line("  none (no files analyzed)")
	}
	return b.String()
}
