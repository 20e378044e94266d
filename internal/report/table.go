package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/rotisserie/eris"

	"github.com/sells-group/bid-cli/internal/compare"
	"github.com/sells-group/bid-cli/internal/model"
)

const (
	maxColumnWidth = 24
	missingCell    = "-"
)

// RenderTable writes an aligned terminal table: plan, one price column per
// file, winner, and best price, followed by the ranked scoreboard.
func RenderTable(w io.Writer, res compare.Result) error {
	cmp := res.Comparison
	header := Columns(cmp)

	cells := make([][]string, 0, len(cmp.Rows))
	for _, row := range cmp.Rows {
		line := make([]string, 0, len(header))
		line = append(line, row.Plan)
		for _, f := range cmp.Files {
			line = append(line, priceCell(row.Price(f)))
		}
		line = append(line, row.Winner, priceCell(row.BestPrice))
		cells = append(cells, line)
	}

	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = min(runewidth.StringWidth(h), maxColumnWidth)
	}
	for _, line := range cells {
		for i, c := range line {
			widths[i] = max(widths[i], min(runewidth.StringWidth(c), maxColumnWidth))
		}
	}

	var b strings.Builder
	writeLine := func(line []string) {
		for i, c := range line {
			if i > 0 {
				b.WriteString("  ")
			}
			c = truncate(c, widths[i])
			// Price columns right-aligned.
			if (i > 0 && i <= len(cmp.Files)) || i == len(line)-1 {
				b.WriteString(padLeft(c, widths[i]))
			} else {
				b.WriteString(padRight(c, widths[i]))
			}
		}
		b.WriteByte('\n')
	}

	writeLine(header)
	sep := make([]string, len(header))
	for i := range sep {
		sep[i] = strings.Repeat("-", widths[i])
	}
	writeLine(sep)
	for _, line := range cells {
		writeLine(line)
	}

	if len(cmp.Rows) == 0 {
		b.WriteString("(no plans to compare)\n")
	}
	if cmp.Fair && len(cmp.Skipped) > 0 {
		fmt.Fprintf(&b, "\nSkipped (fewer than 2 files priced): %s\n", strings.Join(cmp.Skipped, ", "))
	}

	b.WriteString("\n")
	for i, e := range res.Ranked {
		fmt.Fprintf(&b, "#%d %s  won %d/%d (%s)  total %s over %d plans\n",
			i+1, e.File, e.PlansWon, len(cmp.Rows),
			Percent(compare.WinRate(e, len(cmp.Rows))),
			Currency(e.TotalIfChosen), e.PlansAvailable)
	}

	if _, err := io.WriteString(w, b.String()); err != nil {
		return eris.Wrap(err, "report: write table")
	}
	return nil
}

func priceCell(p *float64) string {
	if p == nil {
		return missingCell
	}
	return Currency(*p)
}

// RenderPlans writes the raw extracted plans per file, one line per record.
func RenderPlans(w io.Writer, bids model.BidSet) error {
	var b strings.Builder
	for _, f := range bids.Files() {
		fmt.Fprintf(&b, "%s (%d plans)\n", f.Name, len(f.Plans))
		for _, p := range f.Plans {
			price := missingCell
			if p.TotalPrice != nil {
				price = Currency(*p.TotalPrice)
			}
			fmt.Fprintf(&b, "  %-10s %14s", p.PlanNumber, price)
			if p.SystemType != "" {
				fmt.Fprintf(&b, "  %s", p.SystemType)
			}
			if p.Tonnage != nil {
				fmt.Fprintf(&b, "  %.1f ton", *p.Tonnage)
			}
			if loc := location(p); loc != "" {
				fmt.Fprintf(&b, "  [%s]", loc)
			}
			b.WriteByte('\n')
		}
		b.WriteByte('\n')
	}
	if _, err := io.WriteString(w, b.String()); err != nil {
		return eris.Wrap(err, "report: write plans")
	}
	return nil
}

func location(p model.PlanRecord) string {
	var parts []string
	for _, s := range []string{p.City, p.State, p.Zip, p.MetroArea} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", ")
}
