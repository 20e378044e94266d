// Package compare builds the plan-by-plan comparison table from extracted
// bids and aggregates it into a per-file scoreboard.
package compare

import (
	"sort"

	"github.com/sells-group/bid-cli/internal/model"
)

// Request is the input to a comparison.
type Request struct {
	Bids model.BidSet
	// Fair drops plans priced by fewer than two files.
	Fair bool
	// ZeroAsMissing treats a zero total price as no price.
	ZeroAsMissing bool
}

// Build produces one row per plan number, sorted ascending. Each row has a
// price entry for every file, in file order. The winner is the first file
// holding the strictly lowest price.
func Build(req Request) model.Comparison {
	files := req.Bids.FileNames()
	out := model.Comparison{
		Files:   files,
		Rows:    []model.ComparisonRow{},
		Skipped: []string{},
		Fair:    req.Fair,
	}

	bidFiles := req.Bids.Files()
	for _, plan := range planNumbers(bidFiles) {
		row := model.ComparisonRow{
			Plan:        plan,
			PriceByFile: make(map[string]*float64, len(bidFiles)),
			Winner:      model.NoWinner,
		}

		priced := 0
		for _, f := range bidFiles {
			price := lookupPrice(f.Plans, plan, req.ZeroAsMissing)
			row.PriceByFile[f.Name] = price
			if price == nil {
				continue
			}
			priced++
			if row.BestPrice == nil || *price < *row.BestPrice {
				v := *price
				row.BestPrice = &v
				row.Winner = f.Name
			}
		}

		if req.Fair && priced < 2 {
			out.Skipped = append(out.Skipped, plan)
			continue
		}
		out.Rows = append(out.Rows, row)
	}
	return out
}

// planNumbers returns the distinct non-empty plan numbers across files in
// byte order.
func planNumbers(files []model.BidFile) []string {
	seen := make(map[string]struct{})
	var plans []string
	for _, f := range files {
		for _, p := range f.Plans {
			if p.PlanNumber == "" {
				continue
			}
			if _, ok := seen[p.PlanNumber]; ok {
				continue
			}
			seen[p.PlanNumber] = struct{}{}
			plans = append(plans, p.PlanNumber)
		}
	}
	sort.Strings(plans)
	return plans
}

// lookupPrice returns the price of the first record matching plan. Later
// duplicates are ignored even when the first has no price.
func lookupPrice(records []model.PlanRecord, plan string, zeroAsMissing bool) *float64 {
	for _, r := range records {
		if r.PlanNumber != plan {
			continue
		}
		if r.TotalPrice == nil {
			return nil
		}
		if zeroAsMissing && *r.TotalPrice == 0 {
			return nil
		}
		v := *r.TotalPrice
		return &v
	}
	return nil
}
