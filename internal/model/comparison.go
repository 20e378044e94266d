package model

// NoWinner marks a comparison row where no file priced the plan.
const NoWinner = "N/A"

// ComparisonRow holds one plan's prices across every file.
type ComparisonRow struct {
	Plan        string              `json:"plan"`
	PriceByFile map[string]*float64 `json:"price_by_file"`
	Winner      string              `json:"winner"`
	BestPrice   *float64            `json:"best_price"`
}

// HasWinner reports whether at least one file priced the plan.
func (r ComparisonRow) HasWinner() bool {
	return r.Winner != NoWinner
}

// Price returns the named file's price for the plan, or nil.
func (r ComparisonRow) Price(file string) *float64 {
	return r.PriceByFile[file]
}

// PricedCount returns the number of files with a price for the plan.
func (r ComparisonRow) PricedCount() int {
	n := 0
	for _, p := range r.PriceByFile {
		if p != nil {
			n++
		}
	}
	return n
}

// Comparison is the plan-indexed table built from a BidSet.
type Comparison struct {
	Files   []string        `json:"files"`
	Rows    []ComparisonRow `json:"rows"`
	Skipped []string        `json:"skipped_plans"`
	Fair    bool            `json:"fair_comparison"`
}

// ScoreEntry aggregates one file's results across the comparison table.
// TotalIfChosen sums the file's price over every plan it priced, not only
// the plans it won.
type ScoreEntry struct {
	File           string   `json:"file"`
	PlansWon       int      `json:"plans_won"`
	PlansWonList   []string `json:"plans_won_list"`
	TotalIfChosen  float64  `json:"total_if_chosen"`
	PlansAvailable int      `json:"plans_available"`
}

// Scoreboard holds one entry per file in file insertion order.
type Scoreboard []ScoreEntry

// Get returns the entry for the named file.
func (s Scoreboard) Get(file string) (ScoreEntry, bool) {
	for _, e := range s {
		if e.File == file {
			return e, true
		}
	}
	return ScoreEntry{}, false
}
