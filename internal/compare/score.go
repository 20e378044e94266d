package compare

import (
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/bid-cli/internal/model"
)

// ErrInconsistent is returned when a comparison row references a file that
// is not part of the scored file set.
var ErrInconsistent = eris.New("compare: row references unknown file")

// Score aggregates rows into one entry per file, in the order of files.
// Every file gets an entry even if it priced nothing.
func Score(rows []model.ComparisonRow, files []string) (model.Scoreboard, error) {
	board := make(model.Scoreboard, len(files))
	index := make(map[string]int, len(files))
	for i, f := range files {
		if f == model.NoWinner {
			return nil, eris.Wrapf(model.ErrReservedFileName, "compare: file %q", f)
		}
		board[i] = model.ScoreEntry{File: f, PlansWonList: []string{}}
		index[f] = i
	}

	for _, row := range rows {
		if row.HasWinner() {
			i, ok := index[row.Winner]
			if !ok {
				return nil, eris.Wrapf(ErrInconsistent, "plan %s winner %q", row.Plan, row.Winner)
			}
			board[i].PlansWon++
			board[i].PlansWonList = append(board[i].PlansWonList, row.Plan)
		}

		for file := range row.PriceByFile {
			if _, ok := index[file]; !ok {
				return nil, eris.Wrapf(ErrInconsistent, "plan %s price column %q", row.Plan, file)
			}
		}
		// Walk files in order so float sums are deterministic.
		for _, file := range files {
			price := row.PriceByFile[file]
			if price == nil {
				continue
			}
			i := index[file]
			board[i].TotalIfChosen += *price
			board[i].PlansAvailable++
		}
	}
	return board, nil
}

// Rank orders entries by plans won, descending. Ties keep file order.
func Rank(board model.Scoreboard) []model.ScoreEntry {
	ranked := make([]model.ScoreEntry, len(board))
	copy(ranked, board)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].PlansWon > ranked[j].PlansWon
	})
	return ranked
}

// WinRate returns the share of rows the entry won, in percent. It is 0 when
// there are no rows.
func WinRate(entry model.ScoreEntry, rowCount int) float64 {
	if rowCount <= 0 {
		return 0
	}
	return float64(entry.PlansWon) / float64(rowCount) * 100
}

// Saving compares a non-leading file's total to the leader's. Totals cover
// different plan sets when coverage differs, so coverage travels with them.
type Saving struct {
	File           string  `json:"file"`
	TheirTotal     float64 `json:"their_total"`
	WinnerTotal    float64 `json:"winner_total"`
	Amount         float64 `json:"amount"`
	TheirCoverage  int     `json:"their_coverage"`
	WinnerCoverage int     `json:"winner_coverage"`
}

// Savings lists, for each file after the leader with a positive total, how
// much more it would cost than the leader.
func Savings(ranked []model.ScoreEntry) []Saving {
	if len(ranked) < 2 {
		return []Saving{}
	}
	leader := ranked[0]
	out := make([]Saving, 0, len(ranked)-1)
	for _, e := range ranked[1:] {
		if e.TotalIfChosen <= 0 {
			continue
		}
		out = append(out, Saving{
			File:           e.File,
			TheirTotal:     e.TotalIfChosen,
			WinnerTotal:    leader.TotalIfChosen,
			Amount:         e.TotalIfChosen - leader.TotalIfChosen,
			TheirCoverage:  e.PlansAvailable,
			WinnerCoverage: leader.PlansAvailable,
		})
	}
	return out
}

// Result bundles a comparison with its scoreboard and ranking.
type Result struct {
	Comparison model.Comparison   `json:"comparison"`
	Scoreboard model.Scoreboard   `json:"scoreboard"`
	Ranked     []model.ScoreEntry `json:"ranked"`
	Savings    []Saving           `json:"savings"`
}

// Leader returns the top-ranked entry. ok is false when no file exists.
func (r Result) Leader() (model.ScoreEntry, bool) {
	if len(r.Ranked) == 0 {
		return model.ScoreEntry{}, false
	}
	return r.Ranked[0], true
}

// Run builds, scores, and ranks in one step.
func Run(req Request) (Result, error) {
	cmp := Build(req)
	board, err := Score(cmp.Rows, cmp.Files)
	if err != nil {
		return Result{}, eris.Wrap(err, "compare: score")
	}
	ranked := Rank(board)
	return Result{
		Comparison: cmp,
		Scoreboard: board,
		Ranked:     ranked,
		Savings:    Savings(ranked),
	}, nil
}
