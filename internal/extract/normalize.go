package extract

import (
	"strings"

	"github.com/sells-group/bid-cli/internal/model"
)

const metroDFW = "DFW"

var dfwCities = map[string]bool{
	"fort worth": true,
	"irving":     true,
	"dallas":     true,
	"arlington":  true,
	"plano":      true,
	"frisco":     true,
	"garland":    true,
	"denton":     true,
}

// normalize trims identifiers and fills in the DFW metro area for known
// cities when the model left it empty.
func normalize(rec model.PlanRecord) model.PlanRecord {
	rec.PlanNumber = strings.TrimSpace(rec.PlanNumber)
	rec.City = strings.TrimSpace(rec.City)
	rec.State = strings.ToUpper(strings.TrimSpace(rec.State))
	rec.Zip = strings.TrimSpace(rec.Zip)
	rec.MetroArea = strings.TrimSpace(rec.MetroArea)

	if rec.MetroArea == "" && dfwCities[strings.ToLower(rec.City)] {
		rec.MetroArea = metroDFW
	}
	return rec
}

// dedupe keeps the first record for each plan number, in order. Records
// without a plan number are dropped.
func dedupe(recs []model.PlanRecord) []model.PlanRecord {
	seen := make(map[string]bool, len(recs))
	out := make([]model.PlanRecord, 0, len(recs))
	for _, r := range recs {
		if r.PlanNumber == "" || seen[r.PlanNumber] {
			continue
		}
		seen[r.PlanNumber] = true
		out = append(out, r)
	}
	return out
}

// chunkText splits text into pieces of at most maxChars runes.
func chunkText(text string, maxChars int) []string {
	if maxChars <= 0 {
		return []string{text}
	}
	runes := []rune(text)
	if len(runes) <= maxChars {
		return []string{text}
	}
	chunks := make([]string, 0, len(runes)/maxChars+1)
	for i := 0; i < len(runes); i += maxChars {
		end := min(i+maxChars, len(runes))
		chunks = append(chunks, string(runes[i:end]))
	}
	return chunks
}
