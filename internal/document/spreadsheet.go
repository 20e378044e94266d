package document

import (
	"context"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// ReadSpreadsheet renders every sheet of a workbook as text. Each sheet
// starts with a "--- Sheet: name ---" line followed by its non-empty rows,
// cells joined by tabs.
func ReadSpreadsheet(path string) (string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return "", eris.Wrap(err, "xlsx: open file")
	}

	var b strings.Builder
	for i, sheet := range f.Sheets {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("--- Sheet: " + sheet.Name + " ---\n")
		for _, row := range sheet.Rows {
			if row == nil {
				continue
			}
			cells := rowToStrings(row)
			if isBlank(cells) {
				continue
			}
			b.WriteString(strings.Join(cells, "\t"))
			b.WriteByte('\n')
		}
	}
	return b.String(), nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = strings.TrimSpace(cell.String())
	}
	// Trailing empty cells carry no content.
	for len(cells) > 0 && cells[len(cells)-1] == "" {
		cells = cells[:len(cells)-1]
	}
	return cells
}

func isBlank(cells []string) bool {
	for _, c := range cells {
		if c != "" {
			return false
		}
	}
	return true
}

// ReadCSV renders a CSV file as tab-joined lines.
func ReadCSV(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path) //nolint:gosec
	if err != nil {
		return "", eris.Wrap(err, "csv: open file")
	}
	defer f.Close() //nolint:errcheck

	rowCh, errCh := StreamCSV(ctx, f, CSVOptions{TrimSpace: true, LazyQuotes: true})

	var b strings.Builder
	for row := range rowCh {
		if isBlank(row) {
			continue
		}
		b.WriteString(strings.Join(row, "\t"))
		b.WriteByte('\n')
	}
	if err := <-errCh; err != nil {
		return "", err
	}
	return b.String(), nil
}
