package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/bid-cli/internal/model"
)

// Export formats.
const (
	FormatCSV  = "csv"
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatXLSX = "xlsx"
)

// ExportFormats lists the formats accepted by Export.
var ExportFormats = []string{FormatCSV, FormatJSON, FormatYAML, FormatXLSX}

const (
	colPlan      = "Plan"
	colWinner    = "Winner"
	colBestPrice = "Best_Price"
)

// Columns returns the exported column names: Plan, one per file, Winner,
// Best_Price. A file whose name equals a fixed column, or an earlier
// column, gets a " (file)" suffix so every column name is distinct.
func Columns(cmp model.Comparison) []string {
	taken := map[string]bool{colPlan: true, colWinner: true, colBestPrice: true}

	cols := make([]string, 0, len(cmp.Files)+3)
	cols = append(cols, colPlan)
	for _, f := range cmp.Files {
		name := f
		for taken[name] {
			name += " (file)"
		}
		taken[name] = true
		cols = append(cols, name)
	}
	return append(cols, colWinner, colBestPrice)
}

// cell is one exported value. A nil num with isNum set is a missing price.
type cell struct {
	text  string
	num   *float64
	isNum bool
}

func tableCells(cmp model.Comparison) [][]cell {
	out := make([][]cell, 0, len(cmp.Rows))
	for _, row := range cmp.Rows {
		line := make([]cell, 0, len(cmp.Files)+3)
		line = append(line, cell{text: row.Plan})
		for _, f := range cmp.Files {
			line = append(line, cell{num: row.Price(f), isNum: true})
		}
		line = append(line, cell{text: row.Winner}, cell{num: row.BestPrice, isNum: true})
		out = append(out, line)
	}
	return out
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Export writes the comparison table in the given format.
func Export(w io.Writer, format string, cmp model.Comparison) error {
	switch format {
	case FormatCSV:
		return exportCSV(w, cmp)
	case FormatJSON:
		return exportJSON(w, cmp)
	case FormatYAML:
		return exportYAML(w, cmp)
	case FormatXLSX:
		return exportXLSX(w, cmp)
	default:
		return eris.Errorf("report: unsupported export format %q", format)
	}
}

func exportCSV(w io.Writer, cmp model.Comparison) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns(cmp)); err != nil {
		return eris.Wrap(err, "report: write csv header")
	}
	for _, line := range tableCells(cmp) {
		record := make([]string, len(line))
		for i, c := range line {
			switch {
			case !c.isNum:
				record[i] = c.text
			case c.num != nil:
				record[i] = formatNumber(*c.num)
			}
		}
		if err := cw.Write(record); err != nil {
			return eris.Wrap(err, "report: write csv row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "report: flush csv")
}

func exportJSON(w io.Writer, cmp model.Comparison) error {
	cols := Columns(cmp)
	var buf bytes.Buffer
	buf.WriteByte('[')
	for r, line := range tableCells(cmp) {
		if r > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString("\n  {")
		for i, c := range line {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(cols[i])
			if err != nil {
				return eris.Wrap(err, "report: encode json key")
			}
			buf.Write(key)
			buf.WriteByte(':')

			var val []byte
			switch {
			case !c.isNum:
				val, err = json.Marshal(c.text)
			case c.num != nil:
				val = []byte(formatNumber(*c.num))
			default:
				val = []byte("null")
			}
			if err != nil {
				return eris.Wrap(err, "report: encode json value")
			}
			buf.Write(val)
		}
		buf.WriteByte('}')
	}
	if len(cmp.Rows) > 0 {
		buf.WriteByte('\n')
	}
	buf.WriteString("]\n")

	if _, err := w.Write(buf.Bytes()); err != nil {
		return eris.Wrap(err, "report: write json")
	}
	return nil
}

func exportYAML(w io.Writer, cmp model.Comparison) error {
	cols := Columns(cmp)
	doc := &yaml.Node{Kind: yaml.SequenceNode}
	for _, line := range tableCells(cmp) {
		m := &yaml.Node{Kind: yaml.MappingNode}
		for i, c := range line {
			key := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: cols[i]}
			var val *yaml.Node
			switch {
			case !c.isNum:
				val = &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: c.text}
			case c.num != nil:
				val = &yaml.Node{Kind: yaml.ScalarNode, Value: formatNumber(*c.num)}
			default:
				val = &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
			}
			m.Content = append(m.Content, key, val)
		}
		doc.Content = append(doc.Content, m)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return eris.Wrap(err, "report: encode yaml")
	}
	return eris.Wrap(enc.Close(), "report: close yaml encoder")
}

func exportXLSX(w io.Writer, cmp model.Comparison) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Comparison")
	if err != nil {
		return eris.Wrap(err, "report: add xlsx sheet")
	}

	header := sheet.AddRow()
	for _, col := range Columns(cmp) {
		header.AddCell().SetString(col)
	}
	for _, line := range tableCells(cmp) {
		row := sheet.AddRow()
		for _, c := range line {
			xc := row.AddCell()
			switch {
			case !c.isNum:
				xc.SetString(c.text)
			case c.num != nil:
				xc.SetFloat(*c.num)
			}
		}
	}

	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "report: write xlsx")
	}
	return nil
}
