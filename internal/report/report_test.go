package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/bid-cli/internal/compare"
	"github.com/sells-group/bid-cli/internal/model"
)

func sampleBids() model.BidSet {
	return model.NewBidSet(
		model.BidFile{Name: "north.pdf", Plans: []model.PlanRecord{
			{PlanNumber: "4101", TotalPrice: model.Float(9425)},
			{PlanNumber: "4102", TotalPrice: model.Float(7000.5)},
		}},
		model.BidFile{Name: "south.xlsx", Plans: []model.PlanRecord{
			{PlanNumber: "4101", TotalPrice: model.Float(8339)},
			{PlanNumber: "4103", TotalPrice: nil},
		}},
	)
}

func sampleResult(t *testing.T, fair bool) (model.BidSet, compare.Result) {
	t.Helper()
	bids := sampleBids()
	res, err := compare.Run(compare.Request{Bids: bids, Fair: fair})
	require.NoError(t, err)
	return bids, res
}

func TestCurrency(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "$9,425.00", Currency(9425))
	assert.Equal(t, "$1,234,567.89", Currency(1234567.89))
	assert.Equal(t, "$0.00", Currency(0))
	assert.Equal(t, "$12.50", Currency(12.5))
}

func TestPercent(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "50.0%", Percent(50))
	assert.Equal(t, "33.3%", Percent(100.0/3))
	assert.Equal(t, "0.0%", Percent(0))
}

func TestRenderReport(t *testing.T) {
	t.Parallel()

	bids, res := sampleResult(t, false)
	out := RenderReport(bids, res)

	assert.True(t, strings.HasPrefix(out, strings.Repeat("=", 80)+"\nBID COMPARISON REPORT\n"))
	assert.Contains(t, out, " 1. north.pdf (2 plans)")
	assert.Contains(t, out, " 2. south.xlsx (2 plans)")
	assert.Contains(t, out, "Plan 4101:\n • north.pdf: $9,425.00\n • south.xlsx: $8,339.00 ✓ LOWEST\n")
	assert.Contains(t, out, "Plan 4103:\n • north.pdf: N/A\n • south.xlsx: N/A\n")
	assert.Contains(t, out, "#1 north.pdf\n Plans Won: 1 out of 3\n Win Rate: 33.3%\n Total (if chosen): $16,425.50\n Plans Priced: 2\n Won Plans: 4102\n")
	assert.Contains(t, out, "#2 south.xlsx")
	assert.Contains(t, out, " OVERALL WINNER:")
	assert.Contains(t, out, " • Won 1 out of 3 plans")
	assert.Contains(t, out, " • vs south.xlsx: $-8,086.50 savings (1 vs 2 plans priced)")
	assert.NotContains(t, out, "SKIPPED")
}

func TestRenderReport_Fair(t *testing.T) {
	t.Parallel()

	bids, res := sampleResult(t, true)
	out := RenderReport(bids, res)

	assert.Contains(t, out, " SKIPPED (fewer than 2 files priced): 4102, 4103")
	assert.NotContains(t, out, "Plan 4102:")
	assert.Contains(t, out, "#1 south.xlsx\n Plans Won: 1 out of 1\n Win Rate: 100.0%")
}

func TestRenderReport_EmptyTable(t *testing.T) {
	t.Parallel()

	bids := model.NewBidSet(model.BidFile{Name: "a.pdf"}, model.BidFile{Name: "b.pdf"})
	res, err := compare.Run(compare.Request{Bids: bids})
	require.NoError(t, err)

	out := RenderReport(bids, res)
	assert.Contains(t, out, " Win Rate: 0.0%")
	assert.Contains(t, out, " No plans compared.")

	none, err := compare.Run(compare.Request{})
	require.NoError(t, err)
	assert.Contains(t, RenderReport(model.BidSet{}, none), " No files analyzed.")
}

func TestRenderReport_SavingsSection(t *testing.T) {
	t.Parallel()

	_, res := sampleResult(t, false)
	require.NotEmpty(t, res.Savings)
	assert.Contains(t, RenderReport(sampleBids(), res), " Savings compared to other bids:\n • vs ")

	// The other file priced nothing, so there is nothing to compare against.
	bids := model.NewBidSet(
		model.BidFile{Name: "a.pdf", Plans: []model.PlanRecord{{PlanNumber: "1", TotalPrice: model.Float(5)}}},
		model.BidFile{Name: "b.pdf", Plans: []model.PlanRecord{{PlanNumber: "1"}}},
	)
	lone, err := compare.Run(compare.Request{Bids: bids})
	require.NoError(t, err)
	require.Empty(t, lone.Savings)

	out := RenderReport(bids, lone)
	assert.Contains(t, out, " a.pdf\n\n Reason:")
	assert.NotContains(t, out, "Savings compared")
}

func TestRenderContext(t *testing.T) {
	t.Parallel()

	_, res := sampleResult(t, false)
	out := RenderContext(res)

	assert.True(t, strings.HasPrefix(out, "FILES ANALYZED:\n  1. north.pdf\n  2. south.xlsx\n"))
	assert.Contains(t, out, "Plan 4101:\n  - north.pdf: $9,425.00\n  - south.xlsx: $8,339.00 ✓ LOWEST\n  → Winner: south.xlsx\n")
	assert.Contains(t, out, "  - south.xlsx: N/A (no data)")
	assert.Contains(t, out, "  - Plans Priced: 1 of 3")
	assert.Contains(t, out, "OVERALL WINNER:\n  north.pdf with 1 plans won\n")
	assert.NotContains(t, out, "FAIR COMPARISON")

	// Deterministic for identical input.
	assert.Equal(t, out, RenderContext(res))
}

func TestRenderContext_Fair(t *testing.T) {
	t.Parallel()

	_, res := sampleResult(t, true)
	out := RenderContext(res)
	assert.Contains(t, out, "FAIR COMPARISON")
	assert.Contains(t, out, "Skipped plans: 4102, 4103")
}

func TestRenderTable(t *testing.T) {
	t.Parallel()

	_, res := sampleResult(t, false)
	var buf bytes.Buffer
	require.NoError(t, RenderTable(&buf, res))

	lines := strings.Split(buf.String(), "\n")
	require.GreaterOrEqual(t, len(lines), 5)
	assert.True(t, strings.HasPrefix(lines[0], "Plan"))
	assert.Contains(t, lines[0], "Best_Price")
	assert.True(t, strings.HasPrefix(lines[2], "4101"))
	assert.Contains(t, lines[2], "south.xlsx")
	assert.Contains(t, lines[2], "$8,339.00")
	assert.Contains(t, buf.String(), "#1 north.pdf  won 1/3 (33.3%)")
}

func TestRenderTable_TruncatesLongNames(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("x", 60) + ".pdf"
	bids := model.NewBidSet(model.BidFile{Name: long, Plans: []model.PlanRecord{
		{PlanNumber: "1", TotalPrice: model.Float(1)},
	}})
	res, err := compare.Run(compare.Request{Bids: bids})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, RenderTable(&buf, res))
	header := strings.Split(buf.String(), "\n")[0]
	assert.Contains(t, header, "…")
	assert.NotContains(t, header, long)
}

func TestRenderPlans(t *testing.T) {
	t.Parallel()

	bids := model.NewBidSet(model.BidFile{Name: "a.pdf", Plans: []model.PlanRecord{
		{PlanNumber: "4101", TotalPrice: model.Float(9425), SystemType: "Gas", Tonnage: model.Float(3),
			City: "Fort Worth", State: "TX", MetroArea: "DFW"},
		{PlanNumber: "4102"},
	}})

	var buf bytes.Buffer
	require.NoError(t, RenderPlans(&buf, bids))
	out := buf.String()
	assert.Contains(t, out, "a.pdf (2 plans)")
	assert.Contains(t, out, "$9,425.00  Gas  3.0 ton  [Fort Worth, TX, DFW]")
	assert.Contains(t, out, "4102")
}

func TestExportCSV(t *testing.T) {
	t.Parallel()

	_, res := sampleResult(t, false)
	var buf bytes.Buffer
	require.NoError(t, Export(&buf, FormatCSV, res.Comparison))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, []string{"Plan", "north.pdf", "south.xlsx", "Winner", "Best_Price"}, records[0])
	assert.Equal(t, []string{"4101", "9425", "8339", "south.xlsx", "8339"}, records[1])
	assert.Equal(t, []string{"4102", "7000.5", "", "north.pdf", "7000.5"}, records[2])
	assert.Equal(t, []string{"4103", "", "", "N/A", ""}, records[3])
}

func TestExportJSON(t *testing.T) {
	t.Parallel()

	_, res := sampleResult(t, false)
	var buf bytes.Buffer
	require.NoError(t, Export(&buf, FormatJSON, res.Comparison))

	var rows []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rows))
	require.Len(t, rows, 3)
	assert.Equal(t, "4101", rows[0]["Plan"])
	assert.InDelta(t, 8339.0, rows[0]["Best_Price"], 1e-9)
	assert.Nil(t, rows[1]["south.xlsx"])
	assert.Equal(t, "N/A", rows[2]["Winner"])

	// Keys keep column order.
	first := buf.String()
	assert.Less(t, strings.Index(first, `"north.pdf"`), strings.Index(first, `"south.xlsx"`))
	assert.Less(t, strings.Index(first, `"south.xlsx"`), strings.Index(first, `"Winner"`))
}

func TestColumns_FileNamedLikeFixedColumn(t *testing.T) {
	t.Parallel()

	bids := model.NewBidSet(
		model.BidFile{Name: "Winner", Plans: []model.PlanRecord{{PlanNumber: "1", TotalPrice: model.Float(5)}}},
		model.BidFile{Name: "Winner (file)", Plans: []model.PlanRecord{{PlanNumber: "1", TotalPrice: model.Float(7)}}},
		model.BidFile{Name: "Plan", Plans: []model.PlanRecord{{PlanNumber: "1", TotalPrice: model.Float(9)}}},
	)
	res, err := compare.Run(compare.Request{Bids: bids})
	require.NoError(t, err)

	cols := Columns(res.Comparison)
	assert.Equal(t, []string{"Plan", "Winner (file)", "Winner (file) (file)", "Plan (file)", "Winner", "Best_Price"}, cols)

	var buf bytes.Buffer
	require.NoError(t, Export(&buf, FormatJSON, res.Comparison))
	var rows []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rows))
	require.Len(t, rows, 1)
	assert.Len(t, rows[0], len(cols))
	assert.Equal(t, "1", rows[0]["Plan"])
	assert.Equal(t, "Winner", rows[0]["Winner"])
	assert.InDelta(t, 5.0, rows[0]["Winner (file)"], 1e-9)
	assert.InDelta(t, 9.0, rows[0]["Plan (file)"], 1e-9)

	buf.Reset()
	require.NoError(t, Export(&buf, FormatCSV, res.Comparison))
	header, err := csv.NewReader(&buf).Read()
	require.NoError(t, err)
	assert.Equal(t, cols, header)
}

func TestExportJSON_Empty(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, Export(&buf, FormatJSON, model.Comparison{}))
	assert.Equal(t, "[]\n", buf.String())
}

func TestExportYAML(t *testing.T) {
	t.Parallel()

	_, res := sampleResult(t, false)
	var buf bytes.Buffer
	require.NoError(t, Export(&buf, FormatYAML, res.Comparison))

	var rows []map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &rows))
	require.Len(t, rows, 3)
	assert.Equal(t, "4101", rows[0]["Plan"])
	assert.Nil(t, rows[2]["Best_Price"])
	assert.Equal(t, "N/A", rows[2]["Winner"])
	assert.Contains(t, buf.String(), `Plan: "4101"`)
}

func TestExportXLSX(t *testing.T) {
	t.Parallel()

	_, res := sampleResult(t, false)
	var buf bytes.Buffer
	require.NoError(t, Export(&buf, FormatXLSX, res.Comparison))

	f, err := xlsx.OpenBinary(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, f.Sheets, 1)
	sheet := f.Sheets[0]
	assert.Equal(t, "Comparison", sheet.Name)
	require.Len(t, sheet.Rows, 4)
	assert.Equal(t, "Plan", sheet.Rows[0].Cells[0].String())
	assert.Equal(t, "Best_Price", sheet.Rows[0].Cells[4].String())
	assert.Equal(t, "south.xlsx", sheet.Rows[1].Cells[3].String())

	price, err := sheet.Rows[1].Cells[2].Float()
	require.NoError(t, err)
	assert.InDelta(t, 8339.0, price, 1e-9)
}

func TestExport_UnknownFormat(t *testing.T) {
	t.Parallel()

	err := Export(&bytes.Buffer{}, "parquet", model.Comparison{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported export format")
}
