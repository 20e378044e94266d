package extract

import "fmt"

// systemPrompt holds the field list and extraction rules. It is identical
// for every chunk so it is sent as a cached system block.
const systemPrompt = `You are a construction bid data extractor.

Extract ALL plan pricing information AND location details from the document the user provides.

Return a JSON array with this EXACT format:
[
    {
        "plan_number": "4101",
        "total_price": 9425.00,
        "system_type": "Gas",
        "tonnage": 3.5,
        "rough_po": 5655.00,
        "trim_po": 3770.00,
        "city": "Fort Worth",
        "state": "TX",
        "zip": "76118",
        "metro_area": "DFW"
    }
]

LOCATION RULES:
- Extract city, state, and zip if address is present
- If city is Fort Worth, Irving, Dallas, Arlington, Plano, Frisco, Garland, Denton:
  set metro_area = "DFW"
- If address exists but metro area is unclear, set metro_area = null
- If no address exists, set city, state, zip, metro_area = null

GENERAL RULES:
1. Extract EVERY plan you find
2. Use numeric values for prices (no $ symbol)
3. If a field is missing, use null
4. Return ONLY the JSON array
5. Do NOT add extra commentary
6. Capture ALL plans even if there are 50+`

func userPrompt(name string, part, parts int, content string) string {
	header := "Document: " + name
	if parts > 1 {
		header += fmt.Sprintf(" (part %d of %d)", part, parts)
	}
	return header + "\n\nDocument Content:\n" + content + "\n\nJSON Output:"
}
