package extract

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/bid-cli/internal/model"
)

//go:embed plan.schema.json
var planSchemaJSON string

var (
	planSchema    = mustCompileSchema(planSchemaJSON, "plan.schema.json")
	schemaPrinter = message.NewPrinter(language.English)
)

func mustCompileSchema(raw string, name string) *jsonschema.Schema {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("failed to parse embedded %s: %v", name, err))
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, doc); err != nil {
		panic(fmt.Sprintf("failed to add %s resource: %v", name, err))
	}

	sch, err := compiler.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("failed to compile %s: %v", name, err))
	}
	return sch
}

// parsed is the outcome of reading one model response.
type parsed struct {
	Plans    []model.PlanRecord
	Dropped  int
	Repaired bool
}

// parsePlans reads the JSON array of plan records out of a model response.
// Elements that fail the schema are dropped. A response without an array
// is an error.
func parsePlans(text string) (parsed, error) {
	body, repaired, ok := isolateArray(stripFences(text))
	if !ok {
		return parsed{}, eris.New("extract: response contains no JSON array")
	}

	var elems []json.RawMessage
	if err := json.Unmarshal([]byte(body), &elems); err != nil {
		return parsed{}, eris.Wrap(err, "extract: decode response array")
	}

	out := parsed{Plans: make([]model.PlanRecord, 0, len(elems)), Repaired: repaired}
	for i, raw := range elems {
		if msg := validatePlan(raw); msg != "" {
			zap.L().Debug("dropping invalid plan record",
				zap.Int("index", i),
				zap.String("reason", msg),
			)
			out.Dropped++
			continue
		}
		var rec model.PlanRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			out.Dropped++
			continue
		}
		out.Plans = append(out.Plans, rec)
	}
	return out, nil
}

func validatePlan(raw json.RawMessage) string {
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return err.Error()
	}
	err = planSchema.Validate(inst)
	if err == nil {
		return ""
	}
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return err.Error()
	}
	return leafError(ve)
}

func leafError(ve *jsonschema.ValidationError) string {
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	loc := "/" + strings.Join(ve.InstanceLocation, "/")
	return loc + ": " + ve.ErrorKind.LocalizedString(schemaPrinter)
}

// stripFences removes a surrounding markdown code fence.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if nl := strings.IndexByte(text, '\n'); nl >= 0 && !strings.ContainsAny(text[:nl], "[{") {
		text = text[nl+1:]
	}
	if idx := strings.LastIndex(text, "```"); idx >= 0 {
		text = text[:idx]
	}
	return strings.TrimSpace(text)
}

// isolateArray returns the outermost JSON array in text. When the array is
// cut off, it is closed after the last complete element and repaired is
// true.
func isolateArray(text string) (body string, repaired bool, ok bool) {
	start := strings.IndexByte(text, '[')
	if start < 0 {
		return "", false, false
	}

	depth := 0
	inString := false
	escaped := false
	lastElemEnd := -1

	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '[', '{':
			depth++
		case ']', '}':
			depth--
			if depth == 0 {
				return text[start : i+1], false, true
			}
			if depth == 1 {
				lastElemEnd = i
			}
		}
	}

	if lastElemEnd < 0 {
		return "[]", true, true
	}
	return text[start:lastElemEnd+1] + "]", true, true
}
