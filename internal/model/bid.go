// Package model defines the bid, comparison, and extraction run types shared
// across the extractor, comparison engine, renderers, and stores.
package model

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// PlanRecord is one plan's data as extracted from one bid file.
type PlanRecord struct {
	PlanNumber string   `json:"plan_number"`
	TotalPrice *float64 `json:"total_price"`
	SystemType string   `json:"system_type,omitempty"`
	Tonnage    *float64 `json:"tonnage,omitempty"`
	RoughPO    *float64 `json:"rough_po,omitempty"`
	TrimPO     *float64 `json:"trim_po,omitempty"`
	City       string   `json:"city,omitempty"`
	State      string   `json:"state,omitempty"`
	Zip        string   `json:"zip,omitempty"`
	MetroArea  string   `json:"metro_area,omitempty"`
}

// HasPrice reports whether a total price was extracted for the plan.
func (p PlanRecord) HasPrice() bool {
	return p.TotalPrice != nil
}

// UnmarshalJSON decodes a record leniently. Plan numbers and zip codes may
// arrive as numbers; numeric fields may arrive as strings such as
// "$9,425.00". Values that cannot be interpreted decode as absent.
func (p *PlanRecord) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return eris.Wrap(err, "model: decode plan record")
	}

	*p = PlanRecord{
		PlanNumber: looseString(raw["plan_number"]),
		TotalPrice: looseNumber(raw["total_price"]),
		SystemType: looseString(raw["system_type"]),
		Tonnage:    looseNumber(raw["tonnage"]),
		RoughPO:    looseNumber(raw["rough_po"]),
		TrimPO:     looseNumber(raw["trim_po"]),
		City:       looseString(raw["city"]),
		State:      looseString(raw["state"]),
		Zip:        looseString(raw["zip"]),
		MetroArea:  looseString(raw["metro_area"]),
	}
	return nil
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}

// ParseAmount parses a money-like string ("$9,425.00", "8339", "USD 1 200")
// and returns nil when nothing numeric remains.
func ParseAmount(s string) *float64 {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.ToUpper(s), "USD")
	s = strings.NewReplacer("$", "", ",", "", " ", "").Replace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func looseString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	default:
		return ""
	}
}

func looseNumber(v any) *float64 {
	switch t := v.(type) {
	case json.Number:
		f, err := t.Float64()
		if err != nil || math.IsInf(f, 0) {
			return nil
		}
		return &f
	case string:
		return ParseAmount(t)
	default:
		return nil
	}
}

// BidFile is one vendor's set of extracted plans.
type BidFile struct {
	Name  string       `json:"name"`
	Plans []PlanRecord `json:"plans"`
}

// ErrReservedFileName is returned for a file named like the no-winner
// sentinel.
var ErrReservedFileName = eris.New("model: file name is reserved")

// BidSet maps file names to their extracted plans, preserving insertion
// order. That order is the tie-break order for winners and rankings.
type BidSet struct {
	files []BidFile
}

// NewBidSet builds a BidSet from files in the given order.
func NewBidSet(files ...BidFile) BidSet {
	var s BidSet
	for _, f := range files {
		s.Add(f.Name, f.Plans)
	}
	return s
}

// Add appends a file. Adding a name that already exists replaces its plans
// and keeps its original position.
func (s *BidSet) Add(name string, plans []PlanRecord) {
	for i := range s.files {
		if s.files[i].Name == name {
			s.files[i].Plans = plans
			return
		}
	}
	s.files = append(s.files, BidFile{Name: name, Plans: plans})
}

// Files returns the files in insertion order.
func (s BidSet) Files() []BidFile {
	out := make([]BidFile, len(s.files))
	copy(out, s.files)
	return out
}

// File returns the named file.
func (s BidSet) File(name string) (BidFile, bool) {
	for _, f := range s.files {
		if f.Name == name {
			return f, true
		}
	}
	return BidFile{}, false
}

// FileNames returns file names in insertion order.
func (s BidSet) FileNames() []string {
	names := make([]string, len(s.files))
	for i, f := range s.files {
		names[i] = f.Name
	}
	return names
}

// Len returns the number of files.
func (s BidSet) Len() int {
	return len(s.files)
}

// PlanCount returns the total number of plan records across files.
func (s BidSet) PlanCount() int {
	n := 0
	for _, f := range s.files {
		n += len(f.Plans)
	}
	return n
}

// MarshalJSON encodes the set as an object keyed by file name, in order.
func (s BidSet) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range s.files {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Name)
		if err != nil {
			return nil, eris.Wrap(err, "model: encode file name")
		}
		buf.Write(key)
		buf.WriteByte(':')

		plans := f.Plans
		if plans == nil {
			plans = []PlanRecord{}
		}
		val, err := json.Marshal(plans)
		if err != nil {
			return nil, eris.Wrapf(err, "model: encode plans for %s", f.Name)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes an object keyed by file name, keeping key order.
func (s *BidSet) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return eris.Wrap(err, "model: decode bid set")
	}
	if tok == nil {
		*s = BidSet{}
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return eris.Errorf("model: bid set must be a JSON object, got %v", tok)
	}

	var out BidSet
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return eris.Wrap(err, "model: decode file name")
		}
		name, ok := keyTok.(string)
		if !ok {
			return eris.Errorf("model: unexpected key %v", keyTok)
		}
		if name == NoWinner {
			return eris.Wrapf(ErrReservedFileName, "model: file %q", name)
		}

		var plans []PlanRecord
		if err := dec.Decode(&plans); err != nil {
			return eris.Wrapf(err, "model: decode plans for %s", name)
		}
		out.Add(name, plans)
	}
	if _, err := dec.Token(); err != nil {
		return eris.Wrap(err, "model: decode bid set end")
	}

	*s = out
	return nil
}
