package extract

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"

	"github.com/sells-group/bid-cli/internal/model"
)

// SaveJSON writes bids to path as an indented JSON object keyed by file
// name.
func SaveJSON(path string, bids model.BidSet) error {
	data, err := json.MarshalIndent(bids, "", "  ")
	if err != nil {
		return eris.Wrap(err, "extract: encode bids")
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return eris.Wrapf(err, "extract: write %s", path)
	}
	return nil
}

// LoadJSON reads a bids file written by SaveJSON or by hand.
func LoadJSON(path string) (model.BidSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.BidSet{}, eris.Wrapf(err, "extract: read %s", path)
	}
	var bids model.BidSet
	if err := json.Unmarshal(data, &bids); err != nil {
		return model.BidSet{}, eris.Wrapf(err, "extract: decode %s", path)
	}
	return bids, nil
}
