package main

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/bid-cli/internal/compare"
	"github.com/sells-group/bid-cli/internal/extract"
	"github.com/sells-group/bid-cli/internal/model"
	"github.com/sells-group/bid-cli/internal/store"
)

const latestRun = "latest"

// openStore opens and migrates the configured store.
func openStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	return st, nil
}

// addBidFlags registers the flags that select which extracted bids a
// command reads.
func addBidFlags(cmd *cobra.Command) {
	cmd.Flags().String("input", "", "extracted bids JSON file (default extract.output_path)")
	cmd.Flags().String("run", "", "stored extraction run ID, or \"latest\"")
	cmd.Flags().Bool("fair", false, "only compare plans priced by at least two files")
	cmd.Flags().Bool("zero-as-missing", false, "treat a total price of 0 as missing")
	cmd.MarkFlagsMutuallyExclusive("input", "run")
}

// loadBids reads the bid set selected by the --input or --run flags.
func loadBids(cmd *cobra.Command) (model.BidSet, error) {
	input, _ := cmd.Flags().GetString("input")
	runID, _ := cmd.Flags().GetString("run")

	if runID != "" {
		return loadRunBids(cmd.Context(), runID)
	}
	if input == "" {
		input = cfg.Extract.OutputPath
	}
	bids, err := extract.LoadJSON(input)
	if err != nil {
		return model.BidSet{}, eris.Wrapf(err, "load bids from %s", input)
	}
	zap.L().Debug("loaded bids", zap.String("path", input), zap.Int("files", bids.Len()))
	return bids, nil
}

func loadRunBids(ctx context.Context, runID string) (model.BidSet, error) {
	st, err := openStore(ctx)
	if err != nil {
		return model.BidSet{}, err
	}
	defer st.Close() //nolint:errcheck

	var run *model.ExtractionRun
	if runID == latestRun {
		run, err = st.LatestRun(ctx)
	} else {
		run, err = st.GetRun(ctx, runID)
	}
	if err != nil {
		return model.BidSet{}, eris.Wrapf(err, "load run %s", runID)
	}
	if run.Status != model.RunStatusComplete {
		return model.BidSet{}, eris.Errorf("run %s is %s", run.ID, run.Status)
	}
	return run.Bids, nil
}

// compareRequest builds a comparison request from the flags, falling back
// to the compare section of the config for flags left unset.
func compareRequest(cmd *cobra.Command, bids model.BidSet) compare.Request {
	req := compare.Request{
		Bids:          bids,
		Fair:          cfg.Compare.Fair,
		ZeroAsMissing: cfg.Compare.ZeroAsMissing,
	}
	if cmd.Flags().Changed("fair") {
		req.Fair, _ = cmd.Flags().GetBool("fair")
	}
	if cmd.Flags().Changed("zero-as-missing") {
		req.ZeroAsMissing, _ = cmd.Flags().GetBool("zero-as-missing")
	}
	return req
}

// runComparison loads the selected bids and compares them.
func runComparison(cmd *cobra.Command) (model.BidSet, compare.Result, error) {
	bids, err := loadBids(cmd)
	if err != nil {
		return model.BidSet{}, compare.Result{}, err
	}
	res, err := compare.Run(compareRequest(cmd, bids))
	if err != nil {
		return model.BidSet{}, compare.Result{}, err
	}
	return bids, res, nil
}
