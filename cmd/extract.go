package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/bid-cli/internal/cost"
	"github.com/sells-group/bid-cli/internal/document"
	"github.com/sells-group/bid-cli/internal/extract"
	"github.com/sells-group/bid-cli/internal/model"
	"github.com/sells-group/bid-cli/pkg/anthropic"
)

var (
	extractSource  string
	extractOutput  string
	extractNoCache bool
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract plan prices from bid documents",
	Long:  "Reads every PDF and spreadsheet in a folder or FTP directory, extracts plan records with Claude, and records the run.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if extractSource != "" {
			cfg.Extract.Source = extractSource
		}
		if extractOutput != "" {
			cfg.Extract.OutputPath = extractOutput
		}
		if err := cfg.Validate("extract"); err != nil {
			return err
		}

		src, err := document.NewSource(cfg.Extract.Source)
		if err != nil {
			return eris.Wrap(err, "extract")
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.CreateRun(ctx, src.String())
		if err != nil {
			return eris.Wrap(err, "extract: create run")
		}

		var opts []extract.Option
		if cfg.Extract.Cache && !extractNoCache {
			opts = append(opts, extract.WithCache(st))
		}
		ex := extract.New(newAnthropicClient(), cfg, opts...)

		res, err := ex.ExtractAll(ctx, src, document.NewLoader(cfg.OCR))
		if err != nil {
			// The run context may already be cancelled.
			if ferr := st.FailRun(context.WithoutCancel(ctx), run.ID, err.Error()); ferr != nil {
				zap.L().Error("mark run failed", zap.String("run_id", run.ID), zap.Error(ferr))
			}
			return eris.Wrap(err, "extract")
		}

		if err := extract.SaveJSON(cfg.Extract.OutputPath, res.Bids); err != nil {
			_ = st.FailRun(context.WithoutCancel(ctx), run.ID, err.Error())
			return err
		}

		costUSD := cost.NewCalculator(cost.RatesFromConfig(cfg.Pricing)).Claude(cfg.Anthropic.ExtractModel, res.Usage)
		if err := st.CompleteRun(ctx, run.ID, res.Bids, res.Usage, costUSD); err != nil {
			return eris.Wrap(err, "extract: complete run")
		}

		zap.L().Info("extraction complete",
			zap.String("run_id", run.ID),
			zap.Int("files", res.Bids.Len()),
			zap.Int("plans", res.Bids.PlanCount()),
			zap.Int("cached_files", res.CachedFiles),
			zap.Int64("input_tokens", res.Usage.InputTokens),
			zap.Int64("output_tokens", res.Usage.OutputTokens),
			zap.Float64("cost_usd", costUSD),
		)
		printExtractSummary(os.Stdout, run.ID, cfg.Extract.OutputPath, res, costUSD)
		return nil
	},
}

// newAnthropicClient builds the Claude client from the anthropic config.
func newAnthropicClient() anthropic.Client {
	var opts []option.RequestOption
	if cfg.Anthropic.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.Anthropic.BaseURL))
	}
	return anthropic.NewClient(cfg.Anthropic.Key, opts...)
}

func printExtractSummary(out io.Writer, runID, path string, res extract.Result, costUSD float64) {
	_, _ = fmt.Fprintf(out, "Run %s: extracted %d plans from %d files\n", runID, res.Bids.PlanCount(), res.Bids.Len())
	for _, f := range res.Bids.Files() {
		_, _ = fmt.Fprintf(out, "  %s: %d plans\n", f.Name, len(f.Plans))
	}
	for _, w := range res.Warnings {
		_, _ = fmt.Fprintf(out, "  warning: %s: %s\n", w.File, w.Message)
	}
	if res.CachedFiles > 0 {
		_, _ = fmt.Fprintf(out, "Reused cached extraction for %d files\n", res.CachedFiles)
	}
	_, _ = fmt.Fprintf(out, "Tokens: %s, cost $%.4f\n", usageSummary(res.Usage), costUSD)
	_, _ = fmt.Fprintf(out, "Saved to %s\n", path)
}

func usageSummary(u model.TokenUsage) string {
	return fmt.Sprintf("%d in / %d out", u.InputTokens, u.OutputTokens)
}

func init() {
	extractCmd.Flags().StringVar(&extractSource, "source", "", "folder or ftp:// URL holding the bid documents (default extract.source)")
	extractCmd.Flags().StringVar(&extractOutput, "output", "", "extracted bids JSON file (default extract.output_path)")
	extractCmd.Flags().BoolVar(&extractNoCache, "no-cache", false, "re-extract documents even when their content hash is cached")
	rootCmd.AddCommand(extractCmd)
}
