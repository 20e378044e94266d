package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/bid-cli/internal/chat"
	"github.com/sells-group/bid-cli/internal/report"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question about the bid comparison",
	Long:  "Answers a single question, or with no argument reads questions from stdin until EOF or \"quit\". \"clear\" resets the history.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("ask"); err != nil {
			return err
		}

		_, res, err := runComparison(cmd)
		if err != nil {
			return err
		}

		assistant := chat.NewAssistant(newAnthropicClient(), cfg)
		session := chat.NewSession(assistant, report.RenderContext(res))

		if len(args) == 1 {
			ans, err := session.Ask(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Println(ans.Text)
			return nil
		}
		return askLoop(ctx, os.Stdin, os.Stdout, session)
	},
}

// askLoop reads one question per line from in and writes each answer to
// out. Failed questions are reported and the loop continues.
func askLoop(ctx context.Context, in io.Reader, out io.Writer, session *chat.Session) error {
	scanner := bufio.NewScanner(in)
	prompt := func() { _, _ = fmt.Fprint(out, "\nQuestion: ") }

	_, _ = fmt.Fprintln(out, "Ask about the bids. Type \"clear\" to reset, \"quit\" to exit.")
	prompt()
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		q := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(q) {
		case "":
			prompt()
			continue
		case "quit", "exit", "q":
			return nil
		case "clear":
			session.Clear()
			_, _ = fmt.Fprintln(out, "History cleared.")
			prompt()
			continue
		}

		ans, err := session.Ask(ctx, q)
		switch {
		case errors.Is(err, context.Canceled):
			return nil
		case err != nil:
			zap.L().Warn("question failed", zap.Error(err))
			_, _ = fmt.Fprintf(out, "Error: %v\n", err)
		default:
			_, _ = fmt.Fprintf(out, "\nAnswer: %s\n", ans.Text)
		}
		prompt()
	}
	return scanner.Err()
}

func init() {
	addBidFlags(askCmd)
	rootCmd.AddCommand(askCmd)
}
