// Package chat answers free-form questions about a bid comparison.
package chat

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/bid-cli/internal/config"
	"github.com/sells-group/bid-cli/internal/model"
	"github.com/sells-group/bid-cli/internal/resilience"
	"github.com/sells-group/bid-cli/pkg/anthropic"
)

// ErrEmptyQuestion is returned by Ask for a blank question.
var ErrEmptyQuestion = eris.New("chat: question is empty")

const defaultMaxTokens = 4096

const instructions = `INSTRUCTIONS:
1. Answer based ONLY on the provided data
2. If comparing plans, show exact prices from each file
3. Always explain WHY one bid is better (price difference, savings)
4. If asked about a specific plan, show all available prices
5. Use tables where helpful
6. Be specific with numbers - don't round off
7. If data is not available, clearly say so`

func systemPrompt(contextText string) string {
	return "You are a construction bid analysis expert. You have access to the following bid comparison data.\n\n" +
		"BID COMPARISON DATA:\n" + contextText + "\n\n" + instructions
}

// Answer is the assistant's reply to one question.
type Answer struct {
	Question string           `json:"question"`
	Text     string           `json:"answer"`
	Model    string           `json:"model"`
	Usage    model.TokenUsage `json:"usage"`
	AskedAt  time.Time        `json:"asked_at"`
}

// Assistant answers questions from a rendered comparison context.
type Assistant struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	retry     resilience.RetryConfig
}

// NewAssistant creates an Assistant using the configured chat model.
func NewAssistant(client anthropic.Client, cfg *config.Config) *Assistant {
	a := &Assistant{
		client:    client,
		model:     cfg.Anthropic.ChatModel,
		maxTokens: cfg.Anthropic.MaxTokens,
		retry:     resilience.FromConfig(cfg.Retry),
	}
	if a.maxTokens <= 0 {
		a.maxTokens = defaultMaxTokens
	}
	a.retry.OnRetry = resilience.RetryLogger("anthropic", "chat")
	return a
}

// Ask answers question using only contextText. Each call is independent;
// earlier questions are not sent.
func (a *Assistant) Ask(ctx context.Context, contextText, question string) (Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Answer{}, ErrEmptyQuestion
	}

	temp := 0.0
	req := anthropic.MessageRequest{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		System:    anthropic.BuildCachedSystemBlocks(systemPrompt(contextText), ""),
		Messages: []anthropic.Message{
			{Role: "user", Content: "USER QUESTION: " + question + "\n\nANSWER:"},
		},
		Temperature: &temp,
	}

	resp, err := resilience.DoVal(ctx, a.retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return a.client.CreateMessage(ctx, req)
	})
	if err != nil {
		return Answer{}, eris.Wrap(err, "chat: ask")
	}

	ans := Answer{
		Question: question,
		Text:     strings.TrimSpace(resp.Text()),
		Model:    resp.Model,
		Usage: model.TokenUsage{
			InputTokens:         resp.Usage.InputTokens,
			OutputTokens:        resp.Usage.OutputTokens,
			CacheCreationTokens: resp.Usage.CacheCreationInputTokens,
			CacheReadTokens:     resp.Usage.CacheReadInputTokens,
		},
		AskedAt: time.Now().UTC(),
	}
	zap.L().Debug("answered question",
		zap.Int64("input_tokens", ans.Usage.InputTokens),
		zap.Int64("output_tokens", ans.Usage.OutputTokens),
	)
	return ans, nil
}
