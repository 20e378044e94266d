//go:build !integration

package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/bid-cli/internal/chat"
)

type scriptedAsker struct {
	questions []string
	fail      string
}

func (a *scriptedAsker) Ask(_ context.Context, _ string, question string) (chat.Answer, error) {
	a.questions = append(a.questions, question)
	if question == a.fail {
		return chat.Answer{}, errors.New("upstream unavailable")
	}
	return chat.Answer{Question: question, Text: "answer to " + question}, nil
}

func TestAskLoop(t *testing.T) {
	asker := &scriptedAsker{}
	session := chat.NewSession(asker, "ctx")
	in := strings.NewReader("Who wins 4101?\n\nclear\nWhat about 4103?\nquit\nnever asked\n")

	var out bytes.Buffer
	require.NoError(t, askLoop(context.Background(), in, &out, session))

	assert.Equal(t, []string{"Who wins 4101?", "What about 4103?"}, asker.questions)
	assert.Contains(t, out.String(), "Answer: answer to Who wins 4101?")
	assert.Contains(t, out.String(), "History cleared.")

	history := session.History()
	require.Len(t, history, 1)
	assert.Equal(t, "What about 4103?", history[0].Question)
}

func TestAskLoop_ErrorContinues(t *testing.T) {
	asker := &scriptedAsker{fail: "bad"}
	session := chat.NewSession(asker, "ctx")

	var out bytes.Buffer
	require.NoError(t, askLoop(context.Background(), strings.NewReader("bad\ngood\n"), &out, session))

	assert.Contains(t, out.String(), "Error: upstream unavailable")
	assert.Contains(t, out.String(), "Answer: answer to good")
	assert.Len(t, session.History(), 1)
}

func TestAskLoop_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	asker := &scriptedAsker{}
	require.NoError(t, askLoop(ctx, strings.NewReader("q1\n"), &bytes.Buffer{}, chat.NewSession(asker, "ctx")))
	assert.Empty(t, asker.questions)
}
