package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComparisonRow_Helpers(t *testing.T) {
	t.Parallel()

	row := ComparisonRow{
		Plan:        "4101",
		PriceByFile: map[string]*float64{"a": Float(10), "b": nil, "c": Float(0)},
		Winner:      "c",
		BestPrice:   Float(0),
	}
	assert.True(t, row.HasWinner())
	assert.Equal(t, 2, row.PricedCount())
	assert.Nil(t, row.Price("b"))
	assert.Nil(t, row.Price("unknown"))
	assert.InDelta(t, 10.0, *row.Price("a"), 1e-9)

	empty := ComparisonRow{Plan: "2", Winner: NoWinner}
	assert.False(t, empty.HasWinner())
	assert.Equal(t, 0, empty.PricedCount())
}

func TestScoreboard_Get(t *testing.T) {
	t.Parallel()

	sb := Scoreboard{{File: "a", PlansWon: 2}, {File: "b"}}
	e, ok := sb.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 2, e.PlansWon)

	_, ok = sb.Get("z")
	assert.False(t, ok)
}

func TestTokenUsageAdd(t *testing.T) {
	t.Parallel()

	u := TokenUsage{InputTokens: 100, OutputTokens: 50}
	u.Add(TokenUsage{InputTokens: 10, OutputTokens: 5, CacheCreationTokens: 3, CacheReadTokens: 2})
	assert.Equal(t, TokenUsage{InputTokens: 110, OutputTokens: 55, CacheCreationTokens: 3, CacheReadTokens: 2}, u)
}

func TestRunStatusValues(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "running", string(RunStatusRunning))
	assert.Equal(t, "complete", string(RunStatusComplete))
	assert.Equal(t, "failed", string(RunStatusFailed))
}
