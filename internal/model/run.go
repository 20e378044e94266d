package model

import "time"

// RunStatus represents the current state of an extraction run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// ExtractionRun is one pass of the extractor over a document source.
type ExtractionRun struct {
	ID          string     `json:"id"`
	Source      string     `json:"source"`
	Status      RunStatus  `json:"status"`
	Bids        BidSet     `json:"bids"`
	FileCount   int        `json:"file_count"`
	PlanCount   int        `json:"plan_count"`
	Usage       TokenUsage `json:"usage"`
	CostUSD     float64    `json:"cost_usd"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// TokenUsage tracks token consumption.
type TokenUsage struct {
	InputTokens         int64 `json:"input_tokens"`
	OutputTokens        int64 `json:"output_tokens"`
	CacheCreationTokens int64 `json:"cache_creation_tokens"`
	CacheReadTokens     int64 `json:"cache_read_tokens"`
}

// Add merges token usage from another instance.
func (t *TokenUsage) Add(other TokenUsage) {
	t.InputTokens += other.InputTokens
	t.OutputTokens += other.OutputTokens
	t.CacheCreationTokens += other.CacheCreationTokens
	t.CacheReadTokens += other.CacheReadTokens
}

// CachedDocument is the extraction result for one document, keyed by the
// SHA-256 of its bytes.
type CachedDocument struct {
	Hash        string       `json:"hash"`
	Name        string       `json:"name"`
	Plans       []PlanRecord `json:"plans"`
	ExtractedAt time.Time    `json:"extracted_at"`
}
