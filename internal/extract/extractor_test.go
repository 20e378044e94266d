package extract

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/bid-cli/internal/config"
	"github.com/sells-group/bid-cli/internal/document"
	"github.com/sells-group/bid-cli/internal/model"
	"github.com/sells-group/bid-cli/internal/resilience"
	"github.com/sells-group/bid-cli/pkg/anthropic"
	anthropicmocks "github.com/sells-group/bid-cli/pkg/anthropic/mocks"
)

func testConfig() *config.Config {
	return &config.Config{
		Anthropic: config.AnthropicConfig{
			ExtractModel: "claude-haiku-4-5-20251001",
			MaxTokens:    2048,
		},
		Extract: config.ExtractConfig{MaxChars: 1000, MaxConcurrentFiles: 2},
	}
}

func fastRetry() Option {
	return WithRetry(resilience.RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
	})
}

func textResponse(text string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		ID:         "msg_1",
		Content:    []anthropic.ContentBlock{{Type: "text", Text: text}},
		StopReason: "end_turn",
		Usage:      anthropic.TokenUsage{InputTokens: 100, OutputTokens: 20, CacheReadInputTokens: 50},
	}
}

func forFile(name string) any {
	return mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return len(req.Messages) == 1 && strings.Contains(req.Messages[0].Content, "Document: "+name)
	})
}

func TestExtractFile(t *testing.T) {
	client := anthropicmocks.NewMockClient(t)
	client.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return req.Model == "claude-haiku-4-5-20251001" &&
			req.MaxTokens == 2048 &&
			req.Temperature != nil && *req.Temperature == 0 &&
			len(req.System) == 1 && req.System[0].CacheControl != nil &&
			strings.Contains(req.System[0].Text, "LOCATION RULES") &&
			strings.Contains(req.Messages[0].Content, "PLAN 4101 $9,425.00")
	})).Return(textResponse("```json\n"+`[
		{"plan_number":"4101","total_price":9425,"city":"Irving"},
		{"plan_number":"4102","total_price":null},
		{"plan_number":"4101","total_price":1}
	]`+"\n```"), nil).Once()

	e := New(client, testConfig(), fastRetry())
	res, err := e.ExtractFile(context.Background(), document.Document{
		Name: "north.pdf", Kind: document.KindPDF, Text: "PLAN 4101 $9,425.00 Irving TX",
	})
	require.NoError(t, err)

	require.Len(t, res.Plans, 2)
	assert.Equal(t, "4101", res.Plans[0].PlanNumber)
	assert.Equal(t, 9425.0, *res.Plans[0].TotalPrice)
	assert.Equal(t, "DFW", res.Plans[0].MetroArea)
	assert.False(t, res.Plans[1].HasPrice())
	assert.Equal(t, 1, res.Chunks)
	assert.Equal(t, model.TokenUsage{InputTokens: 100, OutputTokens: 20, CacheReadTokens: 50}, res.Usage)
}

func TestExtractFile_Chunks(t *testing.T) {
	cfg := testConfig()
	cfg.Extract.MaxChars = 10

	client := anthropicmocks.NewMockClient(t)
	client.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return strings.Contains(req.Messages[0].Content, "(part 1 of 3)")
	})).Return(textResponse(`[{"plan_number":"1","total_price":10}]`), nil).Once()
	client.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return strings.Contains(req.Messages[0].Content, "(part 2 of 3)")
	})).Return(textResponse(`Sorry, nothing here.`), nil).Once()
	client.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return strings.Contains(req.Messages[0].Content, "(part 3 of 3)")
	})).Return(textResponse(`[{"plan_number":"1","total_price":99},{"plan_number":"2","total_price":20}]`), nil).Once()

	e := New(client, cfg, fastRetry())
	res, err := e.ExtractFile(context.Background(), document.Document{
		Name: "big.pdf", Text: strings.Repeat("x", 25),
	})
	require.NoError(t, err)

	assert.Equal(t, 3, res.Chunks)
	require.Len(t, res.Plans, 2)
	assert.Equal(t, 10.0, *res.Plans[0].TotalPrice, "first chunk wins duplicates")
	assert.Equal(t, "2", res.Plans[1].PlanNumber)
	assert.Equal(t, int64(300), res.Usage.InputTokens)
}

func TestExtractFile_EmptyText(t *testing.T) {
	client := anthropicmocks.NewMockClient(t)
	e := New(client, testConfig())

	res, err := e.ExtractFile(context.Background(), document.Document{Name: "scan.pdf"})
	require.NoError(t, err)
	assert.NotNil(t, res.Plans)
	assert.Empty(t, res.Plans)
	client.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything)
}

func TestExtractFile_RetriesTransient(t *testing.T) {
	client := anthropicmocks.NewMockClient(t)
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(nil, &anthropic.APIError{StatusCode: 529, Err: errors.New("overloaded")}).Once()
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse(`[{"plan_number":"7"}]`), nil).Once()

	e := New(client, testConfig(), fastRetry())
	res, err := e.ExtractFile(context.Background(), document.Document{Name: "a.pdf", Text: "plan 7"})
	require.NoError(t, err)
	require.Len(t, res.Plans, 1)
}

func TestExtractFile_PermanentError(t *testing.T) {
	client := anthropicmocks.NewMockClient(t)
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(nil, &anthropic.APIError{StatusCode: 400, Err: errors.New("prompt is too long")}).Once()

	e := New(client, testConfig(), fastRetry())
	_, err := e.ExtractFile(context.Background(), document.Document{Name: "a.pdf", Text: "plan 7"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a.pdf chunk 1")
}

type fakeLoader struct {
	fail map[string]error
}

func (l fakeLoader) Load(_ context.Context, path string) (document.Document, error) {
	name := filepath.Base(path)
	if err := l.fail[name]; err != nil {
		return document.Document{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return document.Document{}, err
	}
	return document.Document{Name: name, Text: string(data)}, nil
}

type memCache struct {
	mu   sync.Mutex
	docs map[string]model.CachedDocument
	sets int
}

func newMemCache() *memCache {
	return &memCache{docs: map[string]model.CachedDocument{}}
}

func (c *memCache) GetCachedDocument(_ context.Context, hash string) (*model.CachedDocument, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.docs[hash]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

func (c *memCache) SetCachedDocument(_ context.Context, hash, name string, plans []model.PlanRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	c.docs[hash] = model.CachedDocument{Hash: hash, Name: name, Plans: plans}
	return nil
}

func bidDir(t *testing.T) document.Source {
	t.Helper()
	dir := t.TempDir()
	for name, body := range map[string]string{
		"west.pdf":    "west bid text",
		"east.xlsx":   "east bid text",
		"broken.pdf":  "garbage",
		"readme.txt":  "ignored",
		"central.pdf": "central bid text",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	src, err := document.NewDirSource(dir)
	require.NoError(t, err)
	return src
}

func TestExtractAll(t *testing.T) {
	client := anthropicmocks.NewMockClient(t)
	client.On("CreateMessage", mock.Anything, forFile("central.pdf")).
		Return(textResponse(`[{"plan_number":"4101","total_price":9000}]`), nil).Once()
	client.On("CreateMessage", mock.Anything, forFile("east.xlsx")).
		Return(textResponse(`[{"plan_number":"4101","total_price":9100},{"plan_number":"4102","total_price":8000}]`), nil).Once()
	client.On("CreateMessage", mock.Anything, forFile("west.pdf")).
		Return(nil, &anthropic.APIError{StatusCode: 401, Err: errors.New("invalid x-api-key")}).Once()

	loader := fakeLoader{fail: map[string]error{"broken.pdf": errors.New("pdftotext: exit status 1")}}

	e := New(client, testConfig(), fastRetry())
	res, err := e.ExtractAll(context.Background(), bidDir(t), loader)
	require.NoError(t, err)

	assert.Equal(t, []string{"broken.pdf", "central.pdf", "east.xlsx", "west.pdf"}, res.Bids.FileNames())

	east, _ := res.Bids.File("east.xlsx")
	assert.Len(t, east.Plans, 2)
	broken, _ := res.Bids.File("broken.pdf")
	assert.NotNil(t, broken.Plans)
	assert.Empty(t, broken.Plans)
	west, _ := res.Bids.File("west.pdf")
	assert.Empty(t, west.Plans)

	require.Len(t, res.Warnings, 2)
	assert.Equal(t, "broken.pdf", res.Warnings[0].File)
	assert.Contains(t, res.Warnings[0].Message, "pdftotext")
	assert.Equal(t, "west.pdf", res.Warnings[1].File)

	assert.Equal(t, int64(200), res.Usage.InputTokens)
	assert.Equal(t, 0, res.CachedFiles)
}

func TestExtractAll_Cache(t *testing.T) {
	src := bidDir(t)
	cache := newMemCache()
	loader := fakeLoader{}

	client := anthropicmocks.NewMockClient(t)
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse(`[{"plan_number":"1","total_price":1}]`), nil).Times(4)

	e := New(client, testConfig(), fastRetry(), WithCache(cache))
	first, err := e.ExtractAll(context.Background(), src, loader)
	require.NoError(t, err)
	assert.Equal(t, 0, first.CachedFiles)
	assert.Equal(t, 4, cache.sets)

	second, err := e.ExtractAll(context.Background(), src, loader)
	require.NoError(t, err)
	assert.Equal(t, 4, second.CachedFiles)
	assert.Zero(t, second.Usage.InputTokens)
	assert.Equal(t, first.Bids.FileNames(), second.Bids.FileNames())
	client.AssertNumberOfCalls(t, "CreateMessage", 4)
}

func TestExtractAll_ListError(t *testing.T) {
	dir := t.TempDir()
	src, err := document.NewDirSource(dir)
	require.NoError(t, err)
	require.NoError(t, os.Remove(dir))

	e := New(anthropicmocks.NewMockClient(t), testConfig())
	_, err = e.ExtractAll(context.Background(), src, fakeLoader{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list source")
}

func TestExtractAll_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := anthropicmocks.NewMockClient(t)
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(nil, context.Canceled).Maybe()

	e := New(client, testConfig(), fastRetry())
	_, err := e.ExtractAll(ctx, bidDir(t), fakeLoader{})
	require.Error(t, err)
}

func TestNew_Defaults(t *testing.T) {
	e := New(anthropicmocks.NewMockClient(t), &config.Config{})
	assert.Equal(t, defaultMaxChars, e.maxChars)
	assert.Equal(t, defaultConcurrency, e.concurrency)
	assert.Equal(t, int64(defaultMaxTokens), e.maxTokens)
	assert.NotNil(t, e.retry.OnRetry)

	cfg := &config.Config{Anthropic: config.AnthropicConfig{RequestsPerSecond: 2}}
	e = New(anthropicmocks.NewMockClient(t), cfg)
	assert.InDelta(t, 2.0, float64(e.limiter.Limit()), 1e-9)
}

func TestSaveLoadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "extracted_bids.json")
	bids := model.NewBidSet(
		model.BidFile{Name: "z.pdf", Plans: []model.PlanRecord{{PlanNumber: "1", TotalPrice: model.Float(10)}}},
		model.BidFile{Name: "a.xlsx", Plans: nil},
	)
	require.NoError(t, SaveJSON(path, bids))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "{\n  \"z.pdf\": ["))

	got, err := LoadJSON(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"z.pdf", "a.xlsx"}, got.FileNames())

	_, err = LoadJSON(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`[1]`), 0o644))
	_, err = LoadJSON(bad)
	require.Error(t, err)
}
