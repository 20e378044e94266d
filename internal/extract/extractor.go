// Package extract turns bid documents into plan records by prompting
// Claude, one request per text chunk.
package extract

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sells-group/bid-cli/internal/config"
	"github.com/sells-group/bid-cli/internal/document"
	"github.com/sells-group/bid-cli/internal/model"
	"github.com/sells-group/bid-cli/internal/resilience"
	"github.com/sells-group/bid-cli/internal/store"
	"github.com/sells-group/bid-cli/pkg/anthropic"
)

const (
	defaultMaxChars    = 50000
	defaultConcurrency = 4
	defaultMaxTokens   = 8192
)

// DocumentLoader reads a file into a Document.
type DocumentLoader interface {
	Load(ctx context.Context, path string) (document.Document, error)
}

// Extractor prompts Claude for the plan records in each document.
type Extractor struct {
	client      anthropic.Client
	model       string
	maxTokens   int64
	maxChars    int
	concurrency int
	limiter     *rate.Limiter
	retry       resilience.RetryConfig
	cache       store.DocumentCache
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithCache reuses plans for documents whose content hash was seen before.
func WithCache(c store.DocumentCache) Option {
	return func(e *Extractor) { e.cache = c }
}

// WithRetry overrides the retry policy for API calls.
func WithRetry(r resilience.RetryConfig) Option {
	return func(e *Extractor) { e.retry = r }
}

// New creates an Extractor from the application config.
func New(client anthropic.Client, cfg *config.Config, opts ...Option) *Extractor {
	e := &Extractor{
		client:      client,
		model:       cfg.Anthropic.ExtractModel,
		maxTokens:   cfg.Anthropic.MaxTokens,
		maxChars:    cfg.Extract.MaxChars,
		concurrency: cfg.Extract.MaxConcurrentFiles,
		limiter:     rate.NewLimiter(rate.Inf, 1),
		retry:       resilience.FromConfig(cfg.Retry),
	}
	if e.maxTokens <= 0 {
		e.maxTokens = defaultMaxTokens
	}
	if e.maxChars <= 0 {
		e.maxChars = defaultMaxChars
	}
	if e.concurrency <= 0 {
		e.concurrency = defaultConcurrency
	}
	if rps := cfg.Anthropic.RequestsPerSecond; rps > 0 {
		e.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
	e.retry.OnRetry = resilience.RetryLogger("anthropic", "extract")
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// FileResult is the extraction outcome for one document.
type FileResult struct {
	Plans   []model.PlanRecord
	Usage   model.TokenUsage
	Chunks  int
	Dropped int
}

// ExtractFile extracts the plan records from doc. Chunks whose response
// cannot be parsed contribute no plans. API failures that survive the
// retries fail the file.
func (e *Extractor) ExtractFile(ctx context.Context, doc document.Document) (FileResult, error) {
	log := zap.L().With(zap.String("file", doc.Name))

	var res FileResult
	if doc.Text == "" {
		log.Warn("document has no text")
		res.Plans = []model.PlanRecord{}
		return res, nil
	}

	chunks := chunkText(doc.Text, e.maxChars)
	res.Chunks = len(chunks)

	var all []model.PlanRecord
	for i, chunk := range chunks {
		if len(chunks) > 1 {
			log.Debug("processing chunk", zap.Int("chunk", i+1), zap.Int("of", len(chunks)))
		}

		resp, err := e.call(ctx, doc.Name, i+1, len(chunks), chunk)
		if err != nil {
			return res, eris.Wrapf(err, "extract: %s chunk %d", doc.Name, i+1)
		}
		res.Usage.Add(usageOf(resp))

		p, err := parsePlans(resp.Text())
		if err != nil {
			log.Warn("unparseable extraction response",
				zap.Int("chunk", i+1),
				zap.Error(err),
			)
			continue
		}
		if p.Repaired || resp.Truncated() {
			log.Warn("extraction response was truncated", zap.Int("chunk", i+1), zap.Int("plans_kept", len(p.Plans)))
		}
		res.Dropped += p.Dropped
		all = append(all, p.Plans...)
	}

	for i := range all {
		all[i] = normalize(all[i])
	}
	res.Plans = dedupe(all)

	log.Info("extracted plans",
		zap.Int("plans", len(res.Plans)),
		zap.Int("chunks", res.Chunks),
		zap.Int("dropped", res.Dropped),
	)
	return res, nil
}

func (e *Extractor) call(ctx context.Context, name string, part, parts int, chunk string) (*anthropic.MessageResponse, error) {
	temp := 0.0
	req := anthropic.MessageRequest{
		Model:       e.model,
		MaxTokens:   e.maxTokens,
		System:      anthropic.BuildCachedSystemBlocks(systemPrompt, ""),
		Messages:    []anthropic.Message{{Role: "user", Content: userPrompt(name, part, parts, chunk)}},
		Temperature: &temp,
	}

	return resilience.DoVal(ctx, e.retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "extract: rate limit wait")
		}
		return e.client.CreateMessage(ctx, req)
	})
}

func usageOf(resp *anthropic.MessageResponse) model.TokenUsage {
	return model.TokenUsage{
		InputTokens:         resp.Usage.InputTokens,
		OutputTokens:        resp.Usage.OutputTokens,
		CacheCreationTokens: resp.Usage.CacheCreationInputTokens,
		CacheReadTokens:     resp.Usage.CacheReadInputTokens,
	}
}

// Warning records a file that contributed no plans because it failed.
type Warning struct {
	File    string `json:"file"`
	Message string `json:"message"`
}

// Result is the outcome of extracting every file in a source.
type Result struct {
	Bids        model.BidSet
	Usage       model.TokenUsage
	Warnings    []Warning
	CachedFiles int
}

// ExtractAll extracts every supported file in src. Files are processed
// concurrently and assembled in listing order. A file that fails to load
// or extract is recorded with an empty plan list and a warning; only a
// listing failure or cancellation fails the whole run.
func (e *Extractor) ExtractAll(ctx context.Context, src document.Source, loader DocumentLoader) (Result, error) {
	names, err := src.List(ctx)
	if err != nil {
		return Result{}, eris.Wrap(err, "extract: list source")
	}
	zap.L().Info("extracting bids", zap.String("source", src.String()), zap.Int("files", len(names)))

	type outcome struct {
		plans  []model.PlanRecord
		usage  model.TokenUsage
		cached bool
		err    error
	}
	outcomes := make([]outcome, len(names))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for i, name := range names {
		g.Go(func() error {
			plans, usage, cached, err := e.extractOne(gctx, src, loader, name)
			if gctx.Err() != nil {
				return gctx.Err()
			}
			outcomes[i] = outcome{plans: plans, usage: usage, cached: cached, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, eris.Wrap(err, "extract: run cancelled")
	}

	var res Result
	res.Warnings = []Warning{}
	for i, name := range names {
		o := outcomes[i]
		res.Usage.Add(o.usage)
		if o.cached {
			res.CachedFiles++
		}
		if o.err != nil {
			zap.L().Warn("file extraction failed", zap.String("file", name), zap.Error(o.err))
			res.Warnings = append(res.Warnings, Warning{File: name, Message: o.err.Error()})
			res.Bids.Add(name, []model.PlanRecord{})
			continue
		}
		res.Bids.Add(name, o.plans)
	}
	return res, nil
}

func (e *Extractor) extractOne(ctx context.Context, src document.Source, loader DocumentLoader, name string) ([]model.PlanRecord, model.TokenUsage, bool, error) {
	var usage model.TokenUsage

	path, cleanup, err := src.Fetch(ctx, name)
	defer cleanup()
	if err != nil {
		return nil, usage, false, err
	}

	var hash string
	if e.cache != nil {
		hash, err = fileHash(path)
		if err != nil {
			return nil, usage, false, err
		}
		cached, err := e.cache.GetCachedDocument(ctx, hash)
		if err != nil {
			zap.L().Warn("document cache lookup failed", zap.String("file", name), zap.Error(err))
		} else if cached != nil {
			zap.L().Info("using cached extraction", zap.String("file", name), zap.Int("plans", len(cached.Plans)))
			return cached.Plans, usage, true, nil
		}
	}

	doc, err := loader.Load(ctx, path)
	if err != nil {
		return nil, usage, false, err
	}
	doc.Name = name

	res, err := e.ExtractFile(ctx, doc)
	if err != nil {
		return nil, res.Usage, false, err
	}

	if e.cache != nil {
		if err := e.cache.SetCachedDocument(ctx, hash, name, res.Plans); err != nil {
			zap.L().Warn("document cache write failed", zap.String("file", name), zap.Error(err))
		}
	}
	return res.Plans, res.Usage, false, nil
}

func fileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", eris.Wrap(err, "extract: open for hashing")
	}
	defer f.Close() //nolint:errcheck

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", eris.Wrap(err, "extract: hash file")
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
