package llm

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"net"
	"os"
	"sync"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"golang.org/x/sync/errgroup"
)

const (
	defaultModel       = "claude-3-5-haiku-20241022"
	defaultMaxTokens   = 1024
	maxRetries         = 3
	initialBackoff     = 1 * time.Second
	defaultConcurrency = 4
)

// AnthropicClient implements Client on the Anthropic Messages API.
//
// Batches are fanned out as bounded-concurrency individual calls; the
// API's own prompt caching (ephemeral cache_control on the shared system
// block) provides the context-cache economics, with the handle tracked
// locally so release is explicit and testable.
type AnthropicClient struct {
	client      anthropic.Client
	model       anthropic.Model
	concurrency int

	mu     sync.Mutex
	caches map[string]string // handle -> content
}

// NewAnthropicClient creates the production client. Env var
// ANTHROPIC_API_KEY takes precedence over the explicit apiKey.
func NewAnthropicClient(apiKey, model string) (*AnthropicClient, error) {
	if envKey := os.Getenv("ANTHROPIC_API_KEY"); envKey != "" {
		apiKey = envKey
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: set ANTHROPIC_API_KEY environment variable or provide via config", ErrAPIKeyRequired)
	}
	if model == "" {
		model = defaultModel
	}
	return &AnthropicClient{
		client:      anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:       anthropic.Model(model),
		concurrency: defaultConcurrency,
		caches:      make(map[string]string),
	}, nil
}

func (c *AnthropicClient) CreateContextCache(ctx context.Context, content string, ttl time.Duration) (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate cache handle: %w", err)
	}
	id := "ctx_" + hex.EncodeToString(buf)

	c.mu.Lock()
	c.caches[id] = content
	c.mu.Unlock()
	return id, nil
}

func (c *AnthropicClient) DeleteContextCache(ctx context.Context, id string) error {
	c.mu.Lock()
	delete(c.caches, id)
	c.mu.Unlock()
	return nil
}

func (c *AnthropicClient) cachedContent(id string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	content, ok := c.caches[id]
	return content, ok
}

func (c *AnthropicClient) SubmitBatch(ctx context.Context, reqs []BatchRequest) ([]BatchResult, error) {
	results := make([]BatchResult, len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, req := range reqs {
		g.Go(func() error {
			summary, err := c.callOne(gctx, req)
			result := BatchResult{Key: req.Key, Err: err}
			if err == nil {
				result.Summary = summary.Summary
				result.Topics = summary.Topics
			}
			results[i] = result
			return nil // per-item errors never abort the batch
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (c *AnthropicClient) callOne(ctx context.Context, req BatchRequest) (*Summary, error) {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}

	// Shared context rides as a system block. A cached handle gets the
	// ephemeral cache_control marker so the provider bills the shared
	// prefix once per batch instead of once per item.
	switch {
	case req.CacheID != "":
		content, ok := c.cachedContent(req.CacheID)
		if !ok {
			return nil, fmt.Errorf("context cache %s is gone", req.CacheID)
		}
		params.System = []anthropic.TextBlockParam{{
			Text:         content,
			CacheControl: anthropic.NewCacheControlEphemeralParam(),
		}}
	case req.InlineContext != "":
		params.System = []anthropic.TextBlockParam{{Text: req.InlineContext}}
	}

	text, err := c.callWithRetry(ctx, params)
	if err != nil {
		return nil, err
	}
	return ParseSummary(text)
}

func (c *AnthropicClient) callWithRetry(ctx context.Context, params anthropic.MessageNewParams) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := initialBackoff * time.Duration(math.Pow(2, float64(attempt-1)))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		message, err := c.client.Messages.New(ctx, params)
		if err == nil {
			if len(message.Content) == 0 {
				return "", errors.New("unexpected response format: no content blocks")
			}
			content := message.Content[0]
			if content.Type != "text" {
				return "", fmt.Errorf("unexpected response format: not a text block (type=%s)", content.Type)
			}
			return content.Text, nil
		}

		lastErr = err
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if !isRetryable(err) {
			return "", fmt.Errorf("non-retryable error: %w", err)
		}
	}
	return "", fmt.Errorf("failed after %d retries: %w", maxRetries+1, lastErr)
}

// isRetryable reports whether an API failure is worth another attempt:
// timeouts, rate limits, and server errors are; everything else is not.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}
	return false
}
