// Package llm abstracts the summarization provider. The processor
// depends on two capabilities: a batch call keyed by item id whose
// results may arrive in any order, and an explicit context-cache
// primitive for shared meeting text. The Anthropic implementation lives
// in anthropic.go; tests inject fakes.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrAPIKeyRequired is returned when an API key is needed but not provided.
var ErrAPIKeyRequired = errors.New("API key required")

// ErrKeyMissing marks a batch result the provider never returned.
var ErrKeyMissing = errors.New("response key missing from batch")

// BatchRequest is one summarization request inside a batch.
type BatchRequest struct {
	// Key is the stable binding key (the item id). Responses are matched
	// back by this key, never by position.
	Key string

	Prompt string

	// InlineContext carries the shared meeting text when it is too small
	// to be worth caching. Mutually exclusive with CacheID.
	InlineContext string

	// CacheID references a context cache created for this batch.
	CacheID string

	MaxTokens int
}

// BatchResult is one summarization outcome. Order within the slice
// carries no meaning.
type BatchResult struct {
	Key     string
	Summary string
	Topics  []string
	Err     error
}

// Client is the provider interface.
type Client interface {
	// SubmitBatch runs every request and returns one result per request,
	// in arbitrary order. Per-item failures land in BatchResult.Err; the
	// returned error is reserved for total failures.
	SubmitBatch(ctx context.Context, reqs []BatchRequest) ([]BatchResult, error)

	// CreateContextCache registers shared context for reuse across the
	// requests of one batch and returns a handle.
	CreateContextCache(ctx context.Context, content string, ttl time.Duration) (string, error)

	// DeleteContextCache releases a handle. Idempotent.
	DeleteContextCache(ctx context.Context, id string) error
}

// Summary is the structured payload every prompt asks for.
type Summary struct {
	Summary string   `json:"summary"`
	Topics  []string `json:"topics"`
}

// ParseSummary decodes the model's JSON response, tolerating markdown
// code fences around the object.
func ParseSummary(text string) (*Summary, error) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if i := strings.LastIndex(text, "```"); i >= 0 {
			text = text[:i]
		}
		text = strings.TrimSpace(text)
	}

	var s Summary
	if err := json.Unmarshal([]byte(text), &s); err != nil {
		return nil, fmt.Errorf("response is not the expected JSON shape: %w", err)
	}
	if s.Summary == "" {
		return nil, errors.New("response JSON has an empty summary")
	}
	return &s, nil
}

// EstimateTokens approximates the token count of content. Four bytes per
// token is the usual English-prose ratio; this only gates the
// cache-or-inline decision, so rough is fine.
func EstimateTokens(content string) int {
	return len(content) / 4
}

// CacheThresholdTokens is the minimum shared-context size worth an
// explicit context cache; below it, inlining is cheaper.
const CacheThresholdTokens = 1024

// CacheTTL is how long a meeting's shared context stays cached.
const CacheTTL = time.Hour
