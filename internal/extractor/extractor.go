// Package extractor turns attachment URLs into normalized UTF-8 text.
// It downloads, detects PDF vs HTML, extracts, and caches the result in
// a bounded in-process LRU so that a document shared by several agenda
// items in one batch is fetched exactly once. No semantic transforms.
package extractor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cenkalti/backoff/v4"
	"github.com/ledongthuc/pdf"
)

// ExtractionError marks a document that cannot yield text: unreadable
// PDF, empty body, binary garbage. Not retryable for that URL; other
// documents in the same meeting still proceed.
type ExtractionError struct {
	URL string
	Err error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction failed for %s: %v", e.URL, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// IsPermanent reports whether err is a permanent extraction failure
// rather than a transient download problem.
func IsPermanent(err error) bool {
	var ee *ExtractionError
	return errors.As(err, &ee)
}

const (
	defaultMaxDocBytes  = 64 << 20
	defaultCacheBytes   = 256 << 20
	defaultFetchTimeout = 60 * time.Second
	maxDownloadRetries  = 3
)

// Options configures an Extractor. Zero values get defaults.
type Options struct {
	Client     *http.Client
	Logger     *slog.Logger
	CacheBytes int64
}

// Extractor is safe for concurrent use; the cache is internally locked.
type Extractor struct {
	client *http.Client
	logger *slog.Logger
	cache  *lruCache
}

// Result is one extracted document.
type Result struct {
	Text  string
	Pages int
}

func New(opts Options) *Extractor {
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: defaultFetchTimeout}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.CacheBytes == 0 {
		opts.CacheBytes = defaultCacheBytes
	}
	return &Extractor{
		client: opts.Client,
		logger: opts.Logger,
		cache:  newLRUCache(opts.CacheBytes),
	}
}

// Extract downloads url (or serves it from cache) and returns its text
// and page count. HTML documents count as one page.
func (e *Extractor) Extract(ctx context.Context, url string) (string, int, error) {
	if r, ok := e.cache.get(url); ok {
		return r.Text, r.Pages, nil
	}

	body, contentType, err := e.download(ctx, url)
	if err != nil {
		return "", 0, err
	}

	var result Result
	if isPDF(body, contentType) {
		result, err = extractPDF(url, body)
	} else {
		result, err = extractHTML(url, body)
	}
	if err != nil {
		return "", 0, err
	}

	e.cache.put(url, result)
	return result.Text, result.Pages, nil
}

// download fetches with bounded exponential backoff. HTTP 4xx is
// permanent (the document is gone, retrying cannot help); transport
// errors and 5xx retry up to the attempt cap.
func (e *Extractor) download(ctx context.Context, url string) ([]byte, string, error) {
	var body []byte
	var contentType string

	attempt := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(&ExtractionError{URL: url, Err: err})
		}
		req.Header.Set("User-Agent", "engagic/1.0 (civic agenda aggregator)")

		resp, err := e.client.Do(req)
		if err != nil {
			return fmt.Errorf("download %s: %w", url, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return backoff.Permanent(&ExtractionError{URL: url, Err: fmt.Errorf("status %d", resp.StatusCode)})
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("download %s: status %d", url, resp.StatusCode)
		}

		body, err = io.ReadAll(io.LimitReader(resp.Body, defaultMaxDocBytes))
		if err != nil {
			return fmt.Errorf("download %s: %w", url, err)
		}
		contentType = resp.Header.Get("Content-Type")
		return nil
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxDownloadRetries), ctx)
	if err := backoff.Retry(attempt, bo); err != nil {
		return nil, "", err
	}
	return body, contentType, nil
}

func isPDF(body []byte, contentType string) bool {
	if strings.Contains(contentType, "application/pdf") {
		return true
	}
	return bytes.HasPrefix(body, []byte("%PDF-"))
}

func extractPDF(url string, body []byte) (Result, error) {
	reader, err := pdf.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return Result{}, &ExtractionError{URL: url, Err: fmt.Errorf("unreadable pdf: %w", err)}
	}

	total := reader.NumPage()
	var sb strings.Builder
	for i := 1; i <= total; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// One bad page does not void the document.
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}

	text := normalizeText(sb.String())
	if text == "" {
		return Result{}, &ExtractionError{URL: url, Err: errors.New("pdf yielded no text (scanned image?)")}
	}
	return Result{Text: text, Pages: total}, nil
}

func extractHTML(url string, body []byte) (Result, error) {
	text := normalizeText(htmlToText(string(body)))
	if text == "" {
		return Result{}, &ExtractionError{URL: url, Err: errors.New("document yielded no text")}
	}
	return Result{Text: text, Pages: 1}, nil
}

// normalizeText collapses whitespace runs and strips invalid UTF-8.
func normalizeText(s string) string {
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
