// Package processor drains the job queue: it resolves a meeting job to
// its stored agenda items, extracts and deduplicates attachment text,
// submits one batched LLM call per meeting, and persists per-item
// summaries plus the meeting-level topic aggregate. Meetings without an
// item decomposition fall back to a single monolithic packet summary.
package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/engagic/engagic/internal/extractor"
	"github.com/engagic/engagic/internal/llm"
	"github.com/engagic/engagic/internal/storage"
	"github.com/engagic/engagic/internal/types"
)

// DefaultMeetingTimeout caps one meeting's processing wall time. Past it
// the job fails with a timeout and re-enters the retry ladder.
const DefaultMeetingTimeout = 30 * time.Minute

// TextExtractor is the document-to-text dependency. Satisfied by
// *extractor.Extractor; tests inject counting fakes.
type TextExtractor interface {
	Extract(ctx context.Context, url string) (text string, pages int, err error)
}

// Options configures a Processor. Store and LLM are required.
type Options struct {
	Store          storage.Storage
	LLM            llm.Client
	Extractor      TextExtractor
	Logger         *slog.Logger
	MeetingTimeout time.Duration
}

type Processor struct {
	store          storage.Storage
	llm            llm.Client
	extractor      TextExtractor
	logger         *slog.Logger
	meetingTimeout time.Duration
}

func New(opts Options) *Processor {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Extractor == nil {
		opts.Extractor = extractor.New(extractor.Options{Logger: opts.Logger})
	}
	if opts.MeetingTimeout == 0 {
		opts.MeetingTimeout = DefaultMeetingTimeout
	}
	return &Processor{
		store:          opts.Store,
		llm:            opts.LLM,
		extractor:      opts.Extractor,
		logger:         opts.Logger,
		meetingTimeout: opts.MeetingTimeout,
	}
}

// meetingJobPayload mirrors the JSON blob the sync path stores on
// meeting queue rows.
type meetingJobPayload struct {
	Banana    string `json:"banana"`
	MeetingID string `json:"meeting_id"`
	ItemCount int    `json:"item_count"`
}

// errBadPayload marks a job whose payload cannot be interpreted.
// Retrying cannot fix it; the row goes straight to the dead letter tier.
var errBadPayload = errors.New("unusable job payload")

// Process runs one dequeued job end to end and records the outcome on
// the queue row. The returned error is the processing failure, if any;
// bookkeeping failures are logged but not returned.
func (p *Processor) Process(ctx context.Context, job *types.QueueJob) error {
	ctx, cancel := context.WithTimeout(ctx, p.meetingTimeout)
	defer cancel()
	start := time.Now()

	summarized, runErr := p.run(ctx, job)

	// Queue bookkeeping must not be lost to the meeting deadline.
	bctx, bcancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer bcancel()

	if runErr != nil {
		retryable := isRetryable(runErr)
		p.logger.Error("job failed",
			"job_id", job.ID, "meeting_id", job.MeetingID,
			"retryable", retryable, "error", runErr)
		if job.MeetingID != "" {
			if err := p.store.SetMeetingProcessing(bctx, job.MeetingID, types.ProcessingFailed); err != nil {
				p.logger.Warn("failed to mark meeting failed", "meeting_id", job.MeetingID, "error", err)
			}
		}
		if err := p.store.MarkJobFailed(bctx, job.ID, runErr.Error(), retryable); err != nil {
			p.logger.Error("failed to record job failure", "job_id", job.ID, "error", err)
		}
		return runErr
	}

	metadata, _ := json.Marshal(map[string]any{
		"items_summarized": summarized,
		"elapsed_seconds":  time.Since(start).Seconds(),
	})
	if err := p.store.MarkJobComplete(bctx, job.ID, string(metadata)); err != nil {
		p.logger.Error("failed to record job completion", "job_id", job.ID, "error", err)
	}
	p.logger.Info("job completed",
		"job_id", job.ID, "meeting_id", job.MeetingID,
		"items_summarized", summarized, "elapsed", time.Since(start))
	return nil
}

func (p *Processor) run(ctx context.Context, job *types.QueueJob) (int, error) {
	var payload meetingJobPayload
	if err := json.Unmarshal([]byte(job.Payload), &payload); err != nil {
		return 0, fmt.Errorf("%w: %v", errBadPayload, err)
	}
	if payload.MeetingID == "" {
		payload.MeetingID = job.MeetingID
	}
	if payload.MeetingID == "" {
		return 0, fmt.Errorf("%w: no meeting id", errBadPayload)
	}

	meeting, err := p.store.GetMeeting(ctx, payload.MeetingID)
	if err != nil {
		return 0, err
	}
	if err := p.store.SetMeetingProcessing(ctx, meeting.ID, types.ProcessingInProgress); err != nil {
		return 0, err
	}

	start := time.Now()
	if strings.HasPrefix(job.SourceURL, "items://") {
		return p.processItems(ctx, meeting, start)
	}
	return p.processPacket(ctx, meeting, job.SourceURL, start)
}

// itemPlan is one non-procedural unsummarized item headed for the batch.
type itemPlan struct {
	item        *types.AgendaItem
	attachments []types.Attachment // version-filtered
}

func (p *Processor) processItems(ctx context.Context, meeting *types.Meeting, start time.Time) (int, error) {
	items, err := p.store.GetItems(ctx, meeting.ID)
	if err != nil {
		return 0, err
	}

	plans, err := p.selectItems(ctx, items)
	if err != nil {
		return 0, err
	}
	if len(plans) == 0 {
		return 0, p.finishMeeting(ctx, meeting, "", len(plans), start)
	}

	// Every unique URL is extracted at most once; URLs attached to two or
	// more items form the shared meeting context.
	docs, shared, err := p.extractAll(ctx, plans)
	if err != nil {
		return 0, err
	}

	sharedText := sharedContext(plans, docs, shared)
	cacheID := ""
	inline := sharedText
	if llm.EstimateTokens(sharedText) >= llm.CacheThresholdTokens {
		cacheID, err = p.llm.CreateContextCache(ctx, sharedText, llm.CacheTTL)
		if err != nil {
			return 0, fmt.Errorf("failed to create context cache: %w", err)
		}
		inline = ""
		defer func() {
			dctx, dcancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			defer dcancel()
			if err := p.llm.DeleteContextCache(dctx, cacheID); err != nil {
				p.logger.Warn("failed to release context cache", "cache_id", cacheID, "error", err)
			}
		}()
	}

	reqs := make([]llm.BatchRequest, 0, len(plans))
	titles := make(map[string]string, len(plans))
	for _, plan := range plans {
		text, pages := itemText(plan, docs, shared)
		titles[plan.item.ID] = plan.item.Title
		reqs = append(reqs, llm.BatchRequest{
			Key:           plan.item.ID,
			Prompt:        llm.ItemPrompt(plan.item.Title, text, pages),
			InlineContext: inline,
			CacheID:       cacheID,
		})
	}

	results, err := p.llm.SubmitBatch(ctx, reqs)
	if err != nil {
		return 0, fmt.Errorf("batch submission failed: %w", err)
	}

	// Responses bind by key, never by slice position.
	byKey := make(map[string]llm.BatchResult, len(results))
	for _, r := range results {
		byKey[r.Key] = r
	}
	byKey, swapped := rebind(titles, byKey)
	if len(swapped) > 0 {
		p.logger.Warn("batch responses remapped by content",
			"meeting_id", meeting.ID, "items", swapped)
	}

	summarized := 0
	var failures []error
	for _, plan := range plans {
		r, ok := byKey[plan.item.ID]
		switch {
		case !ok:
			failures = append(failures, fmt.Errorf("item %s: %w", plan.item.ID, llm.ErrKeyMissing))
			continue
		case r.Err != nil:
			failures = append(failures, fmt.Errorf("item %s: %w", plan.item.ID, r.Err))
			continue
		}

		if err := p.store.UpdateItemSummary(ctx, plan.item.ID, r.Summary, r.Topics); err != nil {
			return summarized, err
		}
		if plan.item.MatterID != "" {
			if _, err := p.store.ApplyCanonicalSummary(ctx, plan.item.MatterID, r.Summary, r.Topics); err != nil {
				return summarized, err
			}
		}
		summarized++
	}

	if len(failures) > 0 {
		// Successes above are already persisted; the retry only owes the
		// items that are still unsummarized.
		return summarized, fmt.Errorf("batch left %d of %d items unsummarized: %w",
			len(failures), len(plans), errors.Join(failures...))
	}
	return summarized, p.finishMeeting(ctx, meeting, "", summarized, start)
}

// selectItems applies the pre-batch filters: procedural items and items
// that already carry a summary are skipped outright; items whose matter
// already has a canonical summary receive it here and are skipped. No
// filtered item ever reaches the LLM.
func (p *Processor) selectItems(ctx context.Context, items []*types.AgendaItem) ([]itemPlan, error) {
	var plans []itemPlan
	for _, item := range items {
		if item.Procedural || item.Summary != "" {
			continue
		}
		if item.MatterID != "" {
			matter, err := p.store.GetMatter(ctx, item.MatterID)
			if err != nil && !errors.Is(err, storage.ErrNotFound) {
				return nil, err
			}
			if matter != nil && matter.CanonicalSummary != "" {
				if _, err := p.store.ApplyCanonicalSummary(ctx, item.MatterID, matter.CanonicalSummary, matter.CanonicalTopics); err != nil {
					return nil, err
				}
				continue
			}
		}
		plans = append(plans, itemPlan{item: item, attachments: filterVersions(item.Attachments)})
	}
	return plans, nil
}

// extractAll resolves every unique attachment URL to text, once, going
// through the persistent document cache. It returns the extraction
// results and the set of URLs shared by two or more items. Permanently
// unextractable documents are dropped with a log line; the rest of the
// meeting proceeds.
func (p *Processor) extractAll(ctx context.Context, plans []itemPlan) (map[string]extractor.Result, map[string]bool, error) {
	owners := make(map[string]int)
	var order []string
	for _, plan := range plans {
		seen := make(map[string]bool)
		for _, a := range plan.attachments {
			if a.URL == "" || seen[a.URL] {
				continue
			}
			seen[a.URL] = true
			if owners[a.URL] == 0 {
				order = append(order, a.URL)
			}
			owners[a.URL]++
		}
	}

	docs := make(map[string]extractor.Result)
	shared := make(map[string]bool)
	for _, url := range order {
		text, pages, err := p.extractDocument(ctx, url)
		if err != nil {
			if extractor.IsPermanent(err) {
				p.logger.Warn("skipping unextractable document", "url", url, "error", err)
				continue
			}
			return nil, nil, err
		}
		docs[url] = extractor.Result{Text: text, Pages: pages}
		if owners[url] >= 2 {
			shared[url] = true
		}
	}
	return docs, shared, nil
}

// extractDocument consults the persistent cross-job cache before hitting
// the network. The in-process extractor cache still dedupes within a
// batch; this layer survives restarts and spans meetings that reuse an
// attachment.
func (p *Processor) extractDocument(ctx context.Context, url string) (string, int, error) {
	text, pages, ok, err := p.store.GetCachedDocument(ctx, url)
	if err != nil {
		return "", 0, err
	}
	if ok {
		return text, pages, nil
	}

	text, pages, err = p.extractor.Extract(ctx, url)
	if err != nil {
		return "", 0, err
	}
	if err := p.store.PutCachedDocument(ctx, url, text, pages); err != nil {
		p.logger.Warn("failed to cache document", "url", url, "error", err)
	}
	return text, pages, nil
}

// sharedContext concatenates the shared documents, in first-appearance
// order, into the meeting context.
func sharedContext(plans []itemPlan, docs map[string]extractor.Result, shared map[string]bool) string {
	var sb strings.Builder
	emitted := make(map[string]bool)
	for _, plan := range plans {
		for _, a := range plan.attachments {
			if !shared[a.URL] || emitted[a.URL] {
				continue
			}
			emitted[a.URL] = true
			if sb.Len() > 0 {
				sb.WriteString("\n\n")
			}
			fmt.Fprintf(&sb, "=== %s ===\n%s", a.Name, docs[a.URL].Text)
		}
	}
	return sb.String()
}

// itemText concatenates an item's item-specific documents. Shared
// documents ride in the meeting context and never repeat per item.
func itemText(plan itemPlan, docs map[string]extractor.Result, shared map[string]bool) (string, int) {
	var sb strings.Builder
	pages := 0
	for _, a := range plan.attachments {
		doc, ok := docs[a.URL]
		if !ok {
			continue
		}
		pages += doc.Pages
		if shared[a.URL] {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "=== %s ===\n%s", a.Name, doc.Text)
	}
	return sb.String(), pages
}

// processPacket is the monolithic fallback for meetings without an item
// decomposition: one extraction, one LLM call, result on the meeting row.
func (p *Processor) processPacket(ctx context.Context, meeting *types.Meeting, packetURL string, start time.Time) (int, error) {
	text, _, err := p.extractDocument(ctx, packetURL)
	if err != nil {
		return 0, err
	}

	results, err := p.llm.SubmitBatch(ctx, []llm.BatchRequest{{
		Key:    meeting.ID,
		Prompt: llm.MonolithicPrompt(meeting.Title, text),
	}})
	if err != nil {
		return 0, fmt.Errorf("packet summarization failed: %w", err)
	}
	if len(results) != 1 || results[0].Key != meeting.ID {
		return 0, fmt.Errorf("meeting %s: %w", meeting.ID, llm.ErrKeyMissing)
	}
	if results[0].Err != nil {
		return 0, fmt.Errorf("packet summarization failed: %w", results[0].Err)
	}

	err = p.store.StoreMeetingResult(ctx, meeting.ID, results[0].Summary, results[0].Topics,
		"monolithic", time.Since(start).Seconds())
	if err != nil {
		return 0, err
	}
	return 1, nil
}

// finishMeeting aggregates item topics by frequency and marks the
// meeting completed with the item_level method tag.
func (p *Processor) finishMeeting(ctx context.Context, meeting *types.Meeting, summary string, summarized int, start time.Time) error {
	items, err := p.store.GetItems(ctx, meeting.ID)
	if err != nil {
		return err
	}
	topics := aggregateTopics(items)

	method := fmt.Sprintf("item_level_%d_items", summarized)
	return p.store.StoreMeetingResult(ctx, meeting.ID, summary, topics, method, time.Since(start).Seconds())
}

// aggregateTopics counts topic occurrences across a meeting's items and
// returns them most frequent first, ties alphabetical.
func aggregateTopics(items []*types.AgendaItem) []string {
	counts := make(map[string]int)
	for _, item := range items {
		for _, topic := range item.Topics {
			counts[topic]++
		}
	}
	topics := make([]string, 0, len(counts))
	for t := range counts {
		topics = append(topics, t)
	}
	sort.Slice(topics, func(i, j int) bool {
		if counts[topics[i]] != counts[topics[j]] {
			return counts[topics[i]] > counts[topics[j]]
		}
		return topics[i] < topics[j]
	})
	return topics
}

// isRetryable classifies a processing failure for the queue's retry
// ladder. Transient trouble (network, rate limits, timeouts, batch key
// mismatches) re-enters the ladder; structural failures go straight to
// the dead letter tier.
func isRetryable(err error) bool {
	switch {
	case errors.Is(err, errBadPayload):
		return false
	case errors.Is(err, storage.ErrNotFound):
		return false
	case extractor.IsPermanent(err):
		return false
	}
	return true
}
