package processor

import (
	"strings"

	"github.com/engagic/engagic/internal/llm"
)

// The batch service has been observed, rarely, to scramble response keys.
// After the key-based assignment we cross-check each summary against its
// item title by keyword overlap; when two items would each score better
// with the other's summary, the pair is swapped and the remap logged.

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "from": true,
	"that": true, "this": true, "are": true, "was": true, "has": true,
	"city": true, "item": true, "ordinance": true, "resolution": true,
	"approve": true, "approving": true, "amend": true, "amending": true,
}

func keywords(s string) map[string]bool {
	set := make(map[string]bool)
	for _, f := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	}) {
		if len(f) >= 3 && !stopwords[f] {
			set[f] = true
		}
	}
	return set
}

func overlap(a, b map[string]bool) int {
	n := 0
	for w := range a {
		if b[w] {
			n++
		}
	}
	return n
}

// rebind takes the key-assigned results and returns them with any
// mutually-improving pairs swapped. titles maps key to item title.
// Results with errors or unknown keys are left alone.
func rebind(titles map[string]string, results map[string]llm.BatchResult) (map[string]llm.BatchResult, []string) {
	titleKW := make(map[string]map[string]bool, len(titles))
	for key, title := range titles {
		titleKW[key] = keywords(title)
	}

	var swapped []string
	keys := make([]string, 0, len(results))
	for key := range results {
		if results[key].Err == nil && titleKW[key] != nil {
			keys = append(keys, key)
		}
	}

	for i := 0; i < len(keys); i++ {
		for j := i + 1; j < len(keys); j++ {
			a, b := keys[i], keys[j]
			ra, rb := results[a], results[b]
			kwA, kwB := keywords(ra.Summary), keywords(rb.Summary)

			// Swap only when both items prefer the other's summary.
			if overlap(titleKW[a], kwB) > overlap(titleKW[a], kwA) &&
				overlap(titleKW[b], kwA) > overlap(titleKW[b], kwB) {
				ra.Summary, rb.Summary = rb.Summary, ra.Summary
				ra.Topics, rb.Topics = rb.Topics, ra.Topics
				results[a], results[b] = ra, rb
				swapped = append(swapped, a, b)
			}
		}
	}
	return results, swapped
}
