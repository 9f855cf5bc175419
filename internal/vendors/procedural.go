package vendors

import "regexp"

// proceduralPatterns match agenda entries with no substantive content.
// Matching items are stored for completeness but never summarized.
var proceduralPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^\s*(\d+[\.\)]\s*)?call\s+to\s+order\b`),
	regexp.MustCompile(`(?i)^\s*(\d+[\.\)]\s*)?roll\s*call\b`),
	regexp.MustCompile(`(?i)^\s*(\d+[\.\)]\s*)?(approval|adoption)\s+of\s+(the\s+)?minutes\b`),
	regexp.MustCompile(`(?i)^\s*(\d+[\.\)]\s*)?approval\s+of\s+(the\s+)?agenda\b`),
	regexp.MustCompile(`(?i)^\s*(\d+[\.\)]\s*)?pledge\s+of\s+allegiance\b`),
	regexp.MustCompile(`(?i)^\s*(\d+[\.\)]\s*)?salute\s+to\s+the\s+flag\b`),
	regexp.MustCompile(`(?i)^\s*(\d+[\.\)]\s*)?invocation\b`),
	regexp.MustCompile(`(?i)^\s*(\d+[\.\)]\s*)?moment\s+of\s+silence\b`),
	regexp.MustCompile(`(?i)^\s*(\d+[\.\)]\s*)?adjourn(ment)?\b`),
	regexp.MustCompile(`(?i)^\s*(\d+[\.\)]\s*)?recess\b`),
}

// Procedural reports whether an agenda item title is a procedural entry.
func Procedural(title string) bool {
	for _, p := range proceduralPatterns {
		if p.MatchString(title) {
			return true
		}
	}
	return false
}
