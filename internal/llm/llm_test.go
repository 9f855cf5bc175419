package llm

import (
	"strings"
	"testing"
)

func TestParseSummary(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		topics  int
		wantErr bool
	}{
		{
			name:   "plain json",
			input:  `{"summary": "Rezones 4th Ave for housing.", "topics": ["housing", "zoning"]}`,
			want:   "Rezones 4th Ave for housing.",
			topics: 2,
		},
		{
			name: "fenced json",
			input: "```json\n" +
				`{"summary": "Approves a $2M paving contract.", "topics": ["infrastructure"]}` +
				"\n```",
			want:   "Approves a $2M paving contract.",
			topics: 1,
		},
		{
			name: "bare fence",
			input: "```\n" +
				`{"summary": "Renames a park.", "topics": []}` +
				"\n```",
			want: "Renames a park.",
		},
		{
			name:    "prose instead of json",
			input:   "Here is my summary of the item.",
			wantErr: true,
		},
		{
			name:    "empty summary field",
			input:   `{"summary": "", "topics": ["budget"]}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := ParseSummary(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", s)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseSummary failed: %v", err)
			}
			if s.Summary != tt.want {
				t.Errorf("summary = %q, want %q", s.Summary, tt.want)
			}
			if len(s.Topics) != tt.topics {
				t.Errorf("topics = %v, want %d entries", s.Topics, tt.topics)
			}
		})
	}
}

func TestEstimateTokens(t *testing.T) {
	if got := EstimateTokens(strings.Repeat("a", 4096)); got != 1024 {
		t.Errorf("EstimateTokens(4096 bytes) = %d, want 1024", got)
	}
	if got := EstimateTokens(""); got != 0 {
		t.Errorf("EstimateTokens(empty) = %d, want 0", got)
	}
}

func TestItemPromptSelectsVariant(t *testing.T) {
	short := ItemPrompt("Approve minutes", "text", 3)
	if !strings.Contains(short, "2-4 sentences") {
		t.Errorf("small item should use the standard prompt: %q", short)
	}

	long := ItemPrompt("Omnibus zoning ordinance", "text", 250)
	if !strings.Contains(long, "long legislative document") {
		t.Errorf("100+ page item should use the large-item prompt: %q", long)
	}

	noDocs := ItemPrompt("Resolution 26-101", "", 0)
	if !strings.Contains(noDocs, "shared meeting context") {
		t.Errorf("docless item should defer to shared context: %q", noDocs)
	}
}

func TestIsRetryable(t *testing.T) {
	if isRetryable(nil) {
		t.Error("nil error is not retryable")
	}
}
