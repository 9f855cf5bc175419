package vendors

import (
	"strings"
	"sync"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

// meetingDateLayouts cover the formats vendors actually emit in HTML
// listings. Tried in order before falling back to natural-language
// parsing.
var meetingDateLayouts = []string{
	"January 2, 2006 - 3:04 PM",
	"January 2, 2006 3:04 PM",
	"January 2, 2006",
	"Jan 2, 2006 3:04 PM",
	"Jan 2, 2006",
	"1/2/2006 3:04 PM",
	"1/2/2006 3:04:05 PM",
	"1/2/2006",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

var (
	whenOnce   sync.Once
	whenParser *when.Parser
)

// parseMeetingDate parses a vendor-formatted date string. Layout parsing
// first, then the natural-language parser for strings like
// "Tuesday, September 1st at 6:00 PM".
func parseMeetingDate(s string, now time.Time) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range meetingDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}

	whenOnce.Do(func() {
		whenParser = when.New(nil)
		whenParser.Add(en.All...)
		whenParser.Add(common.All...)
	})
	r, err := whenParser.Parse(s, now)
	if err != nil || r == nil {
		return time.Time{}, false
	}
	return r.Time.UTC(), true
}
