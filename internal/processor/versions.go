package processor

import (
	"regexp"
	"strconv"

	"github.com/engagic/engagic/internal/types"
)

// verRe splits "Legislative Digest Ver3" into its base name and version.
var verRe = regexp.MustCompile(`(.*?)\s*Ver(\d+)\b`)

// filterVersions drops superseded attachment versions. Vendors publish
// Ver1/Ver2/Ver3 of the same legal document under one item; only the
// highest version is authoritative. Attachments without a Ver suffix
// pass through, and relative order is preserved.
func filterVersions(attachments []types.Attachment) []types.Attachment {
	best := make(map[string]int)
	for _, a := range attachments {
		if m := verRe.FindStringSubmatch(a.Name); m != nil {
			n, _ := strconv.Atoi(m[2])
			if n > best[m[1]] {
				best[m[1]] = n
			}
		}
	}

	out := make([]types.Attachment, 0, len(attachments))
	emitted := make(map[string]bool)
	for _, a := range attachments {
		m := verRe.FindStringSubmatch(a.Name)
		if m == nil {
			out = append(out, a)
			continue
		}
		n, _ := strconv.Atoi(m[2])
		if n == best[m[1]] && !emitted[m[1]] {
			emitted[m[1]] = true
			out = append(out, a)
		}
	}
	return out
}
