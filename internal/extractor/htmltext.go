package extractor

import (
	"html"
	"regexp"
	"strings"
)

var (
	scriptRe = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleRe  = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	headRe   = regexp.MustCompile(`(?is)<head[^>]*>.*?</head>`)
	blockRe  = regexp.MustCompile(`(?i)</(p|div|tr|li|h[1-6]|section|article|table)>|<br\s*/?>`)
	tagRe    = regexp.MustCompile(`<[^>]+>`)
)

// htmlToText strips an HTML document down to its visible text. Block
// boundaries become newlines so list and table structure survives as
// line structure; everything else is flattened.
func htmlToText(doc string) string {
	doc = headRe.ReplaceAllString(doc, "")
	doc = scriptRe.ReplaceAllString(doc, "")
	doc = styleRe.ReplaceAllString(doc, "")
	doc = blockRe.ReplaceAllString(doc, "\n")
	doc = tagRe.ReplaceAllString(doc, " ")
	doc = html.UnescapeString(doc)
	return strings.TrimSpace(doc)
}
