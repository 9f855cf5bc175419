package vendors

import (
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// findAll returns every descendant element with the given tag name, in
// document order.
func findAll(n *html.Node, tag string) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.ElementNode && node.Data == tag {
			out = append(out, node)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

// attrVal returns the value of an attribute, or "".
func attrVal(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// nodeText concatenates all text under n, whitespace-collapsed.
func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
			sb.WriteString(" ")
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}

// tableRows returns the <tr> nodes of every table under n, skipping rows
// that contain only header cells.
func tableRows(n *html.Node) []*html.Node {
	var rows []*html.Node
	for _, tr := range findAll(n, "tr") {
		if len(findAll(tr, "td")) > 0 {
			rows = append(rows, tr)
		}
	}
	return rows
}

// absoluteURL resolves href against base. Vendors emit a mix of absolute,
// root-relative, and page-relative links; the stored URL is always
// absolute.
func absoluteURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	bu, err := url.Parse(base)
	if err != nil {
		return href
	}
	hu, err := url.Parse(href)
	if err != nil {
		return href
	}
	return bu.ResolveReference(hu).String()
}
