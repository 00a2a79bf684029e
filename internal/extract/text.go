package extract

import (
	"strings"

	"golang.org/x/net/html"
)

// Text flattens n and its descendants into one normalized string. Comments,
// scripts and styles contribute nothing. A nil node yields "".
func Text(n *html.Node) string {
	if n == nil {
		return ""
	}
	var parts []string
	collectText(n, &parts)
	return Normalize(strings.Join(parts, " "))
}

// Normalize collapses whitespace runs to a single space and trims the ends.
func Normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func collectText(n *html.Node, parts *[]string) {
	switch n.Type {
	case html.TextNode:
		*parts = append(*parts, n.Data)
		return
	case html.CommentNode, html.DoctypeNode:
		return
	case html.ElementNode:
		if n.Data == "script" || n.Data == "style" {
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, parts)
	}
}
