package text

import (
	"regexp"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"golang.org/x/net/html"
)

var (
	htmlTagPattern  = regexp.MustCompile(`<(p|br|div|span|b|i|strong|em|a|ul|ol|li|h[1-6]|blockquote)[\s>/]`)
	htmlTagRegex    = regexp.MustCompile(`<[^>]*>`)
	whitespaceRegex = regexp.MustCompile(`\s+`)
	// Catalog descriptions often end with a ruled-off block of source notes.
	footerRule = regexp.MustCompile(`(?m)^\s*-{5,}\s*$`)
)

// ContainsHTML reports whether s looks like it carries HTML markup.
func ContainsHTML(s string) bool {
	return htmlTagPattern.MatchString(strings.ToLower(s))
}

// Description normalizes a work description to Markdown. HTML is converted;
// text that is already Markdown or plain passes through. A trailing block of
// source notes below a horizontal rule is dropped.
func Description(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if loc := footerRule.FindStringIndex(s); loc != nil && loc[0] > 0 {
		s = strings.TrimSpace(s[:loc[0]])
	}
	if !ContainsHTML(s) {
		return s
	}
	markdown, err := htmltomarkdown.ConvertString(s)
	if err != nil {
		return StripHTML(s)
	}
	return strings.TrimSpace(markdown)
}

// StripHTML removes markup and collapses whitespace, returning plain text.
func StripHTML(s string) string {
	if s == "" {
		return ""
	}
	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(collapseWhitespace(html.UnescapeString(htmlTagRegex.ReplaceAllString(s, " "))))
	}

	var buf strings.Builder
	extractText(doc, &buf)
	return strings.TrimSpace(collapseWhitespace(buf.String()))
}

func extractText(n *html.Node, buf *strings.Builder) {
	if n.Type == html.TextNode {
		buf.WriteString(n.Data)
	}
	block := n.Type == html.ElementNode && isBlock(n.Data)
	if block || (n.Type == html.ElementNode && n.Data == "br") {
		buf.WriteByte(' ')
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		extractText(c, buf)
	}
	if block {
		buf.WriteByte(' ')
	}
}

func isBlock(tag string) bool {
	switch tag {
	case "p", "div", "li", "h1", "h2", "h3", "h4", "h5", "h6", "blockquote":
		return true
	}
	return false
}

func collapseWhitespace(s string) string {
	return whitespaceRegex.ReplaceAllString(s, " ")
}
