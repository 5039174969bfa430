// Package normalize turns fetched regulatory pages into canonical plain text.
package normalize

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"
)

// DefaultStripSelectors removes page chrome that changes independently of the
// regulation text (Canada.ca search bars and subway navigation included).
var DefaultStripSelectors = []string{
	"header", "footer", "nav", "script", "style", "noscript", ".wb-srch", ".gc-subway",
}

var (
	horizontalSpace = regexp.MustCompile(`[ \t]+`)
	blankLineRuns   = regexp.MustCompile(`\n{3,}`)
	dateStampLine   = regexp.MustCompile(`(?i)^Date (modified|updated)\s*:\s*\d{4}-\d{2}-\d{2}`)

	// Canada.ca renders the stamp as <dt>Date modified:</dt><dd><time>...</time></dd>.
	dateStampLabel = regexp.MustCompile(`(?i)^Date (modified|updated)\s*:?$`)
	dateOnlyLine   = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// Normalizer extracts visible text from the primary content region of a page.
// It is safe for concurrent use.
type Normalizer struct {
	strip []string
}

// New returns a Normalizer stripping DefaultStripSelectors plus extra.
func New(extra ...string) *Normalizer {
	strip := make([]string, 0, len(DefaultStripSelectors)+len(extra))
	strip = append(strip, DefaultStripSelectors...)
	for _, sel := range extra {
		if sel = strings.TrimSpace(sel); sel != "" {
			strip = append(strip, sel)
		}
	}
	return &Normalizer{strip: strip}
}

// Normalize returns the canonical text of markup. The same markup always
// yields the same text.
func (n *Normalizer) Normalize(markup []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(markup))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	for _, sel := range n.strip {
		doc.Find(sel).Remove()
	}

	// French pages mix composed and decomposed accents between publishes.
	text := norm.NFC.String(visibleText(contentRegion(doc)))
	text = horizontalSpace.ReplaceAllString(text, " ")
	text = blankLineRuns.ReplaceAllString(text, "\n\n")

	return strings.TrimSpace(dropDateStamps(text)), nil
}

// contentRegion prefers <main>, then <body>, then the whole document.
func contentRegion(doc *goquery.Document) *goquery.Selection {
	if main := doc.Find("main").First(); main.Length() > 0 {
		return main
	}
	if body := doc.Find("body").First(); body.Length() > 0 {
		return body
	}
	return doc.Selection
}

// visibleText joins every non-blank text node under sel with newlines,
// trimming each node.
func visibleText(sel *goquery.Selection) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			if s := strings.TrimSpace(node.Data); s != "" {
				parts = append(parts, s)
			}
			return
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, node := range sel.Nodes {
		walk(node)
	}
	return strings.Join(parts, "\n")
}

// dropDateStamps removes date-stamp lines, including a label line whose date
// sits alone on the next line.
func dropDateStamps(text string) string {
	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		if dateStampLine.MatchString(line) {
			continue
		}
		if dateStampLabel.MatchString(line) && i+1 < len(lines) && dateOnlyLine.MatchString(lines[i+1]) {
			i++
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}
