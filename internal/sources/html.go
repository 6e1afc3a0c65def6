package sources

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// StripHTML reduces an HTML fragment to its plain text with collapsed
// whitespace. Input that fails to parse is returned whitespace-collapsed.
func StripHTML(html string) string {
	if html == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return collapse(html)
	}

	return collapse(doc.Text())
}

func collapse(text string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(text, " "))
}
