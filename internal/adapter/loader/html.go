package loader

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var multiBlank = regexp.MustCompile(`\n{3,}`)

// extractHTML strips markup and non-content elements, keeping the
// visible text in document order.
func extractHTML(data []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to parse html: %w", err)
	}

	doc.Find("script, style, noscript, head, nav, header, footer, aside, iframe").Remove()

	var builder strings.Builder
	doc.Find("h1, h2, h3, h4, h5, h6, p, li, td, th, pre, blockquote").Each(func(_ int, sel *goquery.Selection) {
		text := strings.TrimSpace(sel.Text())
		if text == "" {
			return
		}
		builder.WriteString(text)
		builder.WriteString("\n\n")
	})

	text := builder.String()
	if strings.TrimSpace(text) == "" {
		// Markup without block elements; fall back to the body text.
		text = doc.Find("body").Text()
	}
	return multiBlank.ReplaceAllString(text, "\n\n"), nil
}
