package fetch

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// blockSelector covers the block-level elements extraction keeps as separate
// paragraphs. Nested blocks are skipped so each piece of text surfaces once.
const blockSelector = "p, h1, h2, h3, h4, h5, h6, li, blockquote, pre, td, figcaption"

// extractDocument reduces an HTML payload to its title and readable text.
// Non-content elements are stripped first so navigation chrome and script
// payloads never reach the quality classifier; block boundaries become blank
// lines so paragraph structure survives extraction.
func extractDocument(html string) (title, text string, err error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", "", err
	}

	title = strings.TrimSpace(doc.Find("title").First().Text())

	doc.Find("script, style, noscript, iframe, svg, nav, header, footer, aside, form").Remove()

	body := doc.Find("body")
	if body.Length() == 0 {
		body = doc.Selection
	}

	var blocks []string
	body.Find(blockSelector).Each(func(_ int, sel *goquery.Selection) {
		if sel.Find(blockSelector).Length() > 0 {
			return
		}
		if block := collapseWhitespace(sel.Text()); block != "" {
			blocks = append(blocks, block)
		}
	})
	if len(blocks) == 0 {
		return title, collapseWhitespace(body.Text()), nil
	}
	return title, strings.Join(blocks, "\n\n"), nil
}

func collapseWhitespace(raw string) string {
	replacer := strings.NewReplacer("\n", " ", "\t", " ", "\r", " ")
	return strings.Join(strings.Fields(replacer.Replace(raw)), " ")
}

// looksLikeHTML reports whether a payload should go through HTML extraction
// rather than being treated as plain text.
func looksLikeHTML(contentType, payload string) bool {
	lowered := strings.ToLower(contentType)
	if strings.Contains(lowered, "html") || strings.Contains(lowered, "xml") {
		return true
	}
	if lowered != "" && !strings.Contains(lowered, "text/plain") {
		return false
	}
	trimmed := strings.TrimSpace(payload)
	return strings.HasPrefix(trimmed, "<")
}
