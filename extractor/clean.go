package extractor

import (
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
)

// MinContentLength is the shortest cleaned text, in characters, worth
// extracting from.
const MinContentLength = 100

const boilerplate = "script, style, nav, header, footer, aside, noscript, form, iframe, svg"

// contentSelectors are tried in order; the first with enough text wins.
var contentSelectors = []string{
	"main",
	"article",
	"[role=main]",
	"#main-content",
	".main-content",
	"#content",
	".content",
	".container",
}

// MainText strips a page down to its main readable text with whitespace
// collapsed. It falls back to readability and finally the whole body.
func MainText(html, pageURL string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return readable(html, pageURL)
	}
	doc.Find(boilerplate).Remove()

	for _, sel := range contentSelectors {
		s := doc.Find(sel).First()
		if s.Length() == 0 {
			continue
		}
		if text := collapse(s.Text()); utf8.RuneCountInString(text) >= MinContentLength {
			return text
		}
	}

	if text := readable(html, pageURL); utf8.RuneCountInString(text) >= MinContentLength {
		return text
	}
	return collapse(doc.Find("body").Text())
}

func readable(html, pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		u = &url.URL{}
	}
	article, err := readability.FromReader(strings.NewReader(html), u)
	if err != nil {
		return ""
	}
	return collapse(article.TextContent)
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
