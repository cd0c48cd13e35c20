package connectors

import (
	"bytes"
	"io"
	"net/url"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html/charset"
)

// extractPlainText reduces a fetched HTML body to plain-ish markdown text,
// preferring the readability-extracted article body over the full page so
// the summarizer and trend detector downstream don't have to deal with nav
// chrome and ads. pageURL anchors relative links found inside the article.
func extractPlainText(html, pageURL string) string {
	if strings.TrimSpace(html) == "" {
		return ""
	}
	base, _ := url.Parse(pageURL)
	articleHTML := html
	if art, err := readability.FromReader(strings.NewReader(html), base); err == nil && strings.TrimSpace(art.Content) != "" {
		articleHTML = art.Content
	}
	md, err := htmltomarkdown.ConvertString(articleHTML, converter.WithDomain(baseOrigin(pageURL)))
	if err != nil {
		return strings.TrimSpace(stripTags(html))
	}
	return strings.TrimSpace(md)
}

func baseOrigin(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

// decodeToUTF8 normalizes a response body from its declared charset.
func decodeToUTF8(body []byte, charsetLabel string) ([]byte, error) {
	if charsetLabel == "" || strings.EqualFold(charsetLabel, "utf-8") || strings.EqualFold(charsetLabel, "utf8") {
		return body, nil
	}
	r, err := charset.NewReaderLabel(charsetLabel, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	return io.ReadAll(r)
}

// stripTags is the last-resort fallback when markdown conversion itself
// fails; it is intentionally crude.
func stripTags(html string) string {
	var b strings.Builder
	inTag := false
	for _, r := range html {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return b.String()
}
