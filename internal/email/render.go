package email

import (
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strings"

	xhtml "golang.org/x/net/html"

	"github.com/creatorpulse/creatorpulse/internal/persistence"
)

var markdownLinkPattern = regexp.MustCompile(`\[([^\]]+)\]\((https?://[^\s)]+)\)`)
var bareURLPattern = regexp.MustCompile(`https?://[^\s<>"']+`)

// RenderOptions controls the optional tracking/unsubscribe additions to a
// rendered newsletter body.
type RenderOptions struct {
	TrackOpens      bool
	TrackClicks     bool
	TrackingBaseURL string
	UnsubscribeURL  string
	DraftID         string
	RecipientID     string
	RecipientToken  string
}

// RenderBody produces the HTML and plain-text bodies for a draft, applying
// tracking pixel injection, click-redirect rewriting, and the one-click
// unsubscribe footer per RenderOptions.
func RenderBody(d persistence.Draft, opts RenderOptions) (htmlBody, textBody string) {
	htmlBody = renderHTML(d)
	textBody = renderText(d)

	if opts.TrackClicks && opts.TrackingBaseURL != "" {
		htmlBody = rewriteLinksForClickTracking(htmlBody, opts)
	}
	htmlBody += unsubscribeFooterHTML(opts)
	textBody += unsubscribeFooterText(opts)

	if opts.TrackOpens && opts.TrackingBaseURL != "" {
		htmlBody += trackingPixelHTML(opts)
	}
	return htmlBody, textBody
}

func renderHTML(d persistence.Draft) string {
	var bld strings.Builder
	fmt.Fprintf(&bld, "<h1>%s</h1>\n", html.EscapeString(d.Title))
	for _, section := range d.Sections {
		if section.Title != "" {
			fmt.Fprintf(&bld, "<h2>%s</h2>\n", html.EscapeString(section.Title))
		}
		bld.WriteString("<p>")
		bld.WriteString(markdownLinksToHTML(html.EscapeString(section.Content)))
		bld.WriteString("</p>\n")
	}
	return bld.String()
}

func renderText(d persistence.Draft) string {
	var bld strings.Builder
	fmt.Fprintf(&bld, "%s\n\n", d.Title)
	for _, section := range d.Sections {
		if section.Title != "" {
			fmt.Fprintf(&bld, "%s\n", section.Title)
		}
		fmt.Fprintf(&bld, "%s\n\n", section.Content)
	}
	return bld.String()
}

// markdownLinksToHTML turns "[text](url)" into an anchor tag and leaves
// bare URLs as plain anchors too, since the draft generator's model output
// mixes both styles.
func markdownLinksToHTML(escaped string) string {
	out := markdownLinkPattern.ReplaceAllString(escaped, `<a href="$2">$1</a>`)
	out = bareURLPattern.ReplaceAllStringFunc(out, func(u string) string {
		if strings.Contains(out, `href="`+u) {
			return u
		}
		return fmt.Sprintf(`<a href="%s">%s</a>`, u, u)
	})
	return out
}

// rewriteLinksForClickTracking walks every <a href> in body and replaces
// its target with a redirect through the tracking endpoint carrying the
// original URL, the draft id, and the recipient token.
func rewriteLinksForClickTracking(body string, opts RenderOptions) string {
	doc, err := xhtml.Parse(strings.NewReader("<div>" + body + "</div>"))
	if err != nil {
		return body
	}
	var walk func(*xhtml.Node)
	walk = func(n *xhtml.Node) {
		if n.Type == xhtml.ElementNode && n.Data == "a" {
			for i, attr := range n.Attr {
				if attr.Key == "href" {
					n.Attr[i].Val = clickRedirectURL(opts, attr.Val)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	div := findDiv(doc)
	if div == nil {
		return body
	}
	var bld strings.Builder
	for c := div.FirstChild; c != nil; c = c.NextSibling {
		_ = xhtml.Render(&bld, c)
	}
	return bld.String()
}

func findDiv(n *xhtml.Node) *xhtml.Node {
	if n.Type == xhtml.ElementNode && n.Data == "div" {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findDiv(c); found != nil {
			return found
		}
	}
	return nil
}

func clickRedirectURL(opts RenderOptions, target string) string {
	v := url.Values{}
	v.Set("draft_id", opts.DraftID)
	v.Set("recipient_id", opts.RecipientID)
	v.Set("token", opts.RecipientToken)
	v.Set("url", target)
	return strings.TrimRight(opts.TrackingBaseURL, "/") + "/track/click?" + v.Encode()
}

func trackingPixelHTML(opts RenderOptions) string {
	v := url.Values{}
	v.Set("draft_id", opts.DraftID)
	v.Set("recipient_id", opts.RecipientID)
	v.Set("token", opts.RecipientToken)
	pixelURL := strings.TrimRight(opts.TrackingBaseURL, "/") + "/track/open?" + v.Encode()
	return fmt.Sprintf(`<img src="%s" width="1" height="1" alt="" style="display:none" />`, pixelURL)
}

func unsubscribeFooterHTML(opts RenderOptions) string {
	if opts.UnsubscribeURL == "" {
		return ""
	}
	return fmt.Sprintf(`<p><a href="%s">Unsubscribe</a></p>`, unsubscribeLink(opts))
}

func unsubscribeFooterText(opts RenderOptions) string {
	if opts.UnsubscribeURL == "" {
		return ""
	}
	return fmt.Sprintf("\nUnsubscribe: %s\n", unsubscribeLink(opts))
}

func unsubscribeLink(opts RenderOptions) string {
	v := url.Values{}
	v.Set("draft_id", opts.DraftID)
	v.Set("recipient_id", opts.RecipientID)
	v.Set("token", opts.RecipientToken)
	return strings.TrimRight(opts.UnsubscribeURL, "/") + "?" + v.Encode()
}
