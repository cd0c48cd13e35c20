package connectors

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/creatorpulse/creatorpulse/internal/cperrors"
	"github.com/creatorpulse/creatorpulse/internal/persistence"
)

func newRSSFactory(client *http.Client) Factory {
	return func(sourceID string, config map[string]any, credentials map[string]string) Connector {
		return &rssConnector{sourceID: sourceID, config: config, client: client}
	}
}

type rssConnector struct {
	sourceID string
	config   map[string]any
	client   *http.Client
}

func (c *rssConnector) Kind() string                    { return "rss" }
func (c *rssConnector) RequiredCredentials() []string    { return nil }
func (c *rssConnector) RequiredConfig() []string         { return []string{"feed_url"} }

func (c *rssConnector) feedURL() string {
	if v, ok := c.config["feed_url"].(string); ok {
		return v
	}
	return ""
}

// Validate fetches and parses only the feed head — enough to confirm the
// URL resolves to a readable RSS/Atom document.
func (c *rssConnector) Validate(ctx context.Context) error {
	feedURL := c.feedURL()
	if feedURL == "" {
		return cperrors.Validation("rss: missing required config field feed_url")
	}
	feed, err := c.fetchFeed(ctx)
	if err != nil {
		return err
	}
	if len(feed.Channel.Items) == 0 && len(feed.Entries) == 0 {
		return cperrors.Validation("rss: feed has no entries to validate against")
	}
	return nil
}

func (c *rssConnector) Fetch(ctx context.Context, since *time.Time) ([]persistence.ContentItem, error) {
	feed, err := c.fetchFeed(ctx)
	if err != nil {
		return nil, err
	}
	var items []persistence.ContentItem
	for _, it := range feed.Channel.Items {
		item, ok := c.fromRSSItem(it, since)
		if ok {
			items = append(items, item)
		}
	}
	for _, e := range feed.Entries {
		item, ok := c.fromAtomEntry(e, since)
		if ok {
			items = append(items, item)
		}
	}
	return items, nil
}

func (c *rssConnector) fromRSSItem(it rssItem, since *time.Time) (persistence.ContentItem, bool) {
	if strings.TrimSpace(it.Link) == "" {
		return persistence.ContentItem{}, false
	}
	published := parseFeedTime(it.PubDate)
	if since != nil && published != nil && !published.After(*since) {
		return persistence.ContentItem{}, false
	}
	body := it.Description
	if it.ContentEncoded != "" {
		body = it.ContentEncoded
	}
	tags := make([]string, 0, len(it.Categories))
	tags = append(tags, it.Categories...)
	return persistence.ContentItem{
		SourceID:    c.sourceID,
		ContentType: "article",
		Title:       it.Title,
		Content:     extractPlainText(body, it.Link),
		URL:         it.Link,
		PublishedAt: published,
		Metadata: map[string]any{
			"author": it.Author,
			"tags":   tags,
		},
	}, true
}

func (c *rssConnector) fromAtomEntry(e atomEntry, since *time.Time) (persistence.ContentItem, bool) {
	link := e.linkHref()
	if link == "" {
		return persistence.ContentItem{}, false
	}
	published := parseFeedTime(e.Published)
	if published == nil {
		published = parseFeedTime(e.Updated)
	}
	if since != nil && published != nil && !published.After(*since) {
		return persistence.ContentItem{}, false
	}
	body := e.Summary
	if e.Content != "" {
		body = e.Content
	}
	tags := make([]string, 0, len(e.Categories))
	for _, cat := range e.Categories {
		tags = append(tags, cat.Term)
	}
	return persistence.ContentItem{
		SourceID:    c.sourceID,
		ContentType: "article",
		Title:       e.Title,
		Content:     extractPlainText(body, link),
		URL:         link,
		PublishedAt: published,
		Metadata: map[string]any{
			"author": e.Author.Name,
			"tags":   tags,
		},
	}, true
}

func (c *rssConnector) fetchFeed(ctx context.Context) (*feedDocument, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.feedURL(), nil)
	if err != nil {
		return nil, cperrors.SourceFetch("rss: build request failed", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, cperrors.SourceFetch("rss: fetch failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, cperrors.RateLimit("rss: provider rate limit exceeded")
	}
	if resp.StatusCode >= 400 {
		return nil, cperrors.SourceFetch(fmt.Sprintf("rss: provider returned status %d", resp.StatusCode), nil)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, cperrors.SourceFetch("rss: read body failed", err)
	}
	_, params, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	body, err = decodeToUTF8(body, params["charset"])
	if err != nil {
		return nil, cperrors.SourceFetch("rss: charset decode failed", err)
	}

	var doc feedDocument
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, cperrors.SourceFetch("rss: parse failed", err)
	}
	return &doc, nil
}

func parseFeedTime(v string) *time.Time {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	layouts := []string{time.RFC1123Z, time.RFC1123, time.RFC3339, "2006-01-02T15:04:05Z07:00"}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, v); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

// --- wire formats: a single struct tree handles both RSS 2.0 and Atom ---

// feedDocument ignores the root element name (rss vs feed) and decodes
// whichever of channel/entry subtrees are present.
type feedDocument struct {
	Channel rssChannel  `xml:"channel"`
	Entries []atomEntry `xml:"entry"`
}

type rssChannel struct {
	Items []rssItem `xml:"item"`
}

type rssItem struct {
	Title          string   `xml:"title"`
	Link           string   `xml:"link"`
	Description    string   `xml:"description"`
	ContentEncoded string   `xml:"encoded"`
	Author         string   `xml:"author"`
	PubDate        string   `xml:"pubDate"`
	Categories     []string `xml:"category"`
}

type atomEntry struct {
	Title      string         `xml:"title"`
	Summary    string         `xml:"summary"`
	Content    string         `xml:"content"`
	Published  string         `xml:"published"`
	Updated    string         `xml:"updated"`
	Author     atomAuthor     `xml:"author"`
	Links      []atomLink     `xml:"link"`
	Categories []atomCategory `xml:"category"`
}

type atomAuthor struct {
	Name string `xml:"name"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
}

type atomCategory struct {
	Term string `xml:"term,attr"`
}

func (e atomEntry) linkHref() string {
	for _, l := range e.Links {
		if l.Rel == "" || l.Rel == "alternate" {
			return l.Href
		}
	}
	if len(e.Links) > 0 {
		return e.Links[0].Href
	}
	return ""
}
