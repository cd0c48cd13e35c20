package connectors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/creatorpulse/creatorpulse/internal/cperrors"
	"github.com/creatorpulse/creatorpulse/internal/persistence"
)

func newRedditFactory(client *http.Client) Factory {
	return func(sourceID string, config map[string]any, credentials map[string]string) Connector {
		return &redditConnector{sourceID: sourceID, config: config, client: client}
	}
}

type redditConnector struct {
	sourceID string
	config   map[string]any
	client   *http.Client
}

func (c *redditConnector) Kind() string                 { return "reddit" }
func (c *redditConnector) RequiredCredentials() []string { return nil }
func (c *redditConnector) RequiredConfig() []string      { return []string{"subreddit"} }

func (c *redditConnector) subreddit() string {
	v, _ := c.config["subreddit"].(string)
	return strings.TrimPrefix(strings.TrimSpace(v), "r/")
}

func (c *redditConnector) fetchType() string {
	v, _ := c.config["fetch_type"].(string)
	switch v {
	case "new", "top", "rising":
		return v
	default:
		return "hot"
	}
}

func (c *redditConnector) timeFilter() string {
	v, _ := c.config["time_filter"].(string)
	if v == "" {
		return "day"
	}
	return v
}

func (c *redditConnector) maxResults() int {
	if v, ok := c.config["max_results"].(float64); ok && v > 0 {
		return int(v)
	}
	return 25
}

func (c *redditConnector) Validate(ctx context.Context) error {
	if c.subreddit() == "" {
		return cperrors.Validation("reddit: missing required config field subreddit")
	}
	_, err := c.fetchListing(ctx)
	return err
}

func (c *redditConnector) Fetch(ctx context.Context, since *time.Time) ([]persistence.ContentItem, error) {
	listing, err := c.fetchListing(ctx)
	if err != nil {
		return nil, err
	}
	var items []persistence.ContentItem
	for _, child := range listing.Data.Children {
		p := child.Data
		if strings.TrimSpace(p.Permalink) == "" {
			continue
		}
		published := time.Unix(int64(p.CreatedUTC), 0).UTC()
		if since != nil && !published.After(*since) {
			continue
		}
		link := "https://www.reddit.com" + p.Permalink
		items = append(items, persistence.ContentItem{
			SourceID:    c.sourceID,
			ContentType: "post",
			Title:       p.Title,
			Content:     p.Selftext,
			URL:         link,
			PublishedAt: &published,
			Metadata: map[string]any{
				"author": p.Author,
				"score":  p.Score,
				"tags":   []string{p.LinkFlairText},
			},
		})
	}
	return items, nil
}

func (c *redditConnector) fetchListing(ctx context.Context) (*redditListing, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(c.maxResults()))
	if c.fetchType() == "top" {
		q.Set("t", c.timeFilter())
	}
	path := fmt.Sprintf("https://www.reddit.com/r/%s/%s.json?%s", c.subreddit(), c.fetchType(), q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, cperrors.SourceFetch("reddit: build request failed", err)
	}
	req.Header.Set("User-Agent", "creatorpulse/1.0")
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, cperrors.SourceFetch("reddit: request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, cperrors.RateLimit("reddit: provider rate limit exceeded")
	}
	if resp.StatusCode >= 400 {
		return nil, cperrors.SourceFetch(fmt.Sprintf("reddit: provider returned status %d", resp.StatusCode), nil)
	}
	var listing redditListing
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, cperrors.SourceFetch("reddit: decode response failed", err)
	}
	return &listing, nil
}

type redditListing struct {
	Data struct {
		Children []struct {
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	Title         string  `json:"title"`
	Selftext      string  `json:"selftext"`
	Permalink     string  `json:"permalink"`
	Author        string  `json:"author"`
	Score         int     `json:"score"`
	CreatedUTC    float64 `json:"created_utc"`
	LinkFlairText string  `json:"link_flair_text"`
}
