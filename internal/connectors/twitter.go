package connectors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/creatorpulse/creatorpulse/internal/cperrors"
	"github.com/creatorpulse/creatorpulse/internal/observability"
	"github.com/creatorpulse/creatorpulse/internal/persistence"
)

const twitterAPIBase = "https://api.twitter.com/2"

func newTwitterFactory(client *http.Client) Factory {
	return func(sourceID string, config map[string]any, credentials map[string]string) Connector {
		return &twitterConnector{sourceID: sourceID, config: config, credentials: credentials, baseClient: client}
	}
}

type twitterConnector struct {
	sourceID   string
	config     map[string]any
	credentials map[string]string
	baseClient *http.Client
}

func (c *twitterConnector) Kind() string                 { return "twitter" }
func (c *twitterConnector) RequiredCredentials() []string { return []string{"bearer_token"} }
func (c *twitterConnector) RequiredConfig() []string      { return []string{"query_type"} }

// oauth1Fields are the full OAuth 1.0a quadruple; partial sets are rejected
// with a message listing exactly what is missing.
var oauth1Fields = []string{"api_key", "api_secret", "access_token", "access_token_secret"}

// Validate accepts either a bearer token or the complete OAuth 1.0a
// quadruple. A partial quadruple is a validation error naming the missing
// fields, never silently treated as "use bearer token instead".
func (c *twitterConnector) Validate(ctx context.Context) error {
	if strings.TrimSpace(c.credentials["bearer_token"]) != "" {
		return nil
	}
	present := 0
	var missing []string
	for _, f := range oauth1Fields {
		if strings.TrimSpace(c.credentials[f]) == "" {
			missing = append(missing, f)
		} else {
			present++
		}
	}
	if present == 0 {
		return cperrors.Validation("twitter: missing required credential bearer_token (or the full OAuth 1.0a quadruple)")
	}
	if present < len(oauth1Fields) {
		sort.Strings(missing)
		return cperrors.Validation(fmt.Sprintf("twitter: incomplete OAuth 1.0a credentials, missing: %s", strings.Join(missing, ", ")))
	}
	return nil
}

// client wraps the shared instrumented client with the bearer token as a
// static token source — a typed credential carrier, not an OAuth dance.
func (c *twitterConnector) client() *http.Client {
	token := c.credentials["bearer_token"]
	if token == "" {
		return c.baseClient
	}
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
	tok, err := src.Token()
	if err != nil {
		return c.baseClient
	}
	return observability.WithHeaders(c.baseClient, map[string]string{
		"Authorization": "Bearer " + tok.AccessToken,
	})
}

func (c *twitterConnector) queryType() string {
	v, _ := c.config["query_type"].(string)
	switch v {
	case "mentions", "likes", "list":
		return v
	default:
		return "timeline"
	}
}

func (c *twitterConnector) maxResults() int {
	n := 25
	if v, ok := c.config["max_results"].(float64); ok && v > 0 {
		n = int(v)
	}
	if n < 5 {
		n = 5
	}
	return n
}

func (c *twitterConnector) Fetch(ctx context.Context, since *time.Time) ([]persistence.ContentItem, error) {
	userID, _ := c.config["user_id"].(string)
	listID, _ := c.config["list_id"].(string)

	var path string
	switch c.queryType() {
	case "mentions":
		path = fmt.Sprintf("/users/%s/mentions", userID)
	case "likes":
		path = fmt.Sprintf("/users/%s/liked_tweets", userID)
	case "list":
		path = fmt.Sprintf("/lists/%s/tweets", listID)
	default:
		path = fmt.Sprintf("/users/%s/tweets", userID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, twitterAPIBase+path, nil)
	if err != nil {
		return nil, cperrors.SourceFetch("twitter: build request failed", err)
	}
	q := req.URL.Query()
	q.Set("max_results", strconv.Itoa(c.maxResults()))
	q.Set("tweet.fields", "created_at,public_metrics")
	req.URL.RawQuery = q.Encode()

	resp, err := c.client().Do(req)
	if err != nil {
		return nil, cperrors.SourceFetch("twitter: request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, cperrors.RateLimit("twitter: provider rate limit exceeded")
	}
	if resp.StatusCode >= 400 {
		return nil, cperrors.SourceFetch(fmt.Sprintf("twitter: provider returned status %d", resp.StatusCode), nil)
	}

	var result twitterTweetsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, cperrors.SourceFetch("twitter: decode response failed", err)
	}

	var items []persistence.ContentItem
	for _, tw := range result.Data {
		published := parseFeedTime(tw.CreatedAt)
		if since != nil && published != nil && !published.After(*since) {
			continue
		}
		link := fmt.Sprintf("https://twitter.com/i/web/status/%s", tw.ID)
		items = append(items, persistence.ContentItem{
			SourceID:    c.sourceID,
			ContentType: "post",
			Title:       firstLine(tw.Text),
			Content:     tw.Text,
			URL:         link,
			PublishedAt: published,
			Metadata: map[string]any{
				"tweet_id":   tw.ID,
				"query_type": c.queryType(),
			},
		})
	}
	return items, nil
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	if len(s) > 80 {
		return s[:80]
	}
	return s
}

type twitterTweetsResponse struct {
	Data []struct {
		ID        string `json:"id"`
		Text      string `json:"text"`
		CreatedAt string `json:"created_at"`
	} `json:"data"`
}
