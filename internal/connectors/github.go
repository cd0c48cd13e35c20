package connectors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/creatorpulse/creatorpulse/internal/cperrors"
	"github.com/creatorpulse/creatorpulse/internal/persistence"
)

const githubAPIBase = "https://api.github.com"

func newGitHubFactory(client *http.Client) Factory {
	return func(sourceID string, config map[string]any, credentials map[string]string) Connector {
		return &githubConnector{sourceID: sourceID, config: config, credentials: credentials, client: client}
	}
}

type githubConnector struct {
	sourceID    string
	config      map[string]any
	credentials map[string]string
	client      *http.Client
}

func (c *githubConnector) Kind() string                 { return "github" }
func (c *githubConnector) RequiredCredentials() []string { return []string{"token"} }
func (c *githubConnector) RequiredConfig() []string      { return []string{"owner_repo", "fetch_type"} }

func (c *githubConnector) ownerRepo() string {
	v, _ := c.config["owner_repo"].(string)
	return strings.TrimSpace(v)
}

func (c *githubConnector) fetchType() string {
	v, _ := c.config["fetch_type"].(string)
	switch v {
	case "commits", "issues", "pull_requests":
		return v
	default:
		return "releases"
	}
}

func (c *githubConnector) maxResults() int {
	if v, ok := c.config["max_results"].(float64); ok && v > 0 {
		return int(v)
	}
	return 25
}

func (c *githubConnector) Validate(ctx context.Context) error {
	if c.credentials["token"] == "" {
		return cperrors.Validation("github: missing required credential token")
	}
	ownerRepo := c.ownerRepo()
	if !strings.Contains(ownerRepo, "/") {
		return cperrors.Validation("github: owner_repo must be in owner/repo form")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, githubAPIBase+"/repos/"+ownerRepo, nil)
	if err != nil {
		return cperrors.SourceFetch("github: build request failed", err)
	}
	c.authorize(req)
	resp, err := c.client.Do(req)
	if err != nil {
		return cperrors.SourceFetch("github: request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return cperrors.Validation(fmt.Sprintf("github: repository %q not found", ownerRepo))
	}
	if resp.StatusCode >= 400 {
		return cperrors.SourceFetch(fmt.Sprintf("github: provider returned status %d", resp.StatusCode), nil)
	}
	return nil
}

func (c *githubConnector) authorize(req *http.Request) {
	if token := c.credentials["token"]; token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
}

func (c *githubConnector) Fetch(ctx context.Context, since *time.Time) ([]persistence.ContentItem, error) {
	path := fmt.Sprintf("/repos/%s/%s?per_page=%d", c.ownerRepo(), githubEndpointFor(c.fetchType()), c.maxResults())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, githubAPIBase+path, nil)
	if err != nil {
		return nil, cperrors.SourceFetch("github: build request failed", err)
	}
	c.authorize(req)
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, cperrors.SourceFetch("github: request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests {
		return nil, cperrors.RateLimit("github: provider rate limit exceeded")
	}
	if resp.StatusCode >= 400 {
		return nil, cperrors.SourceFetch(fmt.Sprintf("github: provider returned status %d", resp.StatusCode), nil)
	}

	var raw []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, cperrors.SourceFetch("github: decode response failed", err)
	}

	var items []persistence.ContentItem
	for _, entry := range raw {
		item, ok := c.fromEntry(entry, since)
		if ok {
			items = append(items, item)
		}
	}
	return items, nil
}

func githubEndpointFor(fetchType string) string {
	switch fetchType {
	case "commits":
		return "commits"
	case "issues":
		return "issues"
	case "pull_requests":
		return "pulls"
	default:
		return "releases"
	}
}

func (c *githubConnector) fromEntry(entry map[string]any, since *time.Time) (persistence.ContentItem, bool) {
	link, _ := entry["html_url"].(string)
	if link == "" {
		return persistence.ContentItem{}, false
	}
	title := stringField(entry, "title", "name")
	body := stringField(entry, "body", "commit.message")
	dateStr := stringField(entry, "published_at", "created_at")
	published := parseFeedTime(dateStr)
	if since != nil && published != nil && !published.After(*since) {
		return persistence.ContentItem{}, false
	}
	number := 0
	if n, ok := entry["number"].(float64); ok {
		number = int(n)
	}
	return persistence.ContentItem{
		SourceID:    c.sourceID,
		ContentType: "code",
		Title:       title,
		Content:     body,
		URL:         link,
		PublishedAt: published,
		Metadata: map[string]any{
			"owner_repo": c.ownerRepo(),
			"fetch_type": c.fetchType(),
			"number":     strconv.Itoa(number),
		},
	}, true
}

func stringField(entry map[string]any, keys ...string) string {
	for _, key := range keys {
		if strings.Contains(key, ".") {
			parts := strings.SplitN(key, ".", 2)
			if nested, ok := entry[parts[0]].(map[string]any); ok {
				if v, ok := nested[parts[1]].(string); ok && v != "" {
					return v
				}
			}
			continue
		}
		if v, ok := entry[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
