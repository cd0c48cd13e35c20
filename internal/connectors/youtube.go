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

const youtubeAPIBase = "https://www.googleapis.com/youtube/v3"

func newYouTubeFactory(client *http.Client) Factory {
	return func(sourceID string, config map[string]any, credentials map[string]string) Connector {
		return &youtubeConnector{sourceID: sourceID, config: config, credentials: credentials, client: client}
	}
}

type youtubeConnector struct {
	sourceID    string
	config      map[string]any
	credentials map[string]string
	client      *http.Client
}

func (c *youtubeConnector) Kind() string                 { return "youtube" }
func (c *youtubeConnector) RequiredCredentials() []string { return []string{"api_key"} }
func (c *youtubeConnector) RequiredConfig() []string      { return []string{"handle_or_channel_id", "fetch_type"} }

func (c *youtubeConnector) apiKey() string { return c.credentials["api_key"] }

func (c *youtubeConnector) maxResults() int {
	if v, ok := c.config["max_results"].(float64); ok && v > 0 {
		return int(v)
	}
	if v, ok := c.config["max_results"].(int); ok && v > 0 {
		return v
	}
	return 25
}

func (c *youtubeConnector) fetchType() string {
	if v, ok := c.config["fetch_type"].(string); ok && v != "" {
		return v
	}
	return "uploads"
}

// Validate resolves a @handle or channel_id into a concrete channel id via
// the provider, normalizing config in place so fetch() never re-resolves.
func (c *youtubeConnector) Validate(ctx context.Context) error {
	if c.apiKey() == "" {
		return cperrors.Validation("youtube: missing required credential api_key")
	}
	handleOrID, _ := c.config["handle_or_channel_id"].(string)
	handleOrID = strings.TrimSpace(handleOrID)
	if handleOrID == "" {
		return cperrors.Validation("youtube: missing required config field handle_or_channel_id")
	}
	channelID, err := c.resolveChannelID(ctx, handleOrID)
	if err != nil {
		return err
	}
	c.config["channel_id"] = channelID
	return nil
}

func (c *youtubeConnector) resolveChannelID(ctx context.Context, handleOrID string) (string, error) {
	if strings.HasPrefix(handleOrID, "UC") && len(handleOrID) == 24 {
		return handleOrID, nil
	}
	handle := strings.TrimPrefix(handleOrID, "@")
	q := url.Values{}
	q.Set("part", "id")
	q.Set("forHandle", handle)
	q.Set("key", c.apiKey())
	var result youtubeChannelListResponse
	if err := c.getJSON(ctx, "/channels", q, &result); err != nil {
		return "", err
	}
	if len(result.Items) == 0 {
		return "", cperrors.Validation(fmt.Sprintf("youtube: could not resolve channel for %q", handleOrID))
	}
	return result.Items[0].ID, nil
}

func (c *youtubeConnector) Fetch(ctx context.Context, since *time.Time) ([]persistence.ContentItem, error) {
	channelID, _ := c.config["channel_id"].(string)
	if channelID == "" {
		return nil, cperrors.Validation("youtube: source has not been validated (no channel_id)")
	}
	q := url.Values{}
	q.Set("part", "snippet")
	q.Set("channelId", channelID)
	q.Set("maxResults", strconv.Itoa(c.maxResults()))
	q.Set("order", "date")
	q.Set("type", "video")
	q.Set("key", c.apiKey())

	var result youtubeSearchListResponse
	if err := c.getJSON(ctx, "/search", q, &result); err != nil {
		return nil, err
	}

	var items []persistence.ContentItem
	for _, it := range result.Items {
		published := parseFeedTime(it.Snippet.PublishedAt)
		if since != nil && published != nil && !published.After(*since) {
			continue
		}
		videoURL := "https://www.youtube.com/watch?v=" + it.ID.VideoID
		items = append(items, persistence.ContentItem{
			SourceID:    c.sourceID,
			ContentType: "video",
			Title:       it.Snippet.Title,
			Content:     it.Snippet.Title + "\n\n" + it.Snippet.Description,
			URL:         videoURL,
			PublishedAt: published,
			Metadata: map[string]any{
				"video_id":   it.ID.VideoID,
				"channel_id": channelID,
				"fetch_type": c.fetchType(),
			},
		})
	}
	return items, nil
}

func (c *youtubeConnector) getJSON(ctx context.Context, path string, query url.Values, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, youtubeAPIBase+path+"?"+query.Encode(), nil)
	if err != nil {
		return cperrors.SourceFetch("youtube: build request failed", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return cperrors.SourceFetch("youtube: request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == 403 {
		return cperrors.RateLimit("youtube: provider rate limit exceeded")
	}
	if resp.StatusCode >= 400 {
		return cperrors.SourceFetch(fmt.Sprintf("youtube: provider returned status %d", resp.StatusCode), nil)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return cperrors.SourceFetch("youtube: decode response failed", err)
	}
	return nil
}

type youtubeChannelListResponse struct {
	Items []struct {
		ID string `json:"id"`
	} `json:"items"`
}

type youtubeSearchListResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet struct {
			Title       string `json:"title"`
			Description string `json:"description"`
			PublishedAt string `json:"publishedAt"`
		} `json:"snippet"`
	} `json:"items"`
}
