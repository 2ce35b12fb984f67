package youtube

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"
)

// RSSFeedSource reads the channel's public RSS feed. YouTube serves
// one per channel without authentication, so this is the cheapest way
// to notice new uploads and freshly started broadcasts.
type RSSFeedSource struct {
	httpClient *http.Client
	parser     *gofeed.Parser
	userAgent  string
	timeout    time.Duration
}

var _ FeedSource = (*RSSFeedSource)(nil)

func NewRSSFeedSource(httpClient *http.Client, userAgent string, timeout time.Duration) *RSSFeedSource {
	return &RSSFeedSource{
		httpClient: httpClient,
		parser:     gofeed.NewParser(),
		userAgent:  userAgent,
		timeout:    timeout,
	}
}

func (s *RSSFeedSource) FetchRecentItems(ctx context.Context, channelID string) ([]FeedItem, error) {
	data, err := s.fetch(ctx, FeedURL(channelID))
	if err != nil {
		return nil, err
	}

	feed, err := s.parser.ParseString(string(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse channel feed: %w", err)
	}

	items := make([]FeedItem, 0, len(feed.Items))
	for _, item := range feed.Items {
		fi := FeedItem{
			VideoID: extractVideoID(item),
			Title:   item.Title,
		}
		if item.PublishedParsed != nil {
			fi.PublishedAt = *item.PublishedParsed
		}
		if fi.VideoID == "" {
			continue
		}
		items = append(items, fi)
	}

	return items, nil
}

func (s *RSSFeedSource) fetch(ctx context.Context, url string) ([]byte, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return data, nil
}

// extractVideoID pulls the video ID from the feed entry. YouTube
// publishes it in the yt:videoId extension; the entry GUID
// ("yt:video:<id>") is the fallback.
func extractVideoID(item *gofeed.Item) string {
	if ext, ok := item.Extensions["yt"]; ok {
		if ids, ok := ext["videoId"]; ok && len(ids) > 0 {
			return ids[0].Value
		}
	}

	const guidPrefix = "yt:video:"
	if len(item.GUID) > len(guidPrefix) && item.GUID[:len(guidPrefix)] == guidPrefix {
		return item.GUID[len(guidPrefix):]
	}

	return ""
}
