package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const apiBaseURL = "https://www.googleapis.com/youtube/v3"

// DataAPISource is the quota-limited primary source (YouTube Data API
// v3). Every search costs 100 quota units, so the poller only reaches
// for it when feed and probe both came up empty and the circuit
// breaker permits.
type DataAPISource struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	userAgent  string
	timeout    time.Duration
}

var _ APISource = (*DataAPISource)(nil)

func NewDataAPISource(httpClient *http.Client, apiKey, userAgent string, timeout time.Duration) *DataAPISource {
	return &DataAPISource{
		httpClient: httpClient,
		apiKey:     apiKey,
		baseURL:    apiBaseURL,
		userAgent:  userAgent,
		timeout:    timeout,
	}
}

// Available reports whether an API key is configured at all.
func (s *DataAPISource) Available() bool {
	return s.apiKey != ""
}

type apiErrorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Errors  []struct {
			Reason string `json:"reason"`
		} `json:"errors"`
	} `json:"error"`
}

type searchResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet apiSnippet `json:"snippet"`
	} `json:"items"`
}

type videosResponse struct {
	Items []struct {
		ID      string     `json:"id"`
		Snippet apiSnippet `json:"snippet"`
	} `json:"items"`
}

type apiSnippet struct {
	Title                string `json:"title"`
	LiveBroadcastContent string `json:"liveBroadcastContent"`
	Thumbnails           struct {
		High struct {
			URL string `json:"url"`
		} `json:"high"`
	} `json:"thumbnails"`
}

func (s *DataAPISource) LookupLive(ctx context.Context, channelID string) ([]VideoInfo, error) {
	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("channelId", channelID)
	params.Set("eventType", "live")
	params.Set("type", "video")
	params.Set("key", s.apiKey)

	data, err := s.get(ctx, "lookup_live", "/search", params)
	if err != nil {
		return nil, err
	}

	var resp searchResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse search response: %w", err)
	}

	infos := make([]VideoInfo, 0, len(resp.Items))
	for _, item := range resp.Items {
		infos = append(infos, VideoInfo{
			VideoID:      item.ID.VideoID,
			Title:        item.Snippet.Title,
			URL:          WatchURL(item.ID.VideoID),
			ThumbnailURL: item.Snippet.Thumbnails.High.URL,
			IsLive:       true,
			Availability: "public",
		})
	}

	return infos, nil
}

func (s *DataAPISource) LookupVideo(ctx context.Context, videoID string) (*VideoInfo, error) {
	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("id", videoID)
	params.Set("key", s.apiKey)

	data, err := s.get(ctx, "lookup_video", "/videos", params)
	if err != nil {
		return nil, err
	}

	var resp videosResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse videos response: %w", err)
	}

	if len(resp.Items) == 0 {
		return nil, nil
	}

	item := resp.Items[0]
	return &VideoInfo{
		VideoID:      item.ID,
		Title:        item.Snippet.Title,
		URL:          WatchURL(item.ID),
		ThumbnailURL: item.Snippet.Thumbnails.High.URL,
		IsLive:       item.Snippet.LiveBroadcastContent == "live",
		Availability: "public",
	}, nil
}

func (s *DataAPISource) get(ctx context.Context, operation, path string, params url.Values) ([]byte, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, "GET", s.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call youtube api: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, s.apiError(operation, resp.StatusCode, data)
	}

	return data, nil
}

// apiError maps a non-200 response to an error, recognizing the
// quotaExceeded reason the Data API reports on exhaustion.
func (s *DataAPISource) apiError(operation string, status int, body []byte) error {
	var parsed apiErrorBody
	if err := json.Unmarshal(body, &parsed); err == nil {
		for _, e := range parsed.Error.Errors {
			if e.Reason == "quotaExceeded" || e.Reason == "dailyLimitExceeded" {
				return &QuotaError{Operation: operation, Message: parsed.Error.Message}
			}
		}
		if parsed.Error.Message != "" {
			return fmt.Errorf("youtube api error (%d): %s", status, parsed.Error.Message)
		}
	}
	return fmt.Errorf("youtube api HTTP error: %d", status)
}
