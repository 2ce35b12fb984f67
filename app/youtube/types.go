package youtube

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Candidate is a live broadcast observation reported by the poller.
type Candidate struct {
	VideoID      string
	Title        string
	URL          string
	ThumbnailURL string
}

// FeedItem is one entry of a channel's public RSS feed.
type FeedItem struct {
	VideoID     string
	Title       string
	PublishedAt time.Time
}

// VideoInfo is the probed or looked-up state of a single video.
type VideoInfo struct {
	VideoID      string
	Title        string
	URL          string
	ThumbnailURL string
	IsLive       bool
	Availability string // "public", "private", "unavailable", ...
}

// Accessible reports whether the video can currently be downloaded.
func (v *VideoInfo) Accessible() bool {
	return v.Availability != "private" && v.Availability != "unavailable"
}

// FeedSource fetches a channel's public feed of recent items. No
// quota cost.
type FeedSource interface {
	FetchRecentItems(ctx context.Context, channelID string) ([]FeedItem, error)
}

// ProbeSource checks live status by probing single videos or the
// channel's live page. No quota cost.
type ProbeSource interface {
	ProbeVideo(ctx context.Context, videoID string) (*VideoInfo, error)
	ProbeChannelLive(ctx context.Context, channelID string) ([]VideoInfo, error)
}

// APISource is the quota-limited primary data source. Its errors may
// carry quota exhaustion, recognized by IsQuotaError.
type APISource interface {
	LookupLive(ctx context.Context, channelID string) ([]VideoInfo, error)
	LookupVideo(ctx context.Context, videoID string) (*VideoInfo, error)
}

// QuotaError signals that the primary source's daily quota is
// exhausted.
type QuotaError struct {
	Operation string
	Message   string
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("youtube api quota exceeded during %s: %s", e.Operation, e.Message)
}

// IsQuotaError reports whether the error indicates quota exhaustion,
// either as a typed QuotaError or by error text.
func IsQuotaError(err error) bool {
	if err == nil {
		return false
	}
	if _, ok := err.(*QuotaError); ok {
		return true
	}
	text := strings.ToLower(err.Error())
	return strings.Contains(text, "quotaexceeded") || strings.Contains(text, "quota")
}

func WatchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}

func ChannelLiveURL(channelID string) string {
	return "https://www.youtube.com/channel/" + channelID + "/live"
}

func FeedURL(channelID string) string {
	return "https://www.youtube.com/feeds/videos.xml?channel_id=" + channelID
}
