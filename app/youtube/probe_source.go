package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lrstanley/go-ytdlp"
)

// YtdlpProbeSource checks live status through yt-dlp metadata
// extraction (--dump-single-json, no download). Slower than the RSS
// feed but works for videos the feed has not picked up yet, and costs
// no API quota.
type YtdlpProbeSource struct {
	timeout time.Duration
}

var _ ProbeSource = (*YtdlpProbeSource)(nil)

func NewYtdlpProbeSource(timeout time.Duration) *YtdlpProbeSource {
	return &YtdlpProbeSource{timeout: timeout}
}

// probedInfo mirrors the subset of yt-dlp's JSON output this package
// consumes. A channel /live page probe comes back as a playlist with
// entries.
type probedInfo struct {
	Type         string       `json:"_type"`
	ID           string       `json:"id"`
	Title        string       `json:"title"`
	WebpageURL   string       `json:"webpage_url"`
	Thumbnail    string       `json:"thumbnail"`
	IsLive       bool         `json:"is_live"`
	Availability string       `json:"availability"`
	Entries      []probedInfo `json:"entries"`
}

func (p *YtdlpProbeSource) ProbeVideo(ctx context.Context, videoID string) (*VideoInfo, error) {
	info, err := p.extract(ctx, WatchURL(videoID))
	if err != nil {
		return nil, err
	}

	v := toVideoInfo(info)
	if v.VideoID == "" {
		v.VideoID = videoID
	}
	if v.URL == "" {
		v.URL = WatchURL(videoID)
	}
	return v, nil
}

// ProbeChannelLive probes the channel's /live page. The page resolves
// to the single current broadcast, or to a playlist when the channel
// runs several at once; at most three entries are considered.
func (p *YtdlpProbeSource) ProbeChannelLive(ctx context.Context, channelID string) ([]VideoInfo, error) {
	info, err := p.extract(ctx, ChannelLiveURL(channelID))
	if err != nil {
		return nil, err
	}

	var live []VideoInfo
	if len(info.Entries) > 0 {
		for i, entry := range info.Entries {
			if i >= 3 {
				break
			}
			if entry.IsLive {
				v := toVideoInfo(&entry)
				if v.URL == "" {
					v.URL = WatchURL(v.VideoID)
				}
				live = append(live, *v)
			}
		}
		return live, nil
	}

	if info.IsLive {
		live = append(live, *toVideoInfo(info))
	}
	return live, nil
}

func (p *YtdlpProbeSource) extract(ctx context.Context, url string) (*probedInfo, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	dl := ytdlp.New().
		SkipDownload().
		DumpSingleJSON().
		NoWarnings()

	result, err := dl.Run(timeoutCtx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to probe %s: %w", url, err)
	}

	var info probedInfo
	if err := json.Unmarshal([]byte(result.Stdout), &info); err != nil {
		return nil, fmt.Errorf("failed to parse probe output for %s: %w", url, err)
	}

	return &info, nil
}

func toVideoInfo(info *probedInfo) *VideoInfo {
	return &VideoInfo{
		VideoID:      info.ID,
		Title:        info.Title,
		URL:          info.WebpageURL,
		ThumbnailURL: info.Thumbnail,
		IsLive:       info.IsLive,
		Availability: info.Availability,
	}
}
