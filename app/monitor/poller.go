package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/krailo/streamwatch/app/youtube"
)

const (
	// Feed entries older than this are not worth probing; a live
	// broadcast shows up in the feed within minutes of starting.
	feedFreshnessWindow = time.Hour
	// Each probe shells out to yt-dlp, so only the newest entries
	// are checked.
	maxFeedProbes = 2
)

// Poller discovers live broadcasts through a fallback ladder of
// sources ordered by cost: RSS feed probing, the channel's live page,
// and finally the quota-limited API when the gate permits it.
type Poller struct {
	feed  youtube.FeedSource
	probe youtube.ProbeSource
	api   youtube.APISource
	gate  QuotaGate
	now   func() time.Time
}

var _ ChannelPoller = (*Poller)(nil)

func NewPoller(feed youtube.FeedSource, probe youtube.ProbeSource, api youtube.APISource, gate QuotaGate) *Poller {
	return &Poller{
		feed:  feed,
		probe: probe,
		api:   api,
		gate:  gate,
		now:   time.Now,
	}
}

// PollChannel returns the broadcasts currently live on the channel.
// Individual strategy failures are logged and the next strategy tried;
// an error is returned only when every strategy failed.
func (p *Poller) PollChannel(ctx context.Context, channelID string) ([]youtube.Candidate, error) {
	succeeded := 0
	var firstErr error

	candidates, err := p.pollFeed(ctx, channelID)
	if err != nil {
		slog.Debug("Feed strategy failed", "channel_id", channelID, "error", err)
		firstErr = err
	} else {
		succeeded++
	}
	if len(candidates) > 0 {
		return dedupe(candidates), nil
	}

	candidates, err = p.pollLivePage(ctx, channelID)
	if err != nil {
		slog.Debug("Live page strategy failed", "channel_id", channelID, "error", err)
		if firstErr == nil {
			firstErr = err
		}
	} else {
		succeeded++
	}
	if len(candidates) > 0 {
		return dedupe(candidates), nil
	}

	candidates, err = p.pollAPI(ctx, channelID)
	if err != nil {
		slog.Debug("API strategy failed", "channel_id", channelID, "error", err)
		if firstErr == nil {
			firstErr = err
		}
	} else {
		succeeded++
	}
	if len(candidates) > 0 {
		return dedupe(candidates), nil
	}

	// An empty result is only an error when no strategy managed to
	// answer at all.
	if succeeded == 0 && firstErr != nil {
		return nil, fmt.Errorf("all poll strategies failed for %s: %w", channelID, firstErr)
	}
	return nil, nil
}

// pollFeed probes the newest fresh feed entries for live status.
func (p *Poller) pollFeed(ctx context.Context, channelID string) ([]youtube.Candidate, error) {
	items, err := p.feed.FetchRecentItems(ctx, channelID)
	if err != nil {
		return nil, err
	}

	cutoff := p.now().Add(-feedFreshnessWindow)
	probed := 0

	var live []youtube.Candidate
	for _, item := range items {
		if probed >= maxFeedProbes {
			break
		}
		if item.PublishedAt.Before(cutoff) {
			continue
		}
		probed++

		info, err := p.probe.ProbeVideo(ctx, item.VideoID)
		if err != nil {
			slog.Debug("Feed item probe failed", "video_id", item.VideoID, "error", err)
			continue
		}
		if info.IsLive {
			live = append(live, toCandidate(info))
		}
	}

	return live, nil
}

func (p *Poller) pollLivePage(ctx context.Context, channelID string) ([]youtube.Candidate, error) {
	infos, err := p.probe.ProbeChannelLive(ctx, channelID)
	if err != nil {
		return nil, err
	}

	var live []youtube.Candidate
	for i := range infos {
		if infos[i].IsLive {
			live = append(live, toCandidate(&infos[i]))
		}
	}
	return live, nil
}

// pollAPI consults the quota-limited source, but only when the gate
// has not routed traffic away from it.
func (p *Poller) pollAPI(ctx context.Context, channelID string) ([]youtube.Candidate, error) {
	if p.api == nil {
		return nil, nil
	}
	if p.gate.ShouldUseSecondary() {
		slog.Debug("Skipping API lookup, breaker routed to secondary", "channel_id", channelID)
		return nil, nil
	}

	infos, err := p.api.LookupLive(ctx, channelID)
	if err != nil {
		p.gate.RecordFailure("lookup_live", err)
		return nil, err
	}
	p.gate.RecordSuccess("lookup_live")

	var live []youtube.Candidate
	for i := range infos {
		if infos[i].IsLive {
			live = append(live, toCandidate(&infos[i]))
		}
	}
	return live, nil
}

func toCandidate(info *youtube.VideoInfo) youtube.Candidate {
	return youtube.Candidate{
		VideoID:      info.VideoID,
		Title:        info.Title,
		URL:          info.URL,
		ThumbnailURL: info.ThumbnailURL,
	}
}

func dedupe(candidates []youtube.Candidate) []youtube.Candidate {
	seen := make(map[string]struct{}, len(candidates))
	out := candidates[:0]
	for _, c := range candidates {
		if _, ok := seen[c.VideoID]; ok {
			continue
		}
		seen[c.VideoID] = struct{}{}
		out = append(out, c)
	}
	return out
}
