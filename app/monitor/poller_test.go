package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/krailo/streamwatch/app/youtube"
)

type mockFeedSource struct {
	items []youtube.FeedItem
	err   error
}

func (m *mockFeedSource) FetchRecentItems(ctx context.Context, channelID string) ([]youtube.FeedItem, error) {
	return m.items, m.err
}

type mockProbeSource struct {
	videos      map[string]*youtube.VideoInfo
	channelLive []youtube.VideoInfo
	probeErr    error
	liveErr     error
	probeCalls  int
}

func (m *mockProbeSource) ProbeVideo(ctx context.Context, videoID string) (*youtube.VideoInfo, error) {
	m.probeCalls++
	if m.probeErr != nil {
		return nil, m.probeErr
	}
	if info, ok := m.videos[videoID]; ok {
		return info, nil
	}
	return &youtube.VideoInfo{VideoID: videoID, Availability: "public"}, nil
}

func (m *mockProbeSource) ProbeChannelLive(ctx context.Context, channelID string) ([]youtube.VideoInfo, error) {
	return m.channelLive, m.liveErr
}

type mockAPISource struct {
	live  []youtube.VideoInfo
	err   error
	calls int
}

func (m *mockAPISource) LookupLive(ctx context.Context, channelID string) ([]youtube.VideoInfo, error) {
	m.calls++
	return m.live, m.err
}

func (m *mockAPISource) LookupVideo(ctx context.Context, videoID string) (*youtube.VideoInfo, error) {
	return nil, nil
}

type mockGate struct {
	secondary bool
	successes int
	failures  []error
}

func (m *mockGate) ShouldUseSecondary() bool { return m.secondary }

func (m *mockGate) RecordSuccess(operation string) { m.successes++ }

func (m *mockGate) RecordFailure(operation string, err error) {
	m.failures = append(m.failures, err)
}

func TestPollChannelFeedHit(t *testing.T) {
	feed := &mockFeedSource{items: []youtube.FeedItem{
		{VideoID: "abc", Title: "Morning News", PublishedAt: time.Now().Add(-10 * time.Minute)},
	}}
	probe := &mockProbeSource{videos: map[string]*youtube.VideoInfo{
		"abc": {VideoID: "abc", Title: "Morning News", URL: youtube.WatchURL("abc"), IsLive: true, Availability: "public"},
	}}
	api := &mockAPISource{}
	p := NewPoller(feed, probe, api, &mockGate{})

	candidates, err := p.PollChannel(context.Background(), "UC123")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(candidates) != 1 || candidates[0].VideoID != "abc" {
		t.Fatalf("Expected candidate abc from feed strategy, got %+v", candidates)
	}
	if api.calls != 0 {
		t.Error("Expected API untouched when feed strategy hits")
	}
}

func TestPollChannelSkipsStaleFeedItems(t *testing.T) {
	feed := &mockFeedSource{items: []youtube.FeedItem{
		{VideoID: "old", Title: "Yesterday", PublishedAt: time.Now().Add(-3 * time.Hour)},
	}}
	probe := &mockProbeSource{}
	p := NewPoller(feed, probe, &mockAPISource{}, &mockGate{})

	candidates, err := p.PollChannel(context.Background(), "UC123")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(candidates) != 0 {
		t.Errorf("Expected no candidates, got %+v", candidates)
	}
	if probe.probeCalls != 0 {
		t.Errorf("Expected stale feed items not probed, got %d probes", probe.probeCalls)
	}
}

func TestPollChannelFallsBackToLivePage(t *testing.T) {
	feed := &mockFeedSource{err: errors.New("feed unavailable")}
	probe := &mockProbeSource{channelLive: []youtube.VideoInfo{
		{VideoID: "xyz", Title: "Evening Show", URL: youtube.WatchURL("xyz"), IsLive: true, Availability: "public"},
	}}
	p := NewPoller(feed, probe, &mockAPISource{}, &mockGate{})

	candidates, err := p.PollChannel(context.Background(), "UC123")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(candidates) != 1 || candidates[0].VideoID != "xyz" {
		t.Fatalf("Expected candidate xyz from live page, got %+v", candidates)
	}
}

func TestPollChannelFallsBackToAPI(t *testing.T) {
	feed := &mockFeedSource{}
	probe := &mockProbeSource{}
	api := &mockAPISource{live: []youtube.VideoInfo{
		{VideoID: "api1", Title: "Late Night", URL: youtube.WatchURL("api1"), IsLive: true, Availability: "public"},
	}}
	gate := &mockGate{}
	p := NewPoller(feed, probe, api, gate)

	candidates, err := p.PollChannel(context.Background(), "UC123")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(candidates) != 1 || candidates[0].VideoID != "api1" {
		t.Fatalf("Expected candidate api1 from API, got %+v", candidates)
	}
	if gate.successes != 1 {
		t.Errorf("Expected one recorded success, got %d", gate.successes)
	}
}

func TestPollChannelSkipsAPIWhenGated(t *testing.T) {
	api := &mockAPISource{live: []youtube.VideoInfo{
		{VideoID: "api1", IsLive: true},
	}}
	p := NewPoller(&mockFeedSource{}, &mockProbeSource{}, api, &mockGate{secondary: true})

	candidates, err := p.PollChannel(context.Background(), "UC123")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(candidates) != 0 {
		t.Errorf("Expected no candidates with API gated off, got %+v", candidates)
	}
	if api.calls != 0 {
		t.Error("Expected API untouched when gate routes to secondary")
	}
}

func TestPollChannelQuotaErrorRecordedOnGate(t *testing.T) {
	api := &mockAPISource{err: &youtube.QuotaError{Operation: "lookup_live", Message: "quota exceeded"}}
	gate := &mockGate{}
	p := NewPoller(&mockFeedSource{}, &mockProbeSource{}, api, gate)

	candidates, err := p.PollChannel(context.Background(), "UC123")
	if err != nil {
		t.Fatalf("Expected quota failure swallowed after empty secondaries, got %v", err)
	}
	if len(candidates) != 0 {
		t.Errorf("Expected no candidates, got %+v", candidates)
	}
	if len(gate.failures) != 1 || !youtube.IsQuotaError(gate.failures[0]) {
		t.Fatalf("Expected quota error recorded on gate, got %+v", gate.failures)
	}
}

func TestPollChannelAllStrategiesFailed(t *testing.T) {
	feed := &mockFeedSource{err: errors.New("feed down")}
	probe := &mockProbeSource{liveErr: errors.New("probe down")}
	api := &mockAPISource{err: errors.New("api down")}
	p := NewPoller(feed, probe, api, &mockGate{})

	_, err := p.PollChannel(context.Background(), "UC123")
	if err == nil {
		t.Fatal("Expected error when every strategy fails")
	}
}
