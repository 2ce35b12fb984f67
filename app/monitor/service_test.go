package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/krailo/streamwatch/app/database"
	"github.com/krailo/streamwatch/app/youtube"
)

type mockChannelRepo struct {
	lastChecked []string
	lastLive    []string
}

func (m *mockChannelRepo) UpsertChannel(channelID, name, url string, intervalMinutes int) (string, bool, error) {
	return "", false, nil
}

func (m *mockChannelRepo) GetChannel(channelID string) (*database.Channel, error) { return nil, nil }

func (m *mockChannelRepo) GetChannelByID(id string) (*database.Channel, error) { return nil, nil }

func (m *mockChannelRepo) GetActiveChannels() ([]database.Channel, error) { return nil, nil }

func (m *mockChannelRepo) SetChannelActive(channelID string, active bool) error { return nil }

func (m *mockChannelRepo) UpdateLastChecked(id string, at time.Time) error {
	m.lastChecked = append(m.lastChecked, id)
	return nil
}

func (m *mockChannelRepo) UpdateLastLive(id string, at time.Time) error {
	m.lastLive = append(m.lastLive, id)
	return nil
}

func (m *mockChannelRepo) UpdateCheckInterval(id string, minutes int) error { return nil }

func (m *mockChannelRepo) GetChannelCount() (int, error) { return 0, nil }

type mockPoller struct {
	candidates []youtube.Candidate
	err        error
}

func (m *mockPoller) PollChannel(ctx context.Context, channelID string) ([]youtube.Candidate, error) {
	return m.candidates, m.err
}

type mockClassifier struct {
	verdicts map[string]Classification
}

func (m *mockClassifier) Classify(channelID string, candidate youtube.Candidate) Classification {
	if v, ok := m.verdicts[candidate.VideoID]; ok {
		return v
	}
	return Classification{Kind: KindNone}
}

type mockLifecycle struct {
	created     []string
	transitions []string
}

func (m *mockLifecycle) Transition(b *database.Broadcast, to string) error {
	m.transitions = append(m.transitions, b.VideoID+"->"+to)
	return nil
}

func (m *mockLifecycle) Created(b *database.Broadcast) {
	m.created = append(m.created, b.VideoID)
}

func testChannel() *database.Channel {
	return &database.Channel{
		ID:        "ch-1",
		ChannelID: "UC123",
		Name:      "Test Channel",
		IsActive:  true,
	}
}

func TestCheckChannelRegistersNewBroadcast(t *testing.T) {
	channels := &mockChannelRepo{}
	broadcasts := &mockBroadcastRepo{byVideoID: map[string]*database.Broadcast{}}
	lc := &mockLifecycle{}
	svc := NewService(channels, broadcasts, &mockPoller{candidates: []youtube.Candidate{
		{VideoID: "abc", Title: "Morning News", URL: youtube.WatchURL("abc")},
	}}, &mockClassifier{}, lc)

	if err := svc.CheckChannel(context.Background(), testChannel()); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if len(broadcasts.created) != 1 || broadcasts.created[0].VideoID != "abc" {
		t.Fatalf("Expected broadcast abc created, got %+v", broadcasts.created)
	}
	if len(lc.created) != 1 || lc.created[0] != "abc" {
		t.Errorf("Expected lifecycle notified of abc, got %v", lc.created)
	}
	if len(channels.lastChecked) != 1 {
		t.Error("Expected last_checked_at updated")
	}
	if len(channels.lastLive) != 1 {
		t.Error("Expected last_live_at updated when channel is live")
	}
}

func TestCheckChannelSkipsDuplicates(t *testing.T) {
	broadcasts := &mockBroadcastRepo{byVideoID: map[string]*database.Broadcast{}}
	lc := &mockLifecycle{}
	classifier := &mockClassifier{verdicts: map[string]Classification{
		"dup": {IsDuplicate: true, Kind: KindSimilar, Confidence: 0.9},
	}}
	svc := NewService(&mockChannelRepo{}, broadcasts, &mockPoller{candidates: []youtube.Candidate{
		{VideoID: "dup", Title: "Morning News"},
	}}, classifier, lc)

	if err := svc.CheckChannel(context.Background(), testChannel()); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if len(broadcasts.created) != 0 {
		t.Errorf("Expected duplicate suppressed, got created %+v", broadcasts.created)
	}
	if len(lc.created) != 0 {
		t.Errorf("Expected no lifecycle announcement, got %v", lc.created)
	}
}

func TestCheckChannelEndsAbsentBroadcast(t *testing.T) {
	broadcasts := &mockBroadcastRepo{
		byVideoID: map[string]*database.Broadcast{},
		tracked: []database.Broadcast{
			{ID: "b1", VideoID: "gone", Title: "Finished Show", Status: database.BroadcastLive},
		},
	}
	lc := &mockLifecycle{}
	svc := NewService(&mockChannelRepo{}, broadcasts, &mockPoller{}, &mockClassifier{}, lc)

	if err := svc.CheckChannel(context.Background(), testChannel()); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if len(lc.transitions) != 1 || lc.transitions[0] != "gone->"+database.BroadcastEnded {
		t.Fatalf("Expected gone marked ended, got %v", lc.transitions)
	}
}

func TestCheckChannelLeavesDownloadingBroadcastsAlone(t *testing.T) {
	broadcasts := &mockBroadcastRepo{
		byVideoID: map[string]*database.Broadcast{},
		tracked: []database.Broadcast{
			{ID: "b1", VideoID: "dl", Title: "Being Saved", Status: database.BroadcastDownloading},
		},
	}
	lc := &mockLifecycle{}
	svc := NewService(&mockChannelRepo{}, broadcasts, &mockPoller{}, &mockClassifier{}, lc)

	if err := svc.CheckChannel(context.Background(), testChannel()); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if len(lc.transitions) != 0 {
		t.Errorf("Expected downloading broadcast untouched, got %v", lc.transitions)
	}
}

func TestCheckChannelIgnoresAlreadyTrackedLive(t *testing.T) {
	broadcasts := &mockBroadcastRepo{
		byVideoID: map[string]*database.Broadcast{},
		tracked: []database.Broadcast{
			{ID: "b1", VideoID: "abc", Title: "Morning News", Status: database.BroadcastLive},
		},
	}
	lc := &mockLifecycle{}
	svc := NewService(&mockChannelRepo{}, broadcasts, &mockPoller{candidates: []youtube.Candidate{
		{VideoID: "abc", Title: "Morning News"},
	}}, &mockClassifier{}, lc)

	if err := svc.CheckChannel(context.Background(), testChannel()); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if len(broadcasts.created) != 0 {
		t.Errorf("Expected no duplicate row for tracked broadcast, got %+v", broadcasts.created)
	}
	if len(lc.transitions) != 0 {
		t.Errorf("Expected no transition for still-live broadcast, got %v", lc.transitions)
	}
}
