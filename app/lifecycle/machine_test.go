package lifecycle

import (
	"errors"
	"testing"
	"time"

	"github.com/krailo/streamwatch/app/database"
)

type mockBroadcastRepo struct {
	updates   []string
	updateErr error
	lastEnded *time.Time
}

func (m *mockBroadcastRepo) CreateBroadcast(channelID, videoID, title, url, thumbnailURL string, startedAt time.Time) (*database.Broadcast, bool, error) {
	return nil, false, nil
}

func (m *mockBroadcastRepo) GetBroadcast(videoID string) (*database.Broadcast, error) {
	return nil, nil
}

func (m *mockBroadcastRepo) GetBroadcastByID(id string) (*database.Broadcast, error) {
	return nil, nil
}

func (m *mockBroadcastRepo) GetBroadcastsByStatus(channelID string, statuses []string) ([]database.Broadcast, error) {
	return nil, nil
}

func (m *mockBroadcastRepo) GetRecentBroadcasts(channelID string, since time.Time) ([]database.Broadcast, error) {
	return nil, nil
}

func (m *mockBroadcastRepo) GetFinishedBroadcasts(channelID string, since time.Time) ([]database.Broadcast, error) {
	return nil, nil
}

func (m *mockBroadcastRepo) CountLiveSince(channelID string, since time.Time) (int, error) {
	return 0, nil
}

func (m *mockBroadcastRepo) UpdateStatus(id, status string, endedAt *time.Time) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.updates = append(m.updates, id+":"+status)
	m.lastEnded = endedAt
	return nil
}

func (m *mockBroadcastRepo) SetNotificationSent(id string) error { return nil }

func (m *mockBroadcastRepo) GetRetryableBroadcasts(endedSince time.Time, maxAttempts int) ([]database.Broadcast, error) {
	return nil, nil
}

func (m *mockBroadcastRepo) GetStalledDownloading(updatedBefore time.Time) ([]database.Broadcast, error) {
	return nil, nil
}

func (m *mockBroadcastRepo) UpdateRetryState(id string, retryCount int, lastRetryAt time.Time, retryEnabled bool) error {
	return nil
}

func (m *mockBroadcastRepo) CountByStatus() (map[string]int, error) { return nil, nil }

type recordingSubscriber struct {
	events []Event
}

func (r *recordingSubscriber) OnBroadcastEvent(event Event) {
	r.events = append(r.events, event)
}

func liveBroadcast() *database.Broadcast {
	return &database.Broadcast{
		ID:        "b1",
		VideoID:   "abc",
		Title:     "Morning News",
		Status:    database.BroadcastLive,
		StartedAt: time.Now().Add(-time.Hour),
	}
}

func TestTransitionLiveToEnded(t *testing.T) {
	repo := &mockBroadcastRepo{}
	m := NewMachine(repo)
	sub := &recordingSubscriber{}
	m.Subscribe(sub)

	b := liveBroadcast()
	if err := m.Transition(b, database.BroadcastEnded); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if b.Status != database.BroadcastEnded {
		t.Errorf("Expected status %s, got %s", database.BroadcastEnded, b.Status)
	}
	if b.EndedAt == nil {
		t.Error("Expected ended_at stamped on first end")
	}
	if repo.lastEnded == nil {
		t.Error("Expected ended_at persisted")
	}
	if len(sub.events) != 1 {
		t.Fatalf("Expected one event, got %d", len(sub.events))
	}
	if sub.events[0].From != database.BroadcastLive || sub.events[0].To != database.BroadcastEnded {
		t.Errorf("Unexpected event %+v", sub.events[0])
	}
}

func TestTransitionPreservesOriginalEndTime(t *testing.T) {
	repo := &mockBroadcastRepo{}
	m := NewMachine(repo)

	ended := time.Now().Add(-30 * time.Minute)
	b := liveBroadcast()
	b.Status = database.BroadcastDownloading
	b.EndedAt = &ended

	if err := m.Transition(b, database.BroadcastEnded); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if repo.lastEnded != nil {
		t.Error("Expected existing ended_at left untouched")
	}
	if !b.EndedAt.Equal(ended) {
		t.Errorf("Expected ended_at preserved, got %v", b.EndedAt)
	}
}

func TestTransitionFullDownloadPath(t *testing.T) {
	m := NewMachine(&mockBroadcastRepo{})

	b := liveBroadcast()
	steps := []string{
		database.BroadcastEnded,
		database.BroadcastDownloading,
		database.BroadcastCompleted,
	}
	for _, to := range steps {
		if err := m.Transition(b, to); err != nil {
			t.Fatalf("Expected transition to %s to succeed, got %v", to, err)
		}
	}
	if b.Status != database.BroadcastCompleted {
		t.Errorf("Expected final status %s, got %s", database.BroadcastCompleted, b.Status)
	}
}

func TestTransitionFailedReentersDownloading(t *testing.T) {
	m := NewMachine(&mockBroadcastRepo{})

	b := liveBroadcast()
	b.Status = database.BroadcastFailed

	if err := m.Transition(b, database.BroadcastDownloading); err != nil {
		t.Fatalf("Expected failed -> downloading to be legal, got %v", err)
	}
}

func TestTransitionRejectsIllegalMoves(t *testing.T) {
	m := NewMachine(&mockBroadcastRepo{})

	illegal := []struct {
		from string
		to   string
	}{
		{database.BroadcastLive, database.BroadcastCompleted},
		{database.BroadcastLive, database.BroadcastDownloading},
		{database.BroadcastEnded, database.BroadcastLive},
		{database.BroadcastCompleted, database.BroadcastDownloading},
		{database.BroadcastCompleted, database.BroadcastLive},
		{database.BroadcastFailed, database.BroadcastCompleted},
	}

	for _, tt := range illegal {
		b := liveBroadcast()
		b.Status = tt.from
		err := m.Transition(b, tt.to)
		if !errors.Is(err, ErrIllegalTransition) {
			t.Errorf("Expected ErrIllegalTransition for %s -> %s, got %v", tt.from, tt.to, err)
		}
		if b.Status != tt.from {
			t.Errorf("Expected status unchanged after illegal move, got %s", b.Status)
		}
	}
}

func TestTransitionPersistFailureLeavesStateUnchanged(t *testing.T) {
	repo := &mockBroadcastRepo{updateErr: errors.New("database locked")}
	m := NewMachine(repo)
	sub := &recordingSubscriber{}
	m.Subscribe(sub)

	b := liveBroadcast()
	if err := m.Transition(b, database.BroadcastEnded); err == nil {
		t.Fatal("Expected persistence error surfaced")
	}
	if b.Status != database.BroadcastLive {
		t.Errorf("Expected in-memory status unchanged, got %s", b.Status)
	}
	if len(sub.events) != 0 {
		t.Errorf("Expected no events on failed persist, got %d", len(sub.events))
	}
}

func TestCreatedAnnouncesInitialState(t *testing.T) {
	m := NewMachine(&mockBroadcastRepo{})
	sub := &recordingSubscriber{}
	m.Subscribe(sub)

	b := liveBroadcast()
	m.Created(b)

	if len(sub.events) != 1 {
		t.Fatalf("Expected one event, got %d", len(sub.events))
	}
	if sub.events[0].From != "" || sub.events[0].To != database.BroadcastLive {
		t.Errorf("Unexpected announcement event %+v", sub.events[0])
	}
}
