package monitor

import (
	"errors"
	"testing"
	"time"

	"github.com/krailo/streamwatch/app/database"
	"github.com/krailo/streamwatch/app/youtube"
)

type mockBroadcastRepo struct {
	byVideoID map[string]*database.Broadcast
	recent    []database.Broadcast
	finished  []database.Broadcast
	tracked   []database.Broadcast
	created   []database.Broadcast
	getErr    error
}

func (m *mockBroadcastRepo) CreateBroadcast(channelID, videoID, title, url, thumbnailURL string, startedAt time.Time) (*database.Broadcast, bool, error) {
	if m.byVideoID != nil {
		if existing, ok := m.byVideoID[videoID]; ok {
			return existing, false, nil
		}
	}
	b := database.Broadcast{
		ID:        "gen-" + videoID,
		ChannelID: channelID,
		VideoID:   videoID,
		Title:     title,
		URL:       url,
		Status:    database.BroadcastLive,
		StartedAt: startedAt,
	}
	m.created = append(m.created, b)
	return &b, true, nil
}

func (m *mockBroadcastRepo) GetBroadcast(videoID string) (*database.Broadcast, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.byVideoID[videoID], nil
}

func (m *mockBroadcastRepo) GetBroadcastByID(id string) (*database.Broadcast, error) {
	return nil, nil
}

func (m *mockBroadcastRepo) GetBroadcastsByStatus(channelID string, statuses []string) ([]database.Broadcast, error) {
	return m.tracked, nil
}

func (m *mockBroadcastRepo) GetRecentBroadcasts(channelID string, since time.Time) ([]database.Broadcast, error) {
	return m.recent, nil
}

func (m *mockBroadcastRepo) GetFinishedBroadcasts(channelID string, since time.Time) ([]database.Broadcast, error) {
	return m.finished, nil
}

func (m *mockBroadcastRepo) CountLiveSince(channelID string, since time.Time) (int, error) {
	return 0, nil
}

func (m *mockBroadcastRepo) UpdateStatus(id, status string, endedAt *time.Time) error {
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

func TestClassifyNewBroadcast(t *testing.T) {
	d := NewDetector(&mockBroadcastRepo{byVideoID: map[string]*database.Broadcast{}})

	c := d.Classify("UC123", youtube.Candidate{VideoID: "abc", Title: "Morning News Special"})

	if c.IsDuplicate {
		t.Errorf("Expected new broadcast, got duplicate kind %s", c.Kind)
	}
	if c.Kind != KindNone {
		t.Errorf("Expected kind %s, got %s", KindNone, c.Kind)
	}
}

func TestClassifyExactDuplicate(t *testing.T) {
	existing := &database.Broadcast{ID: "b1", VideoID: "abc", Title: "Morning News"}
	d := NewDetector(&mockBroadcastRepo{byVideoID: map[string]*database.Broadcast{"abc": existing}})

	c := d.Classify("UC123", youtube.Candidate{VideoID: "abc", Title: "Morning News"})

	if !c.IsDuplicate || c.Kind != KindExact {
		t.Fatalf("Expected exact duplicate, got %+v", c)
	}
	if c.Confidence != 1.0 {
		t.Errorf("Expected confidence 1.0, got %f", c.Confidence)
	}
	if c.Existing == nil || c.Existing.ID != "b1" {
		t.Error("Expected existing broadcast b1")
	}
}

func TestClassifySimilarTitle(t *testing.T) {
	repo := &mockBroadcastRepo{
		byVideoID: map[string]*database.Broadcast{},
		recent: []database.Broadcast{
			{ID: "b1", VideoID: "abc", Title: "Morning News Special Broadcast Today"},
		},
	}
	d := NewDetector(repo)

	c := d.Classify("UC123", youtube.Candidate{VideoID: "xyz", Title: "Morning News Special Broadcast Today!"})

	if !c.IsDuplicate || c.Kind != KindSimilar {
		t.Fatalf("Expected similar duplicate, got %+v", c)
	}
	if c.Confidence < similarTitleThreshold {
		t.Errorf("Expected confidence >= %f, got %f", similarTitleThreshold, c.Confidence)
	}
}

func TestClassifySimilarBelowThreshold(t *testing.T) {
	repo := &mockBroadcastRepo{
		byVideoID: map[string]*database.Broadcast{},
		recent: []database.Broadcast{
			{ID: "b1", VideoID: "abc", Title: "Morning News Special"},
		},
	}
	d := NewDetector(repo)

	c := d.Classify("UC123", youtube.Candidate{VideoID: "xyz", Title: "Evening Cooking Show Premiere"})

	if c.IsDuplicate {
		t.Errorf("Expected dissimilar titles to pass, got %+v", c)
	}
}

func TestClassifyRestream(t *testing.T) {
	repo := &mockBroadcastRepo{
		byVideoID: map[string]*database.Broadcast{},
		finished: []database.Broadcast{
			{ID: "b1", VideoID: "abc", Title: "아침 뉴스 특집", Status: database.BroadcastEnded},
		},
	}
	d := NewDetector(repo)

	c := d.Classify("UC123", youtube.Candidate{VideoID: "xyz", Title: "아침 뉴스 특집 다시보기"})

	if !c.IsDuplicate || c.Kind != KindRestream {
		t.Fatalf("Expected restream duplicate, got %+v", c)
	}
	if c.Existing == nil || c.Existing.ID != "b1" {
		t.Error("Expected match against finished broadcast b1")
	}
}

func TestClassifyKeywordWithoutMatchingOriginal(t *testing.T) {
	repo := &mockBroadcastRepo{
		byVideoID: map[string]*database.Broadcast{},
		finished: []database.Broadcast{
			{ID: "b1", VideoID: "abc", Title: "Completely Different Program"},
		},
	}
	d := NewDetector(repo)

	c := d.Classify("UC123", youtube.Candidate{VideoID: "xyz", Title: "아침 뉴스 다시보기"})

	if c.IsDuplicate {
		t.Errorf("Expected keyword without a matching original to pass, got %+v", c)
	}
}

func TestClassifyRepositoryErrorDegradesToNew(t *testing.T) {
	d := NewDetector(&mockBroadcastRepo{getErr: errors.New("database locked")})

	c := d.Classify("UC123", youtube.Candidate{VideoID: "abc", Title: "Morning News"})

	if c.IsDuplicate {
		t.Errorf("Expected repository error to degrade to new, got %+v", c)
	}
}

func TestClassifyObservationCacheStaysOutOfVerdict(t *testing.T) {
	repo := &mockBroadcastRepo{byVideoID: map[string]*database.Broadcast{}}
	d := NewDetector(repo)

	first := d.Classify("UC123", youtube.Candidate{VideoID: "abc", Title: "Morning News Special Broadcast"})
	if first.IsDuplicate {
		t.Fatalf("Expected first observation to be new, got %+v", first)
	}

	// The first candidate never became a row, so a repeat title is
	// still new: the verdict comes from the store, the cache only
	// records what was seen.
	second := d.Classify("UC123", youtube.Candidate{VideoID: "xyz", Title: "Morning News Special Broadcast"})
	if second.IsDuplicate {
		t.Errorf("Expected cached observation to stay out of the verdict, got %+v", second)
	}

	obs := d.cache.Recent("UC123")
	if len(obs) != 2 {
		t.Errorf("Expected both observations recorded, got %d", len(obs))
	}
}

func TestClassifyRestreamSurvivesMarkedTitles(t *testing.T) {
	repo := &mockBroadcastRepo{
		byVideoID: map[string]*database.Broadcast{},
		finished: []database.Broadcast{
			{ID: "b1", VideoID: "abc", Title: "아침 뉴스 특집 재방송", Status: database.BroadcastEnded},
		},
	}
	d := NewDetector(repo)

	// Both titles carry a marker; stripping only one side would let
	// the repeat through.
	c := d.Classify("UC123", youtube.Candidate{VideoID: "xyz", Title: "ȺȺȺ 아침 뉴스 특집 다시보기"})

	if !c.IsDuplicate || c.Kind != KindRestream {
		t.Fatalf("Expected restream duplicate against marked original, got %+v", c)
	}
	if c.Existing == nil || c.Existing.ID != "b1" {
		t.Error("Expected match against finished broadcast b1")
	}
}
