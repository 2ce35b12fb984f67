package monitor

import (
	"log/slog"
	"time"

	"github.com/krailo/streamwatch/app/database"
	"github.com/krailo/streamwatch/app/youtube"
)

const (
	similarLookbackWindow  = 120 * time.Minute
	restreamLookbackWindow = 7 * 24 * time.Hour
)

const (
	KindNone     = "none"
	KindExact    = "exact"
	KindSimilar  = "similar"
	KindRestream = "restream"
)

// Classification is the detector's verdict for one candidate.
type Classification struct {
	IsDuplicate bool
	Kind        string
	Existing    *database.Broadcast
	Confidence  float64
	Reason      string
}

// Detector decides whether a polled candidate is a genuinely new
// broadcast or a repeat of something already tracked. Checks run
// cheapest first: exact video ID, then title similarity against
// recent broadcasts, then rebroadcast keyword matching against
// finished ones.
type Detector struct {
	broadcasts database.BroadcastRepository
	cache      *RecentCache
	now        func() time.Time
}

func NewDetector(broadcasts database.BroadcastRepository) *Detector {
	return &Detector{
		broadcasts: broadcasts,
		cache:      NewRecentCache(),
		now:        time.Now,
	}
}

// Classify runs the detection ladder for the candidate. Repository
// errors degrade the verdict to "not a duplicate" so a flaky database
// never suppresses a real broadcast.
func (d *Detector) Classify(channelID string, candidate youtube.Candidate) Classification {
	if c, ok := d.checkExact(candidate); ok {
		return c
	}
	if c, ok := d.checkSimilar(channelID, candidate); ok {
		return c
	}
	if c, ok := d.checkRestream(channelID, candidate); ok {
		return c
	}

	// Recorded for operational visibility only; the verdict above
	// comes from the store alone.
	d.cache.Add(channelID, candidate.VideoID, candidate.Title)
	return Classification{Kind: KindNone}
}

func (d *Detector) checkExact(candidate youtube.Candidate) (Classification, bool) {
	existing, err := d.broadcasts.GetBroadcast(candidate.VideoID)
	if err != nil {
		slog.Warn("Duplicate check failed, treating as new", "video_id", candidate.VideoID, "error", err)
		return Classification{}, false
	}
	if existing == nil {
		return Classification{}, false
	}

	return Classification{
		IsDuplicate: true,
		Kind:        KindExact,
		Existing:    existing,
		Confidence:  1.0,
		Reason:      "video already tracked",
	}, true
}

// checkSimilar compares the candidate title against broadcasts of the
// same channel started within the lookback window. The first match at
// or above the threshold wins.
func (d *Detector) checkSimilar(channelID string, candidate youtube.Candidate) (Classification, bool) {
	since := d.now().Add(-similarLookbackWindow)

	recent, err := d.broadcasts.GetRecentBroadcasts(channelID, since)
	if err != nil {
		slog.Warn("Similarity check failed, treating as new", "video_id", candidate.VideoID, "error", err)
		recent = nil
	}

	for i := range recent {
		b := &recent[i]
		if b.VideoID == candidate.VideoID {
			continue
		}
		score := TitleSimilarity(candidate.Title, b.Title)
		if score >= similarTitleThreshold {
			return Classification{
				IsDuplicate: true,
				Kind:        KindSimilar,
				Existing:    b,
				Confidence:  score,
				Reason:      "title matches recent broadcast " + b.VideoID,
			}, true
		}
	}

	return Classification{}, false
}

// checkRestream fires only when the title carries a rebroadcast
// keyword. The keyword is stripped and the remainder compared against
// broadcasts that finished within the last week.
func (d *Detector) checkRestream(channelID string, candidate youtube.Candidate) (Classification, bool) {
	keyword, ok := ContainsRestreamKeyword(candidate.Title)
	if !ok {
		return Classification{}, false
	}

	since := d.now().Add(-restreamLookbackWindow)
	finished, err := d.broadcasts.GetFinishedBroadcasts(channelID, since)
	if err != nil {
		slog.Warn("Restream check failed, treating as new", "video_id", candidate.VideoID, "error", err)
		return Classification{}, false
	}

	cleaned := StripRestreamKeywords(candidate.Title)
	for i := range finished {
		b := &finished[i]
		// The stored title may carry a marker of its own.
		score := TitleSimilarity(cleaned, StripRestreamKeywords(b.Title))
		if score >= restreamTitleThreshold {
			return Classification{
				IsDuplicate: true,
				Kind:        KindRestream,
				Existing:    b,
				Confidence:  score,
				Reason:      "rebroadcast (" + keyword + ") of " + b.VideoID,
			}, true
		}
	}

	return Classification{}, false
}
