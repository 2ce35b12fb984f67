package database

import (
	"time"
)

// Broadcast status values. Transitions are owned by the lifecycle
// package; the database layer only stores them.
const (
	BroadcastLive        = "live"
	BroadcastEnded       = "ended"
	BroadcastDownloading = "downloading"
	BroadcastCompleted   = "completed"
	BroadcastFailed      = "failed"
)

// Download job status values.
const (
	JobPending     = "pending"
	JobDownloading = "downloading"
	JobCompleted   = "completed"
	JobFailed      = "failed"
	JobCancelled   = "cancelled"
)

// Quality tiers. The low tier is always downloaded first.
const (
	QualityLow  = "low"
	QualityHigh = "high"
)

type Channel struct {
	ID                   string // Database UUID
	ChannelID            string // External channel identifier (UC...)
	Name                 string
	URL                  string
	IsActive             bool
	CheckIntervalMinutes int
	LastCheckedAt        *time.Time
	LastLiveAt           *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

type Broadcast struct {
	ID               string // Database UUID
	ChannelID        string // FK to channels.id
	VideoID          string // External video identifier, unique system-wide
	Title            string
	URL              string
	ThumbnailURL     string
	Status           string
	StartedAt        time.Time
	EndedAt          *time.Time
	NotificationSent bool
	RetryCount       int // post-end accessibility sweep attempts
	LastRetryAt      *time.Time
	RetryEnabled     bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type DownloadJob struct {
	ID            string // Database UUID
	BroadcastID   string // FK to broadcasts.id
	Quality       string
	Status        string
	FilePath      string
	FileSize      int64
	ErrorMessage  string
	RetryCount    int
	NextAttemptAt *time.Time // backoff gate; nil means dispatchable now
	StartedAt     *time.Time
	CompletedAt   *time.Time
	DeleteAfter   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// BreakerState is the persisted circuit breaker state, keyed by
// breaker name so restarts do not reset quota protection.
type BreakerState struct {
	Name          string
	FailureCount  int
	LastFailureAt *time.Time
	BlockedUntil  *time.Time
	UpdatedAt     time.Time
}
