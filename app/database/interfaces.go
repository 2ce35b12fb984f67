package database

import (
	"time"
)

type ChannelRepository interface {
	UpsertChannel(channelID, name, url string, intervalMinutes int) (string, bool, error)
	GetChannel(channelID string) (*Channel, error)
	GetChannelByID(id string) (*Channel, error)
	GetActiveChannels() ([]Channel, error)
	SetChannelActive(channelID string, active bool) error
	UpdateLastChecked(id string, at time.Time) error
	UpdateLastLive(id string, at time.Time) error
	UpdateCheckInterval(id string, minutes int) error
	GetChannelCount() (int, error)
}

type BroadcastRepository interface {
	// CreateBroadcast is the atomic get-or-create by video ID. The
	// boolean reports whether a new row was inserted.
	CreateBroadcast(channelID, videoID, title, url, thumbnailURL string, startedAt time.Time) (*Broadcast, bool, error)
	GetBroadcast(videoID string) (*Broadcast, error)
	GetBroadcastByID(id string) (*Broadcast, error)
	GetBroadcastsByStatus(channelID string, statuses []string) ([]Broadcast, error)
	GetRecentBroadcasts(channelID string, since time.Time) ([]Broadcast, error)
	GetFinishedBroadcasts(channelID string, since time.Time) ([]Broadcast, error)
	CountLiveSince(channelID string, since time.Time) (int, error)

	UpdateStatus(id, status string, endedAt *time.Time) error
	SetNotificationSent(id string) error
	GetRetryableBroadcasts(endedSince time.Time, maxAttempts int) ([]Broadcast, error)
	GetStalledDownloading(updatedBefore time.Time) ([]Broadcast, error)
	UpdateRetryState(id string, retryCount int, lastRetryAt time.Time, retryEnabled bool) error
	CountByStatus() (map[string]int, error)
}

type JobRepository interface {
	// CreateJob is the atomic get-or-create per (broadcast, quality).
	CreateJob(broadcastID, quality string) (*DownloadJob, bool, error)
	GetJob(id string) (*DownloadJob, error)
	GetJobForBroadcast(broadcastID, quality string) (*DownloadJob, error)
	GetJobsByBroadcast(broadcastID string) ([]DownloadJob, error)
	GetDispatchablePendingJobs(now time.Time) ([]DownloadJob, error)
	GetStuckJobs(updatedBefore time.Time) ([]DownloadJob, error)
	GetExpiredJobs(now time.Time) ([]DownloadJob, error)

	MarkDownloading(id string) error
	MarkCompleted(id, filePath string, fileSize int64) error
	MarkFailed(id, errorMessage string) error
	MarkCancelled(id string) error
	ScheduleRetry(id, errorMessage string, nextAttempt time.Time) error
	ResetJob(id string) error
	DeleteJob(id string) error
	CountByStatus() (map[string]int, error)
}

type BreakerRepository interface {
	GetBreakerState(name string) (*BreakerState, error)
	SaveBreakerState(state BreakerState) error
}
