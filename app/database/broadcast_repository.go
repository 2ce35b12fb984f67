package database

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// BroadcastRepo handles database operations for observed broadcasts.
type BroadcastRepo struct {
	db *DB
}

var _ BroadcastRepository = (*BroadcastRepo)(nil)

func NewBroadcastRepository(db *DB) *BroadcastRepo {
	return &BroadcastRepo{db: db}
}

const broadcastColumns = `id, channel_id, video_id, title, url, thumbnail_url, status,
       started_at, ended_at, notification_sent, retry_count, last_retry_at, retry_enabled,
       created_at, updated_at`

func scanBroadcast(row interface{ Scan(...any) error }) (*Broadcast, error) {
	var b Broadcast
	err := row.Scan(
		&b.ID, &b.ChannelID, &b.VideoID, &b.Title, &b.URL, &b.ThumbnailURL, &b.Status,
		&b.StartedAt, &b.EndedAt, &b.NotificationSent, &b.RetryCount, &b.LastRetryAt, &b.RetryEnabled,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// CreateBroadcast inserts a broadcast in live status unless one with
// the same video ID already exists. INSERT OR IGNORE plus the unique
// index on video_id makes the check-then-create race free: the
// boolean reports whether this call inserted the row.
func (r *BroadcastRepo) CreateBroadcast(channelID, videoID, title, url, thumbnailURL string, startedAt time.Time) (*Broadcast, bool, error) {
	id := uuid.NewString()
	res, err := r.db.Exec(`
		INSERT OR IGNORE INTO broadcasts (id, channel_id, video_id, title, url, thumbnail_url, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, id, channelID, videoID, title, url, thumbnailURL, BroadcastLive, startedAt.UTC())
	if err != nil {
		return nil, false, fmt.Errorf("failed to insert broadcast: %w", err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("failed to read insert result: %w", err)
	}

	b, err := r.GetBroadcast(videoID)
	if err != nil {
		return nil, false, err
	}
	if b == nil {
		return nil, false, fmt.Errorf("broadcast %s missing after insert", videoID)
	}

	return b, inserted > 0, nil
}

// GetBroadcast retrieves a broadcast by its external video ID.
func (r *BroadcastRepo) GetBroadcast(videoID string) (*Broadcast, error) {
	row := r.db.QueryRow(`
		SELECT `+broadcastColumns+`
		FROM broadcasts
		WHERE video_id = ?
	`, videoID)

	b, err := scanBroadcast(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get broadcast: %w", err)
	}
	return b, nil
}

// GetBroadcastByID retrieves a broadcast by its database UUID.
func (r *BroadcastRepo) GetBroadcastByID(id string) (*Broadcast, error) {
	row := r.db.QueryRow(`
		SELECT `+broadcastColumns+`
		FROM broadcasts
		WHERE id = ?
	`, id)

	b, err := scanBroadcast(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get broadcast by id: %w", err)
	}
	return b, nil
}

func (r *BroadcastRepo) queryBroadcasts(query string, args ...any) ([]Broadcast, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query broadcasts: %w", err)
	}
	defer rows.Close()

	var broadcasts []Broadcast
	for rows.Next() {
		b, err := scanBroadcast(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan broadcast row: %w", err)
		}
		broadcasts = append(broadcasts, *b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating broadcast rows: %w", err)
	}

	return broadcasts, nil
}

// GetBroadcastsByStatus returns the channel's broadcasts in any of the
// given statuses, most recent first.
func (r *BroadcastRepo) GetBroadcastsByStatus(channelID string, statuses []string) ([]Broadcast, error) {
	placeholders := strings.Repeat("?, ", len(statuses))
	placeholders = strings.TrimSuffix(placeholders, ", ")

	args := []any{channelID}
	for _, s := range statuses {
		args = append(args, s)
	}

	return r.queryBroadcasts(`
		SELECT `+broadcastColumns+`
		FROM broadcasts
		WHERE channel_id = ? AND status IN (`+placeholders+`)
		ORDER BY started_at DESC
	`, args...)
}

// GetRecentBroadcasts returns the channel's broadcasts started at or
// after the given time, most recent first. Used by the similar-title
// duplicate check.
func (r *BroadcastRepo) GetRecentBroadcasts(channelID string, since time.Time) ([]Broadcast, error) {
	return r.queryBroadcasts(`
		SELECT `+broadcastColumns+`
		FROM broadcasts
		WHERE channel_id = ? AND started_at >= ?
		ORDER BY started_at DESC
	`, channelID, since.UTC())
}

// GetFinishedBroadcasts returns ended or completed broadcasts started
// at or after the given time. Used by the restream check.
func (r *BroadcastRepo) GetFinishedBroadcasts(channelID string, since time.Time) ([]Broadcast, error) {
	return r.queryBroadcasts(`
		SELECT `+broadcastColumns+`
		FROM broadcasts
		WHERE channel_id = ? AND started_at >= ? AND status IN (?, ?)
		ORDER BY started_at DESC
	`, channelID, since.UTC(), BroadcastEnded, BroadcastCompleted)
}

// CountLiveSince counts broadcasts the channel started within the
// window. Drives the adaptive poll interval.
func (r *BroadcastRepo) CountLiveSince(channelID string, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRow(`
		SELECT COUNT(*) FROM broadcasts
		WHERE channel_id = ? AND started_at >= ?
	`, channelID, since.UTC()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count recent broadcasts: %w", err)
	}
	return count, nil
}

// UpdateStatus persists a lifecycle transition. endedAt is written
// only when non-nil so later transitions keep the original end time.
func (r *BroadcastRepo) UpdateStatus(id, status string, endedAt *time.Time) error {
	var err error
	if endedAt != nil {
		_, err = r.db.Exec(`
			UPDATE broadcasts
			SET status = ?, ended_at = ?, updated_at = CURRENT_TIMESTAMP
			WHERE id = ?
		`, status, endedAt.UTC(), id)
	} else {
		_, err = r.db.Exec(`
			UPDATE broadcasts
			SET status = ?, updated_at = CURRENT_TIMESTAMP
			WHERE id = ?
		`, status, id)
	}
	if err != nil {
		return fmt.Errorf("failed to update broadcast status: %w", err)
	}
	return nil
}

func (r *BroadcastRepo) SetNotificationSent(id string) error {
	_, err := r.db.Exec(`
		UPDATE broadcasts
		SET notification_sent = 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, id)
	if err != nil {
		return fmt.Errorf("failed to set notification sent: %w", err)
	}
	return nil
}

// GetRetryableBroadcasts returns ended broadcasts still eligible for
// the post-end accessibility sweep: ended within the window, sweep
// enabled, attempt budget not exhausted, and no completed or running
// download job yet.
func (r *BroadcastRepo) GetRetryableBroadcasts(endedSince time.Time, maxAttempts int) ([]Broadcast, error) {
	return r.queryBroadcasts(`
		SELECT `+broadcastColumns+`
		FROM broadcasts b
		WHERE b.status = ? AND b.retry_enabled = 1
		  AND b.ended_at IS NOT NULL AND b.ended_at >= ?
		  AND b.retry_count < ?
		  AND NOT EXISTS (
		      SELECT 1 FROM download_jobs j
		      WHERE j.broadcast_id = b.id AND j.status IN (?, ?)
		  )
		ORDER BY b.ended_at
	`, BroadcastEnded, endedSince.UTC(), maxAttempts, JobCompleted, JobDownloading)
}

// GetStalledDownloading returns downloading broadcasts untouched since
// the given time with no job left that could still deliver a file.
func (r *BroadcastRepo) GetStalledDownloading(updatedBefore time.Time) ([]Broadcast, error) {
	return r.queryBroadcasts(`
		SELECT `+broadcastColumns+`
		FROM broadcasts b
		WHERE b.status = ? AND b.updated_at < ?
		  AND NOT EXISTS (
		      SELECT 1 FROM download_jobs j
		      WHERE j.broadcast_id = b.id AND j.status IN (?, ?, ?)
		  )
		ORDER BY b.updated_at
	`, BroadcastDownloading, updatedBefore.UTC(), JobPending, JobDownloading, JobCompleted)
}

func (r *BroadcastRepo) UpdateRetryState(id string, retryCount int, lastRetryAt time.Time, retryEnabled bool) error {
	_, err := r.db.Exec(`
		UPDATE broadcasts
		SET retry_count = ?, last_retry_at = ?, retry_enabled = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, retryCount, lastRetryAt.UTC(), retryEnabled, id)
	if err != nil {
		return fmt.Errorf("failed to update retry state: %w", err)
	}
	return nil
}

func (r *BroadcastRepo) CountByStatus() (map[string]int, error) {
	rows, err := r.db.Query(`SELECT status, COUNT(*) FROM broadcasts GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count broadcasts by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		counts[status] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating status counts: %w", err)
	}

	return counts, nil
}
