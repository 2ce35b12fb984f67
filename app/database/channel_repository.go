package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ChannelRepo handles database operations for monitored channels.
type ChannelRepo struct {
	db *DB
}

var _ ChannelRepository = (*ChannelRepo)(nil)

func NewChannelRepository(db *DB) *ChannelRepo {
	return &ChannelRepo{db: db}
}

const channelColumns = `id, channel_id, name, url, is_active, check_interval_minutes,
       last_checked_at, last_live_at, created_at, updated_at`

func scanChannel(row interface{ Scan(...any) error }) (*Channel, error) {
	var ch Channel
	err := row.Scan(
		&ch.ID, &ch.ChannelID, &ch.Name, &ch.URL, &ch.IsActive, &ch.CheckIntervalMinutes,
		&ch.LastCheckedAt, &ch.LastLiveAt, &ch.CreatedAt, &ch.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &ch, nil
}

// UpsertChannel registers a channel or refreshes its name/url. The
// boolean reports whether a new row was inserted.
func (r *ChannelRepo) UpsertChannel(channelID, name, url string, intervalMinutes int) (string, bool, error) {
	existing, err := r.GetChannel(channelID)
	if err != nil {
		return "", false, fmt.Errorf("failed to check existing channel: %w", err)
	}

	if existing != nil {
		_, err = r.db.Exec(`
			UPDATE channels
			SET name = ?, url = ?, updated_at = CURRENT_TIMESTAMP
			WHERE channel_id = ?
		`, name, url, channelID)
		if err != nil {
			return "", false, fmt.Errorf("failed to update channel: %w", err)
		}
		return existing.ID, false, nil
	}

	id := uuid.NewString()
	_, err = r.db.Exec(`
		INSERT INTO channels (id, channel_id, name, url, check_interval_minutes)
		VALUES (?, ?, ?, ?, ?)
	`, id, channelID, name, url, intervalMinutes)
	if err != nil {
		return "", false, fmt.Errorf("failed to insert channel: %w", err)
	}

	return id, true, nil
}

// GetChannel retrieves a channel by its external channel identifier.
func (r *ChannelRepo) GetChannel(channelID string) (*Channel, error) {
	row := r.db.QueryRow(`
		SELECT `+channelColumns+`
		FROM channels
		WHERE channel_id = ?
	`, channelID)

	ch, err := scanChannel(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get channel: %w", err)
	}
	return ch, nil
}

// GetChannelByID retrieves a channel by its database UUID.
func (r *ChannelRepo) GetChannelByID(id string) (*Channel, error) {
	row := r.db.QueryRow(`
		SELECT `+channelColumns+`
		FROM channels
		WHERE id = ?
	`, id)

	ch, err := scanChannel(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get channel by id: %w", err)
	}
	return ch, nil
}

// GetActiveChannels returns all channels with monitoring enabled.
func (r *ChannelRepo) GetActiveChannels() ([]Channel, error) {
	rows, err := r.db.Query(`
		SELECT ` + channelColumns + `
		FROM channels
		WHERE is_active = 1
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get active channels: %w", err)
	}
	defer rows.Close()

	var channels []Channel
	for rows.Next() {
		ch, err := scanChannel(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan channel row: %w", err)
		}
		channels = append(channels, *ch)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating channel rows: %w", err)
	}

	return channels, nil
}

func (r *ChannelRepo) SetChannelActive(channelID string, active bool) error {
	_, err := r.db.Exec(`
		UPDATE channels
		SET is_active = ?, updated_at = CURRENT_TIMESTAMP
		WHERE channel_id = ?
	`, active, channelID)
	if err != nil {
		return fmt.Errorf("failed to set channel active status: %w", err)
	}
	return nil
}

func (r *ChannelRepo) UpdateLastChecked(id string, at time.Time) error {
	_, err := r.db.Exec(`
		UPDATE channels
		SET last_checked_at = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update last checked time: %w", err)
	}
	return nil
}

func (r *ChannelRepo) UpdateLastLive(id string, at time.Time) error {
	_, err := r.db.Exec(`
		UPDATE channels
		SET last_live_at = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update last live time: %w", err)
	}
	return nil
}

func (r *ChannelRepo) UpdateCheckInterval(id string, minutes int) error {
	_, err := r.db.Exec(`
		UPDATE channels
		SET check_interval_minutes = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, minutes, id)
	if err != nil {
		return fmt.Errorf("failed to update check interval: %w", err)
	}
	return nil
}

func (r *ChannelRepo) GetChannelCount() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM channels").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get channel count: %w", err)
	}
	return count, nil
}
