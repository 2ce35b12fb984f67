package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/krailo/streamwatch/app/database"
)

const activityLookback = 7 * 24 * time.Hour

// AdjustIntervalsTask retunes each channel's polling cadence to its
// recent activity: busy channels get polled every minute, quiet ones
// every fifteen.
type AdjustIntervalsTask struct {
	Task
	channelRepo   database.ChannelRepository
	broadcastRepo database.BroadcastRepository
}

func NewAdjustIntervalsTask(channelRepo database.ChannelRepository, broadcastRepo database.BroadcastRepository) *AdjustIntervalsTask {
	return &AdjustIntervalsTask{
		Task:          NewTask(TaskTypeAdjustIntervals, "channels"),
		channelRepo:   channelRepo,
		broadcastRepo: broadcastRepo,
	}
}

func (t *AdjustIntervalsTask) Execute(ctx context.Context) error {
	channels, err := t.channelRepo.GetActiveChannels()
	if err != nil {
		return fmt.Errorf("failed to load active channels: %w", err)
	}

	since := time.Now().Add(-activityLookback)
	for i := range channels {
		channel := &channels[i]

		count, err := t.broadcastRepo.CountLiveSince(channel.ID, since)
		if err != nil {
			slog.Warn("Failed to count recent broadcasts", "channel", channel.Name, "error", err)
			continue
		}

		minutes := intervalForActivity(count)
		if minutes == channel.CheckIntervalMinutes {
			continue
		}

		if err := t.channelRepo.UpdateCheckInterval(channel.ID, minutes); err != nil {
			slog.Warn("Failed to update check interval", "channel", channel.Name, "error", err)
			continue
		}

		slog.Info("Check interval adjusted",
			"channel", channel.Name,
			"broadcasts_last_week", count,
			"old_minutes", channel.CheckIntervalMinutes,
			"new_minutes", minutes)
	}

	return nil
}

// intervalForActivity maps the number of broadcasts in the lookback
// window to a polling interval in minutes.
func intervalForActivity(broadcastCount int) int {
	switch {
	case broadcastCount >= 7:
		return 1
	case broadcastCount >= 3:
		return 5
	default:
		return 15
	}
}
