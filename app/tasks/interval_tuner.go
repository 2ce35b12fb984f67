package tasks

import (
	"log/slog"
	"time"

	"github.com/krailo/streamwatch/app/database"
	"github.com/krailo/streamwatch/app/lifecycle"
)

// IntervalTuner retunes a channel's polling cadence the moment one of
// its broadcasts goes live, so a channel heating up does not wait for
// the periodic adjustment pass.
type IntervalTuner struct {
	channelRepo   database.ChannelRepository
	broadcastRepo database.BroadcastRepository
}

var _ lifecycle.Subscriber = (*IntervalTuner)(nil)

func NewIntervalTuner(channelRepo database.ChannelRepository, broadcastRepo database.BroadcastRepository) *IntervalTuner {
	return &IntervalTuner{
		channelRepo:   channelRepo,
		broadcastRepo: broadcastRepo,
	}
}

func (t *IntervalTuner) OnBroadcastEvent(event lifecycle.Event) {
	if event.To != database.BroadcastLive {
		return
	}

	channel, err := t.channelRepo.GetChannelByID(event.Broadcast.ChannelID)
	if err != nil || channel == nil {
		slog.Warn("Failed to load channel for interval tuning",
			"channel_id", event.Broadcast.ChannelID, "error", err)
		return
	}

	count, err := t.broadcastRepo.CountLiveSince(channel.ID, time.Now().Add(-activityLookback))
	if err != nil {
		slog.Warn("Failed to count recent broadcasts", "channel", channel.Name, "error", err)
		return
	}

	minutes := intervalForActivity(count)
	if minutes == channel.CheckIntervalMinutes {
		return
	}

	if err := t.channelRepo.UpdateCheckInterval(channel.ID, minutes); err != nil {
		slog.Warn("Failed to update check interval", "channel", channel.Name, "error", err)
		return
	}

	slog.Info("Check interval adjusted on live broadcast",
		"channel", channel.Name,
		"broadcasts_last_week", count,
		"old_minutes", channel.CheckIntervalMinutes,
		"new_minutes", minutes)
}
