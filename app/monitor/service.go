package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/krailo/streamwatch/app/database"
)

// Service runs one monitoring pass over a channel: poll for live
// broadcasts, register the genuinely new ones, and close out tracked
// broadcasts that have left the live set.
type Service struct {
	channels   database.ChannelRepository
	broadcasts database.BroadcastRepository
	poller     ChannelPoller
	classifier BroadcastClassifier
	lifecycle  LifecycleDriver
	now        func() time.Time
}

func NewService(
	channels database.ChannelRepository,
	broadcasts database.BroadcastRepository,
	poller ChannelPoller,
	classifier BroadcastClassifier,
	lifecycle LifecycleDriver,
) *Service {
	return &Service{
		channels:   channels,
		broadcasts: broadcasts,
		poller:     poller,
		classifier: classifier,
		lifecycle:  lifecycle,
		now:        time.Now,
	}
}

// CheckChannel performs a full monitoring pass for the channel.
func (s *Service) CheckChannel(ctx context.Context, channel *database.Channel) error {
	now := s.now()

	if err := s.channels.UpdateLastChecked(channel.ID, now); err != nil {
		slog.Warn("Failed to record channel check time", "channel_id", channel.ChannelID, "error", err)
	}

	candidates, err := s.poller.PollChannel(ctx, channel.ChannelID)
	if err != nil {
		return fmt.Errorf("failed to poll channel %s: %w", channel.ChannelID, err)
	}

	tracked, err := s.broadcasts.GetBroadcastsByStatus(channel.ID, []string{
		database.BroadcastLive,
		database.BroadcastDownloading,
	})
	if err != nil {
		return fmt.Errorf("failed to load tracked broadcasts: %w", err)
	}

	trackedByVideo := make(map[string]*database.Broadcast, len(tracked))
	for i := range tracked {
		trackedByVideo[tracked[i].VideoID] = &tracked[i]
	}

	currentlyLive := make(map[string]struct{}, len(candidates))
	for _, candidate := range candidates {
		currentlyLive[candidate.VideoID] = struct{}{}

		if _, known := trackedByVideo[candidate.VideoID]; known {
			continue
		}

		verdict := s.classifier.Classify(channel.ID, candidate)
		if verdict.IsDuplicate {
			slog.Info("Skipping duplicate broadcast",
				"channel", channel.Name, "video_id", candidate.VideoID,
				"kind", verdict.Kind, "confidence", verdict.Confidence, "reason", verdict.Reason)
			continue
		}

		broadcast, created, err := s.broadcasts.CreateBroadcast(
			channel.ID, candidate.VideoID, candidate.Title, candidate.URL, candidate.ThumbnailURL, now)
		if err != nil {
			slog.Error("Failed to create broadcast", "video_id", candidate.VideoID, "error", err)
			continue
		}
		if !created {
			// Raced with another worker; the row already exists.
			continue
		}

		slog.Info("New live broadcast detected",
			"channel", channel.Name, "video_id", broadcast.VideoID, "title", broadcast.Title)
		s.lifecycle.Created(broadcast)
	}

	// A tracked live broadcast missing from the live set has ended.
	// Broadcasts already downloading are past their live window and
	// expected to be absent.
	for videoID, broadcast := range trackedByVideo {
		if _, stillLive := currentlyLive[videoID]; stillLive {
			continue
		}
		if broadcast.Status != database.BroadcastLive {
			continue
		}

		slog.Info("Broadcast left the live set",
			"channel", channel.Name, "video_id", videoID, "title", broadcast.Title)
		if err := s.lifecycle.Transition(broadcast, database.BroadcastEnded); err != nil {
			slog.Error("Failed to mark broadcast ended", "video_id", videoID, "error", err)
		}
	}

	if len(candidates) > 0 {
		if err := s.channels.UpdateLastLive(channel.ID, now); err != nil {
			slog.Warn("Failed to record channel live time", "channel_id", channel.ChannelID, "error", err)
		}
	}

	return nil
}
