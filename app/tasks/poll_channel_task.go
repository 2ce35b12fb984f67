package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/krailo/streamwatch/app/database"
)

// PollChannelTask runs one monitoring pass over a single channel. It
// does not use the scheduler's retry budget: a failed pass is simply
// picked up again on the next due tick, which also keeps two passes
// over the same channel from overlapping.
type PollChannelTask struct {
	Task
	Channel *database.Channel
	monitor ChannelChecker
	release func()
}

func NewPollChannelTask(channel *database.Channel, monitor ChannelChecker, release func()) *PollChannelTask {
	task := NewTask(TaskTypePollChannel, channel.ChannelID)
	task.MaxRetries = 0

	return &PollChannelTask{
		Task:    task,
		Channel: channel,
		monitor: monitor,
		release: release,
	}
}

func (t *PollChannelTask) Execute(ctx context.Context) error {
	if t.release != nil {
		defer t.release()
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if err := t.monitor.CheckChannel(ctx, t.Channel); err != nil {
		return fmt.Errorf("failed to check channel: %w", err)
	}

	slog.Debug("Task completed",
		"type", "PollChannel",
		"channel", t.Channel.Name,
		"duration", t.GetDuration())

	return nil
}
