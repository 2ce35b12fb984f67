package tasks

import (
	"context"

	"github.com/krailo/streamwatch/app/database"
)

// TaskSchedulerInterface defines the interface for task scheduling operations.
// Used by the main application to manage background task processing.
// Example usage:
//
//	scheduler := NewScheduler(channelRepo, broadcastRepo, monitor, orchestrator)
//	scheduler.Start()
//	defer scheduler.Stop()
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
	DispatchDownload(jobID string)
	TriggerChannelCheck(channel *database.Channel) error
}

// ChannelChecker runs one monitoring pass over a channel.
type ChannelChecker interface {
	CheckChannel(ctx context.Context, channel *database.Channel) error
}

// DownloadOrchestrator is the slice of the download orchestrator the
// task layer drives.
type DownloadOrchestrator interface {
	ExecuteJob(ctx context.Context, jobID string) error
	DispatchPending() error
	ReconcileStuckJobs() error
	RetrySweep(ctx context.Context) error
	CleanupExpired() error
}
