package api

import (
	"github.com/krailo/streamwatch/app/breaker"
	"github.com/krailo/streamwatch/app/database"
	"github.com/krailo/streamwatch/app/downloads"
	"github.com/krailo/streamwatch/app/tasks"
)

// JobControllerInterface covers the orchestrator operations exposed
// through the management API.
type JobControllerInterface interface {
	EnsureJobs(b *database.Broadcast) error
	CancelJob(jobID string) error
	ForceRestartJob(jobID string) error
}

var _ JobControllerInterface = (*downloads.Orchestrator)(nil)

// BreakerInterface covers the circuit breaker operations exposed
// through the management API.
type BreakerInterface interface {
	GetStatus() breaker.Status
	Reset()
}

var _ BreakerInterface = (*breaker.Breaker)(nil)

type Handler struct {
	channelRepo   database.ChannelRepository
	broadcastRepo database.BroadcastRepository
	jobRepo       database.JobRepository
	jobController JobControllerInterface
	breaker       BreakerInterface
	scheduler     tasks.TaskSchedulerInterface
}
