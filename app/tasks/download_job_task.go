package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// downloadTaskTimeout caps a single download attempt. Multi-hour VODs
// take well over the default task timeout, and a deadline cut mid-file
// would burn an attempt from the job's retry budget.
const downloadTaskTimeout = 12 * time.Hour

// DownloadJobTask executes one download job. Retry and backoff are the
// orchestrator's business, so the scheduler-level retry budget stays
// unused here.
type DownloadJobTask struct {
	Task
	JobID        string
	orchestrator DownloadOrchestrator
}

func NewDownloadJobTask(jobID string, orchestrator DownloadOrchestrator) *DownloadJobTask {
	task := NewTask(TaskTypeDownloadJob, jobID)
	task.MaxRetries = 0
	task.Timeout = downloadTaskTimeout

	return &DownloadJobTask{
		Task:         task,
		JobID:        jobID,
		orchestrator: orchestrator,
	}
}

func (t *DownloadJobTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if err := t.orchestrator.ExecuteJob(ctx, t.JobID); err != nil {
		return fmt.Errorf("failed to execute download job: %w", err)
	}

	slog.Debug("Task completed",
		"type", "DownloadJob",
		"job_id", t.JobID,
		"duration", t.GetDuration())

	return nil
}
