package tasks

import (
	"context"
	"fmt"
	"log/slog"
)

// ProcessQueueTask asks the orchestrator to hand runnable pending jobs
// to the scheduler.
type ProcessQueueTask struct {
	Task
	orchestrator DownloadOrchestrator
}

func NewProcessQueueTask(orchestrator DownloadOrchestrator) *ProcessQueueTask {
	return &ProcessQueueTask{
		Task:         NewTask(TaskTypeProcessQueue, "queue"),
		orchestrator: orchestrator,
	}
}

func (t *ProcessQueueTask) Execute(ctx context.Context) error {
	if err := t.orchestrator.DispatchPending(); err != nil {
		return fmt.Errorf("failed to process pending queue: %w", err)
	}
	return nil
}

// ReconcileJobsTask recovers download jobs that lost their worker.
type ReconcileJobsTask struct {
	Task
	orchestrator DownloadOrchestrator
}

func NewReconcileJobsTask(orchestrator DownloadOrchestrator) *ReconcileJobsTask {
	return &ReconcileJobsTask{
		Task:         NewTask(TaskTypeReconcileJobs, "jobs"),
		orchestrator: orchestrator,
	}
}

func (t *ReconcileJobsTask) Execute(ctx context.Context) error {
	if err := t.orchestrator.ReconcileStuckJobs(); err != nil {
		return fmt.Errorf("failed to reconcile stuck jobs: %w", err)
	}
	return nil
}

// RetrySweepTask re-probes recently ended broadcasts whose recording
// was not downloadable yet.
type RetrySweepTask struct {
	Task
	orchestrator DownloadOrchestrator
}

func NewRetrySweepTask(orchestrator DownloadOrchestrator) *RetrySweepTask {
	return &RetrySweepTask{
		Task:         NewTask(TaskTypeRetrySweep, "broadcasts"),
		orchestrator: orchestrator,
	}
}

func (t *RetrySweepTask) Execute(ctx context.Context) error {
	if err := t.orchestrator.RetrySweep(ctx); err != nil {
		return fmt.Errorf("failed to run retry sweep: %w", err)
	}
	return nil
}

// CleanupTask removes downloads whose retention deadline passed.
type CleanupTask struct {
	Task
	orchestrator DownloadOrchestrator
}

func NewCleanupTask(orchestrator DownloadOrchestrator) *CleanupTask {
	return &CleanupTask{
		Task:         NewTask(TaskTypeCleanup, "downloads"),
		orchestrator: orchestrator,
	}
}

func (t *CleanupTask) Execute(ctx context.Context) error {
	if err := t.orchestrator.CleanupExpired(); err != nil {
		return fmt.Errorf("failed to clean up expired downloads: %w", err)
	}

	slog.Debug("Task completed", "type", "Cleanup", "duration", t.GetDuration())
	return nil
}
