package downloads

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/krailo/streamwatch/app/database"
	"github.com/krailo/streamwatch/app/lifecycle"
	"github.com/krailo/streamwatch/app/youtube"
)

const (
	maxJobRetries = 3

	// Stuck job reconciliation thresholds.
	stuckJobStaleAfter = 10 * time.Minute
	stuckJobFailAfter  = time.Hour

	// Post-end recovery sweep limits. A finished broadcast gets
	// re-probed until its recording becomes downloadable, for at
	// most an hour.
	retrySweepMinGap  = 10 * time.Second
	retrySweepWindow  = time.Hour
	retrySweepMaxRuns = 360
)

// retryBackoff is the fixed wait before each retry attempt, indexed by
// the number of failures so far.
var retryBackoff = []time.Duration{
	120 * time.Second,
	300 * time.Second,
	600 * time.Second,
}

// Lifecycle is the slice of the broadcast state machine the
// orchestrator drives.
type Lifecycle interface {
	Transition(b *database.Broadcast, to string) error
}

// Orchestrator owns the download side of a broadcast's life: job
// creation when a broadcast ends, tiered dispatch, execution with
// retry and backoff, and recovery of jobs that lost their worker.
type Orchestrator struct {
	jobs       database.JobRepository
	broadcasts database.BroadcastRepository
	downloader Downloader
	probe      youtube.ProbeSource
	lifecycle  Lifecycle
	notifier   Notifier

	downloadDir string
	maxHeight   int
	now         func() time.Time

	// dispatch hands a job ID to the task scheduler for execution.
	dispatch func(jobID string)

	mu       sync.Mutex
	inflight map[string]context.CancelFunc
}

func NewOrchestrator(
	jobs database.JobRepository,
	broadcasts database.BroadcastRepository,
	downloader Downloader,
	probe youtube.ProbeSource,
	lc Lifecycle,
	notifier Notifier,
	downloadDir string,
	maxHeight int,
) *Orchestrator {
	return &Orchestrator{
		jobs:        jobs,
		broadcasts:  broadcasts,
		downloader:  downloader,
		probe:       probe,
		lifecycle:   lc,
		notifier:    notifier,
		downloadDir: downloadDir,
		maxHeight:   maxHeight,
		now:         time.Now,
		inflight:    make(map[string]context.CancelFunc),
	}
}

// SetDispatcher wires the scheduler callback used to hand jobs to the
// worker pool. Must be called before any job processing starts.
func (o *Orchestrator) SetDispatcher(dispatch func(jobID string)) {
	o.dispatch = dispatch
}

// OnBroadcastEvent creates the download jobs the moment a broadcast
// ends. Implements the lifecycle subscriber contract.
func (o *Orchestrator) OnBroadcastEvent(event lifecycle.Event) {
	if event.To != database.BroadcastEnded || event.From != database.BroadcastLive {
		return
	}
	if err := o.EnsureJobs(event.Broadcast); err != nil {
		slog.Error("Failed to create download jobs",
			"broadcast_id", event.Broadcast.ID, "error", err)
	}
}

// EnsureJobs creates the low and high tier jobs for the broadcast.
// Existing jobs are left untouched, so the call is safe to repeat.
// Creating at least one job moves an ended broadcast to downloading.
func (o *Orchestrator) EnsureJobs(b *database.Broadcast) error {
	createdAny := false
	for _, quality := range []string{database.QualityLow, database.QualityHigh} {
		_, created, err := o.jobs.CreateJob(b.ID, quality)
		if err != nil {
			return fmt.Errorf("failed to create %s job: %w", quality, err)
		}
		if created {
			createdAny = true
			slog.Info("Download job created",
				"broadcast_id", b.ID, "video_id", b.VideoID, "quality", quality)
		}
	}

	if createdAny && b.Status == database.BroadcastEnded {
		if err := o.lifecycle.Transition(b, database.BroadcastDownloading); err != nil {
			slog.Warn("Failed to move broadcast to downloading",
				"broadcast_id", b.ID, "error", err)
		}
	}
	return nil
}

// DispatchPending hands runnable pending jobs to the scheduler. The
// low tier always goes first; a high tier job is held back until its
// broadcast's low tier job has reached a terminal state.
func (o *Orchestrator) DispatchPending() error {
	pending, err := o.jobs.GetDispatchablePendingJobs(o.now())
	if err != nil {
		return fmt.Errorf("failed to load pending jobs: %w", err)
	}

	for i := range pending {
		job := &pending[i]
		if o.isInflight(job.ID) {
			continue
		}
		if job.Quality == database.QualityHigh && !o.lowTierDone(job.BroadcastID) {
			continue
		}
		o.dispatch(job.ID)
	}
	return nil
}

// lowTierDone reports whether the broadcast's low tier job is out of
// the way. A broadcast without a low tier job does not hold the high
// tier back.
func (o *Orchestrator) lowTierDone(broadcastID string) bool {
	low, err := o.jobs.GetJobForBroadcast(broadcastID, database.QualityLow)
	if err != nil {
		slog.Warn("Failed to check low tier job", "broadcast_id", broadcastID, "error", err)
		return false
	}
	if low == nil {
		return true
	}
	switch low.Status {
	case database.JobCompleted, database.JobFailed, database.JobCancelled:
		return true
	}
	return false
}

// ExecuteJob runs one download job to completion, retry scheduling or
// failure. Called from a worker goroutine.
func (o *Orchestrator) ExecuteJob(ctx context.Context, jobID string) error {
	job, err := o.jobs.GetJob(jobID)
	if err != nil {
		return fmt.Errorf("failed to load job %s: %w", jobID, err)
	}
	if job == nil || job.Status != database.JobPending {
		return nil
	}

	broadcast, err := o.broadcasts.GetBroadcastByID(job.BroadcastID)
	if err != nil {
		return fmt.Errorf("failed to load broadcast %s: %w", job.BroadcastID, err)
	}
	if broadcast == nil {
		return o.jobs.MarkFailed(job.ID, "broadcast no longer exists")
	}

	if err := o.jobs.MarkDownloading(job.ID); err != nil {
		return fmt.Errorf("failed to mark job downloading: %w", err)
	}

	if broadcast.Status == database.BroadcastEnded || broadcast.Status == database.BroadcastFailed {
		if err := o.lifecycle.Transition(broadcast, database.BroadcastDownloading); err != nil {
			slog.Warn("Failed to move broadcast to downloading",
				"broadcast_id", broadcast.ID, "error", err)
		}
	}

	jobCtx, cancel := context.WithCancel(ctx)
	o.trackInflight(job.ID, cancel)
	defer o.untrackInflight(job.ID)
	defer cancel()

	result, err := o.runDownload(jobCtx, broadcast, job)
	if err != nil {
		return o.handleFailure(job, broadcast, err)
	}
	return o.handleSuccess(job, broadcast, result)
}

// runDownload tries the tier's format chain first and falls back to
// yt-dlp's automatic selection when the chain has no match.
func (o *Orchestrator) runDownload(ctx context.Context, b *database.Broadcast, job *database.DownloadJob) (*DownloadResult, error) {
	template := o.outputTemplate(b.VideoID, job.Quality)
	format := FormatSelector(job.Quality, o.maxHeight)

	result, err := o.downloader.Download(ctx, b.URL, format, template)
	if err == nil {
		return result, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}

	slog.Warn("Format chain failed, retrying with automatic selection",
		"job_id", job.ID, "video_id", b.VideoID, "error", err)
	return o.downloader.Download(ctx, b.URL, "", template)
}

func (o *Orchestrator) outputTemplate(videoID, quality string) string {
	return filepath.Join(o.downloadDir, fmt.Sprintf("%s_%s.%%(ext)s", videoID, quality))
}

func (o *Orchestrator) handleSuccess(job *database.DownloadJob, b *database.Broadcast, result *DownloadResult) error {
	if err := o.jobs.MarkCompleted(job.ID, result.FilePath, result.FileSize); err != nil {
		return fmt.Errorf("failed to mark job completed: %w", err)
	}

	slog.Info("Download completed",
		"job_id", job.ID, "video_id", b.VideoID, "quality", job.Quality,
		"file", result.FilePath, "size", result.FileSize)

	// The first finished tier completes the broadcast; the other
	// tier keeps running on its own.
	if b.Status == database.BroadcastDownloading {
		if err := o.lifecycle.Transition(b, database.BroadcastCompleted); err != nil {
			slog.Warn("Failed to complete broadcast", "broadcast_id", b.ID, "error", err)
		}
	}

	if o.notifier != nil {
		o.notifier.NotifyDownloadCompleted(b.Title, job.Quality, result.FilePath, result.FileSize)
	}
	return nil
}

// handleFailure schedules a retry with fixed backoff, or fails the job
// once the attempts are spent. The broadcast itself only fails when no
// tier can deliver anymore.
func (o *Orchestrator) handleFailure(job *database.DownloadJob, b *database.Broadcast, cause error) error {
	if job.RetryCount < maxJobRetries {
		wait := retryBackoff[min(job.RetryCount, len(retryBackoff)-1)]
		next := o.now().Add(wait)
		if err := o.jobs.ScheduleRetry(job.ID, cause.Error(), next); err != nil {
			return fmt.Errorf("failed to schedule retry: %w", err)
		}
		slog.Warn("Download failed, retry scheduled",
			"job_id", job.ID, "video_id", b.VideoID, "quality", job.Quality,
			"attempt", job.RetryCount+1, "next_attempt", next, "error", cause)
		return nil
	}

	if err := o.jobs.MarkFailed(job.ID, cause.Error()); err != nil {
		return fmt.Errorf("failed to mark job failed: %w", err)
	}
	slog.Error("Download failed permanently",
		"job_id", job.ID, "video_id", b.VideoID, "quality", job.Quality, "error", cause)

	o.failBroadcastIfExhausted(b)
	return nil
}

// failBroadcastIfExhausted fails the broadcast when every tier ended
// terminally and none produced a file.
func (o *Orchestrator) failBroadcastIfExhausted(b *database.Broadcast) {
	jobs, err := o.jobs.GetJobsByBroadcast(b.ID)
	if err != nil {
		slog.Warn("Failed to load sibling jobs", "broadcast_id", b.ID, "error", err)
		return
	}

	for _, j := range jobs {
		switch j.Status {
		case database.JobCompleted:
			return
		case database.JobPending, database.JobDownloading:
			return
		}
	}

	if b.Status == database.BroadcastDownloading {
		if err := o.lifecycle.Transition(b, database.BroadcastFailed); err != nil {
			slog.Warn("Failed to fail broadcast", "broadcast_id", b.ID, "error", err)
		}
	}
}

// ReconcileStuckJobs recovers jobs whose worker died mid-download. A
// job untouched for ten minutes is completed when its file turned up
// on disk, failed after an hour, and otherwise left for the next pass.
func (o *Orchestrator) ReconcileStuckJobs() error {
	stale := o.now().Add(-stuckJobStaleAfter)
	stuck, err := o.jobs.GetStuckJobs(stale)
	if err != nil {
		return fmt.Errorf("failed to load stuck jobs: %w", err)
	}

	for i := range stuck {
		job := &stuck[i]
		if o.isInflight(job.ID) {
			continue
		}

		broadcast, err := o.broadcasts.GetBroadcastByID(job.BroadcastID)
		if err != nil || broadcast == nil {
			slog.Warn("Stuck job has no broadcast", "job_id", job.ID, "error", err)
			continue
		}

		if path, size, ok := o.findCompletedFile(broadcast.VideoID, job.Quality); ok {
			slog.Info("Recovered stuck job, file found on disk",
				"job_id", job.ID, "video_id", broadcast.VideoID, "file", path)
			if err := o.jobs.MarkCompleted(job.ID, path, size); err != nil {
				slog.Warn("Failed to complete recovered job", "job_id", job.ID, "error", err)
				continue
			}
			if broadcast.Status == database.BroadcastDownloading {
				if err := o.lifecycle.Transition(broadcast, database.BroadcastCompleted); err != nil {
					slog.Warn("Failed to complete broadcast", "broadcast_id", broadcast.ID, "error", err)
				}
			}
			continue
		}

		if job.StartedAt != nil && o.now().Sub(*job.StartedAt) > stuckJobFailAfter {
			slog.Warn("Failing job stuck for over an hour",
				"job_id", job.ID, "video_id", broadcast.VideoID)
			if err := o.jobs.MarkFailed(job.ID, "download stalled, no progress for over an hour"); err != nil {
				slog.Warn("Failed to fail stuck job", "job_id", job.ID, "error", err)
				continue
			}
			o.failBroadcastIfExhausted(broadcast)
		}
	}

	return o.reconcileStalledBroadcasts(stale)
}

// reconcileStalledBroadcasts closes out downloading broadcasts that no
// job is serving anymore. A broadcast that never got a job row goes
// back to ended so the accessibility sweep can pick it up again; one
// whose jobs all died without a file is failed.
func (o *Orchestrator) reconcileStalledBroadcasts(updatedBefore time.Time) error {
	stalled, err := o.broadcasts.GetStalledDownloading(updatedBefore)
	if err != nil {
		return fmt.Errorf("failed to load stalled broadcasts: %w", err)
	}

	for i := range stalled {
		b := &stalled[i]

		jobs, err := o.jobs.GetJobsByBroadcast(b.ID)
		if err != nil {
			slog.Warn("Failed to load jobs for stalled broadcast", "broadcast_id", b.ID, "error", err)
			continue
		}

		viable := false
		for _, j := range jobs {
			switch j.Status {
			case database.JobCompleted, database.JobPending, database.JobDownloading:
				viable = true
			}
		}
		if viable {
			continue
		}

		to := database.BroadcastFailed
		if len(jobs) == 0 {
			to = database.BroadcastEnded
		}
		slog.Warn("Closing out stalled broadcast",
			"broadcast_id", b.ID, "video_id", b.VideoID, "to", to)
		if err := o.lifecycle.Transition(b, to); err != nil {
			slog.Warn("Failed to close out stalled broadcast", "broadcast_id", b.ID, "error", err)
		}
	}
	return nil
}

func (o *Orchestrator) findCompletedFile(videoID, quality string) (string, int64, bool) {
	path := locateByTemplate(o.outputTemplate(videoID, quality))
	if path == "" {
		return "", 0, false
	}
	stat, err := os.Stat(path)
	if err != nil || stat.Size() == 0 {
		return "", 0, false
	}
	return path, stat.Size(), true
}

// RetrySweep re-probes recently ended broadcasts whose recording was
// not downloadable yet. Runs frequently, so each broadcast is revisited
// at most once per gap, for at most an hour after its end.
func (o *Orchestrator) RetrySweep(ctx context.Context) error {
	since := o.now().Add(-retrySweepWindow)
	candidates, err := o.broadcasts.GetRetryableBroadcasts(since, retrySweepMaxRuns)
	if err != nil {
		return fmt.Errorf("failed to load retryable broadcasts: %w", err)
	}

	for i := range candidates {
		b := &candidates[i]
		if b.LastRetryAt != nil && o.now().Sub(*b.LastRetryAt) < retrySweepMinGap {
			continue
		}
		o.sweepBroadcast(ctx, b)
	}
	return nil
}

func (o *Orchestrator) sweepBroadcast(ctx context.Context, b *database.Broadcast) {
	attempt := b.RetryCount + 1

	info, err := o.probe.ProbeVideo(ctx, b.VideoID)
	if err != nil {
		slog.Debug("Recovery probe failed", "video_id", b.VideoID, "attempt", attempt, "error", err)
		o.recordSweepAttempt(b, attempt, attempt < retrySweepMaxRuns)
		return
	}

	if info.IsLive || !info.Accessible() {
		o.recordSweepAttempt(b, attempt, attempt < retrySweepMaxRuns)
		return
	}

	slog.Info("Recording became available, scheduling downloads",
		"video_id", b.VideoID, "attempt", attempt)

	if err := o.EnsureJobs(b); err != nil {
		slog.Error("Failed to create recovery jobs", "broadcast_id", b.ID, "error", err)
		o.recordSweepAttempt(b, attempt, attempt < retrySweepMaxRuns)
		return
	}
	o.resetFailedJobs(b.ID)

	// Job-level retries take over from here.
	o.recordSweepAttempt(b, attempt, false)
}

func (o *Orchestrator) recordSweepAttempt(b *database.Broadcast, attempt int, keepEnabled bool) {
	if err := o.broadcasts.UpdateRetryState(b.ID, attempt, o.now(), keepEnabled); err != nil {
		slog.Warn("Failed to record recovery attempt", "broadcast_id", b.ID, "error", err)
	}
}

func (o *Orchestrator) resetFailedJobs(broadcastID string) {
	jobs, err := o.jobs.GetJobsByBroadcast(broadcastID)
	if err != nil {
		slog.Warn("Failed to load jobs for reset", "broadcast_id", broadcastID, "error", err)
		return
	}
	for _, j := range jobs {
		if j.Status != database.JobFailed {
			continue
		}
		if err := o.jobs.ResetJob(j.ID); err != nil {
			slog.Warn("Failed to reset job", "job_id", j.ID, "error", err)
		}
	}
}

// CleanupExpired removes downloads whose retention deadline passed,
// deleting both the file and the job row.
func (o *Orchestrator) CleanupExpired() error {
	expired, err := o.jobs.GetExpiredJobs(o.now())
	if err != nil {
		return fmt.Errorf("failed to load expired jobs: %w", err)
	}

	for _, job := range expired {
		if job.FilePath != "" {
			if err := os.Remove(job.FilePath); err != nil && !os.IsNotExist(err) {
				slog.Warn("Failed to remove expired file", "job_id", job.ID, "file", job.FilePath, "error", err)
				continue
			}
		}
		if err := o.jobs.DeleteJob(job.ID); err != nil {
			slog.Warn("Failed to delete expired job", "job_id", job.ID, "error", err)
			continue
		}
		slog.Info("Expired download removed", "job_id", job.ID, "file", job.FilePath)
	}
	return nil
}

// CancelJob stops a running or pending job. Completed jobs cannot be
// cancelled.
func (o *Orchestrator) CancelJob(jobID string) error {
	job, err := o.jobs.GetJob(jobID)
	if err != nil {
		return fmt.Errorf("failed to load job %s: %w", jobID, err)
	}
	if job == nil {
		return fmt.Errorf("job %s not found", jobID)
	}
	if job.Status == database.JobCompleted {
		return fmt.Errorf("job %s is already completed", jobID)
	}

	o.cancelInflight(jobID)

	if err := o.jobs.MarkCancelled(jobID); err != nil {
		return fmt.Errorf("failed to cancel job %s: %w", jobID, err)
	}
	slog.Info("Download job cancelled", "job_id", jobID)

	// Cancelling the last viable tier must not strand the broadcast
	// in downloading.
	if broadcast, err := o.broadcasts.GetBroadcastByID(job.BroadcastID); err == nil && broadcast != nil {
		o.failBroadcastIfExhausted(broadcast)
	}
	return nil
}

// ForceRestartJob resets a job back to pending and dispatches it
// immediately, regardless of its retry budget.
func (o *Orchestrator) ForceRestartJob(jobID string) error {
	job, err := o.jobs.GetJob(jobID)
	if err != nil {
		return fmt.Errorf("failed to load job %s: %w", jobID, err)
	}
	if job == nil {
		return fmt.Errorf("job %s not found", jobID)
	}
	if job.Status == database.JobCompleted {
		return fmt.Errorf("job %s is already completed", jobID)
	}

	o.cancelInflight(jobID)

	if err := o.jobs.ResetJob(jobID); err != nil {
		return fmt.Errorf("failed to reset job %s: %w", jobID, err)
	}
	slog.Info("Download job restarted", "job_id", jobID)

	o.dispatch(jobID)
	return nil
}

func (o *Orchestrator) trackInflight(jobID string, cancel context.CancelFunc) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.inflight[jobID] = cancel
}

func (o *Orchestrator) untrackInflight(jobID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.inflight, jobID)
}

func (o *Orchestrator) isInflight(jobID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.inflight[jobID]
	return ok
}

func (o *Orchestrator) cancelInflight(jobID string) {
	o.mu.Lock()
	cancel, ok := o.inflight[jobID]
	o.mu.Unlock()
	if ok {
		cancel()
	}
}
