package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/krailo/streamwatch/app/cfg"
	"github.com/krailo/streamwatch/app/database"
)

const (
	reconcileEvery = time.Minute
	adjustEvery    = 5 * time.Minute
	cleanupEvery   = time.Hour
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

type Scheduler struct {
	channelRepo   database.ChannelRepository
	broadcastRepo database.BroadcastRepository
	monitor       ChannelChecker
	orchestrator  DownloadOrchestrator
	interval      time.Duration
	workerCount   int
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	taskQueue     chan TaskInterface

	mu            sync.Mutex
	busyChannels  map[string]struct{}
	lastReconcile time.Time
	lastAdjust    time.Time
	lastCleanup   time.Time
}

func NewScheduler(channelRepo database.ChannelRepository, broadcastRepo database.BroadcastRepository,
	monitor ChannelChecker, orchestrator DownloadOrchestrator) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := cfg.Get()

	return &Scheduler{
		channelRepo:   channelRepo,
		broadcastRepo: broadcastRepo,
		monitor:       monitor,
		orchestrator:  orchestrator,
		interval:      time.Duration(cfg.SchedulerInterval) * time.Second,
		workerCount:   cfg.WorkerCount,
		ctx:           ctx,
		cancel:        cancel,
		taskQueue:     make(chan TaskInterface, 300),
		busyChannels:  make(map[string]struct{}),
	}
}

func (s *Scheduler) Start() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.enqueueTasks()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.enqueueTasks()
			}
		}
	}()
}

func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
	close(s.taskQueue)
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	select {
	case s.taskQueue <- task:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
		return fmt.Errorf("task queue is full")
	}
}

// DispatchDownload enqueues a download job for execution. Wired into
// the orchestrator as its dispatcher callback.
func (s *Scheduler) DispatchDownload(jobID string) {
	task := NewDownloadJobTask(jobID, s.orchestrator)
	if err := s.EnqueueTask(task); err != nil {
		slog.Warn("Failed to enqueue DownloadJobTask", "job_id", jobID, "error", err)
	}
}

// TriggerChannelCheck enqueues an immediate monitoring pass for the
// channel, bypassing its polling interval.
func (s *Scheduler) TriggerChannelCheck(channel *database.Channel) error {
	if !s.acquireChannel(channel.ID) {
		return fmt.Errorf("channel %s is already being checked", channel.ChannelID)
	}

	task := NewPollChannelTask(channel, s.monitor, func() { s.releaseChannel(channel.ID) })
	if err := s.EnqueueTask(task); err != nil {
		s.releaseChannel(channel.ID)
		return err
	}
	return nil
}

func (s *Scheduler) enqueueTasks() {
	s.enqueueDueChannels()
	s.enqueueMaintenanceTasks()
}

func (s *Scheduler) enqueueDueChannels() {
	channels, err := s.channelRepo.GetActiveChannels()
	if err != nil {
		slog.Warn("Failed to load active channels", "error", err)
		return
	}
	if len(channels) == 0 {
		slog.Debug("No active channels configured")
		return
	}

	now := time.Now()
	for i := range channels {
		channel := channels[i]
		if !channelDue(&channel, now) {
			continue
		}
		if !s.acquireChannel(channel.ID) {
			slog.Debug("Channel check still running, skipping", "channel", channel.Name)
			continue
		}

		id := channel.ID
		task := NewPollChannelTask(&channel, s.monitor, func() { s.releaseChannel(id) })
		if err := s.EnqueueTask(task); err != nil {
			s.releaseChannel(id)
			slog.Warn("Failed to enqueue PollChannelTask", "channel", channel.Name, "error", err)
		}
	}
}

func (s *Scheduler) enqueueMaintenanceTasks() {
	if err := s.EnqueueTask(NewProcessQueueTask(s.orchestrator)); err != nil {
		slog.Warn("Failed to enqueue ProcessQueueTask", "error", err)
	}
	if err := s.EnqueueTask(NewRetrySweepTask(s.orchestrator)); err != nil {
		slog.Warn("Failed to enqueue RetrySweepTask", "error", err)
	}

	now := time.Now()

	s.mu.Lock()
	runReconcile := now.Sub(s.lastReconcile) >= reconcileEvery
	if runReconcile {
		s.lastReconcile = now
	}
	runAdjust := now.Sub(s.lastAdjust) >= adjustEvery
	if runAdjust {
		s.lastAdjust = now
	}
	runCleanup := now.Sub(s.lastCleanup) >= cleanupEvery
	if runCleanup {
		s.lastCleanup = now
	}
	s.mu.Unlock()

	if runReconcile {
		if err := s.EnqueueTask(NewReconcileJobsTask(s.orchestrator)); err != nil {
			slog.Warn("Failed to enqueue ReconcileJobsTask", "error", err)
		}
	}
	if runAdjust {
		if err := s.EnqueueTask(NewAdjustIntervalsTask(s.channelRepo, s.broadcastRepo)); err != nil {
			slog.Warn("Failed to enqueue AdjustIntervalsTask", "error", err)
		}
	}
	if runCleanup {
		if err := s.EnqueueTask(NewCleanupTask(s.orchestrator)); err != nil {
			slog.Warn("Failed to enqueue CleanupTask", "error", err)
		}
	}
}

// channelDue reports whether the channel's polling interval has
// elapsed since its last check.
func channelDue(channel *database.Channel, now time.Time) bool {
	if channel.LastCheckedAt == nil {
		return true
	}
	interval := time.Duration(channel.CheckIntervalMinutes) * time.Minute
	return !now.Before(channel.LastCheckedAt.Add(interval))
}

func (s *Scheduler) acquireChannel(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.busyChannels[id]; busy {
		return false
	}
	s.busyChannels[id] = struct{}{}
	return true
}

func (s *Scheduler) releaseChannel(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.busyChannels, id)
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task, ok := <-s.taskQueue:
			if !ok {
				return
			}
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()

	var taskCtx context.Context
	var cancel context.CancelFunc
	if timeout := task.GetTimeout(); timeout > 0 {
		taskCtx, cancel = context.WithTimeout(s.ctx, timeout)
	} else {
		taskCtx, cancel = context.WithCancel(s.ctx)
	}
	defer cancel()

	err := task.Execute(taskCtx)

	if err != nil {
		slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", err)

		if task.CanRetry() {
			task.IncrementRetryCount()
			retryDelay := time.Duration(1<<uint(task.GetRetryCount()-1)) * time.Second
			if retryDelay > 30*time.Second {
				retryDelay = 30 * time.Second
			}

			slog.Warn("Task retry scheduled", "type", string(task.GetType()), "subject", task.GetSubject(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", retryDelay.String())

			go func() {
				time.Sleep(retryDelay)
				select {
				case <-s.ctx.Done():
					slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
					return
				default:
					if retryErr := s.EnqueueTask(task); retryErr != nil {
						slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", retryErr)
					}
				}
			}()
		} else {
			slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
		}
	}
}
