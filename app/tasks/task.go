package tasks

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

type TaskType string

const (
	TaskTypePollChannel     TaskType = "poll_channel"
	TaskTypeDownloadJob     TaskType = "download_job"
	TaskTypeProcessQueue    TaskType = "process_queue"
	TaskTypeReconcileJobs   TaskType = "reconcile_jobs"
	TaskTypeRetrySweep      TaskType = "retry_sweep"
	TaskTypeAdjustIntervals TaskType = "adjust_intervals"
	TaskTypeCleanup         TaskType = "cleanup"
)

const (
	DefaultMaxRetries = 3

	// DefaultTaskTimeout bounds polling and maintenance tasks. Tasks
	// that legitimately run longer override Timeout.
	DefaultTaskTimeout = 30 * time.Minute
)

type TaskInterface interface {
	Execute(ctx context.Context) error
	GetID() string
	GetType() TaskType
	GetSubject() string
	GetRetryCount() int
	GetMaxRetries() int
	IncrementRetryCount()
	CanRetry() bool
	Start()
	GetDuration() time.Duration
	GetTimeout() time.Duration
}

type Task struct {
	ID         string
	Type       TaskType
	Subject    string
	RetryCount int
	MaxRetries int
	Timeout    time.Duration
	StartedAt  *time.Time
}

func (t *Task) GetID() string {
	return t.ID
}

func (t *Task) GetType() TaskType {
	return t.Type
}

func (t *Task) GetSubject() string {
	return t.Subject
}

func (t *Task) GetRetryCount() int {
	return t.RetryCount
}

func (t *Task) GetMaxRetries() int {
	return t.MaxRetries
}

func (t *Task) IncrementRetryCount() {
	t.RetryCount++
}

func (t *Task) CanRetry() bool {
	return t.RetryCount < t.MaxRetries
}

func (t *Task) Start() {
	now := time.Now()
	t.StartedAt = &now
}

func (t *Task) GetDuration() time.Duration {
	if t.StartedAt == nil {
		return 0
	}
	return time.Since(*t.StartedAt)
}

func (t *Task) GetTimeout() time.Duration {
	return t.Timeout
}

func NewTask(taskType TaskType, subject string) Task {
	uniqueID := fmt.Sprintf("%d-%d", time.Now().UnixNano(), rand.Intn(10000))

	return Task{
		ID:         uniqueID,
		Type:       taskType,
		Subject:    subject,
		RetryCount: 0,
		MaxRetries: DefaultMaxRetries,
		Timeout:    DefaultTaskTimeout,
	}
}
