package breaker

import (
	"log/slog"
	"sync"
	"time"

	"github.com/krailo/streamwatch/app/database"
	"github.com/krailo/streamwatch/app/youtube"
)

const (
	// Failures within the reset window before the primary source is
	// blocked outright.
	maxFailuresBeforeBlock = 5
	// Counter level at which lookups are routed to the secondary
	// source even though the primary is not blocked yet.
	softDegradeThreshold = 3

	blockDuration      = 30 * time.Minute
	failureResetWindow = 6 * time.Hour
	quotaBlockDuration = 24 * time.Hour
)

// Breaker tracks failures of the quota-limited primary source and
// decides when lookups should go to the unlimited secondary source
// instead. State is written through to the repository so a restart
// does not reset protection.
type Breaker struct {
	name string
	repo database.BreakerRepository
	now  func() time.Time

	mu            sync.Mutex
	failureCount  int
	lastFailureAt *time.Time
	blockedUntil  *time.Time
}

// Status is a read-only snapshot for the management API.
type Status struct {
	FailureCount       int        `json:"failure_count"`
	IsBlocked          bool       `json:"is_blocked"`
	BlockedUntil       *time.Time `json:"blocked_until,omitempty"`
	LastFailureAt      *time.Time `json:"last_failure_at,omitempty"`
	ShouldUseSecondary bool       `json:"should_use_secondary"`
}

func New(name string, repo database.BreakerRepository) *Breaker {
	b := &Breaker{
		name: name,
		repo: repo,
		now:  time.Now,
	}
	b.loadState()
	return b
}

// SetClock replaces the time source. Test helper only.
func (b *Breaker) SetClock(now func() time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.now = now
}

func (b *Breaker) loadState() {
	state, err := b.repo.GetBreakerState(b.name)
	if err != nil {
		slog.Warn("Failed to load breaker state, starting fresh", "breaker", b.name, "error", err)
		return
	}
	if state == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.failureCount = state.FailureCount
	b.lastFailureAt = state.LastFailureAt
	b.blockedUntil = state.BlockedUntil
}

func (b *Breaker) saveStateLocked() {
	err := b.repo.SaveBreakerState(database.BreakerState{
		Name:          b.name,
		FailureCount:  b.failureCount,
		LastFailureAt: b.lastFailureAt,
		BlockedUntil:  b.blockedUntil,
	})
	if err != nil {
		slog.Warn("Failed to persist breaker state", "breaker", b.name, "error", err)
	}
}

// IsBlocked reports whether the primary source is currently blocked.
// Expiry is lazy: a block past its deadline is cleared here, on read.
func (b *Breaker) IsBlocked() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.isBlockedLocked()
}

func (b *Breaker) isBlockedLocked() bool {
	if b.blockedUntil == nil {
		return false
	}
	if b.now().Before(*b.blockedUntil) {
		return true
	}
	b.blockedUntil = nil
	b.saveStateLocked()
	return false
}

// ShouldUseSecondary reports whether lookups should be routed to the
// secondary source: always while blocked, and as a soft degrade once
// the failure counter nears the block threshold.
func (b *Breaker) ShouldUseSecondary() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.isBlockedLocked() {
		return true
	}
	return b.failureCount >= softDegradeThreshold
}

// RecordSuccess decrements the failure counter by one, floor zero.
// Gradual recovery rather than an instant reset keeps a flapping
// primary source from oscillating in and out of degraded mode.
func (b *Breaker) RecordSuccess(operation string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.failureCount > 0 {
		b.failureCount--
		b.saveStateLocked()
	}

	slog.Debug("Primary source success", "breaker", b.name, "operation", operation, "failure_count", b.failureCount)
}

// RecordFailure increments the failure counter, blocking the primary
// source once the threshold is reached. A quota-exhaustion error
// forces a 24 hour block immediately, bypassing the counter.
func (b *Breaker) RecordFailure(operation string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()

	if youtube.IsQuotaError(err) {
		until := now.Add(quotaBlockDuration)
		b.failureCount = maxFailuresBeforeBlock
		b.lastFailureAt = &now
		b.blockedUntil = &until
		b.saveStateLocked()
		slog.Warn("Primary source quota exhausted, blocking",
			"breaker", b.name, "operation", operation, "blocked_until", until)
		return
	}

	// Stale failures should not accumulate across quiet days.
	if b.lastFailureAt != nil && now.Sub(*b.lastFailureAt) > failureResetWindow {
		b.failureCount = 0
	}

	b.failureCount++
	b.lastFailureAt = &now

	if b.failureCount >= maxFailuresBeforeBlock {
		until := now.Add(blockDuration)
		b.blockedUntil = &until
		slog.Warn("Primary source blocked after repeated failures",
			"breaker", b.name, "operation", operation, "failure_count", b.failureCount, "blocked_until", until)
	} else {
		slog.Warn("Primary source failure recorded",
			"breaker", b.name, "operation", operation, "failure_count", b.failureCount, "error", err)
	}

	b.saveStateLocked()
}

// Reset clears all breaker state. Operator recovery path.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failureCount = 0
	b.lastFailureAt = nil
	b.blockedUntil = nil
	b.saveStateLocked()

	slog.Info("Breaker state reset", "breaker", b.name)
}

// GetStatus returns a snapshot of the breaker for status queries.
func (b *Breaker) GetStatus() Status {
	b.mu.Lock()
	defer b.mu.Unlock()

	blocked := b.isBlockedLocked()
	return Status{
		FailureCount:       b.failureCount,
		IsBlocked:          blocked,
		BlockedUntil:       b.blockedUntil,
		LastFailureAt:      b.lastFailureAt,
		ShouldUseSecondary: blocked || b.failureCount >= softDegradeThreshold,
	}
}
