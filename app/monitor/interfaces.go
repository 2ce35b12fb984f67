package monitor

import (
	"context"

	"github.com/krailo/streamwatch/app/database"
	"github.com/krailo/streamwatch/app/youtube"
)

// ChannelPoller discovers the currently live broadcasts of a channel.
type ChannelPoller interface {
	PollChannel(ctx context.Context, channelID string) ([]youtube.Candidate, error)
}

// QuotaGate routes lookups between the quota-limited primary source
// and the free secondary sources.
type QuotaGate interface {
	ShouldUseSecondary() bool
	RecordSuccess(operation string)
	RecordFailure(operation string, err error)
}

// BroadcastClassifier decides whether a polled candidate duplicates a
// tracked broadcast.
type BroadcastClassifier interface {
	Classify(channelID string, candidate youtube.Candidate) Classification
}

// LifecycleDriver applies state transitions to tracked broadcasts and
// announces newly created ones.
type LifecycleDriver interface {
	Transition(b *database.Broadcast, to string) error
	Created(b *database.Broadcast)
}
