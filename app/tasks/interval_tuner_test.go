package tasks

import (
	"testing"

	"github.com/krailo/streamwatch/app/database"
	"github.com/krailo/streamwatch/app/lifecycle"
)

func TestIntervalTunerAdjustsOnLiveBroadcast(t *testing.T) {
	channels := &mockChannelRepo{channels: []database.Channel{
		{ID: "ch-1", ChannelID: "UC123", Name: "Busy", CheckIntervalMinutes: 15},
	}}
	broadcasts := &mockBroadcastCounter{counts: map[string]int{"ch-1": 10}}

	tuner := NewIntervalTuner(channels, broadcasts)
	tuner.OnBroadcastEvent(lifecycle.Event{
		Broadcast: &database.Broadcast{ID: "b-1", ChannelID: "ch-1"},
		From:      "",
		To:        database.BroadcastLive,
	})

	if got := channels.intervalUpdates["ch-1"]; got != 1 {
		t.Errorf("Expected interval tightened to 1 minute, got %d", got)
	}
}

func TestIntervalTunerSkipsUnchangedInterval(t *testing.T) {
	channels := &mockChannelRepo{channels: []database.Channel{
		{ID: "ch-1", ChannelID: "UC123", Name: "Quiet", CheckIntervalMinutes: 15},
	}}
	broadcasts := &mockBroadcastCounter{counts: map[string]int{"ch-1": 1}}

	tuner := NewIntervalTuner(channels, broadcasts)
	tuner.OnBroadcastEvent(lifecycle.Event{
		Broadcast: &database.Broadcast{ID: "b-1", ChannelID: "ch-1"},
		To:        database.BroadcastLive,
	})

	if _, updated := channels.intervalUpdates["ch-1"]; updated {
		t.Error("Expected no interval update when cadence already matches")
	}
}

func TestIntervalTunerIgnoresOtherTransitions(t *testing.T) {
	channels := &mockChannelRepo{channels: []database.Channel{
		{ID: "ch-1", ChannelID: "UC123", Name: "Busy", CheckIntervalMinutes: 15},
	}}
	broadcasts := &mockBroadcastCounter{counts: map[string]int{"ch-1": 10}}

	tuner := NewIntervalTuner(channels, broadcasts)
	tuner.OnBroadcastEvent(lifecycle.Event{
		Broadcast: &database.Broadcast{ID: "b-1", ChannelID: "ch-1"},
		From:      database.BroadcastLive,
		To:        database.BroadcastEnded,
	})

	if _, updated := channels.intervalUpdates["ch-1"]; updated {
		t.Error("Expected no interval update on a non-live event")
	}
}
