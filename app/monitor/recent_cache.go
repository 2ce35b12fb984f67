package monitor

import (
	"sync"
	"time"
)

const (
	recentCacheSize = 10
	recentCacheTTL  = 2 * time.Hour
)

// Observation is a recently seen broadcast kept in memory for
// operational visibility. The duplicate verdict never depends on it.
type Observation struct {
	VideoID    string
	Title      string
	ObservedAt time.Time
}

// RecentCache holds the last observations per channel, bounded in both
// count and age.
type RecentCache struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[string][]Observation
}

func NewRecentCache() *RecentCache {
	return &RecentCache{
		now:     time.Now,
		entries: make(map[string][]Observation),
	}
}

// Add records an observation for the channel, evicting the oldest
// entry when the per-channel bound is exceeded.
func (c *RecentCache) Add(channelID, videoID, title string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	obs := c.freshLocked(channelID)
	obs = append(obs, Observation{
		VideoID:    videoID,
		Title:      title,
		ObservedAt: c.now(),
	})
	if len(obs) > recentCacheSize {
		obs = obs[len(obs)-recentCacheSize:]
	}
	c.entries[channelID] = obs
}

// Recent returns the channel's unexpired observations, oldest first.
func (c *RecentCache) Recent(channelID string) []Observation {
	c.mu.Lock()
	defer c.mu.Unlock()

	obs := c.freshLocked(channelID)
	c.entries[channelID] = obs

	out := make([]Observation, len(obs))
	copy(out, obs)
	return out
}

func (c *RecentCache) freshLocked(channelID string) []Observation {
	cutoff := c.now().Add(-recentCacheTTL)
	var fresh []Observation
	for _, o := range c.entries[channelID] {
		if o.ObservedAt.After(cutoff) {
			fresh = append(fresh, o)
		}
	}
	return fresh
}
