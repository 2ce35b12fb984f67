package database

import (
	"database/sql"
	"fmt"
)

// BreakerRepo persists circuit breaker state so a restart does not
// reset quota protection.
type BreakerRepo struct {
	db *DB
}

var _ BreakerRepository = (*BreakerRepo)(nil)

func NewBreakerRepository(db *DB) *BreakerRepo {
	return &BreakerRepo{db: db}
}

func (r *BreakerRepo) GetBreakerState(name string) (*BreakerState, error) {
	var s BreakerState
	err := r.db.QueryRow(`
		SELECT name, failure_count, last_failure_at, blocked_until, updated_at
		FROM breaker_state
		WHERE name = ?
	`, name).Scan(&s.Name, &s.FailureCount, &s.LastFailureAt, &s.BlockedUntil, &s.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get breaker state: %w", err)
	}

	return &s, nil
}

func (r *BreakerRepo) SaveBreakerState(state BreakerState) error {
	var lastFailure, blockedUntil any
	if state.LastFailureAt != nil {
		lastFailure = state.LastFailureAt.UTC()
	}
	if state.BlockedUntil != nil {
		blockedUntil = state.BlockedUntil.UTC()
	}

	_, err := r.db.Exec(`
		INSERT INTO breaker_state (name, failure_count, last_failure_at, blocked_until, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(name) DO UPDATE SET
		    failure_count = excluded.failure_count,
		    last_failure_at = excluded.last_failure_at,
		    blocked_until = excluded.blocked_until,
		    updated_at = CURRENT_TIMESTAMP
	`, state.Name, state.FailureCount, lastFailure, blockedUntil)
	if err != nil {
		return fmt.Errorf("failed to save breaker state: %w", err)
	}

	return nil
}
