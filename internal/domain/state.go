package domain

import "time"

// State is where a user stands in a multi-step command.
type State string

const (
	StateIdle             State = "idle"
	StateAwaitingToken    State = "awaiting_token"
	StateAwaitingIssueKey State = "awaiting_issue_key"
)

func (s State) Valid() bool {
	switch s {
	case StateIdle, StateAwaitingToken, StateAwaitingIssueKey:
		return true
	}
	return false
}

// Expired reports whether a waiting state set at updatedAt has outlived ttl.
// Idle never expires; a zero ttl disables expiry.
func Expired(s State, updatedAt, now time.Time, ttl time.Duration) bool {
	if s == StateIdle || ttl <= 0 {
		return false
	}
	return now.Sub(updatedAt) > ttl
}
