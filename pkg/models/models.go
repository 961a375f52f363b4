package models

import "time"

// EventKind names a follow-state transition
type EventKind string

const (
	EventNewFollow EventKind = "NEW_FOLLOW"
	EventUnfollow  EventKind = "UNFOLLOW"
)

// Valid reports whether k is a known kind
func (k EventKind) Valid() bool {
	return k == EventNewFollow || k == EventUnfollow
}

// AccountState is the lifecycle state of a tracked account.
// StateNew only exists during reconciliation and is never persisted.
type AccountState string

const (
	StateNew      AccountState = "NEW"
	StateActive   AccountState = "ACTIVE"
	StateInactive AccountState = "INACTIVE"
)

// TrackedAccount is one ever-seen followed account
type TrackedAccount struct {
	Identifier   string    `json:"identifier"`
	Reciprocates bool      `json:"reciprocates"`
	FirstSeen    time.Time `json:"first_seen"`
	LastSeen     time.Time `json:"last_seen"`
	Active       bool      `json:"active"`
}

// State derives the lifecycle state from the active flag
func (a *TrackedAccount) State() AccountState {
	if a == nil {
		return StateNew
	}
	if a.Active {
		return StateActive
	}
	return StateInactive
}

// Mutual reports an active account that follows back
func (a TrackedAccount) Mutual() bool {
	return a.Active && a.Reciprocates
}

// HistoryEvent is an append-only record of a transition
type HistoryEvent struct {
	ID         int64     `json:"id,omitempty"`
	Identifier string    `json:"identifier"`
	Kind       EventKind `json:"event_kind"`
	OccurredAt time.Time `json:"occurred_at"`
}
