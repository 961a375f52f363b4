// Package store persists tracked accounts and their follow history.
//
// Writers go through RunAtomic so a tracking cycle's account updates and
// history events land together or not at all.
package store

import (
	"context"
	"time"

	"igtracker/pkg/models"
)

// Order selects how ListAccounts sorts its result
type Order int

const (
	OrderByIdentifier Order = iota
	OrderByFirstSeenDesc
	OrderByLastSeenDesc
)

// AccountFilter narrows ListAccounts. Nil pointers mean no constraint.
type AccountFilter struct {
	Active       *bool
	Reciprocates *bool
	Order        Order
}

// Reader is the read side shared by Store and Tx
type Reader interface {
	GetAccount(ctx context.Context, identifier string) (*models.TrackedAccount, error)
	ListAccounts(ctx context.Context, filter AccountFilter) ([]models.TrackedAccount, error)
	ListHistory(ctx context.Context, limit int) ([]models.HistoryEvent, error)
}

// Writer is the write side available inside a unit of work
type Writer interface {
	UpsertAccount(ctx context.Context, account models.TrackedAccount) error
	AppendHistory(ctx context.Context, event models.HistoryEvent) (int64, error)
}

// Tx is a unit of work. It is only valid inside the RunAtomic callback.
type Tx interface {
	Reader
	Writer
}

// Store is the durable record of tracked accounts and history
type Store interface {
	Reader
	// RunAtomic runs fn in a transaction that commits when fn returns nil
	// and rolls back otherwise.
	RunAtomic(ctx context.Context, fn func(tx Tx) error) error
	Summary(ctx context.Context) (Summary, error)
	Close() error
}

// Summary holds the headline counts shown by reports
type Summary struct {
	Active       int       `json:"active"`
	Inactive     int       `json:"inactive"`
	Mutual       int       `json:"mutual"`
	NotMutual    int       `json:"not_mutual"`
	Events       int       `json:"events"`
	LastActivity time.Time `json:"last_activity,omitempty"`
}

// Bool is a helper for building filters
func Bool(v bool) *bool { return &v }
