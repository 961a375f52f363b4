// Package report builds read-only views of the tracked state: a static HTML
// or JSON report and the pages served by the dashboard.
package report

import (
	"context"
	"fmt"
	"time"

	"igtracker/pkg/models"
	"igtracker/pkg/runstate"
	"igtracker/pkg/store"
)

// DefaultRecentEvents is the length of the report's event feed
const DefaultRecentEvents = 50

// Data is everything a report renders
type Data struct {
	GeneratedAt  time.Time               `json:"generated_at"`
	Username     string                  `json:"username,omitempty"`
	Summary      store.Summary           `json:"summary"`
	OneWay       []models.TrackedAccount `json:"one_way"`
	Accounts     []models.TrackedAccount `json:"accounts"`
	RecentEvents []models.HistoryEvent   `json:"recent_events"`
	LastRun      *runstate.Run           `json:"last_run,omitempty"`
}

// Options controls Build
type Options struct {
	Username     string
	RecentEvents int
	// IncludeInactive lists accounts no longer followed alongside active ones
	IncludeInactive bool
	LastRun         *runstate.Run
	Now             time.Time
}

// Build reads the store into a Data
func Build(ctx context.Context, st store.Reader, summarize func(context.Context) (store.Summary, error), opts Options) (*Data, error) {
	if opts.RecentEvents <= 0 {
		opts.RecentEvents = DefaultRecentEvents
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}

	sum, err := summarize(ctx)
	if err != nil {
		return nil, fmt.Errorf("summary: %w", err)
	}

	oneWay, err := st.ListAccounts(ctx, store.AccountFilter{
		Active:       store.Bool(true),
		Reciprocates: store.Bool(false),
		Order:        store.OrderByFirstSeenDesc,
	})
	if err != nil {
		return nil, err
	}

	filter := store.AccountFilter{}
	if !opts.IncludeInactive {
		filter.Active = store.Bool(true)
	}
	accounts, err := st.ListAccounts(ctx, filter)
	if err != nil {
		return nil, err
	}

	events, err := st.ListHistory(ctx, opts.RecentEvents)
	if err != nil {
		return nil, err
	}

	return &Data{
		GeneratedAt:  opts.Now.UTC(),
		Username:     opts.Username,
		Summary:      sum,
		OneWay:       nonNil(oneWay),
		Accounts:     nonNil(accounts),
		RecentEvents: nonNilEvents(events),
		LastRun:      opts.LastRun,
	}, nil
}

// FromStore is Build over a full Store
func FromStore(ctx context.Context, st store.Store, opts Options) (*Data, error) {
	return Build(ctx, st, st.Summary, opts)
}

func nonNil(a []models.TrackedAccount) []models.TrackedAccount {
	if a == nil {
		return []models.TrackedAccount{}
	}
	return a
}

func nonNilEvents(e []models.HistoryEvent) []models.HistoryEvent {
	if e == nil {
		return []models.HistoryEvent{}
	}
	return e
}
