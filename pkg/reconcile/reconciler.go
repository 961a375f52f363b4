// Package reconcile turns a collected snapshot into account state changes and
// follow history. All mutations of one run commit together or not at all.
package reconcile

import (
	"context"
	"fmt"
	"sort"
	"time"

	errs "igtracker/pkg/errors"
	"igtracker/pkg/instagram"
	"igtracker/pkg/logger"
	"igtracker/pkg/metrics"
	"igtracker/pkg/models"
	"igtracker/pkg/store"
)

// ReciprocityChecker is satisfied by *reciprocity.Checker
type ReciprocityChecker interface {
	Check(ctx context.Context, identifier, self string) (bool, error)
}

// Result summarises one reconciliation
type Result struct {
	Events []models.HistoryEvent

	Created     int
	Reactivated int
	Deactivated int
	Unchanged   int

	ReciprocityFailures int
	Active              int
	Mutual              int
}

// Reconciler applies snapshots to a Store
type Reconciler struct {
	store   store.Store
	checker ReciprocityChecker
	self    string
	logger  logger.Logger

	// OnReciprocity is called after each reciprocity check
	OnReciprocity func(done, total int, identifier string)
}

// New creates a Reconciler. A nil checker disables reciprocity checks, which
// leaves existing flags unchanged and marks new accounts as not following back.
func New(st store.Store, checker ReciprocityChecker, self string, log logger.Logger) *Reconciler {
	return &Reconciler{
		store:   st,
		checker: checker,
		self:    instagram.NormalizeIdentifier(self),
		logger:  logger.ForComponent(log, "reconciler"),
	}
}

// reciprocity is the outcome of one check; known is false when the check failed
type reciprocity struct {
	value bool
	known bool
}

// Reconcile diffs snapshot against the stored accounts and commits the
// result as one unit of work. Only accepted snapshots may be passed in; a
// failed collection must never reach this point.
func (r *Reconciler) Reconcile(ctx context.Context, snapshot []string, now time.Time) (*Result, error) {
	now = now.UTC()
	present := normalize(snapshot)

	checks, failures, err := r.checkAll(ctx, present)
	if err != nil {
		return nil, err
	}

	var result *Result
	err = r.store.RunAtomic(ctx, func(tx store.Tx) error {
		res, err := r.apply(ctx, tx, present, checks, now)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, errs.Persistence(ctx.Err(), "reconciliation cancelled, nothing committed")
		}
		return nil, errs.Persistence(err, "reconciliation rolled back")
	}

	result.ReciprocityFailures = failures
	for _, e := range result.Events {
		metrics.IncHistoryEvent(string(e.Kind))
	}
	metrics.SetAccountGauges(result.Active, result.Mutual)

	r.logger.InfoWithFields("Reconciliation committed", map[string]interface{}{
		"snapshot":             len(present),
		"created":              result.Created,
		"reactivated":          result.Reactivated,
		"deactivated":          result.Deactivated,
		"unchanged":            result.Unchanged,
		"events":               len(result.Events),
		"reciprocity_failures": failures,
	})
	return result, nil
}

// checkAll runs every reciprocity check. It must be called before the
// transaction is opened.
func (r *Reconciler) checkAll(ctx context.Context, present []string) (map[string]reciprocity, int, error) {
	checks := make(map[string]reciprocity, len(present))
	if r.checker == nil || r.self == "" {
		return checks, 0, nil
	}

	failures := 0
	for i, id := range present {
		if err := ctx.Err(); err != nil {
			return nil, failures, errs.Persistence(err, "reconciliation cancelled, nothing committed")
		}
		ok, err := r.checker.Check(ctx, id, r.self)
		if err != nil {
			failures++
			r.logger.WithError(err).WarnWithFields("Reciprocity check failed, keeping previous value", map[string]interface{}{
				"identifier": id,
			})
		} else {
			checks[id] = reciprocity{value: ok, known: true}
		}
		if r.OnReciprocity != nil {
			r.OnReciprocity(i+1, len(present), id)
		}
	}
	return checks, failures, nil
}

func (r *Reconciler) apply(ctx context.Context, tx store.Tx, present []string, checks map[string]reciprocity, now time.Time) (*Result, error) {
	existing, err := tx.ListAccounts(ctx, store.AccountFilter{})
	if err != nil {
		return nil, err
	}
	prior := make(map[string]models.TrackedAccount, len(existing))
	for _, a := range existing {
		prior[a.Identifier] = a
	}

	res := &Result{}
	seen := make(map[string]bool, len(present))

	for _, id := range present {
		seen[id] = true
		check := checks[id]

		account, exists := prior[id]
		if !exists {
			account = models.TrackedAccount{Identifier: id, FirstSeen: now}
		}
		wasActive := exists && account.Active

		if check.known {
			account.Reciprocates = check.value
		}
		account.Active = true
		if now.After(account.LastSeen) {
			account.LastSeen = now
		}
		if account.FirstSeen.After(account.LastSeen) {
			account.FirstSeen = account.LastSeen
		}

		if err := tx.UpsertAccount(ctx, account); err != nil {
			return nil, err
		}

		switch {
		case !exists:
			res.Created++
		case !wasActive:
			res.Reactivated++
		default:
			res.Unchanged++
		}
		if !wasActive {
			event, err := appendEvent(ctx, tx, id, models.EventNewFollow, now)
			if err != nil {
				return nil, err
			}
			res.Events = append(res.Events, event)
		}
		if account.Mutual() {
			res.Mutual++
		}
	}
	res.Active = len(present)

	var dropped []string
	for id, a := range prior {
		if !seen[id] && a.Active {
			dropped = append(dropped, id)
		}
	}
	sort.Strings(dropped)

	for _, id := range dropped {
		account := prior[id]
		account.Active = false
		if err := tx.UpsertAccount(ctx, account); err != nil {
			return nil, err
		}
		event, err := appendEvent(ctx, tx, id, models.EventUnfollow, now)
		if err != nil {
			return nil, err
		}
		res.Events = append(res.Events, event)
		res.Deactivated++
	}

	return res, nil
}

func appendEvent(ctx context.Context, tx store.Tx, id string, kind models.EventKind, now time.Time) (models.HistoryEvent, error) {
	event := models.HistoryEvent{Identifier: id, Kind: kind, OccurredAt: now}
	eventID, err := tx.AppendHistory(ctx, event)
	if err != nil {
		return event, fmt.Errorf("record %s for %s: %w", kind, id, err)
	}
	event.ID = eventID
	return event, nil
}

// normalize lowercases, drops blanks and duplicates, and sorts
func normalize(snapshot []string) []string {
	set := make(map[string]struct{}, len(snapshot))
	for _, raw := range snapshot {
		if id := instagram.NormalizeIdentifier(raw); id != "" {
			set[id] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
