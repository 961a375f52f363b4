package tracker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"igtracker/pkg/collector"
	"igtracker/pkg/config"
	errs "igtracker/pkg/errors"
	"igtracker/pkg/logger"
	"igtracker/pkg/metrics"
	"igtracker/pkg/models"
	"igtracker/pkg/reciprocity"
	"igtracker/pkg/reconcile"
	"igtracker/pkg/runstate"
	"igtracker/pkg/store"
)

// Notifier is satisfied by *ui.Notifier
type Notifier interface {
	SendNotification(title, message string)
	SendError(title, message string)
}

// Tracker runs collect-and-reconcile cycles for one account
type Tracker struct {
	cfg      *config.Config
	store    store.Store
	sessions SessionFactory
	runs     *runstate.Manager
	notifier Notifier
	logger   logger.Logger
	now      func() time.Time

	// OnExpected receives the advertised following count
	OnExpected func(expected int)
	// OnCollect receives collector progress
	OnCollect func(collector.Progress)
	// OnReciprocity receives reciprocity check progress
	OnReciprocity func(done, total int, identifier string)
}

// Option configures a Tracker
type Option func(*Tracker)

// WithRunState records every cycle through m
func WithRunState(m *runstate.Manager) Option {
	return func(t *Tracker) { t.runs = m }
}

// WithNotifier sends desktop notifications through n
func WithNotifier(n Notifier) Option {
	return func(t *Tracker) { t.notifier = n }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithLogger replaces the global logger
func WithLogger(l logger.Logger) Option {
	return func(t *Tracker) { t.logger = l }
}

// New creates a Tracker
func New(cfg *config.Config, st store.Store, sessions SessionFactory, opts ...Option) *Tracker {
	t := &Tracker{
		cfg:      cfg,
		store:    st,
		sessions: sessions,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = logger.ForComponent(t.logger, "tracker")
	return t
}

// CycleResult describes a finished cycle
type CycleResult struct {
	Run       *runstate.Run
	Snapshot  *collector.Snapshot
	Reconcile *reconcile.Result
}

// RunCycle signs in, collects the following list and reconciles it. A
// collection that never reaches the quality threshold leaves the store
// untouched and returns a collection_failure error.
func (t *Tracker) RunCycle(ctx context.Context) (*CycleResult, error) {
	start := time.Now()
	username := t.cfg.Instagram.Username
	res := &CycleResult{Run: t.beginRun(username)}

	t.logger.InfoWithFields("Cycle started", map[string]interface{}{
		"username": username,
		"run_id":   res.Run.ID,
	})

	err := t.withSession(ctx, func(s Session) error {
		if err := s.Login(ctx, username, t.cfg.Instagram.Password); err != nil {
			return err
		}

		source, expected, err := s.OpenFollowing(ctx, username)
		if err != nil {
			return err
		}
		res.Run.Expected = expected
		if t.OnExpected != nil {
			t.OnExpected(expected)
		}

		opts := collector.OptionsFromConfig(t.cfg.Collector)
		opts.OnProgress = t.OnCollect
		snap, err := collector.New(source, opts, t.logger).Collect(ctx, expected)
		if err != nil {
			return err
		}
		res.Snapshot = snap
		res.Run.Collected = snap.Len()
		res.Run.Quality = snap.Quality
		res.Run.Passes = snap.Passes

		rec := reconcile.New(t.store, t.checker(s), username, t.logger)
		rec.OnReciprocity = t.OnReciprocity
		result, err := rec.Reconcile(ctx, snap.Identifiers(), t.now())
		if err != nil {
			return err
		}
		res.Reconcile = result
		return nil
	})

	outcome := outcomeOf(err)
	if res.Reconcile != nil {
		for _, e := range res.Reconcile.Events {
			switch e.Kind {
			case models.EventNewFollow:
				res.Run.NewFollows++
			case models.EventUnfollow:
				res.Run.Unfollows++
			}
		}
		res.Run.ReciprocityFailures = res.Reconcile.ReciprocityFailures
	}
	res.Run.Finish(outcome, err)
	metrics.ObserveCycle(start, string(outcome))
	t.saveRun(res.Run)
	t.notify(res, err)

	if err != nil {
		t.logger.WithError(err).ErrorWithFields("Cycle failed, stored state left unchanged", map[string]interface{}{
			"outcome": string(outcome),
			"run_id":  res.Run.ID,
		})
		return res, err
	}

	logger.LogMetrics("cycle", map[string]interface{}{
		"run_id":      res.Run.ID,
		"expected":    res.Run.Expected,
		"collected":   res.Run.Collected,
		"passes":      res.Run.Passes,
		"new_follows": res.Run.NewFollows,
		"unfollows":   res.Run.Unfollows,
		"duration":    res.Run.Duration,
	})
	return res, nil
}

// CheckReciprocity signs in and checks one identifier. Failures are returned
// rather than degraded.
func (t *Tracker) CheckReciprocity(ctx context.Context, identifier string) (bool, error) {
	var follows bool
	err := t.withSession(ctx, func(s Session) error {
		if err := s.Login(ctx, t.cfg.Instagram.Username, t.cfg.Instagram.Password); err != nil {
			return err
		}
		checker := reciprocity.NewChecker(s, t.cfg.Reciprocity.PrefixSize, t.logger)
		var err error
		follows, err = checker.Check(ctx, identifier, t.cfg.Instagram.Username)
		return err
	})
	return follows, err
}

// withSession acquires a session for fn and releases it on every path
func (t *Tracker) withSession(ctx context.Context, fn func(Session) error) (err error) {
	s, err := t.sessions(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if rerr := s.Release(); rerr != nil {
			t.logger.WithError(rerr).Warn("Could not release browser session")
		}
	}()
	return fn(s)
}

func (t *Tracker) checker(s Session) reconcile.ReciprocityChecker {
	if !t.cfg.Reciprocity.Enabled {
		return nil
	}
	return reciprocity.NewChecker(s, t.cfg.Reciprocity.PrefixSize, t.logger)
}

func (t *Tracker) beginRun(username string) *runstate.Run {
	if t.runs != nil {
		return t.runs.Begin(username)
	}
	return &runstate.Run{Username: username, StartedAt: time.Now().UTC(), Outcome: runstate.OutcomeRunning}
}

func (t *Tracker) saveRun(run *runstate.Run) {
	if t.runs == nil {
		return
	}
	if err := t.runs.Save(run); err != nil {
		t.logger.WithError(err).Warn("Could not record cycle outcome")
	}
}

func (t *Tracker) notify(res *CycleResult, err error) {
	n := t.cfg.Notifications
	if t.notifier == nil || !n.Enabled {
		return
	}
	if err != nil {
		if n.OnFailure {
			t.notifier.SendError("igtracker cycle failed", string(res.Run.Outcome)+": "+err.Error())
		}
		return
	}
	if !n.OnUnfollow || res.Reconcile == nil {
		return
	}
	var gone []string
	for _, e := range res.Reconcile.Events {
		if e.Kind == models.EventUnfollow {
			gone = append(gone, e.Identifier)
		}
	}
	if len(gone) == 0 {
		return
	}
	title := "1 account left your following"
	if len(gone) > 1 {
		title = fmt.Sprintf("%d accounts left your following", len(gone))
	}
	t.notifier.SendNotification(title, strings.Join(gone, ", "))
}

func outcomeOf(err error) runstate.Outcome {
	switch {
	case err == nil:
		return runstate.OutcomeSuccess
	case errs.IsType(err, errs.ErrorTypeCollectionFailure):
		return runstate.OutcomeCollectionFailed
	case errs.IsType(err, errs.ErrorTypePersistence):
		return runstate.OutcomePersistenceFailed
	default:
		return runstate.OutcomeFailed
	}
}
