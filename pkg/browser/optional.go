package browser

import (
	"context"
	"fmt"
	"time"

	errs "igtracker/pkg/errors"
	"igtracker/pkg/retry"
)

// StepResult says whether an optional UI step showed up
type StepResult int

const (
	Absent StepResult = iota
	Present
)

func (r StepResult) String() string {
	if r == Present {
		return "present"
	}
	return "absent"
}

// Probe checks once for an optional element. When found it returns the
// action to perform on it, which may be nil.
type Probe func(ctx context.Context) (action func(ctx context.Context) error, found bool, err error)

// OptionalStep is a piece of UI that may or may not appear, such as the
// prompt shown after login.
type OptionalStep struct {
	Name     string
	Timeout  time.Duration
	Interval time.Duration
	Probes   []Probe
}

// Run polls the probes until one finds its element or Timeout elapses.
// Nothing found within Timeout is Absent with a nil error. Probe and action
// failures are returned as-is.
func (s OptionalStep) Run(ctx context.Context) (StepResult, error) {
	var (
		action   func(ctx context.Context) error
		probeErr error
	)
	err := retry.Poll(ctx, s.Timeout, s.Interval, s.Name, func() (bool, error) {
		for _, probe := range s.Probes {
			act, found, err := probe(ctx)
			if err != nil {
				probeErr = err
				return false, err
			}
			if found {
				action = act
				return true, nil
			}
		}
		return false, nil
	})

	switch {
	case err == nil:
	case probeErr != nil:
		return Absent, fmt.Errorf("%s: %w", s.Name, probeErr)
	case ctx.Err() != nil:
		return Absent, ctx.Err()
	case errs.IsType(err, errs.ErrorTypeTransientRender):
		return Absent, nil
	default:
		return Absent, err
	}

	if action != nil {
		if err := action(ctx); err != nil {
			return Present, fmt.Errorf("%s: %w", s.Name, err)
		}
	}
	return Present, nil
}
