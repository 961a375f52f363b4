package collector

import (
	"context"
	"errors"
	"fmt"

	errs "igtracker/pkg/errors"
	"igtracker/pkg/logger"
	"igtracker/pkg/metrics"
	"igtracker/pkg/retry"
)

// Collector drives a PaginatedSource until the list stops growing, then
// scores the extracted identifiers against the advertised total and retries
// whole passes that fall short.
type Collector struct {
	source PaginatedSource
	opts   Options
	logger logger.Logger
}

// New creates a Collector. Zero-valued options fall back to the defaults.
func New(source PaginatedSource, opts Options, log logger.Logger) *Collector {
	return &Collector{
		source: source,
		opts:   opts.withDefaults(),
		logger: logger.ForComponent(log, "collector"),
	}
}

// convergence describes how a pass stopped loading
type convergence struct {
	attempts int
	visible  int
	stalled  bool
}

// Collect runs up to MaxPasses passes and returns the first snapshot whose
// quality reaches QualityThreshold. An expected count of zero yields an
// empty snapshot without touching the source. When every pass falls short
// the result is a CollectionFailure and no snapshot.
func (c *Collector) Collect(ctx context.Context, expected int) (*Snapshot, error) {
	if expected < 0 {
		return nil, errs.CollectionFailure(nil, fmt.Sprintf("invalid expected count %d", expected))
	}
	if expected == 0 {
		c.logger.Info("Source advertises no items, nothing to collect")
		snap := NewSnapshot(nil)
		snap.Quality = 1
		return snap, nil
	}

	pass := 0
	snap, err := retry.DoWithResult(func() (*Snapshot, error) {
		pass++
		if pass > 1 {
			if err := c.rewind(ctx, pass); err != nil {
				return nil, err
			}
		}
		return c.pass(ctx, pass, expected)
	}, &retry.Config{
		MaxAttempts: c.opts.MaxPasses,
		Backoff:     &retry.ConstantBackoff{Delay: c.opts.PassDelay},
		RetryIf:     retryPass,
		Context:     ctx,
	})
	if err == nil {
		return snap, nil
	}
	if ctx.Err() != nil {
		return nil, errs.CollectionFailure(err, "collection cancelled")
	}

	return nil, errs.CollectionFailure(err, fmt.Sprintf(
		"no pass reached %.0f%% of %d expected identifiers after %d passes",
		c.opts.QualityThreshold*100, expected, c.opts.MaxPasses,
	))
}

// retryPass decides whether a failed pass is followed by another. Any pass
// failure consumes one pass; only cancellation stops early.
func retryPass(err error) bool {
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// rewind resets the source before a retry pass. The pause between passes is
// the retry backoff.
func (c *Collector) rewind(ctx context.Context, pass int) error {
	if err := c.source.ResetPosition(ctx); err != nil {
		if ctx.Err() == nil {
			c.logger.WithError(err).WarnWithFields("Could not reset list position", map[string]interface{}{
				"pass": pass,
			})
			metrics.ObservePass(metrics.PassError, 0, 0)
		}
		return err
	}
	return retry.Wait(ctx, c.opts.ResetDelay)
}

// pass runs one convergence loop and scores the result
func (c *Collector) pass(ctx context.Context, pass, expected int) (*Snapshot, error) {
	conv, err := c.converge(ctx, pass)
	if err != nil {
		c.logger.WithError(err).WarnWithFields("Collection pass aborted", map[string]interface{}{
			"pass": pass,
		})
		metrics.ObservePass(metrics.PassError, 0, conv.attempts)
		return nil, err
	}

	raw, err := c.source.ExtractIdentifiers(ctx)
	if err != nil {
		c.logger.WithError(err).WarnWithFields("Could not extract identifiers", map[string]interface{}{
			"pass": pass,
		})
		metrics.ObservePass(metrics.PassError, 0, conv.attempts)
		return nil, err
	}

	snap := NewSnapshot(raw)
	snap.Expected = expected
	snap.Passes = pass
	snap.Quality = float64(snap.Len()) / float64(expected)

	accepted := snap.Quality >= c.opts.QualityThreshold
	logger.LogCollectionPass(c.logger, pass, snap.Len(), expected, snap.Quality, accepted)
	c.logger.DebugWithFields("Pass convergence", map[string]interface{}{
		"pass":       pass,
		"attempts":   conv.attempts,
		"visible":    conv.visible,
		"stalled":    conv.stalled,
		"raw":        len(raw),
		"duplicates": len(raw) - snap.Len(),
	})

	if !accepted {
		metrics.ObservePass(metrics.PassShortfall, snap.Quality, conv.attempts)
		return nil, errs.QualityShortfall(snap.Len(), expected, snap.Quality)
	}
	metrics.ObservePass(metrics.PassAccepted, snap.Quality, conv.attempts)
	return snap, nil
}

// converge requests more items until StallThreshold consecutive requests
// reveal nothing new, or MaxLoadAttempts is reached. Transient render
// failures count as a request that revealed nothing.
func (c *Collector) converge(ctx context.Context, pass int) (convergence, error) {
	var conv convergence
	stall := 0

	for attempt := 1; attempt <= c.opts.MaxLoadAttempts; attempt++ {
		conv.attempts = attempt

		visible, err := c.source.LoadMore(ctx)
		switch {
		case err == nil && visible > conv.visible:
			conv.visible = visible
			stall = 0
		case err == nil:
			stall++
		case errs.IsRetryableError(err):
			stall++
			c.logger.WithError(err).DebugWithFields("Load-more did not render", map[string]interface{}{
				"pass":    pass,
				"attempt": attempt,
			})
		default:
			return conv, err
		}

		if c.opts.OnProgress != nil {
			c.opts.OnProgress(Progress{Pass: pass, Attempt: attempt, Visible: conv.visible, Stall: stall})
		}

		if stall >= c.opts.StallThreshold {
			conv.stalled = true
			return conv, c.flush(ctx, pass)
		}

		if err := retry.Wait(ctx, c.opts.Pause); err != nil {
			return conv, err
		}
	}

	c.logger.WarnWithFields("Load attempt ceiling reached before the list stalled", map[string]interface{}{
		"pass":    pass,
		"ceiling": c.opts.MaxLoadAttempts,
		"visible": conv.visible,
	})
	return conv, c.flush(ctx, pass)
}

// flush issues the final jump to the end and waits for the last render
func (c *Collector) flush(ctx context.Context, pass int) error {
	if err := c.source.JumpToEnd(ctx); err != nil {
		if !errs.IsRetryableError(err) {
			return err
		}
		c.logger.WithError(err).DebugWithFields("Final jump did not render", map[string]interface{}{
			"pass": pass,
		})
	}
	return retry.Wait(ctx, c.opts.SettleDelay)
}
