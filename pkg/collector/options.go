package collector

import (
	"time"

	"igtracker/pkg/config"
)

// Observed on the live list; kept as overridable defaults rather than
// derived values.
const (
	DefaultQualityThreshold = 0.90
	DefaultStallThreshold   = 3
	DefaultMaxPasses        = 3
	DefaultMaxLoadAttempts  = 150
)

// Progress is reported after every load-more request
type Progress struct {
	Pass    int
	Attempt int
	Visible int
	Stall   int
}

// Options tunes a Collector
type Options struct {
	MaxPasses        int
	StallThreshold   int
	MaxLoadAttempts  int
	QualityThreshold float64

	// Pause between load-more requests
	Pause time.Duration
	// SettleDelay after the final jump to the end
	SettleDelay time.Duration
	// ResetDelay after returning to the start of the list
	ResetDelay time.Duration
	// PassDelay before a retry pass
	PassDelay time.Duration

	OnProgress func(Progress)
}

// DefaultOptions returns the observed defaults with production pacing
func DefaultOptions() Options {
	return Options{
		MaxPasses:        DefaultMaxPasses,
		StallThreshold:   DefaultStallThreshold,
		MaxLoadAttempts:  DefaultMaxLoadAttempts,
		QualityThreshold: DefaultQualityThreshold,
		Pause:            1500 * time.Millisecond,
		SettleDelay:      3 * time.Second,
		ResetDelay:       2 * time.Second,
		PassDelay:        2 * time.Second,
	}
}

// OptionsFromConfig maps the collector config section onto Options
func OptionsFromConfig(cfg config.CollectorConfig) Options {
	return Options{
		MaxPasses:        cfg.MaxPasses,
		StallThreshold:   cfg.StallThreshold,
		MaxLoadAttempts:  cfg.MaxLoadAttempts,
		QualityThreshold: cfg.QualityThreshold,
		Pause:            cfg.Pause,
		SettleDelay:      cfg.SettleDelay,
		ResetDelay:       cfg.ResetDelay,
		PassDelay:        cfg.PassDelay,
	}.withDefaults()
}

func (o Options) withDefaults() Options {
	if o.MaxPasses <= 0 {
		o.MaxPasses = DefaultMaxPasses
	}
	if o.StallThreshold <= 0 {
		o.StallThreshold = DefaultStallThreshold
	}
	if o.MaxLoadAttempts <= 0 {
		o.MaxLoadAttempts = DefaultMaxLoadAttempts
	}
	if o.MaxLoadAttempts < o.StallThreshold {
		o.MaxLoadAttempts = o.StallThreshold
	}
	if o.QualityThreshold <= 0 {
		o.QualityThreshold = DefaultQualityThreshold
	}
	return o
}
