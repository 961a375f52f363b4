// Package reciprocity decides whether a followed account follows back by
// looking for the tracked account near the top of that account's own
// following list.
package reciprocity

import (
	"context"
	"strings"

	errs "igtracker/pkg/errors"
	"igtracker/pkg/instagram"
	"igtracker/pkg/logger"
	"igtracker/pkg/metrics"
)

// DefaultPrefixSize is how many entries of the target's following list are
// inspected. Observed on the live site; override through Checker.PrefixSize.
const DefaultPrefixSize = 5

// FollowingInspector opens identifier's following list and returns up to n
// of its first rendered entries.
type FollowingInspector interface {
	FollowingPrefix(ctx context.Context, identifier string, n int) ([]string, error)
}

// Checker tests reciprocity one identifier at a time
type Checker struct {
	inspector  FollowingInspector
	prefixSize int
	logger     logger.Logger
}

// NewChecker creates a Checker. A non-positive prefixSize uses DefaultPrefixSize.
func NewChecker(inspector FollowingInspector, prefixSize int, log logger.Logger) *Checker {
	if prefixSize <= 0 {
		prefixSize = DefaultPrefixSize
	}
	return &Checker{
		inspector:  inspector,
		prefixSize: prefixSize,
		logger:     logger.ForComponent(log, "reciprocity"),
	}
}

// PrefixSize returns the number of entries inspected per check
func (c *Checker) PrefixSize() int { return c.prefixSize }

// Check reports whether self appears among the first PrefixSize entries of
// identifier's following list. Any lookup failure is returned as a
// reciprocity_check error; callers decide how to degrade.
func (c *Checker) Check(ctx context.Context, identifier, self string) (bool, error) {
	identifier = instagram.NormalizeIdentifier(identifier)
	self = instagram.NormalizeIdentifier(self)
	if identifier == "" || self == "" {
		metrics.IncReciprocityCheck(metrics.ReciprocityFailure)
		return false, errs.ReciprocityCheck(identifier, errs.New(errs.ErrorTypeConfig, "identifier and self must be set"))
	}

	entries, err := c.inspector.FollowingPrefix(ctx, identifier, c.prefixSize)
	if err != nil {
		metrics.IncReciprocityCheck(metrics.ReciprocityFailure)
		return false, errs.ReciprocityCheck(identifier, err)
	}

	if len(entries) > c.prefixSize {
		entries = entries[:c.prefixSize]
	}
	for _, entry := range entries {
		if strings.EqualFold(strings.TrimSpace(entry), self) {
			metrics.IncReciprocityCheck(metrics.ReciprocityYes)
			c.logger.DebugWithFields("Follows back", map[string]interface{}{"identifier": identifier})
			return true, nil
		}
	}

	metrics.IncReciprocityCheck(metrics.ReciprocityNo)
	c.logger.DebugWithFields("Does not follow back", map[string]interface{}{
		"identifier": identifier,
		"inspected":  len(entries),
	})
	return false, nil
}
