package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	errs "igtracker/pkg/errors"
	"igtracker/pkg/instagram"
	"igtracker/pkg/logger"
	"igtracker/pkg/retry"
)

// ScrollStep is how far one LoadMore scrolls the dialog, in pixels
const ScrollStep = 500

// FollowingDialog is an open following dialog. It implements
// collector.PaginatedSource.
type FollowingDialog struct {
	page   *rod.Page
	logger logger.Logger
}

// OpenFollowing opens username's profile, reads the advertised following
// count and opens the following dialog. A profile that follows nobody
// returns a nil dialog and a zero count.
func (s *Session) OpenFollowing(ctx context.Context, username string) (*FollowingDialog, int, error) {
	username = instagram.NormalizeIdentifier(username)
	if err := s.navigate(ctx, instagram.GetUserProfileURL(username)); err != nil {
		return nil, 0, err
	}

	link, err := s.element(ctx, instagram.SelectorFollowingLink, "following link")
	if err != nil {
		return nil, 0, err
	}
	text, err := link.Text()
	if err != nil {
		return nil, 0, classify(ctx, err, "following count")
	}
	expected, ok := instagram.ParseCount(text)
	if !ok {
		return nil, 0, errs.CollectionFailure(nil, fmt.Sprintf("could not read a following count from %q", text))
	}
	s.logger.InfoWithFields("Following count", map[string]interface{}{
		"username": username,
		"expected": expected,
	})
	if expected == 0 {
		return nil, 0, nil
	}

	if err := link.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return nil, 0, classify(ctx, err, "following link")
	}
	if _, err := s.element(ctx, instagram.SelectorDialog, "following dialog"); err != nil {
		return nil, 0, err
	}
	if err := retry.Wait(ctx, s.cfg.DialogSettleDelay); err != nil {
		return nil, 0, err
	}

	return &FollowingDialog{page: s.page, logger: s.logger.WithField("username", username)}, expected, nil
}

// FollowingPrefix returns up to n identifiers from the top of identifier's
// following list.
func (s *Session) FollowingPrefix(ctx context.Context, identifier string, n int) ([]string, error) {
	dialog, expected, err := s.OpenFollowing(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if expected == 0 {
		return nil, nil
	}

	var hrefs []string
	err = retry.Poll(ctx, s.cfg.ElementTimeout, 250*time.Millisecond, "following dialog entries", func() (bool, error) {
		var err error
		hrefs, err = dialog.hrefs(ctx)
		if err != nil {
			return false, err
		}
		return len(identifiersFromHrefs(hrefs, n)) >= min(n, expected), nil
	})
	if err != nil {
		// a short list may render fewer entries than the advertised count
		if !errs.IsType(err, errs.ErrorTypeTransientRender) || len(hrefs) == 0 {
			return nil, err
		}
	}
	return identifiersFromHrefs(hrefs, n), nil
}

// LoadMore scrolls the dialog one step and returns the number of distinct
// links rendered.
func (d *FollowingDialog) LoadMore(ctx context.Context) (int, error) {
	res, err := d.eval(ctx, scrollByJS, ScrollStep)
	if err != nil {
		return 0, err
	}
	return res.count, nil
}

// ResetPosition scrolls the dialog back to the top
func (d *FollowingDialog) ResetPosition(ctx context.Context) error {
	_, err := d.eval(ctx, scrollToTopJS)
	return err
}

// JumpToEnd scrolls the dialog to its full height
func (d *FollowingDialog) JumpToEnd(ctx context.Context) error {
	_, err := d.eval(ctx, scrollToEndJS)
	return err
}

// ExtractIdentifiers reads every rendered profile link
func (d *FollowingDialog) ExtractIdentifiers(ctx context.Context) ([]string, error) {
	hrefs, err := d.hrefs(ctx)
	if err != nil {
		return nil, err
	}
	ids := identifiersFromHrefs(hrefs, 0)
	d.logger.DebugWithFields("Extracted identifiers", map[string]interface{}{
		"links":       len(hrefs),
		"identifiers": len(ids),
	})
	return ids, nil
}

func (d *FollowingDialog) hrefs(ctx context.Context) ([]string, error) {
	res, err := d.page.Context(ctx).Eval(linkHrefsJS)
	if err != nil {
		return nil, classify(ctx, err, "following dialog links")
	}
	items := res.Value.Arr()
	hrefs := make([]string, 0, len(items))
	for _, item := range items {
		hrefs = append(hrefs, item.Str())
	}
	return hrefs, nil
}

// eval runs one of the dialog scripts. A closed dialog is a transient
// render failure.
func (d *FollowingDialog) eval(ctx context.Context, js string, args ...interface{}) (scriptResult, error) {
	res, err := d.page.Context(ctx).Eval(js, args...)
	if err != nil {
		return scriptResult{}, classify(ctx, err, "following dialog")
	}
	out := scriptResult{
		ok:    res.Value.Get("ok").Bool(),
		count: res.Value.Get("count").Int(),
		msg:   res.Value.Get("error").Str(),
	}
	if !out.ok {
		return out, errs.TransientRender(errors.New(out.msg), "following dialog")
	}
	return out, nil
}

type scriptResult struct {
	ok    bool
	count int
	msg   string
}
