package browser

import (
	"context"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	errs "igtracker/pkg/errors"
	"igtracker/pkg/instagram"
	"igtracker/pkg/retry"
)

// Login signs in with username and password. A page that shows no login
// form is taken to be signed in already, which happens when attaching to a
// running browser.
func (s *Session) Login(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return errs.New(errs.ErrorTypeAuth, "username and password are required")
	}

	s.logger.InfoWithFields("Signing in", map[string]interface{}{"username": username})
	if err := s.navigate(ctx, instagram.HomeURL()); err != nil {
		return err
	}

	form, err := OptionalStep{
		Name:    "login form",
		Timeout: s.cfg.ElementTimeout,
		Probes:  []Probe{s.selectorProbe(instagram.SelectorUsernameInput, nil)},
	}.Run(ctx)
	if err != nil {
		return classify(ctx, err, "login form")
	}
	if form == Absent {
		s.logger.Info("No login form shown, reusing the existing session")
		return nil
	}

	if err := s.fill(ctx, instagram.SelectorUsernameInput, username, "username field"); err != nil {
		return err
	}
	if err := s.fill(ctx, instagram.SelectorPasswordInput, password, "password field"); err != nil {
		return err
	}
	submit, err := s.element(ctx, instagram.SelectorLoginSubmit, "login button")
	if err != nil {
		return err
	}
	if err := submit.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return classify(ctx, err, "login button")
	}

	if err := retry.Wait(ctx, s.cfg.LoginSettleDelay); err != nil {
		return err
	}

	stillOnForm, _, err := s.page.Context(ctx).Has(instagram.SelectorPasswordInput)
	if err != nil {
		return classify(ctx, err, "login result")
	}
	if stillOnForm {
		return errs.New(errs.ErrorTypeAuth, "still on the login form after submitting, check the credentials")
	}

	prompt, err := OptionalStep{
		Name:    "post-login prompt",
		Timeout: s.cfg.OptionalStepTimeout,
		Probes: []Probe{
			s.selectorProbe(instagram.SelectorNotNowButton, clickElement),
			s.labelProbe(instagram.SelectorButtons, instagram.NotNowLabelPattern, clickElement),
		},
	}.Run(ctx)
	if err != nil {
		return classify(ctx, err, "post-login prompt")
	}
	s.logger.DebugWithFields("Post-login prompt", map[string]interface{}{"result": prompt.String()})

	s.logger.Info("Signed in")
	return nil
}

func (s *Session) fill(ctx context.Context, selector, value, what string) error {
	el, err := s.element(ctx, selector, what)
	if err != nil {
		return err
	}
	if err := el.SelectAllText(); err != nil {
		return classify(ctx, err, what)
	}
	if err := el.Input(value); err != nil {
		return classify(ctx, err, what)
	}
	return nil
}

func clickElement(el *rod.Element) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return el.Context(ctx).Click(proto.InputMouseButtonLeft, 1)
	}
}

// selectorProbe finds selector without waiting
func (s *Session) selectorProbe(selector string, act func(*rod.Element) func(context.Context) error) Probe {
	return func(ctx context.Context) (func(context.Context) error, bool, error) {
		has, el, err := s.page.Context(ctx).Has(selector)
		if err != nil || !has {
			return nil, false, err
		}
		if act == nil {
			return nil, true, nil
		}
		return act(el), true, nil
	}
}

// labelProbe finds an element matching selector whose text matches the JS
// regex pattern
func (s *Session) labelProbe(selector, pattern string, act func(*rod.Element) func(context.Context) error) Probe {
	return func(ctx context.Context) (func(context.Context) error, bool, error) {
		has, el, err := s.page.Context(ctx).HasR(selector, pattern)
		if err != nil || !has {
			return nil, false, err
		}
		return act(el), true, nil
	}
}
