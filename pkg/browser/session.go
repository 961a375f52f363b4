// Package browser drives a stealth Chrome session through rod. A Session
// owns one page; it is not safe for concurrent use.
package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"igtracker/pkg/config"
	errs "igtracker/pkg/errors"
	"igtracker/pkg/logger"
	"igtracker/pkg/retry"
)

const navigationTimeout = 30 * time.Second

// Session is one acquired browser with a single stealth page
type Session struct {
	cfg     config.BrowserConfig
	browser *rod.Browser
	lnch    *launcher.Launcher
	page    *rod.Page
	owned   bool
	logger  logger.Logger

	released bool
}

// Acquire launches Chrome, or connects to ControlURL when set, and opens a
// stealth page. The caller must Release the session.
func Acquire(ctx context.Context, cfg config.BrowserConfig, log logger.Logger) (*Session, error) {
	s := &Session{cfg: cfg, logger: logger.ForComponent(log, "browser")}

	controlURL := cfg.ControlURL
	if controlURL == "" {
		l := launcher.New().
			Context(ctx).
			Headless(cfg.Headless).
			NoSandbox(true).
			Set("disable-blink-features", "AutomationControlled").
			Set("disable-dev-shm-usage").
			Set("disable-notifications")
		if cfg.Language != "" {
			l = l.Set("lang", cfg.Language)
		}
		if cfg.WindowWidth > 0 && cfg.WindowHeight > 0 {
			l = l.Set("window-size", fmt.Sprintf("%d,%d", cfg.WindowWidth, cfg.WindowHeight))
		}
		if cfg.BinPath != "" {
			l = l.Bin(cfg.BinPath)
		}

		u, err := l.Launch()
		if err != nil {
			return nil, errs.Wrap(errs.ErrorTypeNavigation, err, "launch browser")
		}
		controlURL = u
		s.lnch = l
		s.owned = true
		s.logger.InfoWithFields("Launched local browser", map[string]interface{}{"headless": cfg.Headless})
	} else {
		s.logger.InfoWithFields("Connecting to remote browser", map[string]interface{}{"url": controlURL})
	}

	b, err := retry.DoWithResult(func() (*rod.Browser, error) {
		b := rod.New().ControlURL(controlURL)
		if err := b.Connect(); err != nil {
			return nil, errs.Wrap(errs.ErrorTypeNavigation, err, "connect to browser")
		}
		return b, nil
	}, connectRetry(ctx, s.logger))
	if err != nil {
		s.Release()
		return nil, err
	}
	s.browser = b

	page, err := stealth.Page(b)
	if err != nil {
		s.Release()
		return nil, errs.Wrap(errs.ErrorTypeNavigation, err, "open page")
	}
	s.page = page

	if cfg.WindowWidth > 0 && cfg.WindowHeight > 0 {
		err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:             cfg.WindowWidth,
			Height:            cfg.WindowHeight,
			DeviceScaleFactor: 1,
		})
		if err != nil {
			s.logger.WithError(err).Warn("Could not set viewport")
		}
	}
	if cfg.UserAgent != "" {
		err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
			UserAgent:      cfg.UserAgent,
			AcceptLanguage: cfg.Language,
		})
		if err != nil {
			s.logger.WithError(err).Warn("Could not set user agent")
		}
	}

	return s, nil
}

// connectRetry retries a failed DevTools connection with exponential
// backoff. Only navigation errors are retried.
func connectRetry(ctx context.Context, log logger.Logger) *retry.Config {
	cfg := retry.DefaultConfig()
	cfg.Context = ctx
	cfg.Logger = log
	cfg.RetryIf = func(err error) bool {
		return retry.DefaultRetryIf(err) && errs.IsType(err, errs.ErrorTypeNavigation)
	}
	return cfg
}

// Release closes the page and, for a launched browser, the browser process.
// It is safe to call more than once.
func (s *Session) Release() error {
	if s == nil || s.released {
		return nil
	}
	s.released = true

	var errList []error
	if s.page != nil {
		if err := s.page.Close(); err != nil && !s.owned {
			errList = append(errList, fmt.Errorf("close page: %w", err))
		}
	}
	if s.owned && s.browser != nil {
		if err := s.browser.Close(); err != nil {
			errList = append(errList, fmt.Errorf("close browser: %w", err))
		}
	}
	if s.lnch != nil {
		s.lnch.Cleanup()
	}
	s.logger.Debug("Browser session released")
	return errors.Join(errList...)
}

// navigate loads url and waits for the page to settle
func (s *Session) navigate(ctx context.Context, url string) error {
	navCtx, cancel := context.WithTimeout(ctx, navigationTimeout)
	defer cancel()

	page := s.page.Context(navCtx)
	if err := page.Navigate(url); err != nil {
		return classify(ctx, err, "navigate to "+url)
	}
	if err := page.WaitLoad(); err != nil {
		s.logger.WithError(err).DebugWithFields("Page load did not complete", map[string]interface{}{"url": url})
	}
	return retry.Wait(ctx, s.cfg.PageSettleDelay)
}

// element waits up to ElementTimeout for selector and returns it bound to ctx
func (s *Session) element(ctx context.Context, selector, what string) (*rod.Element, error) {
	el, err := s.page.Context(ctx).Timeout(s.cfg.ElementTimeout).Element(selector)
	if err != nil {
		return nil, classify(ctx, err, what)
	}
	return el.Context(ctx), nil
}

// classify maps rod failures onto the error taxonomy. A wait that ran out is
// a transient render failure; anything else is a navigation failure.
func classify(ctx context.Context, err error, what string) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errs.TransientRender(err, what)
	}
	return errs.Wrap(errs.ErrorTypeNavigation, err, what)
}
