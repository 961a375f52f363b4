package tracker

import (
	"context"

	"igtracker/pkg/browser"
	"igtracker/pkg/collector"
	"igtracker/pkg/config"
	"igtracker/pkg/logger"
)

// Session is the browser capability a cycle needs
type Session interface {
	Login(ctx context.Context, username, password string) error
	// OpenFollowing returns the following list of username and its
	// advertised size. The source is nil when the size is zero.
	OpenFollowing(ctx context.Context, username string) (collector.PaginatedSource, int, error)
	FollowingPrefix(ctx context.Context, identifier string, n int) ([]string, error)
	Release() error
}

// SessionFactory acquires a fresh Session
type SessionFactory func(ctx context.Context) (Session, error)

// BrowserSessions acquires rod-backed sessions
func BrowserSessions(cfg config.BrowserConfig, log logger.Logger) SessionFactory {
	return func(ctx context.Context) (Session, error) {
		s, err := browser.Acquire(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		return browserSession{s}, nil
	}
}

type browserSession struct {
	*browser.Session
}

func (b browserSession) OpenFollowing(ctx context.Context, username string) (collector.PaginatedSource, int, error) {
	dialog, expected, err := b.Session.OpenFollowing(ctx, username)
	if err != nil || dialog == nil {
		return nil, expected, err
	}
	return dialog, expected, nil
}
