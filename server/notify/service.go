package notify

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// ErrNotFound is returned for a click on an unknown notification.
var ErrNotFound = errors.New("notification not found")

const defaultHistory = 50

// Presenter shows and dismisses notifications on the connected pages.
type Presenter interface {
	Show(ctx context.Context, n Notification) error
	Dismiss(ctx context.Context, id string) error
}

// Opener opens or focuses a page at path.
type Opener interface {
	OpenWindow(ctx context.Context, path string) error
}

// Service handles push, notification-click and background sync signals.
type Service struct {
	presenter Presenter
	opener    Opener
	logger    *slog.Logger
	now       func() time.Time

	mu      sync.RWMutex
	history []Notification
	limit   int
}

// NewService creates a service. presenter and opener may be the same hub.
func NewService(presenter Presenter, opener Opener, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		presenter: presenter,
		opener:    opener,
		logger:    logger,
		now:       time.Now,
		limit:     defaultHistory,
	}
}

// Push turns a push payload into a notification and shows it.
func (s *Service) Push(ctx context.Context, payload string) (Notification, error) {
	n := NewNotification(payload, s.now())

	s.mu.Lock()
	s.history = append(s.history, n)
	if len(s.history) > s.limit {
		s.history = slices.Delete(s.history, 0, len(s.history)-s.limit)
	}
	s.mu.Unlock()

	s.logger.Info("push received", slog.String("notification", n.ID))
	if s.presenter != nil {
		if err := s.presenter.Show(ctx, n); err != nil {
			return n, errors.Wrap(err, "failed to show notification")
		}
	}
	return n, nil
}

// Click closes the notification. The explore action also opens the app's root page.
func (s *Service) Click(ctx context.Context, id, action string) error {
	s.mu.Lock()
	i := slices.IndexFunc(s.history, func(n Notification) bool { return n.ID == id })
	if i < 0 {
		s.mu.Unlock()
		return errors.Wrap(ErrNotFound, id)
	}
	s.history[i].Closed = true
	s.mu.Unlock()

	s.logger.Info("notification clicked", slog.String("notification", id), slog.String("action", action))
	if s.presenter != nil {
		if err := s.presenter.Dismiss(ctx, id); err != nil {
			s.logger.Warn("failed to dismiss notification", slog.String("error", err.Error()))
		}
	}
	if action == ActionExplore && s.opener != nil {
		return s.opener.OpenWindow(ctx, "/")
	}
	return nil
}

// Sync acknowledges a background sync. It never fails.
func (s *Service) Sync(_ context.Context, tag string) error {
	s.logger.Info("background sync", slog.String("tag", tag))
	if tag == SyncTag {
		s.logger.Info("syncing meditation data")
	}
	return nil
}

// History returns the kept notifications, newest first.
func (s *Service) History() []Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := slices.Clone(s.history)
	slices.Reverse(out)
	return out
}
