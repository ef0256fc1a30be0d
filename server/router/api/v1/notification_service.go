package v1

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	apierrors "github.com/hrygo/meditation/server/internal/errors"
)

// maxPushPayload bounds a push message body.
const maxPushPayload = 4096

type ClickRequest struct {
	Action string `json:"action"`
}

// Push shows a notification for the request body text.
// POST /api/v1/push
func (s *APIV1Service) Push(c echo.Context) error {
	payload, err := io.ReadAll(io.LimitReader(c.Request().Body, maxPushPayload))
	if err != nil {
		return writeError(c, apierrors.InvalidArgument("failed to read payload"))
	}
	n, err := s.Notify.Push(c.Request().Context(), string(payload))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, n)
}

// ClickNotification handles a click on a notification or one of its actions.
// POST /api/v1/notifications/:id/click
func (s *APIV1Service) ClickNotification(c echo.Context) error {
	var req ClickRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, apierrors.InvalidArgument("invalid click request"))
	}
	if err := s.Notify.Click(c.Request().Context(), c.Param("id"), req.Action); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// GetNotificationFeed returns the notification history as Atom.
// GET /api/v1/notifications/feed
func (s *APIV1Service) GetNotificationFeed(c echo.Context) error {
	req := c.Request()
	link := c.Scheme() + "://" + req.Host + "/"
	atom, err := s.Notify.Feed(link)
	if err != nil {
		return writeError(c, err)
	}
	return c.Blob(http.StatusOK, "application/atom+xml; charset=utf-8", []byte(atom))
}

// ServeNotifications streams notifications and lifecycle messages to a page.
// GET /api/v1/notifications/ws
func (s *APIV1Service) ServeNotifications(c echo.Context) error {
	if err := s.Hub.ServeWS(c.Response(), c.Request()); err != nil {
		return writeError(c, apierrors.InvalidArgument(err.Error()))
	}
	return nil
}

// Sync acknowledges a background sync registration.
// POST /api/v1/sync/:tag
func (s *APIV1Service) Sync(c echo.Context) error {
	if err := s.Notify.Sync(c.Request().Context(), c.Param("tag")); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
