package v1

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/hrygo/meditation/internal/profile"
	apierrors "github.com/hrygo/meditation/server/internal/errors"
	"github.com/hrygo/meditation/server/internal/observability"
	ratelimit "github.com/hrygo/meditation/server/middleware"
	"github.com/hrygo/meditation/server/notify"
	"github.com/hrygo/meditation/server/offline"
	"github.com/hrygo/meditation/store"
)

// DeploymentLoader returns the deployment the lifecycle endpoints install.
type DeploymentLoader func() (offline.Config, error)

type APIV1Service struct {
	Profile    *profile.Profile
	Store      *store.Store
	Registry   *offline.Registry
	Notify     *notify.Service
	Hub        *notify.Hub
	Metrics    *observability.Metrics
	Deployment DeploymentLoader

	limiter *ratelimit.RateLimiter
}

func NewAPIV1Service(profile *profile.Profile, store *store.Store, registry *offline.Registry, hub *notify.Hub, deployment DeploymentLoader) *APIV1Service {
	return &APIV1Service{
		Profile:    profile,
		Store:      store,
		Registry:   registry,
		Notify:     notify.NewService(hub, hub, nil),
		Hub:        hub,
		Metrics:    observability.GlobalMetrics(),
		Deployment: deployment,
		limiter:    ratelimit.NewRateLimiter(profile.RateLimit, profile.RateBurst),
	}
}

// Register mounts the API on the echo server.
func (s *APIV1Service) Register(echoServer *echo.Echo) {
	api := echoServer.Group("/api/v1", middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOriginFunc: func(_ string) (bool, error) {
			return true, nil
		},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderAuthorization, echo.HeaderContentType},
	}), s.limiter.Middleware())

	api.GET("/status", s.GetStatus)
	api.GET("/metrics", s.GetMetricsOverview)
	api.POST("/notifications/:id/click", s.ClickNotification)
	api.GET("/notifications/feed", s.GetNotificationFeed)
	api.GET("/notifications/ws", s.ServeNotifications)
	api.POST("/sync/:tag", s.Sync)

	admin := api.Group("", s.requireAdmin)
	admin.POST("/lifecycle/install", s.Install)
	admin.POST("/lifecycle/activate", s.Activate)
	admin.POST("/push", s.Push)
}

// writeError answers err as a structured error.
func writeError(c echo.Context, err error) error {
	apiErr := toAPIError(err)
	return c.JSON(apiErr.HTTPStatus(), apiErr.Body())
}

func toAPIError(err error) *apierrors.APIError {
	var apiErr *apierrors.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	switch {
	case errors.Is(err, offline.ErrInstallFailed):
		return apierrors.Wrap(err, apierrors.ErrCodeInstallFailed, err.Error())
	case errors.Is(err, offline.ErrNoWaitingVersion):
		return apierrors.Wrap(err, apierrors.ErrCodeNotInstalled, err.Error())
	case errors.Is(err, offline.ErrStaleDeployment),
		errors.Is(err, offline.ErrSuperseded),
		errors.Is(err, offline.ErrInvalidState):
		return apierrors.Wrap(err, apierrors.ErrCodeInvalidState, err.Error())
	case errors.Is(err, notify.ErrNotFound):
		return apierrors.Wrap(err, apierrors.ErrCodeNotFound, err.Error())
	case errors.Is(err, context.Canceled):
		return apierrors.Wrap(err, apierrors.ErrCodeContextCanceled, "request canceled")
	}
	return apierrors.Wrap(err, apierrors.ErrCodeServiceUnavailable, "internal error")
}
