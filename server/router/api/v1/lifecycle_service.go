package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/meditation/internal/version"
	apierrors "github.com/hrygo/meditation/server/internal/errors"
	"github.com/hrygo/meditation/server/internal/observability"
	"github.com/hrygo/meditation/server/offline"
	"github.com/hrygo/meditation/store"
)

type VersionResponse struct {
	Version string `json:"version"`
	State   string `json:"state"`
}

type StatusResponse struct {
	Build      string                         `json:"build"`
	State      string                         `json:"state"`
	Versions   offline.RegistryStatus         `json:"versions"`
	Namespaces []store.NamespaceStat          `json:"namespaces"`
	Pages      int                            `json:"pages"`
	Metrics    *observability.MetricsSnapshot `json:"metrics"`
}

// GetStatus reports the versions, namespaces and interception counters.
// GET /api/v1/status
func (s *APIV1Service) GetStatus(c echo.Context) error {
	stats, err := s.Store.Stats(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}

	state := "none"
	if m := s.Registry.Active(); m != nil {
		state = m.State().String()
	}
	return c.JSON(http.StatusOK, StatusResponse{
		Build:      version.GetCurrentVersion(s.Profile.Mode),
		State:      state,
		Versions:   s.Registry.Status(),
		Namespaces: stats,
		Pages:      s.Hub.Len(),
		Metrics:    s.Metrics.Snapshot(),
	})
}

// Install deploys the current deployment descriptor.
// POST /api/v1/lifecycle/install
func (s *APIV1Service) Install(c echo.Context) error {
	cfg, err := s.Deployment()
	if err != nil {
		return writeError(c, apierrors.Wrap(err, apierrors.ErrCodeInvalidArgument, err.Error()))
	}
	m, err := s.Registry.Deploy(c.Request().Context(), cfg)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, VersionResponse{Version: m.Version(), State: m.State().String()})
}

// Activate promotes the waiting version.
// POST /api/v1/lifecycle/activate
func (s *APIV1Service) Activate(c echo.Context) error {
	if err := s.Registry.SkipWaiting(c.Request().Context()); err != nil {
		return writeError(c, err)
	}
	m := s.Registry.Active()
	return c.JSON(http.StatusOK, VersionResponse{Version: m.Version(), State: m.State().String()})
}
