package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/hrygo/meditation/internal/profile"
	"github.com/hrygo/meditation/server/internal/observability"
	"github.com/hrygo/meditation/server/middleware"
	"github.com/hrygo/meditation/server/notify"
	"github.com/hrygo/meditation/server/offline"
	apiv1 "github.com/hrygo/meditation/server/router/api/v1"
	"github.com/hrygo/meditation/server/router/edge"
	"github.com/hrygo/meditation/store"
)

type Server struct {
	Profile  *profile.Profile
	Store    *store.Store
	Registry *offline.Registry
	Hub      *notify.Hub

	echoServer *echo.Echo
	httpServer *http.Server
	listener   net.Listener
	logger     *slog.Logger
}

// NewLogger builds the process logger; it lets cmd/ use the internal observability package.
func NewLogger(w io.Writer, mode string) *slog.Logger {
	return observability.NewLogger(w, mode)
}

// NewServer wires the offline registry, the API and the edge proxy.
func NewServer(_ context.Context, profile *profile.Profile, store *store.Store, logger *slog.Logger) (*Server, error) {
	origin, err := profile.OriginURL()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		Profile: profile,
		Store:   store,
		Hub:     notify.NewHub(logger),
		logger:  logger,
	}

	// Fetches made by the cache manager itself are never intercepted.
	network := http.DefaultTransport
	s.Registry = offline.NewRegistry(store, network,
		offline.WithLogger(logger),
		offline.WithClients(s.Hub),
		offline.WithMetrics(observability.GlobalMetrics()),
	)

	echoServer := echo.New()
	echoServer.Debug = profile.IsDev()
	echoServer.HideBanner = true
	echoServer.HidePort = true
	echoServer.Use(middleware.RequestLogger(logger))
	s.echoServer = echoServer

	echoServer.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "Service ready.")
	})

	apiV1Service := apiv1.NewAPIV1Service(profile, store, s.Registry, s.Hub, s.LoadDeployment)
	apiV1Service.Notify = notify.NewService(s.Hub, s.Hub, logger)
	apiV1Service.Register(echoServer)

	edge.NewService(origin, s.Registry, network, logger).Register(echoServer)
	return s, nil
}

// LoadDeployment reads the deployment descriptor named by the profile.
func (s *Server) LoadDeployment() (offline.Config, error) {
	origin, err := s.Profile.OriginURL()
	if err != nil {
		return offline.Config{}, err
	}
	return offline.LoadDeployment(s.Profile.Deployment, origin)
}

// Handler returns the HTTP handler, serving HTTP/2 without TLS as well.
func (s *Server) Handler() http.Handler {
	return h2c.NewHandler(s.echoServer, &http2.Server{})
}

// Start deploys the configured version and starts serving.
// A failed install is logged and the edge keeps proxying without interception.
func (s *Server) Start(ctx context.Context) error {
	cfg, err := s.LoadDeployment()
	if err != nil {
		return err
	}
	if _, err := s.Registry.Deploy(ctx, cfg); err != nil {
		s.logger.Error("failed to deploy", slog.String(observability.LogFieldVersion, cfg.Version), slog.String("error", err.Error()))
	}

	var network, address string
	if s.Profile.UNIXSock == "" {
		network, address = "tcp", fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
	} else {
		network, address = "unix", s.Profile.UNIXSock
	}
	listener, err := net.Listen(network, address)
	if err != nil {
		return errors.Wrap(err, "failed to listen")
	}
	s.listener = listener
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("failed to serve", slog.String("error", err.Error()))
		}
	}()
	s.logger.Info("server started", slog.String("address", listener.Addr().String()))
	return nil
}

// Addr returns the listening address once started.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown stops serving, waits for pending cache writes and closes the store.
func (s *Server) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("failed to shutdown server", slog.String("error", err.Error()))
		}
	}
	s.Hub.Close()
	s.Registry.Flush()

	if err := s.Store.Close(); err != nil {
		s.logger.Error("failed to close store", slog.String("error", err.Error()))
	}
	s.logger.Info("server stopped properly")
}
