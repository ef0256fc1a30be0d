package edge

import (
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/hrygo/meditation/server/offline"
)

// Service fronts the app origin. Requests go through the offline interceptor
// first and reach the origin only when it lets them pass.
type Service struct {
	origin *url.URL
	proxy  *httputil.ReverseProxy
	logger *slog.Logger
}

// NewService creates the edge proxy. network is the transport for requests
// that reach the origin; it must not itself be intercepted.
func NewService(origin *url.URL, interceptor offline.Interceptor, network http.RoundTripper, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{origin: origin, logger: logger}
	s.proxy = &httputil.ReverseProxy{
		Rewrite: func(r *httputil.ProxyRequest) {
			r.SetURL(origin)
			r.SetXForwarded()
		},
		Transport:    offline.NewTransport(interceptor, network),
		ErrorHandler: s.handleError,
	}
	return s
}

// Register serves every path not claimed by another route.
func (s *Service) Register(echoServer *echo.Echo) {
	echoServer.Any("/*", echo.WrapHandler(s.proxy))
}

func (s *Service) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.proxy.ServeHTTP(w, r)
}

func (s *Service) handleError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, offline.ErrCacheMiss) {
		s.logger.Info("page unavailable offline", slog.String("path", r.URL.Path))
	} else {
		s.logger.Warn("origin unreachable", slog.String("path", r.URL.Path), slog.String("error", err.Error()))
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusBadGateway)
	_, _ = w.Write([]byte("origin unreachable"))
}
