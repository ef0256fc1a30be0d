package offline

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/meditation/server/internal/observability"
	"github.com/hrygo/meditation/store"
)

// writeTimeout bounds a single background cache write.
const writeTimeout = 30 * time.Second

// Handle applies the interception policy to req. The boolean reports
// whether req was intercepted; when it is false the caller must send req
// to the network itself. Only an active manager intercepts.
func (m *Manager) Handle(ctx context.Context, req *http.Request) (*http.Response, bool, error) {
	if m.State() != StateActive {
		return nil, false, nil
	}

	strategy := Classify(&m.cfg, req)
	if strategy.Kind == PassThrough {
		return nil, false, nil
	}

	key := KeyOf(&m.cfg, req)
	rc := observability.NewRequestContext(m.logger, strategy.Kind.String(), key)
	ctx = observability.WithRequestContext(ctx, rc)

	var (
		resp    *http.Response
		outcome string
		err     error
	)
	switch strategy.Kind {
	case CacheFirstStore, CacheFirstStoreWithFailure:
		resp, outcome, err = m.cacheFirstStore(ctx, req, key, strategy)
	case CacheFirstFallback:
		resp, outcome, err = m.cacheFirstFallback(ctx, req, key, strategy)
	}
	if err != nil {
		outcome = observability.OutcomeError
		rc.Warn("request failed", slog.String("error", err.Error()))
	}

	m.metrics.RecordRequest(strategy.Kind.String(), outcome, rc.Duration())
	rc.Done(outcome)
	return resp, true, err
}

// lookup returns the cached response for key from any namespace. Storage
// errors count as a miss so a broken cache never blocks the network path.
func (m *Manager) lookup(ctx context.Context, req *http.Request, key string) *http.Response {
	e, err := m.storage.MatchAny(ctx, key)
	if err != nil {
		if rc, ok := observability.FromContext(ctx); ok {
			rc.Warn("cache lookup failed", slog.String("error", err.Error()))
		}
		return nil
	}
	if e == nil {
		return nil
	}
	return e.Response(req)
}

// fetch sends req to the network.
func (m *Manager) fetch(ctx context.Context, req *http.Request) (*http.Response, error) {
	return m.network.RoundTrip(req.WithContext(ctx))
}

// cacheFirstStore is lookup, then fetch, then store successful responses.
func (m *Manager) cacheFirstStore(ctx context.Context, req *http.Request, key string, s Strategy) (*http.Response, string, error) {
	if resp := m.lookup(ctx, req, key); resp != nil {
		return resp, observability.OutcomeHit, nil
	}

	resp, err := m.fetch(ctx, req)
	if err != nil {
		return m.onNetworkFailure(req, s, err)
	}
	// A 206 holds only a fragment of the resource named by key.
	if !isSuccess(resp) || resp.StatusCode == http.StatusPartialContent {
		return resp, observability.OutcomeMiss, nil
	}

	entry, err := store.NewEntry(key, req, resp)
	if err != nil {
		// The body broke off mid-transfer.
		return m.onNetworkFailure(req, s, err)
	}
	// Only GET responses are cacheable, like the browser Cache API.
	if req.Method == http.MethodGet || req.Method == "" {
		m.storeAsync(ctx, s.Namespace, entry)
	}
	return entry.Response(req), observability.OutcomeMiss, nil
}

func (m *Manager) onNetworkFailure(req *http.Request, s Strategy, err error) (*http.Response, string, error) {
	if s.Kind == CacheFirstStoreWithFailure {
		return unavailable(req, s.FailureBody), observability.OutcomeSynthesized, nil
	}
	return nil, "", errors.Wrap(err, "network fetch failed")
}

// cacheFirstFallback is lookup, then fetch, then the fallback entry. Nothing is stored.
func (m *Manager) cacheFirstFallback(ctx context.Context, req *http.Request, key string, s Strategy) (*http.Response, string, error) {
	if resp := m.lookup(ctx, req, key); resp != nil {
		return resp, observability.OutcomeHit, nil
	}

	resp, err := m.fetch(ctx, req)
	if err == nil {
		return resp, observability.OutcomeMiss, nil
	}

	if fallback := m.lookup(ctx, req, s.FallbackKey); fallback != nil {
		return fallback, observability.OutcomeFallback, nil
	}
	return nil, "", errors.Wrapf(ErrCacheMiss, "network fetch failed (%v) and %s is not cached", err, s.FallbackKey)
}

// storeAsync writes entry in the background. The caller's response never
// waits for it and a failed write is only logged.
func (m *Manager) storeAsync(ctx context.Context, namespace string, entry *store.Entry) {
	rc, _ := observability.FromContext(ctx)

	m.writes.Add(1)
	go func() {
		defer m.writes.Done()

		// A retired version must not recreate namespaces its successor purged.
		if m.State() != StateActive {
			return
		}

		wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
		defer cancel()
		if err := m.storage.Put(wctx, namespace, entry); err != nil {
			m.metrics.RecordWriteFailure()
			attrs := []slog.Attr{
				slog.String(observability.LogFieldNamespace, namespace),
				slog.String("error", err.Error()),
			}
			if rc != nil {
				rc.Warn("cache write failed", attrs...)
				return
			}
			m.logger.LogAttrs(wctx, slog.LevelWarn, "cache write failed", attrs...)
		}
	}()
}

// unavailable synthesizes the 503 answered for media that is neither cached nor reachable.
func unavailable(req *http.Request, body string) *http.Response {
	return &http.Response{
		Status:        "503 Service Unavailable",
		StatusCode:    http.StatusServiceUnavailable,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        http.Header{"Content-Type": []string{"text/plain; charset=utf-8"}},
		Body:          io.NopCloser(strings.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}
}
