package offline

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/meditation/server/internal/observability"
	"github.com/hrygo/meditation/store"
	"github.com/hrygo/meditation/store/db/memory"
)

// testOrigin serves "asset <path>" for every path except those under /missing.
// Range requests are answered with 206.
type testOrigin struct {
	*httptest.Server

	mu   sync.Mutex
	hits map[string]int

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
	hold        chan struct{}
}

func newTestOrigin(t *testing.T) *testOrigin {
	t.Helper()
	o := &testOrigin{hits: map[string]int{}}
	o.Server = httptest.NewServer(http.HandlerFunc(o.serve))
	t.Cleanup(o.Close)
	return o
}

func (o *testOrigin) serve(w http.ResponseWriter, r *http.Request) {
	n := o.inFlight.Add(1)
	defer o.inFlight.Add(-1)
	for {
		cur := o.maxInFlight.Load()
		if n <= cur || o.maxInFlight.CompareAndSwap(cur, n) {
			break
		}
	}
	if o.hold != nil {
		<-o.hold
	}

	o.mu.Lock()
	o.hits[r.URL.Path]++
	o.mu.Unlock()

	if strings.HasPrefix(r.URL.Path, "/missing") {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	w.Header().Set("X-Origin", "yes")
	http.ServeContent(w, r, r.URL.Path, time.Time{}, strings.NewReader("asset "+r.URL.Path))
}

func (o *testOrigin) Hits(path string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.hits[path]
}

func (o *testOrigin) TotalHits() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	total := 0
	for _, n := range o.hits {
		total += n
	}
	return total
}

func (o *testOrigin) URLValue(t *testing.T) *url.URL {
	t.Helper()
	u, err := url.Parse(o.URL)
	require.NoError(t, err)
	return u
}

// network is a switchable transport: when down every request fails.
type network struct {
	next http.RoundTripper
	down atomic.Bool

	// gate, when set, blocks requests until release is closed.
	gate    atomic.Bool
	gated   atomic.Int32
	release chan struct{}
}

func newNetwork() *network {
	return &network{next: http.DefaultTransport, release: make(chan struct{})}
}

var errOffline = errors.New("network is offline")

func (n *network) RoundTrip(req *http.Request) (*http.Response, error) {
	if n.down.Load() {
		return nil, errOffline
	}
	if n.gate.Load() {
		n.gated.Add(1)
		select {
		case <-n.release:
		case <-req.Context().Done():
			return nil, req.Context().Err()
		}
	}
	return n.next.RoundTrip(req)
}

// failingStorage wraps a store and fails every Put once failPut is set.
type failingStorage struct {
	*store.Store
	failPut atomic.Bool
}

func (s *failingStorage) Put(ctx context.Context, namespace string, entry *store.Entry) error {
	if s.failPut.Load() {
		return errors.New("quota exceeded")
	}
	return s.Store.Put(ctx, namespace, entry)
}

type recordingClients struct {
	mu      sync.Mutex
	claimed []string
	err     error
}

func (c *recordingClients) Claim(_ context.Context, version string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.claimed = append(c.claimed, version)
	return c.err
}

func (c *recordingClients) Claimed() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.claimed...)
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s := store.New(memory.NewDB(), nil)
	t.Cleanup(func() { s.Close() })
	return s
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testOptions(metrics *observability.Metrics, extra ...Option) []Option {
	return append([]Option{WithLogger(quietLogger()), WithMetrics(metrics)}, extra...)
}

func newActiveManager(t *testing.T, cfg Config, storage Storage, rt http.RoundTripper, opts ...Option) *Manager {
	t.Helper()
	ctx := context.Background()
	m := NewManager(cfg, storage, rt, opts...)
	require.NoError(t, m.Install(ctx))
	require.NoError(t, m.Activate(ctx))
	require.Equal(t, StateActive, m.State())
	return m
}

func versionConfig(origin *url.URL, version string) Config {
	cfg := DefaultConfig(origin)
	cfg.Version = version
	cfg.AppCache = "ai-bracelet-meditation-" + version
	cfg.StaticCache = "ai-bracelet-static-" + version
	cfg.DynamicCache = "ai-bracelet-dynamic-" + version
	return cfg
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}
