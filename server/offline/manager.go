package offline

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/hrygo/meditation/server/internal/observability"
	"github.com/hrygo/meditation/store"
)

// State is the lifecycle state of a Manager.
type State int

const (
	StateParsed State = iota
	StateInstalling
	// StateWaiting is installed but not yet controlling requests.
	StateWaiting
	StateActivating
	StateActive
	// StateRedundant is terminal: failed install, superseded or replaced.
	StateRedundant
)

func (s State) String() string {
	switch s {
	case StateParsed:
		return "parsed"
	case StateInstalling:
		return "installing"
	case StateWaiting:
		return "waiting"
	case StateActivating:
		return "activating"
	case StateActive:
		return "active"
	case StateRedundant:
		return "redundant"
	default:
		return "unknown"
	}
}

// Storage is the cache storage a Manager works against.
type Storage interface {
	Open(ctx context.Context, namespace string) error
	Namespaces(ctx context.Context) ([]string, error)
	HasNamespace(ctx context.Context, namespace string) (bool, error)
	DeleteNamespace(ctx context.Context, namespace string) (bool, error)
	Put(ctx context.Context, namespace string, entry *store.Entry) error
	Match(ctx context.Context, namespace, key string) (*store.Entry, error)
	MatchAny(ctx context.Context, key string) (*store.Entry, error)
}

// Clients are the pages a version takes control of on activation.
type Clients interface {
	Claim(ctx context.Context, version string) error
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithClients sets the clients claimed on activation.
func WithClients(clients Clients) Option {
	return func(m *Manager) { m.clients = clients }
}

// WithMetrics sets the metrics collector.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(m *Manager) { m.metrics = metrics }
}

// Manager is the offline cache manager of one deployment version.
// It owns the version's lifecycle and, once active, intercepts requests.
type Manager struct {
	cfg     Config
	storage Storage
	network http.RoundTripper
	clients Clients
	logger  *slog.Logger
	metrics *observability.Metrics

	mu    sync.RWMutex
	state State

	// writes tracks fire-and-forget cache writes.
	writes sync.WaitGroup
}

// NewManager creates a manager for cfg. network performs every fetch the
// manager makes; it is never intercepted itself.
func NewManager(cfg Config, storage Storage, network http.RoundTripper, opts ...Option) *Manager {
	if network == nil {
		network = http.DefaultTransport
	}
	m := &Manager{
		cfg:     cfg.clone(),
		storage: storage,
		network: network,
		logger:  slog.Default(),
		metrics: observability.GlobalMetrics(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With(slog.String(observability.LogFieldVersion, m.cfg.Version))
	return m
}

// Config returns a copy of the manager's configuration.
func (m *Manager) Config() Config {
	return m.cfg.clone()
}

// Version returns the deployment version.
func (m *Manager) Version() string {
	return m.cfg.Version
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// transition moves from one state to another and reports whether it happened.
func (m *Manager) transition(from, to State) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != from {
		return false
	}
	m.state = to
	return true
}

// retire marks the manager redundant. A running install notices and discards its result.
func (m *Manager) retire() {
	m.mu.Lock()
	prev := m.state
	m.state = StateRedundant
	m.mu.Unlock()
	if prev != StateRedundant {
		m.logger.Info("version retired", slog.String("from", prev.String()))
	}
}

// Install fetches every manifest asset and stores them in the static
// namespace. Either all assets are stored or none are. On success the
// manager is waiting; on failure it is redundant and previously stored
// namespaces are untouched.
func (m *Manager) Install(ctx context.Context) error {
	if !m.transition(StateParsed, StateInstalling) {
		return errors.Wrapf(ErrInvalidState, "cannot install from %s", m.State())
	}
	m.logger.Info("installing", slog.Int("assets", len(m.cfg.Manifest)))

	entries, err := m.fetchManifest(ctx)
	if err == nil {
		if m.State() != StateInstalling {
			return ErrSuperseded
		}
		err = m.commit(ctx, entries)
	}
	if err != nil {
		m.retire()
		m.logger.Error("install failed", slog.String("error", err.Error()))
		return fmt.Errorf("%w: %w", ErrInstallFailed, err)
	}

	if !m.transition(StateInstalling, StateWaiting) {
		return ErrSuperseded
	}
	m.logger.Info("installed", slog.String(observability.LogFieldNamespace, m.cfg.StaticCache))
	return nil
}

// fetchManifest joins one fetch per manifest path. The first failure cancels the rest.
func (m *Manager) fetchManifest(ctx context.Context) ([]*store.Entry, error) {
	entries := make([]*store.Entry, len(m.cfg.Manifest))
	sem := semaphore.NewWeighted(int64(m.cfg.InstallConcurrency))
	g, gctx := errgroup.WithContext(ctx)

	for i, path := range m.cfg.Manifest {
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)

			e, err := m.fetchAsset(gctx, path)
			if err != nil {
				return err
			}
			entries[i] = e
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (m *Manager) fetchAsset(ctx context.Context, path string) (*store.Entry, error) {
	u := m.cfg.ResolveURL(path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid manifest path %s", path)
	}
	resp, err := m.network.RoundTrip(req)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch %s", path)
	}
	if !isSuccess(resp) {
		resp.Body.Close()
		return nil, errors.Errorf("failed to fetch %s: status %d", path, resp.StatusCode)
	}
	return store.NewEntry(RequestKey(http.MethodGet, u), req, resp)
}

// commit writes the staged entries. A namespace created by this commit is
// removed again if any write fails.
func (m *Manager) commit(ctx context.Context, entries []*store.Entry) error {
	existed, err := m.storage.HasNamespace(ctx, m.cfg.StaticCache)
	if err != nil {
		return err
	}
	if err := m.storage.Open(ctx, m.cfg.StaticCache); err != nil {
		return err
	}
	for _, e := range entries {
		if err := m.storage.Put(ctx, m.cfg.StaticCache, e); err != nil {
			if !existed {
				if _, derr := m.storage.DeleteNamespace(context.WithoutCancel(ctx), m.cfg.StaticCache); derr != nil {
					m.logger.Warn("failed to roll back static namespace", slog.String("error", derr.Error()))
				}
			}
			return err
		}
	}
	return nil
}

// Restore marks the manager installed without fetching when a previous run
// already stored every manifest asset of this version.
func (m *Manager) Restore(ctx context.Context) (bool, error) {
	if m.State() != StateParsed {
		return false, errors.Wrapf(ErrInvalidState, "cannot restore from %s", m.State())
	}
	for _, path := range m.cfg.Manifest {
		e, err := m.storage.Match(ctx, m.cfg.StaticCache, RequestKey(http.MethodGet, m.cfg.ResolveURL(path)))
		if err != nil {
			return false, err
		}
		if e == nil {
			return false, nil
		}
	}
	if !m.transition(StateParsed, StateWaiting) {
		return false, nil
	}
	m.logger.Info("restored installed version")
	return true, nil
}

// Activate deletes every namespace that is not retained by this version,
// then claims the clients. The cleanup finishes before any client is claimed.
func (m *Manager) Activate(ctx context.Context) error {
	if m.State() == StateActive {
		return nil
	}
	if !m.transition(StateWaiting, StateActivating) {
		return errors.Wrapf(ErrInvalidState, "cannot activate from %s", m.State())
	}
	m.logger.Info("activating")

	if err := m.purgeStale(ctx); err != nil {
		m.transition(StateActivating, StateWaiting)
		return errors.Wrap(err, "failed to delete stale namespaces")
	}
	if !m.transition(StateActivating, StateActive) {
		return ErrSuperseded
	}

	if m.clients != nil {
		if err := m.clients.Claim(ctx, m.cfg.Version); err != nil {
			m.logger.Warn("failed to claim clients", slog.String("error", err.Error()))
		}
	}
	m.logger.Info("activated")
	return nil
}

func (m *Manager) purgeStale(ctx context.Context) error {
	names, err := m.storage.Namespaces(ctx)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, name := range names {
		if m.cfg.IsRetained(name) {
			continue
		}
		g.Go(func() error {
			if _, err := m.storage.DeleteNamespace(gctx, name); err != nil {
				return errors.Wrapf(err, "failed to delete %s", name)
			}
			m.logger.Info("deleted old namespace", slog.String(observability.LogFieldNamespace, name))
			return nil
		})
	}
	return g.Wait()
}

// Flush waits for pending cache writes.
func (m *Manager) Flush() {
	m.writes.Wait()
}

func isSuccess(resp *http.Response) bool {
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
