package offline

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/pkg/errors"
)

// Registry tracks the managers of successive deployments: at most one
// active, one waiting and one installing.
type Registry struct {
	storage Storage
	network http.RoundTripper
	opts    []Option
	logger  *slog.Logger

	mu         sync.RWMutex
	active     *Manager
	waiting    *Manager
	installing *Manager
	managers   []*Manager

	// promoteMu serializes activations.
	promoteMu sync.Mutex
}

// NewRegistry creates an empty registry. opts are applied to every manager it creates.
func NewRegistry(storage Storage, network http.RoundTripper, opts ...Option) *Registry {
	r := &Registry{
		storage: storage,
		network: network,
		opts:    opts,
		logger:  slog.Default(),
	}
	// Pick up the logger the managers will use.
	probe := &Manager{logger: r.logger}
	for _, opt := range opts {
		opt(probe)
	}
	r.logger = probe.logger
	return r
}

// RegistryStatus describes the versions a registry knows about.
type RegistryStatus struct {
	Active     string `json:"active,omitempty"`
	Waiting    string `json:"waiting,omitempty"`
	Installing string `json:"installing,omitempty"`
}

// Status returns the versions currently active, waiting and installing.
func (r *Registry) Status() RegistryStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var st RegistryStatus
	if r.active != nil {
		st.Active = r.active.Version()
	}
	if r.waiting != nil {
		st.Waiting = r.waiting.Version()
	}
	if r.installing != nil {
		st.Installing = r.installing.Version()
	}
	return st
}

// Active returns the manager controlling requests, or nil.
func (r *Registry) Active() *Manager {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}

// Waiting returns the installed manager waiting for activation, or nil.
func (r *Registry) Waiting() *Manager {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.waiting
}

// Deploy installs cfg as a new version. Deploying the active or waiting
// version again is a no-op and an older version is rejected. A newer
// version supersedes whatever is still installing or waiting. The new
// version is activated right away when cfg.SkipWaiting is set or nothing
// is active yet.
func (r *Registry) Deploy(ctx context.Context, cfg Config) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid deployment")
	}

	r.mu.Lock()
	if r.active != nil {
		switch c := CompareVersions(cfg.Version, r.active.Version()); {
		case c == 0:
			r.mu.Unlock()
			return r.active, nil
		case c < 0:
			r.mu.Unlock()
			return nil, errors.Wrapf(ErrStaleDeployment, "%s < %s", cfg.Version, r.active.Version())
		}
	}
	if r.waiting != nil && CompareVersions(cfg.Version, r.waiting.Version()) == 0 {
		m := r.waiting
		r.mu.Unlock()
		return m, nil
	}
	if r.installing != nil {
		r.installing.retire()
		r.installing = nil
	}
	if r.waiting != nil {
		r.waiting.retire()
		r.waiting = nil
	}
	m := NewManager(cfg, r.storage, r.network, r.opts...)
	r.installing = m
	r.managers = append(r.managers, m)
	r.mu.Unlock()

	restored, err := m.Restore(ctx)
	if err != nil {
		r.logger.Warn("failed to check installed assets", slog.String("error", err.Error()))
	}
	if !restored {
		if err := m.Install(ctx); err != nil {
			r.mu.Lock()
			if r.installing == m {
				r.installing = nil
			}
			r.mu.Unlock()
			return nil, err
		}
	}

	r.mu.Lock()
	if r.installing != m || m.State() != StateWaiting {
		r.mu.Unlock()
		return nil, ErrSuperseded
	}
	r.installing = nil
	r.waiting = m
	promote := cfg.SkipWaiting || r.active == nil
	r.mu.Unlock()

	if promote {
		if err := r.SkipWaiting(ctx); err != nil {
			return m, err
		}
	}
	return m, nil
}

// SkipWaiting activates the waiting version and retires the previous active one.
func (r *Registry) SkipWaiting(ctx context.Context) error {
	r.promoteMu.Lock()
	defer r.promoteMu.Unlock()

	w := r.Waiting()
	if w == nil {
		return ErrNoWaitingVersion
	}
	if err := w.Activate(ctx); err != nil {
		return err
	}

	r.mu.Lock()
	prev := r.active
	r.active = w
	if r.waiting == w {
		r.waiting = nil
	}
	r.mu.Unlock()

	if prev != nil && prev != w {
		prev.retire()
	}
	return nil
}

// Handle routes req to the active manager. Nothing is intercepted while no version is active.
func (r *Registry) Handle(ctx context.Context, req *http.Request) (*http.Response, bool, error) {
	m := r.Active()
	if m == nil {
		return nil, false, nil
	}
	return m.Handle(ctx, req)
}

// Flush waits for the pending cache writes of every version.
func (r *Registry) Flush() {
	r.mu.RLock()
	managers := append([]*Manager(nil), r.managers...)
	r.mu.RUnlock()
	for _, m := range managers {
		m.Flush()
	}
}
