package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/hrygo/meditation/store"
)

// DB is a process-local cache storage driver.
// It is used in tests and for deployments that do not need persistence.
type DB struct {
	mu         sync.RWMutex
	seq        int64
	namespaces map[string]*namespace
}

type namespace struct {
	seq     int64
	entries map[string]*store.Entry
}

func NewDB() store.Driver {
	return &DB{namespaces: make(map[string]*namespace)}
}

func (d *DB) Close() error {
	return nil
}

// open must be called with the write lock held.
func (d *DB) open(name string) *namespace {
	ns, ok := d.namespaces[name]
	if !ok {
		d.seq++
		ns = &namespace{seq: d.seq, entries: make(map[string]*store.Entry)}
		d.namespaces[name] = ns
	}
	return ns
}

func (d *DB) Open(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.open(name)
	return nil
}

func (d *DB) Namespaces(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()

	names := make([]string, 0, len(d.namespaces))
	for name := range d.namespaces {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return d.namespaces[names[i]].seq < d.namespaces[names[j]].seq
	})
	return names, nil
}

func (d *DB) DeleteNamespace(ctx context.Context, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	_, ok := d.namespaces[name]
	delete(d.namespaces, name)
	return ok, nil
}

func (d *DB) Put(ctx context.Context, name string, entry *store.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.open(name).entries[entry.Key] = entry.Clone()
	return nil
}

func (d *DB) Match(ctx context.Context, name, key string) (*store.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()

	ns, ok := d.namespaces[name]
	if !ok {
		return nil, nil
	}
	return ns.entries[key].Clone(), nil
}

func (d *DB) Keys(ctx context.Context, name string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()

	ns, ok := d.namespaces[name]
	if !ok {
		return []string{}, nil
	}
	keys := make([]string, 0, len(ns.entries))
	for key := range ns.entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}
