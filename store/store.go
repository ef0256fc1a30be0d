package store

import (
	"context"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/hrygo/meditation/internal/profile"
	"github.com/hrygo/meditation/store/cache"
)

// l1MaxBytes bounds the memory tier. Video bodies above this are always read from the driver.
const l1MaxBytes = 64 << 20

// Store provides cache storage on top of a Driver.
// It keeps a small in-memory tier of recently matched entries.
type Store struct {
	profile *profile.Profile
	driver  Driver

	l1 *cache.LRU[*Entry]
	// generation is bumped by every write so a slow read cannot
	// repopulate the memory tier with an entry that was replaced meanwhile.
	generation atomic.Uint64
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	items := 256
	if profile != nil && profile.L1Items > 0 {
		items = profile.L1Items
	}

	return &Store{
		profile: profile,
		driver:  driver,
		l1: cache.New(items, l1MaxBytes, func(e *Entry) int64 {
			return int64(len(e.Body))
		}),
	}
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

func (s *Store) Close() error {
	s.l1.Clear()
	return s.driver.Close()
}

func l1Key(namespace, key string) string {
	return namespace + "\x00" + key
}

func (s *Store) Open(ctx context.Context, namespace string) error {
	return s.driver.Open(ctx, namespace)
}

func (s *Store) Namespaces(ctx context.Context) ([]string, error) {
	return s.driver.Namespaces(ctx)
}

// HasNamespace reports whether namespace exists.
func (s *Store) HasNamespace(ctx context.Context, namespace string) (bool, error) {
	names, err := s.driver.Namespaces(ctx)
	if err != nil {
		return false, err
	}
	for _, name := range names {
		if name == namespace {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) DeleteNamespace(ctx context.Context, namespace string) (bool, error) {
	s.generation.Add(1)
	s.l1.Invalidate(l1Key(namespace, "*"))
	return s.driver.DeleteNamespace(ctx, namespace)
}

// Put stores a copy of entry; later changes to entry do not affect the stored snapshot.
func (s *Store) Put(ctx context.Context, namespace string, entry *Entry) error {
	if entry == nil || entry.Key == "" {
		return errors.New("entry key is required")
	}
	stored := entry.Clone()

	s.generation.Add(1)
	s.l1.Invalidate(l1Key(namespace, stored.Key))
	if err := s.driver.Put(ctx, namespace, stored); err != nil {
		return errors.Wrapf(err, "failed to put %s into %s", stored.Key, namespace)
	}
	s.l1.Set(l1Key(namespace, stored.Key), stored)
	return nil
}

// Match returns a copy of the entry stored under key in namespace, or nil.
func (s *Store) Match(ctx context.Context, namespace, key string) (*Entry, error) {
	if e, ok := s.l1.Get(l1Key(namespace, key)); ok {
		return e.Clone(), nil
	}

	gen := s.generation.Load()
	e, err := s.driver.Match(ctx, namespace, key)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to match %s in %s", key, namespace)
	}
	if e == nil {
		return nil, nil
	}
	if s.generation.Load() == gen {
		s.l1.Set(l1Key(namespace, key), e)
	}
	return e.Clone(), nil
}

// MatchAny searches every namespace in creation order and returns the first hit.
func (s *Store) MatchAny(ctx context.Context, key string) (*Entry, error) {
	names, err := s.driver.Namespaces(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list namespaces")
	}
	for _, name := range names {
		e, err := s.Match(ctx, name, key)
		if err != nil {
			return nil, err
		}
		if e != nil {
			return e, nil
		}
	}
	return nil, nil
}

func (s *Store) Keys(ctx context.Context, namespace string) ([]string, error) {
	return s.driver.Keys(ctx, namespace)
}

// NamespaceStat describes one namespace for status reporting.
type NamespaceStat struct {
	Name    string `json:"name"`
	Entries int    `json:"entries"`
}

// Stats lists every namespace with its entry count.
func (s *Store) Stats(ctx context.Context) ([]NamespaceStat, error) {
	names, err := s.driver.Namespaces(ctx)
	if err != nil {
		return nil, err
	}
	stats := make([]NamespaceStat, 0, len(names))
	for _, name := range names {
		keys, err := s.driver.Keys(ctx, name)
		if err != nil {
			return nil, err
		}
		stats = append(stats, NamespaceStat{Name: name, Entries: len(keys)})
	}
	return stats, nil
}
