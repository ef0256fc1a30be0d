package store

import (
	"context"
)

// Driver is an interface for cache storage drivers.
// A namespace is an isolated, named bucket of entries keyed by request identity.
type Driver interface {
	Close() error

	// Open creates the namespace if it does not exist yet.
	Open(ctx context.Context, namespace string) error
	// Namespaces lists namespace names in creation order.
	Namespaces(ctx context.Context) ([]string, error)
	// DeleteNamespace removes a namespace and all of its entries.
	// It reports whether the namespace existed.
	DeleteNamespace(ctx context.Context, namespace string) (bool, error)

	// Put stores entry in namespace, replacing any entry with the same key.
	// The namespace is created when missing.
	Put(ctx context.Context, namespace string, entry *Entry) error
	// Match returns the entry stored under key, or nil when there is none.
	Match(ctx context.Context, namespace, key string) (*Entry, error)
	// Keys lists the request keys stored in namespace.
	Keys(ctx context.Context, namespace string) ([]string, error)
}
