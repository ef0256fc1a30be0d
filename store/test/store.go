package test

import (
	"path/filepath"
	"testing"

	"github.com/hrygo/meditation/internal/profile"
	"github.com/hrygo/meditation/store"
	"github.com/hrygo/meditation/store/db"
)

// NewTestingStore opens a store on the named driver in a temp directory.
func NewTestingStore(t *testing.T, driver string) *store.Store {
	t.Helper()

	p := &profile.Profile{
		Mode:    "dev",
		Driver:  driver,
		L1Items: 8,
	}
	if driver == "sqlite" {
		p.DSN = filepath.Join(t.TempDir(), "cache.db")
	}

	d, err := db.NewDBDriver(p)
	if err != nil {
		t.Fatalf("failed to create %s driver: %v", driver, err)
	}
	s := store.New(d, p)
	t.Cleanup(func() { s.Close() })
	return s
}
