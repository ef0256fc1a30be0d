package sqlite

import (
	"database/sql"
	"log/slog"

	"github.com/pkg/errors"
	// Import the pure-Go SQLite driver.
	_ "modernc.org/sqlite"

	"github.com/hrygo/meditation/internal/profile"
	"github.com/hrygo/meditation/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS cache_namespace (
	name       TEXT NOT NULL PRIMARY KEY,
	created_ts INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS cache_entry (
	namespace   TEXT NOT NULL,
	key_hash    TEXT NOT NULL,
	request_key TEXT NOT NULL,
	method      TEXT NOT NULL,
	url         TEXT NOT NULL,
	status      INTEGER NOT NULL,
	status_text TEXT NOT NULL DEFAULT '',
	header      TEXT NOT NULL DEFAULT '{}',
	body        BLOB NOT NULL,
	stored_ts   INTEGER NOT NULL,
	PRIMARY KEY (namespace, key_hash)
);
`

type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

// NewDB opens the SQLite file named by profile.DSN and applies the schema.
func NewDB(profile *profile.Profile) (store.Driver, error) {
	if profile == nil {
		return nil, errors.New("profile is nil")
	}
	if profile.DSN == "" {
		return nil, errors.New("dsn required")
	}

	// WAL keeps readers from blocking on the fire-and-forget media writes.
	dsn := profile.DSN + "?_pragma=foreign_keys(0)&_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open db with dsn: %s", profile.DSN)
	}
	// SQLite allows a single writer; serialize through one connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to apply schema")
	}
	slog.Debug("sqlite cache storage ready", slog.String("dsn", profile.DSN))

	return &DB{db: db, profile: profile}, nil
}

func (d *DB) GetDB() *sql.DB {
	return d.db
}

func (d *DB) Close() error {
	return d.db.Close()
}
