package postgres

import (
	"context"
	"database/sql"
	"log"
	"time"

	// Import the PostgreSQL driver.
	_ "github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/hrygo/meditation/internal/profile"
	"github.com/hrygo/meditation/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS cache_namespace (
	name       TEXT NOT NULL PRIMARY KEY,
	created_ts BIGINT NOT NULL
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
	body        BYTEA NOT NULL,
	stored_ts   BIGINT NOT NULL,
	PRIMARY KEY (namespace, key_hash)
);
`

type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

func NewDB(profile *profile.Profile) (store.Driver, error) {
	if profile == nil {
		return nil, errors.New("profile is nil")
	}

	db, err := sql.Open("postgres", profile.DSN)
	if err != nil {
		log.Printf("Failed to open database: %s", err)
		return nil, errors.Wrapf(err, "failed to open database: %s", profile.DSN)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(2 * time.Hour)
	db.SetConnMaxIdleTime(15 * time.Minute)

	// Verify connection is working before returning
	if err := db.Ping(); err != nil {
		log.Printf("Failed to ping database: %s", err)
		return nil, errors.Wrap(err, "failed to ping database")
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to apply schema")
	}

	return &DB{db: db, profile: profile}, nil
}

func (d *DB) GetDB() *sql.DB {
	return d.db
}

func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) Open(ctx context.Context, namespace string) error {
	if _, err := d.db.ExecContext(ctx, `INSERT INTO cache_namespace (name, created_ts) VALUES ($1, $2) ON CONFLICT (name) DO NOTHING`,
		namespace, time.Now().UnixNano()); err != nil {
		return errors.Wrapf(err, "failed to open namespace %s", namespace)
	}
	return nil
}

func (d *DB) Namespaces(ctx context.Context) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT name FROM cache_namespace ORDER BY created_ts ASC, name ASC`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list namespaces")
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (d *DB) DeleteNamespace(ctx context.Context, namespace string) (bool, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM cache_entry WHERE namespace = $1`, namespace); err != nil {
		return false, errors.Wrapf(err, "failed to delete entries of %s", namespace)
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM cache_namespace WHERE name = $1`, namespace)
	if err != nil {
		return false, errors.Wrapf(err, "failed to delete namespace %s", namespace)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (d *DB) Put(ctx context.Context, namespace string, entry *store.Entry) error {
	header, err := store.EncodeHeader(entry.Header)
	if err != nil {
		return err
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `INSERT INTO cache_namespace (name, created_ts) VALUES ($1, $2) ON CONFLICT (name) DO NOTHING`,
		namespace, time.Now().UnixNano()); err != nil {
		return errors.Wrapf(err, "failed to open namespace %s", namespace)
	}

	stmt := `INSERT INTO cache_entry (namespace, key_hash, request_key, method, url, status, status_text, header, body, stored_ts)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (namespace, key_hash) DO UPDATE SET
			request_key = EXCLUDED.request_key,
			method = EXCLUDED.method,
			url = EXCLUDED.url,
			status = EXCLUDED.status,
			status_text = EXCLUDED.status_text,
			header = EXCLUDED.header,
			body = EXCLUDED.body,
			stored_ts = EXCLUDED.stored_ts`
	if _, err := tx.ExecContext(ctx, stmt,
		namespace, store.KeyHash(entry.Key), entry.Key, entry.Method, entry.URL,
		entry.Status, entry.StatusText, header, store.CompressBody(entry.Body), entry.StoredTs,
	); err != nil {
		return errors.Wrapf(err, "failed to put entry %s", entry.Key)
	}
	return tx.Commit()
}

func (d *DB) Match(ctx context.Context, namespace, key string) (*store.Entry, error) {
	var (
		e      store.Entry
		header string
		body   []byte
	)
	err := d.db.QueryRowContext(ctx, `SELECT request_key, method, url, status, status_text, header, body, stored_ts
		FROM cache_entry WHERE namespace = $1 AND key_hash = $2`, namespace, store.KeyHash(key)).
		Scan(&e.Key, &e.Method, &e.URL, &e.Status, &e.StatusText, &header, &body, &e.StoredTs)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to match %s", key)
	}

	if e.Header, err = store.DecodeHeader(header); err != nil {
		return nil, err
	}
	if e.Body, err = store.DecompressBody(body); err != nil {
		return nil, err
	}
	return &e, nil
}

func (d *DB) Keys(ctx context.Context, namespace string) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT request_key FROM cache_entry WHERE namespace = $1 ORDER BY request_key ASC`, namespace)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list keys of %s", namespace)
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}
