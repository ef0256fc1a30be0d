package sqlite

import (
	"context"

	"github.com/pkg/errors"

	"github.com/hrygo/meditation/store"
)

func (d *DB) Open(ctx context.Context, namespace string) error {
	stmt := `INSERT INTO cache_namespace (name, created_ts) VALUES (?, ?)
		ON CONFLICT(name) DO NOTHING`
	if _, err := d.db.ExecContext(ctx, stmt, namespace, nowNano()); err != nil {
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

	if _, err := tx.ExecContext(ctx, `DELETE FROM cache_entry WHERE namespace = ?`, namespace); err != nil {
		return false, errors.Wrapf(err, "failed to delete entries of %s", namespace)
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM cache_namespace WHERE name = ?`, namespace)
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

	if _, err := tx.ExecContext(ctx, `INSERT INTO cache_namespace (name, created_ts) VALUES (?, ?) ON CONFLICT(name) DO NOTHING`,
		namespace, nowNano()); err != nil {
		return errors.Wrapf(err, "failed to open namespace %s", namespace)
	}

	stmt := `INSERT INTO cache_entry (namespace, key_hash, request_key, method, url, status, status_text, header, body, stored_ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(namespace, key_hash) DO UPDATE SET
			request_key = excluded.request_key,
			method = excluded.method,
			url = excluded.url,
			status = excluded.status,
			status_text = excluded.status_text,
			header = excluded.header,
			body = excluded.body,
			stored_ts = excluded.stored_ts`
	if _, err := tx.ExecContext(ctx, stmt,
		namespace, store.KeyHash(entry.Key), entry.Key, entry.Method, entry.URL,
		entry.Status, entry.StatusText, header, store.CompressBody(entry.Body), entry.StoredTs,
	); err != nil {
		return errors.Wrapf(err, "failed to put entry %s", entry.Key)
	}
	return tx.Commit()
}

func (d *DB) Match(ctx context.Context, namespace, key string) (*store.Entry, error) {
	row := d.db.QueryRowContext(ctx, `SELECT request_key, method, url, status, status_text, header, body, stored_ts
		FROM cache_entry WHERE namespace = ? AND key_hash = ?`, namespace, store.KeyHash(key))
	e, err := scanEntry(row)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to match %s", key)
	}
	return e, nil
}

func (d *DB) Keys(ctx context.Context, namespace string) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT request_key FROM cache_entry WHERE namespace = ? ORDER BY request_key ASC`, namespace)
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
