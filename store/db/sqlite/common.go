package sqlite

import (
	"database/sql"
	"time"

	"github.com/hrygo/meditation/store"
)

func nowNano() int64 {
	return time.Now().UnixNano()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*store.Entry, error) {
	var (
		e      store.Entry
		header string
		body   []byte
	)
	if err := row.Scan(&e.Key, &e.Method, &e.URL, &e.Status, &e.StatusText, &header, &body, &e.StoredTs); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	h, err := store.DecodeHeader(header)
	if err != nil {
		return nil, err
	}
	e.Header = h
	if e.Body, err = store.DecompressBody(body); err != nil {
		return nil, err
	}
	return &e, nil
}
