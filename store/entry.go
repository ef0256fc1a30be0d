package store

import (
	"bytes"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// Entry is an immutable snapshot of a response stored under a request key.
type Entry struct {
	// Key is the request identity: method and origin-qualified URL.
	Key        string
	Method     string
	URL        string
	Status     int
	StatusText string
	Header     http.Header
	Body       []byte
	StoredTs   int64
}

// NewEntry reads resp fully and snapshots it under key.
// The response body is consumed and closed.
func NewEntry(key string, req *http.Request, resp *http.Response) (*Entry, error) {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read response body for %s", key)
	}

	return &Entry{
		Key:        key,
		Method:     req.Method,
		URL:        req.URL.String(),
		Status:     resp.StatusCode,
		StatusText: statusText(resp),
		Header:     resp.Header.Clone(),
		Body:       body,
		StoredTs:   time.Now().Unix(),
	}, nil
}

// Clone returns a deep copy so callers never share header maps or body slices.
func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	clone := *e
	clone.Header = e.Header.Clone()
	clone.Body = bytes.Clone(e.Body)
	return &clone
}

// Response builds a fresh *http.Response for req from the snapshot.
func (e *Entry) Response(req *http.Request) *http.Response {
	header := e.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	return &http.Response{
		Status:        strconv.Itoa(e.Status) + " " + e.StatusText,
		StatusCode:    e.Status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(e.Body)),
		ContentLength: int64(len(e.Body)),
		Request:       req,
	}
}

func statusText(resp *http.Response) string {
	// resp.Status is "200 OK"; keep the text part when present.
	code := strconv.Itoa(resp.StatusCode)
	if len(resp.Status) > len(code)+1 && resp.Status[:len(code)] == code {
		return resp.Status[len(code)+1:]
	}
	return http.StatusText(resp.StatusCode)
}
