package offline

import (
	"context"
	"net/http"
)

// Interceptor answers the requests it intercepts.
type Interceptor interface {
	Handle(ctx context.Context, req *http.Request) (*http.Response, bool, error)
}

// Transport is an http.RoundTripper that gives Interceptor the first
// chance at every request and sends the rest to Next.
type Transport struct {
	Interceptor Interceptor
	// Next defaults to http.DefaultTransport.
	Next http.RoundTripper
}

// NewTransport wraps next with interceptor.
func NewTransport(interceptor Interceptor, next http.RoundTripper) *Transport {
	return &Transport{Interceptor: interceptor, Next: next}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, handled, err := t.Interceptor.Handle(req.Context(), req)
	if handled {
		return resp, err
	}
	next := t.Next
	if next == nil {
		next = http.DefaultTransport
	}
	return next.RoundTrip(req)
}

// RoundTripper returns a transport intercepted by m.
func (m *Manager) RoundTripper(next http.RoundTripper) http.RoundTripper {
	return NewTransport(m, next)
}
