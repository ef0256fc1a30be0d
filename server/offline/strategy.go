package offline

import (
	"net"
	"net/http"
	"net/url"
	"strings"
)

// Kind is the interception strategy chosen for a request.
type Kind int

const (
	// PassThrough leaves the request to the network untouched.
	PassThrough Kind = iota
	// CacheFirstStore answers from cache, else fetches and stores successes.
	CacheFirstStore
	// CacheFirstFallback answers from cache, else the network, else a fallback entry.
	CacheFirstFallback
	// CacheFirstStoreWithFailure is CacheFirstStore that answers network
	// failures with a synthesized 503 instead of an error.
	CacheFirstStoreWithFailure
)

func (k Kind) String() string {
	switch k {
	case PassThrough:
		return "pass-through"
	case CacheFirstStore:
		return "cache-first-store"
	case CacheFirstFallback:
		return "cache-first-fallback"
	case CacheFirstStoreWithFailure:
		return "cache-first-store-with-failure"
	default:
		return "unknown"
	}
}

// Strategy is the decision for one request. Which fields are meaningful depends on Kind.
type Strategy struct {
	Kind Kind
	// Namespace receives stored responses (CacheFirstStore, CacheFirstStoreWithFailure).
	Namespace string
	// FallbackKey is the request key answered when cache and network both fail (CacheFirstFallback).
	FallbackKey string
	// FailureBody is the body of the synthesized 503 (CacheFirstStoreWithFailure).
	FailureBody string
}

// Classify decides how req is handled. It performs no I/O.
// Rules are evaluated in order and the first match wins.
func Classify(cfg *Config, req *http.Request) Strategy {
	u := absoluteURL(cfg, req)
	if !sameOrigin(u, cfg.Origin) {
		return Strategy{Kind: PassThrough}
	}

	switch {
	case cfg.VideoPrefix != "" && strings.Contains(u.Path, cfg.VideoPrefix):
		return Strategy{Kind: CacheFirstStoreWithFailure, Namespace: cfg.DynamicCache, FailureBody: cfg.VideoUnavailable}
	case cfg.MusicPrefix != "" && strings.Contains(u.Path, cfg.MusicPrefix):
		return Strategy{Kind: CacheFirstStoreWithFailure, Namespace: cfg.DynamicCache, FailureBody: cfg.MusicUnavailable}
	case isNavigation(req):
		return Strategy{Kind: CacheFirstFallback, FallbackKey: RequestKey(http.MethodGet, cfg.ResolveURL(cfg.RootDocument))}
	case inManifest(cfg.Manifest, u.Path):
		return Strategy{Kind: CacheFirstStore, Namespace: cfg.StaticCache}
	}
	return Strategy{Kind: PassThrough}
}

// RequestKey is the cache identity of a request: method and origin-qualified URL without fragment.
func RequestKey(method string, u *url.URL) string {
	if method == "" {
		method = http.MethodGet
	}
	k := *u
	k.Fragment = ""
	k.RawFragment = ""
	if k.Path == "" {
		k.Path = "/"
	}
	return strings.ToUpper(method) + " " + k.String()
}

// KeyOf returns the cache identity of req.
func KeyOf(cfg *Config, req *http.Request) string {
	return RequestKey(req.Method, absoluteURL(cfg, req))
}

// absoluteURL qualifies server-side requests, whose URL carries only a
// path, with the configured origin.
func absoluteURL(cfg *Config, req *http.Request) *url.URL {
	if req.URL.IsAbs() {
		return req.URL
	}
	u := *req.URL
	u.Scheme = cfg.Origin.Scheme
	u.Host = cfg.Origin.Host
	return &u
}

func sameOrigin(a, b *url.URL) bool {
	if a == nil || b == nil {
		return false
	}
	if !strings.EqualFold(a.Scheme, b.Scheme) {
		return false
	}
	return strings.EqualFold(hostPort(a), hostPort(b))
}

func hostPort(u *url.URL) string {
	port := u.Port()
	if port == "" {
		switch strings.ToLower(u.Scheme) {
		case "http":
			port = "80"
		case "https":
			port = "443"
		}
	}
	return net.JoinHostPort(u.Hostname(), port)
}

// isNavigation reports whether req is a full-page load. Browsers mark those
// with Sec-Fetch-Mode; clients that do not send fetch metadata are judged by
// what they accept.
func isNavigation(req *http.Request) bool {
	if mode := req.Header.Get("Sec-Fetch-Mode"); mode != "" {
		return mode == "navigate"
	}
	return (req.Method == http.MethodGet || req.Method == "") &&
		strings.Contains(req.Header.Get("Accept"), "text/html")
}

// inManifest matches the way asset URLs embed manifest paths. The bare root
// path only matches itself, otherwise it would claim every request.
func inManifest(manifest []string, path string) bool {
	for _, p := range manifest {
		if p == "/" {
			if path == "/" {
				return true
			}
			continue
		}
		if strings.Contains(path, p) {
			return true
		}
	}
	return false
}
