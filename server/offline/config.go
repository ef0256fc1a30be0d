package offline

import (
	"net/url"
	"slices"
	"strings"

	"github.com/pkg/errors"
)

// Built-in deployment values used when no descriptor overrides them.
const (
	DefaultVersion      = "v1"
	DefaultAppCache     = "ai-bracelet-meditation-v1"
	DefaultStaticCache  = "ai-bracelet-static-v1"
	DefaultDynamicCache = "ai-bracelet-dynamic-v1"

	DefaultVideoPrefix  = "/videos/"
	DefaultMusicPrefix  = "/music/"
	DefaultRootDocument = "/index.html"

	VideoUnavailable = "Video file unavailable offline"
	MusicUnavailable = "Music file unavailable offline"

	defaultInstallConcurrency = 4
)

// DefaultManifest is the ordered list of assets every install must cache.
var DefaultManifest = []string{
	"/",
	"/index.html",
	"/manifest.json",
	"/src/main.jsx",
	"/src/App.jsx",
	"/src/App.css",
	"/src/index.css",
	"/music/meditation-background-434654.mp3",
	"/videos/forest-background.mp4",
	"/videos/candlelight-background.mp4",
}

// Config describes one deployment of the offline edge. It is treated as
// immutable: NewManager copies it and nothing mutates it afterwards.
type Config struct {
	Version string

	// AppCache is the legacy generic namespace name. It is never written and,
	// like every other non-retained name, is purged on activation.
	AppCache     string
	StaticCache  string
	DynamicCache string

	// Manifest lists root-relative paths cached atomically on install.
	Manifest []string
	// Origin is the scheme and host the app is served from.
	Origin *url.URL

	VideoPrefix  string
	MusicPrefix  string
	RootDocument string

	VideoUnavailable string
	MusicUnavailable string

	// SkipWaiting activates a freshly installed version without waiting
	// for the previous one to be released.
	SkipWaiting bool
	// InstallConcurrency bounds concurrent manifest fetches.
	InstallConcurrency int
}

// DefaultConfig returns the built-in deployment for origin.
func DefaultConfig(origin *url.URL) Config {
	return Config{
		Version:            DefaultVersion,
		AppCache:           DefaultAppCache,
		StaticCache:        DefaultStaticCache,
		DynamicCache:       DefaultDynamicCache,
		Manifest:           slices.Clone(DefaultManifest),
		Origin:             origin,
		VideoPrefix:        DefaultVideoPrefix,
		MusicPrefix:        DefaultMusicPrefix,
		RootDocument:       DefaultRootDocument,
		VideoUnavailable:   VideoUnavailable,
		MusicUnavailable:   MusicUnavailable,
		SkipWaiting:        true,
		InstallConcurrency: defaultInstallConcurrency,
	}
}

// Validate checks the config is usable.
func (c Config) Validate() error {
	if c.Origin == nil || c.Origin.Scheme == "" || c.Origin.Host == "" {
		return errors.New("origin must be an absolute URL")
	}
	if c.Version == "" {
		return errors.New("version is required")
	}
	if c.StaticCache == "" || c.DynamicCache == "" {
		return errors.New("static and dynamic cache names are required")
	}
	if c.StaticCache == c.DynamicCache {
		return errors.Errorf("static and dynamic caches share the name %q", c.StaticCache)
	}
	if len(c.Manifest) == 0 {
		return errors.New("manifest is empty")
	}
	for _, p := range c.Manifest {
		if !strings.HasPrefix(p, "/") {
			return errors.Errorf("manifest path %q is not root-relative", p)
		}
	}
	if !strings.HasPrefix(c.RootDocument, "/") {
		return errors.Errorf("root document %q is not root-relative", c.RootDocument)
	}
	return nil
}

// Retained returns the namespace names that survive activation.
func (c Config) Retained() []string {
	return []string{c.StaticCache, c.DynamicCache}
}

// IsRetained reports whether name is one of the current namespaces.
func (c Config) IsRetained(name string) bool {
	return name == c.StaticCache || name == c.DynamicCache
}

// ResolveURL resolves a root-relative path against the origin.
func (c Config) ResolveURL(path string) *url.URL {
	ref := &url.URL{Path: path}
	if i := strings.IndexByte(path, '?'); i >= 0 {
		ref = &url.URL{Path: path[:i], RawQuery: path[i+1:]}
	}
	return c.Origin.ResolveReference(ref)
}

// clone deep-copies the slices and the origin.
func (c Config) clone() Config {
	c.Manifest = slices.Clone(c.Manifest)
	if c.Origin != nil {
		origin := *c.Origin
		c.Origin = &origin
	}
	if c.InstallConcurrency <= 0 {
		c.InstallConcurrency = defaultInstallConcurrency
	}
	return c
}
