package offline

import (
	"net/url"
	"os"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"
)

// Deployment is the on-disk descriptor of a deployment.
//
//	version: v2
//	caches:
//	  app: ai-bracelet-meditation-v2
//	  static: ai-bracelet-static-v2
//	  dynamic: ai-bracelet-dynamic-v2
//	manifest: [/, /index.html]
//	media: {video: /videos/, music: /music/}
//	root_document: /index.html
//	skip_waiting: true
//
// Omitted fields keep their built-in defaults.
type Deployment struct {
	Version string `yaml:"version"`
	Caches  struct {
		App     string `yaml:"app"`
		Static  string `yaml:"static"`
		Dynamic string `yaml:"dynamic"`
	} `yaml:"caches"`
	Manifest []string `yaml:"manifest"`
	Media    struct {
		Video string `yaml:"video"`
		Music string `yaml:"music"`
	} `yaml:"media"`
	RootDocument       string `yaml:"root_document"`
	SkipWaiting        *bool  `yaml:"skip_waiting"`
	InstallConcurrency int    `yaml:"install_concurrency"`
}

// LoadDeployment reads a descriptor file. An empty path yields the defaults.
func LoadDeployment(path string, origin *url.URL) (Config, error) {
	if path == "" {
		return DefaultConfig(origin), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "failed to read deployment %s", path)
	}
	cfg, err := ParseDeployment(data, origin)
	if err != nil {
		return Config{}, errors.Wrapf(err, "invalid deployment %s", path)
	}
	return cfg, nil
}

// ParseDeployment decodes a YAML descriptor on top of the defaults.
func ParseDeployment(data []byte, origin *url.URL) (Config, error) {
	var d Deployment
	if err := yaml.Unmarshal(data, &d); err != nil {
		return Config{}, errors.Wrap(err, "failed to parse deployment")
	}

	cfg := DefaultConfig(origin)
	if d.Version != "" {
		cfg.Version = canonicalVersion(d.Version)
		if !semver.IsValid(cfg.Version) {
			return Config{}, errors.Errorf("version %q is not a semantic version", d.Version)
		}
	}
	setIfNotEmpty(&cfg.AppCache, d.Caches.App)
	setIfNotEmpty(&cfg.StaticCache, d.Caches.Static)
	setIfNotEmpty(&cfg.DynamicCache, d.Caches.Dynamic)
	if len(d.Manifest) > 0 {
		cfg.Manifest = d.Manifest
	}
	setIfNotEmpty(&cfg.VideoPrefix, d.Media.Video)
	setIfNotEmpty(&cfg.MusicPrefix, d.Media.Music)
	setIfNotEmpty(&cfg.RootDocument, d.RootDocument)
	if d.SkipWaiting != nil {
		cfg.SkipWaiting = *d.SkipWaiting
	}
	if d.InstallConcurrency > 0 {
		cfg.InstallConcurrency = d.InstallConcurrency
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setIfNotEmpty(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func canonicalVersion(v string) string {
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return v
}

// CompareVersions orders deployment versions by semantic version.
// It returns -1, 0 or +1. Invalid versions sort before valid ones.
func CompareVersions(a, b string) int {
	return semver.Compare(canonicalVersion(a), canonicalVersion(b))
}
