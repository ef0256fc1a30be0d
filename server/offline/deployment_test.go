package offline

import (
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDeployment(t *testing.T) {
	origin, _ := url.Parse("https://meditate.example.com")

	t.Run("overrides", func(t *testing.T) {
		cfg, err := ParseDeployment([]byte(`
version: 2.3.0
caches:
  static: ai-bracelet-static-v2
  dynamic: ai-bracelet-dynamic-v2
manifest: [/, /index.html, /src/main.jsx]
media:
  video: /clips/
root_document: /app.html
skip_waiting: false
install_concurrency: 8
`), origin)
		require.NoError(t, err)
		assert.Equal(t, "v2.3.0", cfg.Version)
		assert.Equal(t, DefaultAppCache, cfg.AppCache)
		assert.Equal(t, "ai-bracelet-static-v2", cfg.StaticCache)
		assert.Equal(t, "ai-bracelet-dynamic-v2", cfg.DynamicCache)
		assert.Equal(t, []string{"/", "/index.html", "/src/main.jsx"}, cfg.Manifest)
		assert.Equal(t, "/clips/", cfg.VideoPrefix)
		assert.Equal(t, DefaultMusicPrefix, cfg.MusicPrefix)
		assert.Equal(t, "/app.html", cfg.RootDocument)
		assert.False(t, cfg.SkipWaiting)
		assert.Equal(t, 8, cfg.InstallConcurrency)
		assert.Equal(t, origin, cfg.Origin)
	})

	t.Run("empty document keeps defaults", func(t *testing.T) {
		cfg, err := ParseDeployment([]byte("{}"), origin)
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig(origin), cfg)
	})

	invalid := map[string]string{
		"bad yaml":         "version: [",
		"bad version":      "version: latest",
		"relative path":    "manifest: [index.html]",
		"shared namespace": "caches: {static: same, dynamic: same}",
		"relative root":    "root_document: index.html",
	}
	for name, doc := range invalid {
		t.Run(name, func(t *testing.T) {
			_, err := ParseDeployment([]byte(doc), origin)
			assert.Error(t, err)
		})
	}
}

func TestLoadDeployment(t *testing.T) {
	origin, _ := url.Parse("http://localhost:5173")

	cfg, err := LoadDeployment("", origin)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(origin), cfg)

	path := filepath.Join(t.TempDir(), "deploy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("version: v1.1.0\n"), 0o600))
	cfg, err = LoadDeployment(path, origin)
	require.NoError(t, err)
	assert.Equal(t, "v1.1.0", cfg.Version)

	_, err = LoadDeployment(filepath.Join(t.TempDir(), "missing.yaml"), origin)
	assert.Error(t, err)
}

func TestCompareVersions(t *testing.T) {
	assert.Equal(t, -1, CompareVersions("1.2.0", "v1.10.0"))
	assert.Equal(t, 0, CompareVersions("v1", "v1.0.0"))
	assert.Equal(t, 1, CompareVersions("v2", "v1.9.9"))
	assert.Equal(t, -1, CompareVersions("garbage", "v0.0.1"))
}

func TestConfigHelpers(t *testing.T) {
	origin, _ := url.Parse("http://app.local:5173")
	cfg := DefaultConfig(origin)

	assert.Equal(t, []string{DefaultStaticCache, DefaultDynamicCache}, cfg.Retained())
	assert.True(t, cfg.IsRetained(DefaultDynamicCache))
	assert.False(t, cfg.IsRetained(DefaultAppCache))
	assert.Equal(t, "http://app.local:5173/src/App.css?v=2", cfg.ResolveURL("/src/App.css?v=2").String())

	clone := cfg.clone()
	clone.Manifest[0] = "/changed"
	clone.Origin.Host = "other"
	assert.Equal(t, "/", cfg.Manifest[0])
	assert.Equal(t, "app.local:5173", cfg.Origin.Host)
}
