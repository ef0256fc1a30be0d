package profile

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Profile is the configuration to start the offline edge.
type Profile struct {
	// Mode can be "prod" or "dev" or "demo"
	Mode string
	// Addr is the binding address for server
	Addr string
	// Port is the binding port for server
	Port int
	// UNIXSock is the IPC binding path. Overrides Addr and Port
	UNIXSock string
	// Data is the data directory
	Data string
	// DSN points to where the cache storage keeps its data
	DSN string
	// Driver is the cache storage driver (sqlite, postgres or memory)
	Driver string
	// Version is the current version of server
	Version string
	// Origin is the upstream URL of the meditation app.
	Origin string
	// Deployment is the path of the deployment descriptor (YAML). Empty means built-in defaults.
	Deployment string

	AdminSecret string  // MEDITATION_ADMIN_SECRET (empty disables admin auth)
	RateLimit   float64 // MEDITATION_RATE_LIMIT requests per second per client (default: 10)
	RateBurst   int     // MEDITATION_RATE_BURST (default: 20)
	L1Items     int     // MEDITATION_L1_ITEMS in-memory entries in front of the driver (default: 256)
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// getEnvOrDefault returns the environment variable value or the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// FromEnv loads the values flags do not cover from MEDITATION_* environment variables.
// Fields that are already set are kept.
func (p *Profile) FromEnv() {
	if p.Origin == "" {
		p.Origin = getEnvOrDefault("MEDITATION_ORIGIN", "http://localhost:5173")
	}
	if p.Deployment == "" {
		p.Deployment = os.Getenv("MEDITATION_DEPLOYMENT")
	}
	if p.AdminSecret == "" {
		p.AdminSecret = os.Getenv("MEDITATION_ADMIN_SECRET")
	}
	if p.RateLimit == 0 {
		p.RateLimit = 10
		if v, err := strconv.ParseFloat(os.Getenv("MEDITATION_RATE_LIMIT"), 64); err == nil && v > 0 {
			p.RateLimit = v
		}
	}
	if p.RateBurst == 0 {
		p.RateBurst = 20
		if v, err := strconv.Atoi(os.Getenv("MEDITATION_RATE_BURST")); err == nil && v > 0 {
			p.RateBurst = v
		}
	}
	if p.L1Items == 0 {
		p.L1Items = 256
		if v, err := strconv.Atoi(os.Getenv("MEDITATION_L1_ITEMS")); err == nil && v > 0 {
			p.L1Items = v
		}
	}
}

// OriginURL parses Origin and rejects anything that is not an absolute http(s) URL.
func (p *Profile) OriginURL() (*url.URL, error) {
	u, err := url.Parse(p.Origin)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid origin %q", p.Origin)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.Errorf("origin %q must be an http or https URL", p.Origin)
	}
	if u.Host == "" {
		return nil, errors.Errorf("origin %q has no host", p.Origin)
	}
	return u, nil
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	if _, err := p.OriginURL(); err != nil {
		return err
	}

	switch p.Driver {
	case "memory":
		return nil
	case "postgres":
		if p.DSN == "" {
			return errors.New("postgres driver requires a DSN")
		}
		return nil
	case "", "sqlite":
		p.Driver = "sqlite"
	default:
		return errors.Errorf("unknown driver %q", p.Driver)
	}

	if p.Mode == "prod" && p.Data == "" {
		if runtime.GOOS == "windows" {
			p.Data = filepath.Join(os.Getenv("ProgramData"), "meditation")
			if _, err := os.Stat(p.Data); os.IsNotExist(err) {
				if err := os.MkdirAll(p.Data, 0770); err != nil {
					slog.Error("failed to create data directory", slog.String("data", p.Data), slog.String("error", err.Error()))
					return err
				}
			}
		} else {
			p.Data = "/var/opt/meditation"
		}
	}
	if p.Data == "" {
		p.Data = "."
	}

	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		slog.Error("failed to check dsn", slog.String("data", dataDir), slog.String("error", err.Error()))
		return err
	}

	p.Data = dataDir
	if p.DSN == "" {
		dbFile := fmt.Sprintf("meditation_%s.db", p.Mode)
		p.DSN = filepath.Join(dataDir, dbFile)
	}

	return nil
}
