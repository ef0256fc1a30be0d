package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hrygo/meditation/internal/profile"
	"github.com/hrygo/meditation/internal/version"
	"github.com/hrygo/meditation/server"
	"github.com/hrygo/meditation/store"
	"github.com/hrygo/meditation/store/db"
)

var (
	rootCmd = &cobra.Command{
		Use:   "meditation",
		Short: `Offline edge for the AI Bracelet meditation app.`,
		Long: `
meditation fronts the meditation web app and keeps it usable offline: it
caches the app shell on install, stores media as it is played and answers
from cache when the origin cannot be reached.
`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Install the deployment and serve the edge",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
)

func newProfile() (*profile.Profile, error) {
	p := &profile.Profile{
		Mode:        viper.GetString("mode"),
		Addr:        viper.GetString("addr"),
		Port:        viper.GetInt("port"),
		UNIXSock:    viper.GetString("unix-sock"),
		Data:        viper.GetString("data"),
		Driver:      viper.GetString("driver"),
		DSN:         viper.GetString("dsn"),
		Origin:      viper.GetString("origin"),
		Deployment:  viper.GetString("deployment"),
		AdminSecret: viper.GetString("admin-secret"),
		Version:     version.GetCurrentVersion(viper.GetString("mode")),
	}
	p.FromEnv()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func openStore(p *profile.Profile) (*store.Store, error) {
	driver, err := db.NewDBDriver(p)
	if err != nil {
		return nil, err
	}
	return store.New(driver, p), nil
}

func newLogger(p *profile.Profile) *slog.Logger {
	logger := server.NewLogger(os.Stderr, p.Mode)
	slog.SetDefault(logger)
	return logger
}

func runServe(ctx context.Context) error {
	p, err := newProfile()
	if err != nil {
		return err
	}
	logger := newLogger(p)

	storeInstance, err := openStore(p)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s, err := server.NewServer(ctx, p, storeInstance, logger)
	if err != nil {
		storeInstance.Close()
		return err
	}

	c := make(chan os.Signal, 1)
	// Trigger graceful shutdown on SIGINT or SIGTERM.
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	if err := s.Start(ctx); err != nil {
		storeInstance.Close()
		return err
	}
	printGreetings(p, s.Addr())

	<-c
	s.Shutdown(context.Background())
	return nil
}

func printGreetings(p *profile.Profile, addr string) {
	fmt.Printf("meditation %s started successfully!\n", p.Version)
	fmt.Printf("Data directory: %s\n", p.Data)
	fmt.Printf("Cache driver: %s\n", p.Driver)
	fmt.Printf("Origin: %s\n", p.Origin)
	fmt.Printf("Mode: %s\n", p.Mode)
	if p.UNIXSock != "" {
		fmt.Printf("Server running on unix socket: %s\n", p.UNIXSock)
	} else {
		fmt.Printf("Server running at http://%s\n", addr)
	}
}

func init() {
	viper.SetDefault("mode", "dev")
	viper.SetDefault("driver", "sqlite")
	viper.SetDefault("port", 8081)

	pf := rootCmd.PersistentFlags()
	pf.String("mode", "dev", `mode of server, can be "prod" or "dev" or "demo"`)
	pf.String("addr", "", "address of server")
	pf.Int("port", 8081, "port of server")
	pf.String("unix-sock", "", "path to the unix socket, overrides --addr and --port")
	pf.String("data", "", "data directory")
	pf.String("driver", "sqlite", "cache storage driver: sqlite, postgres or memory")
	pf.String("dsn", "", "cache storage source name")
	pf.String("origin", "", "URL of the meditation app")
	pf.String("deployment", "", "path of the deployment descriptor (YAML)")
	pf.String("admin-secret", "", "secret signing admin tokens for the lifecycle API")

	for _, name := range []string{"mode", "addr", "port", "unix-sock", "data", "driver", "dsn", "origin", "deployment", "admin-secret"} {
		if err := viper.BindPFlag(name, pf.Lookup(name)); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("meditation")
	viper.AutomaticEnv()
	if err := viper.BindEnv("unix-sock", "MEDITATION_UNIX_SOCK"); err != nil {
		panic(err)
	}
	if err := viper.BindEnv("admin-secret", "MEDITATION_ADMIN_SECRET"); err != nil {
		panic(err)
	}

	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
