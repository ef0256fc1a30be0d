package main

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/hrygo/meditation/internal/profile"
	"github.com/hrygo/meditation/server/offline"
	"github.com/hrygo/meditation/store"
)

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Cache the deployment's manifest into the store",
	Long: `
The "install" command fetches every manifest asset of the deployment from the
origin and stores them in the static namespace. Nothing is stored unless every
asset is fetched.

EXIT STATUS
===========

Exit status is 0 if the command was successful, and non-zero if there was any error.
`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withManager(func(m *offline.Manager, _ *store.Store) error {
			restored, err := m.Restore(cmd.Context())
			if err != nil {
				return err
			}
			if restored {
				fmt.Printf("%s is already installed\n", m.Version())
				return nil
			}
			if err := m.Install(cmd.Context()); err != nil {
				return err
			}
			fmt.Printf("installed %s into %s\n", m.Version(), m.Config().StaticCache)
			return nil
		})
	},
}

var activateCmd = &cobra.Command{
	Use:   "activate",
	Short: "Delete every namespace the installed deployment does not use",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withManager(func(m *offline.Manager, _ *store.Store) error {
			restored, err := m.Restore(cmd.Context())
			if err != nil {
				return err
			}
			if !restored {
				return errors.Wrapf(offline.ErrNoWaitingVersion, "%s is not installed", m.Version())
			}
			if err := m.Activate(cmd.Context()); err != nil {
				return err
			}
			fmt.Printf("activated %s\n", m.Version())
			return nil
		})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the namespaces in the store",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withStore(func(_ *profile.Profile, s *store.Store) error {
			stats, err := s.Stats(cmd.Context())
			if err != nil {
				return err
			}
			if len(stats) == 0 {
				fmt.Println("no namespaces")
			}
			for _, st := range stats {
				fmt.Printf("%-40s %d\n", st.Name, st.Entries)
			}
			return nil
		})
	},
}

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete every namespace",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withStore(func(_ *profile.Profile, s *store.Store) error {
			names, err := s.Namespaces(cmd.Context())
			if err != nil {
				return err
			}
			for _, name := range names {
				if _, err := s.DeleteNamespace(cmd.Context(), name); err != nil {
					return err
				}
				fmt.Printf("deleted %s\n", name)
			}
			return nil
		})
	},
}

func withStore(fn func(p *profile.Profile, s *store.Store) error) error {
	p, err := newProfile()
	if err != nil {
		return err
	}
	newLogger(p)
	s, err := openStore(p)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(p, s)
}

func withManager(fn func(m *offline.Manager, s *store.Store) error) error {
	return withStore(func(p *profile.Profile, s *store.Store) error {
		origin, err := p.OriginURL()
		if err != nil {
			return err
		}
		cfg, err := offline.LoadDeployment(p.Deployment, origin)
		if err != nil {
			return err
		}
		return fn(offline.NewManager(cfg, s, http.DefaultTransport), s)
	})
}

func init() {
	rootCmd.AddCommand(installCmd, activateCmd, statusCmd, purgeCmd)
}
