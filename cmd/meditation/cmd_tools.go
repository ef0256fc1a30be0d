package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hrygo/meditation/plugin/icons"
	apiv1 "github.com/hrygo/meditation/server/router/api/v1"
)

// IconsOptions bundles all options for the icons command.
type IconsOptions struct {
	Source string
	Out    string
}

var iconsOptions IconsOptions

var iconsCmd = &cobra.Command{
	Use:   "icons",
	Short: "Generate the app icon set",
	RunE: func(_ *cobra.Command, _ []string) error {
		paths, err := icons.Generate(iconsOptions.Source, iconsOptions.Out, icons.Sizes)
		if err != nil {
			return err
		}
		for _, path := range paths {
			fmt.Println(path)
		}
		return nil
	},
}

var tokenTTL time.Duration

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Print an admin token for the lifecycle API",
	RunE: func(_ *cobra.Command, _ []string) error {
		p, err := newProfile()
		if err != nil {
			return err
		}
		token, err := apiv1.GenerateAdminToken(p.AdminSecret, tokenTTL, time.Now())
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	},
}

func init() {
	f := iconsCmd.Flags()
	f.StringVar(&iconsOptions.Source, "source", "", "source image; a solid icon is drawn when empty")
	f.StringVar(&iconsOptions.Out, "out", "public/icons", "output directory")

	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")

	rootCmd.AddCommand(iconsCmd, tokenCmd)
}
