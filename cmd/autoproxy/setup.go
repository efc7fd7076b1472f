package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mintya/auto-proxy/internal/config"
	"github.com/mintya/auto-proxy/internal/wizard"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactively configure providers and write providers.json",
	RunE: func(cmd *cobra.Command, args []string) error {
		providers, err := wizard.Run()
		if err != nil {
			return err
		}

		path := flagConfig
		if path == "" {
			path = config.DefaultPath()
		}
		if err := config.Save(path, providers); err != nil {
			return err
		}

		fmt.Fprintf(os.Stdout, "Wrote %d provider(s) to %s\n", len(providers), path)
		return nil
	},
}
