package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the autoproxy version",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("autoproxy %s (built %s)\n", version, buildTime)
		return nil
	},
}
