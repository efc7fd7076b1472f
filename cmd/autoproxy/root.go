// Package main is the autoproxy CLI entry point.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// version and buildTime are set at build time via -ldflags.
var (
	version   = "dev"
	buildTime = "unknown"
)

var (
	flagPort             uint16
	flagConfig           string
	flagRateLimit        uint
	flagNoUI             bool
	flagPromotePreferred bool
)

var rootCmd = &cobra.Command{
	Use:   "autoproxy",
	Short: "Local reverse proxy with failover across Anthropic-compatible upstreams",
	Long: "autoproxy fronts one or more Anthropic-compatible LLM API upstreams, " +
		"selecting among them with per-upstream rate limiting and health scoring, " +
		"and failing over automatically when an upstream degrades.",
	RunE: runServe,
}

func init() {
	rootCmd.Version = version
	rootCmd.PersistentFlags().Uint16VarP(&flagPort, "port", "p", 8080, "port to listen on")
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "path to providers.json (default ~/.claude-proxy-manager/providers.json)")
	rootCmd.PersistentFlags().UintVarP(&flagRateLimit, "rate-limit", "r", 5, "requests per minute per upstream")
	rootCmd.PersistentFlags().BoolVar(&flagNoUI, "no-ui", false, "disable the terminal dashboard")
	rootCmd.PersistentFlags().BoolVar(&flagPromotePreferred, "promote-preferred", false, "write back the winning provider as preferred on success")

	rootCmd.AddCommand(setupCmd, serviceCmd, versionCmd)
}

func newLoggerForStartupErrors() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

// Execute runs the root command, exiting non-zero on failure per spec.md
// §6's exit-code contract.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
