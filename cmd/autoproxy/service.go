package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mintya/auto-proxy/internal/svcinstall"
)

const (
	serviceName        = "autoproxy"
	serviceDisplayName = "auto-proxy"
	serviceDescription = "Local reverse proxy with failover across Anthropic-compatible upstreams"
)

var serviceCmd = &cobra.Command{
	Use:   "service",
	Short: "Install, uninstall, or run autoproxy as an OS background service",
}

func init() {
	serviceCmd.AddCommand(serviceInstallCmd, serviceUninstallCmd, serviceStartCmd, serviceStopCmd)
}

func serviceConfig() svcinstall.Config {
	args := []string{"--port", fmt.Sprint(flagPort), "--no-ui"}
	if flagConfig != "" {
		args = append(args, "--config", flagConfig)
	}
	return svcinstall.Config{
		Name:        serviceName,
		DisplayName: serviceDisplayName,
		Description: serviceDescription,
		Arguments:   args,
	}
}

// serviceStartStop adapts runServe/shutdown to the start/stop functions
// svcinstall.New expects; the OS service manager owns the process lifetime
// once installed, so these simply delegate to the same entry point used by
// the foreground command.
func serviceStart() error {
	return runServe(rootCmd, nil)
}

func serviceStop() error {
	return nil
}

var serviceInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Register autoproxy as an OS background service",
	RunE: func(cmd *cobra.Command, args []string) error {
		return svcinstall.Install(newLoggerForStartupErrors(), serviceConfig(), serviceStart, serviceStop)
	},
}

var serviceUninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Remove the autoproxy OS background service",
	RunE: func(cmd *cobra.Command, args []string) error {
		return svcinstall.Uninstall(newLoggerForStartupErrors(), serviceConfig(), serviceStart, serviceStop)
	},
}

var serviceStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the installed service",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := svcinstall.New(serviceConfig(), serviceStart, serviceStop)
		if err != nil {
			return err
		}
		return svc.Start()
	},
}

var serviceStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the installed service",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := svcinstall.New(serviceConfig(), serviceStart, serviceStop)
		if err != nil {
			return err
		}
		return svc.Stop()
	},
}
