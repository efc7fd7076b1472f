// Package svcinstall wraps kardianos/service so the proxy can be installed
// and managed as a background OS service (systemd, launchd, or Windows
// service, depending on platform).
package svcinstall

import (
	"log/slog"

	"github.com/kardianos/service"
)

// Config describes the service registration: its identity and the
// arguments the installed service should run the current binary with.
type Config struct {
	Name        string
	DisplayName string
	Description string
	Arguments   []string
}

// program adapts a start/stop function pair to service.Interface.
type program struct {
	start func() error
	stop  func() error
}

func (p *program) Start(s service.Service) error {
	go func() {
		if err := p.start(); err != nil {
			_ = err // the service manager's own log captures failures; nothing more to do here
		}
	}()
	return nil
}

func (p *program) Stop(s service.Service) error {
	return p.stop()
}

// New builds a service.Service wired to start/stop, ready for Install,
// Uninstall, Start, Stop, or Run.
func New(cfg Config, start, stop func() error) (service.Service, error) {
	svcConfig := &service.Config{
		Name:        cfg.Name,
		DisplayName: cfg.DisplayName,
		Description: cfg.Description,
		Arguments:   cfg.Arguments,
	}
	return service.New(&program{start: start, stop: stop}, svcConfig)
}

// Install registers the service with the OS service manager.
func Install(logger *slog.Logger, cfg Config, start, stop func() error) error {
	svc, err := New(cfg, start, stop)
	if err != nil {
		return err
	}
	if err := svc.Install(); err != nil {
		return err
	}
	logger.Info("service installed", "name", cfg.Name)
	return nil
}

// Uninstall removes the service registration.
func Uninstall(logger *slog.Logger, cfg Config, start, stop func() error) error {
	svc, err := New(cfg, start, stop)
	if err != nil {
		return err
	}
	if err := svc.Uninstall(); err != nil {
		return err
	}
	logger.Info("service uninstalled", "name", cfg.Name)
	return nil
}
