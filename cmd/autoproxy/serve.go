package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/mintya/auto-proxy/internal/config"
	"github.com/mintya/auto-proxy/internal/cron"
	"github.com/mintya/auto-proxy/internal/dispatcher"
	"github.com/mintya/auto-proxy/internal/gateway"
	"github.com/mintya/auto-proxy/internal/netprobe"
	"github.com/mintya/auto-proxy/internal/obs"
	"github.com/mintya/auto-proxy/internal/security"
	"github.com/mintya/auto-proxy/internal/state"
	"github.com/mintya/auto-proxy/internal/tui"
	"github.com/mintya/auto-proxy/internal/upstream"
)

// runServe is rootCmd's RunE: it loads the config, wires every subsystem
// together, and blocks until an interrupt or the TUI quits.
func runServe(cmd *cobra.Command, args []string) error {
	providers, path, err := config.Load(flagConfig)
	if err != nil {
		if errors.Is(err, config.ErrTemplateWritten) {
			fmt.Fprintf(os.Stdout, "No configuration found. A template was written to %s — edit it and restart.\n", path)
			return nil
		}
		fatalf("%v", err)
	}

	redactor := security.NewRedactor()
	store := security.NewCredentialStore()
	for _, p := range providers {
		store.Set(p.Name, p.Token)
	}

	textHandler := slog.NewTextHandler(os.Stdout, nil)
	sink := obs.New(textHandler, redactor, store)
	logger := sink.Logger()

	auditFile, err := os.OpenFile(filepath.Join(filepath.Dir(path), "audit.log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		sink.Warning("could not open audit log, audit events will be dropped", "error", err)
	}
	auditCfg := security.AuditLoggerConfig{Redactor: redactor}
	if auditFile != nil {
		auditCfg.Writer = auditFile
		defer auditFile.Close()
	}
	audit := security.NewAuditLogger(auditCfg)
	audit.Log(security.AuditEvent{Type: security.EventSessionCreate, Detail: "autoproxy started"})
	defer audit.Log(security.AuditEvent{Type: security.EventSessionDelete, Detail: "autoproxy stopped"})

	st := state.New(logger, int(flagRateLimit))
	client := upstream.New()
	disp := dispatcher.New(client, st, sink)
	disp.SetAuditLogger(audit)
	srv := gateway.New(disp, st, providers, sink, logger)
	srv.SetAuditLogger(audit)
	if flagPromotePreferred {
		srv.EnablePromotePreferred(path)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	scheduler := cron.NewScheduler(logger)
	if err := scheduler.RegisterJob(netprobe.New(sink)); err != nil {
		return fmt.Errorf("registering netprobe job: %w", err)
	}
	if err := scheduler.Start(); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}

	httpServer := &http.Server{
		Addr:    fmt.Sprintf("0.0.0.0:%d", flagPort),
		Handler: srv,
	}

	serveErr := make(chan error, 1)
	go func() {
		sink.Info("listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	var uiDone chan struct{}
	if !flagNoUI {
		uiDone = make(chan struct{})
		program := tea.NewProgram(tui.New(st, providers, sink))
		go func() {
			defer close(uiDone)
			if _, err := program.Run(); err != nil {
				sink.Error("tui exited with error", "error", err)
			}
			stop() // quitting the dashboard shuts the whole process down
		}()
	}

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			sink.Error("http server failed", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)
	_ = scheduler.Stop(shutdownCtx)

	if uiDone != nil {
		<-uiDone
	}

	return nil
}
