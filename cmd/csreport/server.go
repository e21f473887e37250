package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/itsupport/csreport/internal/api"
	"github.com/itsupport/csreport/internal/codegen"
	"github.com/itsupport/csreport/internal/config"
	"github.com/itsupport/csreport/internal/mail"
	"github.com/itsupport/csreport/internal/report"
	"github.com/itsupport/csreport/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the report server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "csreport version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	svc := report.NewService(store, codegen.New())

	var sender api.MailSender
	if cfg.Mail.SMTPHost != "" {
		sender = mail.NewSMTPSender(cfg.Mail.SMTPHost, cfg.Mail.SMTPPort,
			cfg.Mail.Username, cfg.Mail.Password, cfg.Mail.From)
		slog.Info("email delivery enabled", "host", cfg.Mail.SMTPHost)
	} else {
		slog.Info("email delivery disabled: no SMTP host configured")
	}

	handler := api.NewHandler(api.Deps{
		Service: svc,
		Store:   store,
		Mail:    sender,
		Version: version,
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "csreport listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
