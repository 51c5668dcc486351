package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"salon-assistant/internal/infra/console"
	"salon-assistant/internal/infra/httpapi"
)

func newChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Talk to the assistant from the terminal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			// stdout is the conversation; logs go to stderr.
			logger := setupLogger(cfg.Log, os.Stderr)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			con := console.New(cfg.Assistant.Name, os.Stdin, os.Stdout, logger)

			a, err := build(ctx, cfg, con, logger)
			if err != nil {
				return err
			}
			a.orch.OnStateChange(con.ShowState)

			go a.initialize(ctx)

			return con.Run(ctx, a.orch)
		},
	}
}

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the assistant over an HTTP JSON API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}

			logger := setupLogger(cfg.Log, os.Stdout)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			board := httpapi.NewNoticeBoard()

			a, err := build(ctx, cfg, board, logger)
			if err != nil {
				return err
			}

			srv := httpapi.NewServer(a.orch, board, httpapi.Options{
				Addr:          cfg.Server.Addr,
				RatePerMinute: cfg.Server.RatePerMinute,
				Burst:         cfg.Server.Burst,
				AuthToken:     cfg.Server.AuthToken,
				Metrics:       promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}),
				Observer:      a.metrics,
			}, logger)

			if err := srv.Start(ctx); err != nil {
				return err
			}

			go a.initialize(ctx)

			logger.Info("salon assistant serving",
				"addr", cfg.Server.Addr,
				"chat_provider", cfg.Chat.Provider,
				"transcription_provider", cfg.Transcription.Provider,
			)

			var serveErr error
			select {
			case <-ctx.Done():
				logger.Info("shutting down")
			case serveErr = <-srv.Err():
			}

			if err := srv.Stop(); err != nil {
				logger.Error("stopping server", "error", err)
			}
			return serveErr
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}

// initialize creates the chat session. Failures leave the assistant not
// ready; front-ends keep rejecting input.
func (a *app) initialize(ctx context.Context) {
	if err := a.orch.Initialize(ctx, a.locator, a.factory); err != nil {
		a.logger.Error("initializing chat session", "error", err)
		if err := a.alerter.Alert(context.WithoutCancel(ctx), "chat session could not be created: "+err.Error()); err != nil {
			a.logger.Error("alerting operator", "error", err)
		}
	}
}
