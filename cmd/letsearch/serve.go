package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/altaidevorg/letsearch/infrastructure/api"
	"github.com/altaidevorg/letsearch/internal/collectionmgr"
	"github.com/altaidevorg/letsearch/internal/config"
	"github.com/altaidevorg/letsearch/internal/log"
	"github.com/altaidevorg/letsearch/internal/modelhub"
	"github.com/altaidevorg/letsearch/internal/modelmgr"
)

// shutdownTimeout bounds how long the server waits for in-flight requests to
// finish before a SIGINT/SIGTERM forces the listener closed.
const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	var (
		envFile  string
		collName string
		host     string
		port     int
		hfToken  string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a collection for search over the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(envFile, collName, host, port, hfToken)
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file (default: .env in current directory)")
	cmd.Flags().StringVarP(&collName, "collection-name", "c", "", "Name of the collection to serve")
	cmd.Flags().StringVarP(&host, "host", "H", "", "Host to bind to (default: 0.0.0.0)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port to listen on (default: 8080)")
	cmd.Flags().StringVar(&hfToken, "hf-token", "", "Model hub credential (overrides HF_TOKEN)")
	_ = cmd.MarkFlagRequired("collection-name")

	return cmd
}

func runServe(envFile, collName, host string, port int, hfToken string) error {
	cfg, err := loadConfig(envFile)
	if err != nil {
		return err
	}
	cfg = cfg.Apply(applyServeOverrides(host, port)...)

	if err := cfg.EnsureHome(); err != nil {
		return fmt.Errorf("create home directory: %w", err)
	}

	logger := log.NewLogger(cfg)
	slogger := logger.Slog()

	token := hfToken
	if token == "" {
		token = cfg.HFToken()
	}

	hub := modelhub.New(cfg.ModelsDir(), token)
	models := modelmgr.New()
	mgr := collectionmgr.New(cfg.Home(), hub, models)
	defer func() {
		if err := mgr.Close(); err != nil {
			slogger.Error("close collection manager", "error", err)
		}
	}()

	if _, err := mgr.LoadCollection(collName); err != nil {
		return fmt.Errorf("load collection %s: %w", collName, err)
	}
	slogger.Info("collection loaded", "name", collName)

	apiServer := api.NewAPIServer(cfg.Addr(), mgr, slogger)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		slogger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			slogger.Error("shutdown error", slog.Any("error", err))
		}
	}()

	slogger.Info("starting server", "addr", cfg.Addr())
	if err := apiServer.ListenAndServe(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

func applyServeOverrides(host string, port int) []config.Option {
	var opts []config.Option
	if host != "" {
		opts = append(opts, config.WithHost(host))
	}
	if port != 0 {
		opts = append(opts, config.WithPort(port))
	}
	return opts
}
