package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aman-churiwal/quota-gateway/internal/config"
	"github.com/aman-churiwal/quota-gateway/internal/handler"
	"github.com/aman-churiwal/quota-gateway/internal/logger"
	"github.com/aman-churiwal/quota-gateway/internal/server"
	"github.com/aman-churiwal/quota-gateway/internal/storage"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "gateway",
		Short:         "Rate-limited chat gateway with token login",
		Version:       handler.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file (default: ./config.json)")

	return cmd
}

func run(configPath string) error {
	// Load env if it exists
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer func() {
		_ = log.Sync()
	}()

	var postgres *storage.Postgres
	if cfg.Database.DSN != "" {
		postgres, err = storage.NewPostgres(context.Background(), cfg.Database, log)
		if err != nil {
			return err
		}
		defer postgres.Close()

		if err := postgres.AutoMigrate(context.Background()); err != nil {
			return err
		}

		log.Info("request logging enabled")
	}

	srv, err := server.New(cfg, log, postgres)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run(":" + cfg.Server.Port)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Error("server failed", zap.Error(err))
			return err
		}
		return nil
	case sig := <-quit:
		log.Info("shutdown signal received", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
		return err
	}

	log.Info("server exited")
	return nil
}
