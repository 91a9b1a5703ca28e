package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dukerupert/drivemode/internal/backup"
	"github.com/dukerupert/drivemode/internal/config"
	"github.com/dukerupert/drivemode/internal/logging"
	"github.com/dukerupert/drivemode/internal/store"
)

var Version = "dev"

func main() {
	var cfgPath string

	rootCmd := &cobra.Command{
		Use:          "drivemode",
		Short:        "Driving-mode assistant: backend API and device agent",
		Version:      Version,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default "+config.DefaultFile+" if present)")

	rootCmd.AddCommand(serveCmd(&cfgPath))
	rootCmd.AddCommand(agentCmd(&cfgPath))
	rootCmd.AddCommand(backupCmd(&cfgPath))
	rootCmd.AddCommand(vapidKeysCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setup(cfgPath string) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logging.Setup(cfg.LogLevel, cfg.LogFormat), nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func newBackupManager(cfg config.BackupConfig, db *sql.DB, logger *slog.Logger) *backup.Manager {
	return backup.NewManager(backup.Config{
		S3: backup.S3Config{
			Endpoint:  cfg.Endpoint,
			Bucket:    cfg.Bucket,
			Region:    cfg.Region,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
		},
		Passphrase:    cfg.Passphrase,
		Interval:      cfg.Interval,
		RetentionDays: cfg.RetentionDays,
	}, db, store.NewBackupStore(db), logger)
}
