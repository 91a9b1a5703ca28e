package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dukerupert/drivemode/internal/backup"
	"github.com/dukerupert/drivemode/internal/database"
)

func backupCmd(cfgPath *string) *cobra.Command {
	var cleanup bool

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Take an encrypted backup of the backend database now",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(*cfgPath)
			if err != nil {
				return err
			}

			db, err := database.Open(cfg.Server.DBPath)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()

			m := newBackupManager(cfg.Backup, db, logger)
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Minute)
			defer cancel()

			record, err := m.RunNow(ctx)
			if errors.Is(err, backup.ErrNotConfigured) {
				return errors.New("backups are not configured: set backup.bucket, backup.access_key, backup.secret_key and backup.passphrase")
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "uploaded %s (%d bytes)\n", record.S3Key, record.SizeBytes)

			if cleanup {
				return m.Cleanup(ctx)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&cleanup, "cleanup", false, "also delete backups past the retention period")
	return cmd
}
