package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jose-valero/guild-keeper-bot/internal/infra/storage"
)

const defaultHistoryRetention = 30 * 24 * time.Hour

func newPruneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete snapshot_history rows older than --older-than (postgres only)",
		Long: `Delete old rows from snapshot_history. The current documents in
snapshots are never touched.

Examples:
  snapshotctl prune                      # keep the last 30 days
  snapshotctl prune --older-than 168h    # keep the last week`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			olderThan, _ := cmd.Flags().GetDuration("older-than")
			if olderThan <= 0 {
				return fmt.Errorf("invalid --older-than %s (must be > 0)", olderThan)
			}
			dsn, _ := cmd.Flags().GetString("database-url")
			if dsn == "" {
				return errors.New("prune needs --database-url or DATABASE_URL")
			}

			repo, db, err := storage.OpenSnapshotRepo(cmd.Context(), dsn)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			n, err := repo.PruneHistory(cmd.Context(), olderThan)
			if err != nil {
				return fmt.Errorf("prune history: %w", err)
			}
			fprintf(cmd.OutOrStdout(), "✓ %d history row(s) older than %s removed\n", n, olderThan)
			return nil
		},
	}
	cmd.Flags().Duration("older-than", defaultHistoryRetention, "retention window")
	return cmd
}
