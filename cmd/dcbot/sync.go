package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/neural022/discord-bot-application/internal/logutil"
)

func newSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one reconciliation pass of the role message and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logutil.LoggerFromViper()
			if err != nil {
				return err
			}
			slog.SetDefault(logger)

			api, err := discordClientFromViper()
			if err != nil {
				return err
			}
			store, err := configStoreFromViper()
			if err != nil {
				return err
			}
			rec, err := buildReconciler(cmd.Context(), api, store, logger)
			if err != nil {
				return err
			}
			return rec.SyncCanonicalMessage(cmd.Context())
		},
	}
	return cmd
}
