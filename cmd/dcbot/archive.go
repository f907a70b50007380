package main

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/neural022/discord-bot-application/archive"
	"github.com/neural022/discord-bot-application/internal/discord"
	"github.com/neural022/discord-bot-application/internal/logutil"
)

func newArchiveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive <channel-id>",
		Short: "Snapshot a channel's full history and attachments to disk",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logutil.LoggerFromViper()
			if err != nil {
				return err
			}
			slog.SetDefault(logger)

			channelID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || channelID <= 0 {
				return fmt.Errorf("invalid channel id %q", args[0])
			}

			api, err := discordClientFromViper()
			if err != nil {
				return err
			}
			pipeline, err := archive.New(archive.Options{
				Source:          api,
				Logger:          logger,
				SaveDir:         flagOrViperString(cmd, "save-dir", "archive.save_dir"),
				MaxConcurrency:  flagOrViperInt(cmd, "max-concurrency", "archive.max_concurrency"),
				DownloadTimeout: flagOrViperDuration(cmd, "download-timeout", "archive.download_timeout"),
				MaxBytes:        flagOrViperInt64(cmd, "max-bytes", "archive.max_bytes"),
			})
			if err != nil {
				return err
			}

			dest := flagOrViperString(cmd, "out", "archive.out")
			return pipeline.Archive(cmd.Context(), discord.Snowflake(channelID), dest)
		},
	}

	cmd.Flags().String("out", "channel_dump.json", "Destination file for the archive artifact.")
	cmd.Flags().String("save-dir", "download", "Directory for downloaded attachments.")
	cmd.Flags().Int("max-concurrency", 4, "Max number of attachment downloads in flight.")
	cmd.Flags().Duration("download-timeout", 0, "Per-download timeout (0 uses the default).")
	cmd.Flags().Int64("max-bytes", 0, "Per-download size cap in bytes (0 uses the default).")

	return cmd
}
