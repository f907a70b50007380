package main

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/neural022/discord-bot-application/internal/discord"
	"github.com/neural022/discord-bot-application/internal/fsstore"
	"github.com/neural022/discord-bot-application/internal/logutil"
)

// newEmojisCmd exports a guild's custom emoji inventory in the same
// shape the bot config's emoji_ids key consumes.
func newEmojisCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "emojis <guild-id>",
		Short: "Export a guild's custom emoji ids as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logutil.LoggerFromViper()
			if err != nil {
				return err
			}
			slog.SetDefault(logger)

			guildID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || guildID <= 0 {
				return fmt.Errorf("invalid guild id %q", args[0])
			}

			api, err := discordClientFromViper()
			if err != nil {
				return err
			}
			emojis, err := api.GuildEmojis(cmd.Context(), discord.Snowflake(guildID))
			if err != nil {
				return err
			}

			mapping := make(map[string]string, len(emojis))
			for _, e := range emojis {
				if e.ID == 0 {
					continue
				}
				mapping[e.ID.String()] = e.Name
			}
			out := flagOrViperString(cmd, "out", "")
			if err := fsstore.WriteJSONAtomic(out, map[string]any{"emoji_ids": mapping}, fsstore.FileOptions{}); err != nil {
				return err
			}
			logger.Info("emoji_list_written", "guild_id", guildID, "emojis", len(mapping), "dest", out)
			return nil
		},
	}

	cmd.Flags().String("out", "emoji_list.json", "Destination file for the emoji mapping.")

	return cmd
}
