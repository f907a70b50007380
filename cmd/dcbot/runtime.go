package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/neural022/discord-bot-application/configstore"
	"github.com/neural022/discord-bot-application/internal/discord"
	"github.com/neural022/discord-bot-application/rolesync"
)

func discordClientFromViper() (*discord.Client, error) {
	token := strings.TrimSpace(viper.GetString("discord.bot_token"))
	if token == "" {
		return nil, fmt.Errorf("missing discord.bot_token (set via --bot-token or DCBOT_DISCORD_BOT_TOKEN)")
	}
	httpClient := &http.Client{Timeout: 30 * time.Second}
	return discord.New(httpClient, viper.GetString("discord.base_url"), token), nil
}

func configStoreFromViper() (*configstore.Store, error) {
	path := strings.TrimSpace(viper.GetString("bot_config"))
	if path == "" {
		path = "config.json"
	}
	return configstore.Load(path)
}

// buildReconciler wires the reconciler's dependencies explicitly:
// REST client, config store, and a validated binding table. The bot
// user id comes from the API so self-reactions can be recognized.
func buildReconciler(ctx context.Context, api *discord.Client, store *configstore.Store, logger *slog.Logger) (*rolesync.Reconciler, error) {
	table, err := rolesync.NewTable(
		store.GetMap(configstore.KeyEmojiIDs),
		store.GetMap(configstore.KeyEmojiToRole),
	)
	if err != nil {
		return nil, err
	}
	me, err := api.Me(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve bot user: %w", err)
	}
	logger.Info("bot_identity", "user", me.Display(), "user_id", me.ID.String())
	rec, err := rolesync.New(rolesync.Options{
		Session:   api,
		Store:     store,
		Table:     table,
		BotUserID: me.ID,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
