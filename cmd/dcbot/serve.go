package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/neural022/discord-bot-application/internal/discord"
	"github.com/neural022/discord-bot-application/internal/logutil"
	"github.com/neural022/discord-bot-application/rolesync"
)

const gatewayIntents = discord.IntentGuilds |
	discord.IntentGuildMembers |
	discord.IntentGuildMessages |
	discord.IntentGuildMessageReactions |
	discord.IntentMessageContent

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Connect to the gateway and keep the role message reconciled",
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

			// Run one pass before connecting so a missing channel
			// configuration fails the command instead of the stream.
			if err := rec.SyncCanonicalMessage(cmd.Context()); err != nil {
				return err
			}

			gw := discord.NewGateway(api, gatewayIntents, logger)
			handler := newEventHandler(rec, logger)

			logger.Info("serve_start")
			for {
				if cmd.Context().Err() != nil {
					logger.Info("serve_stop", "reason", "context_canceled")
					return nil
				}
				err := gw.Consume(cmd.Context(), handler)
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					logger.Info("serve_stop", "reason", "context_canceled")
					return nil
				}
				if err != nil {
					logger.Warn("gateway_disconnected", "error", err.Error())
				}
				if err := sleepWithContext(cmd.Context(), 2*time.Second); err != nil {
					logger.Info("serve_stop", "reason", "context_canceled")
					return nil
				}
			}
		},
	}
	return cmd
}

// newEventHandler routes gateway dispatches to the reconciler. One
// failed event never stops the stream.
func newEventHandler(rec *rolesync.Reconciler, logger *slog.Logger) discord.GatewayHandler {
	return func(eventType string, data json.RawMessage) error {
		ctx := context.Background()
		switch eventType {
		case discord.EventReady:
			ready, err := discord.ParseReady(data)
			if err != nil {
				return err
			}
			logger.Info("gateway_ready", "user", ready.User.Display())
			return rec.SyncCanonicalMessage(ctx)
		case discord.EventReactionAdd:
			ev, err := discord.ParseReactionEvent(data)
			if err != nil {
				return err
			}
			rec.HandleMembershipEvent(ctx, ev, rolesync.DirectionGrant)
		case discord.EventReactionRemove:
			ev, err := discord.ParseReactionEvent(data)
			if err != nil {
				return err
			}
			rec.HandleMembershipEvent(ctx, ev, rolesync.DirectionRevoke)
		}
		return nil
	}
}
