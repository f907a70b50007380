package rolesync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/neural022/discord-bot-application/configstore"
	"github.com/neural022/discord-bot-application/internal/discord"
)

var ErrChannelNotConfigured = errors.New("rolesync: channel id not configured")

// Session is the slice of the platform API the reconciler drives.
// *discord.Client satisfies it.
type Session interface {
	Channel(ctx context.Context, channelID discord.Snowflake) (*discord.Channel, error)
	ChannelMessage(ctx context.Context, channelID, messageID discord.Snowflake) (*discord.Message, error)
	CreateMessage(ctx context.Context, channelID discord.Snowflake, content string) (*discord.Message, error)
	EditMessage(ctx context.Context, channelID, messageID discord.Snowflake, content string) (*discord.Message, error)
	CreateReaction(ctx context.Context, channelID, messageID discord.Snowflake, emojiName, emojiID string) error
	Guild(ctx context.Context, guildID discord.Snowflake) (*discord.Guild, error)
	GuildRoles(ctx context.Context, guildID discord.Snowflake) ([]discord.Role, error)
	GuildMember(ctx context.Context, guildID, userID discord.Snowflake) (*discord.Member, error)
	AddMemberRole(ctx context.Context, guildID, userID, roleID discord.Snowflake) error
	RemoveMemberRole(ctx context.Context, guildID, userID, roleID discord.Snowflake) error
}

// Direction tells HandleMembershipEvent whether a reaction event
// grants or revokes the bound role.
type Direction string

const (
	DirectionGrant  Direction = "grant"
	DirectionRevoke Direction = "revoke"
)

type Options struct {
	Session   Session
	Store     *configstore.Store
	Table     *Table
	BotUserID discord.Snowflake
	Logger    *slog.Logger
}

// Reconciler keeps the canonical role-selection message alive and
// up to date, and applies membership changes driven by reactions on
// it. It is driven from a single event loop; it does not synchronize
// its own passes.
type Reconciler struct {
	session   Session
	store     *configstore.Store
	table     *Table
	botUserID discord.Snowflake
	logger    *slog.Logger
}

func New(opts Options) (*Reconciler, error) {
	if opts.Session == nil {
		return nil, fmt.Errorf("rolesync: session is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("rolesync: config store is required")
	}
	if opts.Table == nil {
		return nil, fmt.Errorf("rolesync: binding table is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		session:   opts.Session,
		store:     opts.Store,
		table:     opts.Table,
		botUserID: opts.BotUserID,
		logger:    logger,
	}, nil
}

// renderContent concatenates the configured preamble with one line
// per binding in table order. With zero bindings the content is the
// preamble, exactly.
func (r *Reconciler) renderContent() string {
	var sb strings.Builder
	sb.WriteString(r.store.GetString(configstore.KeyDefaultRuleMsg))
	for _, b := range r.table.All() {
		sb.WriteString("> 🔹 ")
		sb.WriteString(b.RoleName)
		sb.WriteString(" → ")
		sb.WriteString(b.Render())
		sb.WriteString("\n")
	}
	return sb.String()
}

// SyncCanonicalMessage ensures the role-selection message exists in
// the active channel, carries current content, and has every marker
// attached. Safe to call repeatedly; an unchanged configuration
// produces no new message.
func (r *Reconciler) SyncCanonicalMessage(ctx context.Context) error {
	channelKey := configstore.KeyBotCommandChannelID
	if r.store.GetBool(configstore.KeyDevMode) {
		r.logger.Info("dev_mode_active")
		channelKey = configstore.KeyTestCommandChannelID
	}
	channelID := discord.Snowflake(r.store.GetInt64(channelKey))
	if channelID == 0 {
		return fmt.Errorf("%w: %s", ErrChannelNotConfigured, channelKey)
	}

	channel, err := r.session.Channel(ctx, channelID)
	if err != nil {
		r.logger.Error("role_channel_unresolved", "channel_id", channelID.String(), "error", err.Error())
		return nil
	}

	content := r.renderContent()

	var message *discord.Message
	storedID := discord.Snowflake(r.store.GetInt64(configstore.KeyRoleMessageID))
	if storedID != 0 {
		existing, err := r.session.ChannelMessage(ctx, channel.ID, storedID)
		switch {
		case errors.Is(err, discord.ErrNotFound):
			r.logger.Warn("role_message_gone", "message_id", storedID.String())
		case err != nil:
			r.logger.Error("role_message_fetch_failed", "message_id", storedID.String(), "error", err.Error())
			return nil
		default:
			message, err = r.session.EditMessage(ctx, channel.ID, existing.ID, content)
			switch {
			case errors.Is(err, discord.ErrNotFound):
				// Deleted between fetch and edit; recreate below.
				r.logger.Warn("role_message_gone", "message_id", storedID.String())
				message = nil
			case err != nil:
				// Do not fall through to creation here: a transient
				// edit failure must not double-post.
				r.logger.Error("role_message_edit_failed", "message_id", storedID.String(), "error", err.Error())
				return nil
			default:
				r.logger.Info("role_message_updated", "message_id", message.ID.String())
			}
		}
	}

	if message == nil {
		message, err = r.session.CreateMessage(ctx, channel.ID, content)
		if err != nil {
			r.logger.Error("role_message_post_failed", "channel_id", channel.ID.String(), "error", err.Error())
			return nil
		}
		// Persist before anything else so a crash right after the
		// post does not produce a duplicate on the next pass.
		if err := r.store.Set(configstore.KeyRoleMessageID, int64(message.ID)); err != nil {
			return fmt.Errorf("persist role_message_id: %w", err)
		}
		r.logger.Info("role_message_posted", "message_id", message.ID.String())
	}

	for _, b := range r.table.All() {
		if err := r.session.CreateReaction(ctx, channel.ID, message.ID, b.MarkerName, b.MarkerID); err != nil {
			r.logger.Error("marker_attach_failed", "emoji", b.Render(), "error", err.Error())
			continue
		}
		r.logger.Info("marker_attached", "emoji", b.Render())
	}
	return nil
}

// HandleMembershipEvent applies one reaction event against the
// canonical message. Every guard below is terminal for this event
// only: it logs, changes nothing, and leaves later events unaffected.
func (r *Reconciler) HandleMembershipEvent(ctx context.Context, ev *discord.ReactionEvent, direction Direction) {
	if ev == nil {
		return
	}
	storedID := discord.Snowflake(r.store.GetInt64(configstore.KeyRoleMessageID))
	if storedID == 0 || ev.MessageID != storedID {
		return
	}

	if _, err := r.session.Guild(ctx, ev.GuildID); err != nil {
		r.logger.Info("membership_guild_unresolved", "guild_id", ev.GuildID.String(), "error", err.Error())
		return
	}

	markerID := ev.Emoji.ID.String()
	binding, ok := r.table.Lookup(markerID)
	if !ok {
		r.logger.Info("membership_marker_unbound", "marker_id", markerID)
		return
	}

	roleID := discord.Snowflake(binding.RoleID)
	roles, err := r.session.GuildRoles(ctx, ev.GuildID)
	if err != nil {
		r.logger.Info("membership_roles_unresolved", "guild_id", ev.GuildID.String(), "error", err.Error())
		return
	}
	found := false
	for _, role := range roles {
		if role.ID == roleID {
			found = true
			break
		}
	}
	if !found {
		r.logger.Info("membership_role_missing", "role_id", roleID.String(), "marker_id", markerID)
		return
	}

	member := ev.Member
	if direction == DirectionRevoke {
		member, err = r.session.GuildMember(ctx, ev.GuildID, ev.UserID)
		if err != nil {
			r.logger.Info("membership_member_unresolved", "user_id", ev.UserID.String(), "error", err.Error())
			return
		}
	}
	if member == nil || member.User == nil {
		r.logger.Info("membership_member_missing", "user_id", ev.UserID.String())
		return
	}
	if member.User.ID == r.botUserID {
		return
	}

	switch direction {
	case DirectionGrant:
		if err := r.session.AddMemberRole(ctx, ev.GuildID, member.User.ID, roleID); err != nil {
			r.logger.Error("role_grant_failed", "role", binding.RoleName, "user_id", member.User.ID.String(), "error", err.Error())
			return
		}
		r.logger.Info("role_granted", "role", binding.RoleName, "user", member.User.Display())
	case DirectionRevoke:
		if err := r.session.RemoveMemberRole(ctx, ev.GuildID, member.User.ID, roleID); err != nil {
			r.logger.Error("role_revoke_failed", "role", binding.RoleName, "user_id", member.User.ID.String(), "error", err.Error())
			return
		}
		r.logger.Info("role_revoked", "role", binding.RoleName, "user", member.User.Display())
	}
}
