package discord

import (
	"context"
	"fmt"
	"net/url"
)

func (c *Client) Me(ctx context.Context) (*User, error) {
	var out User
	if err := c.doJSON(ctx, "GET", "/users/@me", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Channel(ctx context.Context, channelID Snowflake) (*Channel, error) {
	var out Channel
	if err := c.doJSON(ctx, "GET", "/channels/"+channelID.String(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ChannelMessage(ctx context.Context, channelID, messageID Snowflake) (*Message, error) {
	var out Message
	path := fmt.Sprintf("/channels/%s/messages/%s", channelID, messageID)
	if err := c.doJSON(ctx, "GET", path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type createMessageRequest struct {
	Content string `json:"content"`
}

func (c *Client) CreateMessage(ctx context.Context, channelID Snowflake, content string) (*Message, error) {
	var out Message
	path := fmt.Sprintf("/channels/%s/messages", channelID)
	if err := c.doJSON(ctx, "POST", path, createMessageRequest{Content: content}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) EditMessage(ctx context.Context, channelID, messageID Snowflake, content string) (*Message, error) {
	var out Message
	path := fmt.Sprintf("/channels/%s/messages/%s", channelID, messageID)
	if err := c.doJSON(ctx, "PATCH", path, createMessageRequest{Content: content}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateReaction attaches the bot's own reaction. Custom emoji are
// addressed as "name:id" in the path. Reacting twice with the same
// emoji is a no-op on Discord's side.
func (c *Client) CreateReaction(ctx context.Context, channelID, messageID Snowflake, emojiName, emojiID string) error {
	emoji := emojiName
	if emojiID != "" {
		emoji = emojiName + ":" + emojiID
	}
	path := fmt.Sprintf("/channels/%s/messages/%s/reactions/%s/@me",
		channelID, messageID, url.PathEscape(emoji))
	return c.doJSON(ctx, "PUT", path, nil, nil)
}

func (c *Client) Guild(ctx context.Context, guildID Snowflake) (*Guild, error) {
	var out Guild
	if err := c.doJSON(ctx, "GET", "/guilds/"+guildID.String(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GuildRoles(ctx context.Context, guildID Snowflake) ([]Role, error) {
	var out []Role
	if err := c.doJSON(ctx, "GET", "/guilds/"+guildID.String()+"/roles", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GuildMember(ctx context.Context, guildID, userID Snowflake) (*Member, error) {
	var out Member
	path := fmt.Sprintf("/guilds/%s/members/%s", guildID, userID)
	if err := c.doJSON(ctx, "GET", path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AddMemberRole(ctx context.Context, guildID, userID, roleID Snowflake) error {
	path := fmt.Sprintf("/guilds/%s/members/%s/roles/%s", guildID, userID, roleID)
	return c.doJSON(ctx, "PUT", path, nil, nil)
}

func (c *Client) RemoveMemberRole(ctx context.Context, guildID, userID, roleID Snowflake) error {
	path := fmt.Sprintf("/guilds/%s/members/%s/roles/%s", guildID, userID, roleID)
	return c.doJSON(ctx, "DELETE", path, nil, nil)
}

func (c *Client) GuildEmojis(ctx context.Context, guildID Snowflake) ([]Emoji, error) {
	var out []Emoji
	if err := c.doJSON(ctx, "GET", "/guilds/"+guildID.String()+"/emojis", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type gatewayBotResponse struct {
	URL string `json:"url"`
}

func (c *Client) GatewayURL(ctx context.Context) (string, error) {
	var out gatewayBotResponse
	if err := c.doJSON(ctx, "GET", "/gateway/bot", nil, &out); err != nil {
		return "", err
	}
	if out.URL == "" {
		return "", fmt.Errorf("discord gateway/bot returned empty url")
	}
	return out.URL, nil
}
