package discord

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// Snowflake is a Discord entity id. The REST and gateway APIs encode
// snowflakes as decimal strings; they do not fit in float64, so the
// type decodes both quoted and bare forms and always emits a bare
// number.
type Snowflake int64

func (s Snowflake) String() string {
	return strconv.FormatInt(int64(s), 10)
}

func (s *Snowflake) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(bytes.Trim(bytes.TrimSpace(data), `"`)))
	if raw == "" || raw == "null" {
		*s = 0
		return nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("discord: parse snowflake %q: %w", raw, err)
	}
	*s = Snowflake(v)
	return nil
}

func (s Snowflake) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatInt(int64(s), 10)), nil
}

type User struct {
	ID            Snowflake `json:"id"`
	Username      string    `json:"username"`
	Discriminator string    `json:"discriminator,omitempty"`
	GlobalName    string    `json:"global_name,omitempty"`
	Bot           bool      `json:"bot,omitempty"`
}

// Display renders the user the way chat clients label message authors.
func (u User) Display() string {
	name := strings.TrimSpace(u.Username)
	disc := strings.TrimSpace(u.Discriminator)
	if disc != "" && disc != "0" {
		return name + "#" + disc
	}
	return name
}

type Channel struct {
	ID      Snowflake `json:"id"`
	Type    int       `json:"type"`
	GuildID Snowflake `json:"guild_id,omitempty"`
	Name    string    `json:"name,omitempty"`
}

type Guild struct {
	ID   Snowflake `json:"id"`
	Name string    `json:"name,omitempty"`
}

type Role struct {
	ID   Snowflake `json:"id"`
	Name string    `json:"name,omitempty"`
}

type Member struct {
	User  *User       `json:"user,omitempty"`
	Nick  string      `json:"nick,omitempty"`
	Roles []Snowflake `json:"roles,omitempty"`
}

type Attachment struct {
	ID       Snowflake `json:"id"`
	Filename string    `json:"filename"`
	URL      string    `json:"url"`
	Size     int64     `json:"size,omitempty"`
}

type Message struct {
	ID          Snowflake    `json:"id"`
	ChannelID   Snowflake    `json:"channel_id"`
	Author      User         `json:"author"`
	Content     string       `json:"content"`
	Timestamp   string       `json:"timestamp"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

type Emoji struct {
	ID   Snowflake `json:"id"`
	Name string    `json:"name"`
}

// ReactionEvent is the payload shape shared by the gateway's
// MESSAGE_REACTION_ADD and MESSAGE_REACTION_REMOVE dispatches. Member
// is only present on add.
type ReactionEvent struct {
	UserID    Snowflake `json:"user_id"`
	ChannelID Snowflake `json:"channel_id"`
	MessageID Snowflake `json:"message_id"`
	GuildID   Snowflake `json:"guild_id,omitempty"`
	Member    *Member   `json:"member,omitempty"`
	Emoji     Emoji     `json:"emoji"`
}
