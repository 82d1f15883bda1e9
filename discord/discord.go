// Package discord is the boundary to the chat platform. The moderation core
// only ever talks to the Client interface; the concrete Session adapter wraps
// the discordgo gateway and REST client.
package discord

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates the referenced entity (invite code, message, member)
// no longer exists on the platform side. All other transport failures should
// be treated as transient.
var ErrNotFound = errors.New("discord: not found")

// Member is the slice of guild member state the moderation core cares about.
type Member struct {
	UserID   string
	Username string
	Bot      bool
	Roles    []string
	// Moderator is resolved at fetch time from role permissions (kick, ban,
	// manage messages, or administrator).
	Moderator bool
}

// MessageRef identifies a single message.
type MessageRef struct {
	GuildID   string
	ChannelID string
	MessageID string
}

// Invite is the resolved target of an invite code. GuildID is empty when the
// invite does not point at a resolvable guild.
type Invite struct {
	Code    string
	GuildID string
}

type Client interface {
	BotUserID() string

	// ChunkMembers fetches the full membership of a guild.
	ChunkMembers(ctx context.Context, guildID string) ([]Member, error)

	DeleteMessage(ctx context.Context, ref MessageRef) error
	ResolveInvite(ctx context.Context, code string) (*Invite, error)

	Timeout(ctx context.Context, guildID, userID string, duration time.Duration, reason string) error
	Kick(ctx context.Context, guildID, userID, reason string) error
	Ban(ctx context.Context, guildID, userID, reason string) error
}
