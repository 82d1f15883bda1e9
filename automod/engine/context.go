package engine

import (
	"context"
	"log/slog"

	"github.com/xezzz/Harpoon/automod/configstore"
	"github.com/xezzz/Harpoon/discord"
)

// Message is the inbound message event as seen by the moderation core.
type Message struct {
	Ref     discord.MessageRef
	Content string

	AuthorID  string
	AuthorBot bool
	// AuthorModerator is set when the intake layer already knows the author
	// holds moderator permissions; the cache is consulted either way.
	AuthorModerator bool

	MentionCount int
}

// MessageContext is the primary interface exposed to rules.
type MessageContext struct {
	// Actual golang "context.Context", for timeouts on lookups
	Ctx context.Context
	// Logger with event-specific fields pre-populated. Never nil.
	Logger *slog.Logger

	Msg    *Message
	Config *configstore.GuildConfig

	engine  *Engine
	effects *Effects
}

func NewMessageContext(ctx context.Context, eng *Engine, msg *Message, cfg *configstore.GuildConfig) *MessageContext {
	return &MessageContext{
		Ctx:     ctx,
		Logger:  eng.Logger.With("guild", msg.Ref.GuildID, "user", msg.AuthorID, "message", msg.Ref.MessageID),
		Msg:     msg,
		Config:  cfg,
		engine:  eng,
		effects: &Effects{},
	}
}

// ResolveInvite resolves an invite code to its target via the transport.
func (c *MessageContext) ResolveInvite(code string) (*discord.Invite, error) {
	return c.engine.Client.ResolveInvite(c.Ctx, code)
}

// InAllowList reports whether the guild ID is on this guild's invite
// whitelist.
func (c *MessageContext) InAllowList(guildID string) bool {
	return c.Config.InviteWhitelisted(guildID)
}

// MarkForDeletion requests removal of the triggering message at the end of
// rule processing.
func (c *MessageContext) MarkForDeletion() {
	c.effects.DeleteMessage = true
}

// AddViolation enqueues a violation candidate for the message author.
func (c *MessageContext) AddViolation(vtype, reason, link string) {
	c.effects.Violations = append(c.effects.Violations, Violation{
		EventRef:    c.Msg.Ref.MessageID,
		GuildID:     c.Msg.Ref.GuildID,
		UserID:      c.Msg.AuthorID,
		Type:        vtype,
		ModeratorID: c.engine.Client.BotUserID(),
		Reason:      reason,
		Link:        link,
	})
}
