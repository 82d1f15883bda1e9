package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
)

const chunkPageSize = 1000

// permissions which make a member immune to automated moderation
const moderatorPermissions = discordgo.PermissionAdministrator |
	discordgo.PermissionBanMembers |
	discordgo.PermissionKickMembers |
	discordgo.PermissionManageMessages

// Session implements Client on top of a discordgo session.
type Session struct {
	dg     *discordgo.Session
	logger *slog.Logger
}

func NewSession(token string, logger *slog.Logger) (*Session, error) {
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("creating discord session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildBans |
		discordgo.IntentMessageContent
	return &Session{dg: dg, logger: logger}, nil
}

// Raw exposes the underlying session for gateway handler registration.
func (s *Session) Raw() *discordgo.Session {
	return s.dg
}

func (s *Session) Open() error {
	if err := s.dg.Open(); err != nil {
		return fmt.Errorf("opening discord gateway: %w", err)
	}
	s.logger.Info("discord gateway connected", "bot", s.BotUserID())
	return nil
}

func (s *Session) Close() error {
	return s.dg.Close()
}

func (s *Session) BotUserID() string {
	if s.dg.State != nil && s.dg.State.User != nil {
		return s.dg.State.User.ID
	}
	return ""
}

func (s *Session) ChunkMembers(ctx context.Context, guildID string) ([]Member, error) {
	roles, err := s.dg.GuildRoles(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, wrapRESTError(fmt.Sprintf("fetching roles for guild %s", guildID), err)
	}
	modRoles := make(map[string]bool, len(roles))
	for _, r := range roles {
		if r.Permissions&moderatorPermissions != 0 {
			modRoles[r.ID] = true
		}
	}

	var out []Member
	after := ""
	for {
		page, err := s.dg.GuildMembers(guildID, after, chunkPageSize, discordgo.WithContext(ctx))
		if err != nil {
			return nil, wrapRESTError(fmt.Sprintf("chunking guild %s", guildID), err)
		}
		for _, m := range page {
			if m.User == nil {
				continue
			}
			mod := false
			for _, rid := range m.Roles {
				if modRoles[rid] {
					mod = true
					break
				}
			}
			out = append(out, Member{
				UserID:    m.User.ID,
				Username:  m.User.Username,
				Bot:       m.User.Bot,
				Roles:     m.Roles,
				Moderator: mod,
			})
			after = m.User.ID
		}
		if len(page) < chunkPageSize {
			return out, nil
		}
	}
}

func (s *Session) DeleteMessage(ctx context.Context, ref MessageRef) error {
	err := s.dg.ChannelMessageDelete(ref.ChannelID, ref.MessageID, discordgo.WithContext(ctx))
	return wrapRESTError("deleting message", err)
}

func (s *Session) ResolveInvite(ctx context.Context, code string) (*Invite, error) {
	inv, err := s.dg.InviteWithCounts(code, discordgo.WithContext(ctx))
	if err != nil {
		return nil, wrapRESTError(fmt.Sprintf("resolving invite %s", code), err)
	}
	out := &Invite{Code: code}
	if inv.Guild != nil {
		out.GuildID = inv.Guild.ID
	}
	return out, nil
}

func (s *Session) Timeout(ctx context.Context, guildID, userID string, duration time.Duration, reason string) error {
	until := time.Now().Add(duration)
	err := s.dg.GuildMemberTimeout(guildID, userID, &until, discordgo.WithContext(ctx))
	return wrapRESTError("applying timeout", err)
}

func (s *Session) Kick(ctx context.Context, guildID, userID, reason string) error {
	err := s.dg.GuildMemberDeleteWithReason(guildID, userID, reason, discordgo.WithContext(ctx))
	return wrapRESTError("kicking member", err)
}

func (s *Session) Ban(ctx context.Context, guildID, userID, reason string) error {
	err := s.dg.GuildBanCreateWithReason(guildID, userID, reason, 0, discordgo.WithContext(ctx))
	return wrapRESTError("banning member", err)
}

// wrapRESTError maps a 404 onto ErrNotFound so callers can branch on it with
// errors.Is; everything else keeps its original cause.
func wrapRESTError(op string, err error) error {
	if err == nil {
		return nil
	}
	var rerr *discordgo.RESTError
	if errors.As(err, &rerr) && rerr.Response != nil && rerr.Response.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}
