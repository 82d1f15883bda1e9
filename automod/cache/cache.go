// Package cache holds the materialized read index of guild configuration and
// chunked membership. The index is rebuilt wholesale and swapped atomically;
// readers may see a stale snapshot but never a torn one.
package cache

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/xezzz/Harpoon/automod/configstore"
	"github.com/xezzz/Harpoon/discord"
)

type GuildSnapshot struct {
	Config    configstore.GuildConfig
	Members   map[string]discord.Member
	ChunkedAt time.Time
}

type Index struct {
	logger *slog.Logger
	snap   atomic.Pointer[map[string]GuildSnapshot]
}

func NewIndex(logger *slog.Logger) *Index {
	ix := &Index{logger: logger}
	empty := map[string]GuildSnapshot{}
	ix.snap.Store(&empty)
	return ix
}

// Rebuild replaces the whole index with the given snapshot set.
func (ix *Index) Rebuild(snaps map[string]GuildSnapshot) {
	ix.snap.Store(&snaps)
	ix.logger.Info("rebuilt guild cache", "guilds", len(snaps))
}

func (ix *Index) Guild(guildID string) (GuildSnapshot, bool) {
	s, ok := (*ix.snap.Load())[guildID]
	return s, ok
}

func (ix *Index) Member(guildID, userID string) (discord.Member, bool) {
	g, ok := ix.Guild(guildID)
	if !ok {
		return discord.Member{}, false
	}
	m, ok := g.Members[userID]
	return m, ok
}

// IsModerator reports whether the user holds a moderator-grade role in the
// guild. Unknown users are not moderators.
func (ix *Index) IsModerator(guildID, userID string) bool {
	m, ok := ix.Member(guildID, userID)
	return ok && m.Moderator
}

func (ix *Index) GuildCount() int {
	return len(*ix.snap.Load())
}
