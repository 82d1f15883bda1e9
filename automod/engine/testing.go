package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/xezzz/Harpoon/automod/actionlog"
	"github.com/xezzz/Harpoon/automod/cache"
	"github.com/xezzz/Harpoon/automod/configstore"
	"github.com/xezzz/Harpoon/automod/ignore"
	"github.com/xezzz/Harpoon/automod/spam"
	"github.com/xezzz/Harpoon/discord"
)

// EngineTestFixture returns an engine wired with in-memory stores, a mock
// transport client, and one cached guild ("g1") containing a normal user
// ("u1") and a moderator ("mod1"). Intentionally exported, for use in other
// packages.
func EngineTestFixture() (*Engine, *discord.MockClient) {
	logger := slog.Default()
	client := &discord.MockClient{
		BotID:   "bot1",
		Invites: map[string]string{},
	}

	cfgs := configstore.NewMemStore()
	_ = cfgs.Insert(context.Background(), configstore.DefaultConfig("g1"))

	idx := cache.NewIndex(logger)
	cfg, _ := cfgs.GetConfig(context.Background(), "g1")
	idx.Rebuild(map[string]cache.GuildSnapshot{
		"g1": {
			Config: *cfg,
			Members: map[string]discord.Member{
				"u1":   {UserID: "u1", Username: "someone"},
				"mod1": {UserID: "mod1", Username: "mod", Moderator: true},
			},
			ChunkedAt: time.Now(),
		},
	})

	actions := actionlog.NewMemStore()
	eng := &Engine{
		Logger:    logger,
		Client:    client,
		Config:    cfgs,
		Ignore:    ignore.NewMemRegistry(time.Minute),
		Spam:      spam.NewChecker(),
		Cache:     idx,
		Guard:     NewHandlingGuard(),
		Validator: NewActionValidator(logger, client, actions, idx),
	}
	return eng, client
}

// TestMessage builds a message event in the fixture guild.
func TestMessage(msgID, authorID, content string) *Message {
	return &Message{
		Ref: discord.MessageRef{
			GuildID:   "g1",
			ChannelID: "c1",
			MessageID: msgID,
		},
		AuthorID: authorID,
		Content:  content,
	}
}

// ExtractEffects exposes a context's collected effects. Intended for test
// code, *not* for rules.
func ExtractEffects(c *MessageContext) Effects {
	return *c.effects
}
