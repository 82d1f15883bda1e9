package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xezzz/Harpoon/automod/cache"
	"github.com/xezzz/Harpoon/automod/configstore"
	"github.com/xezzz/Harpoon/discord"
)

// scriptClient scripts ChunkMembers per guild and call count; every other
// transport method is unused during bootstrap.
type scriptClient struct {
	mu    sync.Mutex
	calls map[string]int
	chunk func(ctx context.Context, guildID string, call int) ([]discord.Member, error)
}

func newScriptClient(fn func(ctx context.Context, guildID string, call int) ([]discord.Member, error)) *scriptClient {
	return &scriptClient{calls: make(map[string]int), chunk: fn}
}

func (c *scriptClient) ChunkMembers(ctx context.Context, guildID string) ([]discord.Member, error) {
	c.mu.Lock()
	c.calls[guildID]++
	n := c.calls[guildID]
	c.mu.Unlock()
	return c.chunk(ctx, guildID, n)
}

func (c *scriptClient) callCount(guildID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[guildID]
}

func (c *scriptClient) BotUserID() string { return "bot1" }
func (c *scriptClient) DeleteMessage(ctx context.Context, ref discord.MessageRef) error { return nil }
func (c *scriptClient) ResolveInvite(ctx context.Context, code string) (*discord.Invite, error) {
	return nil, discord.ErrNotFound
}
func (c *scriptClient) Timeout(ctx context.Context, guildID, userID string, d time.Duration, reason string) error {
	return nil
}
func (c *scriptClient) Kick(ctx context.Context, guildID, userID, reason string) error { return nil }
func (c *scriptClient) Ban(ctx context.Context, guildID, userID, reason string) error  { return nil }

func newTestBootstrapper(client discord.Client) (*Bootstrapper, *configstore.MemStore, *cache.Index) {
	logger := slog.Default()
	cfgs := configstore.NewMemStore()
	idx := cache.NewIndex(logger)
	b := New(logger, client, cfgs, idx)
	b.PassTimeout = 200 * time.Millisecond
	b.PassBackoff = 10 * time.Millisecond
	return b, cfgs, idx
}

func TestBootstrapHappyPath(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	members := []discord.Member{{UserID: "u1"}, {UserID: "mod1", Moderator: true}}
	client := newScriptClient(func(ctx context.Context, guildID string, call int) ([]discord.Member, error) {
		return members, nil
	})
	b, cfgs, idx := newTestBootstrapper(client)
	b.AddGuild("g1")
	b.AddGuild("g2")

	assert.False(b.Ready())
	require.NoError(t, b.Run(ctx))

	assert.True(b.Ready())
	for _, id := range []string{"g1", "g2"} {
		st, ok := b.Status(id)
		assert.True(ok)
		assert.Equal(StatusChunked, st)
	}

	// missing configs were self-healed
	for _, id := range []string{"g1", "g2"} {
		exists, err := cfgs.Exists(ctx, id)
		assert.NoError(err)
		assert.True(exists)
	}

	// cache rebuilt from membership + config
	assert.Equal(2, idx.GuildCount())
	assert.True(idx.IsModerator("g1", "mod1"))
	m, ok := idx.Member("g2", "u1")
	assert.True(ok)
	assert.Equal("u1", m.UserID)
}

func TestBootstrapFailureIsolation(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	client := newScriptClient(func(ctx context.Context, guildID string, call int) ([]discord.Member, error) {
		if guildID == "bad" {
			return nil, errors.New("missing permissions")
		}
		return []discord.Member{{UserID: "u1"}}, nil
	})
	b, _, idx := newTestBootstrapper(client)
	b.AddGuild("good")
	b.AddGuild("bad")

	require.NoError(t, b.Run(ctx))

	// the failing guild did not abort its sibling, and every guild reached a
	// terminal status
	st, _ := b.Status("good")
	assert.Equal(StatusChunked, st)
	st, _ = b.Status("bad")
	assert.Equal(StatusFailed, st)

	// failed is terminal for the pass, so readiness still flips
	assert.True(b.Ready())

	// only chunked guilds appear in the cache
	assert.Equal(1, idx.GuildCount())
	_, ok := idx.Guild("bad")
	assert.False(ok)
}

func TestBootstrapTimeoutRetriesNextPass(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	// "slow" hangs past the pass timeout on its first attempt, then succeeds
	client := newScriptClient(func(ctx context.Context, guildID string, call int) ([]discord.Member, error) {
		if guildID == "slow" && call == 1 {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return []discord.Member{{UserID: "u1"}}, nil
	})
	b, _, _ := newTestBootstrapper(client)
	b.PassTimeout = 50 * time.Millisecond
	b.AddGuild("fast")
	b.AddGuild("slow")

	require.NoError(t, b.Run(ctx))

	assert.True(b.Ready())
	st, _ := b.Status("slow")
	assert.Equal(StatusChunked, st)
	assert.Equal(2, client.callCount("slow"))
	// the already-completed guild was not re-chunked... it was chunked once in
	// pass one; pass two only retried the slow one
	assert.Equal(1, client.callCount("fast"))
}

func TestBootstrapReadinessOrdering(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	release := make(chan struct{})
	client := newScriptClient(func(ctx context.Context, guildID string, call int) ([]discord.Member, error) {
		<-release
		return []discord.Member{}, nil
	})
	b, _, _ := newTestBootstrapper(client)
	b.AddGuild("g1")

	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	// while the chunk task is pending, the service must stay locked
	time.Sleep(30 * time.Millisecond)
	assert.False(b.Ready())
	st, _ := b.Status("g1")
	assert.Equal(StatusChunking, st)

	close(release)
	require.NoError(t, <-done)
	assert.True(b.Ready())
}

func TestBootstrapRemoveGuild(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	client := newScriptClient(func(ctx context.Context, guildID string, call int) ([]discord.Member, error) {
		return []discord.Member{{UserID: "u1"}}, nil
	})
	b, _, idx := newTestBootstrapper(client)
	b.AddGuild("g1")
	b.AddGuild("g2")
	require.NoError(t, b.Run(ctx))
	assert.Equal(2, idx.GuildCount())

	b.RemoveGuild(ctx, "g2")
	_, ok := b.Status("g2")
	assert.False(ok)
	assert.Equal(1, idx.GuildCount())
}

func TestBootstrapLateJoinChunkGuild(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	client := newScriptClient(func(ctx context.Context, guildID string, call int) ([]discord.Member, error) {
		return []discord.Member{{UserID: "u1"}}, nil
	})
	b, cfgs, idx := newTestBootstrapper(client)
	require.NoError(t, b.Run(ctx))
	assert.True(b.Ready())

	b.ChunkGuild(ctx, "late")
	st, _ := b.Status("late")
	assert.Equal(StatusChunked, st)
	exists, err := cfgs.Exists(ctx, "late")
	assert.NoError(err)
	assert.True(exists)
	_, ok := idx.Guild("late")
	assert.True(ok)
}
