// Package bootstrap pulls every guild's full membership into the local cache
// before the moderation core is allowed to process events. Chunk fetches fan
// out concurrently, a whole pass is bounded by one timeout, and individual
// failures never abort sibling guilds. The service readiness flag flips only
// once every guild has reached a terminal chunk status and the cache has been
// rebuilt.
package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/xezzz/Harpoon/automod/cache"
	"github.com/xezzz/Harpoon/automod/configstore"
	"github.com/xezzz/Harpoon/discord"
)

type Status int

const (
	StatusUnchunked Status = iota
	StatusChunking
	StatusChunked
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusUnchunked:
		return "unchunked"
	case StatusChunking:
		return "chunking"
	case StatusChunked:
		return "chunked"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

type Bootstrapper struct {
	logger *slog.Logger
	client discord.Client
	config configstore.Store
	cache  *cache.Index

	// PassTimeout bounds one whole chunking pass.
	PassTimeout time.Duration
	// PassBackoff is slept between passes while guilds remain unchunked.
	PassBackoff time.Duration
	// ChunkLimiter throttles chunk requests; nil means unthrottled.
	ChunkLimiter *rate.Limiter

	mu        sync.Mutex
	status    map[string]Status
	members   map[string][]discord.Member
	chunkedAt map[string]time.Time
	pending   map[string]struct{}

	ready atomic.Bool
}

func New(logger *slog.Logger, client discord.Client, config configstore.Store, idx *cache.Index) *Bootstrapper {
	return &Bootstrapper{
		logger:      logger,
		client:      client,
		config:      config,
		cache:       idx,
		PassTimeout: 600 * time.Second,
		PassBackoff: 5 * time.Second,
		status:      make(map[string]Status),
		members:     make(map[string][]discord.Member),
		chunkedAt:   make(map[string]time.Time),
		pending:     make(map[string]struct{}),
	}
}

// Ready reports whether event processing is unlocked.
func (b *Bootstrapper) Ready() bool {
	return b.ready.Load()
}

// AddGuild registers a newly observed guild as unchunked.
func (b *Bootstrapper) AddGuild(guildID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.status[guildID]; !ok {
		b.status[guildID] = StatusUnchunked
	}
}

// RemoveGuild drops all state for a guild the bot has left.
func (b *Bootstrapper) RemoveGuild(ctx context.Context, guildID string) {
	b.mu.Lock()
	delete(b.status, guildID)
	delete(b.members, guildID)
	delete(b.chunkedAt, guildID)
	b.mu.Unlock()
	b.rebuildCache(ctx)
}

// Status returns the guild's current chunk status.
func (b *Bootstrapper) Status(guildID string) (Status, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.status[guildID]
	return s, ok
}

// Run executes chunking passes until every known guild has reached a terminal
// status, then returns. It only errors when ctx is cancelled.
func (b *Bootstrapper) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		b.runPass(ctx)
		if !b.hasUnchunked() {
			return nil
		}
		b.logger.Info("guilds remain unchunked, scheduling another pass", "backoff", b.PassBackoff)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(b.PassBackoff):
		}
	}
}

// ChunkGuild chunks a single guild outside a full pass, eg when a guild joins
// after startup.
func (b *Bootstrapper) ChunkGuild(ctx context.Context, guildID string) {
	b.AddGuild(guildID)
	b.mu.Lock()
	b.status[guildID] = StatusChunking
	b.pending[guildID] = struct{}{}
	b.mu.Unlock()
	b.chunkOne(ctx, guildID)
	b.selfHealConfigs(ctx)
	b.rebuildCache(ctx)
}

func (b *Bootstrapper) runPass(ctx context.Context) {
	start := time.Now()

	b.mu.Lock()
	var batch []string
	for id, st := range b.status {
		if st != StatusChunked {
			b.status[id] = StatusChunking
			b.pending[id] = struct{}{}
			batch = append(batch, id)
		}
	}
	b.mu.Unlock()

	if len(batch) > 0 {
		pctx, cancel := context.WithTimeout(ctx, b.PassTimeout)
		var eg errgroup.Group
		for _, id := range batch {
			id := id
			eg.Go(func() error {
				b.chunkOne(pctx, id)
				return nil
			})
		}
		_ = eg.Wait()
		if errors.Is(pctx.Err(), context.DeadlineExceeded) {
			b.logger.Warn("chunking pass hit global timeout", "guilds", len(batch))
			passTimeoutCount.Inc()
		}
		cancel()
	}

	b.selfHealConfigs(ctx)
	b.rebuildCache(ctx)
	b.maybeUnlock()

	passDuration.Observe(time.Since(start).Seconds())
	b.logger.Info("finished chunking pass", "guilds", len(batch), "took", time.Since(start))
}

// chunkOne fetches one guild's membership and records a terminal status. The
// guild is released from the pending set on every exit path.
func (b *Bootstrapper) chunkOne(ctx context.Context, guildID string) {
	var (
		members []discord.Member
		err     error
	)
	defer func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		switch {
		case err == nil:
			b.members[guildID] = members
			b.chunkedAt[guildID] = time.Now()
			b.status[guildID] = StatusChunked
			guildsChunked.Inc()
		case ctx.Err() != nil:
			// cancelled or timed out: eligible again on the next pass
			b.status[guildID] = StatusUnchunked
		default:
			b.status[guildID] = StatusFailed
			chunkFailCount.Inc()
		}
		delete(b.pending, guildID)
	}()

	if b.ChunkLimiter != nil {
		if err = b.ChunkLimiter.Wait(ctx); err != nil {
			return
		}
	}
	members, err = b.client.ChunkMembers(ctx, guildID)
	if err != nil {
		b.logger.Warn("failed to chunk guild", "guild", guildID, "err", err)
	}
}

// selfHealConfigs inserts a default config for any known guild missing one.
func (b *Bootstrapper) selfHealConfigs(ctx context.Context) {
	b.mu.Lock()
	ids := make([]string, 0, len(b.status))
	for id := range b.status {
		ids = append(ids, id)
	}
	b.mu.Unlock()

	for _, id := range ids {
		exists, err := b.config.Exists(ctx, id)
		if err != nil {
			b.logger.Warn("checking guild config", "guild", id, "err", err)
			continue
		}
		if !exists {
			if err := b.config.Insert(ctx, configstore.DefaultConfig(id)); err != nil {
				b.logger.Warn("inserting default guild config", "guild", id, "err", err)
				continue
			}
			b.logger.Info("filled up missing guild config", "guild", id)
		}
	}
}

func (b *Bootstrapper) rebuildCache(ctx context.Context) {
	b.mu.Lock()
	type chunked struct {
		id      string
		members []discord.Member
		at      time.Time
	}
	var done []chunked
	for id, st := range b.status {
		if st == StatusChunked {
			done = append(done, chunked{id: id, members: b.members[id], at: b.chunkedAt[id]})
		}
	}
	b.mu.Unlock()

	snaps := make(map[string]cache.GuildSnapshot, len(done))
	for _, g := range done {
		cfg, err := b.config.GetConfig(ctx, g.id)
		if err != nil {
			b.logger.Warn("reading guild config for cache rebuild", "guild", g.id, "err", err)
			cfg = configstore.DefaultConfig(g.id)
		}
		members := make(map[string]discord.Member, len(g.members))
		for _, m := range g.members {
			members[m.UserID] = m
		}
		snaps[g.id] = cache.GuildSnapshot{
			Config:    *cfg,
			Members:   members,
			ChunkedAt: g.at,
		}
	}
	b.cache.Rebuild(snaps)
}

// maybeUnlock flips readiness once no guild remains unchunked.
func (b *Bootstrapper) maybeUnlock() {
	b.mu.Lock()
	for _, st := range b.status {
		if st == StatusUnchunked || st == StatusChunking {
			b.mu.Unlock()
			return
		}
	}
	b.mu.Unlock()
	if b.ready.CompareAndSwap(false, true) {
		b.logger.Info("all guilds chunked, moderation core unlocked")
	}
}

func (b *Bootstrapper) hasUnchunked() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, st := range b.status {
		if st == StatusUnchunked {
			return true
		}
	}
	return false
}
