package main

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/xezzz/Harpoon/automod/actionlog"
	"github.com/xezzz/Harpoon/automod/bootstrap"
	"github.com/xezzz/Harpoon/automod/cache"
	"github.com/xezzz/Harpoon/automod/configstore"
	"github.com/xezzz/Harpoon/automod/engine"
	"github.com/xezzz/Harpoon/automod/ignore"
	"github.com/xezzz/Harpoon/automod/rules"
	"github.com/xezzz/Harpoon/automod/spam"
	"github.com/xezzz/Harpoon/discord"
)

type Config struct {
	DiscordToken     string
	DatabaseURL      string
	RedisURL         string
	MetricsListen    string
	ChunkPassTimeout time.Duration
	ChunkRateLimit   int
	Logger           *slog.Logger
}

type Server struct {
	logger        *slog.Logger
	session       *discord.Session
	engine        *engine.Engine
	bootstrapper  *bootstrap.Bootstrapper
	memIgnore     *ignore.MemRegistry
	metricsListen string

	bootOnce sync.Once
}

func NewServer(config Config) (*Server, error) {
	logger := config.Logger

	db, err := openDatabase(config.DatabaseURL, logger)
	if err != nil {
		return nil, err
	}
	cfgs, err := configstore.NewGormStore(db)
	if err != nil {
		return nil, err
	}
	actions, err := actionlog.NewGormStore(db)
	if err != nil {
		return nil, err
	}

	var reg ignore.Registry
	var memIgnore *ignore.MemRegistry
	if config.RedisURL != "" {
		rreg, err := ignore.NewRedisRegistry(config.RedisURL, 30*time.Second)
		if err != nil {
			return nil, err
		}
		logger.Info("using redis ignore registry")
		reg = rreg
	} else {
		memIgnore = ignore.NewMemRegistry(30 * time.Second)
		reg = memIgnore
	}

	session, err := discord.NewSession(config.DiscordToken, logger)
	if err != nil {
		return nil, err
	}

	idx := cache.NewIndex(logger)
	b := bootstrap.New(logger, session, cfgs, idx)
	if config.ChunkPassTimeout > 0 {
		b.PassTimeout = config.ChunkPassTimeout
	}
	if config.ChunkRateLimit > 0 {
		b.ChunkLimiter = rate.NewLimiter(rate.Limit(config.ChunkRateLimit), config.ChunkRateLimit)
	}

	eng := &engine.Engine{
		Logger:    logger,
		Client:    session,
		Config:    cfgs,
		Ignore:    reg,
		Spam:      spam.NewChecker(),
		Cache:     idx,
		Rules:     rules.DefaultRules(),
		Guard:     engine.NewHandlingGuard(),
		Validator: engine.NewActionValidator(logger, session, actions, idx),
	}

	return &Server{
		logger:        logger,
		session:       session,
		engine:        eng,
		bootstrapper:  b,
		memIgnore:     memIgnore,
		metricsListen: config.MetricsListen,
	}, nil
}

func (s *Server) Run(ctx context.Context) error {
	s.registerHandlers(ctx)

	if s.memIgnore != nil {
		go s.memIgnore.RunSweeper(ctx, 15*time.Second)
	}
	go s.engine.Spam.RunSweeper(ctx, time.Minute, 10*time.Minute)
	go func() {
		if err := s.runMetrics(s.metricsListen); err != nil {
			s.logger.Error("metrics listener failed", "err", err)
		}
	}()

	if err := s.session.Open(); err != nil {
		return err
	}
	defer func() { _ = s.session.Close() }()

	<-ctx.Done()
	s.logger.Info("shutting down")
	return nil
}

func (s *Server) registerHandlers(ctx context.Context) {
	raw := s.session.Raw()

	raw.AddHandler(func(dg *discordgo.Session, r *discordgo.Ready) {
		gatewayEventCount.WithLabelValues("ready").Inc()
		for _, g := range r.Guilds {
			s.bootstrapper.AddGuild(g.ID)
		}
		s.bootOnce.Do(func() {
			go func() {
				if err := s.bootstrapper.Run(ctx); err != nil {
					s.logger.Error("bootstrap aborted", "err", err)
				}
			}()
		})
	})

	raw.AddHandler(func(dg *discordgo.Session, g *discordgo.GuildCreate) {
		gatewayEventCount.WithLabelValues("guild_create").Inc()
		if s.bootstrapper.Ready() {
			// late join: chunk just this guild and fold it into the cache
			go s.bootstrapper.ChunkGuild(ctx, g.ID)
		} else {
			s.bootstrapper.AddGuild(g.ID)
		}
	})

	raw.AddHandler(func(dg *discordgo.Session, g *discordgo.GuildDelete) {
		gatewayEventCount.WithLabelValues("guild_delete").Inc()
		s.bootstrapper.RemoveGuild(ctx, g.ID)
	})

	raw.AddHandler(func(dg *discordgo.Session, m *discordgo.MessageCreate) {
		gatewayEventCount.WithLabelValues("message_create").Inc()
		if m.GuildID == "" || m.Author == nil {
			return
		}
		if !s.bootstrapper.Ready() {
			lockedDropCount.Inc()
			return
		}
		msg := &engine.Message{
			Ref: discord.MessageRef{
				GuildID:   m.GuildID,
				ChannelID: m.ChannelID,
				MessageID: m.ID,
			},
			Content:      m.Content,
			AuthorID:     m.Author.ID,
			AuthorBot:    m.Author.Bot,
			MentionCount: len(m.Mentions),
		}
		if err := s.engine.ProcessMessage(ctx, msg); err != nil {
			s.logger.Warn("processing message", "err", err, "message", m.ID)
		}
	})

	raw.AddHandler(func(dg *discordgo.Session, m *discordgo.MessageDelete) {
		gatewayEventCount.WithLabelValues("message_delete").Inc()
		if m.GuildID == "" {
			return
		}
		ref := discord.MessageRef{
			GuildID:   m.GuildID,
			ChannelID: m.ChannelID,
			MessageID: m.ID,
		}
		if err := s.engine.ProcessMessageDelete(ctx, ref); err != nil {
			s.logger.Warn("processing message delete", "err", err, "message", m.ID)
		}
	})
}

func (s *Server) runMetrics(listen string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(listen, mux)
}
