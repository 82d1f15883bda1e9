package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/carlmjohnson/versioninfo"
	_ "github.com/joho/godotenv/autoload"
	cli "github.com/urfave/cli/v2"
)

func main() {
	if err := run(os.Args); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(-1)
	}
}

func run(args []string) error {

	app := cli.App{
		Name:    "harpoon",
		Usage:   "guild moderation daemon",
		Version: versioninfo.Short(),
	}

	app.Commands = []*cli.Command{
		runCmd,
	}

	return app.Run(args)
}

var runCmd = &cli.Command{
	Name:  "run",
	Usage: "run the service",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "discord-token",
			Usage:    "bot token for the discord gateway",
			Required: true,
			EnvVars:  []string{"DISCORD_TOKEN"},
		},
		&cli.StringFlag{
			Name:    "database-url",
			Value:   "sqlite://data/harpoon/harpoon.db",
			EnvVars: []string{"DATABASE_URL"},
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "optional redis for the shared ignore registry",
			EnvVars: []string{"REDIS_URL"},
		},
		&cli.StringFlag{
			Name:    "metrics-listen",
			Usage:   "IP or address, and port, to listen on for metrics APIs",
			Value:   ":3989",
			EnvVars: []string{"HARPOON_METRICS_LISTEN"},
		},
		&cli.DurationFlag{
			Name:    "chunk-pass-timeout",
			Usage:   "global timeout for one guild chunking pass",
			Value:   600 * time.Second,
			EnvVars: []string{"HARPOON_CHUNK_PASS_TIMEOUT"},
		},
		&cli.IntFlag{
			Name:    "chunk-rate-limit",
			Usage:   "max membership chunk requests per second",
			Value:   8,
			EnvVars: []string{"HARPOON_CHUNK_RATE_LIMIT"},
		},
	},
	Action: func(cctx *cli.Context) error {
		logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
		slog.SetDefault(logger)

		ctx, stop := signal.NotifyContext(cctx.Context, syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		srv, err := NewServer(Config{
			DiscordToken:     cctx.String("discord-token"),
			DatabaseURL:      cctx.String("database-url"),
			RedisURL:         cctx.String("redis-url"),
			MetricsListen:    cctx.String("metrics-listen"),
			ChunkPassTimeout: cctx.Duration("chunk-pass-timeout"),
			ChunkRateLimit:   cctx.Int("chunk-rate-limit"),
			Logger:           logger,
		})
		if err != nil {
			return err
		}
		return srv.Run(ctx)
	},
}
