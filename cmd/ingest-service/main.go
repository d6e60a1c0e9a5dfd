package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/pribylovaa/go-news-aggregator/ingest-service/internal/config"
)

// Константы окружения.
const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	app := &cli.Command{
		Name:  "ingest-service",
		Usage: "feed ingestion and moderation pipeline",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "path to config file (overrides CONFIG_PATH env)"},
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "run admin HTTP API, gRPC health and scheduled ingestion",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "auto-migrate", Usage: "apply postgres migrations on start", Value: true},
					&cli.BoolFlag{Name: "no-ingest", Usage: "serve moderation API without scheduled runs"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, log, err := load(c)
					if err != nil {
						return err
					}

					return serve(ctx, cfg, log, serveOptions{
						AutoMigrate: c.Bool("auto-migrate"),
						NoIngest:    c.Bool("no-ingest"),
					})
				},
			},
			{
				Name:  "run",
				Usage: "run a single batch and print its summary as JSON",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "target-new", Usage: "records to create (default from config)"},
					&cli.DurationFlag{Name: "window", Usage: "recency window (default from config)"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, log, err := load(c)
					if err != nil {
						return err
					}

					if v := c.Int("target-new"); v != 0 {
						cfg.Pipeline.TargetNew = v
					}
					if v := c.Duration("window"); v != 0 {
						cfg.Pipeline.Window = v
					}

					sum, err := runOnce(ctx, cfg, log)
					if err != nil {
						return err
					}

					enc := json.NewEncoder(os.Stdout)
					enc.SetIndent("", "  ")

					return enc.Encode(sum)
				},
			},
			{
				Name:  "migrate",
				Usage: "prepare the record store schema",
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, log, err := load(c)
					if err != nil {
						return err
					}

					return migrate(ctx, cfg, log)
				},
			},
		},
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := app.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		cancel()
		os.Exit(1)
	}
}

// load читает конфиг и настраивает логгер. Команда run печатает итог в stdout,
// поэтому её логи уходят в stderr.
func load(c *cli.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, nil, err
	}

	var out io.Writer = os.Stdout
	if c.Name == "run" {
		out = os.Stderr
	}

	log := setupLogger(cfg.Env, out)
	slog.SetDefault(log)

	return cfg, log, nil
}

func setupLogger(env string, w io.Writer) *slog.Logger {
	switch env {
	case envLocal:
		return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case envDev:
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case envProd:
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}))
	default:
		return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
}
