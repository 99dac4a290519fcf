package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/vidfetch/vidfetch/internal/catalog"
	"github.com/vidfetch/vidfetch/internal/channel"
	"github.com/vidfetch/vidfetch/internal/channel/telegram"
	"github.com/vidfetch/vidfetch/internal/config"
	"github.com/vidfetch/vidfetch/internal/delivery"
	"github.com/vidfetch/vidfetch/internal/download"
	"github.com/vidfetch/vidfetch/internal/janitor"
	"github.com/vidfetch/vidfetch/internal/logger"
	"github.com/vidfetch/vidfetch/internal/pipeline"
	"github.com/vidfetch/vidfetch/internal/resolver"
	"github.com/vidfetch/vidfetch/internal/server"
)

func newServeCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the bot",
		Run: func(cmd *cobra.Command, args []string) {
			runServe(configPath)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to config.toml")
	return cmd
}

func runServe(configPath string) {
	fx.New(
		fx.Provide(
			func() (config.Config, error) { return provideConfig(configPath) },
			provideLogger,
			provideResolver,
			provideAdapter,
			provideBuilder,
			provideFetcher,
			provideEngine,
			providePipeline,
			provideServer,
			provideJanitor,
		),
		fx.Invoke(
			startJanitor,
			startTransport,
		),
		fx.WithLogger(func(log *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: log.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func provideConfig(path string) (config.Config, error) {
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideResolver(log *slog.Logger, cfg config.Config) resolver.Resolver {
	return resolver.NewYTDLP(log, cfg.Download.YTDLPBinary)
}

func provideAdapter(log *slog.Logger, cfg config.Config) (*telegram.Adapter, error) {
	return telegram.New(log, cfg.Telegram.BotToken)
}

func provideBuilder(log *slog.Logger, r resolver.Resolver, cfg config.Config) *catalog.Builder {
	timeout := time.Duration(cfg.Download.ResolveTimeoutSeconds) * time.Second
	return catalog.NewBuilder(log, r, channel.MaxAttachmentBytes, cfg.Download.AdmitUnknownSize, timeout)
}

func provideFetcher(log *slog.Logger, r resolver.Resolver, cfg config.Config) *download.Fetcher {
	timeout := time.Duration(cfg.Download.DownloadTimeoutSeconds) * time.Second
	return download.NewFetcher(log, r, cfg.Download.WorkDir, timeout)
}

func provideEngine(log *slog.Logger, adapter *telegram.Adapter) *delivery.Engine {
	return delivery.NewEngine(log, adapter, channel.MaxAttachmentBytes)
}

func providePipeline(log *slog.Logger, adapter *telegram.Adapter, builder *catalog.Builder, fetcher *download.Fetcher, engine *delivery.Engine) *pipeline.Pipeline {
	return pipeline.New(log, adapter, builder, fetcher, engine)
}

func provideServer(log *slog.Logger, cfg config.Config, adapter *telegram.Adapter, p *pipeline.Pipeline) *server.Server {
	dispatch := func(ctx context.Context, update tgbotapi.Update) {
		adapter.HandleUpdate(ctx, update, p)
	}
	return server.NewServer(log, cfg.Server.Addr, cfg.Telegram.WebhookSecret, dispatch)
}

func provideJanitor(log *slog.Logger, cfg config.Config) *janitor.Janitor {
	interval := time.Duration(cfg.Janitor.SweepIntervalMinutes) * time.Minute
	maxAge := time.Duration(cfg.Janitor.MaxFileAgeMinutes) * time.Minute
	return janitor.New(log, cfg.Download.WorkDir, interval, maxAge)
}

func startJanitor(lc fx.Lifecycle, j *janitor.Janitor) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			return j.Start()
		},
		OnStop: func(_ context.Context) error {
			j.Stop()
			return nil
		},
	})
}

func startTransport(lc fx.Lifecycle, log *slog.Logger, cfg config.Config, adapter *telegram.Adapter, p *pipeline.Pipeline, srv *server.Server) {
	switch cfg.Telegram.Mode {
	case "webhook":
		lc.Append(fx.Hook{
			OnStart: func(_ context.Context) error {
				if err := adapter.RegisterWebhook(cfg.Telegram.WebhookURL, cfg.Telegram.WebhookSecret); err != nil {
					return err
				}
				go func() {
					if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						log.Error("server stopped", slog.Any("error", err))
					}
				}()
				return nil
			},
			OnStop: func(ctx context.Context) error {
				if err := adapter.DeregisterWebhook(); err != nil {
					log.Warn("deregister webhook failed", slog.Any("error", err))
				}
				return srv.Shutdown(ctx)
			},
		})
	default:
		pollCtx, cancel := context.WithCancel(context.Background())
		lc.Append(fx.Hook{
			OnStart: func(_ context.Context) error {
				go adapter.Poll(pollCtx, cfg.Telegram.PollTimeoutSeconds, p)
				return nil
			},
			OnStop: func(_ context.Context) error {
				cancel()
				return nil
			},
		})
	}
}
