package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/morioka22/ncb-tts-r2/pkg/logging"
	"github.com/morioka22/ncb-tts-r2/pkg/ncb"
	"github.com/morioka22/ncb-tts-r2/pkg/runner"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the service config file")
	flag.Parse()

	cfg, err := ncb.LoadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := logging.InitLogger(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat)

	app, err := ncb.NewApp(cfg, logger)
	if err != nil {
		logger.Error("failed to build app", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	lifecycle := runner.NewLifecycleRunner(app, runner.Hooks{
		OnStart: func() {
			if err := app.Start(ctx); err != nil {
				logger.Error("failed to start app", slog.String("error", err.Error()))
				stop()
			}
		},
		OnStop: app.Stop,
	}, app.DrainTimeout())

	if err := lifecycle.Run(ctx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
