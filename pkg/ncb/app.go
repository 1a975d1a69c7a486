package ncb

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"

	"github.com/morioka22/ncb-tts-r2/pkg/configstore"
	"github.com/morioka22/ncb-tts-r2/pkg/configutil"
	"github.com/morioka22/ncb-tts-r2/pkg/gateway"
	"github.com/morioka22/ncb-tts-r2/pkg/gcpauth"
	"github.com/morioka22/ncb-tts-r2/pkg/logging"
	"github.com/morioka22/ncb-tts-r2/pkg/metrics"
	"github.com/morioka22/ncb-tts-r2/pkg/narrate"
	"github.com/morioka22/ncb-tts-r2/pkg/playback"
	"github.com/morioka22/ncb-tts-r2/pkg/providers/gcp"
	"github.com/morioka22/ncb-tts-r2/pkg/providers/voicevox"
	"github.com/morioka22/ncb-tts-r2/pkg/store"
	"github.com/morioka22/ncb-tts-r2/pkg/synth"
)

// App owns every service component and their start/stop order.
type App struct {
	cfg    Config
	logger *slog.Logger

	nc     *nats.Conn
	rdb    *redis.Client
	orch   *narrate.Orchestrator
	natsGw *gateway.NATSSource
	wsGw   *gateway.WSSource
	swp    *store.Sweeper

	cancel context.CancelFunc
}

func NewApp(cfg Config, logger *slog.Logger) (*App, error) {
	app := &App{cfg: cfg, logger: logging.NewComponentLogger(logger, "app")}

	nc, err := nats.Connect(cfg.Bus.URL, nats.Name("ncb-tts"))
	if err != nil {
		return nil, fmt.Errorf("connect bus: %w", err)
	}
	app.nc = nc

	configs, err := app.buildConfigStore()
	if err != nil {
		app.closeClients()
		return nil, err
	}

	dispatcher, err := app.buildDispatcher(logger)
	if err != nil {
		app.closeClients()
		return nil, err
	}

	artifacts := store.NewArtifactStore(cfg.Artifacts.Dir, cfg.Artifacts.Extension, logger)
	app.swp = store.NewSweeper(artifacts,
		time.Duration(cfg.Artifacts.SweepIntervalMinutes)*time.Minute,
		time.Duration(cfg.Artifacts.RetentionMinutes)*time.Minute,
		logger)

	registry := narrate.NewRegistry()
	connector := playback.NewNATSConnector(nc, logger)
	app.orch = narrate.NewOrchestrator(registry, configs, dispatcher, artifacts, connector, narrate.Options{
		Audio: synth.AudioConfig{
			Encoding:     "mp3",
			SpeakingRate: cfg.Pipeline.SpeakingRate,
			Pitch:        cfg.Pipeline.Pitch,
		},
		QueueSize: cfg.Pipeline.QueueSize,
		Observer:  app.buildObserver(),
		Logger:    logger,
	})

	events := gateway.NewDispatcher(app.orch, registry, logger)
	switch cfg.Gateway.Source {
	case GatewaySourceWebsocket:
		var wsCfg gateway.WSConfig
		if err := configutil.DecodeSettings(cfg.Gateway.Settings, &wsCfg); err != nil {
			app.closeClients()
			return nil, fmt.Errorf("decode gateway settings: %w", err)
		}
		app.wsGw = gateway.NewWSSource(wsCfg, events, logger)
	default:
		app.natsGw = gateway.NewNATSSource(nc, events, logger)
	}

	return app, nil
}

func (a *App) buildConfigStore() (configstore.Store, error) {
	var inner configstore.Store
	switch a.cfg.ConfigStore.Driver {
	case ConfigStoreRedis:
		a.rdb = redis.NewClient(&redis.Options{
			Addr:     a.cfg.ConfigStore.Redis.Addr,
			Password: a.cfg.ConfigStore.Redis.Password,
			DB:       a.cfg.ConfigStore.Redis.DB,
		})
		rs, err := configstore.NewRedisStore(a.rdb)
		if err != nil {
			return nil, fmt.Errorf("redis config store: %w", err)
		}
		inner = rs
	default:
		inner = configstore.NewMemoryStore()
	}
	ttl := time.Duration(a.cfg.ConfigStore.CacheTTLSeconds) * time.Second
	return configstore.NewCachedStore(inner, ttl), nil
}

func (a *App) buildDispatcher(logger *slog.Logger) (*synth.Dispatcher, error) {
	creds, err := gcpauth.LoadCredentials(a.cfg.Credentials.Path)
	if err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}
	tokens := gcpauth.NewTokenSource(creds, a.cfg.Credentials.Scope)

	var cloudCfg gcp.Config
	if err := configutil.DecodeSettings(a.cfg.Providers.Cloud.Settings, &cloudCfg); err != nil {
		return nil, fmt.Errorf("decode cloud provider settings: %w", err)
	}
	var localCfg voicevox.Config
	if err := configutil.DecodeSettings(a.cfg.Providers.Local.Settings, &localCfg); err != nil {
		return nil, fmt.Errorf("decode local provider settings: %w", err)
	}

	cloud := gcp.New(cloudCfg, tokens, logger)
	local := voicevox.New(localCfg, logger)
	return synth.NewDispatcher(cloud, local), nil
}

func (a *App) buildObserver() metrics.Observer {
	if a.cfg.Environment == "development" {
		return metrics.NewJSONLObserver(os.Stdout)
	}
	return metrics.NoopObserver{}
}

// Start launches the gateway source and the artifact sweeper.
func (a *App) Start(ctx context.Context) error {
	ctx, a.cancel = context.WithCancel(ctx)
	go a.swp.Run(ctx)
	if a.wsGw != nil {
		if err := a.wsGw.Start(ctx); err != nil {
			return fmt.Errorf("start websocket gateway: %w", err)
		}
		a.logger.Info("gateway listening", slog.String("source", GatewaySourceWebsocket))
		return nil
	}
	if err := a.natsGw.Start(); err != nil {
		return fmt.Errorf("start bus gateway: %w", err)
	}
	a.logger.Info("gateway listening", slog.String("source", GatewaySourceNATS))
	return nil
}

// Drain finishes in-flight narration. The lifecycle runner bounds it with
// the configured drain timeout.
func (a *App) Drain() error {
	return a.orch.Drain()
}

// Stop tears the app down in reverse start order.
func (a *App) Stop() {
	if a.wsGw != nil {
		_ = a.wsGw.Stop()
	}
	if a.natsGw != nil {
		a.natsGw.Close()
	}
	if a.cancel != nil {
		a.cancel()
	}
	a.closeClients()
}

func (a *App) closeClients() {
	if a.nc != nil {
		a.nc.Close()
	}
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
}

// DrainTimeout is the bound the lifecycle runner applies to Drain.
func (a *App) DrainTimeout() time.Duration {
	return time.Duration(a.cfg.Pipeline.DrainTimeoutSeconds) * time.Second
}
