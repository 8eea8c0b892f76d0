// Command relaybot is the main entrypoint for the video relay bot.
// It:
//   - Loads configuration and initializes structured logging.
//   - Connects to Postgres and runs idempotent migrations.
//   - Starts the Telegram update poller: allow-list gating, settings menus,
//     broadcast fan-outs, and video relays to Telegram or Hydrax.
//   - Exposes a minimal HTTP server with /healthz, /readyz, /status, and /metrics.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/valtero/relaybot/access"
	"github.com/valtero/relaybot/bot"
	"github.com/valtero/relaybot/broadcast"
	"github.com/valtero/relaybot/config"
	"github.com/valtero/relaybot/convo"
	"github.com/valtero/relaybot/db"
	"github.com/valtero/relaybot/hydraxapi"
	"github.com/valtero/relaybot/server"
	"github.com/valtero/relaybot/settings"
	"github.com/valtero/relaybot/telemetry"
	"github.com/valtero/relaybot/upload"
)

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load()

	// Configure logging (level + format). Defaults: level=info, format=text.
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
		// keep default
	default:
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	format := strings.ToLower(os.Getenv("LOG_FORMAT")) // text | json
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	default:
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
	slog.Info("logger initialized", slog.String("level", lvl.String()))

	// Config
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}
	if err := cfg.ValidateBotReady(); err != nil {
		slog.Error("config incomplete", slog.Any("err", err))
		os.Exit(1)
	}

	// Metrics / telemetry init
	telemetry.Init()

	// Initialize OpenTelemetry tracing (optional; requires OTEL_EXPORTER_OTLP_ENDPOINT)
	shutdownTracing, err := telemetry.InitTracing("relaybot", "1.0.0")
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdownTracing()

	// DB
	database, err := db.Connect()
	if err != nil {
		slog.Error("failed to open db", slog.Any("err", err))
		os.Exit(1)
	}
	defer func() {
		if err := database.Close(); err != nil {
			slog.Error("failed to close database", slog.Any("err", err))
		}
	}()

	// Run database migrations: versioned migrations first, embedded SQL as fallback
	// for deployments that predate the schema_migrations table.
	slog.Info("running database migrations", slog.String("component", "db_migrate"))
	if err := db.RunMigrations(database); err != nil {
		slog.Warn("versioned migrations failed, attempting fallback to legacy embedded SQL",
			slog.Any("err", err),
			slog.String("component", "db_migrate"))
		if err := db.Migrate(context.Background(), database); err != nil {
			slog.Error("failed to migrate db (both versioned and embedded SQL failed)", slog.Any("err", err))
			os.Exit(1)
		}
		slog.Info("legacy embedded SQL migration completed", slog.String("component", "db_migrate"))
	} else {
		slog.Info("versioned migrations completed", slog.String("component", "db_migrate"))
	}

	// Root context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Liveness stamp for /readyz.
	go db.StartHeartbeat(ctx, database, "bot_heartbeat", 30*time.Second)

	// Telegram transport
	transport, err := bot.NewTelegram(cfg.BotToken)
	if err != nil {
		slog.Error("telegram init failed", slog.Any("err", err))
		os.Exit(1)
	}

	acl := &access.List{DB: database, OwnerID: cfg.OwnerID}
	if n, err := acl.Count(ctx); err == nil {
		telemetry.SetAuthorizedUsers(n)
	}

	b := &bot.Bot{
		Transport: transport,
		Access:    acl,
		Settings:  &settings.Store{DB: database, OwnerID: cfg.OwnerID, FallbackCredential: cfg.HydraxAPIID},
		Convo:     convo.NewManager(),
		Broadcast: &broadcast.Engine{
			Sender:        bot.SenderAdapter{Transport: transport},
			Delay:         cfg.BroadcastDelay,
			ProgressEvery: cfg.BroadcastProgressEvery,
		},
		Uploads: &upload.Dispatcher{
			Inline:   transport,
			External: &hydraxapi.Client{BaseURL: cfg.HydraxBaseURL},
		},
		Events:  &bot.DBEventLog{DB: database},
		Status:  &bot.DBStatusStore{DB: database},
		OwnerID: cfg.OwnerID,
		DataDir: cfg.DataDir,
	}

	// Ops HTTP server
	httpDone := make(chan struct{})
	go func() {
		defer close(httpDone)
		if err := server.Start(ctx, cfg.HTTPAddr, server.NewMux(database)); err != nil {
			slog.Error("http server failed", slog.Any("err", err))
			stop()
		}
	}()

	// Update poller blocks until shutdown.
	if err := transport.Run(ctx, b); err != nil && err != context.Canceled {
		slog.Error("update poller failed", slog.Any("err", err))
	}

	// Drain in-flight broadcasts and relays, then wait for the HTTP server.
	b.Wait()
	<-httpDone
	slog.Info("shutdown complete")
}
