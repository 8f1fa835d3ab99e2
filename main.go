// Command streambridge bridges a Twitch chat feed into a locally observable,
// replayable event stream. It:
//   - Loads configuration and initializes structured logging.
//   - Opens the persisted settings record (credentials, game target, command
//     mappings) and keeps the chat lifecycle manager in sync with it.
//   - Fans chat entries out to SSE subscribers through a bounded history.
//   - Maps incoming chat commands to game-server trigger payloads.
//   - Exposes an HTTP API with /healthz, /metrics, chat and config endpoints.
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

	"github.com/onnwee/streambridge/broadcast"
	"github.com/onnwee/streambridge/chat"
	"github.com/onnwee/streambridge/commands"
	"github.com/onnwee/streambridge/config"
	"github.com/onnwee/streambridge/server"
	"github.com/onnwee/streambridge/settings"
	"github.com/onnwee/streambridge/telemetry"
	"github.com/onnwee/streambridge/twitchapi"
)

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load(".env")

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

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	telemetry.Init()
	shutdownTracing, err := telemetry.InitTracing("streambridge", "1.0.0")
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdownTracing()

	store, err := settings.Open(cfg.SettingsPath)
	if err != nil {
		slog.Error("failed to open settings", slog.String("path", cfg.SettingsPath), slog.Any("err", err))
		os.Exit(1)
	}

	// Root context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bc := broadcast.New(cfg.HistoryCapacity, cfg.DefaultTransport)
	sink := logTriggerSink{}

	mgr := chat.NewManager(chat.Options{
		Auth:              &twitchapi.AuthClient{BaseURL: cfg.TwitchAuthBaseURL},
		Persist:           storePersister{store: store},
		SafetyMargin:      cfg.TokenSafetyMargin,
		TransportDisabled: !cfg.ChatTransportEnabled,
		OnStatus: func(text string) {
			bc.Append(bc.Normalize(broadcast.RawEntry{
				Username:  "system",
				Message:   text,
				Direction: string(broadcast.DirectionSystem),
			}))
		},
		OnMessage: func(username, text string) {
			bc.Append(bc.Normalize(broadcast.RawEntry{
				Username:  username,
				Message:   text,
				Direction: string(broadcast.DirectionIncoming),
			}))
			snapshot := store.Get()
			if mapping, ok := commands.Match(snapshot.CommandMappings, text); ok {
				sink.Dispatch(commands.BuildTrigger(snapshot.Minecraft, mapping))
			}
		},
	})

	// Every settings save feeds the manager a fresh credential snapshot.
	store.OnUpdate(func(s settings.Settings) {
		mgr.UpdateConfig(ctx, credentialsFrom(s.Twitch))
	})
	if cfg.ChatTransportEnabled {
		go mgr.UpdateConfig(ctx, credentialsFrom(store.Get().Twitch))
		chat.StartRefreshLoop(ctx, mgr, 5*time.Minute, 15*time.Minute)
	} else {
		slog.Info("chat transport disabled by configuration")
	}

	deps := server.Deps{
		Broadcaster:  bc,
		Manager:      mgr,
		Store:        store,
		ProbeTimeout: cfg.ProbeTimeout,
	}
	go func() {
		if err := server.Start(ctx, deps, cfg.HTTPAddr); err != nil {
			slog.Error("http server exited with error", slog.Any("err", err))
		}
	}()
	slog.Info("streambridge started", slog.String("addr", cfg.HTTPAddr))

	<-ctx.Done()
	mgr.Disconnect("")
	slog.Info("shutting down")
}

// credentialsFrom converts the persisted twitch section into an immutable
// credential snapshot for the lifecycle manager.
func credentialsFrom(t settings.TwitchSettings) chat.Credentials {
	return chat.Credentials{
		Username:       t.Username,
		Channel:        t.Channel,
		LegacyToken:    t.OAuthToken,
		AccessToken:    t.AccessToken,
		RefreshToken:   t.RefreshToken,
		ClientID:       t.ClientID,
		ClientSecret:   t.ClientSecret,
		TokenExpiresAt: t.TokenExpiresAt,
	}
}

// storePersister writes refreshed token material back into the settings file.
type storePersister struct {
	store *settings.Store
}

func (p storePersister) PersistTokens(accessToken, refreshToken string, expiresAt time.Time, login string) error {
	_, err := p.store.Update(func(s *settings.Settings) {
		s.Twitch.AccessToken = accessToken
		if refreshToken != "" {
			s.Twitch.RefreshToken = refreshToken
		}
		s.Twitch.TokenExpiresAt = expiresAt.UTC().Format(time.RFC3339)
		if login != "" && s.Twitch.Username == "" {
			s.Twitch.Username = login
		}
	})
	return err
}

// logTriggerSink is the default downstream executor boundary: it only logs
// the constructed payload. Real execution lives outside this service.
type logTriggerSink struct{}

func (logTriggerSink) Dispatch(t commands.Trigger) {
	slog.Info("command trigger constructed",
		slog.String("command", t.Command),
		slog.String("script", t.ScriptToTrigger),
		slog.String("host", t.Host),
	)
}
