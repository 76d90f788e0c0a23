package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/ombudhq/ombud/internal/api"
	"github.com/ombudhq/ombud/internal/assistant"
	"github.com/ombudhq/ombud/internal/classifier"
	"github.com/ombudhq/ombud/internal/config"
	"github.com/ombudhq/ombud/internal/dispatch"
	"github.com/ombudhq/ombud/internal/events"
	"github.com/ombudhq/ombud/internal/extractor"
	"github.com/ombudhq/ombud/internal/gemini"
	"github.com/ombudhq/ombud/internal/identity"
	"github.com/ombudhq/ombud/internal/mailer"
	"github.com/ombudhq/ombud/internal/session"
	"github.com/ombudhq/ombud/internal/store"
)

func main() {
	godotenv.Load()

	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	slog.Info("ombud starting", "port", cfg.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Gemini client
	if cfg.GeminiAPIKey == "" {
		slog.Error("GEMINI_API_KEY is required")
		os.Exit(1)
	}
	llm := gemini.NewClient(cfg.GeminiAPIKey, cfg.GeminiModel)
	slog.Info("gemini client ready", "model", cfg.GeminiModel)

	asst := assistant.New(llm, slog.Default())
	ext := extractor.New(llm, slog.Default())
	cls := classifier.New(llm, slog.Default())

	// Mail transport
	if cfg.SMTPUsername == "" || cfg.SMTPPassword == "" {
		slog.Warn("SMTP credentials not configured, dispatches will fail at delivery")
	}
	if missing := cfg.UnconfiguredDepartments(); len(missing) > 0 {
		slog.Warn("departments without a mailbox", "departments", missing)
	}
	transport := mailer.NewSMTP(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.MailFrom, slog.Default())
	disp := dispatch.New(cfg.DepartmentEmails, transport, slog.Default())

	// Complaint archive (optional)
	var archive *store.Store
	if cfg.DatabaseURL != "" {
		db, err := store.New(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		archive = db
		slog.Info("database connected")
	} else {
		slog.Warn("DATABASE_URL not set, dispatched complaints are not archived")
	}

	// Event publisher (optional)
	var publisher *events.Publisher
	if cfg.NatsURL != "" {
		pub, err := events.Connect(ctx, cfg.NatsURL, cfg.NatsToken, slog.Default())
		if err != nil {
			slog.Error("failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer pub.Close()
		publisher = pub
	} else {
		slog.Warn("NATS_URL not set, dispatch events are not published")
	}

	// Identity verification (optional)
	var verifier *identity.Verifier
	if cfg.GoogleClientID != "" {
		verifier = identity.NewVerifier(cfg.GoogleClientID, slog.Default())
		slog.Info("identity verification enabled")
	}

	sessions := session.NewManager(asst, ext, cls, disp, archive, publisher, slog.Default())

	srv := api.NewServer(cfg.Port, sessions, cls, disp, verifier, archive, slog.Default())
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	slog.Info("ombud ready", "port", cfg.Port)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	slog.Info("shutting down")
	cancel()
	slog.Info("ombud stopped")
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
