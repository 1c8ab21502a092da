package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/thejerf/suture/v4"

	"studyhub/internal/authz"
	"studyhub/internal/blob"
	"studyhub/internal/config"
	"studyhub/internal/db"
	internalhttp "studyhub/internal/http"
	"studyhub/internal/logging"
	"studyhub/internal/mail"
	"studyhub/internal/operations"
	"studyhub/internal/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Caller: cfg.Logging.Caller})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.Database.URL)
	if err != nil {
		logging.Fatal().Err(err).Msg("db connection failed")
	}
	defer pool.Close()

	if cfg.Database.AutoMigrate {
		if err := db.Migrate(ctx, pool, "up"); err != nil {
			logging.Fatal().Err(err).Msg("migrations failed")
		}
	}

	var limits redis.UniversalClient
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password})
		if err := client.Ping(ctx).Err(); err != nil {
			logging.Fatal().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis connection failed")
		}
		defer client.Close()
		limits = client
	}

	gate, err := authz.NewGate()
	if err != nil {
		logging.Fatal().Err(err).Msg("authorization policy")
	}
	blobs, err := blob.NewStore(cfg.Uploads.Dir, cfg.Uploads.MaxBytes)
	if err != nil {
		logging.Fatal().Err(err).Str("dir", cfg.Uploads.Dir).Msg("upload storage")
	}
	mailer, err := mail.NewSender(cfg.Mail)
	if err != nil {
		logging.Fatal().Err(err).Msg("mail sender")
	}

	runner := tasks.NewRunner(cfg.Tasks)
	svc := operations.NewService(cfg, db.NewStore(pool), gate, runner, blobs, mailer)
	server := internalhttp.NewServer(cfg, svc, limits)
	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           server.Router(),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}

	supervisor := suture.New("studyhub", suture.Spec{
		EventHook: logEvent,
		Timeout:   cfg.Server.ShutdownTimeout,
	})
	supervisor.Add(runner)
	supervisor.Add(internalhttp.NewService(httpServer, cfg.Server.ShutdownTimeout))

	logging.Info().
		Str("addr", cfg.Server.Addr).
		Str("environment", cfg.Server.Environment).
		Bool("redis", limits != nil).
		Msg("studyhub listening")

	if err := supervisor.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("supervisor stopped")
	}
	logging.Info().Msg("shutdown complete")
}

func logEvent(e suture.Event) {
	event := logging.Warn()
	if e.Type() == suture.EventTypeServicePanic {
		event = logging.Error()
	}
	event.Fields(e.Map()).Msg(e.String())
}
