package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jonashappcreative/hotelgame/internal/api"
	"github.com/jonashappcreative/hotelgame/internal/auth"
	"github.com/jonashappcreative/hotelgame/internal/config"
	"github.com/jonashappcreative/hotelgame/internal/db"
	"github.com/jonashappcreative/hotelgame/internal/game"
	"github.com/jonashappcreative/hotelgame/internal/notify"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadAPIFromEnv()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	var store game.Store
	var pool *pgxpool.Pool
	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL not set, rooms are kept in memory")
		store = game.NewMemoryStore()
	} else {
		pool, err = db.Connect(ctx, cfg.DatabaseURL, db.PoolSize{MaxConns: cfg.DBMaxConns, MinConns: cfg.DBMinConns})
		if err != nil {
			logger.Error("db connect failed", "err", err)
			os.Exit(1)
		}
		defer pool.Close()
		if cfg.Migrate {
			if err := db.Migrate(ctx, pool); err != nil {
				logger.Error("migrate failed", "err", err)
				os.Exit(1)
			}
		}
		store = game.NewPostgresStore(pool)
	}

	var opts []game.Option
	if cfg.DiscordWebhook != "" {
		n, err := notify.NewDiscord(cfg.DiscordWebhook, logger)
		if err != nil {
			logger.Error("discord notifier init failed", "err", err)
			os.Exit(1)
		}
		opts = append(opts, game.WithNotifier(n))
	}

	authClient := auth.NewSupabaseClient(cfg.SupabaseURL, cfg.SupabaseAnonKey)
	gameSvc := game.NewService(store, logger, opts...)

	server := api.New(logger, authClient, gameSvc)
	if pool != nil {
		go db.ListenRooms(ctx, pool, logger, server.Publish)
	}
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("hotelgame api listening", "addr", cfg.Addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "err", err)
		os.Exit(1)
	}
}
