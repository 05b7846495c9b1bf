package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jonashappcreative/hotelgame/internal/config"
	"github.com/jonashappcreative/hotelgame/internal/db"
	"github.com/jonashappcreative/hotelgame/internal/game"
	"github.com/jonashappcreative/hotelgame/internal/notify"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadWorkerFromEnv()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	pool, err := db.Connect(ctx, cfg.DatabaseURL, db.PoolSize{MaxConns: cfg.DBMaxConns, MinConns: cfg.DBMinConns})
	if err != nil {
		logger.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	opts := []game.Option{game.WithPublisher(db.NewRoomNotifier(pool, logger))}
	if cfg.DiscordWebhook != "" {
		n, err := notify.NewDiscord(cfg.DiscordWebhook, logger)
		if err != nil {
			logger.Error("discord notifier init failed", "err", err)
			os.Exit(1)
		}
		opts = append(opts, game.WithNotifier(n))
	}
	svc := game.NewService(game.NewPostgresStore(pool), logger, opts...)

	if cfg.RunOnce {
		sweep(ctx, logger, pool, svc, cfg)
		logger.Info("worker run-once completed")
		return
	}

	ticker := time.NewTicker(cfg.TickEvery)
	defer ticker.Stop()

	logger.Info("worker started", "tick_every", cfg.TickEvery.String(), "idle_after", cfg.RoomIdleAfter.String(),
		"remind_after", cfg.TurnReminderAfter.String())
	for {
		select {
		case <-ctx.Done():
			logger.Info("worker shutdown")
			return
		case <-ticker.C:
			sweep(ctx, logger, pool, svc, cfg)
		}
	}
}

// sweep runs one maintenance pass; each step logs and carries on when it fails.
func sweep(ctx context.Context, logger *slog.Logger, pool *pgxpool.Pool, svc *game.Service, cfg config.WorkerConfig) {
	expired, err := svc.ExpireIdleRooms(ctx, cfg.RoomIdleAfter)
	if err != nil {
		logger.Error("expire idle rooms failed", "err", err)
	}
	reminded, err := svc.RemindStalledTurns(ctx, cfg.TurnReminderAfter)
	if err != nil {
		logger.Error("turn reminders failed", "err", err)
	}
	pruned, err := db.PruneIdempotencyKeys(ctx, pool, cfg.IdempotencyTTL)
	if err != nil {
		logger.Error("prune idempotency keys failed", "err", err)
	}
	logger.Info("sweep complete", "expired", expired, "reminded", reminded, "pruned_keys", pruned)
}
