package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// RoomChannel carries "code:version" payloads for rooms changed outside the
// API process.
const RoomChannel = "hotelgame_rooms"

// RoomNotifier publishes room changes through pg_notify so API processes
// can refresh their websocket subscribers.
type RoomNotifier struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

func NewRoomNotifier(pool *pgxpool.Pool, logger *slog.Logger) *RoomNotifier {
	return &RoomNotifier{pool: pool, log: logger}
}

func (n *RoomNotifier) Publish(code string, version int64) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := n.pool.Exec(ctx, `SELECT pg_notify($1, $2)`, RoomChannel, roomPayload(code, version)); err != nil {
		n.log.Warn("room notify failed", "room", code, "version", version, "err", err)
	}
}

// ListenRooms forwards room notifications to publish until ctx is done,
// reconnecting after connection errors.
func ListenRooms(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger, publish func(code string, version int64)) {
	for ctx.Err() == nil {
		err := listenOnce(ctx, pool, publish, logger)
		if err == nil || errors.Is(err, context.Canceled) || ctx.Err() != nil {
			return
		}
		logger.Warn("room listener dropped", "err", err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(2 * time.Second):
		}
	}
}

func listenOnce(ctx context.Context, pool *pgxpool.Pool, publish func(string, int64), logger *slog.Logger) error {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listener conn: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+RoomChannel); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	for {
		note, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		code, version, ok := parseRoomPayload(note.Payload)
		if !ok {
			logger.Warn("bad room notification", "payload", note.Payload)
			continue
		}
		publish(code, version)
	}
}

func roomPayload(code string, version int64) string {
	return code + ":" + strconv.FormatInt(version, 10)
}

func parseRoomPayload(payload string) (string, int64, bool) {
	code, raw, ok := strings.Cut(payload, ":")
	if !ok || code == "" {
		return "", 0, false
	}
	version, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || version < 0 {
		return "", 0, false
	}
	return code, version, true
}
