package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type APIConfig struct {
	Addr            string
	DatabaseURL     string
	SupabaseURL     string
	SupabaseAnonKey string
	DiscordWebhook  string
	Migrate         bool
	DBMaxConns      int32
	DBMinConns      int32
}

type WorkerConfig struct {
	DatabaseURL       string
	DiscordWebhook    string
	TickEvery         time.Duration
	RoomIdleAfter     time.Duration
	TurnReminderAfter time.Duration
	IdempotencyTTL    time.Duration
	RunOnce           bool
	DBMaxConns        int32
	DBMinConns        int32
}

type CLIConfig struct {
	APIBaseURL string
}

// LoadAPIFromEnv reads the API settings. An empty DATABASE_URL selects the
// in-memory room store.
func LoadAPIFromEnv() (APIConfig, error) {
	addr := os.Getenv("PORT")
	if addr != "" {
		if !strings.HasPrefix(addr, ":") {
			addr = ":" + addr
		}
	} else {
		addr = envDefault("HOTELGAME_API_ADDR", ":8080")
	}

	cfg := APIConfig{
		Addr:            addr,
		DatabaseURL:     strings.TrimSpace(os.Getenv("DATABASE_URL")),
		SupabaseURL:     strings.TrimRight(strings.TrimSpace(os.Getenv("SUPABASE_URL")), "/"),
		SupabaseAnonKey: strings.TrimSpace(os.Getenv("SUPABASE_ANON_KEY")),
		DiscordWebhook:  strings.TrimSpace(os.Getenv("HOTELGAME_DISCORD_WEBHOOK")),
		Migrate:         envBoolDefault("HOTELGAME_MIGRATE", true),
		DBMaxConns:      envInt32Default("HOTELGAME_DB_MAX_CONNS", 20),
		DBMinConns:      envInt32Default("HOTELGAME_DB_MIN_CONNS", 2),
	}
	if cfg.SupabaseURL == "" {
		return cfg, fmt.Errorf("SUPABASE_URL is required")
	}
	if cfg.SupabaseAnonKey == "" {
		return cfg, fmt.Errorf("SUPABASE_ANON_KEY is required")
	}
	return cfg, nil
}

func LoadWorkerFromEnv() (WorkerConfig, error) {
	cfg := WorkerConfig{
		DatabaseURL:       strings.TrimSpace(os.Getenv("DATABASE_URL")),
		DiscordWebhook:    strings.TrimSpace(os.Getenv("HOTELGAME_DISCORD_WEBHOOK")),
		TickEvery:         envDurationDefault("HOTELGAME_WORKER_TICK_EVERY", time.Minute),
		RoomIdleAfter:     envDurationDefault("HOTELGAME_ROOM_IDLE_AFTER", 6*time.Hour),
		TurnReminderAfter: envDurationDefault("HOTELGAME_TURN_REMINDER_AFTER", 10*time.Minute),
		IdempotencyTTL:    envDurationDefault("HOTELGAME_IDEMPOTENCY_TTL", 72*time.Hour),
		RunOnce:           envBoolDefault("HOTELGAME_WORKER_RUN_ONCE", false),
		DBMaxConns:        envInt32Default("HOTELGAME_DB_MAX_CONNS", 4),
		DBMinConns:        envInt32Default("HOTELGAME_DB_MIN_CONNS", 1),
	}
	if cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.TickEvery <= 0 {
		return cfg, fmt.Errorf("HOTELGAME_WORKER_TICK_EVERY must be positive")
	}
	return cfg, nil
}

func LoadCLIFromEnv() CLIConfig {
	return CLIConfig{
		APIBaseURL: strings.TrimRight(envDefault("HG_API_BASE_URL", "http://localhost:8080"), "/"),
	}
}

func envDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envDurationDefault(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envBoolDefault(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envInt32Default(key string, fallback int32) int32 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 32)
	if err != nil || n <= 0 {
		return fallback
	}
	return int32(n)
}
