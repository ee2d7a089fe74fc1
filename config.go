package main

import (
	"flag"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
)

// Store backends selectable with -store
const (
	StoreMemory       = "memory"
	StoreNATS         = "nats"
	StoreNATSEmbedded = "nats-embedded"
)

// ServerConfig holds process wiring
type ServerConfig struct {
	Addr          string
	PublicURL     string
	DBPath        string
	Store         string
	NATSURL       string
	NATSDir       string
	LogLevel      string
	RequireTokens bool
	Bots          int
	BotArena      string
	Seed          int64
	ShutdownWait  time.Duration
}

// LoadEnv loads an optional .env file; a missing file is not an error
func LoadEnv(path string) {
	if err := godotenv.Load(path); err != nil && !os.IsNotExist(err) {
		log.Warn("could not load env file", "path", path, "err", err)
	}
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		log.Warn("ignoring non-integer env value", "key", key, "value", v)
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
		log.Warn("ignoring non-boolean env value", "key", key, "value", v)
	}
	return def
}

// ParseServerConfig binds flags on fs, with defaults taken from the environment
func ParseServerConfig(fs *flag.FlagSet, args []string) (ServerConfig, error) {
	var cfg ServerConfig
	fs.StringVar(&cfg.Addr, "addr", envString("ARENA_ADDR", ":8080"), "HTTP listen address")
	fs.StringVar(&cfg.PublicURL, "public-url", envString("ARENA_PUBLIC_URL", "http://localhost:8080"), "Base URL used in arena invite codes")
	fs.StringVar(&cfg.DBPath, "db", envString("ARENA_DB", "arena.db"), "SQLite stats database path")
	fs.StringVar(&cfg.Store, "store", envString("ARENA_STORE", StoreMemory), "Session store: memory, nats or nats-embedded")
	fs.StringVar(&cfg.NATSURL, "nats-url", envString("NATS_URL", "nats://127.0.0.1:4222"), "NATS server URL for -store nats")
	fs.StringVar(&cfg.NATSDir, "nats-dir", envString("NATS_DIR", "nats-data"), "JetStream storage directory for -store nats-embedded")
	fs.StringVar(&cfg.LogLevel, "log-level", envString("LOG_LEVEL", "info"), "Log level: debug, info, warn, error")
	fs.BoolVar(&cfg.RequireTokens, "require-tokens", envBool("ARENA_REQUIRE_TOKENS", true), "Require seat tokens on player actions")
	fs.IntVar(&cfg.Bots, "bots", envInt("ARENA_BOTS", 0), "Number of headless polling bots to run against this server")
	fs.StringVar(&cfg.BotArena, "bot-arena", envString("ARENA_BOT_ARENA", "bots"), "Arena the bots join")
	fs.Int64Var(&cfg.Seed, "seed", int64(envInt("ARENA_SEED", 0)), "Game RNG seed; 0 seeds from the clock")
	fs.DurationVar(&cfg.ShutdownWait, "shutdown-wait", 5*time.Second, "Graceful shutdown timeout")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// setupLogging applies the configured level to the package logger
func setupLogging(level string) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		log.Warn("unknown log level, using info", "level", level)
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
	log.SetReportTimestamp(true)
}
