package main

import (
	"flag"
	"os"
	"strconv"
	"strings"
)

// Config holds server settings. Environment variables provide defaults;
// command-line flags override them.
type Config struct {
	Addr     string
	Port     string
	LogLevel string
	LogFile  string

	// Admin endpoints are disabled unless one of these is set.
	AdminPassword     string
	AdminPasswordHash string

	PublicURL      string   // advertised in /join.png
	AllowedOrigins []string // WebSocket Origin allow-list; empty accepts any
	MaxRooms       int
	MaxConnsPerIP  int
	ReplayFrames   int // snapshots kept per room for /admin/rooms/replay
	HistorySize    int // matches listed by /admin/matches
}

// GetEnvDefault returns the environment variable or def when it is unset.
func GetEnvDefault(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v, err := strconv.Atoi(GetEnvDefault(key, ""))
	if err != nil {
		return def
	}
	return v
}

// LoadConfig reads the environment, then parses args as flags on top.
func LoadConfig(args []string) (Config, error) {
	cfg := Config{
		Addr:              GetEnvDefault("ADDR", ""),
		Port:              GetEnvDefault("PORT", "8080"),
		LogLevel:          GetEnvDefault("LOG_LEVEL", "info"),
		LogFile:           GetEnvDefault("LOG_FILE", ""),
		AdminPassword:     GetEnvDefault("ADMIN_PASSWORD", ""),
		AdminPasswordHash: GetEnvDefault("ADMIN_PASSWORD_HASH", ""),
		PublicURL:         GetEnvDefault("PUBLIC_URL", ""),
		MaxRooms:          getEnvInt("MAX_ROOMS", defaultMaxRooms),
		MaxConnsPerIP:     getEnvInt("MAX_CONNS_PER_IP", defaultMaxConnsPerIP),
		ReplayFrames:      getEnvInt("REPLAY_FRAMES", defaultReplayFrames),
		HistorySize:       getEnvInt("HISTORY_SIZE", defaultHistorySize),
	}
	origins := GetEnvDefault("ALLOWED_ORIGINS", "")

	fs := flag.NewFlagSet("arena-server", flag.ContinueOnError)
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "listen host")
	fs.StringVar(&cfg.Port, "port", cfg.Port, "listen port")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	fs.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "also write logs to this file (rotated)")
	fs.StringVar(&cfg.PublicURL, "public-url", cfg.PublicURL, "client URL encoded in /join.png")
	fs.IntVar(&cfg.MaxRooms, "max-rooms", cfg.MaxRooms, "maximum concurrent rooms")
	fs.IntVar(&cfg.MaxConnsPerIP, "max-conns-per-ip", cfg.MaxConnsPerIP, "maximum WebSocket connections per IP")
	fs.IntVar(&cfg.ReplayFrames, "replay-frames", cfg.ReplayFrames, "snapshots kept per room")
	fs.IntVar(&cfg.HistorySize, "history-size", cfg.HistorySize, "matches returned by /admin/matches")
	fs.StringVar(&origins, "allowed-origins", origins, "comma-separated WebSocket origins (empty allows any)")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	cfg.AllowedOrigins = splitList(origins)
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ListenAddr is the host:port the HTTP server binds.
func (c Config) ListenAddr() string {
	return c.Addr + ":" + c.Port
}
