// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// DefaultDotenvFile is read, when present, before parsing the environment
const DefaultDotenvFile = ".env"

// Directory configures the lobby directory server
type Directory struct {
	Host string `env:"LOBBYNET_DIRECTORY_HOST"`
	Port int    `env:"LOBBYNET_DIRECTORY_PORT" envDefault:"8080"`

	StorageType       string `env:"LOBBYNET_STORAGE_TYPE" envDefault:"memory"`
	RedisURL          string `env:"LOBBYNET_REDIS_URL"`
	RedisPoolSize     int    `env:"LOBBYNET_REDIS_POOL_SIZE" envDefault:"10"`
	RedisMinIdleConns int    `env:"LOBBYNET_REDIS_MIN_IDLE_CONNS" envDefault:"2"`

	SessionTTL          time.Duration `env:"LOBBYNET_SESSION_TTL" envDefault:"30s"`
	MaxCapacity         int           `env:"LOBBYNET_MAX_CAPACITY" envDefault:"16"`
	AuthSessionDuration time.Duration `env:"LOBBYNET_AUTH_SESSION_DURATION" envDefault:"24h"`
	JanitorInterval     time.Duration `env:"LOBBYNET_JANITOR_INTERVAL" envDefault:"1m"`

	LogLevel     string `env:"LOBBYNET_LOG_LEVEL" envDefault:"info"`
	OTelEndpoint string `env:"LOBBYNET_OTEL_ENDPOINT"`
}

// Validate checks cross-field requirements
func (d Directory) Validate() error {
	if d.StorageType == "redis" && d.RedisURL == "" {
		return errors.New("LOBBYNET_REDIS_URL required when LOBBYNET_STORAGE_TYPE=redis")
	}
	if d.SessionTTL <= 0 {
		return errors.New("LOBBYNET_SESSION_TTL must be positive")
	}
	return nil
}

// Node configures a lobbynet peer
type Node struct {
	DirectoryURL string `env:"LOBBYNET_DIRECTORY_URL" envDefault:"http://localhost:8080"`
	Token        string `env:"LOBBYNET_TOKEN"`
	TokenFile    string `env:"LOBBYNET_TOKEN_FILE"`
	DisplayName  string `env:"LOBBYNET_DISPLAY_NAME"`

	// ListenAddr is where a hosting node accepts peers
	ListenAddr string `env:"LOBBYNET_LISTEN_ADDR" envDefault:":7777"`
	// AdvertiseAddr is published to the directory; defaults to ListenAddr
	AdvertiseAddr string `env:"LOBBYNET_ADVERTISE_ADDR"`

	Capacity          int           `env:"LOBBYNET_CAPACITY" envDefault:"4"`
	Phase             string        `env:"LOBBYNET_PHASE" envDefault:"game"`
	HeartbeatInterval time.Duration `env:"LOBBYNET_HEARTBEAT_INTERVAL" envDefault:"15s"`
	PollInterval      time.Duration `env:"LOBBYNET_POLL_INTERVAL" envDefault:"3s"`
	TickInterval      time.Duration `env:"LOBBYNET_TICK_INTERVAL" envDefault:"100ms"`
	CallTimeout       time.Duration `env:"LOBBYNET_CALL_TIMEOUT" envDefault:"10s"`

	LogLevel     string `env:"LOBBYNET_LOG_LEVEL" envDefault:"warn"`
	OTelEndpoint string `env:"LOBBYNET_OTEL_ENDPOINT"`
}

// Advertise returns the address joiners should dial
func (n Node) Advertise() string {
	if n.AdvertiseAddr != "" {
		return n.AdvertiseAddr
	}
	return n.ListenAddr
}

// Load reads dotenv files that exist, then parses the environment into target
// Variables already set in the environment win over dotenv values.
func Load(target any, dotenvFiles ...string) error {
	if len(dotenvFiles) == 0 {
		dotenvFiles = []string{DefaultDotenvFile}
	}
	for _, file := range dotenvFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", file, err)
		}
	}

	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// LoadDirectory loads and validates directory server configuration
func LoadDirectory(dotenvFiles ...string) (Directory, error) {
	var cfg Directory
	if err := Load(&cfg, dotenvFiles...); err != nil {
		return Directory{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Directory{}, err
	}
	return cfg, nil
}

// LoadNode loads node configuration
func LoadNode(dotenvFiles ...string) (Node, error) {
	var cfg Node
	if err := Load(&cfg, dotenvFiles...); err != nil {
		return Node{}, err
	}
	return cfg, nil
}

// ParseLevel maps a level name to a slog.Level, defaulting to info
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
