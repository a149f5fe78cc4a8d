package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	// Embedded zone data keeps board.timezone usable on hosts without zoneinfo.
	_ "time/tzdata"

	charmLog "github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
)

// RemoteBackend selects the shared remote store.
type RemoteBackend string

// RemoteBackend values.
const (
	RemoteNone     RemoteBackend = "none"
	RemoteRedis    RemoteBackend = "redis"
	RemotePostgres RemoteBackend = "postgres"
)

// Config is the TOML configuration file.
type Config struct {
	Database DatabaseConfig `toml:"database"`
	Board    BoardConfig    `toml:"board"`
	Remote   RemoteConfig   `toml:"remote"`
	Logging  LoggingConfig  `toml:"logging"`
	Server   ServerConfig   `toml:"server"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type BoardConfig struct {
	// Timezone is an IANA name deciding which calendar day is today. Empty
	// means the machine's local zone.
	Timezone      string `toml:"timezone"`
	DefaultPerson string `toml:"default_person"`
}

type RemoteConfig struct {
	Backend  RemoteBackend  `toml:"backend"`
	Timeout  string         `toml:"timeout"`
	Redis    RedisConfig    `toml:"redis"`
	Postgres PostgresConfig `toml:"postgres"`
}

type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	Prefix   string `toml:"prefix"`
}

type PostgresConfig struct {
	DSN string `toml:"dsn"`
}

type LoggingConfig struct {
	Level   string        `toml:"level"`
	DevFile DevFileConfig `toml:"dev_file"`
}

type DevFileConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

type ServerConfig struct {
	Bind        string `toml:"bind"`
	APIEndpoint string `toml:"api_endpoint"`
	MCPEndpoint string `toml:"mcp_endpoint"`
}

// Default returns the configuration used when no file exists.
func Default(dbPath string) Config {
	return Config{
		Database: DatabaseConfig{
			Path: dbPath,
		},
		Remote: RemoteConfig{
			Backend: RemoteNone,
			Timeout: "5s",
			Redis: RedisConfig{
				Prefix: "workboard:",
			},
		},
		Logging: LoggingConfig{
			Level: "info",
			DevFile: DevFileConfig{
				Enabled: true,
			},
		},
		Server: ServerConfig{
			Bind:        "127.0.0.1:8080",
			APIEndpoint: "/api/v1",
			MCPEndpoint: "/mcp",
		},
	}
}

// Load reads path over defaults. A missing or empty file yields defaults.
func Load(path string, defaults Config) (Config, error) {
	cfg := defaults
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if len(content) == 0 {
		return cfg, nil
	}

	if err := toml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode toml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// LoadEnvFiles loads KEY=value files into the process environment. Missing
// files are skipped and variables already set win.
func LoadEnvFiles(paths ...string) error {
	for _, path := range paths {
		path = strings.TrimSpace(path)
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load env file %q: %w", path, err)
		}
	}
	return nil
}

// ApplyEnv overrides remote and board settings from WORKBOARD_* variables.
func (c Config) ApplyEnv(getenv func(string) string) (Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	if v := strings.TrimSpace(getenv("WORKBOARD_REMOTE")); v != "" {
		c.Remote.Backend = RemoteBackend(strings.ToLower(v))
	}
	if v := strings.TrimSpace(getenv("WORKBOARD_REDIS_ADDR")); v != "" {
		c.Remote.Redis.Addr = v
	}
	if v := getenv("WORKBOARD_REDIS_PASSWORD"); v != "" {
		c.Remote.Redis.Password = v
	}
	if v := strings.TrimSpace(getenv("WORKBOARD_REDIS_DB")); v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("parse WORKBOARD_REDIS_DB: %w", err)
		}
		c.Remote.Redis.DB = db
	}
	if v := strings.TrimSpace(getenv("WORKBOARD_POSTGRES_DSN")); v != "" {
		c.Remote.Postgres.DSN = v
	}
	if v := strings.TrimSpace(getenv("WORKBOARD_TIMEZONE")); v != "" {
		c.Board.Timezone = v
	}
	if v := strings.TrimSpace(getenv("WORKBOARD_LOG_LEVEL")); v != "" {
		c.Logging.Level = v
	}
	return c, c.Validate()
}

// Validate checks field values.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Database.Path) == "" {
		return errors.New("database path is required")
	}

	if _, err := c.Location(); err != nil {
		return err
	}

	switch c.Remote.Backend {
	case "", RemoteNone, RemoteRedis, RemotePostgres:
	default:
		return fmt.Errorf("invalid remote.backend: %q", c.Remote.Backend)
	}
	if _, err := c.RemoteTimeout(); err != nil {
		return err
	}
	if c.Remote.Redis.DB < 0 {
		return fmt.Errorf("remote.redis.db must be >= 0")
	}

	if _, err := charmLog.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("invalid logging.level: %q", c.Logging.Level)
	}

	for name, endpoint := range map[string]string{
		"server.api_endpoint": c.Server.APIEndpoint,
		"server.mcp_endpoint": c.Server.MCPEndpoint,
	} {
		if endpoint != "" && !strings.HasPrefix(endpoint, "/") {
			return fmt.Errorf("%s must start with /: %q", name, endpoint)
		}
	}
	return nil
}

// Location returns the board timezone.
func (c Config) Location() (*time.Location, error) {
	name := strings.TrimSpace(c.Board.Timezone)
	if name == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid board.timezone %q: %w", name, err)
	}
	return loc, nil
}

// RemoteTimeout returns the per-call remote timeout. Empty means zero, which
// callers treat as their default.
func (c Config) RemoteTimeout() (time.Duration, error) {
	raw := strings.TrimSpace(c.Remote.Timeout)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid remote.timeout %q: %w", raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("remote.timeout must be >= 0")
	}
	return d, nil
}

// EnsureConfigDir creates the directory holding path.
func EnsureConfigDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
