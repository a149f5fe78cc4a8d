package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default("/tmp/workboard.db")
	if cfg.Database.Path != "/tmp/workboard.db" {
		t.Fatalf("unexpected db path %q", cfg.Database.Path)
	}
	if cfg.Remote.Backend != RemoteNone {
		t.Fatalf("unexpected remote backend %q", cfg.Remote.Backend)
	}
	if cfg.Server.APIEndpoint != "/api/v1" || cfg.Server.MCPEndpoint != "/mcp" {
		t.Fatalf("unexpected server endpoints %#v", cfg.Server)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	timeout, err := cfg.RemoteTimeout()
	if err != nil {
		t.Fatalf("RemoteTimeout() error = %v", err)
	}
	if timeout != 5*time.Second {
		t.Fatalf("unexpected timeout %v", timeout)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	defaults := Default("/tmp/workboard.db")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"), defaults)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.Path != defaults.Database.Path {
		t.Fatalf("expected default db path, got %q", cfg.Database.Path)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[database]
path = "/custom/workboard.db"

[board]
timezone = "Asia/Tokyo"
default_person = "CS"

[remote]
backend = "redis"
timeout = "2s"

[remote.redis]
addr = "localhost:6379"
db = 2

[logging]
level = "debug"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(path, Default("/tmp/default.db"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.Path != "/custom/workboard.db" {
		t.Fatalf("unexpected db path %q", cfg.Database.Path)
	}
	if cfg.Remote.Backend != RemoteRedis || cfg.Remote.Redis.Addr != "localhost:6379" || cfg.Remote.Redis.DB != 2 {
		t.Fatalf("unexpected remote config %#v", cfg.Remote)
	}
	if cfg.Remote.Redis.Prefix != "workboard:" {
		t.Fatalf("expected default prefix kept, got %q", cfg.Remote.Redis.Prefix)
	}
	if cfg.Board.DefaultPerson != "CS" {
		t.Fatalf("unexpected default person %q", cfg.Board.DefaultPerson)
	}
	loc, err := cfg.Location()
	if err != nil {
		t.Fatalf("Location() error = %v", err)
	}
	if loc.String() != "Asia/Tokyo" {
		t.Fatalf("unexpected location %q", loc)
	}
	if timeout, _ := cfg.RemoteTimeout(); timeout != 2*time.Second {
		t.Fatalf("unexpected timeout %v", timeout)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "backend", content: "[remote]\nbackend = \"mongo\"\n"},
		{name: "timeout", content: "[remote]\ntimeout = \"soon\"\n"},
		{name: "timezone", content: "[board]\ntimezone = \"Mars/Olympus\"\n"},
		{name: "level", content: "[logging]\nlevel = \"loud\"\n"},
		{name: "endpoint", content: "[server]\napi_endpoint = \"api\"\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(tc.content), 0o644); err != nil {
				t.Fatalf("WriteFile() error = %v", err)
			}
			if _, err := Load(path, Default("/tmp/default.db")); err == nil {
				t.Fatalf("expected error for invalid %s", tc.name)
			}
		})
	}
}

func TestApplyEnvOverridesRemote(t *testing.T) {
	env := map[string]string{
		"WORKBOARD_REMOTE":       "Postgres",
		"WORKBOARD_POSTGRES_DSN": "postgres://localhost/workboard",
		"WORKBOARD_REDIS_DB":     "3",
		"WORKBOARD_TIMEZONE":     "UTC",
	}
	cfg, err := Default("/tmp/workboard.db").ApplyEnv(func(key string) string { return env[key] })
	if err != nil {
		t.Fatalf("ApplyEnv() error = %v", err)
	}
	if cfg.Remote.Backend != RemotePostgres || cfg.Remote.Postgres.DSN != env["WORKBOARD_POSTGRES_DSN"] {
		t.Fatalf("unexpected remote config %#v", cfg.Remote)
	}
	if cfg.Remote.Redis.DB != 3 || cfg.Board.Timezone != "UTC" {
		t.Fatalf("unexpected overrides %#v", cfg)
	}

	env["WORKBOARD_REDIS_DB"] = "three"
	if _, err := Default("/tmp/workboard.db").ApplyEnv(func(key string) string { return env[key] }); err == nil {
		t.Fatal("expected error for non-numeric redis db")
	}
}

func TestLoadEnvFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("WORKBOARD_TEST_ENV_FILE=loaded\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	t.Cleanup(func() { _ = os.Unsetenv("WORKBOARD_TEST_ENV_FILE") })

	if err := LoadEnvFiles(filepath.Join(dir, "missing.env"), path); err != nil {
		t.Fatalf("LoadEnvFiles() error = %v", err)
	}
	if got := os.Getenv("WORKBOARD_TEST_ENV_FILE"); got != "loaded" {
		t.Fatalf("unexpected env value %q", got)
	}
}

func TestEnsureConfigDir(t *testing.T) {
	target := filepath.Join(t.TempDir(), "a", "b", "config.toml")
	if err := EnsureConfigDir(target); err != nil {
		t.Fatalf("EnsureConfigDir() error = %v", err)
	}
	if _, err := os.Stat(filepath.Dir(target)); err != nil {
		t.Fatalf("expected dir to exist, stat error %v", err)
	}
}
