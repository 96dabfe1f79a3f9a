package server

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func clearArenaEnv(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		if k, _, _ := strings.Cut(kv, "="); strings.HasPrefix(k, "ARENA_") {
			t.Setenv(k, "")
		}
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearArenaEnv(t)
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":3000" || cfg.Rules != DefaultConfig().Rules || cfg.MaxInputsPerTick != 32 {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestLoadConfigFromEnvAndFile(t *testing.T) {
	clearArenaEnv(t)
	t.Setenv("ARENA_SYNC_RATE", "20")
	t.Setenv("ARENA_ATTACK_RADIUS", "3.5")

	path := filepath.Join(t.TempDir(), "arena.env")
	body := "ARENA_ADDR=:4000\nARENA_SYNC_RATE=5\nARENA_CODEC=msgpack\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	// godotenv.Load 会写入进程环境，测试结束后还原
	t.Setenv("ARENA_ADDR", "")
	t.Setenv("ARENA_CODEC", "")
	os.Unsetenv("ARENA_ADDR")
	os.Unsetenv("ARENA_CODEC")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":4000" || cfg.Codec != "msgpack" {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	// 已存在的环境变量优先于文件
	if cfg.Rules.SyncRate != 20 || cfg.Rules.AttackRadius != 3.5 {
		t.Fatalf("env values not applied: %+v", cfg.Rules)
	}
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	clearArenaEnv(t)
	t.Setenv("ARENA_SYNC_RATE", "fast")
	t.Setenv("ARENA_MOVE_SPEED", "x")
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
	if err == nil || !strings.Contains(err.Error(), "ARENA_SYNC_RATE") || !strings.Contains(err.Error(), "ARENA_MOVE_SPEED") {
		t.Fatalf("err = %v, want both keys reported", err)
	}

	t.Setenv("ARENA_SYNC_RATE", "0")
	t.Setenv("ARENA_MOVE_SPEED", "")
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env")); err == nil {
		t.Fatalf("sync rate 0 accepted")
	}
}

func TestConfigValidate(t *testing.T) {
	for name, mut := range map[string]func(*Config){
		"negative radius": func(c *Config) { c.Rules.AttackRadius = -1 },
		"negative stun":   func(c *Config) { c.Rules.IncapacitationMs = -1 },
		"zero inputs":     func(c *Config) { c.MaxInputsPerTick = 0 },
		"zero buffer":     func(c *Config) { c.SendBuffer = 0 },
		"rate too high":   func(c *Config) { c.Rules.SyncRate = 5000 },
	} {
		cfg := DefaultConfig()
		mut(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: accepted", name)
		}
	}
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
}
