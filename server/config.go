package server

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"arrowarena/game"
)

// Config 服务端配置：默认值 <- .env 文件 <- 环境变量 <- 命令行参数（main 中处理）
type Config struct {
	Addr        string
	LogFile     string
	LogLevel    string
	DefaultRoom string
	Codec       string // 默认编解码器，连接可用 ?codec= 覆盖

	Rules game.Rules

	MaxInputsPerTick int // 每个连接每 Tick 最多接受的输入数
	SendBuffer       int // 每个连接的发送队列长度
}

func DefaultConfig() Config {
	return Config{
		Addr:             ":3000",
		LogFile:          "app.log",
		LogLevel:         "debug",
		DefaultRoom:      "room-1",
		Codec:            "json",
		Rules:            game.DefaultRules(),
		MaxInputsPerTick: 32,
		SendBuffer:       256,
	}
}

// LoadConfig 读取 .env 文件（不存在则忽略，不覆盖已有环境变量），再解析 ARENA_* 变量
func LoadConfig(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load env files: %w", err)
	}

	cfg := DefaultConfig()
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	flt := func(key string, dst *float64) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = f
		}
	}

	str("ARENA_ADDR", &cfg.Addr)
	str("ARENA_LOG_FILE", &cfg.LogFile)
	str("ARENA_LOG_LEVEL", &cfg.LogLevel)
	str("ARENA_DEFAULT_ROOM", &cfg.DefaultRoom)
	str("ARENA_CODEC", &cfg.Codec)
	num("ARENA_SYNC_RATE", &cfg.Rules.SyncRate)
	flt("ARENA_MOVE_SPEED", &cfg.Rules.MoveSpeed)
	flt("ARENA_ATTACK_RADIUS", &cfg.Rules.AttackRadius)
	flt("ARENA_INCAPACITATION_MS", &cfg.Rules.IncapacitationMs)
	flt("ARENA_PROJECTILE_FLIGHT_MS", &cfg.Rules.ProjectileFlightMs)
	flt("ARENA_PROJECTILE_RANGE", &cfg.Rules.ProjectileRange)
	num("ARENA_MAX_INPUTS_PER_TICK", &cfg.MaxInputsPerTick)
	num("ARENA_SEND_BUFFER", &cfg.SendBuffer)

	if len(errs) > 0 {
		return Config{}, errors.Join(errs...)
	}
	return cfg, cfg.Validate()
}

// Validate 检查数值范围
func (c Config) Validate() error {
	switch {
	case c.Rules.SyncRate <= 0 || c.Rules.SyncRate > 1000:
		return fmt.Errorf("sync rate %d out of range (1..1000)", c.Rules.SyncRate)
	case c.Rules.AttackRadius < 0:
		return fmt.Errorf("attack radius %v must not be negative", c.Rules.AttackRadius)
	case c.Rules.IncapacitationMs < 0:
		return fmt.Errorf("incapacitation %vms must not be negative", c.Rules.IncapacitationMs)
	case c.MaxInputsPerTick <= 0:
		return fmt.Errorf("max inputs per tick %d must be positive", c.MaxInputsPerTick)
	case c.SendBuffer <= 0:
		return fmt.Errorf("send buffer %d must be positive", c.SendBuffer)
	}
	return nil
}
