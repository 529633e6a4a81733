package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// 网关运行模式
const (
	ModeSimulated = "simulated"
	ModeLive      = "live"
)

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	Addr                  string `yaml:"addr"`
	WebhookTimeoutSeconds int    `yaml:"webhook_timeout_seconds"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
}

// Config 应用配置
type Config struct {
	Mode               string       `yaml:"mode"` // simulated / live
	Server             ServerConfig `yaml:"server"`
	Log                LogConfig    `yaml:"log"`
	LedgerDBPath       string       `yaml:"ledger_db_path"`
	AuthDBPath         string       `yaml:"auth_db_path"`
	PriceStreamEnabled bool         `yaml:"price_stream_enabled"` // live 模式下开启 allMids 行情缓存
	PriceStreamTestnet bool         `yaml:"price_stream_testnet"`
}

// Load 读取 yaml 配置文件并套用环境变量覆盖与默认值
// path 为空时只使用环境变量和默认值
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	// 环境变量覆盖
	cfg.Mode = getEnv("GOHYPER_MODE", cfg.Mode)
	cfg.Server.Addr = getEnv("GOHYPER_ADDR", cfg.Server.Addr)
	cfg.LedgerDBPath = getEnv("GOHYPER_LEDGER_DB", cfg.LedgerDBPath)
	cfg.AuthDBPath = getEnv("GOHYPER_AUTH_DB", cfg.AuthDBPath)
	cfg.Log.Level = getEnv("GOHYPER_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.File = getEnv("GOHYPER_LOG_FILE", cfg.Log.File)
	cfg.PriceStreamEnabled = parseBoolEnv("GOHYPER_PRICE_STREAM", cfg.PriceStreamEnabled)

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Mode == "" {
		c.Mode = ModeSimulated
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.WebhookTimeoutSeconds <= 0 {
		c.Server.WebhookTimeoutSeconds = 60
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.MaxSize <= 0 {
		c.Log.MaxSize = 100
	}
	if c.Log.MaxBackups <= 0 {
		c.Log.MaxBackups = 5
	}
	if c.Log.MaxAge <= 0 {
		c.Log.MaxAge = 30
	}
	if c.LedgerDBPath == "" {
		c.LedgerDBPath = "data/ledger.db"
	}
	if c.AuthDBPath == "" {
		c.AuthDBPath = "data/auth.db"
	}
}

// Validate 校验配置
func (c *Config) Validate() error {
	if c.Mode != ModeSimulated && c.Mode != ModeLive {
		return fmt.Errorf("invalid mode %q: must be %q or %q", c.Mode, ModeSimulated, ModeLive)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}
