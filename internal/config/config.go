// internal/config/config.go
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds every runtime setting of the server and the historian.
type Config struct {
	Port     string `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`

	RoomIdleTimeout   time.Duration `mapstructure:"room_idle_timeout"`
	RoomSweepInterval time.Duration `mapstructure:"room_sweep_interval"`
	RoomSweepRetry    time.Duration `mapstructure:"room_sweep_retry"`

	// TokenExpireTime of zero issues tokens without an exp claim.
	TokenExpireTime time.Duration `mapstructure:"-"`

	Redis     RedisConfig     `mapstructure:",squash"`
	Historian HistorianConfig `mapstructure:",squash"`
	Database  DatabaseConfig  `mapstructure:",squash"`
}

// RedisConfig points at the activity-log queue. An empty Addr disables it.
type RedisConfig struct {
	Addr      string `mapstructure:"redis_addr"`
	DB        int    `mapstructure:"redis_db"`
	QueueName string `mapstructure:"historian_queue_name"`
}

type HistorianConfig struct {
	BatchSize int `mapstructure:"historian_batch_size"`
	FlushMs   int `mapstructure:"historian_flush_ms"`
}

func (h HistorianConfig) FlushInterval() time.Duration {
	return time.Duration(h.FlushMs) * time.Millisecond
}

type DatabaseConfig struct {
	URL string `mapstructure:"database_url"`
}

var defaults = map[string]interface{}{
	"port":                 "8080",
	"log_level":            "info",
	"room_idle_timeout":    "30m",
	"room_sweep_interval":  "30m",
	"room_sweep_retry":     "5m",
	"redis_addr":           "",
	"redis_db":             0,
	"historian_queue_name": "babanuki_events",
	"historian_batch_size": 20,
	"historian_flush_ms":   500,
	"database_url":         "",
	"token_expire_time":    "never",
}

// Load reads the configuration from the environment, falling back to
// defaults. Keys are the upper-cased field names, e.g. ROOM_IDLE_TIMEOUT.
func Load() (*Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	exp, err := parseExpire(v.GetString("token_expire_time"))
	if err != nil {
		return nil, err
	}
	cfg.TokenExpireTime = exp
	return &cfg, nil
}

func parseExpire(s string) (time.Duration, error) {
	switch s {
	case "", "0", "never":
		return 0, nil
	}
	return time.ParseDuration(s)
}
