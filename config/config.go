package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/wfunc/musicalchairs/logger"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	Game   GameConfig   `mapstructure:"game"`
	Server ServerConfig `mapstructure:"server"`
	Log    LogConfig    `mapstructure:"log"`
}

type GameConfig struct {
	Players  int           `mapstructure:"players"`
	Tables   int           `mapstructure:"tables"`
	MinRound time.Duration `mapstructure:"min_round"`
	MaxRound time.Duration `mapstructure:"max_round"`
}

type ServerConfig struct {
	// HTTPAddress serves the spectator feed and /metrics. Empty disables it.
	HTTPAddress string `mapstructure:"http_address"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// flagKeys maps command line flag names to config keys.
var flagKeys = map[string]string{
	"players":   "game.players",
	"tables":    "game.tables",
	"min-round": "game.min_round",
	"max-round": "game.max_round",
	"listen":    "server.http_address",
	"log-level": "log.level",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("game.players", 4)
	v.SetDefault("game.tables", 1)
	v.SetDefault("game.min_round", "0s")
	v.SetDefault("game.max_round", "10s")
	v.SetDefault("server.http_address", "")
	v.SetDefault("log.level", "info")
}

// LoadConfig reads config.yaml from path, then the CHAIRS_* environment,
// then any flags in fs that were set explicitly. A missing file is not an error.
func LoadConfig(path string, fs *pflag.FlagSet) (*Config, error) {
	v, err := newViper(path, fs)
	if err != nil {
		return nil, err
	}
	return decode(v)
}

// Watch loads the configuration like LoadConfig and then calls onChange with
// every valid version of config.yaml written afterwards. Invalid edits are
// logged and skipped. Without a config file there is nothing to watch.
func Watch(path string, fs *pflag.FlagSet, onChange func(*Config)) (*Config, error) {
	v, err := newViper(path, fs)
	if err != nil {
		return nil, err
	}
	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	if v.ConfigFileUsed() == "" {
		return cfg, nil
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		next, err := decode(v)
		if err != nil {
			logger.Log.Warnw("config reload rejected", "file", e.Name, "error", err)
			return
		}
		logger.Log.Infow("config reloaded", "file", e.Name)
		onChange(next)
	})
	v.WatchConfig()
	return cfg, nil
}

func newViper(path string, fs *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("chairs")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if fs != nil {
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, err
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return v, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations that cannot start a game.
func (c *Config) Validate() error {
	switch {
	case c.Game.Players < 2:
		return fmt.Errorf("%w: game.players must be at least 2, got %d", ErrInvalidConfig, c.Game.Players)
	case c.Game.Tables < 1:
		return fmt.Errorf("%w: game.tables must be at least 1, got %d", ErrInvalidConfig, c.Game.Tables)
	case c.Game.MinRound < 0 || c.Game.MaxRound < 0:
		return fmt.Errorf("%w: round durations must not be negative", ErrInvalidConfig)
	case c.Game.MinRound > c.Game.MaxRound:
		return fmt.Errorf("%w: game.min_round %v exceeds game.max_round %v", ErrInvalidConfig, c.Game.MinRound, c.Game.MaxRound)
	}
	return nil
}
