package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Auth   AuthConfig   `mapstructure:"auth"`
	State  StateConfig  `mapstructure:"state"`
	Log    LogConfig    `mapstructure:"log"`
}

type ServerConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// AuthConfig selects the deployment variant. "token" is the multi-user
// bearer-token backend; "local" is the single-user deployment that only
// stores a username via /api/config/user.
type AuthConfig struct {
	Mode string `mapstructure:"mode"`
}

type StateConfig struct {
	Dir string `mapstructure:"dir"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

func Load(configPath string) (*Config, error) {
	viper.SetDefault("server.base_url", "http://localhost:5000/api")
	viper.SetDefault("server.timeout", 30*time.Second)
	viper.SetDefault("auth.mode", "token")
	viper.SetDefault("state.dir", ".codechat")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")

	viper.AutomaticEnv()
	viper.SetEnvPrefix("CODECHAT")

	if configPath != "" {
		viper.SetConfigFile(configPath)
		viper.SetConfigType("yaml")
		if err := viper.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
				return nil, err
			}
		}
	}

	cfg := &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, err
	}

	if cfg.Auth.Mode != "token" && cfg.Auth.Mode != "local" {
		return nil, fmt.Errorf("config: unknown auth.mode %q (want token or local)", cfg.Auth.Mode)
	}
	if cfg.Log.File == "" {
		cfg.Log.File = filepath.Join(cfg.State.Dir, "codechat.log")
	}

	return cfg, nil
}
