package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophblog/internal/flagx"
	"github.com/spf13/viper"
)

const EnvPrefix = "BLOG"

// Default server addresses per transport.
const (
	DefaultHTTPAddr = "localhost:3000"
	DefaultGRPCAddr = "localhost:50051"
)

// Config holds runtime settings for the blog CLI.
type Config struct {
	Addr      string        `mapstructure:"addr"`
	Transport string        `mapstructure:"transport"`
	TokenFile string        `mapstructure:"token_file"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// Load builds a Config from the global CLI arguments and the environment.
// An empty TokenFile means the default slot under the home directory.
func Load(args []string) (*Config, error) {
	v := viper.New()
	v.SetDefault("addr", "")
	v.SetDefault("transport", "http")
	v.SetDefault("token_file", "")
	v.SetDefault("timeout", 10*time.Second)

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if path := flagx.ConfigPath(args); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}

	cfg.Transport = strings.ToLower(strings.TrimSpace(cfg.Transport))
	switch cfg.Transport {
	case "http":
		if cfg.Addr == "" {
			cfg.Addr = DefaultHTTPAddr
		}
	case "grpc":
		if cfg.Addr == "" {
			cfg.Addr = DefaultGRPCAddr
		}
	default:
		return nil, fmt.Errorf("transport must be 'http' or 'grpc', got %q", cfg.Transport)
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be positive, got %s", cfg.Timeout)
	}
	return cfg, nil
}
