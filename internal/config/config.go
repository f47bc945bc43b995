package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/rm-hull/deep-fry-editor/internal/imaging/stage"
)

// EnvPrefix namespaces environment overrides; a double underscore separates
// nesting levels, e.g. FRYER_SESSIONS__TTL=30m.
const EnvPrefix = "FRYER_"

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Pipeline PipelineConfig `koanf:"pipeline"`
	Sessions SessionsConfig `koanf:"sessions"`
	RemoveBg RemoveBgConfig `koanf:"removebg"`
	Log      LogConfig      `koanf:"log"`
}

type ServerConfig struct {
	Port          int   `koanf:"port"`
	Debug         bool  `koanf:"debug"`
	MaxUploadSize int64 `koanf:"max_upload_size"`
}

type PipelineConfig struct {
	Filter       string `koanf:"filter"`
	MaxDimension int    `koanf:"max_dimension"`
}

type SessionsConfig struct {
	TTL           time.Duration `koanf:"ttl"`
	SweepInterval time.Duration `koanf:"sweep_interval"`
	MaxSessions   int           `koanf:"max_sessions"`
	GalleryLimit  int           `koanf:"gallery_limit"`
}

type RemoveBgConfig struct {
	ApiKey    string        `koanf:"api_key"`
	BaseUrl   string        `koanf:"base_url"`
	Timeout   time.Duration `koanf:"timeout"`
	Tolerance float64       `koanf:"tolerance"`
	Sigma     float64       `koanf:"sigma"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

var defaults = map[string]any{
	"server.port":             8080,
	"server.debug":            false,
	"server.max_upload_size":  32 * 1024 * 1024,
	"pipeline.filter":         stage.DefaultFilter,
	"pipeline.max_dimension":  8192,
	"sessions.ttl":            "30m",
	"sessions.sweep_interval": "1m",
	"sessions.max_sessions":   1000,
	"sessions.gallery_limit":  50,
	"removebg.base_url":       "https://api.remove.bg/v1.0",
	"removebg.timeout":        "30s",
	"removebg.tolerance":      50.0,
	"removebg.sigma":          1.0,
	"log.level":               "info",
	"log.format":              "text",
}

// Load layers the defaults, the optional YAML file at path and FRYER_
// environment variables, in that order of precedence.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	for key, value := range defaults {
		if err := k.Set(key, value); err != nil {
			return nil, fmt.Errorf("failed to set default %s: %w", key, err)
		}
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.RemoveBg.ApiKey == "" {
		cfg.RemoveBg.ApiKey = os.Getenv("REMOVEBG_API_KEY")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) Validate() error {
	var errs []error
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", cfg.Server.Port))
	}
	if cfg.Server.MaxUploadSize <= 0 {
		errs = append(errs, errors.New("server.max_upload_size must be positive"))
	}
	if !stage.ValidFilter(cfg.Pipeline.Filter) {
		errs = append(errs, fmt.Errorf("pipeline.filter %q is not one of %s",
			cfg.Pipeline.Filter, strings.Join(stage.Filters(), ", ")))
	}
	if cfg.Pipeline.MaxDimension < 0 {
		errs = append(errs, errors.New("pipeline.max_dimension must not be negative"))
	}
	if cfg.Sessions.TTL > 0 && cfg.Sessions.SweepInterval <= 0 {
		errs = append(errs, errors.New("sessions.sweep_interval must be positive when sessions.ttl is set"))
	}
	if cfg.RemoveBg.Tolerance < 0 {
		errs = append(errs, errors.New("removebg.tolerance must not be negative"))
	}
	return errors.Join(errs...)
}
