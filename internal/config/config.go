// Package config loads screamboard configuration from built-in defaults, an optional
// YAML file and environment variables, in increasing order of priority.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar overrides the config file search.
const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultConfigPaths are searched in order; the first existing file is loaded.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/screamboard/config.yaml",
}

type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Database   DatabaseConfig   `koanf:"database"`
	Log        LogConfig        `koanf:"log"`
	Identity   IdentityConfig   `koanf:"identity"`
	Admin      AdminConfig      `koanf:"admin"`
	Meme       MemeConfig       `koanf:"meme"`
	Top        TopConfig        `koanf:"top"`
	Archive    ArchiveConfig    `koanf:"archive"`
	Moderation ModerationConfig `koanf:"moderation"`
	Redis      RedisConfig      `koanf:"redis"`
}

type ServerConfig struct {
	Port            int           `koanf:"port"`
	Mode            string        `koanf:"mode"`
	CORSOrigin      string        `koanf:"cors_origin"`
	PostInterval    time.Duration `koanf:"post_interval"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type DatabaseConfig struct {
	// URL starts with postgres:// or sqlite://
	URL          string `koanf:"url"`
	MaxIdleConns int    `koanf:"max_idle_conns"`
	MaxOpenConns int    `koanf:"max_open_conns"`
	LogSQL       bool   `koanf:"log_sql"`
}

type LogConfig struct {
	Level string `koanf:"level"`
	File  string `koanf:"file"`
}

type IdentityConfig struct {
	// Salt keys the identity HMAC. Leave empty for plain SHA-256 identities.
	Salt string `koanf:"salt"`
}

type AdminConfig struct {
	DefaultID string `koanf:"default_id"`
}

type MemeConfig struct {
	Username string        `koanf:"username"`
	Password string        `koanf:"password"`
	URL      string        `koanf:"url"`
	Timeout  time.Duration `koanf:"timeout"`
}

type TopConfig struct {
	DefaultN int `koanf:"default_n"`
	MaxN     int `koanf:"max_n"`
}

type ArchiveConfig struct {
	// Limit caps the number of posts archived per week; 0 archives every voted post.
	Limit    int    `koanf:"limit"`
	Schedule bool   `koanf:"schedule"`
	Weekday  string `koanf:"weekday"`
	Hour     int    `koanf:"hour"`
	Minute   int    `koanf:"minute"`
}

type ModerationConfig struct {
	// Store is "db" or "redis".
	Store      string        `koanf:"store"`
	SessionTTL time.Duration `koanf:"session_ttl"`
}

type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			Mode:            "release",
			CORSOrigin:      "*",
			PostInterval:    3 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
		Database: DatabaseConfig{
			URL:          "sqlite://screamboard.db",
			MaxIdleConns: 10,
			MaxOpenConns: 100,
		},
		Log: LogConfig{
			Level: "info",
			File:  "screamboard.log",
		},
		Meme: MemeConfig{
			URL:     "https://api.imgflip.com/caption_image",
			Timeout: 10 * time.Second,
		},
		Top: TopConfig{
			DefaultN: 3,
			MaxN:     50,
		},
		Archive: ArchiveConfig{
			Limit:    10,
			Schedule: true,
			Weekday:  "sunday",
			Hour:     23,
			Minute:   59,
		},
		Moderation: ModerationConfig{
			Store:      "db",
			SessionTTL: 24 * time.Hour,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
	}
}

// Load reads configuration: defaults, then the config file if one is found, then
// environment variables.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envMappings maps environment variable names (lowercased) to config paths.
// Variables not listed here are ignored.
var envMappings = map[string]string{
	"port":                   "server.port",
	"gin_mode":               "server.mode",
	"cors_origin":            "server.cors_origin",
	"post_interval":          "server.post_interval",
	"shutdown_timeout":       "server.shutdown_timeout",
	"database_url":           "database.url",
	"db_max_idle_conns":      "database.max_idle_conns",
	"db_max_open_conns":      "database.max_open_conns",
	"db_log_sql":             "database.log_sql",
	"log_level":              "log.level",
	"log_file":               "log.file",
	"identity_salt":          "identity.salt",
	"default_admin_id":       "admin.default_id",
	"imgflip_api_username":   "meme.username",
	"imgflip_api_password":   "meme.password",
	"imgflip_api_url":        "meme.url",
	"meme_timeout":           "meme.timeout",
	"top_default_n":          "top.default_n",
	"top_max_n":              "top.max_n",
	"archive_limit":          "archive.limit",
	"archive_schedule":       "archive.schedule",
	"archive_weekday":        "archive.weekday",
	"archive_hour":           "archive.hour",
	"archive_minute":         "archive.minute",
	"moderation_store":       "moderation.store",
	"moderation_session_ttl": "moderation.session_ttl",
	"redis_addr":             "redis.addr",
	"redis_password":         "redis.password",
	"redis_db":               "redis.db",
}

func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// ArchiveWeekday returns the configured archive weekday.
func (c *Config) ArchiveWeekday() time.Weekday {
	return weekdays[strings.ToLower(c.Archive.Weekday)]
}

// Validate checks the loaded configuration.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if !strings.HasPrefix(c.Database.URL, "postgres://") && !strings.HasPrefix(c.Database.URL, "sqlite://") {
		return fmt.Errorf("database.url must start with postgres:// or sqlite://")
	}
	if c.Top.DefaultN <= 0 || c.Top.MaxN < c.Top.DefaultN {
		return fmt.Errorf("top.default_n must be positive and not exceed top.max_n")
	}
	if c.Archive.Limit < 0 {
		return fmt.Errorf("archive.limit must not be negative")
	}
	if _, ok := weekdays[strings.ToLower(c.Archive.Weekday)]; !ok {
		return fmt.Errorf("archive.weekday %q is not a weekday name", c.Archive.Weekday)
	}
	if c.Archive.Hour < 0 || c.Archive.Hour > 23 || c.Archive.Minute < 0 || c.Archive.Minute > 59 {
		return fmt.Errorf("archive.hour/minute out of range")
	}
	switch c.Moderation.Store {
	case "db", "redis":
	default:
		return fmt.Errorf("moderation.store must be db or redis, got %q", c.Moderation.Store)
	}
	if c.Meme.Timeout <= 0 {
		return fmt.Errorf("meme.timeout must be positive")
	}
	return nil
}
