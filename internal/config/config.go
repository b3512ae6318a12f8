package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration settings
type Config struct {
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Database DatabaseConfig `yaml:"database" mapstructure:"database"`
	Storage  StorageConfig  `yaml:"storage" mapstructure:"storage"`
	Cache    CacheConfig    `yaml:"cache" mapstructure:"cache"`
	Jobs     JobsConfig     `yaml:"jobs" mapstructure:"jobs"`
	Logging  LoggingConfig  `yaml:"logging" mapstructure:"logging"`
}

type ServerConfig struct {
	Addr         string        `yaml:"addr" mapstructure:"addr"`
	Mode         string        `yaml:"mode" mapstructure:"mode"` // "debug" or "release"
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	RateLimit    float64       `yaml:"rate_limit" mapstructure:"rate_limit"` // requests per second, 0 disables
	RateBurst    int           `yaml:"rate_burst" mapstructure:"rate_burst"`
}

// DatabaseConfig points at the indexer schema (github_* tables)
type DatabaseConfig struct {
	PostgresDSN string `yaml:"postgres_dsn" mapstructure:"postgres_dsn"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
}

// StorageConfig selects the CRM store
type StorageConfig struct {
	Type        string `yaml:"type" mapstructure:"type"` // "postgres", "sqlite"
	PostgresDSN string `yaml:"postgres_dsn" mapstructure:"postgres_dsn"`
	LocalPath   string `yaml:"local_path" mapstructure:"local_path"`
}

type CacheConfig struct {
	MemoryTTL     time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	SharedTTL     time.Duration `yaml:"shared_ttl" mapstructure:"shared_ttl"`
	RedisAddr     string        `yaml:"redis_addr" mapstructure:"redis_addr"`
	RedisPassword string        `yaml:"redis_password" mapstructure:"redis_password"`
	RedisDB       int           `yaml:"redis_db" mapstructure:"redis_db"`
	BoltPath      string        `yaml:"bolt_path" mapstructure:"bolt_path"`
}

type JobsConfig struct {
	WarmCron string `yaml:"warm_cron" mapstructure:"warm_cron"` // empty disables
	TZ       string `yaml:"tz" mapstructure:"tz"`
}

type LoggingConfig struct {
	Level      string `yaml:"level" mapstructure:"level"`
	File       string `yaml:"file" mapstructure:"file"`
	JSONFormat bool   `yaml:"json" mapstructure:"json"`
}

// Default returns default configuration
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		Server: ServerConfig{
			Addr:         ":8080",
			Mode:         "release",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
			RateLimit:    50,
			RateBurst:    100,
		},
		Database: DatabaseConfig{
			MaxConns: 10,
		},
		Storage: StorageConfig{
			Type:      "sqlite",
			LocalPath: filepath.Join(homeDir, ".devpulse", "local.db"),
		},
		Cache: CacheConfig{
			MemoryTTL: 1 * time.Minute,
			SharedTTL: 15 * time.Minute,
			BoltPath:  filepath.Join(homeDir, ".devpulse", "cache.db"),
		},
		Jobs: JobsConfig{
			WarmCron: "*/30 * * * *",
			TZ:       "UTC",
		},
		Logging: LoggingConfig{
			Level:      "info",
			JSONFormat: true,
		},
	}
}

// Load loads configuration from file, .env files and environment
func Load(path string) (*Config, error) {
	loadEnvFiles()

	v := viper.New()
	v.SetConfigType("yaml")

	cfg := Default()
	v.SetDefault("server", cfg.Server)
	v.SetDefault("database", cfg.Database)
	v.SetDefault("storage", cfg.Storage)
	v.SetDefault("cache", cfg.Cache)
	v.SetDefault("jobs", cfg.Jobs)
	v.SetDefault("logging", cfg.Logging)

	v.SetEnvPrefix("DEVPULSE")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".devpulse")
		v.AddConfigPath(".")
		homeDir, _ := os.UserHomeDir()
		v.AddConfigPath(filepath.Join(homeDir, ".devpulse"))
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

func loadEnvFiles() {
	for _, file := range []string{".env.local", ".env"} {
		if _, err := os.Stat(file); err == nil {
			godotenv.Load(file)
		}
	}
}

func applyEnvOverrides(cfg *Config) {
	if addr := os.Getenv("HTTP_ADDR"); addr != "" {
		cfg.Server.Addr = addr
	}
	if rl := os.Getenv("HTTP_RATE_LIMIT"); rl != "" {
		if rate, err := strconv.ParseFloat(rl, 64); err == nil {
			cfg.Server.RateLimit = rate
		}
	}

	// The indexer and CRM share one database unless told otherwise
	if dsn := os.Getenv("POSTGRES_DSN"); dsn != "" {
		cfg.Database.PostgresDSN = dsn
		if cfg.Storage.PostgresDSN == "" {
			cfg.Storage.PostgresDSN = dsn
		}
	}
	if dsn := os.Getenv("STORAGE_POSTGRES_DSN"); dsn != "" {
		cfg.Storage.PostgresDSN = dsn
	}
	if storageType := os.Getenv("STORAGE_TYPE"); storageType != "" {
		cfg.Storage.Type = storageType
	}
	if path := os.Getenv("LOCAL_DB_PATH"); path != "" {
		cfg.Storage.LocalPath = expandPath(path)
	}

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Cache.RedisAddr = addr
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		cfg.Cache.RedisPassword = password
	}
	if path := os.Getenv("CACHE_BOLT_PATH"); path != "" {
		cfg.Cache.BoltPath = expandPath(path)
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
}

func expandPath(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[1:])
	}
	return path
}

// UsesPostgres reports whether the CRM store is Postgres
func (c *Config) UsesPostgres() bool {
	return c.Storage.Type == "postgres"
}
