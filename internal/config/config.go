package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config aggregates application configuration values.
type Config struct {
	HTTP       HTTPConfig       `mapstructure:"server"`
	Graph      GraphConfig      `mapstructure:"graph"`
	Logging    LoggingConfig    `mapstructure:"log"`
	Repository RepositoryConfig `mapstructure:"repository"`
}

// HTTPConfig governs HTTP server behaviour.
type HTTPConfig struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
	MetricsEnabled    bool          `mapstructure:"metrics_enabled"`
	AllowedOriginsCSV string        `mapstructure:"allowed_origins"`
}

// GraphConfig describes connectivity to the Neo4j database.
type GraphConfig struct {
	URI            string `mapstructure:"uri"`
	Database       string `mapstructure:"database"`
	Username       string `mapstructure:"username"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
}

// LoggingConfig controls structured logging settings.
type LoggingConfig struct {
	Level         string `mapstructure:"level"`
	Format        string `mapstructure:"format"` // text|json
	IncludeCaller bool   `mapstructure:"include_caller"`
}

// RepositoryConfig bounds the pages repository listings return.
type RepositoryConfig struct {
	DefaultPageSize int `mapstructure:"default_page_size"`
	MaxPageSize     int `mapstructure:"max_page_size"`
}

const (
	defaultHost             = "0.0.0.0"
	defaultPort             = 8080
	defaultReadTimeout      = 10 * time.Second
	defaultWriteTimeout     = 15 * time.Second
	defaultIdleTimeout      = 60 * time.Second
	defaultShutdownTimeout  = 10 * time.Second
	defaultLoggingLevel     = "info"
	defaultLoggingFormat    = "text"
	defaultGraphMaxSessions = 10
	defaultPageSize         = 20
	defaultMaxPageSize      = 100
)

// FileName is the base name of the optional configuration file looked up in
// the working directory.
const FileName = "graphrepo"

// envKeys maps configuration keys onto the environment variables that
// override them.
var envKeys = map[string]string{
	"server.host":                  "SERVER_HOST",
	"server.port":                  "SERVER_PORT",
	"server.read_timeout":          "SERVER_READ_TIMEOUT",
	"server.write_timeout":         "SERVER_WRITE_TIMEOUT",
	"server.idle_timeout":          "SERVER_IDLE_TIMEOUT",
	"server.shutdown_timeout":      "SERVER_SHUTDOWN_TIMEOUT",
	"server.metrics_enabled":       "SERVER_METRICS_ENABLED",
	"server.allowed_origins":       "SERVER_ALLOWED_ORIGINS",
	"graph.uri":                    "GRAPH_URI",
	"graph.database":               "GRAPH_DATABASE",
	"graph.username":               "GRAPH_USERNAME",
	"graph.password":               "GRAPH_PASSWORD",
	"graph.max_connections":        "GRAPH_MAX_CONNECTIONS",
	"log.level":                    "LOG_LEVEL",
	"log.format":                   "LOG_FORMAT",
	"log.include_caller":           "LOG_INCLUDE_CALLER",
	"repository.default_page_size": "REPOSITORY_DEFAULT_PAGE_SIZE",
	"repository.max_page_size":     "REPOSITORY_MAX_PAGE_SIZE",
}

// Load reads configuration from an optional graphrepo.yaml in the working
// directory and from environment variables, applying defaults.
func Load() (Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit configuration file. An empty path falls
// back to the optional graphrepo.yaml lookup.
func LoadFile(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	for key, env := range envKeys {
		if err := v.BindEnv(key, env); err != nil {
			return Config{}, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", defaultHost)
	v.SetDefault("server.port", defaultPort)
	v.SetDefault("server.read_timeout", defaultReadTimeout)
	v.SetDefault("server.write_timeout", defaultWriteTimeout)
	v.SetDefault("server.idle_timeout", defaultIdleTimeout)
	v.SetDefault("server.shutdown_timeout", defaultShutdownTimeout)
	v.SetDefault("server.metrics_enabled", false)
	v.SetDefault("server.allowed_origins", "")
	v.SetDefault("graph.uri", "")
	v.SetDefault("graph.database", "")
	v.SetDefault("graph.username", "")
	v.SetDefault("graph.password", "")
	v.SetDefault("graph.max_connections", defaultGraphMaxSessions)
	v.SetDefault("log.level", defaultLoggingLevel)
	v.SetDefault("log.format", defaultLoggingFormat)
	v.SetDefault("log.include_caller", false)
	v.SetDefault("repository.default_page_size", defaultPageSize)
	v.SetDefault("repository.max_page_size", defaultMaxPageSize)
}

func (c Config) validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("port %d is out of range", c.HTTP.Port)
	}
	for name, d := range map[string]time.Duration{
		"read timeout":     c.HTTP.ReadTimeout,
		"write timeout":    c.HTTP.WriteTimeout,
		"idle timeout":     c.HTTP.IdleTimeout,
		"shutdown timeout": c.HTTP.ShutdownTimeout,
	} {
		if d < 0 {
			return fmt.Errorf("%s must not be negative, got %s", name, d)
		}
	}
	if c.Repository.DefaultPageSize < 1 || c.Repository.MaxPageSize < c.Repository.DefaultPageSize {
		return fmt.Errorf("invalid page sizes: default %d, max %d", c.Repository.DefaultPageSize, c.Repository.MaxPageSize)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Logging.Format)
	}
	return nil
}
