package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/example/ocrs/internal/logging"
)

// DefaultMaxFileSize is the largest accepted image, 10 MiB.
const DefaultMaxFileSize int64 = 10 * 1024 * 1024

// SystemConfigPath is read when neither -config nor OCRS_CONFIG is given.
const SystemConfigPath = "/etc/ocrs/config.yaml"

const (
	EngineTesseract = "tesseract"
	EngineGRPC      = "grpc"
)

// Config is read once at startup. The request pipeline only sees the values
// main passes into constructors.
type Config struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	LogLevel    string `yaml:"log_level"`
	MaxFileSize int64  `yaml:"max_file_size"`

	Engine struct {
		Kind        string        `yaml:"kind"`
		Addr        string        `yaml:"addr"`
		TessdataDir string        `yaml:"tessdata_dir"`
		Timeout     time.Duration `yaml:"timeout"`
	} `yaml:"engine"`

	Redis struct {
		Addr string        `yaml:"addr"`
		TTL  time.Duration `yaml:"ttl"`
	} `yaml:"redis"`

	Database struct {
		DSN string `yaml:"dsn"`
	} `yaml:"database"`

	Auth struct {
		JWTSecret   string `yaml:"jwt_secret"`
		JWTAudience string `yaml:"jwt_audience"`
	} `yaml:"auth"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	cfg := &Config{
		Host:        "0.0.0.0",
		Port:        7321,
		LogLevel:    "info",
		MaxFileSize: DefaultMaxFileSize,
	}
	cfg.Engine.Kind = EngineTesseract
	cfg.Redis.TTL = 10 * time.Minute
	return cfg
}

// Load reads the YAML file at path over the defaults, applies environment
// overrides and validates the result. An empty path falls back to OCRS_CONFIG
// and then to SystemConfigPath; if none exists the defaults are used.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = os.Getenv("OCRS_CONFIG")
	}
	if path == "" {
		if _, err := os.Stat(SystemConfigPath); err == nil {
			path = SystemConfigPath
		}
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		c.Port = port
	}
	c.Host = getEnv("HOST", c.Host)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.Engine.Kind = strings.ToLower(getEnv("ENGINE", c.Engine.Kind))
	c.Engine.Addr = getEnv("ENGINE_ADDR", c.Engine.Addr)
	c.Engine.TessdataDir = getEnv("TESSDATA_PREFIX", c.Engine.TessdataDir)
	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Database.DSN = getEnv("DATABASE_DSN", c.Database.DSN)
	c.Auth.JWTSecret = getEnv("JWT_SECRET", c.Auth.JWTSecret)
	c.Auth.JWTAudience = getEnv("JWT_AUDIENCE", c.Auth.JWTAudience)
	return nil
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.MaxFileSize <= 0 {
		return errors.New("max_file_size must be positive")
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.Engine.Kind {
	case EngineTesseract:
	case EngineGRPC:
		if c.Engine.Addr == "" {
			return errors.New("engine.addr is required for the grpc engine")
		}
	default:
		return fmt.Errorf("unknown engine %q", c.Engine.Kind)
	}
	if c.Engine.Timeout < 0 {
		return errors.New("engine.timeout must not be negative")
	}
	if c.Redis.Addr != "" && c.Redis.TTL <= 0 {
		return errors.New("redis.ttl must be positive when redis is enabled")
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
