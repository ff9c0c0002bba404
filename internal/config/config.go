package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App     AppConfig
	DB      DBConfig
	Redis   RedisConfig
	Search  SearchConfig
	Barcode BarcodeConfig
}

type AppConfig struct {
	Port           int           `envconfig:"PORT" default:"8080"`
	LogLevel       string        `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat      string        `envconfig:"LOG_FORMAT" default:"json"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"60s"`
}

type DBConfig struct {
	URL             string        `envconfig:"DATABASE_URL" required:"true"`
	MaxConns        int32         `envconfig:"DB_MAX_CONNS" default:"20"`
	MinConns        int32         `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnIdleTime time.Duration `envconfig:"DB_MAX_CONN_IDLE_TIME" default:"5m"`
}

type RedisConfig struct {
	URL string `envconfig:"REDIS_URL"`
	Key string `envconfig:"REDIS_SEARCH_KEY" default:"backoffice:search:units"`
}

// Enabled reports whether the shared search cache should be used.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != ""
}

type SearchConfig struct {
	TransactionLimit int           `envconfig:"SEARCH_TRANSACTION_LIMIT" default:"500"`
	BatchWait        time.Duration `envconfig:"SEARCH_BATCH_WAIT" default:"2ms"`
}

type BarcodeConfig struct {
	Prefix string `envconfig:"BARCODE_PREFIX" default:"200"`
}

// Load reads .env from the working directory when present, then the
// environment. Variables already set in the environment win.
func Load() (*Config, error) {
	return LoadFrom(".env")
}

func LoadFrom(envFiles ...string) (*Config, error) {
	for _, path := range envFiles {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.App.Port <= 0 {
		return fmt.Errorf("invalid PORT: %d", c.App.Port)
	}
	if strings.TrimSpace(c.DB.URL) == "" {
		return errors.New("DATABASE_URL is required (environment variable or .env)")
	}
	if c.DB.MinConns > c.DB.MaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DB.MinConns, c.DB.MaxConns)
	}
	if c.Search.TransactionLimit <= 0 {
		return fmt.Errorf("invalid SEARCH_TRANSACTION_LIMIT: %d", c.Search.TransactionLimit)
	}
	if c.Search.BatchWait < 0 {
		return fmt.Errorf("invalid SEARCH_BATCH_WAIT: %s", c.Search.BatchWait)
	}
	switch strings.ToLower(c.App.LogFormat) {
	case "json", "console":
	default:
		return fmt.Errorf("invalid LOG_FORMAT: %q", c.App.LogFormat)
	}
	return nil
}
