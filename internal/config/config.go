package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the application's configuration model.
// It captures API credentials and limits, harvesting policy, storage and observability.
type Config struct {
	API     APIConfig     `yaml:"api"`
	Harvest HarvestConfig `yaml:"harvest"`
	Storage StorageConfig `yaml:"storage"`
	Metrics MetricsConfig `yaml:"metrics"`
	Logging LoggingConfig `yaml:"logging"`
}

type APIConfig struct {
	BaseURL string `yaml:"baseURL"`
	// Application credentials. If empty, read from env IG_APP_ID / IG_APP_SECRET
	AppID     string `yaml:"appID"`
	AppSecret string `yaml:"appSecret"`
	// Client-side request budget shared by every account
	RequestsPerSecond float64 `yaml:"requestsPerSecond"`
	Burst             int     `yaml:"burst"`
	// Retries for 5xx and transport failures; 429 is never retried
	MaxAttempts    int `yaml:"maxAttempts"`
	BaseBackoffMs  int `yaml:"baseBackoffMs"`
	TimeoutSeconds int `yaml:"timeoutSeconds"`
}

type HarvestConfig struct {
	// Comments with this many words or fewer are dropped
	MinWords int `yaml:"minWords"`
	// The likes endpoint is retired on some API versions; disabling it makes reaction fetching a no-op
	FetchReactions bool `yaml:"fetchReactions"`
	FetchMentions  bool `yaml:"fetchMentions"`
	// Interval between scheduled harvests in serve mode
	Interval time.Duration `yaml:"interval"`
}

type StorageConfig struct {
	DBPath string `yaml:"dbPath"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Default returns a sensible default configuration.
func Default() Config {
	return Config{
		API: APIConfig{
			BaseURL:           "https://api.instagram.com",
			RequestsPerSecond: 2,
			Burst:             10,
			MaxAttempts:       5,
			BaseBackoffMs:     500,
			TimeoutSeconds:    15,
		},
		Harvest: HarvestConfig{MinWords: 2, FetchReactions: true, FetchMentions: true, Interval: time.Hour},
		Storage: StorageConfig{DBPath: "./igharvest.db"},
		Metrics: MetricsConfig{Addr: ""},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Timeout returns the per-request HTTP timeout.
func (a APIConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSeconds) * time.Second
}

// BaseBackoff returns the first retry delay.
func (a APIConfig) BaseBackoff() time.Duration {
	return time.Duration(a.BaseBackoffMs) * time.Millisecond
}

// LoadDotEnv loads KEY=VALUE pairs from the given files into the process
// environment. Variables already set are kept. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	var existing []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

// ResolveEnv fills in config fields from environment variables.
// Credentials are only taken from env when not set; operational knobs always override.
func (c *Config) ResolveEnv() {
	if c.API.AppID == "" {
		c.API.AppID = os.Getenv("IG_APP_ID")
	}
	if c.API.AppSecret == "" {
		c.API.AppSecret = os.Getenv("IG_APP_SECRET")
	}
	if v := os.Getenv("IG_API_BASE_URL"); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv("IG_API_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			c.API.RequestsPerSecond = f
		}
	}
	c.API.Burst = getEnvInt("IG_API_BURST", c.API.Burst)
	c.API.MaxAttempts = getEnvInt("IG_API_MAX_ATTEMPTS", c.API.MaxAttempts)
	c.API.BaseBackoffMs = getEnvInt("IG_API_BASE_BACKOFF_MS", c.API.BaseBackoffMs)
	if v := os.Getenv("IGHARVEST_DB"); v != "" {
		c.Storage.DBPath = v
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		c.Metrics.Addr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Load reads YAML config from path on top of the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}
	cfg.ResolveEnv()
	return cfg, nil
}

// LoadOrDefault behaves like Load but falls back to defaults when path does not exist.
func LoadOrDefault(path string) (Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		cfg = Default()
		cfg.ResolveEnv()
		return cfg, nil
	}
	return cfg, err
}

// Save writes YAML config to path, creating directories as needed.
func Save(path string, cfg Config) error {
	if path == "" {
		return errors.New("empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if i, err := strconv.Atoi(v); err == nil && i > 0 {
		return i
	}
	return def
}
