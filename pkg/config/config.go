// Package config loads and validates application configuration from YAML files,
// an optional .env file and environment-variable overrides. It provides typed
// structs for every subsystem (Server, Redis, Postgres, Kafka, the upstream
// clients and the research pipeline).
package config

import (
	"errors"
	"fmt"
	"net/netip"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/seovimalraj/locations/pkg/logger"
)

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Redis     RedisConfig     `yaml:"redis"`
	Suggest   SuggestConfig   `yaml:"suggest"`
	Trends    TrendsConfig    `yaml:"trends"`
	WordPress WordPressConfig `yaml:"wordpress"`
	Research  ResearchConfig  `yaml:"research"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	// RateLimit is the number of API calls a single client may make per
	// RateWindow. Zero disables inbound limiting.
	RateLimit  int           `yaml:"rateLimit"`
	RateWindow time.Duration `yaml:"rateWindow"`
	// TrustedProxies lists proxy addresses or CIDR ranges whose
	// X-Forwarded-For header is believed when keying the rate limit.
	TrustedProxies []string `yaml:"trustedProxies"`
}

// PostgresConfig holds PostgreSQL connection parameters. Run persistence is
// skipped entirely when Enabled is false.
type PostgresConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Enabled       bool        `yaml:"enabled"`
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	ResearchEvents string `yaml:"researchEvents"`
}

// RedisConfig holds Redis connection parameters for the shared cache tier.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"poolSize"`
	Prefix   string `yaml:"prefix"`
}

// SuggestConfig controls the keyword suggestion upstream.
type SuggestConfig struct {
	BaseURL     string          `yaml:"baseUrl"`
	CacheTTL    time.Duration   `yaml:"cacheTTL"`
	MinInterval time.Duration   `yaml:"minInterval"`
	RetryDelays []time.Duration `yaml:"retryDelays"`
	Timeout     time.Duration   `yaml:"timeout"`
}

// TrendsConfig controls the trends upstream.
type TrendsConfig struct {
	BaseURL  string        `yaml:"baseUrl"`
	Proxy    string        `yaml:"proxy"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
	Window   time.Duration `yaml:"window"`
	Language string        `yaml:"language"`
	Timeout  time.Duration `yaml:"timeout"`
	// BreakerThreshold is the number of consecutive interest-over-time
	// failures that opens the circuit. Zero disables the breaker.
	BreakerThreshold int           `yaml:"breakerThreshold"`
	BreakerReset     time.Duration `yaml:"breakerReset"`
}

// WordPressConfig holds defaults for the WordPress content client.
type WordPressConfig struct {
	SiteURL     string          `yaml:"siteUrl"`
	APIKey      string          `yaml:"apiKey"`
	OAuthToken  string          `yaml:"oauthToken"`
	MaxPages    int             `yaml:"maxPages"`
	CacheTTL    time.Duration   `yaml:"cacheTTL"`
	Timeout     time.Duration   `yaml:"timeout"`
	RetryDelays []time.Duration `yaml:"retryDelays"`
}

// ResearchConfig controls the research pipeline.
type ResearchConfig struct {
	MaxKeywords       int           `yaml:"maxKeywords"`
	Timeout           time.Duration `yaml:"timeout"`
	EnrichConcurrency int           `yaml:"enrichConcurrency"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided), loads a .env file from the
// working directory when present, and applies environment-variable
// overrides. The result is validated before it is returned.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a Config with the defaults used for local development.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    120 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			RateLimit:       60,
			RateWindow:      time.Minute,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "keywordresearch",
			User:            "keywordresearch",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "keywordresearch-group",
			Topics: KafkaTopics{
				ResearchEvents: "research-events",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			Prefix:   "kr:",
		},
		Suggest: SuggestConfig{
			BaseURL:     "https://suggestqueries.google.com",
			CacheTTL:    24 * time.Hour,
			MinInterval: 250 * time.Millisecond,
			RetryDelays: []time.Duration{500 * time.Millisecond, time.Second},
			Timeout:     10 * time.Second,
		},
		Trends: TrendsConfig{
			BaseURL:          "https://trends.google.com",
			CacheTTL:         time.Hour,
			Window:           365 * 24 * time.Hour,
			Language:         "en-US",
			Timeout:          15 * time.Second,
			BreakerThreshold: 5,
			BreakerReset:     30 * time.Second,
		},
		WordPress: WordPressConfig{
			MaxPages:    5,
			CacheTTL:    5 * time.Minute,
			Timeout:     25 * time.Second,
			RetryDelays: []time.Duration{time.Second, 2 * time.Second, 4 * time.Second},
		},
		Research: ResearchConfig{
			MaxKeywords:       100,
			Timeout:           90 * time.Second,
			EnrichConcurrency: 1,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// Validate checks the values that affect pipeline behaviour. It runs once at
// start-up.
func (c *Config) Validate() error {
	var problems []string
	if c.Trends.Proxy != "" && !isHTTPURL(c.Trends.Proxy) {
		problems = append(problems, "GOOGLE_TRENDS_PROXY must be an absolute http(s) URL")
	}
	if c.WordPress.SiteURL != "" && !isHTTPURL(c.WordPress.SiteURL) {
		problems = append(problems, "WORDPRESS_SITE_URL must be an absolute http(s) URL")
	}
	if c.WordPress.MaxPages <= 0 {
		problems = append(problems, "MAX_PAGES_PER_REQUEST must be positive")
	}
	if c.Research.MaxKeywords <= 0 {
		problems = append(problems, "MAX_KEYWORDS_PER_REQUEST must be positive")
	}
	if c.Research.EnrichConcurrency <= 0 {
		problems = append(problems, "research.enrichConcurrency must be positive")
	}
	if len(c.Suggest.RetryDelays) == 0 || len(c.WordPress.RetryDelays) == 0 {
		problems = append(problems, "retry delay lists must not be empty")
	}
	for _, p := range c.Server.TrustedProxies {
		if !validProxy(strings.TrimSpace(p)) {
			problems = append(problems, fmt.Sprintf("trusted proxy %q is not an IP address or CIDR range", p))
		}
	}
	if !logger.ValidLevel(c.Logging.Level) {
		problems = append(problems, fmt.Sprintf("LOG_LEVEL must be one of %s", strings.Join(logger.Levels, ", ")))
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

func validProxy(raw string) bool {
	if strings.Contains(raw, "/") {
		_, err := netip.ParsePrefix(raw)
		return err == nil
	}
	_, err := netip.ParseAddr(raw)
	return err == nil
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// applyEnvOverrides reads the environment and overrides the corresponding
// config fields. Numeric variables that fail to parse are reported rather
// than ignored.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("GOOGLE_TRENDS_PROXY"); v != "" {
		cfg.Trends.Proxy = v
	}
	if v := os.Getenv("WORDPRESS_SITE_URL"); v != "" {
		cfg.WordPress.SiteURL = v
	}
	if v := os.Getenv("WORDPRESS_API_KEY"); v != "" {
		cfg.WordPress.APIKey = v
	}
	if v := os.Getenv("WORDPRESS_OAUTH_TOKEN"); v != "" {
		cfg.WordPress.OAuthToken = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("KR_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
		cfg.Redis.Enabled = true
	}
	if v := os.Getenv("KR_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("KR_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
		cfg.Postgres.Enabled = true
	}
	if v := os.Getenv("KR_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("KR_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("KR_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("KR_POSTGRES_SSLMODE"); v != "" {
		cfg.Postgres.SSLMode = v
	}
	if v := os.Getenv("KR_TRUSTED_PROXIES"); v != "" {
		cfg.Server.TrustedProxies = nil
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				cfg.Server.TrustedProxies = append(cfg.Server.TrustedProxies, p)
			}
		}
	}
	if v := os.Getenv("KR_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
		cfg.Kafka.Enabled = true
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{"MAX_PAGES_PER_REQUEST", &cfg.WordPress.MaxPages},
		{"MAX_KEYWORDS_PER_REQUEST", &cfg.Research.MaxKeywords},
		{"KR_SERVER_PORT", &cfg.Server.Port},
		{"KR_POSTGRES_PORT", &cfg.Postgres.Port},
		{"KR_METRICS_PORT", &cfg.Metrics.Port},
	}
	for _, e := range ints {
		v := os.Getenv(e.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s must be a number: %w", e.name, err)
		}
		*e.dst = n
	}
	return nil
}
