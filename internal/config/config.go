package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Configuration is the full service configuration.
type Configuration struct {
	Service       ServiceConfig       `yaml:"service"`
	Backend       BackendConfig       `yaml:"backend"`
	Playback      PlaybackConfig      `yaml:"playback"`
	Resolver      ResolverConfig      `yaml:"resolver"`
	Kafka         KafkaConfig         `yaml:"kafka"`
	Observability ObservabilityConfig `yaml:"observability"`
}

type ServiceConfig struct {
	Principal   string `yaml:"principal"`
	HTTPPort    string `yaml:"httpPort"`
	GRPCPort    string `yaml:"grpcPort"`
	MetricsAddr string `yaml:"metricsAddr"`
	ReadOnly    bool   `yaml:"readOnly"`
}

// BackendConfig points at the REST API that owns transcripts.
type BackendConfig struct {
	BaseURL       string        `yaml:"baseUrl"`
	Token         string        `yaml:"token"`
	Timeout       time.Duration `yaml:"timeout"`
	CommitTimeout time.Duration `yaml:"commitTimeout"`
}

type PlaybackConfig struct {
	TickInterval time.Duration `yaml:"tickInterval"`
	SeekSlop     float64       `yaml:"seekSlop"`
	SkipInterval time.Duration `yaml:"skipInterval"`
}

type ResolverConfig struct {
	Workers   int `yaml:"workers"`
	QueueSize int `yaml:"queueSize"`
}

type KafkaConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Brokers        []string `yaml:"brokers"`
	TopicEdits     string   `yaml:"topicEdits"`
	TopicConfirmed string   `yaml:"topicConfirmed"`
	Principal      string   `yaml:"principal"`
}

type ObservabilityConfig struct {
	LogLevel  string `yaml:"logLevel"`
	LogFormat string `yaml:"logFormat"`
}

// Default returns the built-in configuration.
func Default() *Configuration {
	return &Configuration{
		Service: ServiceConfig{
			Principal:   "svc-transcript-editor",
			HTTPPort:    "8080",
			GRPCPort:    "50051",
			MetricsAddr: ":9090",
		},
		Backend: BackendConfig{
			BaseURL:       "http://localhost:3000/api",
			Timeout:       15 * time.Second,
			CommitTimeout: 30 * time.Second,
		},
		Playback: PlaybackConfig{
			TickInterval: 30 * time.Millisecond,
			SeekSlop:     0.00001,
			SkipInterval: 5 * time.Second,
		},
		Resolver: ResolverConfig{
			Workers:   2,
			QueueSize: 16,
		},
		Kafka: KafkaConfig{
			TopicEdits:     "transcript.edits",
			TopicConfirmed: "transcript.confirmed",
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "json",
		},
	}
}

// Load builds the configuration from defaults, the optional YAML file named
// by CONFIG_FILE, and environment variables, in that order.
func Load() (*Configuration, error) {
	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Configuration) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Configuration) applyEnv() {
	c.Service.Principal = envOrDefault("SERVICE_PRINCIPAL", c.Service.Principal)
	c.Service.HTTPPort = envOrDefault("HTTP_PORT", c.Service.HTTPPort)
	c.Service.GRPCPort = envOrDefault("GRPC_PORT", c.Service.GRPCPort)
	c.Service.MetricsAddr = envOrDefault("METRICS_ADDR", c.Service.MetricsAddr)
	c.Service.ReadOnly = envOrDefaultBool("READ_ONLY", c.Service.ReadOnly)

	c.Backend.BaseURL = envOrDefault("BACKEND_BASE_URL", c.Backend.BaseURL)
	c.Backend.Token = envOrDefault("BACKEND_TOKEN", c.Backend.Token)
	c.Backend.Timeout = envOrDefaultDuration("BACKEND_TIMEOUT", c.Backend.Timeout)
	c.Backend.CommitTimeout = envOrDefaultDuration("COMMIT_TIMEOUT", c.Backend.CommitTimeout)

	c.Playback.TickInterval = envOrDefaultDuration("PLAYBACK_TICK_INTERVAL", c.Playback.TickInterval)
	c.Playback.SeekSlop = envOrDefaultFloat("PLAYBACK_SEEK_SLOP", c.Playback.SeekSlop)
	c.Playback.SkipInterval = envOrDefaultDuration("PLAYBACK_SKIP_INTERVAL", c.Playback.SkipInterval)

	c.Resolver.Workers = envOrDefaultInt("RESOLVER_WORKERS", c.Resolver.Workers)
	c.Resolver.QueueSize = envOrDefaultInt("RESOLVER_QUEUE_SIZE", c.Resolver.QueueSize)

	c.Kafka.Enabled = envOrDefaultBool("KAFKA_ENABLED", c.Kafka.Enabled)
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
	}
	c.Kafka.TopicEdits = envOrDefault("KAFKA_TOPIC_EDITS", c.Kafka.TopicEdits)
	c.Kafka.TopicConfirmed = envOrDefault("KAFKA_TOPIC_CONFIRMED", c.Kafka.TopicConfirmed)
	c.Kafka.Principal = envOrDefault("KAFKA_PRINCIPAL", c.Kafka.Principal)
	if c.Kafka.Principal == "" {
		c.Kafka.Principal = c.Service.Principal
	}

	c.Observability.LogLevel = envOrDefault("LOG_LEVEL", c.Observability.LogLevel)
	c.Observability.LogFormat = envOrDefault("LOG_FORMAT", c.Observability.LogFormat)
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envOrDefaultFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
