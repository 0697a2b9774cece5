package config

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all gateway configuration.
type Config struct {
	Server    ServerConfig
	Logging   LogConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Guard     GuardConfig
	Artifact  ArtifactConfig
	Registry  RegistryConfig
	Storage   StorageConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8000"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// AuthConfig holds request signing configuration.
type AuthConfig struct {
	SharedSecret string `envconfig:"SHARED_SECRET"`
	Enabled      bool   `envconfig:"AUTH_ENABLED" default:"true"`
}

// RateLimitConfig holds rate limiting configuration for both the core
// per-caller limiter and the outer per-IP HTTP middleware.
type RateLimitConfig struct {
	Capacity          int           `envconfig:"RATE_LIMIT_CAPACITY" default:"100"`
	RefillPerSecond   float64       `envconfig:"RATE_LIMIT_REFILL" default:"50"`
	IdleTimeout       time.Duration `envconfig:"RATE_LIMIT_IDLE_TIMEOUT" default:"1h"`
	RequestsPerSecond int           `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int           `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool          `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// GuardConfig holds path validation configuration.
type GuardConfig struct {
	WorkspacesRoot string `envconfig:"WORKSPACES_ROOT" default:"/srv/sheen/workspaces"`
	MaxFileSize    int64  `envconfig:"GUARD_MAX_FILE_SIZE" default:"10485760"`
	PolicyFile     string `envconfig:"GUARD_POLICY_FILE"`
}

// ArtifactConfig holds build artifact cache configuration.
type ArtifactConfig struct {
	ScratchDir        string        `envconfig:"ARTIFACT_SCRATCH_DIR" default:"/tmp/workspace-gateway/artifacts"`
	MaxArchiveSize    int64         `envconfig:"ARTIFACT_MAX_ARCHIVE_SIZE" default:"104857600"`
	MaxEntries        int           `envconfig:"ARTIFACT_MAX_ENTRIES" default:"10000"`
	MaxEntrySize      int64         `envconfig:"ARTIFACT_MAX_ENTRY_SIZE" default:"10485760"`
	ExtractionTimeout time.Duration `envconfig:"ARTIFACT_EXTRACTION_TIMEOUT" default:"30s"`
	CacheTTL          time.Duration `envconfig:"ARTIFACT_CACHE_TTL" default:"5m"`
	SweepInterval     time.Duration `envconfig:"ARTIFACT_SWEEP_INTERVAL" default:"1m"`
}

// RegistryConfig holds build registry lookup configuration.
type RegistryConfig struct {
	BaseURL    string        `envconfig:"REGISTRY_URL" default:"http://localhost:3001"`
	Timeout    time.Duration `envconfig:"REGISTRY_TIMEOUT" default:"10s"`
	MaxRetries int           `envconfig:"REGISTRY_MAX_RETRIES" default:"3"`
}

// StorageConfig holds artifact object storage configuration.
type StorageConfig struct {
	Bucket         string `envconfig:"STORAGE_BUCKET" default:"sheen-build-artifacts"`
	Region         string `envconfig:"STORAGE_REGION" default:"us-east-1"`
	Endpoint       string `envconfig:"STORAGE_ENDPOINT"`
	ForcePathStyle bool   `envconfig:"STORAGE_FORCE_PATH_STYLE" default:"false"`
}

// PatternPolicy holds the blocked/allowed glob lists, optionally loaded from
// a YAML policy file. An empty Allowed list means allow everything.
type PatternPolicy struct {
	Blocked []string `yaml:"blocked"`
	Allowed []string `yaml:"allowed"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// LoadPatternPolicy reads a YAML pattern policy file. A missing path returns
// the zero policy so callers fall back to compiled-in defaults.
func LoadPatternPolicy(path string) (*PatternPolicy, error) {
	if path == "" {
		return &PatternPolicy{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}
	var policy PatternPolicy
	if err := yaml.Unmarshal(data, &policy); err != nil {
		return nil, fmt.Errorf("failed to parse policy file: %w", err)
	}
	return &policy, nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8000",
			Host: "0.0.0.0",
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		Auth: AuthConfig{
			Enabled: true,
		},
		RateLimit: RateLimitConfig{
			Capacity:          100,
			RefillPerSecond:   50,
			IdleTimeout:       time.Hour,
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
		Guard: GuardConfig{
			WorkspacesRoot: "/srv/sheen/workspaces",
			MaxFileSize:    10 * 1024 * 1024,
		},
		Artifact: ArtifactConfig{
			ScratchDir:        "/tmp/workspace-gateway/artifacts",
			MaxArchiveSize:    100 * 1024 * 1024,
			MaxEntries:        10000,
			MaxEntrySize:      10 * 1024 * 1024,
			ExtractionTimeout: 30 * time.Second,
			CacheTTL:          5 * time.Minute,
			SweepInterval:     time.Minute,
		},
		Registry: RegistryConfig{
			BaseURL:    "http://localhost:3001",
			Timeout:    10 * time.Second,
			MaxRetries: 3,
		},
		Storage: StorageConfig{
			Bucket: "sheen-build-artifacts",
			Region: "us-east-1",
		},
	}
}
