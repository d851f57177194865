package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535
)

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Redis     RedisConfig     `yaml:"redis"`
	Jobs      JobsConfig      `yaml:"jobs"`
	Storage   StorageConfig   `yaml:"storage"`
	SMTP      SMTPConfig      `yaml:"smtp"`
	Engine    EngineConfig    `yaml:"engine"`
	Cleanup   CleanupConfig   `yaml:"cleanup"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
	Logging   LoggingConfig   `yaml:"logging"`
	App       AppConfig       `yaml:"app"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	BaseURL         string        `yaml:"base_url"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// RedisConfig holds the record store connection configuration
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// JobsConfig holds the job lifecycle and admission settings
type JobsConfig struct {
	// TTL is the record lifetime, reset on every state change.
	TTL            time.Duration `yaml:"ttl"`
	Concurrency    int           `yaml:"concurrency"`
	QueueSize      int           `yaml:"queue_size"`
	ProcessTimeout time.Duration `yaml:"process_timeout"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes"`
	AllowedModels  []string      `yaml:"allowed_models"`
	AllowedFormats []string      `yaml:"allowed_formats"`
}

// StorageConfig selects and configures the artifact backend
type StorageConfig struct {
	// Variant is "local" or "s3"; a deployment-time decision, not
	// per-request.
	Variant string           `yaml:"variant"`
	Local   LocalStoreConfig `yaml:"local"`
	S3      S3StoreConfig    `yaml:"s3"`
}

// LocalStoreConfig holds the filesystem variant settings
type LocalStoreConfig struct {
	Dir string `yaml:"dir"`
}

// S3StoreConfig holds the object-storage variant settings
type S3StoreConfig struct {
	Endpoint      string        `yaml:"endpoint"`
	Bucket        string        `yaml:"bucket"`
	AccessKey     string        `yaml:"access_key"`
	SecretKey     string        `yaml:"secret_key"`
	UseSSL        bool          `yaml:"use_ssl"`
	PresignExpiry time.Duration `yaml:"presign_expiry"`
}

// SMTPConfig holds the notification transport settings
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// EngineConfig holds the removal model endpoint settings
type EngineConfig struct {
	Endpoint string        `yaml:"endpoint"`
	Timeout  time.Duration `yaml:"timeout"`
}

// CleanupConfig holds the janitor schedule
type CleanupConfig struct {
	Interval   time.Duration `yaml:"interval"`
	StartDelay time.Duration `yaml:"start_delay"`
}

// RateLimitConfig holds the per-route admission windows
type RateLimitConfig struct {
	BurstLimit      int           `yaml:"burst_limit"`
	BurstWindow     time.Duration `yaml:"burst_window"`
	SustainedLimit  int           `yaml:"sustained_limit"`
	SustainedWindow time.Duration `yaml:"sustained_window"`
	DownloadLimit   int           `yaml:"download_limit"`
	DownloadWindow  time.Duration `yaml:"download_window"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level"`
	Format       string `yaml:"format"`
	Output       string `yaml:"output"`
	EnableCaller bool   `yaml:"enable_caller"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// Load reads and parses the configuration file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyDefaults()

	return &config, nil
}

// applyDefaults fills the optional knobs that have sensible values
func (c *Config) applyDefaults() {
	if c.Jobs.TTL <= 0 {
		c.Jobs.TTL = 24 * time.Hour
	}
	if c.Jobs.Concurrency <= 0 {
		c.Jobs.Concurrency = 4
	}
	if c.Jobs.QueueSize <= 0 {
		c.Jobs.QueueSize = 64
	}
	if c.Jobs.MaxUploadBytes <= 0 {
		c.Jobs.MaxUploadBytes = 5 * 1024 * 1024
	}
	if len(c.Jobs.AllowedModels) == 0 {
		c.Jobs.AllowedModels = []string{"u2net", "u2netp", "u2net_human_seg"}
	}
	if len(c.Jobs.AllowedFormats) == 0 {
		c.Jobs.AllowedFormats = []string{"png", "jpg", "jpeg"}
	}
	if c.Cleanup.Interval <= 0 {
		c.Cleanup.Interval = time.Hour
	}
	if c.Cleanup.StartDelay <= 0 {
		c.Cleanup.StartDelay = 10 * time.Second
	}
	if c.RateLimit.BurstLimit <= 0 {
		c.RateLimit.BurstLimit = 1
	}
	if c.RateLimit.BurstWindow <= 0 {
		c.RateLimit.BurstWindow = 15 * time.Second
	}
	if c.RateLimit.SustainedLimit <= 0 {
		c.RateLimit.SustainedLimit = 5
	}
	if c.RateLimit.SustainedWindow <= 0 {
		c.RateLimit.SustainedWindow = time.Minute
	}
	if c.RateLimit.DownloadLimit <= 0 {
		c.RateLimit.DownloadLimit = 20
	}
	if c.RateLimit.DownloadWindow <= 0 {
		c.RateLimit.DownloadWindow = time.Minute
	}
	if c.Storage.Variant == "" {
		c.Storage.Variant = "local"
	}
	if c.Storage.Local.Dir == "" {
		c.Storage.Local.Dir = "processed_images"
	}
	if c.Storage.S3.PresignExpiry <= 0 {
		c.Storage.S3.PresignExpiry = time.Hour
	}
	if c.Server.BaseURL == "" {
		c.Server.BaseURL = "http://localhost:8000"
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}

	if c.Redis.Addr == "" {
		return fmt.Errorf("redis addr is required")
	}

	switch c.Storage.Variant {
	case "local":
		if c.Storage.Local.Dir == "" {
			return fmt.Errorf("storage local dir is required")
		}
	case "s3":
		if c.Storage.S3.Endpoint == "" {
			return fmt.Errorf("storage s3 endpoint is required")
		}
		if c.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage s3 bucket is required")
		}
		if c.Storage.S3.AccessKey == "" || c.Storage.S3.SecretKey == "" {
			return fmt.Errorf("storage s3 credentials are required")
		}
	default:
		return fmt.Errorf("unknown storage variant: %q (must be local or s3)", c.Storage.Variant)
	}

	if c.Engine.Endpoint == "" {
		return fmt.Errorf("engine endpoint is required")
	}

	if c.SMTP.Host == "" {
		return fmt.Errorf("smtp host is required")
	}

	if c.SMTP.Port < MinPort || c.SMTP.Port > MaxPort {
		return fmt.Errorf("invalid smtp port: %d (must be between %d and %d)", c.SMTP.Port, MinPort, MaxPort)
	}

	return nil
}
