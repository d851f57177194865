package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name      string
		filePath  string
		wantErr   bool
		errString string
	}{
		{
			name:     "valid config file",
			filePath: "testdata/valid_config.yaml",
			wantErr:  false,
		},
		{
			name:      "non-existent file",
			filePath:  "testdata/nonexistent.yaml",
			wantErr:   true,
			errString: "failed to read config file",
		},
		{
			name:      "malformed yaml",
			filePath:  "testdata/malformed.yaml",
			wantErr:   true,
			errString: "failed to parse config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(tt.filePath)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
				assert.Nil(t, cfg)
			} else {
				require.NoError(t, err)
				require.NotNil(t, cfg)

				assert.Equal(t, 8000, cfg.Server.Port)
				assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
				assert.Equal(t, 24*time.Hour, cfg.Jobs.TTL)
				assert.Equal(t, "local", cfg.Storage.Variant)
				assert.Equal(t, []string{"u2net", "u2netp", "u2net_human_seg"}, cfg.Jobs.AllowedModels)
				assert.Equal(t, "http://localhost:7000/api/remove", cfg.Engine.Endpoint)
				assert.Equal(t, "cutout-service", cfg.App.Name)
			}
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("testdata/minimal_config.yaml")
	require.NoError(t, err)

	assert.Equal(t, 24*time.Hour, cfg.Jobs.TTL)
	assert.Equal(t, 4, cfg.Jobs.Concurrency)
	assert.Equal(t, 64, cfg.Jobs.QueueSize)
	assert.Equal(t, int64(5*1024*1024), cfg.Jobs.MaxUploadBytes)
	assert.Equal(t, []string{"png", "jpg", "jpeg"}, cfg.Jobs.AllowedFormats)
	assert.Equal(t, time.Hour, cfg.Cleanup.Interval)
	assert.Equal(t, 10*time.Second, cfg.Cleanup.StartDelay)
	assert.Equal(t, 1, cfg.RateLimit.BurstLimit)
	assert.Equal(t, 15*time.Second, cfg.RateLimit.BurstWindow)
	assert.Equal(t, 5, cfg.RateLimit.SustainedLimit)
	assert.Equal(t, 20, cfg.RateLimit.DownloadLimit)
	assert.Equal(t, "local", cfg.Storage.Variant)
	assert.Equal(t, time.Hour, cfg.Storage.S3.PresignExpiry)
	assert.Equal(t, "http://localhost:8000", cfg.Server.BaseURL)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{
			Server: ServerConfig{Port: 8000},
			Redis:  RedisConfig{Addr: "localhost:6379"},
			Storage: StorageConfig{
				Variant: "local",
				Local:   LocalStoreConfig{Dir: "processed_images"},
			},
			Engine: EngineConfig{Endpoint: "http://localhost:7000/api/remove"},
			SMTP:   SMTPConfig{Host: "smtp.example.com", Port: 587},
		}
		return cfg
	}

	tests := []struct {
		name      string
		mutate    func(*Config)
		wantErr   bool
		errString string
	}{
		{
			name:    "valid local config",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name: "valid s3 config",
			mutate: func(c *Config) {
				c.Storage.Variant = "s3"
				c.Storage.S3 = S3StoreConfig{
					Endpoint:  "localhost:9000",
					Bucket:    "cutout",
					AccessKey: "key",
					SecretKey: "secret",
				}
			},
			wantErr: false,
		},
		{
			name:      "invalid server port",
			mutate:    func(c *Config) { c.Server.Port = 0 },
			wantErr:   true,
			errString: "invalid server port",
		},
		{
			name:      "missing redis addr",
			mutate:    func(c *Config) { c.Redis.Addr = "" },
			wantErr:   true,
			errString: "redis addr is required",
		},
		{
			name:      "unknown storage variant",
			mutate:    func(c *Config) { c.Storage.Variant = "gcs" },
			wantErr:   true,
			errString: "unknown storage variant",
		},
		{
			name: "s3 variant without bucket",
			mutate: func(c *Config) {
				c.Storage.Variant = "s3"
				c.Storage.S3 = S3StoreConfig{Endpoint: "localhost:9000", AccessKey: "k", SecretKey: "s"}
			},
			wantErr:   true,
			errString: "s3 bucket is required",
		},
		{
			name: "s3 variant without credentials",
			mutate: func(c *Config) {
				c.Storage.Variant = "s3"
				c.Storage.S3 = S3StoreConfig{Endpoint: "localhost:9000", Bucket: "cutout"}
			},
			wantErr:   true,
			errString: "s3 credentials are required",
		},
		{
			name:      "missing engine endpoint",
			mutate:    func(c *Config) { c.Engine.Endpoint = "" },
			wantErr:   true,
			errString: "engine endpoint is required",
		},
		{
			name:      "missing smtp host",
			mutate:    func(c *Config) { c.SMTP.Host = "" },
			wantErr:   true,
			errString: "smtp host is required",
		},
		{
			name:      "invalid smtp port",
			mutate:    func(c *Config) { c.SMTP.Port = 99999 },
			wantErr:   true,
			errString: "invalid smtp port",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
			} else {
				require.NoError(t, err)
			}
		})
	}
}
