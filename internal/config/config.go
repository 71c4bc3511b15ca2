package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/imgsync/imgsync/pkg/storage"
)

// Config holds all application configuration
type Config struct {
	// Catalog API
	CatalogBaseURL    string        `mapstructure:"catalog-base-url"`
	CatalogToken      string        `mapstructure:"catalog-token"`
	CatalogAPIVersion string        `mapstructure:"catalog-api-version"`
	VendorAttribute   string        `mapstructure:"vendor-attribute"`
	Retries           int           `mapstructure:"retries"`
	RetryWait         time.Duration `mapstructure:"retry-wait"`
	RequestTimeout    time.Duration `mapstructure:"request-timeout"`

	// Vendor rule table
	VendorsFile string `mapstructure:"vendors-file"`

	// Image pool
	StorageBackend       string `mapstructure:"storage-backend"`
	ImagesRoot           string `mapstructure:"images-root"`
	S3Bucket             string `mapstructure:"s3-bucket"`
	S3Prefix             string `mapstructure:"s3-prefix"`
	S3Region             string `mapstructure:"s3-region"`
	DriveFolderID        string `mapstructure:"drive-folder-id"`
	DriveCredentialsFile string `mapstructure:"drive-credentials-file"`

	// Database paths
	LedgerPath string `mapstructure:"ledger-path"`
	FSMDBPath  string `mapstructure:"fsm-db-path"`

	// Run tuning
	Concurrency int `mapstructure:"concurrency"`
	Threshold   int `mapstructure:"threshold"`

	// Security limits
	MaxImageSize int64 `mapstructure:"max-image-size"`
	MaxRunBytes  int64 `mapstructure:"max-run-bytes"`

	// Image preparation
	MaxImageDimension int `mapstructure:"max-image-dimension"`
	JPEGQuality       int `mapstructure:"jpeg-quality"`

	// FSM configuration
	Durable       bool `mapstructure:"durable"`
	FSMMaxRetries int  `mapstructure:"fsm-max-retries"`

	// Logging
	LogLevel  string `mapstructure:"log-level"`
	LogFormat string `mapstructure:"log-format"`
}

// SetDefaults registers the default value of every key. Keys without a
// default are invisible to Unmarshal when they only come from the
// environment, so even empty ones are listed.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("catalog-base-url", "https://connect.squareup.com")
	v.SetDefault("catalog-token", "")
	v.SetDefault("catalog-api-version", "2024-10-17")
	v.SetDefault("vendor-attribute", "vendor")
	v.SetDefault("retries", 1)
	v.SetDefault("retry-wait", time.Second)
	v.SetDefault("request-timeout", 30*time.Second)
	v.SetDefault("vendors-file", "vendors.yaml")
	v.SetDefault("storage-backend", storage.BackendLocal)
	v.SetDefault("images-root", "images")
	v.SetDefault("s3-bucket", "")
	v.SetDefault("s3-prefix", "")
	v.SetDefault("s3-region", "us-east-1")
	v.SetDefault("drive-folder-id", "")
	v.SetDefault("drive-credentials-file", "")
	v.SetDefault("ledger-path", ".artifacts/imgsync.db")
	v.SetDefault("fsm-db-path", ".artifacts/fsm")
	v.SetDefault("concurrency", 1)
	v.SetDefault("threshold", 80)
	v.SetDefault("max-image-size", 20*1024*1024)
	v.SetDefault("max-run-bytes", 0)
	v.SetDefault("max-image-dimension", 2048)
	v.SetDefault("jpeg-quality", 85)
	v.SetDefault("durable", false)
	v.SetDefault("fsm-max-retries", 5)
	v.SetDefault("log-level", "info")
	v.SetDefault("log-format", "text")
}

// Load reads configuration from .env, environment, config file, and defaults
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom is Load on a specific viper instance.
func LoadFrom(v *viper.Viper) (*Config, error) {
	// .env is optional; real environment variables take precedence.
	_ = godotenv.Load()

	SetDefaults(v)

	// Environment variables (will be IMGSYNC_CATALOG_TOKEN, etc.)
	v.SetEnvPrefix("IMGSYNC")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.imgsync")

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Validate checks configuration for errors
func (c *Config) Validate() error {
	if c.VendorsFile == "" {
		return fmt.Errorf("vendors-file cannot be empty")
	}
	switch c.StorageBackend {
	case storage.BackendLocal:
		if c.ImagesRoot == "" {
			return fmt.Errorf("images-root cannot be empty for the local backend")
		}
	case storage.BackendS3:
		if c.S3Bucket == "" {
			return fmt.Errorf("s3-bucket cannot be empty for the s3 backend")
		}
	case storage.BackendDrive:
		if c.DriveFolderID == "" {
			return fmt.Errorf("drive-folder-id cannot be empty for the drive backend")
		}
	default:
		return fmt.Errorf("unknown storage-backend %q", c.StorageBackend)
	}
	if c.Durable && c.FSMDBPath == "" {
		return fmt.Errorf("fsm-db-path cannot be empty when durable is set")
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1")
	}
	if c.Threshold < 1 || c.Threshold > 100 {
		return fmt.Errorf("threshold must be between 1 and 100")
	}
	if c.Retries < 0 {
		return fmt.Errorf("retries must be non-negative")
	}
	if c.MaxImageSize < 0 || c.MaxRunBytes < 0 {
		return fmt.Errorf("size limits must be non-negative")
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		return fmt.Errorf("jpeg-quality must be between 1 and 100")
	}
	if c.FSMMaxRetries < 0 {
		return fmt.Errorf("fsm-max-retries must be non-negative")
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log-format %q", c.LogFormat)
	}
	return nil
}

// ValidateCatalog checks the settings needed to talk to the catalog.
func (c *Config) ValidateCatalog() error {
	if c.CatalogToken == "" {
		return fmt.Errorf("catalog-token cannot be empty (set IMGSYNC_CATALOG_TOKEN)")
	}
	if c.CatalogBaseURL == "" {
		return fmt.Errorf("catalog-base-url cannot be empty")
	}
	return nil
}

// StorageOptions maps the image pool settings onto storage.Options.
func (c *Config) StorageOptions() storage.Options {
	return storage.Options{
		Backend:         c.StorageBackend,
		Root:            c.ImagesRoot,
		Bucket:          c.S3Bucket,
		Prefix:          c.S3Prefix,
		Region:          c.S3Region,
		DriveFolderID:   c.DriveFolderID,
		CredentialsFile: c.DriveCredentialsFile,
	}
}
