package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func loadIn(t *testing.T, dir string) *Config {
	t.Helper()
	t.Chdir(dir)
	cfg, err := LoadFrom(viper.New())
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func TestLoad_Defaults(t *testing.T) {
	cfg := loadIn(t, t.TempDir())

	if cfg.StorageBackend != "local" || cfg.ImagesRoot != "images" {
		t.Errorf("unexpected storage defaults: %+v", cfg.StorageOptions())
	}
	if cfg.Concurrency != 1 || cfg.Threshold != 80 || cfg.Retries != 1 {
		t.Errorf("unexpected run defaults: concurrency=%d threshold=%d retries=%d", cfg.Concurrency, cfg.Threshold, cfg.Retries)
	}
	if cfg.RetryWait != time.Second {
		t.Errorf("expected retry-wait 1s, got %v", cfg.RetryWait)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
	if err := cfg.ValidateCatalog(); err == nil {
		t.Error("expected missing token to be rejected")
	}
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	dir := t.TempDir()
	file := "storage-backend: s3\ns3-bucket: from-file\nconcurrency: 3\nretry-wait: 250ms\n"
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(file), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("IMGSYNC_S3_BUCKET", "from-env")
	t.Setenv("IMGSYNC_CATALOG_TOKEN", "secret")

	cfg := loadIn(t, dir)

	if cfg.StorageBackend != "s3" || cfg.Concurrency != 3 {
		t.Errorf("config file not applied: %+v", cfg)
	}
	if cfg.S3Bucket != "from-env" {
		t.Errorf("expected env to win, got %q", cfg.S3Bucket)
	}
	if cfg.RetryWait != 250*time.Millisecond {
		t.Errorf("expected 250ms, got %v", cfg.RetryWait)
	}
	if err := cfg.ValidateCatalog(); err != nil {
		t.Errorf("token from env should validate: %v", err)
	}
}

func TestLoad_EnvironmentOnlyKeys(t *testing.T) {
	t.Setenv("IMGSYNC_CATALOG_TOKEN", "secret")
	t.Setenv("IMGSYNC_S3_BUCKET", "bucket")
	t.Setenv("IMGSYNC_S3_PREFIX", "pool/")
	t.Setenv("IMGSYNC_DRIVE_FOLDER_ID", "folder-1")
	t.Setenv("IMGSYNC_DRIVE_CREDENTIALS_FILE", "creds.json")

	cfg := loadIn(t, t.TempDir())

	if cfg.CatalogToken != "secret" {
		t.Errorf("expected token from env, got %q", cfg.CatalogToken)
	}
	opts := cfg.StorageOptions()
	if opts.Bucket != "bucket" || opts.Prefix != "pool/" {
		t.Errorf("s3 settings not read from env: %+v", opts)
	}
	if opts.DriveFolderID != "folder-1" || opts.CredentialsFile != "creds.json" {
		t.Errorf("drive settings not read from env: %+v", opts)
	}
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("IMGSYNC_VENDOR_ATTRIBUTE=supplier\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("IMGSYNC_VENDOR_ATTRIBUTE") })

	cfg := loadIn(t, dir)

	if cfg.VendorAttribute != "supplier" {
		t.Errorf("expected .env value, got %q", cfg.VendorAttribute)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			VendorsFile:    "vendors.yaml",
			StorageBackend: "local",
			ImagesRoot:     "images",
			Concurrency:    1,
			Threshold:      80,
			JPEGQuality:    85,
			LogFormat:      "text",
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty vendors file", func(c *Config) { c.VendorsFile = "" }},
		{"unknown backend", func(c *Config) { c.StorageBackend = "ftp" }},
		{"s3 without bucket", func(c *Config) { c.StorageBackend = "s3" }},
		{"drive without folder", func(c *Config) { c.StorageBackend = "drive" }},
		{"durable without fsm path", func(c *Config) { c.Durable = true }},
		{"zero concurrency", func(c *Config) { c.Concurrency = 0 }},
		{"threshold above 100", func(c *Config) { c.Threshold = 101 }},
		{"negative retries", func(c *Config) { c.Retries = -1 }},
		{"negative run budget", func(c *Config) { c.MaxRunBytes = -1 }},
		{"jpeg quality zero", func(c *Config) { c.JPEGQuality = 0 }},
		{"unknown log format", func(c *Config) { c.LogFormat = "xml" }},
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("baseline should validate: %v", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
