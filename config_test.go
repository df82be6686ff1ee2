package filegate

import (
	"errors"
	"reflect"
	"testing"

	"github.com/gobeaver/filegate/filevalidator"
)

func TestGetConfig(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		check   func(t *testing.T, cfg *Config)
	}{
		{
			name:    "default values",
			envVars: map[string]string{},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Driver != "local" {
					t.Errorf("Driver = %v, want local", cfg.Driver)
				}
				if cfg.LocalBasePath != "./storage" {
					t.Errorf("LocalBasePath = %v, want ./storage", cfg.LocalBasePath)
				}
				if cfg.IncomingBucket != "incoming" || cfg.ValidatedBucket != "validated" || cfg.QuarantineBucket != "quarantine" {
					t.Errorf("buckets = %s/%s/%s", cfg.IncomingBucket, cfg.ValidatedBucket, cfg.QuarantineBucket)
				}
				if cfg.MaxFileSize != 52428800 {
					t.Errorf("MaxFileSize = %v, want 52428800", cfg.MaxFileSize)
				}
				if !cfg.ThreatScan || !cfg.Fingerprint {
					t.Errorf("ThreatScan = %v, Fingerprint = %v, want both enabled", cfg.ThreatScan, cfg.Fingerprint)
				}
				if cfg.RequireAllowedDetectedType {
					t.Error("RequireAllowedDetectedType should be off by default")
				}
				if cfg.StoreDriver != "memory" {
					t.Errorf("StoreDriver = %v, want memory", cfg.StoreDriver)
				}
				if cfg.Notifier != "log" {
					t.Errorf("Notifier = %v, want log", cfg.Notifier)
				}
				if cfg.AdmitConcurrency != 4 {
					t.Errorf("AdmitConcurrency = %v, want 4", cfg.AdmitConcurrency)
				}
				if cfg.S3PollInterval != 10 {
					t.Errorf("S3PollInterval = %v, want 10", cfg.S3PollInterval)
				}
			},
		},
		{
			name: "s3 configuration",
			envVars: map[string]string{
				"BEAVER_FILEGATE_DRIVER":               "s3",
				"BEAVER_FILEGATE_S3_REGION":            "us-west-2",
				"BEAVER_FILEGATE_S3_ACCESS_KEY_ID":     "test-key",
				"BEAVER_FILEGATE_S3_SECRET_ACCESS_KEY": "test-secret",
				"BEAVER_FILEGATE_S3_ENDPOINT":          "http://localhost:9000",
				"BEAVER_FILEGATE_S3_FORCE_PATH_STYLE":  "true",
				"BEAVER_FILEGATE_INCOMING_BUCKET":      "uploads",
				"BEAVER_FILEGATE_QUARANTINE_PREFIX":    "held/",
			},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Driver != "s3" || cfg.S3Region != "us-west-2" {
					t.Errorf("Driver = %v, S3Region = %v", cfg.Driver, cfg.S3Region)
				}
				if cfg.S3AccessKeyID != "test-key" || cfg.S3SecretAccessKey != "test-secret" {
					t.Errorf("credentials = %v/%v", cfg.S3AccessKeyID, cfg.S3SecretAccessKey)
				}
				if cfg.S3Endpoint != "http://localhost:9000" || !cfg.S3ForcePathStyle {
					t.Errorf("S3Endpoint = %v, S3ForcePathStyle = %v", cfg.S3Endpoint, cfg.S3ForcePathStyle)
				}
				if cfg.IncomingBucket != "uploads" || cfg.QuarantinePrefix != "held/" {
					t.Errorf("IncomingBucket = %v, QuarantinePrefix = %v", cfg.IncomingBucket, cfg.QuarantinePrefix)
				}
			},
		},
		{
			name: "validation configuration",
			envVars: map[string]string{
				"BEAVER_FILEGATE_MAX_FILE_SIZE":                 "5242880",
				"BEAVER_FILEGATE_ALLOWED_CONTENT_TYPES":         "application/pdf,image/png",
				"BEAVER_FILEGATE_THREAT_SCAN":                   "false",
				"BEAVER_FILEGATE_REQUIRE_ALLOWED_DETECTED_TYPE": "true",
			},
			check: func(t *testing.T, cfg *Config) {
				if cfg.MaxFileSize != 5242880 {
					t.Errorf("MaxFileSize = %v, want 5242880", cfg.MaxFileSize)
				}
				if cfg.AllowedContentTypes != "application/pdf,image/png" {
					t.Errorf("AllowedContentTypes = %v", cfg.AllowedContentTypes)
				}
				if cfg.ThreatScan {
					t.Error("ThreatScan should be disabled")
				}
				if !cfg.RequireAllowedDetectedType {
					t.Error("RequireAllowedDetectedType should be enabled")
				}
			},
		},
		{
			name: "store and notifier configuration",
			envVars: map[string]string{
				"BEAVER_FILEGATE_STORE_DRIVER": "postgres",
				"BEAVER_FILEGATE_STORE_DSN":    "postgres://localhost/filegate",
				"BEAVER_FILEGATE_NOTIFIER":     "redis",
				"BEAVER_FILEGATE_REDIS_DB":     "3",
				"BEAVER_FILEGATE_LOG_FORMAT":   "json",
			},
			check: func(t *testing.T, cfg *Config) {
				if cfg.StoreDriver != "postgres" || cfg.StoreDSN != "postgres://localhost/filegate" {
					t.Errorf("StoreDriver = %v, StoreDSN = %v", cfg.StoreDriver, cfg.StoreDSN)
				}
				if cfg.Notifier != "redis" || cfg.RedisDB != 3 {
					t.Errorf("Notifier = %v, RedisDB = %v", cfg.Notifier, cfg.RedisDB)
				}
				if cfg.LogFormat != "json" {
					t.Errorf("LogFormat = %v, want json", cfg.LogFormat)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			cfg, err := GetConfig()
			if err != nil {
				t.Fatalf("GetConfig() error = %v", err)
			}
			tt.check(t, cfg)
		})
	}
}

func TestWithPrefix(t *testing.T) {
	t.Setenv("ACME_FILEGATE_DRIVER", "memory")
	t.Setenv("ACME_FILEGATE_INCOMING_BUCKET", "inbox")

	cfg, err := WithPrefix("ACME_").Config()
	if err != nil {
		t.Fatalf("Config() error = %v", err)
	}
	if cfg.Driver != "memory" || cfg.IncomingBucket != "inbox" {
		t.Errorf("Driver = %v, IncomingBucket = %v", cfg.Driver, cfg.IncomingBucket)
	}
}

func validConfig() *Config {
	return &Config{
		Driver:           "memory",
		IncomingBucket:   "incoming",
		ValidatedBucket:  "validated",
		QuarantineBucket: "quarantine",
		StoreDriver:      "memory",
		Notifier:         "log",
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
		is      error
	}{
		{name: "valid", modify: func(*Config) {}},
		{name: "missing driver", modify: func(c *Config) { c.Driver = "" }, wantErr: true},
		{name: "unknown driver", modify: func(c *Config) { c.Driver = "ftp" }, wantErr: true, is: ErrUnknownDriver},
		{name: "local without base path", modify: func(c *Config) { c.Driver = "local" }, wantErr: true},
		{name: "local with base path", modify: func(c *Config) { c.Driver = "local"; c.LocalBasePath = "/tmp" }},
		{name: "s3 without credentials", modify: func(c *Config) { c.Driver = "s3" }},
		{name: "missing quarantine bucket", modify: func(c *Config) { c.QuarantineBucket = "" }, wantErr: true},
		{name: "quarantine inside incoming without prefix", modify: func(c *Config) { c.QuarantineBucket = c.IncomingBucket }, wantErr: true},
		{name: "validated inside incoming with prefix", modify: func(c *Config) { c.ValidatedBucket = c.IncomingBucket; c.ValidatedPrefix = "validated" }},
		{name: "sqlite without dsn", modify: func(c *Config) { c.StoreDriver = "sqlite" }, wantErr: true},
		{name: "postgres with dsn", modify: func(c *Config) { c.StoreDriver = "postgres"; c.StoreDSN = "postgres://x" }},
		{name: "unknown store", modify: func(c *Config) { c.StoreDriver = "mongo" }, wantErr: true},
		{name: "redis without address", modify: func(c *Config) { c.Notifier = "redis" }, wantErr: true},
		{name: "notifications disabled", modify: func(c *Config) { c.Notifier = "none" }},
		{name: "unknown notifier", modify: func(c *Config) { c.Notifier = "smtp" }, wantErr: true},
		{name: "negative max size", modify: func(c *Config) { c.MaxFileSize = -1 }, wantErr: true, is: ErrInvalidSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(cfg)
			err := validateConfig(cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("validateConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.is != nil && !errors.Is(err, tt.is) {
				t.Errorf("validateConfig() error = %v, want %v", err, tt.is)
			}
		})
	}

	if err := validateConfig(nil); err == nil {
		t.Error("validateConfig(nil) should fail")
	}
}

func TestValidationOptions(t *testing.T) {
	t.Run("empty config keeps invoice defaults", func(t *testing.T) {
		opts := (&Config{ThreatScan: true, Fingerprint: true}).ValidationOptions()
		if !reflect.DeepEqual(opts, filevalidator.DefaultOptions()) {
			t.Errorf("ValidationOptions() = %+v, want defaults", opts)
		}
	})

	t.Run("overrides", func(t *testing.T) {
		cfg := &Config{
			MaxFileSize:                1024,
			AllowedContentTypes:        " application/pdf , ,image/png",
			RequireAllowedDetectedType: true,
		}
		opts := cfg.ValidationOptions()
		if opts.MaxSizeBytes != 1024 {
			t.Errorf("MaxSizeBytes = %d, want 1024", opts.MaxSizeBytes)
		}
		want := []string{"application/pdf", "image/png"}
		if !reflect.DeepEqual(opts.AllowedContentTypes, want) {
			t.Errorf("AllowedContentTypes = %v, want %v", opts.AllowedContentTypes, want)
		}
		if opts.PerformThreatScan || opts.ComputeFingerprint {
			t.Error("threat scan and fingerprint should follow the config flags")
		}
		if !opts.RequireAllowedDetectedType {
			t.Error("RequireAllowedDetectedType should be set")
		}
	})
}

func TestSplitList(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"   ", nil},
		{"a", []string{"a"}},
		{"a, b ,,c", []string{"a", "b", "c"}},
	}
	for _, tt := range tests {
		if got := splitList(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("splitList(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
