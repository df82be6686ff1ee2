package filegate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gobeaver/beaver-kit/config"
	"github.com/gobeaver/filegate/filevalidator"
)

type Config struct {
	// Storage driver shared by all three buckets (memory, local, s3)
	Driver string `env:"FILEGATE_DRIVER,default:local"`

	// Local driver configuration. Each bucket is a directory below the base path.
	LocalBasePath string `env:"FILEGATE_LOCAL_BASE_PATH,default:./storage"`

	// S3 driver configuration
	S3Region          string `env:"FILEGATE_S3_REGION,default:us-east-1"`
	S3Endpoint        string `env:"FILEGATE_S3_ENDPOINT"`
	S3AccessKeyID     string `env:"FILEGATE_S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"FILEGATE_S3_SECRET_ACCESS_KEY"`
	S3ForcePathStyle  bool   `env:"FILEGATE_S3_FORCE_PATH_STYLE,default:false"`
	S3PollInterval    int    `env:"FILEGATE_S3_POLL_INTERVAL,default:10"` // seconds

	// Buckets
	IncomingBucket   string `env:"FILEGATE_INCOMING_BUCKET,default:incoming"`
	IncomingPrefix   string `env:"FILEGATE_INCOMING_PREFIX"`
	ValidatedBucket  string `env:"FILEGATE_VALIDATED_BUCKET,default:validated"`
	ValidatedPrefix  string `env:"FILEGATE_VALIDATED_PREFIX"`
	QuarantineBucket string `env:"FILEGATE_QUARANTINE_BUCKET,default:quarantine"`
	QuarantinePrefix string `env:"FILEGATE_QUARANTINE_PREFIX"`

	// Validation
	MaxFileSize                int64  `env:"FILEGATE_MAX_FILE_SIZE,default:52428800"` // 50MB default
	AllowedContentTypes        string `env:"FILEGATE_ALLOWED_CONTENT_TYPES"`          // comma-separated
	ThreatScan                 bool   `env:"FILEGATE_THREAT_SCAN,default:true"`
	Fingerprint                bool   `env:"FILEGATE_FINGERPRINT,default:true"`
	RequireAllowedDetectedType bool   `env:"FILEGATE_REQUIRE_ALLOWED_DETECTED_TYPE,default:false"`
	SignaturesFile             string `env:"FILEGATE_SIGNATURES_FILE"` // YAML threat signatures
	ClamAVURL                  string `env:"FILEGATE_CLAMAV_URL"`      // ClamAV REST endpoint

	// Record store (memory, sqlite, postgres)
	StoreDriver string `env:"FILEGATE_STORE_DRIVER,default:memory"`
	StoreDSN    string `env:"FILEGATE_STORE_DSN"`

	// Notifier (log, redis)
	Notifier      string `env:"FILEGATE_NOTIFIER,default:log"`
	RedisAddr     string `env:"FILEGATE_REDIS_ADDR,default:localhost:6379"`
	RedisPassword string `env:"FILEGATE_REDIS_PASSWORD"`
	RedisDB       int    `env:"FILEGATE_REDIS_DB,default:0"`
	RedisChannel  string `env:"FILEGATE_REDIS_CHANNEL,default:filegate:decisions"`

	// Admission
	AdmitConcurrency int `env:"FILEGATE_ADMIT_CONCURRENCY,default:4"`

	// Logging
	LogLevel  string `env:"FILEGATE_LOG_LEVEL,default:INFO"`
	LogFormat string `env:"FILEGATE_LOG_FORMAT,default:text"`

	// Tracing. Spans are exported over OTLP/gRPC when an endpoint is set.
	OTLPEndpoint string `env:"FILEGATE_OTLP_ENDPOINT"`
	OTLPInsecure bool   `env:"FILEGATE_OTLP_INSECURE,default:true"`
}

// GetConfig returns config loaded from environment
func GetConfig() (*Config, error) {
	cfg := &Config{}
	if err := config.Load(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Builder loads configuration with a custom environment prefix
type Builder struct {
	prefix string
}

// WithPrefix creates a new Builder with the specified prefix
func WithPrefix(prefix string) *Builder {
	return &Builder{prefix: prefix}
}

// Config loads the configuration using the builder's prefix
func (b *Builder) Config() (*Config, error) {
	cfg := &Config{}
	if err := config.Load(cfg, config.LoadOptions{Prefix: b.prefix}); err != nil {
		return nil, err
	}
	return cfg, nil
}

// New creates a gate from configuration loaded with the builder's prefix
func (b *Builder) New() (*Gate, error) {
	cfg, err := b.Config()
	if err != nil {
		return nil, err
	}
	return New(cfg)
}

// ValidationOptions converts the validation settings into validator
// options. An empty allow-list keeps the invoice defaults.
func (c *Config) ValidationOptions() filevalidator.Options {
	opts := filevalidator.DefaultOptions()
	if c.MaxFileSize > 0 {
		opts.MaxSizeBytes = c.MaxFileSize
	}
	if types := splitList(c.AllowedContentTypes); len(types) > 0 {
		opts.AllowedContentTypes = types
	}
	opts.PerformThreatScan = c.ThreatScan
	opts.ComputeFingerprint = c.Fingerprint
	opts.RequireAllowedDetectedType = c.RequireAllowedDetectedType
	return opts
}

// validateConfig checks configuration validity
func validateConfig(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is required")
	}
	if cfg.Driver == "" {
		return errors.New("driver is required")
	}

	switch cfg.Driver {
	case "memory":
	case "local":
		if cfg.LocalBasePath == "" {
			return errors.New("local base path is required for local driver")
		}
	case "s3":
		// Credentials can come from IAM roles, so none are required here
	default:
		return fmt.Errorf("%w: %s", ErrUnknownDriver, cfg.Driver)
	}

	for name, bucket := range map[string]string{
		"incoming":   cfg.IncomingBucket,
		"validated":  cfg.ValidatedBucket,
		"quarantine": cfg.QuarantineBucket,
	} {
		if bucket == "" {
			return fmt.Errorf("%s bucket name is required", name)
		}
	}

	// A namespace inside the incoming bucket needs its own prefix or every
	// relocated object lands back in the inbox
	for name, ns := range map[string][2]string{
		"validated":  {cfg.ValidatedBucket, cfg.ValidatedPrefix},
		"quarantine": {cfg.QuarantineBucket, cfg.QuarantinePrefix},
	} {
		if ns[0] == cfg.IncomingBucket && strings.Trim(ns[1], "/") == "" {
			return fmt.Errorf("%s bucket %q is the incoming bucket and needs a prefix", name, ns[0])
		}
	}

	switch cfg.StoreDriver {
	case "", "memory":
	case "sqlite", "postgres":
		if cfg.StoreDSN == "" {
			return fmt.Errorf("store DSN is required for %s store", cfg.StoreDriver)
		}
	default:
		return fmt.Errorf("unknown store driver: %s", cfg.StoreDriver)
	}

	switch cfg.Notifier {
	case "", "log", "none":
	case "redis":
		if cfg.RedisAddr == "" {
			return errors.New("redis address is required for redis notifier")
		}
	default:
		return fmt.Errorf("unknown notifier: %s", cfg.Notifier)
	}

	if cfg.MaxFileSize < 0 {
		return fmt.Errorf("%w: max file size %d", ErrInvalidSize, cfg.MaxFileSize)
	}
	return nil
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
