package filegate

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/gobeaver/filegate/filevalidator"
)

// Service is a gate wired from configuration together with the pieces it
// was built from. Close releases the record store and notifier.
type Service struct {
	Config    *Config
	Gate      *Gate
	Buckets   *Buckets
	Validator *filevalidator.Validator
	Store     RecordStore
	Notifier  Notifier
}

// New creates a gate from configuration. Use Open to also get the buckets
// and to close the collaborators on shutdown.
func New(cfg *Config, opts ...GateOption) (*Gate, error) {
	svc, err := Open(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return svc.Gate, nil
}

// NewFromEnv creates a gate from environment variables
func NewFromEnv() (*Gate, error) {
	cfg, err := GetConfig()
	if err != nil {
		return nil, err
	}
	return New(cfg)
}

// Open builds buckets, validator, record store, notifier and relocator
// from cfg and wires them into a gate. Extra options are applied last.
func Open(cfg *Config, opts ...GateOption) (*Service, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	buckets, err := OpenBuckets(cfg)
	if err != nil {
		return nil, err
	}

	validator, err := NewValidator(cfg)
	if err != nil {
		return nil, err
	}

	store, err := CreateStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create record store: %w", err)
	}

	notifier, err := CreateNotifier(cfg)
	if err != nil {
		closeQuietly(store)
		return nil, fmt.Errorf("failed to create notifier: %w", err)
	}

	validated, _ := buckets.Bucket(cfg.ValidatedBucket)
	quarantine, _ := buckets.Bucket(cfg.QuarantineBucket)
	relocator, err := NewRelocator(
		Namespace{FS: validated, Bucket: cfg.ValidatedBucket, Prefix: cfg.ValidatedPrefix},
		Namespace{FS: quarantine, Bucket: cfg.QuarantineBucket, Prefix: cfg.QuarantinePrefix},
	)
	if err != nil {
		closeQuietly(store, notifier)
		return nil, err
	}

	gateOpts := []GateOption{
		WithRecordStore(store),
		WithRelocator(relocator),
	}
	if notifier != nil {
		gateOpts = append(gateOpts, WithNotifier(notifier))
	}
	gate, err := NewGate(buckets, validator, append(gateOpts, opts...)...)
	if err != nil {
		closeQuietly(store, notifier)
		return nil, err
	}

	return &Service{
		Config:    cfg,
		Gate:      gate,
		Buckets:   buckets,
		Validator: validator,
		Store:     store,
		Notifier:  notifier,
	}, nil
}

// OpenBuckets creates the incoming, validated and quarantine buckets with
// the configured driver. Buckets that share a name share a filesystem.
func OpenBuckets(cfg *Config) (*Buckets, error) {
	buckets := NewBuckets()
	for _, name := range []string{cfg.IncomingBucket, cfg.ValidatedBucket, cfg.QuarantineBucket} {
		if _, err := buckets.Bucket(name); err == nil {
			continue
		}
		fs, err := CreateDriver(cfg, name)
		if err != nil {
			return nil, fmt.Errorf("failed to create driver for bucket %s: %w", name, err)
		}
		if err := buckets.Mount(name, fs); err != nil {
			return nil, err
		}
	}
	return buckets, nil
}

// NewValidator creates the validator described by cfg: options, extra YAML
// signatures and an optional ClamAV scanner chained behind them.
func NewValidator(cfg *Config) (*filevalidator.Validator, error) {
	b := filevalidator.NewBuilder().
		WithOptions(cfg.ValidationOptions()).
		WithLogger(slog.Default().With("component", "filevalidator"))

	if cfg.SignaturesFile != "" {
		sigs, err := filevalidator.LoadSignaturesFile(cfg.SignaturesFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load signatures: %w", err)
		}
		b.WithSignatures(sigs...)
	}

	if cfg.ClamAVURL != "" {
		b.WithScanner(filevalidator.NewRemoteScanner(filevalidator.RemoteScannerConfig{
			URL:     cfg.ClamAVURL,
			Timeout: 30 * time.Second,
		}))
	}

	return b.Build(), nil
}

// Inbox creates an inbox over the incoming bucket using the configured
// prefix, concurrency and poll interval
func (s *Service) Inbox(opts ...InboxOption) (*Inbox, error) {
	base := []InboxOption{
		WithInboxPrefix(s.Config.IncomingPrefix),
		WithInboxConcurrency(s.Config.AdmitConcurrency),
		WithPollInterval(time.Duration(s.Config.S3PollInterval) * time.Second),
	}
	return NewInbox(s.Gate, s.Buckets, s.Config.IncomingBucket, append(base, opts...)...)
}

// Close releases the record store and notifier
func (s *Service) Close() error {
	var errs []error
	for _, c := range []any{s.Store, s.Notifier} {
		if closer, ok := c.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func closeQuietly(cs ...any) {
	for _, c := range cs {
		if closer, ok := c.(io.Closer); ok {
			_ = closer.Close()
		}
	}
}
