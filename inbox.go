package filegate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"sync"
	"time"
)

// Inbox admits every new object that lands in a bucket. It is the local
// counterpart of an object-created event handler.
type Inbox struct {
	gate        *Gate
	bucket      string
	fs          FileSystem
	prefix      string
	pattern     string
	category    string
	concurrency int
	interval    time.Duration
	logger      *slog.Logger
	// exclude holds namespace prefixes that live inside the inbox bucket
	exclude []string

	mu   sync.Mutex
	seen map[string]seenEntry
}

type seenEntry struct {
	size    int64
	modTime time.Time
}

// InboxOption configures an Inbox
type InboxOption func(*Inbox)

// WithInboxPrefix restricts the inbox to keys below prefix
func WithInboxPrefix(prefix string) InboxOption {
	return func(in *Inbox) { in.prefix = prefix }
}

// WithInboxPattern sets the glob that selects uploads and filters watch
// events (default "*")
func WithInboxPattern(pattern string) InboxOption {
	return func(in *Inbox) {
		if pattern != "" {
			in.pattern = pattern
		}
	}
}

// WithDocumentCategory labels every admitted upload
func WithDocumentCategory(category string) InboxOption {
	return func(in *Inbox) { in.category = category }
}

// WithInboxConcurrency bounds admissions in flight per scan
func WithInboxConcurrency(n int) InboxOption {
	return func(in *Inbox) {
		if n > 0 {
			in.concurrency = n
		}
	}
}

// WithPollInterval sets how often a bucket without change notifications is
// listed (default 10s)
func WithPollInterval(d time.Duration) InboxOption {
	return func(in *Inbox) {
		if d > 0 {
			in.interval = d
		}
	}
}

// WithInboxLogger sets the logger
func WithInboxLogger(l *slog.Logger) InboxOption {
	return func(in *Inbox) {
		if l != nil {
			in.logger = l
		}
	}
}

// NewInbox creates an inbox over the bucket's filesystem
func NewInbox(gate *Gate, buckets BucketLookup, bucket string, opts ...InboxOption) (*Inbox, error) {
	if gate == nil {
		return nil, errors.New("inbox: gate is required")
	}
	fs, err := buckets.Bucket(bucket)
	if err != nil {
		return nil, fmt.Errorf("inbox: %w", err)
	}
	in := &Inbox{
		gate:        gate,
		bucket:      bucket,
		fs:          fs,
		pattern:     "*",
		concurrency: 1,
		interval:    10 * time.Second,
		logger:      slog.Default().With("component", "inbox", "bucket", bucket),
		seen:        make(map[string]seenEntry),
	}
	for _, opt := range opts {
		opt(in)
	}
	if r := gate.relocator; r != nil {
		for _, ns := range []Namespace{r.validated, r.quarantine} {
			prefix := strings.Trim(ns.Prefix, "/")
			if prefix != "" && baseFS(ns.FS) == baseFS(fs) {
				in.exclude = append(in.exclude, prefix+"/")
			}
		}
	}
	return in, nil
}

func baseFS(fs FileSystem) FileSystem {
	for {
		u, ok := fs.(interface{ Unwrap() FileSystem })
		if !ok {
			return fs
		}
		fs = u.Unwrap()
	}
}

func (in *Inbox) excluded(key string) bool {
	for _, prefix := range in.exclude {
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}
	return false
}

// settled reports whether an upload left the inbox for good. Uploads that
// were not relocated are scanned again.
func (in *Inbox) settled(r BatchResult) bool {
	if r.Decision == nil {
		return false
	}
	return in.gate.relocator == nil || !r.Decision.Location.IsZero()
}

// Scan admits every matching object not admitted by an earlier scan. An
// object that is rewritten in place counts as new again, and one whose
// admission did not complete is retried. Keys under a relocation namespace
// that shares the inbox bucket are never admitted.
func (in *Inbox) Scan(ctx context.Context) ([]BatchResult, error) {
	files, err := ListWithSelector(ctx, in.fs, in.prefix, Glob(in.pattern), true)
	if err != nil && !IsNotExist(err) {
		return nil, fmt.Errorf("list %s: %w", in.bucket, err)
	}

	in.mu.Lock()
	var uploads []Upload
	current := make(map[string]seenEntry, len(files))
	for _, f := range files {
		if in.excluded(f.Path) {
			continue
		}
		entry := seenEntry{size: f.Size, modTime: f.ModTime}
		current[f.Path] = entry
		if prev, ok := in.seen[f.Path]; ok && prev == entry {
			continue
		}
		uploads = append(uploads, Upload{
			Bucket:           in.bucket,
			Key:              f.Path,
			OriginalFilename: path.Base(f.Path),
			DocumentCategory: in.category,
			ContentType:      f.ContentType,
		})
	}
	// Keys that left the bucket are forgotten
	in.seen = current
	in.mu.Unlock()

	if len(uploads) == 0 {
		return nil, nil
	}

	in.logger.InfoContext(ctx, "admitting uploads", "count", len(uploads))
	results := in.gate.AdmitBatch(ctx, uploads, in.concurrency)
	in.mu.Lock()
	for _, r := range results {
		if r.Err != nil {
			in.logger.WarnContext(ctx, "admission incomplete", "key", r.Upload.Key, "error", r.Err)
		}
		if !in.settled(r) {
			delete(in.seen, r.Upload.Key)
		}
	}
	in.mu.Unlock()
	return results, nil
}

// Run scans once and then again on every change until ctx is done. Buckets
// that support CanWatch drive scans from change tokens; others are polled.
func (in *Inbox) Run(ctx context.Context) error {
	if _, err := in.Scan(ctx); err != nil {
		return err
	}

	scan := func() {
		if _, err := in.Scan(ctx); err != nil && ctx.Err() == nil {
			in.logger.ErrorContext(ctx, "scan failed", "error", err)
		}
	}

	if watcher, ok := in.fs.(CanWatch); ok {
		in.logger.InfoContext(ctx, "watching for uploads", "pattern", in.pattern)
		return OnChange(ctx, func() (ChangeToken, error) {
			return watcher.Watch(ctx, in.pattern)
		}, scan)
	}

	in.logger.InfoContext(ctx, "polling for uploads", "interval", in.interval)
	ticker := time.NewTicker(in.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			scan()
		}
	}
}
