// Package notify delivers admission notifications: to a Redis channel, to
// a structured log, or to several notifiers at once.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/gobeaver/filegate"
)

// Publisher is the part of a Redis client the notifier uses.
// *redis.Client satisfies it.
type Publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// Redis publishes each notification as JSON on a pub/sub channel
type Redis struct {
	pub     Publisher
	channel string
	closer  io.Closer
}

// NewRedis creates a notifier that publishes on channel
func NewRedis(pub Publisher, channel string) *Redis {
	r := &Redis{pub: pub, channel: channel}
	if c, ok := pub.(io.Closer); ok {
		r.closer = c
	}
	return r
}

// DialRedis connects to addr and returns a notifier owning the client
func DialRedis(addr, password string, db int, channel string) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return NewRedis(client, channel)
}

// Notify implements filegate.Notifier
func (r *Redis) Notify(ctx context.Context, n filegate.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}
	if err := r.pub.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", r.channel, err)
	}
	return nil
}

// Close closes the underlying client, if the notifier owns one
func (r *Redis) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// Log writes notifications to a structured logger. Quarantine decisions are
// logged at WARN with their errors.
type Log struct {
	logger *slog.Logger
}

// NewLog creates a log notifier. A nil logger uses slog.Default.
func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger.With("component", "notify")}
}

// Notify implements filegate.Notifier
func (l *Log) Notify(ctx context.Context, n filegate.Notification) error {
	attrs := []any{
		"upload_id", n.UploadID,
		"status", string(n.Status),
		"bucket", n.Bucket,
		"key", n.Key,
		"location", n.Location.String(),
	}
	if n.DocumentCategory != "" {
		attrs = append(attrs, "category", n.DocumentCategory)
	}
	if n.DuplicateOf != "" {
		attrs = append(attrs, "duplicate_of", n.DuplicateOf)
	}

	if n.Status == filegate.StatusQuarantined {
		attrs = append(attrs, "errors", n.Errors)
		l.logger.WarnContext(ctx, "upload quarantined", attrs...)
		return nil
	}
	l.logger.InfoContext(ctx, "upload validated", attrs...)
	return nil
}

// Multi fans a notification out to every notifier. All notifiers are
// called; their errors are joined.
type Multi []filegate.Notifier

// Notify implements filegate.Notifier
func (m Multi) Notify(ctx context.Context, n filegate.Notification) error {
	var errs []error
	for _, notifier := range m {
		if notifier == nil {
			continue
		}
		if err := notifier.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every notifier that is an io.Closer
func (m Multi) Close() error {
	var errs []error
	for _, notifier := range m {
		if c, ok := notifier.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

var (
	_ filegate.Notifier = (*Redis)(nil)
	_ filegate.Notifier = (*Log)(nil)
	_ filegate.Notifier = Multi(nil)
)
