package filegate

import (
	"context"
	"fmt"
	"time"
)

// Notification announces an admission decision. Errors are carried
// verbatim so quarantine alerts can show them as-is.
type Notification struct {
	UploadID            string    `json:"uploadId"`
	Status              Status    `json:"status"`
	Bucket              string    `json:"bucket"`
	Key                 string    `json:"key"`
	Location            Location  `json:"location"`
	OriginalFilename    string    `json:"originalFilename,omitempty"`
	DocumentCategory    string    `json:"documentCategory,omitempty"`
	Fingerprint         string    `json:"fingerprint,omitempty"`
	DetectedContentType string    `json:"detectedContentType,omitempty"`
	DuplicateOf         string    `json:"duplicateOf,omitempty"`
	Errors              []string  `json:"errors"`
	Warnings            []string  `json:"warnings"`
	Timestamp           time.Time `json:"timestamp"`
}

// Notifier delivers admission notifications
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// NotifierFunc adapts a function to the Notifier interface
type NotifierFunc func(ctx context.Context, n Notification) error

// Notify implements Notifier
func (f NotifierFunc) Notify(ctx context.Context, n Notification) error {
	return f(ctx, n)
}

// NewNotification builds the notification for a recorded decision
func NewNotification(rec *Record) Notification {
	n := Notification{
		UploadID:         rec.UploadID,
		Status:           rec.Status,
		Bucket:           rec.Bucket,
		Key:              rec.Key,
		Location:         rec.Location,
		OriginalFilename: rec.OriginalFilename,
		DocumentCategory: rec.DocumentCategory,
		DuplicateOf:      rec.DuplicateOf,
		Timestamp:        rec.CreatedAt,
	}
	if rec.Result != nil {
		n.Fingerprint = rec.Result.Fingerprint
		n.DetectedContentType = rec.Result.DetectedContentType
		n.Errors = append([]string(nil), rec.Result.Errors...)
		n.Warnings = append([]string(nil), rec.Result.Warnings...)
	}
	return n
}

// NotifierFactory creates a Notifier from configuration
type NotifierFactory func(cfg *Config) (Notifier, error)

var notifierFactories = make(map[string]NotifierFactory)

// RegisterNotifier registers a notifier factory under name
func RegisterNotifier(name string, factory NotifierFactory) {
	factoryMutex.Lock()
	defer factoryMutex.Unlock()
	notifierFactories[name] = factory
}

// CreateNotifier creates the notifier named by cfg.Notifier. "none"
// disables notifications and returns a nil Notifier.
func CreateNotifier(cfg *Config) (Notifier, error) {
	name := cfg.Notifier
	if name == "" {
		name = "log"
	}
	if name == "none" {
		return nil, nil
	}
	factoryMutex.RLock()
	factory, ok := notifierFactories[name]
	factoryMutex.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: notifier %s not registered", ErrUnknownDriver, name)
	}
	return factory(cfg)
}
