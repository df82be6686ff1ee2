package filegate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gobeaver/filegate/filevalidator"
)

// Status is the admission outcome
type Status string

const (
	StatusValidated   Status = "validated"
	StatusQuarantined Status = "quarantined"
)

// ErrRecordNotFound is returned by RecordStore lookups that match nothing
var ErrRecordNotFound = errors.New("record not found")

// Record is the audit entry for one admission: the full validation result
// plus the correlation metadata needed to trace the upload.
type Record struct {
	UploadID         string                          `json:"uploadId"`
	Bucket           string                          `json:"bucket"`
	Key              string                          `json:"key"`
	OriginalFilename string                          `json:"originalFilename,omitempty"`
	DocumentCategory string                          `json:"documentCategory,omitempty"`
	Status           Status                          `json:"status"`
	Location         Location                        `json:"location"`
	DuplicateOf      string                          `json:"duplicateOf,omitempty"`
	Result           *filevalidator.ValidationResult `json:"result"`
	CreatedAt        time.Time                       `json:"createdAt"`
}

// Fingerprint returns the content fingerprint, if one was computed
func (r *Record) Fingerprint() string {
	if r.Result == nil {
		return ""
	}
	return r.Result.Fingerprint
}

// RecordStore persists admission records
type RecordStore interface {
	// SaveRecord stores rec. Saving an existing upload ID replaces it.
	SaveRecord(ctx context.Context, rec *Record) error

	// FindByFingerprint returns the earliest record with the given
	// fingerprint, or ErrRecordNotFound.
	FindByFingerprint(ctx context.Context, fingerprint string) (*Record, error)
}

// StoreFactory creates a RecordStore from configuration
type StoreFactory func(cfg *Config) (RecordStore, error)

var storeFactories = make(map[string]StoreFactory)

// RegisterStore registers a record store factory under name
func RegisterStore(name string, factory StoreFactory) {
	factoryMutex.Lock()
	defer factoryMutex.Unlock()
	storeFactories[name] = factory
}

// CreateStore creates the record store named by cfg.StoreDriver
func CreateStore(cfg *Config) (RecordStore, error) {
	name := cfg.StoreDriver
	if name == "" {
		name = "memory"
	}
	factoryMutex.RLock()
	factory, ok := storeFactories[name]
	factoryMutex.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: record store %s not registered", ErrUnknownDriver, name)
	}
	return factory(cfg)
}
