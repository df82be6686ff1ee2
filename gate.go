package filegate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gobeaver/filegate/filevalidator"
)

// ContentValidator validates one content stream. *filevalidator.Validator
// implements it.
type ContentValidator interface {
	ValidateContext(ctx context.Context, r io.Reader, declaredType string, declaredSize int64) *filevalidator.ValidationResult
}

// BucketLookup resolves a bucket name to its filesystem. Relocation needs
// it to move objects out of the source bucket; *Buckets implements it.
type BucketLookup interface {
	Bucket(name string) (FileSystem, error)
}

// Upload identifies an object waiting for admission
type Upload struct {
	// ID correlates records and notifications. Generated when empty.
	ID               string
	Bucket           string
	Key              string
	OriginalFilename string
	DocumentCategory string
	// ContentType overrides the content type stored with the object
	ContentType string
}

// Decision is the outcome of one admission
type Decision struct {
	UploadID    string
	Status      Status
	Location    Location
	DuplicateOf string
	Result      *filevalidator.ValidationResult
}

// Admitted reports whether the upload was promoted
func (d *Decision) Admitted() bool {
	return d.Status == StatusValidated
}

// AdmitFunc performs one admission
type AdmitFunc func(ctx context.Context, u Upload) (*Decision, error)

// Middleware wraps an AdmitFunc
type Middleware func(next AdmitFunc) AdmitFunc

// Gate admits uploads: it fetches the object, validates it, moves it to the
// validated or quarantine namespace, records the verdict and notifies.
type Gate struct {
	source    ObjectGetter
	validator ContentValidator
	store     RecordStore
	notifier  Notifier
	relocator *Relocator
	logger    *slog.Logger
	now       func() time.Time
	admit     AdmitFunc
	mw        []Middleware
}

// GateOption configures a Gate
type GateOption func(*Gate)

// WithRecordStore persists a Record for every decision
func WithRecordStore(s RecordStore) GateOption {
	return func(g *Gate) { g.store = s }
}

// WithNotifier sends a Notification for every decision
func WithNotifier(n Notifier) GateOption {
	return func(g *Gate) { g.notifier = n }
}

// WithRelocator moves objects after validation. The source must also
// implement BucketLookup.
func WithRelocator(r *Relocator) GateOption {
	return func(g *Gate) { g.relocator = r }
}

// WithGateLogger sets the logger
func WithGateLogger(l *slog.Logger) GateOption {
	return func(g *Gate) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithClock overrides the record timestamp source
func WithClock(now func() time.Time) GateOption {
	return func(g *Gate) {
		if now != nil {
			g.now = now
		}
	}
}

// WithMiddleware wraps every admission, outermost first
func WithMiddleware(mw ...Middleware) GateOption {
	return func(g *Gate) { g.mw = append(g.mw, mw...) }
}

// NewGate creates a gate reading uploads from source
func NewGate(source ObjectGetter, validator ContentValidator, opts ...GateOption) (*Gate, error) {
	if source == nil {
		return nil, errors.New("gate: source is required")
	}
	if validator == nil {
		return nil, errors.New("gate: validator is required")
	}
	g := &Gate{
		source:    source,
		validator: validator,
		logger:    slog.Default().With("component", "gate"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}

	g.admit = g.admitOne
	for i := len(g.mw) - 1; i >= 0; i-- {
		g.admit = g.mw[i](g.admit)
	}
	return g, nil
}

// Admit runs one upload through the gate. A decision is returned whenever
// validation ran; the error joins any collaborator failures (fetch,
// relocation, persistence, notification) that happened along the way.
func (g *Gate) Admit(ctx context.Context, u Upload) (*Decision, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return g.admit(ctx, u)
}

func (g *Gate) admitOne(ctx context.Context, u Upload) (*Decision, error) {
	var errs []error
	logger := g.logger.With("upload_id", u.ID, "bucket", u.Bucket, "key", u.Key)

	obj, err := g.source.GetObject(ctx, u.Bucket, u.Key)
	fetched := err == nil
	var result *filevalidator.ValidationResult
	// content holds exactly the bytes that were validated; relocation
	// writes these instead of reading the source a second time
	var content []byte
	if !fetched {
		// The validator turns a missing stream into the unreadable verdict
		logger.WarnContext(ctx, "fetch failed", "error", err)
		errs = append(errs, fmt.Errorf("fetch %s/%s: %w", u.Bucket, u.Key, err))
		result = g.validator.ValidateContext(ctx, nil, u.ContentType, 0)
	} else {
		declared := u.ContentType
		if declared == "" {
			declared = obj.ContentType
		}
		var buf bytes.Buffer
		result = g.validator.ValidateContext(ctx, io.TeeReader(obj.Body, &buf), declared, obj.ContentLength)
		_ = obj.Body.Close()
		if result.Size > 0 && int64(buf.Len()) == result.Size {
			content = buf.Bytes()
		}
	}

	d := &Decision{
		UploadID: u.ID,
		Status:   StatusQuarantined,
		Result:   result,
	}
	if result.IsValid {
		d.Status = StatusValidated
	}

	if g.store != nil && result.Fingerprint != "" {
		prev, err := g.store.FindByFingerprint(ctx, result.Fingerprint)
		switch {
		case err == nil && prev.UploadID != u.ID:
			d.DuplicateOf = prev.UploadID
			logger.InfoContext(ctx, "duplicate content", "duplicate_of", prev.UploadID)
		case err != nil && !errors.Is(err, ErrRecordNotFound):
			logger.WarnContext(ctx, "duplicate lookup failed", "error", err)
			errs = append(errs, fmt.Errorf("duplicate lookup: %w", err))
		}
	}

	if g.relocator != nil && fetched {
		loc, err := g.relocate(ctx, u, result, content)
		if err != nil {
			logger.ErrorContext(ctx, "relocation failed", "error", err)
			errs = append(errs, err)
		}
		if errors.Is(err, ErrChecksumMismatch) && d.Status == StatusValidated {
			result = ContentChanged(result)
			d.Status = StatusQuarantined
			d.Result = result
		}
		d.Location = loc
	}

	rec := &Record{
		UploadID:         u.ID,
		Bucket:           u.Bucket,
		Key:              u.Key,
		OriginalFilename: u.OriginalFilename,
		DocumentCategory: u.DocumentCategory,
		Status:           d.Status,
		Location:         d.Location,
		DuplicateOf:      d.DuplicateOf,
		Result:           result,
		CreatedAt:        g.now().UTC(),
	}

	if g.store != nil {
		if err := g.store.SaveRecord(ctx, rec); err != nil {
			logger.ErrorContext(ctx, "record not saved", "error", err)
			errs = append(errs, fmt.Errorf("save record: %w", err))
		}
	}

	if g.notifier != nil {
		if err := g.notifier.Notify(ctx, NewNotification(rec)); err != nil {
			logger.WarnContext(ctx, "notification failed", "error", err)
			errs = append(errs, fmt.Errorf("notify: %w", err))
		}
	}

	logger.InfoContext(ctx, "upload "+string(d.Status),
		"detected_type", result.DetectedContentType,
		"size", result.Size,
		"errors", len(result.Errors),
		"warnings", len(result.Warnings),
		"location", d.Location.String())
	for _, w := range result.Warnings {
		logger.DebugContext(ctx, "validation warning", "warning", w)
	}

	return d, errors.Join(errs...)
}

func (g *Gate) relocate(ctx context.Context, u Upload, result *filevalidator.ValidationResult, content []byte) (Location, error) {
	lookup, ok := g.source.(BucketLookup)
	if !ok {
		return Location{}, fmt.Errorf("relocate: source cannot resolve bucket %s", u.Bucket)
	}
	src, err := lookup.Bucket(u.Bucket)
	if err != nil {
		return Location{}, fmt.Errorf("relocate: %w", err)
	}
	return g.relocator.RelocateContent(ctx, src, u.Key, u.ID, result, content)
}

// BatchResult pairs an upload with its decision and error
type BatchResult struct {
	Upload   Upload
	Decision *Decision
	Err      error
}

// AdmitBatch admits uploads with at most concurrency in flight. Each
// upload is independent: a failing one never stops the rest. Results are
// returned in input order.
func (g *Gate) AdmitBatch(ctx context.Context, uploads []Upload, concurrency int) []BatchResult {
	if concurrency < 1 {
		concurrency = 1
	}
	results := make([]BatchResult, len(uploads))

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	for i, u := range uploads {
		if u.ID == "" {
			u.ID = uuid.NewString()
		}
		results[i].Upload = u

		wg.Add(1)
		go func(i int, u Upload) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return
			}
			results[i].Decision, results[i].Err = g.admitSafe(ctx, u)
		}(i, u)
	}
	wg.Wait()
	return results
}

func (g *Gate) admitSafe(ctx context.Context, u Upload) (d *Decision, err error) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.ErrorContext(ctx, "admission panicked", "upload_id", u.ID, "panic", r)
			err = fmt.Errorf("admit %s: panic: %v", u.ID, r)
		}
	}()
	return g.Admit(ctx, u)
}
