package filevalidator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Stage names recorded in ValidationResult.Checks
const (
	CheckRead        = "read"
	CheckSize        = "size"
	CheckContentType = "content_type"
	CheckDetection   = "detection"
	CheckFingerprint = "fingerprint"
	CheckThreatScan  = "threat_scan"
	CheckStructure   = "structure"
)

// Validator runs the admission pipeline for one file at a time. It holds
// only immutable configuration, so concurrent calls need no locking.
type Validator struct {
	opts     Options
	allowed  map[string]struct{}
	sniffer  *Sniffer
	registry *CheckerRegistry
	scanner  ThreatScanner
	logger   *slog.Logger
}

// Option configures a Validator
type Option func(*Validator)

// WithSniffer replaces the default signature sniffer
func WithSniffer(s *Sniffer) Option {
	return func(v *Validator) {
		if s != nil {
			v.sniffer = s
		}
	}
}

// WithRegistry replaces the default structural checker registry
func WithRegistry(r *CheckerRegistry) Option {
	return func(v *Validator) {
		if r != nil {
			v.registry = r
		}
	}
}

// WithScanner replaces the default in-process signature scanner
func WithScanner(s ThreatScanner) Option {
	return func(v *Validator) {
		if s != nil {
			v.scanner = s
		}
	}
}

// WithLogger sets the logger used for per-validation debug output
func WithLogger(l *slog.Logger) Option {
	return func(v *Validator) {
		if l != nil {
			v.logger = l
		}
	}
}

// New creates a validator with the given options
func New(opts Options, options ...Option) *Validator {
	opts = opts.normalized()
	v := &Validator{
		opts:     opts,
		allowed:  make(map[string]struct{}, len(opts.AllowedContentTypes)),
		sniffer:  defaultSniffer,
		registry: DefaultRegistry(),
		scanner:  NewSignatureScanner(),
		logger:   slog.Default().With("component", "filevalidator"),
	}
	for _, ct := range opts.AllowedContentTypes {
		v.allowed[ct] = struct{}{}
	}
	for _, opt := range options {
		opt(v)
	}
	return v
}

// NewDefault creates a validator with the invoice admission defaults
func NewDefault() *Validator {
	return New(DefaultOptions())
}

// Options returns a copy of the validator's options
func (v *Validator) Options() Options {
	return v.opts.normalized()
}

// IsAllowed reports whether a content type is in the allow-list
func (v *Validator) IsAllowed(contentType string) bool {
	_, ok := v.allowed[contentType]
	return ok
}

// Validate reads r to completion and validates its content against the
// declared content type and size. A nil reader, a read failure or empty
// content yields a single unreadable-content error.
func (v *Validator) Validate(r io.Reader, declaredType string, declaredSize int64) *ValidationResult {
	return v.ValidateContext(context.Background(), r, declaredType, declaredSize)
}

// ValidateContext is Validate with a context. The context bounds the
// stream read and is passed to the threat scanner.
func (v *Validator) ValidateContext(ctx context.Context, r io.Reader, declaredType string, declaredSize int64) *ValidationResult {
	b := newResultBuilder(declaredType)

	start := time.Now()
	data, err := readAll(ctx, r)
	if err != nil {
		b.addError(MsgUnreadableContent)
		b.addCheck(CheckRead, false, err.Error(), time.Since(start))
		result := b.build()
		v.logger.DebugContext(ctx, "content unreadable",
			"declared_type", declaredType,
			"error", err)
		return result
	}
	b.addCheck(CheckRead, true, fmt.Sprintf("read %d bytes", len(data)), time.Since(start))

	return v.validateBuffer(ctx, b, data, declaredType, declaredSize)
}

// ValidateBytes validates an in-memory buffer. Empty content is unreadable.
func (v *Validator) ValidateBytes(data []byte, declaredType string) *ValidationResult {
	return v.ValidateContext(context.Background(), bytes.NewReader(data), declaredType, int64(len(data)))
}

// ValidateFileHeader validates a multipart upload using the Content-Type
// the client sent, falling back to the filename extension.
func (v *Validator) ValidateFileHeader(ctx context.Context, fh *multipart.FileHeader) *ValidationResult {
	declared := fh.Header.Get("Content-Type")
	if declared == "" {
		declared = MIMETypeForExtension(strings.ToLower(filepath.Ext(fh.Filename)))
	}

	f, err := fh.Open()
	if err != nil {
		return v.ValidateContext(ctx, nil, declared, fh.Size)
	}
	defer f.Close()
	return v.ValidateContext(ctx, f, declared, fh.Size)
}

// ValidateFile validates a local file, deriving the declared content type
// from its extension when declaredType is empty.
func (v *Validator) ValidateFile(ctx context.Context, path, declaredType string) *ValidationResult {
	if declaredType == "" {
		declaredType = MIMETypeForExtension(strings.ToLower(filepath.Ext(path)))
	}

	f, err := os.Open(path)
	if err != nil {
		return v.ValidateContext(ctx, nil, declaredType, 0)
	}
	defer f.Close()

	var size int64
	if info, err := f.Stat(); err == nil {
		if info.IsDir() {
			return v.ValidateContext(ctx, nil, declaredType, 0)
		}
		size = info.Size()
	}
	return v.ValidateContext(ctx, f, declaredType, size)
}

// validateBuffer runs the checks in a fixed order, so errors always read
// size, declared type, threat scan, structure. The threat scan comes before
// the structural check and neither stops the other.
func (v *Validator) validateBuffer(ctx context.Context, b *resultBuilder, data []byte, declaredType string, declaredSize int64) *ValidationResult {
	b.result.Size = int64(len(data))

	v.checkSize(b, int64(len(data)), declaredSize)
	v.checkDeclaredType(b, declaredType)

	detected := v.detect(b, data, declaredType)

	if v.opts.ComputeFingerprint {
		start := time.Now()
		b.result.Fingerprint = Fingerprint(data)
		b.addCheck(CheckFingerprint, true, b.result.Fingerprint, time.Since(start))
	}

	if v.opts.PerformThreatScan {
		v.scan(ctx, b, data)
	}

	// Structural checks trust the sniffed bytes; the declared type is used
	// only when no signature matched.
	checkType := detected
	if checkType == "" {
		checkType = declaredType
	}
	v.checkStructure(b, data, checkType)

	result := b.build()
	v.logger.DebugContext(ctx, "content validated",
		"declared_type", declaredType,
		"detected_type", result.DetectedContentType,
		"size", result.Size,
		"valid", result.IsValid,
		"errors", len(result.Errors),
		"warnings", len(result.Warnings),
		"duration", result.Duration)
	return result
}

// checkSize gates on the buffered length. The declared size is only a
// client claim and is consulted when it is larger than what was read, which
// happens when a stream is cut short.
func (v *Validator) checkSize(b *resultBuilder, actual, declared int64) {
	start := time.Now()
	size := actual
	if declared > size {
		size = declared
	}
	if size > v.opts.MaxSizeBytes {
		b.addError(msgSizeExceeded, size, v.opts.MaxSizeBytes)
		b.addCheck(CheckSize, false, b.result.Errors[b.errorCount()-1], time.Since(start))
		return
	}
	b.addCheck(CheckSize, true, fmt.Sprintf("%s within limit", FormatSizeReadable(size)), time.Since(start))
}

func (v *Validator) checkDeclaredType(b *resultBuilder, declaredType string) {
	start := time.Now()
	if !v.IsAllowed(declaredType) {
		b.addError(msgTypeNotAllowed, declaredType)
		b.addCheck(CheckContentType, false, b.result.Errors[b.errorCount()-1], time.Since(start))
		return
	}
	b.addCheck(CheckContentType, true, declaredType, time.Since(start))
}

func (v *Validator) detect(b *resultBuilder, data []byte, declaredType string) string {
	start := time.Now()
	detected, ok := v.sniffer.Detect(data)
	if !ok {
		b.addCheck(CheckDetection, true, "no signature matched", time.Since(start))
		return ""
	}
	b.result.DetectedContentType = detected

	passed := true
	if detected != declaredType {
		b.addWarning(msgTypeMismatch, declaredType, detected)
	}
	if v.opts.RequireAllowedDetectedType && !v.IsAllowed(detected) {
		b.addError(msgDetectedNotAllowed, detected)
		passed = false
	}
	b.addCheck(CheckDetection, passed, detected, time.Since(start))
	return detected
}

func (v *Validator) scan(ctx context.Context, b *resultBuilder, data []byte) {
	start := time.Now()
	before := b.errorCount()

	err := runStage(func() error {
		result, err := v.scanner.Scan(ctx, data)
		if err != nil {
			return err
		}
		if !result.Clean {
			b.addError(msgThreatDetected, result.ThreatName)
		}
		return nil
	})
	if err != nil {
		b.addError(msgInternalError, err.Error())
		v.logger.WarnContext(ctx, "threat scan failed", "error", err)
	}

	passed := b.errorCount() == before
	msg := "clean"
	if !passed {
		msg = b.result.Errors[b.errorCount()-1]
	}
	b.addCheck(CheckThreatScan, passed, msg, time.Since(start))
}

func (v *Validator) checkStructure(b *resultBuilder, data []byte, contentType string) {
	start := time.Now()
	checker, ok := v.registry.Lookup(contentType)
	if !ok {
		b.addWarning(msgFormatUnavailable, contentType)
		b.addCheck(CheckStructure, true, "no checker for "+contentType, time.Since(start))
		return
	}

	var report CheckReport
	err := runStage(func() error {
		report = checker.CheckStructure(data)
		return nil
	})
	if err != nil {
		b.addError(msgInternalError, err.Error())
		b.addCheck(CheckStructure, false, err.Error(), time.Since(start))
		return
	}

	for _, e := range report.Errors {
		b.addError("%s", e)
	}
	for _, w := range report.Warnings {
		b.addWarning("%s", w)
	}

	msg := "structure ok"
	if !report.Valid() {
		msg = strings.Join(report.Errors, "; ")
	}
	b.addCheck(CheckStructure, report.Valid(), msg, time.Since(start))
}

// runStage runs fn and converts a panic into an error so one faulty
// checker or scanner cannot abort the pipeline.
func runStage(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	return fn()
}

// readAll drains r. Absent, failing and empty streams are all reported as
// ErrUnreadableContent.
func readAll(ctx context.Context, r io.Reader) ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: no content stream", ErrUnreadableContent)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreadableContent, err)
	}

	data, err := io.ReadAll(&contextReader{ctx: ctx, r: r})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreadableContent, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: zero bytes read", ErrUnreadableContent)
	}
	return data, nil
}

// contextReader stops reading once ctx is done
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// IsUnreadable reports whether err marks unreadable content
func IsUnreadable(err error) bool {
	return errors.Is(err, ErrUnreadableContent)
}
