package filegate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/gobeaver/filegate/filevalidator"
)

// Tag keys attached to relocated objects
const (
	TagStatus       = "filegate-status"
	TagUploadID     = "filegate-upload-id"
	TagFingerprint  = "filegate-fingerprint"
	TagDetectedType = "filegate-detected-type"
	TagErrors       = "filegate-errors"
	TagWarnings     = "filegate-warnings"
)

// maxTagValue is the longest tag value object stores accept
const maxTagValue = 256

// MsgContentChanged is added to a verdict whose stored object no longer
// matches the content that was validated
const MsgContentChanged = "Content changed after validation"

// Location identifies an object by bucket and key
type Location struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

// String returns "bucket/key"
func (l Location) String() string {
	if l.Bucket == "" {
		return l.Key
	}
	return l.Bucket + "/" + l.Key
}

// IsZero reports whether the location is unset
func (l Location) IsZero() bool {
	return l.Bucket == "" && l.Key == ""
}

// Namespace is a relocation target: a filesystem, the bucket name it is
// known by and a key prefix.
type Namespace struct {
	FS     FileSystem
	Bucket string
	Prefix string
}

// Key maps a source key into the namespace
func (n Namespace) Key(key string) string {
	key = strings.TrimPrefix(path.Clean("/"+key), "/")
	if n.Prefix == "" {
		return key
	}
	return path.Join(strings.Trim(n.Prefix, "/"), key)
}

// Relocator moves admitted objects to the validated namespace and rejected
// ones to quarantine, stamping each with its validation metadata.
type Relocator struct {
	validated  Namespace
	quarantine Namespace
	verify     bool
	logger     *slog.Logger
}

// RelocatorOption configures a Relocator
type RelocatorOption func(*Relocator)

// WithIntegrityCheck compares the relocated object's SHA-256 against the
// validation fingerprint when the destination supports checksums
func WithIntegrityCheck(enabled bool) RelocatorOption {
	return func(r *Relocator) {
		r.verify = enabled
	}
}

// WithRelocatorLogger sets the logger
func WithRelocatorLogger(l *slog.Logger) RelocatorOption {
	return func(r *Relocator) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRelocator creates a relocator for the two namespaces
func NewRelocator(validated, quarantine Namespace, opts ...RelocatorOption) (*Relocator, error) {
	if validated.FS == nil || quarantine.FS == nil {
		return nil, errors.New("relocator: both namespaces need a filesystem")
	}
	r := &Relocator{
		validated:  validated,
		quarantine: quarantine,
		verify:     true,
		logger:     slog.Default().With("component", "relocator"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Namespace returns the target namespace for a status
func (r *Relocator) Namespace(status Status) Namespace {
	if status == StatusValidated {
		return r.validated
	}
	return r.quarantine
}

// Relocate moves key out of src into the namespace selected by the result
// and tags it. The source object is removed once the destination holds it.
//
// A validated object whose relocated copy fails the integrity check is
// moved on to quarantine; the returned error then wraps ErrChecksumMismatch
// and the location points into quarantine.
func (r *Relocator) Relocate(ctx context.Context, src FileSystem, key, uploadID string, result *filevalidator.ValidationResult) (Location, error) {
	return r.RelocateContent(ctx, src, key, uploadID, result, nil)
}

// RelocateContent is Relocate for content that was already read and
// validated. The destination is written from content instead of the source,
// so an object replaced after validation never reaches the validated
// namespace; the replacement stays in src for its own admission. A nil
// content re-reads the source.
func (r *Relocator) RelocateContent(ctx context.Context, src FileSystem, key, uploadID string, result *filevalidator.ValidationResult, content []byte) (Location, error) {
	status := StatusQuarantined
	if result.IsValid {
		status = StatusValidated
	}
	dst := r.Namespace(status)
	dstKey := dst.Key(key)
	loc := Location{Bucket: dst.Bucket, Key: dstKey}
	tags := ValidationTags(status, uploadID, result)

	tagger, canTag := dst.FS.(CanTag)
	var err error
	if content != nil {
		err = r.write(ctx, src, key, dst.FS, dstKey, content, tags, result)
	} else {
		err = r.transfer(ctx, src, key, dst.FS, dstKey, canTag, tags, result)
	}
	if err != nil {
		return Location{}, fmt.Errorf("relocate %s to %s: %w", key, loc, err)
	}

	if canTag {
		if err := tagger.SetTags(ctx, dstKey, tags); err != nil {
			return loc, fmt.Errorf("tag %s: %w", loc, err)
		}
	}

	if r.verify {
		if err := VerifyFingerprint(ctx, dst.FS, dstKey, result.Fingerprint); err != nil {
			if status == StatusValidated && errors.Is(err, ErrChecksumMismatch) {
				return r.evict(ctx, loc, key, uploadID, result, err)
			}
			return loc, err
		}
	}

	r.logger.DebugContext(ctx, "object relocated",
		"upload_id", uploadID,
		"from", key,
		"to", loc.String(),
		"status", status)
	return loc, nil
}

// transfer uses a native move or copy when the object stays on one
// filesystem that can also tag it. Otherwise the content is streamed with
// the tags written as object metadata.
func (r *Relocator) transfer(ctx context.Context, src FileSystem, srcKey string, dst FileSystem, dstKey string, canTag bool, tags map[string]string, result *filevalidator.ValidationResult) error {
	if src == dst && srcKey == dstKey {
		return nil
	}
	if src == dst && canTag {
		if mover, ok := src.(CanMove); ok {
			return mover.Move(ctx, srcKey, dstKey)
		}
		if copier, ok := src.(CanCopy); ok {
			if err := copier.Copy(ctx, srcKey, dstKey); err != nil {
				return err
			}
			return src.Delete(ctx, srcKey)
		}
	}

	body, err := src.Read(ctx, srcKey)
	if err != nil {
		return err
	}
	defer body.Close()

	if err := dst.Write(ctx, dstKey, body,
		WithContentType(storedContentType(result)),
		WithMetadata(tags),
		WithOverwrite(true),
	); err != nil {
		return err
	}
	return src.Delete(ctx, srcKey)
}

// write stores the validated bytes at dstKey and then removes the source,
// unless the source was replaced since it was read.
func (r *Relocator) write(ctx context.Context, src FileSystem, srcKey string, dst FileSystem, dstKey string, content []byte, tags map[string]string, result *filevalidator.ValidationResult) error {
	if src == dst && srcKey == dstKey && VerifyFingerprint(ctx, src, srcKey, result.Fingerprint) == nil {
		return nil
	}
	if err := dst.Write(ctx, dstKey, bytes.NewReader(content),
		WithContentType(storedContentType(result)),
		WithMetadata(tags),
		WithOverwrite(true),
	); err != nil {
		return err
	}
	if src == dst && srcKey == dstKey {
		return nil
	}

	if err := VerifyFingerprint(ctx, src, srcKey, result.Fingerprint); errors.Is(err, ErrChecksumMismatch) {
		r.logger.WarnContext(ctx, "upload replaced after validation, keeping source", "key", srcKey)
		return nil
	}
	if err := src.Delete(ctx, srcKey); err != nil && !IsNotExist(err) {
		return err
	}
	return nil
}

// evict moves a validated copy that failed verification into quarantine
// and tags it with the changed verdict. cause is always returned.
func (r *Relocator) evict(ctx context.Context, from Location, key, uploadID string, result *filevalidator.ValidationResult, cause error) (Location, error) {
	changed := ContentChanged(result)
	tags := ValidationTags(StatusQuarantined, uploadID, changed)

	q := r.quarantine
	qKey := q.Key(key)
	loc := Location{Bucket: q.Bucket, Key: qKey}
	tagger, canTag := q.FS.(CanTag)

	if err := r.transfer(ctx, r.validated.FS, from.Key, q.FS, qKey, canTag, tags, changed); err != nil {
		// Leave it where it is but stop it passing as validated
		if t, ok := r.validated.FS.(CanTag); ok {
			_ = t.SetTags(ctx, from.Key, tags)
		}
		return from, errors.Join(cause, fmt.Errorf("quarantine %s: %w", from, err))
	}
	if canTag {
		if err := tagger.SetTags(ctx, qKey, tags); err != nil {
			return loc, errors.Join(cause, fmt.Errorf("tag %s: %w", loc, err))
		}
	}

	r.logger.WarnContext(ctx, "relocated object failed verification, quarantined",
		"upload_id", uploadID,
		"from", from.String(),
		"to", loc.String(),
		"error", cause)
	return loc, cause
}

// ContentChanged returns a copy of result rejected with MsgContentChanged
func ContentChanged(result *filevalidator.ValidationResult) *filevalidator.ValidationResult {
	changed := *result
	changed.IsValid = false
	changed.Errors = append(append([]string(nil), result.Errors...), MsgContentChanged)
	return &changed
}

func storedContentType(result *filevalidator.ValidationResult) string {
	if result.DetectedContentType != "" {
		return result.DetectedContentType
	}
	return result.DeclaredContentType
}

// ValidationTags renders the validation metadata as object tags. Values are
// reduced to the character set object stores accept for tags.
func ValidationTags(status Status, uploadID string, result *filevalidator.ValidationResult) map[string]string {
	tags := map[string]string{
		TagStatus:   string(status),
		TagUploadID: uploadID,
	}
	if result.Fingerprint != "" {
		tags[TagFingerprint] = result.Fingerprint
	}
	if result.DetectedContentType != "" {
		tags[TagDetectedType] = result.DetectedContentType
	}
	if len(result.Errors) > 0 {
		tags[TagErrors] = strings.Join(result.Errors, " :: ")
	}
	if len(result.Warnings) > 0 {
		tags[TagWarnings] = strings.Join(result.Warnings, " :: ")
	}
	for k, v := range tags {
		tags[k] = sanitizeTagValue(v)
	}
	return tags
}

func sanitizeTagValue(v string) string {
	var b strings.Builder
	b.Grow(len(v))
	for _, c := range v {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			b.WriteRune(c)
		case strings.ContainsRune(" +-=._:/@", c):
			b.WriteRune(c)
		default:
			b.WriteByte('_')
		}
		if b.Len() >= maxTagValue {
			break
		}
	}
	s := b.String()
	if len(s) > maxTagValue {
		s = s[:maxTagValue]
	}
	return s
}
