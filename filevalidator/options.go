package filevalidator

// Size constants for easier file size configuration
const (
	KB = int64(1024)
	MB = KB * 1024
	GB = MB * 1024
)

// DefaultMaxSize is the invoice upload ceiling (50 MiB).
const DefaultMaxSize = 50 * MB

// Options defines the configuration for file validation.
// A Validator copies its Options at construction; changing the value afterwards
// has no effect on validators already built from it.
type Options struct {
	// MaxSizeBytes is the maximum accepted content length in bytes.
	// Use the provided constants for readable configuration, e.g., 50 * MB
	MaxSizeBytes int64

	// AllowedContentTypes is the allow-list for declared content types.
	// Membership is an exact string match.
	AllowedContentTypes []string

	// PerformThreatScan enables the threat scanner stage
	PerformThreatScan bool

	// ComputeFingerprint enables the SHA-256 content fingerprint
	ComputeFingerprint bool

	// RequireAllowedDetectedType also gates on the sniffed content type: when a
	// signature matches a type outside AllowedContentTypes, an error is added.
	RequireAllowedDetectedType bool
}

// DefaultOptions returns the invoice admission defaults: 50 MiB, the invoice
// content types, threat scanning and fingerprinting enabled.
func DefaultOptions() Options {
	return Options{
		MaxSizeBytes:        DefaultMaxSize,
		AllowedContentTypes: InvoiceContentTypes(),
		PerformThreatScan:   true,
		ComputeFingerprint:  true,
	}
}

// normalized returns a copy that is safe to keep: a non-positive size falls
// back to DefaultMaxSize and the allow-list slice is not shared with the caller.
func (o Options) normalized() Options {
	if o.MaxSizeBytes <= 0 {
		o.MaxSizeBytes = DefaultMaxSize
	}
	types := make([]string, len(o.AllowedContentTypes))
	copy(types, o.AllowedContentTypes)
	o.AllowedContentTypes = types
	return o
}
