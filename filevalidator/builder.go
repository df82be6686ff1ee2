package filevalidator

import "log/slog"

// Builder provides a fluent API for constructing validators
type Builder struct {
	opts     Options
	options  []Option
	registry *CheckerRegistry
	sigs     []ThreatSignature
	scanners []ThreatScanner
}

// NewBuilder creates a new validator builder with the invoice defaults
func NewBuilder() *Builder {
	return &Builder{
		opts: DefaultOptions(),
	}
}

// Empty creates a builder with nothing allowed and every optional stage off
func Empty() *Builder {
	return &Builder{
		opts: Options{MaxSizeBytes: DefaultMaxSize},
	}
}

// WithOptions replaces every option at once
func (b *Builder) WithOptions(opts Options) *Builder {
	b.opts = opts.normalized()
	return b
}

// --- Size ---

// MaxSize sets the maximum allowed file size
func (b *Builder) MaxSize(size int64) *Builder {
	b.opts.MaxSizeBytes = size
	return b
}

// --- Content types ---

// Accept adds content types to the allow-list
func (b *Builder) Accept(contentTypes ...string) *Builder {
	for _, ct := range contentTypes {
		if !containsString(b.opts.AllowedContentTypes, ct) {
			b.opts.AllowedContentTypes = append(b.opts.AllowedContentTypes, ct)
		}
	}
	return b
}

// AcceptOnly replaces the allow-list
func (b *Builder) AcceptOnly(contentTypes ...string) *Builder {
	b.opts.AllowedContentTypes = nil
	return b.Accept(contentTypes...)
}

// AcceptInvoices adds the invoice content types
func (b *Builder) AcceptInvoices() *Builder {
	return b.Accept(InvoiceContentTypes()...)
}

// RequireAllowedDetectedType also gates on the sniffed content type
func (b *Builder) RequireAllowedDetectedType() *Builder {
	b.opts.RequireAllowedDetectedType = true
	return b
}

// --- Stages ---

// WithThreatScan enables the threat scanner stage
func (b *Builder) WithThreatScan() *Builder {
	b.opts.PerformThreatScan = true
	return b
}

// WithoutThreatScan disables the threat scanner stage
func (b *Builder) WithoutThreatScan() *Builder {
	b.opts.PerformThreatScan = false
	return b
}

// WithFingerprint enables the content fingerprint
func (b *Builder) WithFingerprint() *Builder {
	b.opts.ComputeFingerprint = true
	return b
}

// WithoutFingerprint disables the content fingerprint
func (b *Builder) WithoutFingerprint() *Builder {
	b.opts.ComputeFingerprint = false
	return b
}

// WithSignatures adds signatures to the in-process scanner, on top of the
// built-in set
func (b *Builder) WithSignatures(sigs ...ThreatSignature) *Builder {
	b.sigs = append(b.sigs, sigs...)
	return b
}

// WithScanner adds a scanner that runs after the in-process one
func (b *Builder) WithScanner(s ThreatScanner) *Builder {
	if s != nil {
		b.scanners = append(b.scanners, s)
	}
	return b
}

// WithRegistry uses a custom structural checker registry
func (b *Builder) WithRegistry(registry *CheckerRegistry) *Builder {
	b.registry = registry
	return b
}

// WithChecker registers an additional structural checker
func (b *Builder) WithChecker(checker StructuralChecker) *Builder {
	if b.registry == nil {
		b.registry = DefaultRegistry()
	}
	b.registry.Register(checker)
	return b
}

// WithLogger sets the validator logger
func (b *Builder) WithLogger(l *slog.Logger) *Builder {
	b.options = append(b.options, WithLogger(l))
	return b
}

// --- Build ---

// Build creates the validator with the configured options
func (b *Builder) Build() *Validator {
	options := make([]Option, 0, len(b.options)+2)
	if b.registry != nil {
		options = append(options, WithRegistry(b.registry.Clone()))
	}

	sigs := append(DefaultThreatSignatures(), b.sigs...)
	var scanner ThreatScanner = NewSignatureScanner(sigs...)
	if len(b.scanners) > 0 {
		chain := ChainScanner{scanner}
		chain = append(chain, b.scanners...)
		scanner = chain
	}
	options = append(options, WithScanner(scanner))
	options = append(options, b.options...)

	return New(b.opts, options...)
}

// Options returns the current options (for inspection)
func (b *Builder) Options() Options {
	return b.opts.normalized()
}

// --- Presets ---

// ForInvoices creates a builder pre-configured for invoice uploads
func ForInvoices() *Builder {
	return NewBuilder()
}

// ForImages creates a builder accepting the supported image formats only
func ForImages() *Builder {
	return NewBuilder().
		AcceptOnly(MIMETypeJPEG, MIMETypePNG, MIMETypeTIFF).
		MaxSize(10 * MB)
}

// Strict creates an invoice builder that also gates on the detected type
func Strict() *Builder {
	return NewBuilder().RequireAllowedDetectedType()
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
