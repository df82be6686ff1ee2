package filegate

// Option represents a write option
type Option func(*Options)

// Options contains all possible options for write operations
type Options struct {
	// ContentType specifies the MIME type of the file
	ContentType string

	// Metadata contains additional metadata for the file. Relocation stores
	// validation attributes here when the driver cannot tag objects.
	Metadata map[string]string

	// Overwrite determines whether to overwrite existing files
	Overwrite bool
}

// WithContentType sets the content type of the file
func WithContentType(contentType string) Option {
	return func(o *Options) {
		o.ContentType = contentType
	}
}

// WithMetadata sets additional metadata for the file
func WithMetadata(metadata map[string]string) Option {
	return func(o *Options) {
		o.Metadata = metadata
	}
}

// WithOverwrite enables or disables overwriting existing files
func WithOverwrite(overwrite bool) Option {
	return func(o *Options) {
		o.Overwrite = overwrite
	}
}

// ApplyOptions folds opts into a fresh Options value. Drivers call it at the
// top of Write.
func ApplyOptions(opts ...Option) *Options {
	options := &Options{}
	for _, opt := range opts {
		opt(options)
	}
	return options
}
