package filegate

import (
	"bytes"
	"context"
	"io"
	"path"
	"strings"

	"github.com/gobeaver/filegate/filevalidator"
)

// ValidatedFileSystem wraps a FileSystem so that every Write is validated
// first. Rejected content is never written.
type ValidatedFileSystem struct {
	fs        FileSystem
	validator ContentValidator
}

// NewValidatedFileSystem creates a new FileSystem with validation
func NewValidatedFileSystem(fs FileSystem, validator ContentValidator) *ValidatedFileSystem {
	return &ValidatedFileSystem{
		fs:        fs,
		validator: validator,
	}
}

// Unwrap returns the underlying filesystem
func (v *ValidatedFileSystem) Unwrap() FileSystem {
	return v.fs
}

// Write validates content and writes it when valid. The declared content
// type is the WithContentType option, falling back to the path extension.
// An invalid file yields a *filevalidator.RejectionError carrying every
// validation error.
func (v *ValidatedFileSystem) Write(ctx context.Context, p string, content io.Reader, options ...Option) error {
	opts := ApplyOptions(options...)
	declared := opts.ContentType
	if declared == "" {
		declared = filevalidator.MIMETypeForExtension(strings.ToLower(path.Ext(p)))
	}

	// The validator buffers the whole stream anyway, so keep the copy for
	// the write instead of reading twice
	var buf bytes.Buffer
	var declaredSize int64
	if sized, ok := content.(interface{ Len() int }); ok {
		declaredSize = int64(sized.Len())
	}
	if content != nil {
		content = io.TeeReader(content, &buf)
	}

	result := v.validator.ValidateContext(ctx, content, declared, declaredSize)
	if err := result.Err(); err != nil {
		return NewPathError("write", p, err)
	}

	if opts.ContentType == "" && result.DetectedContentType != "" {
		options = append(options, WithContentType(result.DetectedContentType))
	}
	return v.fs.Write(ctx, p, &buf, options...)
}

// Read implements FileSystem
func (v *ValidatedFileSystem) Read(ctx context.Context, path string) (io.ReadCloser, error) {
	return v.fs.Read(ctx, path)
}

// Delete implements FileSystem
func (v *ValidatedFileSystem) Delete(ctx context.Context, path string) error {
	return v.fs.Delete(ctx, path)
}

// FileExists implements FileSystem
func (v *ValidatedFileSystem) FileExists(ctx context.Context, path string) (bool, error) {
	return v.fs.FileExists(ctx, path)
}

// Stat implements FileSystem
func (v *ValidatedFileSystem) Stat(ctx context.Context, path string) (*FileInfo, error) {
	return v.fs.Stat(ctx, path)
}

// ListContents implements FileSystem
func (v *ValidatedFileSystem) ListContents(ctx context.Context, path string, recursive bool) ([]FileInfo, error) {
	return v.fs.ListContents(ctx, path, recursive)
}
