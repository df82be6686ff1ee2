package filegate

import (
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/gobeaver/filegate/filevalidator"
)

// Object is a fetched upload: its content stream plus what the store knows
// about it. The caller must close Body.
type Object struct {
	Body          io.ReadCloser
	ContentType   string
	ContentLength int64
	Metadata      map[string]string
}

// ObjectGetter fetches one object from a named bucket
type ObjectGetter interface {
	GetObject(ctx context.Context, bucket, key string) (*Object, error)
}

// Buckets maps bucket names onto filesystems. It is the gate's upstream
// source and the lookup used to resolve relocation namespaces.
type Buckets struct {
	mu      sync.RWMutex
	buckets map[string]FileSystem
}

// NewBuckets creates an empty bucket registry
func NewBuckets() *Buckets {
	return &Buckets{buckets: make(map[string]FileSystem)}
}

// Mount attaches a filesystem under a bucket name. Names must be unique.
func (b *Buckets) Mount(name string, fs FileSystem) error {
	if fs == nil {
		return fmt.Errorf("mount %q: filesystem cannot be nil", name)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: bucket name cannot be empty", ErrInvalidName)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.buckets[name]; exists {
		return fmt.Errorf("%w: bucket %s", ErrExist, name)
	}
	b.buckets[name] = fs
	return nil
}

// Unmount removes a bucket
func (b *Buckets) Unmount(name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.buckets[name]; !exists {
		return fmt.Errorf("%w: %s", ErrUnknownBucket, name)
	}
	delete(b.buckets, name)
	return nil
}

// Bucket returns the filesystem mounted under name
func (b *Buckets) Bucket(name string) (FileSystem, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	fs, ok := b.buckets[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBucket, name)
	}
	return fs, nil
}

// Names returns all bucket names in sorted order
func (b *Buckets) Names() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	names := make([]string, 0, len(b.buckets))
	for name := range b.buckets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetObject opens key in bucket. The content type comes from the driver's
// metadata, falling back to the key's extension.
func (b *Buckets) GetObject(ctx context.Context, bucket, key string) (*Object, error) {
	fs, err := b.Bucket(bucket)
	if err != nil {
		return nil, err
	}

	info, err := fs.Stat(ctx, key)
	if err != nil {
		return nil, err
	}
	if info.IsDir {
		return nil, NewPathError("get", key, ErrIsDir)
	}

	body, err := fs.Read(ctx, key)
	if err != nil {
		return nil, err
	}

	contentType := info.ContentType
	if contentType == "" || contentType == "application/octet-stream" {
		if guessed := filevalidator.MIMETypeForExtension(strings.ToLower(path.Ext(key))); guessed != "" {
			contentType = guessed
		}
	}

	return &Object{
		Body:          body,
		ContentType:   contentType,
		ContentLength: info.Size,
		Metadata:      info.Metadata,
	}, nil
}
