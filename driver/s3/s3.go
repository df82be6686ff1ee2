package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/gobwas/glob"

	"github.com/gobeaver/filegate"
)

// Client is the subset of the S3 API the adapter calls. *s3.Client
// satisfies it.
type Client interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	CopyObject(ctx context.Context, in *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	PutObjectTagging(ctx context.Context, in *s3.PutObjectTaggingInput, optFns ...func(*s3.Options)) (*s3.PutObjectTaggingOutput, error)
	GetObjectTagging(ctx context.Context, in *s3.GetObjectTaggingInput, optFns ...func(*s3.Options)) (*s3.GetObjectTaggingOutput, error)
}

// Adapter provides an S3 implementation of filegate.FileSystem for one
// bucket
type Adapter struct {
	client       Client
	bucket       string
	prefix       string
	pollInterval time.Duration
}

// AdapterOption is a function that configures Adapter
type AdapterOption func(*Adapter)

// WithPrefix sets the prefix for S3 objects
func WithPrefix(prefix string) AdapterOption {
	return func(a *Adapter) {
		// Ensure prefix ends with a slash if it's not empty
		if prefix != "" && !strings.HasSuffix(prefix, "/") {
			prefix += "/"
		}
		a.prefix = prefix
	}
}

// WithPollInterval sets how often Watch lists the bucket (default 10s)
func WithPollInterval(d time.Duration) AdapterOption {
	return func(a *Adapter) {
		if d > 0 {
			a.pollInterval = d
		}
	}
}

// New creates a new S3 filesystem adapter
func New(client Client, bucket string, options ...AdapterOption) *Adapter {
	adapter := &Adapter{
		client:       client,
		bucket:       bucket,
		pollInterval: 10 * time.Second,
	}

	for _, option := range options {
		option(adapter)
	}

	return adapter
}

// Bucket returns the bucket name
func (a *Adapter) Bucket() string {
	return a.bucket
}

func (a *Adapter) key(filePath string) string {
	return path.Join(a.prefix, strings.TrimPrefix(filePath, "/"))
}

func (a *Adapter) relPath(key string) string {
	return strings.TrimPrefix(strings.TrimPrefix(key, a.prefix), "/")
}

// Write implements filegate.FileWriter. Metadata becomes user metadata on
// the object.
func (a *Adapter) Write(ctx context.Context, filePath string, content io.Reader, options ...filegate.Option) error {
	if content == nil {
		return filegate.NewPathError("write", filePath, filegate.ErrInvalidSize)
	}
	opts := filegate.ApplyOptions(options...)
	key := a.key(filePath)

	if !opts.Overwrite {
		exists, err := a.FileExists(ctx, filePath)
		if err != nil {
			return err
		}
		if exists {
			return filegate.NewPathError("write", filePath, filegate.ErrExist)
		}
	}

	// Try to get content length and create a seekable body for streaming
	var body io.Reader
	var contentLength int64 = -1

	switch r := content.(type) {
	case *bytes.Reader:
		contentLength = int64(r.Len())
		body = r
	case *bytes.Buffer:
		contentLength = int64(r.Len())
		body = r
	case *strings.Reader:
		contentLength = int64(r.Len())
		body = r
	case *os.File:
		if info, err := r.Stat(); err == nil {
			pos, _ := r.Seek(0, io.SeekCurrent)
			contentLength = info.Size() - pos
		}
		body = r
	case io.ReadSeeker:
		pos, err := r.Seek(0, io.SeekCurrent)
		if err == nil {
			end, err := r.Seek(0, io.SeekEnd)
			if err == nil {
				contentLength = end - pos
				_, _ = r.Seek(pos, io.SeekStart)
			}
		}
		body = r
	default:
		// PutObject needs a known length
		data, err := io.ReadAll(content)
		if err != nil {
			return filegate.NewPathError("write", filePath, err)
		}
		contentLength = int64(len(data))
		body = bytes.NewReader(data)
	}

	input := &s3.PutObjectInput{
		Bucket:            aws.String(a.bucket),
		Key:               aws.String(key),
		Body:              body,
		ChecksumAlgorithm: types.ChecksumAlgorithmSha256,
	}
	if contentLength >= 0 {
		input.ContentLength = aws.Int64(contentLength)
	}
	if opts.ContentType != "" {
		input.ContentType = aws.String(opts.ContentType)
	}
	if len(opts.Metadata) > 0 {
		metadata := make(map[string]string, len(opts.Metadata))
		for k, v := range opts.Metadata {
			metadata[k] = v
		}
		input.Metadata = metadata
	}

	if _, err := a.client.PutObject(ctx, input); err != nil {
		return mapS3Error("write", filePath, err)
	}
	return nil
}

// Read implements filegate.FileReader
func (a *Adapter) Read(ctx context.Context, filePath string) (io.ReadCloser, error) {
	resp, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(a.key(filePath)),
	})
	if err != nil {
		return nil, mapS3Error("read", filePath, err)
	}

	return resp.Body, nil
}

// Delete implements filegate.FileWriter. S3 deletes are idempotent, so a
// missing key is reported only if HeadObject says so first.
func (a *Adapter) Delete(ctx context.Context, filePath string) error {
	exists, err := a.FileExists(ctx, filePath)
	if err != nil {
		return err
	}
	if !exists {
		return filegate.NewPathError("delete", filePath, filegate.ErrNotExist)
	}

	_, err = a.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(a.key(filePath)),
	})
	if err != nil {
		return mapS3Error("delete", filePath, err)
	}
	return nil
}

// FileExists implements filegate.FileReader
func (a *Adapter) FileExists(ctx context.Context, filePath string) (bool, error) {
	key := a.key(filePath)

	_, err := a.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, mapS3Error("fileexists", filePath, err)
	}

	return !strings.HasSuffix(key, "/"), nil
}

// Stat implements filegate.FileReader. A key with no object but with
// objects below it is reported as a directory.
func (a *Adapter) Stat(ctx context.Context, filePath string) (*filegate.FileInfo, error) {
	key := a.key(filePath)

	resp, err := a.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if !isNotFound(err) {
			return nil, mapS3Error("stat", filePath, err)
		}
		list, listErr := a.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:  aws.String(a.bucket),
			Prefix:  aws.String(strings.TrimSuffix(key, "/") + "/"),
			MaxKeys: aws.Int32(1),
		})
		if listErr != nil {
			return nil, mapS3Error("stat", filePath, listErr)
		}
		if len(list.Contents) == 0 {
			return nil, filegate.NewPathError("stat", filePath, filegate.ErrNotExist)
		}
		return &filegate.FileInfo{
			Name:  path.Base(filePath),
			Path:  a.relPath(key),
			IsDir: true,
		}, nil
	}

	var metadata map[string]string
	if len(resp.Metadata) > 0 {
		metadata = make(map[string]string, len(resp.Metadata))
		for k, v := range resp.Metadata {
			metadata[k] = v
		}
	}

	return &filegate.FileInfo{
		Name:        path.Base(filePath),
		Path:        a.relPath(key),
		Size:        aws.ToInt64(resp.ContentLength),
		ModTime:     aws.ToTime(resp.LastModified),
		IsDir:       strings.HasSuffix(key, "/"),
		ContentType: aws.ToString(resp.ContentType),
		Metadata:    metadata,
	}, nil
}

// ListContents implements filegate.FileReader. Listings carry no content
// type; callers that need one Stat the object.
func (a *Adapter) ListContents(ctx context.Context, prefix string, recursive bool) ([]filegate.FileInfo, error) {
	listPrefix := a.key(prefix)
	if listPrefix != "" && !strings.HasSuffix(listPrefix, "/") {
		listPrefix += "/"
	}

	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(a.bucket),
		Prefix: aws.String(listPrefix),
	}
	if !recursive {
		input.Delimiter = aws.String("/")
	}

	var files []filegate.FileInfo
	dirs := make(map[string]bool)

	paginator := s3.NewListObjectsV2Paginator(a.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, mapS3Error("listcontents", prefix, err)
		}

		for _, p := range page.CommonPrefixes {
			rel := strings.TrimSuffix(a.relPath(aws.ToString(p.Prefix)), "/")
			if rel == "" || dirs[rel] {
				continue
			}
			dirs[rel] = true
			files = append(files, filegate.FileInfo{Name: path.Base(rel), Path: rel, IsDir: true})
		}

		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if key == listPrefix || strings.HasSuffix(key, "/") {
				continue
			}
			rel := a.relPath(key)
			if recursive {
				// Implied directories between the listing root and the object
				parent := path.Dir(rel)
				root := strings.TrimSuffix(a.relPath(listPrefix), "/")
				for parent != "." && parent != root && !dirs[parent] {
					dirs[parent] = true
					files = append(files, filegate.FileInfo{Name: path.Base(parent), Path: parent, IsDir: true})
					parent = path.Dir(parent)
				}
			}
			files = append(files, filegate.FileInfo{
				Name:    path.Base(rel),
				Path:    rel,
				Size:    aws.ToInt64(obj.Size),
				ModTime: aws.ToTime(obj.LastModified),
			})
		}
	}

	if len(files) == 0 && listPrefix != "" && listPrefix != a.prefix {
		return nil, filegate.NewPathError("listcontents", prefix, filegate.ErrNotExist)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &nsk) || errors.As(err, &notFound) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound", "404":
			return true
		}
	}
	return false
}

func mapS3Error(op, filePath string, err error) error {
	if isNotFound(err) {
		return filegate.NewPathError(op, filePath, filegate.ErrNotExist)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == "AccessDenied" {
		return filegate.NewPathError(op, filePath, fmt.Errorf("%w: %s", filegate.ErrPermission, apiErr.ErrorMessage()))
	}

	return filegate.NewPathError(op, filePath, err)
}

// ============================================================================
// Optional Capability Interfaces
// ============================================================================

// copySource builds the URL-encoded "bucket/key" CopyObject expects
func (a *Adapter) copySource(key string) string {
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return a.bucket + "/" + strings.Join(segments, "/")
}

// Copy implements filegate.CanCopy using server-side CopyObject. Metadata
// and tags are copied with the object.
func (a *Adapter) Copy(ctx context.Context, src, dst string) error {
	_, err := a.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(a.bucket),
		CopySource: aws.String(a.copySource(a.key(src))),
		Key:        aws.String(a.key(dst)),
	})
	if err != nil {
		return mapS3Error("copy", src, err)
	}

	return nil
}

// Move implements filegate.CanMove as copy then delete
func (a *Adapter) Move(ctx context.Context, src, dst string) error {
	if a.key(src) == a.key(dst) {
		return nil
	}
	if err := a.Copy(ctx, src, dst); err != nil {
		return err
	}

	_, err := a.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(a.key(src)),
	})
	if err != nil {
		return mapS3Error("move", src, err)
	}

	return nil
}

// SetTags implements filegate.CanTag with PutObjectTagging
func (a *Adapter) SetTags(ctx context.Context, filePath string, tags map[string]string) error {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tagSet := make([]types.Tag, 0, len(tags))
	for _, k := range keys {
		tagSet = append(tagSet, types.Tag{Key: aws.String(k), Value: aws.String(tags[k])})
	}

	_, err := a.client.PutObjectTagging(ctx, &s3.PutObjectTaggingInput{
		Bucket:  aws.String(a.bucket),
		Key:     aws.String(a.key(filePath)),
		Tagging: &types.Tagging{TagSet: tagSet},
	})
	if err != nil {
		return mapS3Error("settags", filePath, err)
	}
	return nil
}

// Tags implements filegate.CanTag with GetObjectTagging
func (a *Adapter) Tags(ctx context.Context, filePath string) (map[string]string, error) {
	resp, err := a.client.GetObjectTagging(ctx, &s3.GetObjectTaggingInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(a.key(filePath)),
	})
	if err != nil {
		return nil, mapS3Error("tags", filePath, err)
	}

	tags := make(map[string]string, len(resp.TagSet))
	for _, t := range resp.TagSet {
		tags[aws.ToString(t.Key)] = aws.ToString(t.Value)
	}
	return tags, nil
}

// Checksum implements filegate.CanChecksum by streaming the object through
// the hasher. ETags are not content hashes for multipart uploads.
func (a *Adapter) Checksum(ctx context.Context, filePath string, algorithm filegate.ChecksumAlgorithm) (string, error) {
	rc, err := a.Read(ctx, filePath)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	sum, err := filegate.CalculateChecksum(rc, algorithm)
	if err != nil {
		return "", filegate.NewPathError("checksum", filePath, err)
	}
	return sum, nil
}

// Watch implements filegate.CanWatch by polling. The bucket is listed
// every poll interval and the token fires once the set of matching keys,
// or the ETag of one of them, differs from the listing taken at Watch time.
func (a *Adapter) Watch(ctx context.Context, filter string) (filegate.ChangeToken, error) {
	g, err := glob.Compile(filter)
	if err != nil {
		return nil, filegate.NewPathError("watch", filter, err)
	}

	initial, err := a.snapshot(ctx, g)
	if err != nil {
		return nil, err
	}

	return filegate.NewPollingChangeToken(ctx, filegate.PollingConfig{
		Interval: a.pollInterval,
		CheckFunc: func() bool {
			current, err := a.snapshot(ctx, g)
			if err != nil {
				return false
			}
			return !sameSnapshot(initial, current)
		},
	}), nil
}

func (a *Adapter) snapshot(ctx context.Context, g glob.Glob) (map[string]string, error) {
	snap := make(map[string]string)
	paginator := s3.NewListObjectsV2Paginator(a.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(a.bucket),
		Prefix: aws.String(a.prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, mapS3Error("watch", a.prefix, err)
		}
		for _, obj := range page.Contents {
			rel := a.relPath(aws.ToString(obj.Key))
			if g.Match(rel) || g.Match(path.Base(rel)) {
				snap[rel] = aws.ToString(obj.ETag)
			}
		}
	}
	return snap, nil
}

func sameSnapshot(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if w, ok := b[k]; !ok || w != v {
			return false
		}
	}
	return true
}

// Ensure Adapter implements interfaces
var (
	_ filegate.FileSystem  = (*Adapter)(nil)
	_ filegate.CanCopy     = (*Adapter)(nil)
	_ filegate.CanMove     = (*Adapter)(nil)
	_ filegate.CanTag      = (*Adapter)(nil)
	_ filegate.CanChecksum = (*Adapter)(nil)
	_ filegate.CanWatch    = (*Adapter)(nil)
	_ Client               = (*s3.Client)(nil)
)
