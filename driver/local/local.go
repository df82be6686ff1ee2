package local

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/gobeaver/filegate"
	"github.com/gobeaver/filegate/filevalidator"
)

// metaDir holds one JSON sidecar per object with its content type, metadata
// and tags. It lives under the root and is hidden from listings and watches.
const metaDir = ".filegate"

// Adapter provides a local filesystem implementation of filegate.FileSystem
type Adapter struct {
	root string

	// serializes sidecar read-modify-write
	metaMu sync.Mutex
}

// sidecar is the on-disk attribute record for one object
type sidecar struct {
	ContentType string            `json:"content_type,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Tags        map[string]string `json:"tags,omitempty"`
}

// New creates a new local filesystem adapter
func New(root string) (*Adapter, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	// Ensure the root directory exists
	if err := os.MkdirAll(absRoot, 0755); err != nil {
		return nil, err
	}

	return &Adapter{
		root: absRoot,
	}, nil
}

// Root returns the absolute root directory
func (a *Adapter) Root() string {
	return a.root
}

// Write implements filegate.FileWriter. The file is written to a temporary
// name and renamed into place, so readers never see a partial object.
func (a *Adapter) Write(ctx context.Context, path string, content io.Reader, options ...filegate.Option) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		// Continue
	}

	fullPath, err := a.resolve("write", path)
	if err != nil {
		return err
	}
	if fullPath == a.root {
		return &filegate.PathError{Op: "write", Path: path, Err: filegate.ErrNotAllowed}
	}
	if content == nil {
		return &filegate.PathError{Op: "write", Path: path, Err: filegate.ErrInvalidSize}
	}

	opts := filegate.ApplyOptions(options...)
	if !opts.Overwrite {
		if _, err := os.Stat(fullPath); err == nil {
			return &filegate.PathError{Op: "write", Path: path, Err: filegate.ErrExist}
		}
	}

	// Ensure the directory exists
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return &filegate.PathError{Op: "write", Path: path, Err: err}
	}

	f, err := os.CreateTemp(filepath.Dir(fullPath), ".upload-*")
	if err != nil {
		return &filegate.PathError{Op: "write", Path: path, Err: err}
	}
	tmp := f.Name()

	if _, err := io.Copy(f, content); err != nil {
		f.Close()
		os.Remove(tmp)
		return &filegate.PathError{Op: "write", Path: path, Err: err}
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return &filegate.PathError{Op: "write", Path: path, Err: err}
	}
	if err := os.Chmod(tmp, 0644); err != nil {
		os.Remove(tmp)
		return &filegate.PathError{Op: "write", Path: path, Err: err}
	}
	if err := os.Rename(tmp, fullPath); err != nil {
		os.Remove(tmp)
		return &filegate.PathError{Op: "write", Path: path, Err: err}
	}

	a.metaMu.Lock()
	defer a.metaMu.Unlock()
	meta := sidecar{ContentType: opts.ContentType, Metadata: opts.Metadata}
	if err := a.writeSidecar(fullPath, meta); err != nil {
		return &filegate.PathError{Op: "write", Path: path, Err: err}
	}
	return nil
}

// Read implements filegate.FileReader
func (a *Adapter) Read(ctx context.Context, path string) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
		// Continue
	}

	fullPath, err := a.resolve("read", path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(fullPath)
	if err != nil {
		return nil, mapError("read", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, mapError("read", path, err)
	}
	if info.IsDir() {
		f.Close()
		return nil, &filegate.PathError{Op: "read", Path: path, Err: filegate.ErrIsDir}
	}

	return f, nil
}

// ReadAll reads the whole file into memory
func (a *Adapter) ReadAll(ctx context.Context, path string) ([]byte, error) {
	rc, err := a.Read(ctx, path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	return io.ReadAll(rc)
}

// Delete implements filegate.FileWriter
func (a *Adapter) Delete(ctx context.Context, path string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		// Continue
	}

	fullPath, err := a.resolve("delete", path)
	if err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil {
		return mapError("delete", path, err)
	}
	a.removeSidecar(fullPath)

	return nil
}

// FileExists implements filegate.FileReader
func (a *Adapter) FileExists(ctx context.Context, path string) (bool, error) {
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	default:
		// Continue
	}

	fullPath, err := a.resolve("fileexists", path)
	if err != nil {
		return false, err
	}

	info, err := os.Stat(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, mapError("fileexists", path, err)
	}

	// Return true only if it's a file (not a directory)
	return !info.IsDir(), nil
}

// Stat implements filegate.FileReader
func (a *Adapter) Stat(ctx context.Context, path string) (*filegate.FileInfo, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
		// Continue
	}

	fullPath, err := a.resolve("stat", path)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(fullPath)
	if err != nil {
		return nil, mapError("stat", path, err)
	}

	fi := a.fileInfo(fullPath, info)
	return &fi, nil
}

// ListContents implements filegate.FileReader. Paths are slash separated
// and relative to the root; the sidecar directory is never listed.
func (a *Adapter) ListContents(ctx context.Context, path string, recursive bool) ([]filegate.FileInfo, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
		// Continue
	}

	fullPath, err := a.resolve("listcontents", path)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(fullPath)
	if err != nil {
		return nil, mapError("listcontents", path, err)
	}
	if !info.IsDir() {
		return nil, &filegate.PathError{Op: "listcontents", Path: path, Err: filegate.ErrNotDir}
	}

	var files []filegate.FileInfo

	if recursive {
		err = filepath.WalkDir(fullPath, func(walkPath string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if walkPath == fullPath {
				return nil
			}
			if a.hidden(walkPath, d) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			info, err := d.Info()
			if err != nil {
				return nil
			}
			files = append(files, a.fileInfo(walkPath, info))
			return nil
		})
		if err != nil {
			return nil, &filegate.PathError{Op: "listcontents", Path: path, Err: err}
		}
	} else {
		entries, err := os.ReadDir(fullPath)
		if err != nil {
			return nil, &filegate.PathError{Op: "listcontents", Path: path, Err: err}
		}

		files = make([]filegate.FileInfo, 0, len(entries))
		for _, entry := range entries {
			entryPath := filepath.Join(fullPath, entry.Name())
			if a.hidden(entryPath, entry) {
				continue
			}
			info, err := entry.Info()
			if err != nil {
				continue
			}
			files = append(files, a.fileInfo(entryPath, info))
		}
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// resolve maps a slash separated key to an absolute path under the root
func (a *Adapter) resolve(op, path string) (string, error) {
	fullPath := filepath.Join(a.root, filepath.Clean("/"+filepath.FromSlash(path)))
	if !isPathUnderRoot(a.root, fullPath) || strings.Contains(path, "..") {
		return "", &filegate.PathError{Op: op, Path: path, Err: filegate.ErrNotAllowed}
	}
	if rel, _ := filepath.Rel(a.root, fullPath); rel == metaDir || strings.HasPrefix(rel, metaDir+string(filepath.Separator)) {
		return "", &filegate.PathError{Op: op, Path: path, Err: filegate.ErrNotAllowed}
	}
	return fullPath, nil
}

// key returns the slash separated key of an absolute path
func (a *Adapter) key(fullPath string) string {
	rel, err := filepath.Rel(a.root, fullPath)
	if err != nil || rel == "." {
		return ""
	}
	return filepath.ToSlash(rel)
}

// hidden reports whether an entry is internal: the sidecar directory or an
// in-flight temporary file
func (a *Adapter) hidden(fullPath string, d os.DirEntry) bool {
	name := d.Name()
	if d.IsDir() {
		return filepath.Dir(fullPath) == a.root && name == metaDir
	}
	return strings.HasPrefix(name, ".upload-")
}

func (a *Adapter) fileInfo(fullPath string, info os.FileInfo) filegate.FileInfo {
	fi := filegate.FileInfo{
		Name:    info.Name(),
		Path:    a.key(fullPath),
		Size:    info.Size(),
		ModTime: info.ModTime(),
		IsDir:   info.IsDir(),
	}
	if info.IsDir() {
		fi.Size = 0
		return fi
	}

	meta, _ := a.readSidecar(fullPath)
	fi.ContentType = meta.ContentType
	if fi.ContentType == "" {
		fi.ContentType = getContentType(fullPath)
	}
	fi.Metadata = meta.Metadata
	return fi
}

// isPathUnderRoot checks if a path is under a given root directory
func isPathUnderRoot(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}

	return !filepath.IsAbs(rel) && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// getContentType derives the content type from the extension only. Objects
// in an incoming bucket are untrusted, so the type stands in for what the
// client declared and content is never sniffed here.
func getContentType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ct := filevalidator.MIMETypeForExtension(ext); ct != "" {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func mapError(op, path string, err error) error {
	switch {
	case os.IsNotExist(err):
		return &filegate.PathError{Op: op, Path: path, Err: filegate.ErrNotExist}
	case os.IsPermission(err):
		return &filegate.PathError{Op: op, Path: path, Err: filegate.ErrPermission}
	default:
		return &filegate.PathError{Op: op, Path: path, Err: err}
	}
}

// ============================================================================
// Sidecar Attributes
// ============================================================================

func (a *Adapter) sidecarPath(fullPath string) string {
	rel, _ := filepath.Rel(a.root, fullPath)
	return filepath.Join(a.root, metaDir, rel+".json")
}

func (a *Adapter) readSidecar(fullPath string) (sidecar, error) {
	var meta sidecar
	data, err := os.ReadFile(a.sidecarPath(fullPath))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return meta, nil
		}
		return meta, err
	}
	err = json.Unmarshal(data, &meta)
	return meta, err
}

func (a *Adapter) writeSidecar(fullPath string, meta sidecar) error {
	p := a.sidecarPath(fullPath)
	if meta.ContentType == "" && len(meta.Metadata) == 0 && len(meta.Tags) == 0 {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		return nil
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return err
	}
	return os.WriteFile(p, data, 0644)
}

func (a *Adapter) removeSidecar(fullPath string) {
	_ = os.Remove(a.sidecarPath(fullPath))
}

// ============================================================================
// Optional Capability Interfaces
// ============================================================================

// Copy implements filegate.CanCopy. Attributes and tags are copied along.
func (a *Adapter) Copy(ctx context.Context, src, dst string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	srcPath, err := a.resolve("copy", src)
	if err != nil {
		return err
	}
	dstPath, err := a.resolve("copy", dst)
	if err != nil {
		return err
	}

	srcFile, err := os.Open(srcPath)
	if err != nil {
		return mapError("copy", src, err)
	}
	defer srcFile.Close()

	if err := os.MkdirAll(filepath.Dir(dstPath), 0755); err != nil {
		return &filegate.PathError{Op: "copy", Path: dst, Err: err}
	}

	dstFile, err := os.Create(dstPath)
	if err != nil {
		return &filegate.PathError{Op: "copy", Path: dst, Err: err}
	}
	if _, err := io.Copy(dstFile, srcFile); err != nil {
		dstFile.Close()
		return &filegate.PathError{Op: "copy", Path: dst, Err: err}
	}
	if err := dstFile.Close(); err != nil {
		return &filegate.PathError{Op: "copy", Path: dst, Err: err}
	}

	a.metaMu.Lock()
	defer a.metaMu.Unlock()
	meta, err := a.readSidecar(srcPath)
	if err != nil {
		return &filegate.PathError{Op: "copy", Path: src, Err: err}
	}
	if err := a.writeSidecar(dstPath, meta); err != nil {
		return &filegate.PathError{Op: "copy", Path: dst, Err: err}
	}
	return nil
}

// Move implements filegate.CanMove for native file moving/renaming.
func (a *Adapter) Move(ctx context.Context, src, dst string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	srcPath, err := a.resolve("move", src)
	if err != nil {
		return err
	}
	dstPath, err := a.resolve("move", dst)
	if err != nil {
		return err
	}

	if _, err := os.Stat(srcPath); err != nil {
		return mapError("move", src, err)
	}
	if srcPath == dstPath {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(dstPath), 0755); err != nil {
		return &filegate.PathError{Op: "move", Path: dst, Err: err}
	}

	// Try rename first (works if same filesystem)
	if err := os.Rename(srcPath, dstPath); err != nil {
		// Cross-device: fall back to copy+delete
		if err := a.Copy(ctx, src, dst); err != nil {
			return err
		}
		if err := os.Remove(srcPath); err != nil {
			return &filegate.PathError{Op: "move", Path: src, Err: err}
		}
		a.removeSidecar(srcPath)
		return nil
	}

	a.metaMu.Lock()
	defer a.metaMu.Unlock()
	meta, err := a.readSidecar(srcPath)
	if err != nil {
		return &filegate.PathError{Op: "move", Path: src, Err: err}
	}
	if err := a.writeSidecar(dstPath, meta); err != nil {
		return &filegate.PathError{Op: "move", Path: dst, Err: err}
	}
	a.removeSidecar(srcPath)
	return nil
}

// Checksum implements filegate.CanChecksum for local files.
func (a *Adapter) Checksum(ctx context.Context, path string, algorithm filegate.ChecksumAlgorithm) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	fullPath, err := a.resolve("checksum", path)
	if err != nil {
		return "", err
	}

	file, err := os.Open(fullPath)
	if err != nil {
		return "", mapError("checksum", path, err)
	}
	defer file.Close()

	checksum, err := filegate.CalculateChecksum(file, algorithm)
	if err != nil {
		return "", &filegate.PathError{Op: "checksum", Path: path, Err: err}
	}

	return checksum, nil
}

// SetTags implements filegate.CanTag. Tags live in the object's sidecar.
func (a *Adapter) SetTags(ctx context.Context, path string, tags map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	fullPath, err := a.resolve("settags", path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(fullPath); err != nil {
		return mapError("settags", path, err)
	}

	a.metaMu.Lock()
	defer a.metaMu.Unlock()
	meta, err := a.readSidecar(fullPath)
	if err != nil {
		return &filegate.PathError{Op: "settags", Path: path, Err: err}
	}
	meta.Tags = make(map[string]string, len(tags))
	for k, v := range tags {
		meta.Tags[k] = v
	}
	if err := a.writeSidecar(fullPath, meta); err != nil {
		return &filegate.PathError{Op: "settags", Path: path, Err: err}
	}
	return nil
}

// Tags implements filegate.CanTag
func (a *Adapter) Tags(ctx context.Context, path string) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fullPath, err := a.resolve("tags", path)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(fullPath); err != nil {
		return nil, mapError("tags", path, err)
	}

	meta, err := a.readSidecar(fullPath)
	if err != nil {
		return nil, &filegate.PathError{Op: "tags", Path: path, Err: err}
	}
	if meta.Tags == nil {
		meta.Tags = map[string]string{}
	}
	return meta.Tags, nil
}

// Ensure Adapter implements interfaces
var (
	_ filegate.FileSystem  = (*Adapter)(nil)
	_ filegate.CanCopy     = (*Adapter)(nil)
	_ filegate.CanMove     = (*Adapter)(nil)
	_ filegate.CanChecksum = (*Adapter)(nil)
	_ filegate.CanTag      = (*Adapter)(nil)
	_ filegate.CanWatch    = (*Adapter)(nil)
)
