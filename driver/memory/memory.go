package memory

import (
	"bytes"
	"context"
	"io"
	"mime"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gobwas/glob"

	"github.com/gobeaver/filegate"
	"github.com/gobeaver/filegate/filevalidator"
)

// memoryFile represents a file stored in memory
type memoryFile struct {
	content     []byte
	contentType string
	metadata    map[string]string
	tags        map[string]string
	modTime     time.Time
}

// watchEntry represents a single watch subscription
type watchEntry struct {
	filter glob.Glob
	token  *filegate.CallbackChangeToken
}

// Adapter provides an in-memory implementation of filegate.FileSystem.
// Directories are implied by file paths. Useful for tests and local
// development.
type Adapter struct {
	mu      sync.RWMutex
	files   map[string]*memoryFile
	maxSize int64 // Maximum total storage size (0 = unlimited)
	size    int64 // Current total size

	// Watch support
	watchMu sync.RWMutex
	watches []*watchEntry
}

// Config holds configuration for the memory adapter
type Config struct {
	// MaxSize is the maximum total storage size in bytes (0 = unlimited)
	MaxSize int64
}

// New creates a new in-memory filesystem adapter
func New(cfg ...Config) *Adapter {
	var maxSize int64
	if len(cfg) > 0 {
		maxSize = cfg[0].MaxSize
	}
	return &Adapter{
		files:   make(map[string]*memoryFile),
		maxSize: maxSize,
	}
}

// Write implements filegate.FileWriter
func (a *Adapter) Write(ctx context.Context, path string, content io.Reader, options ...filegate.Option) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path = normalizePath(path)
	if !isValidPath(path) {
		return filegate.NewPathError("write", path, filegate.ErrNotAllowed)
	}
	if content == nil {
		return filegate.NewPathError("write", path, filegate.ErrInvalidSize)
	}

	data, err := io.ReadAll(content)
	if err != nil {
		return filegate.NewPathError("write", path, err)
	}

	opts := filegate.ApplyOptions(options...)

	a.mu.Lock()
	defer a.mu.Unlock()

	var oldSize int64
	if existing, exists := a.files[path]; exists {
		if !opts.Overwrite {
			return filegate.NewPathError("write", path, filegate.ErrExist)
		}
		oldSize = int64(len(existing.content))
	}

	newSize := a.size - oldSize + int64(len(data))
	if a.maxSize > 0 && newSize > a.maxSize {
		return filegate.NewPathError("write", path, filegate.ErrInvalidSize)
	}

	contentType := opts.ContentType
	if contentType == "" {
		contentType = contentTypeForPath(path)
	}

	a.files[path] = &memoryFile{
		content:     data,
		contentType: contentType,
		metadata:    copyMap(opts.Metadata),
		modTime:     time.Now(),
	}
	a.size = newSize

	go a.notifyWatchers(path)
	return nil
}

// Read implements filegate.FileReader
func (a *Adapter) Read(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path = normalizePath(path)

	a.mu.RLock()
	defer a.mu.RUnlock()

	file, exists := a.files[path]
	if !exists {
		return nil, filegate.NewPathError("read", path, filegate.ErrNotExist)
	}
	return io.NopCloser(bytes.NewReader(file.content)), nil
}

// ReadAll reads a whole file
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
	if err := ctx.Err(); err != nil {
		return err
	}

	path = normalizePath(path)

	a.mu.Lock()
	defer a.mu.Unlock()

	file, exists := a.files[path]
	if !exists {
		return filegate.NewPathError("delete", path, filegate.ErrNotExist)
	}
	a.size -= int64(len(file.content))
	delete(a.files, path)

	go a.notifyWatchers(path)
	return nil
}

// FileExists implements filegate.FileReader
func (a *Adapter) FileExists(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	path = normalizePath(path)

	a.mu.RLock()
	defer a.mu.RUnlock()
	_, exists := a.files[path]
	return exists, nil
}

// Stat implements filegate.FileReader
func (a *Adapter) Stat(ctx context.Context, path string) (*filegate.FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path = normalizePath(path)

	a.mu.RLock()
	defer a.mu.RUnlock()

	if file, exists := a.files[path]; exists {
		info := fileInfo(path, file)
		return &info, nil
	}
	if a.isDirLocked(path) {
		return &filegate.FileInfo{
			Name:  filepath.Base(path),
			Path:  path,
			IsDir: true,
		}, nil
	}
	return nil, filegate.NewPathError("stat", path, filegate.ErrNotExist)
}

// ListContents implements filegate.FileReader
func (a *Adapter) ListContents(ctx context.Context, path string, recursive bool) ([]filegate.FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path = normalizePath(path)

	a.mu.RLock()
	defer a.mu.RUnlock()

	if path != "" && !a.isDirLocked(path) {
		if _, isFile := a.files[path]; isFile {
			return nil, filegate.NewPathError("listcontents", path, filegate.ErrNotDir)
		}
		return nil, filegate.NewPathError("listcontents", path, filegate.ErrNotExist)
	}

	prefix := ""
	if path != "" {
		prefix = path + "/"
	}

	var files []filegate.FileInfo
	dirs := make(map[string]bool)
	for filePath, file := range a.files {
		if !strings.HasPrefix(filePath, prefix) {
			continue
		}
		rel := strings.TrimPrefix(filePath, prefix)

		if recursive {
			files = append(files, fileInfo(filePath, file))
			// Every intermediate directory is listed once
			parts := strings.Split(rel, "/")
			for i := 1; i < len(parts); i++ {
				dirs[prefix+strings.Join(parts[:i], "/")] = true
			}
			continue
		}

		child, _, nested := strings.Cut(rel, "/")
		if nested {
			dirs[prefix+child] = true
			continue
		}
		files = append(files, fileInfo(filePath, file))
	}

	for dir := range dirs {
		files = append(files, filegate.FileInfo{
			Name:  filepath.Base(dir),
			Path:  dir,
			IsDir: true,
		})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Path < files[j].Path
	})
	return files, nil
}

// Clear removes all files. Useful for testing cleanup.
func (a *Adapter) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.files = make(map[string]*memoryFile)
	a.size = 0
}

// Size returns the current total size of all stored files
func (a *Adapter) Size() int64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.size
}

// FileCount returns the number of files stored
func (a *Adapter) FileCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.files)
}

// isDirLocked reports whether any file lives below path.
// Must be called with lock held.
func (a *Adapter) isDirLocked(path string) bool {
	if path == "" {
		return true
	}
	prefix := path + "/"
	for filePath := range a.files {
		if strings.HasPrefix(filePath, prefix) {
			return true
		}
	}
	return false
}

func fileInfo(path string, file *memoryFile) filegate.FileInfo {
	return filegate.FileInfo{
		Name:        filepath.Base(path),
		Path:        path,
		Size:        int64(len(file.content)),
		ModTime:     file.modTime,
		ContentType: file.contentType,
		Metadata:    copyMap(file.metadata),
	}
}

// normalizePath normalizes a file path
func normalizePath(path string) string {
	path = strings.TrimPrefix(filepath.ToSlash(path), "/")
	if path == "" || path == "." {
		return ""
	}
	return strings.TrimPrefix(filepath.ToSlash(filepath.Clean(path)), "/")
}

// isValidPath checks if a path is valid (no directory traversal)
func isValidPath(path string) bool {
	return path != "" && !strings.Contains(path, "..")
}

// contentTypeForPath derives the content type from the extension only. The
// stored type plays the role of a client declaration, so content is never
// sniffed here.
func contentTypeForPath(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ct := filevalidator.MIMETypeForExtension(ext); ct != "" {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func copyMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// ============================================================================
// Optional Capability Interfaces
// ============================================================================

// Copy implements filegate.CanCopy for in-memory file copying.
func (a *Adapter) Copy(ctx context.Context, src, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	src = normalizePath(src)
	dst = normalizePath(dst)
	if !isValidPath(src) || !isValidPath(dst) {
		return filegate.NewPathError("copy", src, filegate.ErrNotAllowed)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	srcFile, exists := a.files[src]
	if !exists {
		return filegate.NewPathError("copy", src, filegate.ErrNotExist)
	}
	if a.maxSize > 0 && a.size+int64(len(srcFile.content)) > a.maxSize {
		return filegate.NewPathError("copy", dst, filegate.ErrInvalidSize)
	}

	content := make([]byte, len(srcFile.content))
	copy(content, srcFile.content)

	if existing, ok := a.files[dst]; ok {
		a.size -= int64(len(existing.content))
	}
	a.files[dst] = &memoryFile{
		content:     content,
		contentType: srcFile.contentType,
		metadata:    copyMap(srcFile.metadata),
		tags:        copyMap(srcFile.tags),
		modTime:     time.Now(),
	}
	a.size += int64(len(content))

	go a.notifyWatchers(dst)
	return nil
}

// Move implements filegate.CanMove for in-memory file moving.
func (a *Adapter) Move(ctx context.Context, src, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	src = normalizePath(src)
	dst = normalizePath(dst)
	if !isValidPath(src) || !isValidPath(dst) {
		return filegate.NewPathError("move", src, filegate.ErrNotAllowed)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	srcFile, exists := a.files[src]
	if !exists {
		return filegate.NewPathError("move", src, filegate.ErrNotExist)
	}
	if existing, ok := a.files[dst]; ok && src != dst {
		a.size -= int64(len(existing.content))
	}

	a.files[dst] = srcFile
	srcFile.modTime = time.Now()
	if src != dst {
		delete(a.files, src)
	}

	go func() {
		a.notifyWatchers(src)
		a.notifyWatchers(dst)
	}()
	return nil
}

// Checksum implements filegate.CanChecksum for in-memory files.
func (a *Adapter) Checksum(ctx context.Context, path string, algorithm filegate.ChecksumAlgorithm) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	path = normalizePath(path)

	a.mu.RLock()
	defer a.mu.RUnlock()

	file, exists := a.files[path]
	if !exists {
		return "", filegate.NewPathError("checksum", path, filegate.ErrNotExist)
	}

	checksum, err := filegate.CalculateChecksum(bytes.NewReader(file.content), algorithm)
	if err != nil {
		return "", filegate.NewPathError("checksum", path, err)
	}
	return checksum, nil
}

// SetTags implements filegate.CanTag. The tag set replaces any previous one.
func (a *Adapter) SetTags(ctx context.Context, path string, tags map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path = normalizePath(path)

	a.mu.Lock()
	defer a.mu.Unlock()

	file, exists := a.files[path]
	if !exists {
		return filegate.NewPathError("settags", path, filegate.ErrNotExist)
	}
	file.tags = copyMap(tags)
	return nil
}

// Tags implements filegate.CanTag
func (a *Adapter) Tags(ctx context.Context, path string) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path = normalizePath(path)

	a.mu.RLock()
	defer a.mu.RUnlock()

	file, exists := a.files[path]
	if !exists {
		return nil, filegate.NewPathError("tags", path, filegate.ErrNotExist)
	}
	tags := copyMap(file.tags)
	if tags == nil {
		tags = map[string]string{}
	}
	return tags, nil
}

// ============================================================================
// Watcher Implementation
// ============================================================================

// Watch implements filegate.CanWatch for in-memory file change detection.
// Supports glob patterns like "**/*.pdf", "*.json", "incoming/*"
func (a *Adapter) Watch(ctx context.Context, filter string) (filegate.ChangeToken, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g, err := glob.Compile(filter)
	if err != nil {
		return nil, filegate.NewPathError("watch", filter, err)
	}

	token := filegate.NewCallbackChangeToken()

	a.watchMu.Lock()
	a.watches = append(a.watches, &watchEntry{filter: g, token: token})
	a.watchMu.Unlock()

	// Clean up when context is cancelled; a fired token is already removed
	fired := make(chan struct{})
	token.RegisterChangeCallback(func() { close(fired) })
	go func() {
		select {
		case <-ctx.Done():
			a.removeWatch(token)
		case <-fired:
		}
	}()

	return token, nil
}

// notifyWatchers signals all watchers whose filter matches the given path.
// Tokens are single-use, so signalled entries are dropped.
func (a *Adapter) notifyWatchers(path string) {
	a.watchMu.Lock()
	var fired []*filegate.CallbackChangeToken
	kept := a.watches[:0]
	for _, entry := range a.watches {
		if entry.filter.Match(path) {
			fired = append(fired, entry.token)
			continue
		}
		kept = append(kept, entry)
	}
	a.watches = kept
	a.watchMu.Unlock()

	for _, token := range fired {
		token.SignalChange()
	}
}

// removeWatch removes a watch entry by token
func (a *Adapter) removeWatch(token *filegate.CallbackChangeToken) {
	a.watchMu.Lock()
	defer a.watchMu.Unlock()

	for i, entry := range a.watches {
		if entry.token == token {
			a.watches[i] = a.watches[len(a.watches)-1]
			a.watches = a.watches[:len(a.watches)-1]
			return
		}
	}
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
