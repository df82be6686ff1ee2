package local

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"

	"github.com/gobeaver/filegate"
)

// Watch implements filegate.CanWatch using fsnotify. The filter is a glob
// matched against the slash separated key or the base name of the changed
// file. Every directory below the fixed prefix of the filter is watched, and
// directories created while the token is live are added as they appear.
// The token is spent after the first matching change.
func (a *Adapter) Watch(ctx context.Context, filter string) (filegate.ChangeToken, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g, err := glob.Compile(filter)
	if err != nil {
		return nil, &filegate.PathError{Op: "watch", Path: filter, Err: err}
	}

	watchPath := filepath.Join(a.root, filepath.FromSlash(staticPrefix(filter)))
	if _, err := os.Stat(watchPath); err != nil {
		watchPath = a.root
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, &filegate.PathError{Op: "watch", Path: filter, Err: err}
	}
	if err := a.addTree(watcher, watchPath); err != nil {
		watcher.Close()
		return nil, &filegate.PathError{Op: "watch", Path: filter, Err: err}
	}

	token := filegate.NewCallbackChangeToken()

	go func() {
		defer watcher.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Has(fsnotify.Chmod) {
					continue
				}

				info, statErr := os.Stat(event.Name)
				if statErr == nil && info.IsDir() && event.Has(fsnotify.Create) {
					_ = a.addTree(watcher, event.Name)
					continue
				}

				key := a.key(event.Name)
				if key == "" || a.internal(key) {
					continue
				}
				if g.Match(key) || g.Match(filepath.Base(key)) {
					token.SignalChange()
					return
				}
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()

	return token, nil
}

// addTree adds dir and every directory below it, skipping the sidecar tree
func (a *Adapter) addTree(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if a.hidden(p, d) {
			return filepath.SkipDir
		}
		return watcher.Add(p)
	})
}

// internal reports whether key belongs to the sidecar tree or is a
// temporary file of an in-flight write
func (a *Adapter) internal(key string) bool {
	return key == metaDir || strings.HasPrefix(key, metaDir+"/") ||
		strings.HasPrefix(filepath.Base(key), ".upload-")
}

// staticPrefix returns the directory part of filter before its first glob
// metacharacter
func staticPrefix(filter string) string {
	idx := strings.IndexAny(filter, "*?[{")
	if idx < 0 {
		return filepath.ToSlash(filepath.Dir(filter))
	}
	dir := filter[:idx]
	if i := strings.LastIndex(dir, "/"); i >= 0 {
		return dir[:i]
	}
	return ""
}
