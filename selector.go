package filegate

import (
	"context"

	"github.com/gobwas/glob"
)

// ============================================================================
// FileSelector Interface
// ============================================================================

// FileSelector filters files during listing. Selectors compose with And
// and Not.
//
//	pending := filegate.And(
//	    filegate.Glob("*.pdf"),
//	    filegate.FuncSelector(func(f *filegate.FileInfo) bool {
//	        return f.Size > 0
//	    }),
//	)
//	files, err := filegate.ListWithSelector(ctx, fs, "inbox", pending, true)
type FileSelector interface {
	// Match returns true if the file should be included in results.
	Match(file *FileInfo) bool

	// TraverseDescendants returns true if directory descendants should be
	// traversed. Only called for directories.
	TraverseDescendants(file *FileInfo) bool
}

// ListWithSelector lists files below path matching the selector. Set
// recursive to descend into directories the selector allows.
func ListWithSelector(ctx context.Context, fs FileReader, path string, selector FileSelector, recursive bool) ([]FileInfo, error) {
	if selector == nil {
		selector = All()
	}

	var results []FileInfo
	if err := listRecursive(ctx, fs, path, selector, recursive, &results); err != nil {
		return nil, err
	}
	return results, nil
}

func listRecursive(ctx context.Context, fs FileReader, path string, selector FileSelector, recursive bool, results *[]FileInfo) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	files, err := fs.ListContents(ctx, path, false)
	if err != nil {
		return err
	}

	for i := range files {
		file := &files[i]
		if file.IsDir {
			if recursive && selector.TraverseDescendants(file) {
				if err := listRecursive(ctx, fs, file.Path, selector, recursive, results); err != nil {
					return err
				}
			}
			continue
		}
		if selector.Match(file) {
			*results = append(*results, *file)
		}
	}
	return nil
}

// ============================================================================
// Built-in Selectors
// ============================================================================

type allSelector struct{}

func (allSelector) Match(*FileInfo) bool               { return true }
func (allSelector) TraverseDescendants(*FileInfo) bool { return true }

// All returns a selector that matches every file
func All() FileSelector {
	return allSelector{}
}

type globSelector struct {
	g glob.Glob
}

// Glob matches the file path against a glob pattern, using the same syntax
// as CanWatch filters ("*.pdf", "invoices/**", "{a,b}/*.png"). An invalid
// pattern matches nothing.
func Glob(pattern string) FileSelector {
	g, err := glob.Compile(pattern)
	if err != nil {
		return FuncSelector(func(*FileInfo) bool { return false })
	}
	return &globSelector{g: g}
}

func (s *globSelector) Match(file *FileInfo) bool {
	return s.g.Match(file.Path) || s.g.Match(file.Name)
}

func (s *globSelector) TraverseDescendants(*FileInfo) bool { return true }

type andSelector struct {
	selectors []FileSelector
}

// And matches files matched by every selector
func And(selectors ...FileSelector) FileSelector {
	return &andSelector{selectors: selectors}
}

func (s *andSelector) Match(file *FileInfo) bool {
	for _, sel := range s.selectors {
		if !sel.Match(file) {
			return false
		}
	}
	return true
}

func (s *andSelector) TraverseDescendants(file *FileInfo) bool {
	for _, sel := range s.selectors {
		if !sel.TraverseDescendants(file) {
			return false
		}
	}
	return true
}

type notSelector struct {
	selector FileSelector
}

// Not inverts a selector's matches. Traversal is unaffected.
func Not(selector FileSelector) FileSelector {
	return &notSelector{selector: selector}
}

func (s *notSelector) Match(file *FileInfo) bool {
	return !s.selector.Match(file)
}

func (s *notSelector) TraverseDescendants(*FileInfo) bool { return true }

type funcSelector struct {
	fn func(*FileInfo) bool
}

// FuncSelector matches files for which fn returns true
func FuncSelector(fn func(*FileInfo) bool) FileSelector {
	return &funcSelector{fn: fn}
}

func (s *funcSelector) Match(file *FileInfo) bool          { return s.fn(file) }
func (s *funcSelector) TraverseDescendants(*FileInfo) bool { return true }
