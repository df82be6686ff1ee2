package filevalidator

import "sort"

// StructuralChecker validates the internal layout of one family of formats.
// Implementations must be pure functions of the buffer.
type StructuralChecker interface {
	// CheckStructure inspects the fully buffered content
	CheckStructure(data []byte) CheckReport
	// ContentTypes returns the content types this checker can handle
	ContentTypes() []string
}

// CheckReport is the outcome of a structural check. Errors are admission
// failures; warnings are suspicious but not disqualifying.
type CheckReport struct {
	Errors   []string
	Warnings []string
}

// Valid reports whether the check produced no errors
func (r CheckReport) Valid() bool {
	return len(r.Errors) == 0
}

func (r *CheckReport) addError(msg string) {
	r.Errors = append(r.Errors, msg)
}

func (r *CheckReport) addWarning(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

// CheckerRegistry maps content types to structural checkers. Populate it
// before handing it to a Validator; lookups are read-only afterwards.
type CheckerRegistry struct {
	checkers map[string]StructuralChecker
}

// NewCheckerRegistry creates an empty checker registry
func NewCheckerRegistry() *CheckerRegistry {
	return &CheckerRegistry{
		checkers: make(map[string]StructuralChecker),
	}
}

// DefaultRegistry returns a registry with the built-in checkers: PDF, JPEG,
// PNG and ZIP. The ZIP checker also serves XLSX and DOCX. TIFF, CSV and XLS
// have no checker.
func DefaultRegistry() *CheckerRegistry {
	registry := NewCheckerRegistry()
	registry.Register(DefaultPDFChecker())
	registry.Register(DefaultJPEGChecker())
	registry.Register(DefaultPNGChecker())
	registry.Register(DefaultArchiveChecker())
	return registry
}

// Register registers a checker for every content type it reports.
// A later registration for the same type replaces the earlier one.
func (r *CheckerRegistry) Register(checker StructuralChecker) {
	for _, ct := range checker.ContentTypes() {
		r.checkers[ct] = checker
	}
}

// RegisterFor registers a checker for specific content types only
func (r *CheckerRegistry) RegisterFor(checker StructuralChecker, contentTypes ...string) {
	for _, ct := range contentTypes {
		r.checkers[ct] = checker
	}
}

// Lookup returns the checker for a content type
func (r *CheckerRegistry) Lookup(contentType string) (StructuralChecker, bool) {
	checker, ok := r.checkers[contentType]
	return checker, ok
}

// Has returns true if a checker is registered for the given content type
func (r *CheckerRegistry) Has(contentType string) bool {
	return r.checkers[contentType] != nil
}

// Unregister removes the checker for a content type
func (r *CheckerRegistry) Unregister(contentType string) {
	delete(r.checkers, contentType)
}

// ContentTypes returns all content types that have checkers registered, sorted
func (r *CheckerRegistry) ContentTypes() []string {
	types := make([]string, 0, len(r.checkers))
	for ct := range r.checkers {
		types = append(types, ct)
	}
	sort.Strings(types)
	return types
}

// Count returns the number of registered content types
func (r *CheckerRegistry) Count() int {
	return len(r.checkers)
}

// Clone creates a copy of the registry
func (r *CheckerRegistry) Clone() *CheckerRegistry {
	clone := NewCheckerRegistry()
	for ct, checker := range r.checkers {
		clone.checkers[ct] = checker
	}
	return clone
}
