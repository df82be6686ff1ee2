package filevalidator

import (
	"strings"
	"testing"
)

func TestDefaultRegistry(t *testing.T) {
	registry := DefaultRegistry()

	served := []string{MIMETypePDF, MIMETypeJPEG, MIMETypePNG, MIMETypeZIP, MIMETypeXLSX, MIMETypeDOCX}
	for _, ct := range served {
		if !registry.Has(ct) {
			t.Errorf("expected checker for %s", ct)
		}
	}

	unserved := []string{MIMETypeTIFF, MIMETypeCSV, MIMETypeXLS, MIMETypeText}
	for _, ct := range unserved {
		if _, ok := registry.Lookup(ct); ok {
			t.Errorf("unexpected checker for %s", ct)
		}
	}

	if registry.Count() != len(served) {
		t.Errorf("Count() = %d, want %d", registry.Count(), len(served))
	}
}

type csvChecker struct{}

func (csvChecker) CheckStructure(data []byte) CheckReport {
	var report CheckReport
	if !strings.Contains(string(data), ",") {
		report.addError("CSV has no delimiter")
	}
	return report
}

func (csvChecker) ContentTypes() []string { return []string{MIMETypeCSV} }

func TestCheckerRegistry_RegisterAndClone(t *testing.T) {
	registry := NewCheckerRegistry()
	registry.Register(csvChecker{})

	checker, ok := registry.Lookup(MIMETypeCSV)
	if !ok {
		t.Fatal("checker not registered")
	}
	if report := checker.CheckStructure([]byte("a;b")); report.Valid() {
		t.Error("expected custom checker to reject")
	}

	clone := registry.Clone()
	clone.Unregister(MIMETypeCSV)
	if !registry.Has(MIMETypeCSV) {
		t.Error("Unregister on clone affected original")
	}
	if clone.Has(MIMETypeCSV) {
		t.Error("Unregister had no effect")
	}

	registry.RegisterFor(DefaultPDFChecker(), "application/x-pdf")
	if got := registry.ContentTypes(); strings.Join(got, ",") != "application/x-pdf,text/csv" {
		t.Errorf("ContentTypes() = %v", got)
	}
}

func TestValidate_CustomChecker(t *testing.T) {
	validator := NewBuilder().WithChecker(csvChecker{}).Build()

	result := validator.ValidateBytes([]byte("id;amount\n1;10\n"), MIMETypeCSV)
	if result.IsValid {
		t.Fatal("expected custom checker error")
	}
	if !containsMessage(result.Errors, "CSV has no delimiter") {
		t.Errorf("Errors = %q", result.Errors)
	}

	result = validator.ValidateBytes([]byte("id,amount\n1,10\n"), MIMETypeCSV)
	if !result.IsValid || result.HasWarnings() {
		t.Errorf("expected clean result, got errors %q warnings %q", result.Errors, result.Warnings)
	}
}
