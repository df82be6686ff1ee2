package filevalidator

import (
	"archive/zip"
	"bytes"
	"strings"
	"testing"
)

func TestArchiveChecker_CheckStructure(t *testing.T) {
	checker := DefaultArchiveChecker()

	tests := []struct {
		name         string
		data         func(t *testing.T) []byte
		wantValid    bool
		wantWarnings []string
	}{
		{
			name:      "valid small zip",
			data:      func(t *testing.T) []byte { return buildZip(t, map[string]string{"test.txt": "Hello, World!"}) },
			wantValid: true,
		},
		{
			name:      "spreadsheet",
			data:      buildXLSX,
			wantValid: true,
		},
		{
			name: "macro-enabled workbook",
			data: func(t *testing.T) []byte {
				return buildZip(t, map[string]string{
					"[Content_Types].xml": "<Types/>",
					"xl/workbook.xml":     "<workbook/>",
					"xl/vbaProject.bin":   "macro",
				})
			},
			wantValid:    true,
			wantWarnings: []string{`Archive contains VBA macro part "xl/vbaProject.bin"`},
		},
		{
			name: "path traversal",
			data: func(t *testing.T) []byte {
				return buildZip(t, map[string]string{"../../etc/passwd": "root"})
			},
			wantValid:    true,
			wantWarnings: []string{`Archive entry has unsafe path "../../etc/passwd"`},
		},
		{
			name: "zip bomb ratio",
			data: func(t *testing.T) []byte {
				return buildZip(t, map[string]string{"zeros.bin": strings.Repeat("0", 1<<20)})
			},
			wantValid:    true,
			wantWarnings: []string{"Suspicious compression ratio for zeros.bin"},
		},
		{
			name:      "invalid header",
			data:      func(*testing.T) []byte { return []byte("PK\x05\x06 not a local header") },
			wantValid: false,
		},
		{
			name: "header but truncated directory",
			data: func(t *testing.T) []byte {
				full := buildZip(t, map[string]string{"test.txt": "Hello"})
				return full[:len(full)/2]
			},
			wantValid:    true,
			wantWarnings: []string{"ZIP central directory could not be read"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := checker.CheckStructure(tt.data(t))
			if report.Valid() != tt.wantValid {
				t.Fatalf("Valid() = %v, want %v (errors %q)", report.Valid(), tt.wantValid, report.Errors)
			}
			if !tt.wantValid && report.Errors[0] != msgInvalidZIPHeader {
				t.Errorf("Errors = %q", report.Errors)
			}
			if len(report.Warnings) != len(tt.wantWarnings) {
				t.Fatalf("Warnings = %q, want %d", report.Warnings, len(tt.wantWarnings))
			}
			for i, want := range tt.wantWarnings {
				if !strings.HasPrefix(report.Warnings[i], want) {
					t.Errorf("Warnings[%d] = %q, want prefix %q", i, report.Warnings[i], want)
				}
			}
		})
	}
}

func TestArchiveChecker_EntryLimit(t *testing.T) {
	checker := &ArchiveChecker{MaxEntries: 2}

	buf := new(bytes.Buffer)
	w := zip.NewWriter(buf)
	for _, name := range []string{"a.txt", "b.txt", "c.txt"} {
		if _, err := w.Create(name); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	report := checker.CheckStructure(buf.Bytes())
	if !report.Valid() {
		t.Fatalf("entry limit must only warn, got %q", report.Errors)
	}
	if len(report.Warnings) != 1 || !strings.Contains(report.Warnings[0], "too many entries") {
		t.Errorf("Warnings = %q", report.Warnings)
	}
}

func TestIsDangerousPath(t *testing.T) {
	tests := map[string]bool{
		"docs/readme.txt":      false,
		"xl/worksheets/a.xml":  false,
		"../secret":            true,
		"a/../../b":            true,
		"/etc/passwd":          true,
		"C:\\Windows\\sys.dll": true,
		"~/.ssh/id_rsa":        true,
		"..hidden/file":        false,
	}
	for name, want := range tests {
		if got := isDangerousPath(name); got != want {
			t.Errorf("isDangerousPath(%q) = %v, want %v", name, got, want)
		}
	}
}
