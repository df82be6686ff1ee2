package filevalidator

import (
	"bytes"
)

// PDF structure messages
const (
	msgInvalidPDFHeader  = "Invalid PDF header"
	msgMissingPDFTrailer = "PDF end-of-file marker not found, file may be truncated or corrupted"
)

var (
	pdfHeader  = []byte("%PDF")
	pdfTrailer = []byte("%%EOF")
)

// PDFChecker validates PDF file structure (header/trailer).
// This is TYPE validation, not security scanning.
type PDFChecker struct {
	// TrailerWindow is how many trailing bytes are searched for %%EOF.
	// Writers may append whitespace or garbage after the marker.
	TrailerWindow int
}

// DefaultPDFChecker creates a PDF checker with sensible defaults
func DefaultPDFChecker() *PDFChecker {
	return &PDFChecker{
		TrailerWindow: 1024,
	}
}

// CheckStructure requires the %PDF header and warns when the trailer window
// lacks the end-of-file marker.
func (c *PDFChecker) CheckStructure(data []byte) CheckReport {
	var report CheckReport

	if !bytes.HasPrefix(data, pdfHeader) {
		report.addError(msgInvalidPDFHeader)
		return report
	}

	if !c.hasTrailer(data) {
		report.addWarning(msgMissingPDFTrailer)
	}

	return report
}

// ContentTypes returns the content types this checker can handle
func (c *PDFChecker) ContentTypes() []string {
	return []string{MIMETypePDF}
}

func (c *PDFChecker) hasTrailer(data []byte) bool {
	window := c.TrailerWindow
	if window <= 0 {
		window = 1024
	}
	tail := data
	if len(tail) > window {
		tail = tail[len(tail)-window:]
	}
	return bytes.Contains(tail, pdfTrailer)
}
