package filevalidator

import (
	"bytes"
)

// Image structure messages
const (
	msgInvalidJPEGHeader = "Invalid JPEG header"
	msgMissingJPEGEnd    = "JPEG end-of-image marker missing, file may be truncated"
	msgInvalidPNGHeader  = "Invalid PNG signature"
)

var (
	jpegStartOfImage = []byte{0xFF, 0xD8}
	jpegEndOfImage   = []byte{0xFF, 0xD9}
	pngSignature     = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
)

// JPEGChecker validates JPEG start and end markers
type JPEGChecker struct{}

// DefaultJPEGChecker creates a JPEG checker
func DefaultJPEGChecker() *JPEGChecker {
	return &JPEGChecker{}
}

// CheckStructure requires the SOI marker. A missing EOI marker is only a
// warning since truncated or oddly written JPEGs often still decode.
func (c *JPEGChecker) CheckStructure(data []byte) CheckReport {
	var report CheckReport

	if !bytes.HasPrefix(data, jpegStartOfImage) {
		report.addError(msgInvalidJPEGHeader)
		return report
	}

	if !bytes.HasSuffix(data, jpegEndOfImage) {
		report.addWarning(msgMissingJPEGEnd)
	}

	return report
}

// ContentTypes returns the content types this checker can handle
func (c *JPEGChecker) ContentTypes() []string {
	return []string{MIMETypeJPEG}
}

// PNGChecker validates the fixed 8-byte PNG signature. No trailer check is
// performed.
type PNGChecker struct{}

// DefaultPNGChecker creates a PNG checker
func DefaultPNGChecker() *PNGChecker {
	return &PNGChecker{}
}

// CheckStructure requires the full PNG signature
func (c *PNGChecker) CheckStructure(data []byte) CheckReport {
	var report CheckReport
	if !bytes.HasPrefix(data, pngSignature) {
		report.addError(msgInvalidPNGHeader)
	}
	return report
}

// ContentTypes returns the content types this checker can handle
func (c *PNGChecker) ContentTypes() []string {
	return []string{MIMETypePNG}
}
