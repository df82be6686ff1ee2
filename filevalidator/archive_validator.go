package filevalidator

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"path"
	"strings"
)

// Archive structure messages
const (
	msgInvalidZIPHeader      = "Invalid ZIP header"
	msgUnreadableZIPDir      = "ZIP central directory could not be read: %v"
	msgMacrosPresent         = "Archive contains VBA macro part %q"
	msgCompressionRatio      = "Suspicious compression ratio for %s: %.2f:1 (max: %.2f:1)"
	msgTooManyEntries        = "Archive contains too many entries: %d (max: %d)"
	msgUncompressedSizeLimit = "Archive would expand to %d bytes (max: %d bytes)"
	msgDangerousPath         = "Archive entry has unsafe path %q"
)

var zipLocalFileHeader = []byte{0x50, 0x4B, 0x03, 0x04}

// ArchiveChecker validates ZIP archives and the Office Open XML packages
// built on them. Only the local file header is disqualifying; everything
// learned from the central directory is reported as a warning.
type ArchiveChecker struct {
	// MaxCompressionRatio is the maximum per-entry ratio (uncompressed/compressed)
	// before a zip bomb warning is raised.
	MaxCompressionRatio float64

	// MaxEntries is the maximum number of entries before a warning is raised
	MaxEntries int

	// MaxUncompressedSize is the maximum total uncompressed size in bytes
	MaxUncompressedSize int64
}

// DefaultArchiveChecker creates an archive checker with sensible defaults
func DefaultArchiveChecker() *ArchiveChecker {
	return &ArchiveChecker{
		MaxCompressionRatio: 100.0,
		MaxEntries:          10000,
		MaxUncompressedSize: 1 * GB,
	}
}

// CheckStructure requires the ZIP local file header, then walks the central
// directory looking for macros, zip bombs and path traversal.
func (c *ArchiveChecker) CheckStructure(data []byte) CheckReport {
	var report CheckReport

	if !bytes.HasPrefix(data, zipLocalFileHeader) {
		report.addError(msgInvalidZIPHeader)
		return report
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil && !errors.Is(err, zip.ErrInsecurePath) {
		report.addWarning(fmt.Sprintf(msgUnreadableZIPDir, err))
		return report
	}

	if c.MaxEntries > 0 && len(zr.File) > c.MaxEntries {
		report.addWarning(fmt.Sprintf(msgTooManyEntries, len(zr.File), c.MaxEntries))
	}

	var total uint64
	sizeWarned := false
	for _, f := range zr.File {
		if isMacroPart(f.Name) {
			report.addWarning(fmt.Sprintf(msgMacrosPresent, f.Name))
		}

		if isDangerousPath(f.Name) {
			report.addWarning(fmt.Sprintf(msgDangerousPath, f.Name))
		}

		if c.MaxCompressionRatio > 0 && f.CompressedSize64 > 0 {
			ratio := float64(f.UncompressedSize64) / float64(f.CompressedSize64)
			if ratio > c.MaxCompressionRatio {
				report.addWarning(fmt.Sprintf(msgCompressionRatio, f.Name, ratio, c.MaxCompressionRatio))
			}
		}

		total += f.UncompressedSize64
		if !sizeWarned && c.MaxUncompressedSize > 0 && total > uint64(c.MaxUncompressedSize) { //nolint:gosec // MaxUncompressedSize is positive here
			report.addWarning(fmt.Sprintf(msgUncompressedSizeLimit, total, c.MaxUncompressedSize))
			sizeWarned = true
		}
	}

	return report
}

// ContentTypes returns the content types this checker can handle
func (c *ArchiveChecker) ContentTypes() []string {
	return []string{MIMETypeZIP, MIMETypeXLSX, MIMETypeDOCX}
}

// isMacroPart checks if an entry holds VBA macros
func isMacroPart(name string) bool {
	switch path.Base(name) {
	case "vbaProject.bin", "vbaData.xml":
		return true
	}
	return false
}

// isDangerousPath checks for directory traversal and absolute entry names
func isDangerousPath(name string) bool {
	normalized := strings.ReplaceAll(name, "\\", "/")
	if strings.HasPrefix(normalized, "/") || strings.HasPrefix(normalized, "~") {
		return true
	}
	// Windows drive letters (C:/...)
	if len(normalized) > 2 && normalized[1] == ':' && normalized[2] == '/' {
		return true
	}
	for _, part := range strings.Split(normalized, "/") {
		if part == ".." {
			return true
		}
	}
	return false
}
