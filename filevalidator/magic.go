package filevalidator

import (
	"archive/zip"
	"bytes"
	"errors"
	"strings"
)

// Signature defines a file type signature anchored at offset zero
type Signature struct {
	ContentType string
	Magic       []byte
}

// DefaultSignatures returns the signatures recognised for invoice admission.
// All fit in the first eight bytes and none of the prefixes collide, so order
// only matters for custom tables.
func DefaultSignatures() []Signature {
	return []Signature{
		{ContentType: MIMETypePDF, Magic: []byte{0x25, 0x50, 0x44, 0x46}},  // %PDF
		{ContentType: MIMETypeJPEG, Magic: []byte{0xFF, 0xD8, 0xFF}},       // SOI + marker
		{ContentType: MIMETypePNG, Magic: []byte{0x89, 0x50, 0x4E, 0x47}},  // \x89PNG
		{ContentType: MIMETypeTIFF, Magic: []byte{0x49, 0x49, 0x2A, 0x00}}, // II*\0 little endian
		{ContentType: MIMETypeZIP, Magic: []byte{0x50, 0x4B, 0x03, 0x04}},  // PK\x03\x04 local file header
	}
}

// Sniffer detects content types from magic bytes. A Sniffer is immutable
// after construction and safe for concurrent use.
type Sniffer struct {
	signatures []Signature
	// refineZIP maps ZIP archives onto OOXML types by inspecting the
	// central directory
	refineZIP bool
}

// NewSniffer creates a sniffer for the given signatures. With no arguments
// the DefaultSignatures table is used.
func NewSniffer(sigs ...Signature) *Sniffer {
	if len(sigs) == 0 {
		sigs = DefaultSignatures()
	}
	copied := make([]Signature, len(sigs))
	copy(copied, sigs)
	return &Sniffer{signatures: copied, refineZIP: true}
}

// WithoutZIPRefinement returns a copy of the sniffer that reports ZIP-based
// documents as plain application/zip.
func (s *Sniffer) WithoutZIPRefinement() *Sniffer {
	return &Sniffer{signatures: s.signatures, refineZIP: false}
}

// Detect returns the content type whose signature prefixes data. The second
// return value is false when nothing matched.
func (s *Sniffer) Detect(data []byte) (string, bool) {
	for _, sig := range s.signatures {
		if len(sig.Magic) == 0 || !bytes.HasPrefix(data, sig.Magic) {
			continue
		}
		if sig.ContentType == MIMETypeZIP && s.refineZIP {
			return refineZIP(data), true
		}
		return sig.ContentType, true
	}
	return "", false
}

// ContentTypes returns the content types this sniffer can report
func (s *Sniffer) ContentTypes() []string {
	seen := make(map[string]bool, len(s.signatures))
	types := make([]string, 0, len(s.signatures))
	for _, sig := range s.signatures {
		if !seen[sig.ContentType] {
			seen[sig.ContentType] = true
			types = append(types, sig.ContentType)
		}
	}
	return types
}

var defaultSniffer = NewSniffer()

// DetectContentType detects the content type of data using the default
// signature table. Returns empty string if no signature matched.
func DetectContentType(data []byte) string {
	ct, _ := defaultSniffer.Detect(data)
	return ct
}

// refineZIP distinguishes Office Open XML packages from generic archives.
// Only the central directory is read; an unreadable directory leaves the
// generic ZIP type in place and the archive checker reports it.
func refineZIP(data []byte) string {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil && !errors.Is(err, zip.ErrInsecurePath) {
		return MIMETypeZIP
	}

	var hasContentTypes bool
	docType := ""
	for _, f := range zr.File {
		if f.Name == "[Content_Types].xml" {
			hasContentTypes = true
		}
		if docType == "" {
			docType = officeDocType(f.Name)
		}
	}
	if !hasContentTypes || docType == "" {
		return MIMETypeZIP
	}
	return docType
}

// officeDocType identifies the Office document type from internal paths
func officeDocType(path string) string {
	switch {
	case strings.HasPrefix(path, "xl/"):
		return MIMETypeXLSX
	case strings.HasPrefix(path, "word/"):
		return MIMETypeDOCX
	}
	return ""
}
