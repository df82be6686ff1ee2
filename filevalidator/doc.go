// Package filevalidator decides whether an uploaded file may enter the
// invoice processing pipeline. It buffers the content once, then runs a
// fixed sequence of checks and returns every problem it found in a single
// ValidationResult.
//
// FileValidator is part of filegate but has no dependency on the rest of the
// module and can be used on its own.
//
// # Quick Start
//
// Using the invoice defaults (50 MiB; PDF, JPEG, PNG, TIFF, CSV, XLS, XLSX;
// threat scan and fingerprint enabled):
//
//	validator := filevalidator.NewDefault()
//	result := validator.Validate(body, "application/pdf", contentLength)
//	if !result.IsValid {
//	    quarantine(result.Errors)
//	}
//
// Using the builder API:
//
//	validator := filevalidator.NewBuilder().
//	    MaxSize(20 * filevalidator.MB).
//	    AcceptOnly(filevalidator.MIMETypePDF).
//	    WithoutFingerprint().
//	    Build()
//
// # Pipeline
//
// Checks run in this order on the buffered content:
//
//  1. Read: a nil, failing or empty stream yields the single error
//     "File content is empty or inaccessible". Nothing else runs.
//  2. Size: the buffer length (or a larger declared size) against MaxSizeBytes.
//  3. Declared type: exact match against AllowedContentTypes.
//  4. Detection: magic-byte sniffing. A declared/detected mismatch is a warning.
//  5. Fingerprint: lowercase hex SHA-256, when enabled.
//  6. Threat scan: any signature match is an error, when enabled.
//  7. Structure: the checker for the detected type (declared type when nothing
//     was detected). No checker is a warning, not an error.
//
// Errors never short-circuit after the read stage, so a quarantined file
// carries every reason it was rejected.
//
// # Errors vs Warnings
//
// Errors force IsValid to false: size exceeded, type not allowed, bad magic
// header, threat found. Warnings are advisory: type mismatch, missing PDF
// trailer or JPEG end marker, no structural checker for the type.
//
//	if err := result.Err(); err != nil {
//	    var rejection *filevalidator.RejectionError
//	    errors.As(err, &rejection) // rejection.Errors lists every failure
//	}
//
// # Threat Scanning
//
// The built-in SignatureScanner matches the EICAR test string. Additional
// signatures can be loaded from YAML:
//
//	sigs, err := filevalidator.LoadSignaturesFile("/etc/filegate/signatures.yaml")
//	validator := filevalidator.NewBuilder().WithSignatures(sigs...).Build()
//
// A ClamAV REST service can be chained behind it with NewRemoteScanner. A
// scanner that fails or panics adds "validation error: ..." and the pipeline
// continues.
//
// # Custom Structural Checkers
//
//	type CSVChecker struct{}
//
//	func (CSVChecker) CheckStructure(data []byte) filevalidator.CheckReport { ... }
//	func (CSVChecker) ContentTypes() []string { return []string{filevalidator.MIMETypeCSV} }
//
//	validator := filevalidator.NewBuilder().WithChecker(CSVChecker{}).Build()
package filevalidator
