package filevalidator

import (
	"bytes"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestSnifferProperties verifies signature detection is exact.
// Property: prefix matches a registered signature <=> detected type is its mapping
func TestSnifferProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	sigs := DefaultSignatures()
	sniffer := NewSniffer().WithoutZIPRefinement()

	properties.Property("registered signature is detected", prop.ForAll(
		func(idx int, tail []byte) bool {
			sig := sigs[idx]
			data := append(append([]byte{}, sig.Magic...), tail...)
			got, ok := sniffer.Detect(data)
			return ok && got == sig.ContentType
		},
		gen.IntRange(0, len(sigs)-1),
		gen.SliceOf(gen.UInt8()),
	))

	properties.Property("unregistered prefix is not detected", prop.ForAll(
		func(data []byte) bool {
			for _, sig := range sigs {
				if bytes.HasPrefix(data, sig.Magic) {
					return true // Skip inputs that happen to match
				}
			}
			_, ok := sniffer.Detect(data)
			return !ok
		},
		gen.SliceOf(gen.UInt8()),
	))

	properties.TestingRun(t)
}

// TestValidityInvariant verifies IsValid mirrors the error list for any input.
// Property: IsValid == (len(Errors) == 0)
func TestValidityInvariant(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	validator := New(Options{
		MaxSizeBytes:        64,
		AllowedContentTypes: []string{MIMETypePDF, MIMETypeJPEG},
		PerformThreatScan:   true,
		ComputeFingerprint:  true,
	})
	declared := []string{MIMETypePDF, MIMETypeJPEG, MIMETypePNG, MIMETypeText, ""}

	properties.Property("IsValid iff no errors", prop.ForAll(
		func(data []byte, idx int) bool {
			result := validator.ValidateBytes(data, declared[idx])
			return result.IsValid == (len(result.Errors) == 0)
		},
		gen.SliceOf(gen.UInt8()),
		gen.IntRange(0, len(declared)-1),
	))

	properties.TestingRun(t)
}

// TestFingerprintProperties verifies the fingerprint is deterministic and well-formed.
func TestFingerprintProperties(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("same buffer, same fingerprint", prop.ForAll(
		func(data []byte) bool {
			a := Fingerprint(data)
			b := Fingerprint(append([]byte{}, data...))
			return a == b && hexPattern.MatchString(a)
		},
		gen.SliceOf(gen.UInt8()),
	))

	properties.Property("different buffers, different fingerprints", prop.ForAll(
		func(data []byte, extra uint8) bool {
			other := append(append([]byte{}, data...), extra)
			return Fingerprint(data) != Fingerprint(other)
		},
		gen.SliceOf(gen.UInt8()),
		gen.UInt8(),
	))

	properties.TestingRun(t)
}

// TestSizeGateProperties verifies the size limit boundary.
// Property: len <= max passes the size gate; len > max fails it
func TestSizeGateProperties(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("size gate is exact", prop.ForAll(
		func(limit int64, delta int64) bool {
			validator := New(Options{MaxSizeBytes: limit, AllowedContentTypes: []string{MIMETypeText}})
			size := limit + delta
			data := bytes.Repeat([]byte{'a'}, int(size))
			result := validator.ValidateBytes(data, MIMETypeText)

			sizeFailed := false
			for _, c := range result.Checks {
				if c.Name == CheckSize && !c.Passed {
					sizeFailed = true
				}
			}
			return sizeFailed == (delta > 0)
		},
		gen.Int64Range(1, 512),
		gen.Int64Range(-1, 1),
	))

	properties.TestingRun(t)
}

// TestMismatchNeverInvalidates verifies a declared/detected mismatch is advisory.
// Property: allowed declared type + well-formed bytes of another type => valid
func TestMismatchNeverInvalidates(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	validator := NewDefault()
	wellFormed := [][]byte{samplePDF, sampleJPEG, samplePNG, sampleTIFF}

	properties.Property("mismatch is a warning", prop.ForAll(
		func(dataIdx, declIdx int) bool {
			declared := InvoiceContentTypes()[declIdx]
			result := validator.ValidateBytes(wellFormed[dataIdx], declared)
			return result.IsValid
		},
		gen.IntRange(0, len(wellFormed)-1),
		gen.IntRange(0, len(InvoiceContentTypes())-1),
	))

	properties.TestingRun(t)
}
