package filevalidator

import (
	"bytes"
	"context"
)

// EICARTestString is the standard antivirus test file content
const EICARTestString = `X5O!P%@AP[4\PZX54(P^)7CC)7}$EICAR-STANDARD-ANTIVIRUS-TEST-FILE!$H+H*`

// ScanResult is the verdict of a threat scan
type ScanResult struct {
	Clean bool
	// ThreatName labels the matching signature. Empty when Clean.
	ThreatName string
}

// ThreatScanner inspects buffered content for known threats. A returned
// error means the scan itself failed, not that a threat was found.
type ThreatScanner interface {
	Scan(ctx context.Context, data []byte) (ScanResult, error)
}

// ThreatSignature is a named byte pattern that marks content as malicious
type ThreatSignature struct {
	Name    string
	Pattern []byte
}

// DefaultThreatSignatures returns the built-in signature set
func DefaultThreatSignatures() []ThreatSignature {
	return []ThreatSignature{
		{Name: "EICAR-Test-File", Pattern: []byte(EICARTestString)},
	}
}

// SignatureScanner is an in-process scanner matching byte patterns anywhere
// in the content. The first matching signature wins.
type SignatureScanner struct {
	signatures []ThreatSignature
}

// NewSignatureScanner creates a scanner for the given signatures. With no
// arguments the default set is used.
func NewSignatureScanner(sigs ...ThreatSignature) *SignatureScanner {
	if len(sigs) == 0 {
		sigs = DefaultThreatSignatures()
	}
	copied := make([]ThreatSignature, 0, len(sigs))
	for _, sig := range sigs {
		if len(sig.Pattern) == 0 {
			continue
		}
		copied = append(copied, sig)
	}
	return &SignatureScanner{signatures: copied}
}

// Scan implements ThreatScanner
func (s *SignatureScanner) Scan(ctx context.Context, data []byte) (ScanResult, error) {
	for _, sig := range s.signatures {
		if err := ctx.Err(); err != nil {
			return ScanResult{}, err
		}
		if bytes.Contains(data, sig.Pattern) {
			return ScanResult{Clean: false, ThreatName: sig.Name}, nil
		}
	}
	return ScanResult{Clean: true}, nil
}

// Signatures returns a copy of the scanner's signature set
func (s *SignatureScanner) Signatures() []ThreatSignature {
	out := make([]ThreatSignature, len(s.signatures))
	copy(out, s.signatures)
	return out
}

// ChainScanner runs scanners in order and reports the first threat found.
// A failing scanner does not stop the chain; its error is returned only if
// no other scanner reported a threat.
type ChainScanner []ThreatScanner

// Scan implements ThreatScanner
func (c ChainScanner) Scan(ctx context.Context, data []byte) (ScanResult, error) {
	var firstErr error
	for _, scanner := range c {
		result, err := scanner.Scan(ctx, data)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if !result.Clean {
			return result, nil
		}
	}
	if firstErr != nil {
		return ScanResult{}, firstErr
	}
	return ScanResult{Clean: true}, nil
}
