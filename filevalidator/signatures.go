package filevalidator

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// signatureFile is the YAML layout of a signature set:
//
//	signatures:
//	  - name: EICAR-Test-File
//	    pattern: 'X5O!P%@AP...'
//	  - name: Suspicious-JS
//	    hex: "2f4a617661536372697074"
type signatureFile struct {
	Signatures []signatureEntry `yaml:"signatures"`
}

type signatureEntry struct {
	Name    string `yaml:"name"`
	Pattern string `yaml:"pattern"`
	Hex     string `yaml:"hex"`
}

// ErrNoSignatures is returned when a signature file defines no entries
var ErrNoSignatures = errors.New("signature file defines no signatures")

// LoadSignatures parses a YAML signature set. Each entry needs a name and
// exactly one of pattern (literal text) or hex (byte string).
func LoadSignatures(r io.Reader) ([]ThreatSignature, error) {
	var file signatureFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrNoSignatures
		}
		return nil, fmt.Errorf("decode signatures: %w", err)
	}
	if len(file.Signatures) == 0 {
		return nil, ErrNoSignatures
	}

	sigs := make([]ThreatSignature, 0, len(file.Signatures))
	for i, entry := range file.Signatures {
		sig, err := entry.toSignature()
		if err != nil {
			return nil, fmt.Errorf("signature %d: %w", i, err)
		}
		sigs = append(sigs, sig)
	}
	return sigs, nil
}

// LoadSignaturesFile reads a YAML signature set from disk
func LoadSignaturesFile(path string) ([]ThreatSignature, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open signatures: %w", err)
	}
	defer f.Close()
	return LoadSignatures(f)
}

func (e signatureEntry) toSignature() (ThreatSignature, error) {
	name := strings.TrimSpace(e.Name)
	if name == "" {
		return ThreatSignature{}, errors.New("name is required")
	}

	switch {
	case e.Pattern != "" && e.Hex != "":
		return ThreatSignature{}, fmt.Errorf("%s: pattern and hex are mutually exclusive", name)
	case e.Pattern != "":
		return ThreatSignature{Name: name, Pattern: []byte(e.Pattern)}, nil
	case e.Hex != "":
		raw, err := hex.DecodeString(strings.ReplaceAll(e.Hex, " ", ""))
		if err != nil {
			return ThreatSignature{}, fmt.Errorf("%s: invalid hex: %w", name, err)
		}
		if len(raw) == 0 {
			return ThreatSignature{}, fmt.Errorf("%s: empty hex pattern", name)
		}
		return ThreatSignature{Name: name, Pattern: raw}, nil
	default:
		return ThreatSignature{}, fmt.Errorf("%s: pattern or hex is required", name)
	}
}
