package filegate

import (
	"context"
	"crypto/md5" //nolint:gosec // MD5 used for checksum verification, not security
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"hash/crc32"
	"io"

	"github.com/cespare/xxhash/v2"
)

// ErrChecksumMismatch is returned when a stored object does not hash to the
// fingerprint computed during validation
var ErrChecksumMismatch = errors.New("relocated object checksum does not match fingerprint")

// NewHasher returns a hash for algorithm or ErrNotSupported
func NewHasher(algorithm ChecksumAlgorithm) (hash.Hash, error) {
	switch algorithm {
	case ChecksumMD5:
		return md5.New(), nil //nolint:gosec // MD5 used for checksum verification, not security
	case ChecksumSHA256:
		return sha256.New(), nil
	case ChecksumSHA512:
		return sha512.New(), nil
	case ChecksumCRC32:
		return crc32.NewIEEE(), nil
	case ChecksumXXHash:
		return xxhash.New(), nil
	default:
		return nil, fmt.Errorf("%w: unsupported checksum algorithm: %s", ErrNotSupported, algorithm)
	}
}

// CalculateChecksum drains r and returns its hex digest
func CalculateChecksum(r io.Reader, algorithm ChecksumAlgorithm) (string, error) {
	h, err := NewHasher(algorithm)
	if err != nil {
		return "", err
	}

	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("failed to calculate checksum: %w", err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// CalculateChecksums hashes r once with every algorithm
func CalculateChecksums(r io.Reader, algorithms []ChecksumAlgorithm) (map[ChecksumAlgorithm]string, error) {
	if len(algorithms) == 0 {
		return nil, fmt.Errorf("no algorithms specified")
	}

	hashers := make(map[ChecksumAlgorithm]hash.Hash, len(algorithms))
	writers := make([]io.Writer, 0, len(algorithms))
	for _, algo := range algorithms {
		h, err := NewHasher(algo)
		if err != nil {
			return nil, err
		}
		hashers[algo] = h
		writers = append(writers, h)
	}

	if _, err := io.Copy(io.MultiWriter(writers...), r); err != nil {
		return nil, fmt.Errorf("failed to calculate checksums: %w", err)
	}

	results := make(map[ChecksumAlgorithm]string, len(algorithms))
	for algo, h := range hashers {
		results[algo] = hex.EncodeToString(h.Sum(nil))
	}
	return results, nil
}

// VerifyFingerprint checks that key on fs still holds the content a
// validation fingerprint was computed over. Filesystems that cannot
// checksum are trusted.
func VerifyFingerprint(ctx context.Context, fs FileSystem, key, fingerprint string) error {
	cs, ok := fs.(CanChecksum)
	if !ok || fingerprint == "" {
		return nil
	}
	sum, err := cs.Checksum(ctx, key, ChecksumSHA256)
	if err != nil {
		return fmt.Errorf("verify %s: %w", key, err)
	}
	if sum != fingerprint {
		return fmt.Errorf("%w: %s has %s, expected %s", ErrChecksumMismatch, key, sum, fingerprint)
	}
	return nil
}
