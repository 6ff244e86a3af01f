// Package checksum verifies downloaded buffers against published
// SHA-256 digests.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// MismatchError is returned when a buffer does not hash to the
// expected digest.
type MismatchError struct {
	Expected string
	Actual   string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("hash check failed: expected %s, got %s", e.Expected, e.Actual)
}

// Sum returns the lowercase hex SHA-256 of data.
func Sum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Verify compares the SHA-256 of data with expectedHex, ignoring case.
func Verify(data []byte, expectedHex string) error {
	expected := strings.TrimSpace(expectedHex)
	actual := Sum(data)
	if !strings.EqualFold(actual, expected) {
		return &MismatchError{Expected: expected, Actual: actual}
	}
	return nil
}

// IsDigest reports whether s is a hex SHA-256 digest.
func IsDigest(s string) bool {
	if len(s) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

// ParseSidecar extracts the digest from the contents of a `.sha256`
// file. Both the bare form and the sha256sum form ("<hex>  <name>")
// are accepted.
func ParseSidecar(contents []byte) (string, error) {
	fields := strings.Fields(string(contents))
	if len(fields) == 0 {
		return "", fmt.Errorf("empty checksum file")
	}
	digest := fields[0]
	if !IsDigest(digest) {
		return "", fmt.Errorf("malformed checksum %q", digest)
	}
	return strings.ToLower(digest), nil
}

// ParseSums reads a SHA256SUMS listing ("<hex>  <name>" per line, a
// leading '*' on the name marks binary mode) into a map from file name
// to lowercase digest.
func ParseSums(contents []byte) (map[string]string, error) {
	sums := map[string]string{}
	for i, line := range strings.Split(string(contents), "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 2 || !IsDigest(fields[0]) {
			return nil, fmt.Errorf("malformed checksum line %d: %q", i+1, line)
		}
		sums[strings.TrimPrefix(fields[1], "*")] = strings.ToLower(fields[0])
	}
	return sums, nil
}
