package hashing

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// PrepareData converts the input into its canonical string form for
// hashing. Strings pass through unchanged; any other value is
// marshaled as JSON (map keys are emitted in sorted order, so the
// same document always produces the same digest).
func PrepareData(data interface{}) (string, error) {
	switch v := data.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("failed to canonicalize data: %w", err)
		}
		return string(b), nil
	}
}

// HashData hashes the given data using SHA-256 and returns the raw digest
func HashData(data interface{}) ([]byte, error) {
	s, err := PrepareData(data)
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256([]byte(s))
	return sum[:], nil
}

// HashHex hashes the given data using SHA-256 and returns the digest
// in hexadecimal form.
func HashHex(data interface{}) (string, error) {
	digest, err := HashData(data)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(digest), nil
}
