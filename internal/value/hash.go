package value

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content hashes.
// Version suffix enables future algorithm migration.
const (
	DomainSnapshot   = "rgraph/snapshot/v1"
	DomainProperties = "rgraph/properties/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Hash returns the domain-separated SHA-256 of v's canonical JSON.
// Equal values (see Equal) with the same number representation hash equally.
func Hash(domain string, v Value) (string, error) {
	data, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("hash: %w", err)
	}
	return hashWithDomain(domain, data), nil
}
