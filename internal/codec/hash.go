package codec

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/roach88/kbind/internal/kval"
)

// DomainValue separates value hashes from any other hash of the same bytes.
// The version suffix leaves room for a future canonical form.
const DomainValue = "kbind/value/v1"

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Hash returns the content address of v: equal values hash equal, and
// aliasing runtime memory makes no difference.
func Hash(v kval.Value) (string, error) {
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("hash: %w", err)
	}
	return hashWithDomain(DomainValue, canonical), nil
}

// MustHash is like Hash but panics on error.
// Use only in tests or when v is known to have a descriptor form.
func MustHash(v kval.Value) string {
	h, err := Hash(v)
	if err != nil {
		panic(err)
	}
	return h
}
