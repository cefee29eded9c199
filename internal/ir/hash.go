package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainPlan   = "basex/plan/v1"
	DomainResult = "basex/result/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// PlanHash computes the identity of an optimized plan from its rendered
// form. Two compilations producing the same plan text share a hash, which
// is how the idempotence check and the trace store detect unchanged plans.
func PlanHash(plan string) string {
	var buf []byte
	buf = append(buf, PlanVersion...)
	buf = append(buf, 0x00)
	buf = append(buf, plan...)
	return hashWithDomain(DomainPlan, buf)
}

// ResultHash computes the identity of an evaluated result sequence.
func ResultHash(s Seq) (string, error) {
	canonical, err := MarshalCanonical(s)
	if err != nil {
		return "", fmt.Errorf("ResultHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainResult, canonical), nil
}

// MustResultHash is like ResultHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustResultHash(s Seq) string {
	h, err := ResultHash(s)
	if err != nil {
		panic(err)
	}
	return h
}
