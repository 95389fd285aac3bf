package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity. The version suffix leaves
// room for an algorithm change.
const (
	DomainComposition = "modkit/composition/v1"
	DomainModuleSpec  = "modkit/module/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data). The null separator
// keeps domain and data from running together.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// SurfaceFingerprint hashes everything in the surface except its
// Fingerprint field. Composing the same module list twice yields the same
// fingerprint.
func SurfaceFingerprint(s Surface) (string, error) {
	canonical, err := MarshalCanonical(s.canonicalObject())
	if err != nil {
		return "", fmt.Errorf("SurfaceFingerprint: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainComposition, canonical), nil
}

// ModuleSpecHash hashes a declarative module spec.
func ModuleSpecHash(spec ModuleSpec) (string, error) {
	caps := make(IRArray, len(spec.Capabilities))
	for i, c := range spec.Capabilities {
		entry := IRObject{
			"name": IRString(c.Name),
			"args": namedArgsObject(c.Args),
		}
		if c.Writes != "" {
			entry["writes"] = IRString(c.Writes)
		}
		caps[i] = entry
	}
	fields := make(IRArray, len(spec.Config))
	for i, f := range spec.Config {
		fields[i] = f.canonicalObject()
	}
	obj := IRObject{
		"name":         IRString(spec.Name),
		"capabilities": caps,
		"config":       fields,
	}
	if spec.Purpose != "" {
		obj["purpose"] = IRString(spec.Purpose)
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("ModuleSpecHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainModuleSpec, canonical), nil
}

// MustSurfaceFingerprint is like SurfaceFingerprint but panics on error.
// Use only in tests or when the surface is known to be valid.
func MustSurfaceFingerprint(s Surface) string {
	fp, err := SurfaceFingerprint(s)
	if err != nil {
		panic(err)
	}
	return fp
}
