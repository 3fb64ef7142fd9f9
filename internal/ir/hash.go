package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// The version suffix leaves room for a future encoding change.
const (
	DomainPackage = "nao/package/v1"
	DomainPallet  = "nao/pallet/v1"
)

// hashWithDomain computes SHA-256 with domain separation:
// SHA256(domain + 0x00 + data). The null byte keeps the domain/data
// boundary unambiguous.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// PackageHash is the content hash of one encoded package (native or foreign).
func PackageHash(pkg Node) (string, error) {
	canonical, err := MarshalCanonical(Encode(pkg))
	if err != nil {
		return "", fmt.Errorf("PackageHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainPackage, canonical), nil
}

// PalletID is the content-addressed identity of an emitted pallet. It is
// computed over the exact canonical bytes handed to the backend, so two
// compilations share an ID only when the backend would see identical input.
func PalletID(canonical []byte) string {
	return hashWithDomain(DomainPallet, canonical)
}
