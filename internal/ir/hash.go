package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainScan = "conteo/scan/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ScanID computes the content-addressed ID of a scan submission.
//
// A retried submission with the same count, user, code, quantity and scan
// timestamp yields the same ID, which lets the store discard the duplicate
// instead of counting it twice. RecordedAt is excluded: it is assigned per
// attempt and would defeat deduplication.
func ScanID(countID, userID, code string, quantity int64, scannedAt time.Time) (string, error) {
	obj := map[string]any{
		"count_id":   countID,
		"user_id":    userID,
		"code":       code,
		"quantity":   quantity,
		"scanned_at": scannedAt.UTC().UnixNano(),
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("ScanID: failed to marshal: %w", err)
	}

	return hashWithDomain(DomainScan, canonical), nil
}

// MustScanID is like ScanID but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustScanID(countID, userID, code string, quantity int64, scannedAt time.Time) string {
	id, err := ScanID(countID, userID, code, quantity, scannedAt)
	if err != nil {
		panic(err)
	}
	return id
}
