package ir

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanIDDeterminism(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	id1, err := ScanID("count-1", "ana", "A", 5, at)
	require.NoError(t, err)
	id2, err := ScanID("count-1", "ana", "A", 5, at)
	require.NoError(t, err)

	assert.Equal(t, id1, id2, "ScanID must be deterministic")
	assert.Len(t, id1, 64, "SHA-256 hex is 64 characters")
}

func TestScanIDChangesWithInput(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	base := MustScanID("count-1", "ana", "A", 5, at)

	assert.NotEqual(t, base, MustScanID("count-2", "ana", "A", 5, at), "different count")
	assert.NotEqual(t, base, MustScanID("count-1", "luis", "A", 5, at), "different user")
	assert.NotEqual(t, base, MustScanID("count-1", "ana", "B", 5, at), "different code")
	assert.NotEqual(t, base, MustScanID("count-1", "ana", "A", 6, at), "different quantity")
	assert.NotEqual(t, base, MustScanID("count-1", "ana", "A", 5, at.Add(time.Nanosecond)), "different time")
}

func TestScanIDIgnoresTimezone(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	local := at.In(time.FixedZone("ART", -3*60*60))

	assert.Equal(t, MustScanID("c", "u", "A", 1, at), MustScanID("c", "u", "A", 1, local))
}

func TestHashWithDomainSeparation(t *testing.T) {
	data := []byte(`{"a":1}`)
	assert.NotEqual(t, hashWithDomain("conteo/scan/v1", data), hashWithDomain("conteo/other/v1", data))
}
