package ir

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOperationFor(t *testing.T) {
	tests := []struct {
		name     string
		old, new int64
		want     Operation
	}{
		{"first scan", 0, 3, OpInsert},
		{"more units", 3, 5, OpUpdate},
		{"fewer units", 5, 2, OpUpdate},
		{"removed", 5, 0, OpDelete},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, OperationFor(tt.old, tt.new))
		})
	}
}

func TestCountItemsByCode(t *testing.T) {
	c := Count{Items: []ExpectedItem{{Code: "A", Expected: 5}, {Code: "B", Expected: 3}}}

	items := c.ItemsByCode()
	require.Len(t, items, 2)
	assert.Equal(t, int64(3), items["B"].Expected)

	_, ok := items["Z"]
	assert.False(t, ok)
}

func TestCountJSONOmitsOpenFields(t *testing.T) {
	c := Count{
		ID:        "count-1",
		Kind:      CountKindGeneral,
		CreatedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		Items:     []ExpectedItem{},
	}

	data, err := json.Marshal(c)
	require.NoError(t, err)

	assert.NotContains(t, string(data), "finalized_at")
	assert.NotContains(t, string(data), "result")
	assert.Contains(t, string(data), `"finalized":false`)
}
