package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunWithGolden_PartialRemito(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/partial_remito.yaml")
	require.NoError(t, err)

	// Regenerate with:
	//   go test ./internal/harness -run TestRunWithGolden_PartialRemito -update
	result, err := RunWithGolden(t, s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestSnapshot_EmptyResult(t *testing.T) {
	data, err := Snapshot("empty", NewResult())
	require.NoError(t, err)

	assert.Equal(t,
		`{"discrepancies":[],"finalized":false,"history":[],"progress":{"brands":[],"counted":0,"expected":0,"overall":0,"pending":[],"scanned":0},"scenario_name":"empty","trace":[],"users":[]}`,
		string(data))
}
