package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/conteo/internal/ir"
	"github.com/roach88/conteo/internal/reconcile"
)

const remitoYAML = `id: r-1
kind: remito
reference: REM-0001-00000001
items:
  - {code: "A", description: ACME Widget, expected: 5}
  - {code: "B", description: ACME Bolt, expected: 3}
`

// execute runs the root command with args and returns what it printed.
func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()

	cmd := NewRootCommand()
	outBuf := &bytes.Buffer{}
	errBuf := &bytes.Buffer{}
	cmd.SetOut(outBuf)
	cmd.SetErr(errBuf)
	cmd.SetArgs(args)

	err = cmd.Execute()
	return outBuf.String(), errBuf.String(), err
}

// decodeData unmarshals the data of a successful JSON response into v.
func decodeData(t *testing.T, out string, v any) {
	t.Helper()

	var resp struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	require.Equal(t, "ok", resp.Status, out)
	require.NoError(t, json.Unmarshal(resp.Data, v))
}

// decodeError returns the error of a failed JSON response.
func decodeError(t *testing.T, out string) CLIError {
	t.Helper()

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	require.Equal(t, "error", resp.Status, out)
	require.NotNil(t, resp.Error)
	return *resp.Error
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// newCount creates r-1 from remitoYAML in a fresh database and returns the
// --db arguments to reach it.
func newCount(t *testing.T) []string {
	t.Helper()

	dir := t.TempDir()
	file := writeFile(t, dir, "remito.yaml", remitoYAML)
	db := []string{"--db", filepath.Join(dir, "conteo.db")}

	_, _, err := execute(t, append(db, "count", "create", "--file", file)...)
	require.NoError(t, err)
	return db
}

func run(t *testing.T, db []string, args ...string) string {
	t.Helper()
	out, stderr, err := execute(t, append(db, args...)...)
	require.NoError(t, err, stderr)
	return out
}

func TestCountCreate_FromFile(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "remito.yaml", remitoYAML)
	db := filepath.Join(dir, "conteo.db")

	out, _, err := execute(t, "--db", db, "--format", "json", "count", "create", "--file", file, "--reference", "REM-9")
	require.NoError(t, err)

	var c ir.Count
	decodeData(t, out, &c)
	assert.Equal(t, "r-1", c.ID)
	assert.Equal(t, ir.CountKindRemito, c.Kind)
	assert.Equal(t, "REM-9", c.Reference)
	require.Len(t, c.Items, 2)
	assert.Equal(t, "ACME Bolt", c.Items[1].Description)
}

func TestCountCreate_Text(t *testing.T) {
	dir := t.TempDir()
	out, _, err := execute(t, "--db", filepath.Join(dir, "c.db"), "count", "create", "--id", "g-1")
	require.NoError(t, err)
	assert.Equal(t, "Created count g-1 (general, 0 items)\n", out)
}

func TestCountCreate_InvalidFile(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "dup.yaml", `items:
  - {code: "A", expected: 1}
  - {code: "A", expected: 2}
`)

	out, _, err := execute(t, "--db", filepath.Join(dir, "c.db"), "--format", "json", "count", "create", "--file", file)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	cliErr := decodeError(t, out)
	assert.Equal(t, "E203", cliErr.Code)
	assert.Contains(t, cliErr.Message, "duplicate code")
}

func TestCountCreate_Exists(t *testing.T) {
	db := newCount(t)

	_, _, err := execute(t, append(db, "count", "create", "--id", "r-1")...)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "COUNT_EXISTS")
}

func TestCommands_DatabaseNotFound(t *testing.T) {
	db := filepath.Join(t.TempDir(), "missing.db")

	for _, args := range [][]string{
		{"count", "list"},
		{"scan", "r-1", "ana", "A"},
		{"progress", "r-1"},
		{"verify"},
	} {
		t.Run(args[0], func(t *testing.T) {
			_, _, err := execute(t, append([]string{"--db", db}, args...)...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, err.Error(), "database not found")
		})
	}

	_, statErr := os.Stat(db)
	assert.True(t, os.IsNotExist(statErr), "read commands must not create the database")
}

func TestCountListAndShow(t *testing.T) {
	db := newCount(t)

	out := run(t, db, "count", "list")
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "STATUS")
	assert.Contains(t, out, "r-1")
	assert.Contains(t, out, "open")

	out = run(t, db, "count", "show", "r-1")
	assert.Contains(t, out, "Count: r-1")
	assert.Contains(t, out, "Reference: REM-0001-00000001")
	assert.Contains(t, out, "ACME Widget")
	assert.NotContains(t, out, "=== Discrepancies ===")
}

func TestCountShow_Unknown(t *testing.T) {
	db := newCount(t)

	out, _, err := execute(t, append(db, "--format", "json", "count", "show", "nope")...)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Equal(t, "COUNT_NOT_FOUND", decodeError(t, out).Code)
}

func TestScan_DefaultQuantityAndJSON(t *testing.T) {
	db := newCount(t)

	out := run(t, db, "--format", "json", "scan", "r-1", "ana", "A")
	var res EventResult
	decodeData(t, out, &res)
	assert.Equal(t, int64(1), res.Quantity)
	assert.NotEmpty(t, res.EventID)

	out = run(t, db, "scan", "r-1", "ana", "A", "2")
	assert.Contains(t, out, "Scanned 2 x A by ana")
}

func TestScan_RetryWithSameTimestampIsIgnored(t *testing.T) {
	db := newCount(t)
	at := "2025-03-01T09:15:00Z"

	first := run(t, db, "--format", "json", "scan", "r-1", "ana", "A", "3", "--at", at)
	second := run(t, db, "--format", "json", "scan", "r-1", "ana", "A", "3", "--at", at)

	var a, b EventResult
	decodeData(t, first, &a)
	decodeData(t, second, &b)
	assert.Equal(t, a.EventID, b.EventID)

	var p reconcile.ProgressSummary
	decodeData(t, run(t, db, "--format", "json", "progress", "r-1"), &p)
	assert.Equal(t, int64(3), p.Scanned)
}

func TestScan_WritesMetricsFile(t *testing.T) {
	db := newCount(t)
	path := filepath.Join(t.TempDir(), "conteo.prom")

	run(t, db, "--metrics-file", path, "scan", "r-1", "ana", "A", "2")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "conteo_history_failures_total 0")
	assert.Contains(t, text, `conteo_scan_events_total{kind="scan"} 1`)
	assert.Contains(t, text, `conteo_history_entries_total{operation="insert"} 1`)
}

func TestScan_MetricsFileFromEnvironment(t *testing.T) {
	db := newCount(t)
	path := filepath.Join(t.TempDir(), "conteo.prom")
	t.Setenv("CONTEO_METRICS_FILE", path)

	run(t, db, "scan", "r-1", "ana", "A")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "conteo_history_failures_total")
}

func TestScan_InvalidInput(t *testing.T) {
	db := newCount(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"non-numeric quantity", []string{"scan", "r-1", "ana", "A", "three"}, "invalid quantity"},
		{"zero quantity", []string{"scan", "r-1", "ana", "A", "0"}, "quantity must be positive"},
		{"blank code", []string{"scan", "r-1", "ana", " "}, "code must not be empty"},
		{"bad timestamp", []string{"scan", "r-1", "ana", "A", "--at", "yesterday"}, "invalid --at"},
		{"negative adjust", []string{"adjust", "r-1", "ana", "A", "--", "-1"}, "must not be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, append(db, tt.args...)...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestAdjustRemoveAndHistory(t *testing.T) {
	db := newCount(t)

	run(t, db, "scan", "r-1", "ana", "A", "3")
	out := run(t, db, "adjust", "r-1", "ana", "A", "5")
	assert.Contains(t, out, "Set A to 5 for ana")

	out = run(t, db, "adjust", "r-1", "ana", "A", "5")
	assert.Contains(t, out, "No change")

	run(t, db, "remove", "r-1", "ana", "A")

	var h HistoryResult
	decodeData(t, run(t, db, "--format", "json", "history", "r-1"), &h)
	require.Len(t, h.Entries, 3)
	assert.Equal(t, ir.OpInsert, h.Entries[0].Operation)
	assert.Equal(t, ir.OpUpdate, h.Entries[1].Operation)
	assert.Equal(t, int64(3), h.Entries[1].OldValue)
	assert.Equal(t, int64(5), h.Entries[1].NewValue)
	assert.Equal(t, ir.OpDelete, h.Entries[2].Operation)
	assert.Equal(t, "ACME Widget", h.Entries[2].Description)

	out = run(t, db, "history", "r-1", "--recover")
	assert.Contains(t, out, "Recovered: 0")
	assert.Contains(t, out, "OPERATION")
}

func TestProgress_Text(t *testing.T) {
	db := newCount(t)
	run(t, db, "scan", "r-1", "ana", "A", "5")
	run(t, db, "scan", "r-1", "ben", "A", "1")

	out := run(t, db, "progress", "r-1")
	// The sixth unit of A is over the expected 5 and does not count.
	assert.Contains(t, out, "Overall: 62% (5/8 units, 6 scanned)")
	assert.Contains(t, out, "ACME")
	assert.Contains(t, out, "=== Pending (1) ===")
	assert.Contains(t, out, "ACME Bolt")

	out = run(t, db, "progress", "r-1", "--items")
	assert.Contains(t, out, "=== Items ===")
	assert.Contains(t, out, "ACME Widget")
}

func TestFinalizeFlow(t *testing.T) {
	db := newCount(t)
	run(t, db, "scan", "r-1", "ana", "A", "3")
	run(t, db, "scan", "r-1", "ben", "A", "2")
	run(t, db, "scan", "r-1", "ana", "X", "1")

	out := run(t, db, "--format", "json", "finalize", "r-1", "-c", "  caja 3 dañada ")
	var res struct {
		Clarification    string           `json:"clarification"`
		Records          []ir.Discrepancy `json:"records"`
		AlreadyFinalized bool             `json:"already_finalized"`
	}
	decodeData(t, out, &res)
	assert.False(t, res.AlreadyFinalized)
	assert.Equal(t, "caja 3 dañada", res.Clarification)
	require.Len(t, res.Records, 2)
	assert.Equal(t, ir.KindMissing, res.Records[0].Kind)
	assert.Equal(t, "B", res.Records[0].Code)
	assert.Equal(t, int64(-3), res.Records[0].Diff)
	assert.Equal(t, ir.KindExtra, res.Records[1].Kind)
	assert.Equal(t, "X", res.Records[1].Code)

	t.Run("second finalize returns the frozen result", func(t *testing.T) {
		out, _, err := execute(t, append(db, "finalize", "r-1")...)
		require.Error(t, err)
		assert.Equal(t, ExitFailure, GetExitCode(err))
		assert.Contains(t, out, "was already finalized")
		assert.Contains(t, out, "caja 3 dañada")
	})

	t.Run("scan after finalize", func(t *testing.T) {
		out, _, err := execute(t, append(db, "--format", "json", "scan", "r-1", "ana", "A")...)
		require.Error(t, err)
		assert.Equal(t, ExitFailure, GetExitCode(err))
		assert.Equal(t, "ALREADY_FINALIZED", decodeError(t, out).Code)
	})

	t.Run("report shows discrepancies", func(t *testing.T) {
		out := run(t, db, "report", "r-1", "--history")
		assert.Contains(t, out, "Status: finalized")
		assert.Contains(t, out, "=== Discrepancies ===")
		assert.Contains(t, out, "missing")
		assert.Contains(t, out, reconcile.OtherBrands)
		assert.Contains(t, out, "unexpected")
		assert.Contains(t, out, "=== History ===")
	})

	t.Run("show includes result", func(t *testing.T) {
		out := run(t, db, "count", "show", "r-1")
		assert.Contains(t, out, "Status: finalized")
		assert.Contains(t, out, "Clarification: caja 3 dañada")
	})
}

func TestReport_JSON(t *testing.T) {
	db := newCount(t)
	run(t, db, "scan", "r-1", "ben", "A", "2")
	run(t, db, "scan", "r-1", "ana", "B", "1")

	var r reconcile.Report
	decodeData(t, run(t, db, "--format", "json", "report", "r-1", "--history"), &r)
	assert.Equal(t, "r-1", r.Header.CountID)
	assert.Equal(t, 2, r.Header.Users)
	require.Len(t, r.Users, 2)
	assert.Equal(t, "ana", r.Users[0].UserID)
	assert.Equal(t, "ben", r.Users[1].UserID)
	assert.Len(t, r.History, 2)
	assert.Empty(t, r.Discrepancies)
}

func TestVerify(t *testing.T) {
	db := newCount(t)
	run(t, db, "count", "create", "--id", "g-1")
	run(t, db, "scan", "r-1", "ana", "A", "2")
	run(t, db, "scan", "g-1", "ana", "Z", "1")
	run(t, db, "finalize", "g-1")

	out := run(t, db, "verify")
	assert.Contains(t, out, "Verify Summary: 2 count(s)")
	assert.Contains(t, out, "✓ Count: r-1")
	assert.Contains(t, out, "✓ Count: g-1")
	assert.Contains(t, out, "All counts verified")

	var report VerifyReport
	decodeData(t, run(t, db, "--format", "json", "verify", "r-1"), &report)
	assert.True(t, report.AllOK)
	require.Len(t, report.Counts, 1)
	assert.Equal(t, 1, report.Counts[0].Events)
	assert.Zero(t, report.Counts[0].Unaudited)
}

func TestVerify_UnknownCount(t *testing.T) {
	db := newCount(t)

	_, _, err := execute(t, append(db, "verify", "nope")...)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
