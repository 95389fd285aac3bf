package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type historyResponse struct {
	Status string        `json:"status"`
	Data   HistoryResult `json:"data"`
}

// seedHistory records three compositions: core alone, core with
// extension, and core with extension plus two calls.
func seedHistory(t *testing.T) (string, []string) {
	t.Helper()
	db := filepath.Join(t.TempDir(), "modkit.db")

	var ids []string
	first, err := runComposeJSON(t, specsDir, "--db", db, "--module", "core")
	require.NoError(t, err)
	ids = append(ids, first.Data.SnapshotID)

	second, err := runComposeJSON(t, specsDir, "--db", db)
	require.NoError(t, err)
	ids = append(ids, second.Data.SnapshotID)

	third, err := runInvokeJSON(t, specsDir, "--db", db, "--call", "coreFn", "--call", `withMeta={"key":"v1"}`)
	require.NoError(t, err)
	ids = append(ids, third.Data.SnapshotID)

	return db, ids
}

func runHistoryJSON(t *testing.T, args ...string) historyResponse {
	t.Helper()
	stdout, _, err := execute(NewHistoryCommand(&RootOptions{Format: "json"}), args...)
	require.NoError(t, err, stdout)
	var resp historyResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp), stdout)
	return resp
}

func historyIDs(resp historyResponse) []string {
	ids := make([]string, len(resp.Data.Snapshots))
	for i, s := range resp.Data.Snapshots {
		ids[i] = s.ID
	}
	return ids
}

func TestHistoryListsNewestFirst(t *testing.T) {
	db, ids := seedHistory(t)

	resp := runHistoryJSON(t, "--db", db)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, []string{ids[2], ids[1], ids[0]}, historyIDs(resp))
	assert.Equal(t, int64(3), resp.Data.Snapshots[0].Seq)
	assert.Empty(t, resp.Data.Snapshots[0].Calls)

	resp = runHistoryJSON(t, "--db", db, "--limit", "1")
	assert.Equal(t, []string{ids[2]}, historyIDs(resp))
}

func TestHistoryByFingerprint(t *testing.T) {
	db, ids := seedHistory(t)

	all := runHistoryJSON(t, "--db", db, "--limit", "0")
	require.Len(t, all.Data.Snapshots, 3)
	// Same module list, same fingerprint, regardless of calls.
	fp := all.Data.Snapshots[0].Fingerprint
	assert.Equal(t, fp, all.Data.Snapshots[1].Fingerprint)
	assert.NotEqual(t, fp, all.Data.Snapshots[2].Fingerprint)

	resp := runHistoryJSON(t, "--db", db, "--fingerprint", fp)
	assert.Equal(t, []string{ids[1], ids[2]}, historyIDs(resp))
}

func TestHistoryByModule(t *testing.T) {
	db, ids := seedHistory(t)

	resp := runHistoryJSON(t, "--db", db, "--module", "extension")
	assert.Equal(t, []string{ids[1], ids[2]}, historyIDs(resp))

	resp = runHistoryJSON(t, "--db", db, "--module", "core")
	assert.Equal(t, ids, historyIDs(resp))

	resp = runHistoryJSON(t, "--db", db, "--module", "billing")
	assert.Empty(t, resp.Data.Snapshots)
}

func TestHistoryShowsCalls(t *testing.T) {
	db, ids := seedHistory(t)

	resp := runHistoryJSON(t, "--db", db, "--id", ids[2])
	require.Len(t, resp.Data.Snapshots, 1)
	entry := resp.Data.Snapshots[0]
	assert.Equal(t, "modkit invoke", entry.CreatedBy)
	require.Len(t, entry.Calls, 2)
	assert.Equal(t, "withMeta", entry.Calls[1].Capability)

	stdout, _, err := execute(NewHistoryCommand(&RootOptions{Format: "text"}), "--db", db, "--id", ids[2])
	require.NoError(t, err)
	assert.Contains(t, stdout, "[3] ")
	assert.Contains(t, stdout, "created by: modkit invoke")
	assert.Contains(t, stdout, "operations: coreFn, extFn, withMeta, withUser")
	assert.Contains(t, stdout, `[2] withMeta (core) {"key":"v1"}`)
}

func TestHistoryTextOutput(t *testing.T) {
	db, _ := seedHistory(t)

	stdout, _, err := execute(NewHistoryCommand(&RootOptions{Format: "text"}), "--db", db)
	require.NoError(t, err)
	assert.Contains(t, stdout, "[1] ")
	assert.Contains(t, stdout, " core,extension\n")
	assert.NotContains(t, stdout, "created by")
}

func TestHistoryUnknownID(t *testing.T) {
	db, _ := seedHistory(t)

	_, _, err := execute(NewHistoryCommand(&RootOptions{Format: "text"}), "--db", db, "--id", "missing")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "snapshot not found: missing")
}

func TestHistoryEmptyDatabase(t *testing.T) {
	db := filepath.Join(t.TempDir(), "empty.db")

	stdout, _, err := execute(NewHistoryCommand(&RootOptions{Format: "text"}), "--db", db)
	require.NoError(t, err)
	assert.Contains(t, stdout, "No snapshots found")
}

func TestHistoryRequiresDB(t *testing.T) {
	_, _, err := execute(NewHistoryCommand(&RootOptions{Format: "text"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"db" not set`)
}

func TestHistoryFiltersAreExclusive(t *testing.T) {
	db := filepath.Join(t.TempDir(), "modkit.db")
	_, _, err := execute(NewHistoryCommand(&RootOptions{Format: "text"}), "--db", db, "--module", "core", "--id", "x")
	require.Error(t, err)
}
