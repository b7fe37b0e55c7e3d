//go:build integration

package integration

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type result struct {
	Data  []map[string]any `json:"data"`
	Total *int             `json:"total"`
}

// TestRowsWorkflow inserts, reads, updates and deletes a row of the test
// table. Writes need a token for a role with write access.
func TestRowsWorkflow(t *testing.T) {
	config := LoadTestConfig()
	config.SkipIfMissingConfig(t)

	if config.Token == "" {
		t.Skip("PGRESTX_TEST_TOKEN not set, skipping write workflow")
	}

	runner := NewCommandRunner(config, t)
	task := GenerateTestName("pgrestx-task")
	filter := "task=eq." + task

	defer runner.CleanupRows(filter)

	// 1. Insert
	var inserted result
	require.NoError(t, runner.RunJSON(&inserted, "insert", config.Table, "-d", `{"task": "`+task+`"}`))
	require.Len(t, inserted.Data, 1)
	assert.Equal(t, task, inserted.Data[0]["task"])

	// 2. Select with an exact count
	var selected result
	require.NoError(t, runner.RunJSON(&selected, "select", config.Table, "-f", filter, "--count", "exact"))
	require.Len(t, selected.Data, 1)
	require.NotNil(t, selected.Total)
	assert.Equal(t, 1, *selected.Total)

	// 3. Update
	var updated result
	require.NoError(t, runner.RunJSON(&updated, "update", config.Table, "-f", filter, "-d", `{"done": true}`))
	require.Len(t, updated.Data, 1)
	assert.Equal(t, true, updated.Data[0]["done"])

	// 4. Delete
	var deleted result
	require.NoError(t, runner.RunJSON(&deleted, "delete", config.Table, "-f", filter))
	assert.Len(t, deleted.Data, 1)

	require.NoError(t, runner.RunJSON(&selected, "select", config.Table, "-f", filter))
	assert.Empty(t, selected.Data)
}

// TestSelectWorkflow reads the test table anonymously.
func TestSelectWorkflow(t *testing.T) {
	config := LoadTestConfig()
	config.SkipIfMissingConfig(t)

	runner := NewCommandRunner(config, t)

	stdout, stderr, err := runner.Run("select", config.Table, "--limit", "5")
	require.NoError(t, err, "Failed to select rows: %s", stderr)
	AssertJSONOutput(t, stdout)

	stdout, stderr, err = runner.Run("select", config.Table, "--all", "--page-size", "2")
	require.NoError(t, err, "Failed to page rows: %s", stderr)
	AssertJSONOutput(t, stdout)

	_, _, err = runner.Run("select", "pgrestx_missing_table")
	require.Error(t, err)
}

// TestGenerateWorkflow generates types from the live OpenAPI document.
func TestGenerateWorkflow(t *testing.T) {
	config := LoadTestConfig()
	config.SkipIfMissingConfig(t)

	runner := NewCommandRunner(config, t)
	outDir := filepath.Join(t.TempDir(), "models")

	stdout, stderr, err := runner.Run("generate", "-i", config.URL, "-o", outDir)
	require.NoError(t, err, "Failed to generate: %s", stderr)
	assert.Contains(t, stdout, "Generated types to")

	for _, name := range []string{"tables.go", "metadata.json"} {
		info, err := os.Stat(filepath.Join(outDir, name))
		require.NoError(t, err)
		assert.Positive(t, info.Size())
	}
}
