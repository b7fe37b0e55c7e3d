//go:build integration

package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"
)

// TestConfig holds configuration for integration tests
type TestConfig struct {
	URL         string
	Token       string
	Table       string
	PgrestxPath string
	Verbose     bool
}

// LoadTestConfig loads configuration from environment variables. The
// defaults match the todos table of the PostgREST tutorial.
func LoadTestConfig() *TestConfig {
	table := os.Getenv("PGRESTX_TEST_TABLE")
	if table == "" {
		table = "todos"
	}

	return &TestConfig{
		URL:         os.Getenv("PGRESTX_TEST_URL"),
		Token:       os.Getenv("PGRESTX_TEST_TOKEN"),
		Table:       table,
		PgrestxPath: getPgrestxPath(),
		Verbose:     os.Getenv("PGRESTX_VERBOSE") == "true",
	}
}

// getPgrestxPath determines the path to the pgrestx binary
func getPgrestxPath() string {
	if path := os.Getenv("PGRESTX_BINARY_PATH"); path != "" {
		return path
	}

	candidates := []string{
		"../../pgrestx",
		"./pgrestx",
		"../pgrestx",
	}

	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}

	return "pgrestx"
}

// SkipIfMissingConfig skips test if required config is missing
func (config *TestConfig) SkipIfMissingConfig(t *testing.T) {
	t.Helper()

	if config.URL == "" {
		t.Skip("PGRESTX_TEST_URL not set, skipping integration test")
	}

	if _, err := exec.LookPath(config.PgrestxPath); err != nil {
		t.Skipf("pgrestx binary not found at %s, skipping integration test", config.PgrestxPath)
	}
}

// CommandRunner runs pgrestx against the configured server
type CommandRunner struct {
	config *TestConfig
	t      *testing.T
}

// NewCommandRunner creates a new command runner
func NewCommandRunner(config *TestConfig, t *testing.T) *CommandRunner {
	return &CommandRunner{
		config: config,
		t:      t,
	}
}

// Run executes a pgrestx command with the server flags and JSON output
func (runner *CommandRunner) Run(args ...string) (stdout, stderr string, err error) {
	full := append([]string{"--url=" + runner.config.URL, "--output=json"}, args...)
	if runner.config.Token != "" {
		full = append(full, "--token="+runner.config.Token)
	}

	// #nosec G204 -- the binary path comes from the test environment
	cmd := exec.Command(runner.config.PgrestxPath, full...)

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	if runner.config.Verbose {
		runner.t.Logf("Running: %s %s", runner.config.PgrestxPath, strings.Join(args, " "))
	}

	err = cmd.Run()
	stdout = stdoutBuf.String()
	stderr = stderrBuf.String()

	if runner.config.Verbose && err != nil {
		runner.t.Logf("Command failed: %v\nStdout: %s\nStderr: %s", err, stdout, stderr)
	}

	return stdout, stderr, err
}

// RunJSON runs a command and decodes its JSON output
func (runner *CommandRunner) RunJSON(out any, args ...string) error {
	stdout, stderr, err := runner.Run(args...)
	if err != nil {
		return fmt.Errorf("pgrestx %s: %w: %s", strings.Join(args, " "), err, stderr)
	}

	return json.Unmarshal([]byte(stdout), out)
}

// GenerateTestName creates a unique test value
func GenerateTestName(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}

// CleanupRows deletes the rows matching filter, logging failures
func (runner *CommandRunner) CleanupRows(filter string) {
	stdout, stderr, err := runner.Run("delete", runner.config.Table, "-f", filter, "--return", "minimal")
	if err != nil && runner.config.Verbose {
		runner.t.Logf("Cleanup warning for %s: %s\nStderr: %s", filter, stdout, stderr)
	}
}

// AssertJSONOutput checks that output looks like JSON
func AssertJSONOutput(t *testing.T, output string) {
	t.Helper()

	output = strings.TrimSpace(output)
	if !strings.HasPrefix(output, "{") && !strings.HasPrefix(output, "[") {
		t.Errorf("Output does not appear to be JSON: %s", output)
	}
}
