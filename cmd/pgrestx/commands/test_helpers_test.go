package commands

import (
	"bytes"
	"io"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// findSubcommand finds a subcommand by name within a cobra command.
func findSubcommand(cmd *cobra.Command, name string) *cobra.Command {
	for _, c := range cmd.Commands() {
		if c.Name() == name {
			return c
		}
	}

	return nil
}

// useViper resets the global viper state to settings for one test. Tests
// calling it must not run in parallel.
func useViper(t *testing.T, settings map[string]any) {
	t.Helper()

	viper.Reset()

	for key, value := range settings {
		viper.Set(key, value)
	}

	previous := logOutput
	logOutput = io.Discard

	t.Cleanup(func() {
		viper.Reset()

		logOutput = previous
	})
}

// run executes cmd with args and returns what it printed.
func run(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer

	// cobra falls back to os.Args when given nil.
	if args == nil {
		args = []string{}
	}

	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	err := cmd.Execute()

	return out.String(), err
}
