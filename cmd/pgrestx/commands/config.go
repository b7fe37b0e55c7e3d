package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fivetwenty-io/postgrestx/internal/constants"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config represents the CLI configuration.
type Config struct {
	URL      string `json:"url,omitempty"       yaml:"url,omitempty"`
	Token    string `json:"token,omitempty"     yaml:"token,omitempty"`
	Schema   string `json:"schema,omitempty"    yaml:"schema,omitempty"`
	Output   string `json:"output,omitempty"    yaml:"output,omitempty"`
	Cache    string `json:"cache,omitempty"     yaml:"cache,omitempty"`
	CacheURL string `json:"cache_url,omitempty" yaml:"cache_url,omitempty"`
}

// configKeys maps each settable key onto its field.
var configKeys = map[string]func(*Config) *string{
	keyURL:      func(c *Config) *string { return &c.URL },
	keyToken:    func(c *Config) *string { return &c.Token },
	keySchema:   func(c *Config) *string { return &c.Schema },
	keyOutput:   func(c *Config) *string { return &c.Output },
	keyCache:    func(c *Config) *string { return &c.Cache },
	keyCacheURL: func(c *Config) *string { return &c.CacheURL },
}

// NewConfigCommand creates the config command group.
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage CLI configuration",
		Long: `Manage the pgrestx configuration stored in $HOME/.pgrestx/config.yml.

Keys: url, token, schema, output, cache, cache_url. Every key can also be
set with a PGRESTX_ environment variable, e.g. PGRESTX_URL.`,
	}

	cmd.AddCommand(newConfigShowCommand())
	cmd.AddCommand(newConfigGetCommand())
	cmd.AddCommand(newConfigSetCommand())
	cmd.AddCommand(newConfigUnsetCommand())

	return cmd
}

func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Long:  "Display the effective configuration with the token masked",
		RunE: func(cmd *cobra.Command, args []string) error {
			config := loadConfig()
			if config.Token != "" {
				config.Token = Masked
			}

			return printValue(cmd.OutOrStdout(), configMap(config))
		},
	}
}

func newConfigGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get KEY",
		Short: "Print a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			field, err := configField(args[0])
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), *field(loadConfig()))

			return nil
		},
	}
}

func newConfigSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, value := args[0], args[1]

			field, err := configField(key)
			if err != nil {
				return err
			}

			config := loadConfig()
			*field(config) = value

			err = saveConfigStruct(config)
			if err != nil {
				return err
			}

			viper.Set(key, value)

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Set %s\n", key)

			return nil
		},
	}
}

func newConfigUnsetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "unset KEY",
		Short: "Remove a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]

			field, err := configField(key)
			if err != nil {
				return err
			}

			config := loadConfig()
			*field(config) = ""

			err = saveConfigStruct(config)
			if err != nil {
				return err
			}

			viper.Set(key, "")

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Unset %s\n", key)

			return nil
		},
	}
}

func configField(key string) (func(*Config) *string, error) {
	field, ok := configKeys[key]
	if !ok {
		keys := sortedKeys(configKeys)

		return nil, fmt.Errorf("%w: %s (valid keys: %v)", ErrUnknownConfigKey, key, keys)
	}

	return field, nil
}

func loadConfig() *Config {
	return &Config{
		URL:      viper.GetString(keyURL),
		Token:    viper.GetString(keyToken),
		Schema:   viper.GetString(keySchema),
		Output:   viper.GetString(keyOutput),
		Cache:    viper.GetString(keyCache),
		CacheURL: viper.GetString(keyCacheURL),
	}
}

// configMap lists the configuration as key/value pairs for display.
func configMap(config *Config) map[string]any {
	out := make(map[string]any, len(configKeys))

	for key, field := range configKeys {
		value := *field(config)
		if value == "" {
			value = constants.NotAvailable
		}

		out[key] = value
	}

	return out
}

func configFilePath() (string, error) {
	configFile := viper.ConfigFileUsed()
	if configFile != "" {
		return configFile, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(home, configDirName, configFileName), nil
}

func saveConfigStruct(config *Config) error {
	configFile, err := configFilePath()
	if err != nil {
		return err
	}

	err = os.MkdirAll(filepath.Dir(configFile), constants.ConfigDirPerm)
	if err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	err = os.WriteFile(configFile, data, constants.ConfigFilePerm)
	if err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
