package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fivetwenty-io/postgrestx/internal/constants"
	"github.com/fivetwenty-io/postgrestx/pkg/openapi"
	"github.com/fivetwenty-io/postgrestx/pkg/pgclient"
	"github.com/fivetwenty-io/postgrestx/pkg/postgrest"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Generated file names.
const (
	tablesFileName   = "tables.go"
	metadataFileName = "metadata.json"
)

// NewGenerateCommand creates the generate command.
func NewGenerateCommand() *cobra.Command {
	var (
		input  string
		outDir string
		pkg    string
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate Go types from a PostgREST OpenAPI document",
		Long: `Generate Go types from a PostgREST OpenAPI document.

The input is a JSON file or the URL of a PostgREST root. Two files are
written to the output directory: tables.go with a struct, column constants
and filter operators per table, and metadata.json describing the tables and
functions.

  pgrestx generate -i openapi.json -o ./models
  pgrestx generate -i https://db.example.com/ -o ./models -p db`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if input == "" {
				return ErrInputRequired
			}

			if outDir == "" {
				return ErrOutputDirRequired
			}

			if pkg == "" {
				pkg = filepath.Base(filepath.Clean(outDir))
				if !isIdentifier(pkg) {
					pkg = openapi.DefaultPackage
				}
			}

			doc, err := loadDocument(cmd.Context(), input)
			if err != nil {
				return err
			}

			err = generate(openapi.Introspect(doc), outDir, pkg)
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Generated types to %s\n", outDir)

			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "OpenAPI JSON file or PostgREST URL")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "output directory")
	cmd.Flags().StringVarP(&pkg, "package", "p", "", "package name of the generated code (default: output directory name)")

	return cmd
}

// loadDocument reads the document from a file, or fetches it when input is
// an http(s) URL.
func loadDocument(ctx context.Context, input string) (openapi.Value, error) {
	if !strings.HasPrefix(input, "http://") && !strings.HasPrefix(input, "https://") {
		return openapi.LoadSpec(input)
	}

	transport, err := pgclient.NewTransport(&postgrest.Config{
		BaseURL: input,
		Token:   viper.GetString(keyToken),
		Debug:   viper.GetBool(keyVerbose),
		Logger:  NewStderrLogger(logOutput, viper.GetBool(keyVerbose)),
	})
	if err != nil {
		return openapi.Value{}, err
	}

	return openapi.FetchSpec(ctx, transport, input)
}

func generate(in *openapi.Introspection, outDir, pkg string) error {
	src, err := openapi.EmitGo(in, pkg)
	if err != nil {
		return err
	}

	metadata, err := openapi.EmitMetadata(in)
	if err != nil {
		return err
	}

	err = os.MkdirAll(outDir, constants.ConfigDirPerm)
	if err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	files := []struct {
		name string
		data []byte
	}{
		{tablesFileName, src},
		{metadataFileName, metadata},
	}

	for _, file := range files {
		// #nosec G306 -- generated sources are meant to be readable
		err = os.WriteFile(filepath.Join(outDir, file.name), file.data, constants.GeneratedFilePerm)
		if err != nil {
			return fmt.Errorf("failed to write %s: %w", file.name, err)
		}
	}

	return nil
}

func isIdentifier(name string) bool {
	if name == "" {
		return false
	}

	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r == '_':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}

	return true
}
