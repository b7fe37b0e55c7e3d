package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/fivetwenty-io/postgrestx/internal/constants"
	"github.com/fivetwenty-io/postgrestx/pkg/postgrest"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/viper"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

// outputFormat resolves --output. Without one, terminals get a table and
// pipes get JSON.
func outputFormat() (string, error) {
	format := strings.ToLower(viper.GetString(keyOutput))

	switch format {
	case constants.FormatJSON, constants.FormatYAML, constants.FormatTable:
		return format, nil
	case "":
		if term.IsTerminal(int(os.Stdout.Fd())) {
			return constants.FormatTable, nil
		}

		return constants.FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: %s (use table, json or yaml)", ErrInvalidOutputFormat, format)
	}
}

// printResult writes a query result. JSON and YAML carry the pagination
// metadata alongside the rows; tables print it as a footer.
func printResult(w io.Writer, result *postgrest.QueryResult[any]) error {
	format, err := outputFormat()
	if err != nil {
		return err
	}

	switch format {
	case constants.FormatJSON:
		return writeJSON(w, result)
	case constants.FormatYAML:
		return writeYAML(w, result)
	default:
		err = writeTable(w, result.Data)
		if err != nil {
			return err
		}

		if result.Range != nil {
			fmt.Fprintf(w, "Rows %d-%d of %s\n", result.Range.From, result.Range.To, formatTotal(result.Total))
		}

		return nil
	}
}

// printValue writes any value in the selected format.
func printValue(w io.Writer, value any) error {
	format, err := outputFormat()
	if err != nil {
		return err
	}

	switch format {
	case constants.FormatJSON:
		return writeJSON(w, value)
	case constants.FormatYAML:
		return writeYAML(w, value)
	default:
		return writeTable(w, value)
	}
}

func writeJSON(w io.Writer, value any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", strings.Repeat(" ", constants.JSONIndentSize))

	err := encoder.Encode(value)
	if err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}

	return nil
}

func writeYAML(w io.Writer, value any) error {
	encoder := yaml.NewEncoder(w)

	err := encoder.Encode(value)
	if err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}

	return encoder.Close()
}

// writeTable renders rows as a table with one column per key. A single
// object becomes a Property/Value table and scalars print as is.
func writeTable(w io.Writer, data any) error {
	table := tablewriter.NewWriter(w)

	switch value := data.(type) {
	case nil:
		_, _ = io.WriteString(w, "No rows\n")

		return nil
	case []any:
		if len(value) == 0 {
			_, _ = io.WriteString(w, "No rows\n")

			return nil
		}

		columns := tableColumns(value)

		header := make([]any, len(columns))
		for i, column := range columns {
			header[i] = column
		}

		table.Header(header...)

		for _, item := range value {
			_ = table.Append(tableRow(item, columns))
		}
	case map[string]any:
		table.Header("Property", "Value")

		for _, key := range sortedKeys(value) {
			_ = table.Append([]string{key, formatCell(value[key])})
		}
	default:
		fmt.Fprintln(w, formatCell(value))

		return nil
	}

	err := table.Render()
	if err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}

	return nil
}

// tableColumns is the sorted union of the keys of every object row. Rows
// that are not objects get a single "value" column.
func tableColumns(rows []any) []string {
	seen := make(map[string]bool)

	for _, row := range rows {
		obj, ok := row.(map[string]any)
		if !ok {
			seen["value"] = true

			continue
		}

		for key := range obj {
			seen[key] = true
		}
	}

	return sortedKeys(seen)
}

func tableRow(item any, columns []string) []string {
	row := make([]string, len(columns))

	obj, isObject := item.(map[string]any)

	for i, column := range columns {
		switch {
		case isObject:
			value, ok := obj[column]
			if !ok {
				row[i] = constants.NotAvailable

				continue
			}

			row[i] = formatCell(value)
		case column == "value":
			row[i] = formatCell(item)
		default:
			row[i] = constants.NotAvailable
		}
	}

	return row
}

// formatCell renders a value for a table cell. Nested values are shown as
// compact JSON and long text is truncated.
func formatCell(value any) string {
	var text string

	switch v := value.(type) {
	case nil:
		text = "null"
	case string:
		text = v
	case map[string]any, []any:
		encoded, err := json.Marshal(v)
		if err != nil {
			text = fmt.Sprint(v)
		} else {
			text = string(encoded)
		}
	default:
		text = fmt.Sprint(v)
	}

	if len(text) > constants.StringTruncationLength {
		text = text[:constants.StringTruncationLength-3] + "..."
	}

	return text
}

func formatTotal(total *int) string {
	if total == nil {
		return "*"
	}

	return fmt.Sprint(*total)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	return keys
}
