package commands

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/fivetwenty-io/postgrestx/internal/constants"
	"github.com/fivetwenty-io/postgrestx/pkg/postgrest"
	"github.com/fivetwenty-io/postgrestx/pkg/query"
	"github.com/spf13/cobra"
)

// queryFlags are the read-shaping flags shared by the row commands.
type queryFlags struct {
	selectColumns string
	filters       []string
	order         []string
	limit         int
	offset        int
	rangeWindow   string
	count         string
}

func (f *queryFlags) register(cmd *cobra.Command, reads bool) {
	cmd.Flags().StringVar(&f.selectColumns, "select", "", "columns to return, e.g. \"id,name,tasks(title)\"")
	cmd.Flags().StringArrayVarP(&f.filters, "filter", "f", nil, "filter as column=[not.]op.value (repeatable)")

	if !reads {
		return
	}

	cmd.Flags().StringArrayVar(&f.order, "order", nil, "order as column[.asc|.desc][.nullsfirst|.nullslast] (repeatable)")
	cmd.Flags().IntVar(&f.limit, "limit", 0, "maximum number of rows")
	cmd.Flags().IntVar(&f.offset, "offset", 0, "number of rows to skip")
	cmd.Flags().StringVar(&f.rangeWindow, "range", "", "row window as FROM-TO or FROM-")
	cmd.Flags().StringVar(&f.count, "count", "", "count strategy (exact, planned, estimated)")
}

// options builds query options from the flags that were set.
func (f *queryFlags) options(cmd *cobra.Command) (*postgrest.QueryOptions, error) {
	filters, err := parseFilters(f.filters)
	if err != nil {
		return nil, err
	}

	opts := postgrest.NewQueryOptions().WithFilters(filters...)

	if f.selectColumns != "" {
		opts.WithSelect(f.selectColumns)
	}

	if len(f.order) > 0 {
		opts.WithOrder(f.order...)
	}

	if cmd.Flags().Changed("limit") {
		opts.WithLimit(f.limit)
	}

	if cmd.Flags().Changed("offset") {
		opts.WithOffset(f.offset)
	}

	if f.rangeWindow != "" {
		window, err := parseRange(f.rangeWindow)
		if err != nil {
			return nil, err
		}

		opts.WithRange(window)
	}

	if f.count != "" {
		opts.WithCount(postgrest.CountStrategy(f.count))
	}

	return opts, nil
}

// bodyFlags are the request body flags of the write commands.
type bodyFlags struct {
	data    string
	file    string
	returns string
	columns string
}

func (f *bodyFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.data, "data", "d", "", "request body as JSON or YAML")
	cmd.Flags().StringVar(&f.file, "file", "", "file containing the request body")
	cmd.Flags().StringVar(&f.returns, "return", string(postgrest.ReturnRepresentation),
		"what the server returns (representation, minimal, headers-only)")
	cmd.Flags().StringVar(&f.columns, "columns", "", "restrict the body keys that are written")
}

func (f *bodyFlags) writeOptions(opts *postgrest.QueryOptions) *postgrest.WriteOptions {
	if f.returns != "" {
		opts.WithPrefer(&postgrest.PreferenceOptions{Return: postgrest.ReturnPreference(f.returns)})
	}

	return &postgrest.WriteOptions{QueryOptions: *opts, Columns: f.columns}
}

// NewSelectCommand creates the select command.
func NewSelectCommand() *cobra.Command {
	var (
		flags    queryFlags
		all      bool
		pageSize int
	)

	cmd := &cobra.Command{
		Use:   "select TABLE",
		Short: "Read rows from a table or view",
		Long: `Read rows from a table or view.

Filters use the PostgREST syntax without the leading "=":

  pgrestx select people -f age=gte.18 -f name=like.A* --order name --limit 10

With --all the rows are fetched page by page using the Range header,
starting at --offset. --all cannot be combined with --limit or --range.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := flags.options(cmd)
			if err != nil {
				return err
			}

			if all {
				if cmd.Flags().Changed("limit") || cmd.Flags().Changed("range") {
					return ErrAllWithWindow
				}

				return selectAll(cmd, args[0], opts, pageSize)
			}

			client, err := newClient()
			if err != nil {
				return err
			}

			result, err := client.Select(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}

			return printResult(cmd.OutOrStdout(), result)
		},
	}

	flags.register(cmd, true)
	cmd.Flags().BoolVar(&all, "all", false, "fetch every page")
	cmd.Flags().IntVar(&pageSize, "page-size", 0, "rows per page with --all (default 25)")

	return cmd
}

func selectAll(cmd *cobra.Command, table string, opts *postgrest.QueryOptions, pageSize int) error {
	qc, release, err := newQueryClient()
	if err != nil {
		return err
	}
	defer release()

	offset := 0
	if opts.Offset != nil {
		offset = *opts.Offset
	}

	pager := qc.Pager(table, &query.ListArgs{
		Select:  opts.Select,
		Filters: opts.Filters,
		Order:   opts.Order,
		Count:   opts.Count,
	}, pageSize, offset)

	rows := []any{}

	for pager.HasNext() {
		page, err := pager.Next(cmd.Context())
		if err != nil {
			return err
		}

		items, ok := page.Items.([]any)
		if !ok {
			break
		}

		rows = append(rows, items...)
	}

	return printValue(cmd.OutOrStdout(), rows)
}

// NewGetCommand creates the get command.
func NewGetCommand() *cobra.Command {
	var (
		selectColumns string
		pkColumn      string
	)

	cmd := &cobra.Command{
		Use:   "get TABLE KEY",
		Short: "Read a single row by primary key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			qc, release, err := newQueryClient()
			if err != nil {
				return err
			}
			defer release()

			row, err := qc.Item(cmd.Context(), args[0], args[1], &query.ItemArgs{
				Select:   selectColumns,
				PKColumn: pkColumn,
			})
			if err != nil {
				return err
			}

			if row == nil {
				return fmt.Errorf("%w: %s %s=%s", ErrRowNotFound, args[0], primaryKeyName(pkColumn), args[1])
			}

			return printValue(cmd.OutOrStdout(), row)
		},
	}

	cmd.Flags().StringVar(&selectColumns, "select", "", "columns to return")
	cmd.Flags().StringVar(&pkColumn, "pk", "", "primary key column (default id)")

	return cmd
}

func primaryKeyName(column string) string {
	if column == "" {
		return constants.DefaultPrimaryKeyColumn
	}

	return column
}

// NewInsertCommand creates the insert command.
func NewInsertCommand() *cobra.Command {
	var (
		flags queryFlags
		body  bodyFlags
	)

	cmd := &cobra.Command{
		Use:   "insert TABLE",
		Short: "Insert rows into a table",
		Long: `Insert one row (an object) or many (an array) into a table.

  pgrestx insert people -d '{"name": "Ada", "age": 36}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, opts, err := writeInput(cmd, &flags, &body)
			if err != nil {
				return err
			}

			client, err := newClient()
			if err != nil {
				return err
			}

			result, err := client.Insert(cmd.Context(), args[0], payload, opts)
			if err != nil {
				return err
			}

			return printResult(cmd.OutOrStdout(), result)
		},
	}

	flags.register(cmd, false)
	body.register(cmd)

	return cmd
}

// NewUpdateCommand creates the update command.
func NewUpdateCommand() *cobra.Command {
	var (
		flags queryFlags
		body  bodyFlags
	)

	cmd := &cobra.Command{
		Use:   "update TABLE",
		Short: "Update the rows matched by filters",
		Long: `Patch the rows matched by the filters. At least one filter is required.

  pgrestx update people -f id=eq.1 -d '{"age": 37}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(flags.filters) == 0 {
				return ErrFilterRequired
			}

			payload, opts, err := writeInput(cmd, &flags, &body)
			if err != nil {
				return err
			}

			client, err := newClient()
			if err != nil {
				return err
			}

			result, err := client.Update(cmd.Context(), args[0], payload, opts)
			if err != nil {
				return err
			}

			return printResult(cmd.OutOrStdout(), result)
		},
	}

	flags.register(cmd, false)
	body.register(cmd)

	return cmd
}

// NewUpsertCommand creates the upsert command.
func NewUpsertCommand() *cobra.Command {
	var (
		flags      queryFlags
		body       bodyFlags
		onConflict string
		ignore     bool
	)

	cmd := &cobra.Command{
		Use:   "upsert TABLE",
		Short: "Insert rows, merging duplicates",
		Long: `Insert rows and resolve primary key or --on-conflict collisions by
merging them, or by skipping them with --ignore-duplicates.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, opts, err := writeInput(cmd, &flags, &body)
			if err != nil {
				return err
			}

			opts.OnConflict = onConflict

			if ignore {
				if opts.Prefer == nil {
					opts.Prefer = &postgrest.PreferenceOptions{}
				}

				opts.Prefer.Resolution = postgrest.ResolutionIgnoreDuplicates
			}

			client, err := newClient()
			if err != nil {
				return err
			}

			result, err := client.Upsert(cmd.Context(), args[0], payload, opts)
			if err != nil {
				return err
			}

			return printResult(cmd.OutOrStdout(), result)
		},
	}

	flags.register(cmd, false)
	body.register(cmd)
	cmd.Flags().StringVar(&onConflict, "on-conflict", "", "conflict target columns")
	cmd.Flags().BoolVar(&ignore, "ignore-duplicates", false, "skip conflicting rows instead of merging")

	return cmd
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand() *cobra.Command {
	var (
		flags   queryFlags
		returns string
	)

	cmd := &cobra.Command{
		Use:   "delete TABLE",
		Short: "Delete the rows matched by filters",
		Long: `Delete the rows matched by the filters. At least one filter is required.

  pgrestx delete people -f id=eq.1`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(flags.filters) == 0 {
				return ErrFilterRequired
			}

			opts, err := flags.options(cmd)
			if err != nil {
				return err
			}

			if returns != "" {
				opts.WithPrefer(&postgrest.PreferenceOptions{Return: postgrest.ReturnPreference(returns)})
			}

			client, err := newClient()
			if err != nil {
				return err
			}

			result, err := client.Delete(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}

			return printResult(cmd.OutOrStdout(), result)
		},
	}

	flags.register(cmd, false)
	cmd.Flags().StringVar(&returns, "return", string(postgrest.ReturnRepresentation),
		"what the server returns (representation, minimal, headers-only)")

	return cmd
}

// NewRPCCommand creates the rpc command.
func NewRPCCommand() *cobra.Command {
	var (
		flags   queryFlags
		rawArgs []string
		data    string
		get     bool
	)

	cmd := &cobra.Command{
		Use:   "rpc FUNCTION",
		Short: "Call a database function",
		Long: `Call a database function exposed under /rpc/.

Arguments come from repeated --arg KEY=VALUE flags or a --data object.
Without arguments the call uses GET, otherwise POST unless --get is set.

  pgrestx rpc add_them --arg a=1 --arg b=2`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fnArgs, err := rpcArguments(rawArgs, data)
			if err != nil {
				return err
			}

			queryOpts, err := flags.options(cmd)
			if err != nil {
				return err
			}

			opts := &postgrest.RPCOptions{QueryOptions: *queryOpts}
			if get {
				opts.Method = http.MethodGet
			}

			client, err := newClient()
			if err != nil {
				return err
			}

			result, err := client.RPC(cmd.Context(), args[0], fnArgs, opts)
			if err != nil {
				return err
			}

			return printResult(cmd.OutOrStdout(), result)
		},
	}

	flags.register(cmd, true)
	cmd.Flags().StringArrayVar(&rawArgs, "arg", nil, "function argument as KEY=VALUE (repeatable)")
	cmd.Flags().StringVarP(&data, "data", "d", "", "function arguments as a JSON or YAML object")
	cmd.Flags().BoolVar(&get, "get", false, "call with GET and pass arguments in the query string")

	return cmd
}

// rpcArguments merges --data and --arg, with --arg taking precedence.
func rpcArguments(pairs []string, data string) (map[string]any, error) {
	args, err := parseArgs(pairs)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(data) == "" {
		return args, nil
	}

	body, err := readBody(data, "")
	if err != nil {
		return nil, err
	}

	obj, ok := body.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: --data must be an object", ErrInvalidArgument)
	}

	for key, value := range args {
		obj[key] = value
	}

	return obj, nil
}

// writeInput reads the body and builds write options for insert, update
// and upsert.
func writeInput(cmd *cobra.Command, flags *queryFlags, body *bodyFlags) (any, *postgrest.WriteOptions, error) {
	payload, err := readBody(body.data, body.file)
	if err != nil {
		return nil, nil, err
	}

	opts, err := flags.options(cmd)
	if err != nil {
		return nil, nil, err
	}

	return payload, body.writeOptions(opts), nil
}
