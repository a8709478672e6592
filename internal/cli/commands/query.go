package commands

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/conduit-lang/rowfilter/internal/cli/ui"
	"github.com/conduit-lang/rowfilter/internal/sqlfilter"
	"github.com/conduit-lang/rowfilter/pkg/table"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver (pgx)
	_ "github.com/lib/pq"              // PostgreSQL driver (postgres)
	_ "github.com/mattn/go-sqlite3"    // SQLite driver
)

type queryOptions struct {
	driver  string
	dsn     string
	table   string
	column  string
	format  string
	explain bool
}

func newQueryCommand(root *rootOptions) *cobra.Command {
	opts := &queryOptions{}

	cmd := &cobra.Command{
		Use:   "query EXPRESSION",
		Short: "Filter the rows of a database table",
		Long: `Translate the expression into a WHERE clause, run it against a database
table and print the matching rows.

Parts of the expression SQL cannot evaluate exactly like rowfilter (custom
types, enum ordering) are left out of the WHERE clause; every returned row
is checked against the full expression before it is printed.

Supported drivers: sqlite3, pgx, postgres.`,
		Example: `  rowfilter query --driver sqlite3 --dsn people.db --table people 'age > 30'
  rowfilter query --explain 'name ~@ sm* | country = Italy'`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, root, opts, strings.Join(args, " "))
		},
	}

	cmd.Flags().StringVar(&opts.driver, "driver", "", "database/sql driver (overrides database.driver)")
	cmd.Flags().StringVar(&opts.dsn, "dsn", "", "Data source name (overrides database.dsn)")
	cmd.Flags().StringVarP(&opts.table, "table", "t", "", "Table to query (overrides database.table and the schema table)")
	cmd.Flags().StringVarP(&opts.column, "column", "c", "", "Column that leaves without an identifier apply to")
	cmd.RegisterFlagCompletionFunc("column", completeColumns(root))
	cmd.Flags().StringVarP(&opts.format, "format", "f", formatTable, "Output format: table, csv or json")
	cmd.Flags().BoolVar(&opts.explain, "explain", false, "Print the generated SQL instead of running it")

	return cmd
}

func runQuery(cmd *cobra.Command, root *rootOptions, opts *queryOptions, expr string) error {
	if err := validFormat(opts.format); err != nil {
		return err
	}

	env, err := root.setup(cmd, true)
	if err != nil {
		return err
	}

	driver := firstNonEmpty(opts.driver, env.cfg.Database.Driver)
	dsn := firstNonEmpty(opts.dsn, env.cfg.Database.DSN)
	tableName := firstNonEmpty(opts.table, env.cfg.Database.Table, env.schema.Table)
	if tableName == "" {
		return fmt.Errorf("no table to query (pass --table, or set database.table or the schema table)")
	}

	dialect, err := sqlfilter.DialectFor(driver)
	if err != nil {
		return err
	}

	node, err := env.parse(cmd, expr, opts.column)
	if err != nil {
		return err
	}

	columns := env.parser.Identifiers().All()
	translator := sqlfilter.New(dialect, env.parser.Types())
	query, args, exact, err := translator.Select(tableName, columns, node)
	if err != nil {
		return err
	}

	if opts.explain {
		out := ui.NewKeyValueTable(cmd.OutOrStdout(), env.noColor)
		out.AddRow("dialect", dialect.String())
		out.AddRow("query", query)
		out.AddRow("args", fmt.Sprint(args))
		out.AddRow("exact", fmt.Sprint(exact))
		out.Render()
		return nil
	}

	if dsn == "" {
		return fmt.Errorf("no data source configured (pass --dsn or set database.dsn)")
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	env.logger.Debug("running query",
		zap.String("query", query),
		zap.Any("args", args),
		zap.Bool("exact", exact))

	rows, err := table.QuerySQL(cmd.Context(), db, query, args, columns, env.parser.Types())
	if err != nil {
		return err
	}

	// A partial WHERE clause may return rows the tree rejects; it never
	// excludes rows the tree accepts
	matched := rows.Select(node)
	if dropped := rows.Len() - matched.Len(); dropped > 0 {
		env.logger.Info("rows rejected after pushdown", zap.Int("rows", dropped))
	}

	if err := writeTable(cmd.OutOrStdout(), matched, opts.format, env.noColor); err != nil {
		return err
	}
	if opts.format == formatTable && matched.Len() == 0 {
		fmt.Fprint(cmd.ErrOrStderr(), ui.Info("no rows matched", env.noColor))
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
