package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/conduit-lang/rowfilter/internal/cli/ui"
	"github.com/conduit-lang/rowfilter/pkg/table"
)

type evalOptions struct {
	csvPath string
	column  string
	format  string
	count   bool
	workers int
}

func newEvalCommand(root *rootOptions) *cobra.Command {
	opts := &evalOptions{}

	cmd := &cobra.Command{
		Use:   "eval EXPRESSION",
		Short: "Filter the rows of a CSV file",
		Long: `Read a CSV file, keep the rows the expression accepts and print them.

Header names resolve against the schema the way expression identifiers do.
Without a schema every column is read as a string named after its header.`,
		Example: `  rowfilter eval --csv people.csv 'age > 30 & country = Italy'
  cat people.csv | rowfilter eval --csv - --format csv 'name ~@ sm*'
  rowfilter eval --csv people.csv --count 'active = true'`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEval(cmd, root, opts, strings.Join(args, " "))
		},
	}

	cmd.Flags().StringVar(&opts.csvPath, "csv", "", "CSV file to filter (- for standard input)")
	cmd.Flags().StringVarP(&opts.column, "column", "c", "", "Column that leaves without an identifier apply to")
	cmd.RegisterFlagCompletionFunc("column", completeColumns(root))
	cmd.Flags().StringVarP(&opts.format, "format", "f", formatTable, "Output format: table, csv or json")
	cmd.Flags().BoolVar(&opts.count, "count", false, "Print only the number of matching rows")
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "Goroutines evaluating rows (0 uses all CPUs)")
	cmd.MarkFlagRequired("csv")

	return cmd
}

func runEval(cmd *cobra.Command, root *rootOptions, opts *evalOptions, expr string) error {
	if err := validFormat(opts.format); err != nil {
		return err
	}

	env, err := root.setup(cmd, false)
	if err != nil {
		return err
	}

	in, closeInput, err := openInput(cmd, opts.csvPath)
	if err != nil {
		return err
	}
	defer closeInput()

	registry := env.parser.Identifiers()
	if env.schema == nil {
		registry = nil
	}
	rows, err := table.ReadCSV(in, registry, env.parser.Types())
	if err != nil {
		return fmt.Errorf("%s: %w", opts.csvPath, err)
	}
	if env.schema == nil {
		env.parser.SetIdentifiers(rows.Columns())
	}

	node, err := env.parse(cmd, expr, opts.column)
	if err != nil {
		return err
	}

	matches, err := rows.FilterConcurrent(cmd.Context(), node, opts.workers)
	if err != nil {
		return err
	}
	env.logger.Debug("rows filtered",
		zap.String("tree", node.String()),
		zap.Int("rows", rows.Len()),
		zap.Int("matches", len(matches)))

	if opts.count {
		fmt.Fprintln(cmd.OutOrStdout(), len(matches))
		return nil
	}

	selected := rows.Subset(matches)
	if err := writeTable(cmd.OutOrStdout(), selected, opts.format, env.noColor); err != nil {
		return err
	}
	if opts.format == formatTable && len(matches) == 0 {
		fmt.Fprint(cmd.ErrOrStderr(), ui.Info("no rows matched", env.noColor))
	}
	return nil
}
