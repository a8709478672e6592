package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
	"github.com/spf13/cobra"

	filtererrors "github.com/conduit-lang/rowfilter/compiler/errors"
	"github.com/conduit-lang/rowfilter/compiler/ident"
	"github.com/conduit-lang/rowfilter/compiler/parser"
	"github.com/conduit-lang/rowfilter/internal/cli/ui"
	"github.com/conduit-lang/rowfilter/pkg/table"
)

type interactiveOptions struct {
	csvPath string
	column  string
	limit   int
}

func newInteractiveCommand(root *rootOptions) *cobra.Command {
	opts := &interactiveOptions{}

	cmd := &cobra.Command{
		Use:     "interactive",
		Aliases: []string{"repl"},
		Short:   "Write filter expressions with live validation",
		Long: `Prompt for filter expressions, rejecting invalid ones as you type them.
With --csv every accepted expression is applied to the file and the first
matching rows are shown. An empty expression or Ctrl+C quits.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInteractive(cmd, root, opts)
		},
	}

	cmd.Flags().StringVar(&opts.csvPath, "csv", "", "CSV file to filter")
	cmd.Flags().StringVarP(&opts.column, "column", "c", "", "Column that leaves without an identifier apply to")
	cmd.RegisterFlagCompletionFunc("column", completeColumns(root))
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 20, "Rows shown per expression (0 shows all)")

	return cmd
}

func runInteractive(cmd *cobra.Command, root *rootOptions, opts *interactiveOptions) error {
	env, err := root.setup(cmd, opts.csvPath == "")
	if err != nil {
		return err
	}

	var rows *table.Table
	if opts.csvPath != "" {
		in, closeInput, err := openInput(cmd, opts.csvPath)
		if err != nil {
			return err
		}
		registry := env.parser.Identifiers()
		if env.schema == nil {
			registry = nil
		}
		rows, err = table.ReadCSV(in, registry, env.parser.Types())
		closeInput()
		if err != nil {
			return fmt.Errorf("%s: %w", opts.csvPath, err)
		}
		if env.schema == nil {
			env.parser.SetIdentifiers(rows.Columns())
		}
	}

	position := ident.NoPosition
	if opts.column != "" {
		id, ok := env.parser.Identifiers().Resolve(opts.column)
		if !ok {
			return fmt.Errorf("unknown column %q", opts.column)
		}
		position = id.Position
	}

	out := cmd.OutOrStdout()
	ui.Header(out, "Columns: "+strings.Join(env.parser.Identifiers().Names(), ", "), env.noColor)

	for {
		var expr string
		prompt := &survey.Input{
			Message: "Filter:",
			Help:    "Compare columns with = != > < >= <= ~ !~ (add @ to ignore case), combine with & and |",
		}
		err := survey.AskOne(prompt, &expr, survey.WithValidator(filterValidator(env.parser, position)))
		if errors.Is(err, terminal.InterruptErr) {
			return nil
		}
		if err != nil {
			return err
		}
		if strings.TrimSpace(expr) == "" {
			return nil
		}

		node, err := env.parser.ParseColumn(expr, position)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, node.String())

		if rows == nil {
			continue
		}
		matches := rows.Filter(node)
		ui.WriteSuccess(out, fmt.Sprintf("%d of %d rows match", len(matches), rows.Len()), env.noColor)
		if opts.limit > 0 && len(matches) > opts.limit {
			matches = matches[:opts.limit]
		}
		if err := writeTable(out, rows.Subset(matches), formatTable, env.noColor); err != nil {
			return err
		}
	}
}

// filterValidator rejects answers that do not parse. Empty answers pass so
// the prompt can be left.
func filterValidator(p *parser.Parser, position int) survey.Validator {
	return func(ans interface{}) error {
		expr, ok := ans.(string)
		if !ok {
			return fmt.Errorf("expected a string answer, got %T", ans)
		}
		if strings.TrimSpace(expr) == "" {
			return nil
		}
		if _, err := p.ParseColumn(expr, position); err != nil {
			if fe, ok := filtererrors.AsFilterError(err); ok {
				return fmt.Errorf("%s at offset %d: %s", fe.Code, fe.Offset, fe.Message)
			}
			return err
		}
		return nil
	}
}
