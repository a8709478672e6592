package commands

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	filtererrors "github.com/conduit-lang/rowfilter/compiler/errors"
	"github.com/conduit-lang/rowfilter/compiler/ident"
	"github.com/conduit-lang/rowfilter/internal/cli/ui"
)

type checkOptions struct {
	column string
	json   bool
}

func newCheckCommand(root *rootOptions) *cobra.Command {
	opts := &checkOptions{}

	cmd := &cobra.Command{
		Use:   "check EXPRESSION",
		Short: "Validate a filter expression",
		Long: `Parse a filter expression against the schema and print its canonical,
fully parenthesised form. Invalid expressions are reported with a caret
under the offending text and a non-zero exit status.`,
		Example: `  rowfilter check 'age > 30 & country = Italy'
  rowfilter check --column name 'sm*'
  rowfilter check --json 'salary >= bonus'`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, root, opts, strings.Join(args, " "))
		},
	}

	cmd.Flags().StringVarP(&opts.column, "column", "c", "", "Column that leaves without an identifier apply to")
	cmd.RegisterFlagCompletionFunc("column", completeColumns(root))
	cmd.Flags().BoolVar(&opts.json, "json", false, "Print the result as JSON")

	return cmd
}

type checkResult struct {
	Valid bool                      `json:"valid"`
	Tree  string                    `json:"tree,omitempty"`
	Error *filtererrors.FilterError `json:"error,omitempty"`
}

func runCheck(cmd *cobra.Command, root *rootOptions, opts *checkOptions, expr string) error {
	env, err := root.setup(cmd, true)
	if err != nil {
		return err
	}

	if opts.json {
		return checkJSON(cmd, env, opts, expr)
	}

	node, err := env.parse(cmd, expr, opts.column)
	if err != nil {
		return err
	}

	ui.WriteSuccess(cmd.OutOrStdout(), "valid", env.noColor)
	fmt.Fprintln(cmd.OutOrStdout(), node.String())
	return nil
}

func checkJSON(cmd *cobra.Command, env *environment, opts *checkOptions, expr string) error {
	position := ident.NoPosition
	if opts.column != "" {
		id, ok := env.parser.Identifiers().Resolve(opts.column)
		if !ok {
			return fmt.Errorf("unknown column %q", opts.column)
		}
		position = id.Position
	}

	result := checkResult{Valid: true}
	node, err := env.parser.ParseColumn(expr, position)
	if err != nil {
		fe, ok := filtererrors.AsFilterError(err)
		if !ok {
			return err
		}
		result = checkResult{Valid: false, Error: fe}
	} else {
		result.Tree = node.String()
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(result); err != nil {
		return err
	}
	if !result.Valid {
		return errFilterRejected
	}
	return nil
}
