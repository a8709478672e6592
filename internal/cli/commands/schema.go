package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/rowfilter/compiler/operand"
	"github.com/conduit-lang/rowfilter/internal/cli/ui"
	"github.com/conduit-lang/rowfilter/internal/schema"
	"github.com/conduit-lang/rowfilter/pkg/table"
)

func newSchemaCommand(root *rootOptions) *cobra.Command {
	var (
		asYAML  bool
		fromCSV string
	)

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Show the columns expressions can reference",
		Long: `List the columns declared by the schema with their type, position,
default operand and the operands each one accepts. Every operand also
has a case-insensitive variant written with a trailing @.`,
		Args: cobra.NoArgs,
		Example: `  rowfilter schema
  rowfilter schema --from-csv people.csv > schema.yml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if fromCSV != "" {
				return schemaFromCSV(cmd, fromCSV)
			}

			env, err := root.setup(cmd, true)
			if err != nil {
				return err
			}

			if asYAML {
				data, err := env.schema.Marshal()
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}

			operands := env.parser.Operands()
			out := ui.NewTable(cmd.OutOrStdout(),
				[]string{"Column", "Type", "Position", "Default", "Operands"},
				&ui.TableOptions{NoColor: env.noColor})

			for _, id := range env.parser.Identifiers().All() {
				var accepted []string
				for _, o := range operand.All() {
					if !o.IgnoreCase && operands.AppliesTo(o, id.Type) {
						accepted = append(accepted, o.String())
					}
				}
				typeName := id.Type.String()
				if len(id.Type.Values) > 0 {
					typeName += "(" + strings.Join(id.Type.Values, ", ") + ")"
				}
				out.AddRow(id.Name, typeName, fmt.Sprint(id.Position),
					operands.Default(id.Type).String(), strings.Join(accepted, " "))
			}
			out.Render()
			return nil
		},
	}

	cmd.Flags().BoolVar(&asYAML, "yaml", false, "Print the schema as YAML")
	cmd.Flags().StringVar(&fromCSV, "from-csv", "", "Print a starter schema declaring one string column per CSV header")

	return cmd
}

func schemaFromCSV(cmd *cobra.Command, path string) error {
	in, closeInput, err := openInput(cmd, path)
	if err != nil {
		return err
	}
	defer closeInput()

	rows, err := table.ReadCSV(in, nil, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	data, err := schema.FromIdentifiers(rows.Columns()).Marshal()
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}
