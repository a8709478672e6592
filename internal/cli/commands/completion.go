package commands

import (
	"github.com/spf13/cobra"
)

// NewCompletionCommand creates the completion command for shell completions
func NewCompletionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion script",
		Long: `Generate shell completion script for rowfilter.

Completions cover subcommands, flags and, for --column, the column names
of the configured schema.

Bash:

  $ source <(rowfilter completion bash)

Zsh:

  $ rowfilter completion zsh > "${fpath[1]}/_rowfilter"

Fish:

  $ rowfilter completion fish | source

PowerShell:

  PS> rowfilter completion powershell | Out-String | Invoke-Expression
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := cmd.Root()
			out := cmd.OutOrStdout()

			switch args[0] {
			case "bash":
				return root.GenBashCompletion(out)
			case "zsh":
				return root.GenZshCompletion(out)
			case "fish":
				return root.GenFishCompletion(out, true)
			case "powershell":
				return root.GenPowerShellCompletionWithDesc(out)
			}
			return nil
		},
	}

	return cmd
}

// completeColumns offers the schema column names for --column
func completeColumns(root *rootOptions) func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		env, err := root.setup(cmd, true)
		if err != nil {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		return env.parser.Identifiers().Names(), cobra.ShellCompDirectiveNoFileComp
	}
}
