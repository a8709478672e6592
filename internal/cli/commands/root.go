package commands

import (
	"fmt"
	"runtime"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// Version information - set at build time
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
	GoVersion = "unknown"
)

// rootOptions holds the persistent flags shared by every subcommand
type rootOptions struct {
	configPath string
	schemaPath string
	ignoreCase bool
	nullMarker string
	dateLayout string
	logLevel   string
	noColor    bool
}

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "rowfilter",
		Short: "Filter tabular data with a compact expression language",
		Long: color.CyanString(`rowfilter - filter expressions for tabular data

Expressions compare named columns against values and combine the
comparisons with & and |:

  age > 30 & country = Italy
  name ~@ sm* | (salary >= bonus & active = true)

Features:
  • Typed columns declared in a YAML schema
  • Wildcards, case-insensitive operands and null checks
  • CSV and SQL row sources, with WHERE clause pushdown
  • HTTP and WebSocket API for headless validation and filtering`),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.noColor {
				color.NoColor = true
			}
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "Config file (default ./rowfilter.yml)")
	flags.StringVarP(&opts.schemaPath, "schema", "s", "", "Schema file declaring the columns")
	flags.BoolVarP(&opts.ignoreCase, "ignore-case", "i", false, "Make the default operand for string columns case-insensitive")
	flags.StringVar(&opts.nullMarker, "null-marker", "", "Value text that turns a comparison into a null check")
	flags.StringVar(&opts.dateLayout, "date-layout", "", "Go time layout used to read dates")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flags.BoolVar(&opts.noColor, "no-color", false, "Disable colored output")

	// Add subcommands
	rootCmd.AddCommand(NewVersionCommand())
	rootCmd.AddCommand(newCheckCommand(opts))
	rootCmd.AddCommand(newEvalCommand(opts))
	rootCmd.AddCommand(newQueryCommand(opts))
	rootCmd.AddCommand(newSchemaCommand(opts))
	rootCmd.AddCommand(newServeCommand(opts))
	rootCmd.AddCommand(newInteractiveCommand(opts))
	rootCmd.AddCommand(newAuthCommand(opts))
	rootCmd.AddCommand(NewCompletionCommand())

	return rootCmd
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  "Display the rowfilter version, Git commit, build date, and Go version",
		Run: func(cmd *cobra.Command, args []string) {
			// Set GoVersion to actual runtime if not set at build time
			goVer := GoVersion
			if goVer == "unknown" {
				goVer = runtime.Version()
			}

			out := cmd.OutOrStdout()
			titleColor := color.New(color.FgCyan, color.Bold)

			titleColor.Fprint(out, "rowfilter version: ")
			fmt.Fprintln(out, Version)

			titleColor.Fprint(out, "Git commit: ")
			fmt.Fprintln(out, GitCommit)

			titleColor.Fprint(out, "Build date: ")
			fmt.Fprintln(out, BuildDate)

			titleColor.Fprint(out, "Go version: ")
			fmt.Fprintln(out, goVer)
		},
	}
}

// Execute runs the root command
func Execute() error {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		errorColor := color.New(color.FgRed, color.Bold)
		errorColor.Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", err)
		return err
	}
	return nil
}
