package commands

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/conduit-lang/rowfilter/compiler/ast"
	filtererrors "github.com/conduit-lang/rowfilter/compiler/errors"
	"github.com/conduit-lang/rowfilter/compiler/ident"
	"github.com/conduit-lang/rowfilter/compiler/parser"
	"github.com/conduit-lang/rowfilter/internal/cli/config"
	"github.com/conduit-lang/rowfilter/internal/cli/ui"
	"github.com/conduit-lang/rowfilter/internal/logging"
	"github.com/conduit-lang/rowfilter/internal/schema"
)

// errFilterRejected is returned after a parse failure has been rendered
var errFilterRejected = errors.New("invalid filter expression")

// environment is what every command needs: configuration, a logger and a
// parser loaded with the schema identifiers
type environment struct {
	cfg     *config.Config
	logger  *zap.Logger
	parser  *parser.Parser
	schema  *schema.Schema
	noColor bool
}

// setup loads configuration, applies flag overrides and builds the parser.
// When requireSchema is false a missing schema leaves the parser without
// identifiers for the caller to fill in.
func (o *rootOptions) setup(cmd *cobra.Command, requireSchema bool) (*environment, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		fmt.Fprint(cmd.ErrOrStderr(), ui.ConfigError(err.Error(), nil, o.noColor))
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("schema") {
		cfg.Schema = o.schemaPath
	}
	if flags.Changed("ignore-case") {
		cfg.IgnoreCase = o.ignoreCase
	}
	if flags.Changed("null-marker") {
		cfg.NullMarker = o.nullMarker
	}
	if flags.Changed("date-layout") {
		cfg.DateLayout = o.dateLayout
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = o.logLevel
	}

	logger, err := logging.New(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}

	env := &environment{cfg: cfg, logger: logger, noColor: o.noColor}

	var ids []ident.Identifier
	path, err := cfg.FindSchema()
	switch {
	case err == nil:
		env.schema, err = schema.Load(path)
		if err != nil {
			return nil, err
		}
		ids = env.schema.Identifiers()
		logger.Debug("schema loaded", zap.String("path", path), zap.Int("columns", len(ids)))
	case requireSchema:
		return nil, err
	}

	env.parser = parser.New(parser.Config{
		IgnoreCase:           cfg.IgnoreCase,
		NullMarker:           cfg.NullMarker,
		DateLayout:           cfg.DateLayout,
		CompareRenderedDates: cfg.CompareRenderedDates,
	}, parser.WithLogger(logger), parser.WithIdentifiers(ids...))

	return env, nil
}

// parse parses expr, applying unqualified leaves to column when it is set.
// Parse failures are rendered with a caret and reported as errFilterRejected.
func (e *environment) parse(cmd *cobra.Command, expr, column string) (ast.Node, error) {
	position := ident.NoPosition
	if column != "" {
		id, ok := e.parser.Identifiers().Resolve(column)
		if !ok {
			ui.WriteError(cmd.ErrOrStderr(), ui.ErrorOptions{
				Context:     "unknown column",
				Problem:     fmt.Sprintf("No column named '%s'.", column),
				Suggestions: ui.FindSimilar(column, e.parser.Identifiers().Names(), nil),
				NoColor:     e.noColor,
			})
			return nil, fmt.Errorf("unknown column %q", column)
		}
		position = id.Position
	}

	node, err := e.parser.ParseColumn(expr, position)
	if err != nil {
		fe, ok := filtererrors.AsFilterError(err)
		if !ok {
			return nil, err
		}
		fmt.Fprint(cmd.ErrOrStderr(), ui.FilterError(fe, e.parser.Identifiers().Names(), e.noColor))
		return nil, errFilterRejected
	}
	return node, nil
}

// openInput opens path for reading; "-" is standard input
func openInput(cmd *cobra.Command, path string) (io.Reader, func(), error) {
	if path == "-" {
		return cmd.InOrStdin(), func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return f, func() { f.Close() }, nil
}
