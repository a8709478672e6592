package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/conduit-lang/rowfilter/internal/cli/config"
	"github.com/conduit-lang/rowfilter/internal/cli/ui"
	"github.com/conduit-lang/rowfilter/internal/web/api"
	"github.com/conduit-lang/rowfilter/internal/web/auth"
	"github.com/conduit-lang/rowfilter/internal/web/profiling"
	"github.com/conduit-lang/rowfilter/internal/web/ratelimit"
	"github.com/conduit-lang/rowfilter/internal/web/server"
	"github.com/conduit-lang/rowfilter/internal/web/websocket"
)

func newServeCommand(root *rootOptions) *cobra.Command {
	var address string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the filter HTTP API",
		Long: `Start an HTTP server exposing the schema and expression validation and
row filtering:

  GET  /healthz
  GET  /v1/schema
  POST /v1/validate  {"expression": "...", "column": "..."}
  POST /v1/filter    {"expression": "...", "column": "...", "rows": [...]}
  GET  /v1/stream    WebSocket, ?expression=...&column=...

When server.auth is configured /v1 requires a bearer token (see
"rowfilter auth token") or an X-API-Key header. server.rate_limit limits
requests per caller, in memory or shared through Redis.

The server shuts down gracefully on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := root.setup(cmd, true)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("address") {
				env.cfg.Server.Address = address
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			apiConfig, cleanup, err := buildAPIConfig(ctx, env.cfg.Server, env.logger)
			if err != nil {
				return err
			}
			defer cleanup()

			filterAPI := api.New(env.parser, apiConfig, env.logger)
			defer filterAPI.Close()

			serverConfig := server.DefaultConfig(filterAPI.Router())
			serverConfig.Address = env.cfg.Server.Address
			if limit := env.cfg.Server.RequestTimeout; limit > 0 && serverConfig.WriteTimeout <= limit {
				serverConfig.WriteTimeout = limit + serverConfig.ReadHeaderTimeout
			}

			srv, err := server.New(serverConfig, env.logger)
			if err != nil {
				return err
			}
			if err := srv.Listen(); err != nil {
				return err
			}

			ui.WriteSuccess(cmd.OutOrStdout(), fmt.Sprintf("Listening on http://%s", srv.Addr()), env.noColor)
			return srv.Run(ctx)
		},
	}

	cmd.Flags().StringVarP(&address, "address", "a", "", "Listen address (overrides server.address)")

	return cmd
}

// buildAPIConfig turns the server configuration into API settings. The
// returned cleanup releases the rate limiter.
func buildAPIConfig(ctx context.Context, cfg config.ServerConfig, logger *zap.Logger) (api.Config, func(), error) {
	apiConfig := api.Config{
		MaxBodyBytes:   cfg.MaxBodyBytes,
		MaxRows:        cfg.MaxRows,
		RequestTimeout: cfg.RequestTimeout,
		Workers:        cfg.Workers,
		Stream:         websocket.DefaultConfig(),
	}
	if cfg.Profiling {
		apiConfig.Profiling = profiling.DefaultConfig()
	}
	if len(cfg.AllowedOrigins) > 0 {
		apiConfig.Stream.CheckOrigin = allowOrigins(cfg.AllowedOrigins)
	}

	var issuer *auth.Issuer
	if cfg.Auth.JWTSecret != "" {
		var err error
		if issuer, err = auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL); err != nil {
			return api.Config{}, nil, err
		}
	}
	authenticator, err := auth.NewAuthenticator(issuer, cfg.Auth.APIKeys)
	if err != nil {
		return api.Config{}, nil, fmt.Errorf("server.auth: %w", err)
	}
	if authenticator.Enabled() {
		apiConfig.Auth = authenticator
	} else {
		logger.Warn("API authentication disabled")
	}

	cleanup := func() {}
	rl := cfg.RateLimit
	switch {
	case rl.Requests == 0:
	case rl.RedisURL != "":
		limiter, err := ratelimit.NewRedisFromURL(ctx, rl.RedisURL, rl.Requests, rl.Window)
		if err != nil {
			return api.Config{}, nil, err
		}
		apiConfig.Limiter = limiter
		cleanup = func() { limiter.Close() }
		logger.Info("rate limiting through redis", zap.Int("requests", rl.Requests), zap.Duration("window", rl.Window))
	default:
		limiter, err := ratelimit.NewTokenBucket(rl.Requests, rl.Window)
		if err != nil {
			return api.Config{}, nil, err
		}
		apiConfig.Limiter = limiter
		cleanup = func() { limiter.Close() }
		logger.Info("rate limiting in memory", zap.Int("requests", rl.Requests), zap.Duration("window", rl.Window))
	}

	return apiConfig, cleanup, nil
}

func allowOrigins(origins []string) func(r *http.Request) bool {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[strings.TrimSuffix(strings.ToLower(o), "/")] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || allowed[strings.ToLower(origin)]
	}
}
