package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/rowfilter/internal/cli/ui"
	"github.com/conduit-lang/rowfilter/internal/web/auth"
)

func newAuthCommand(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage API credentials",
		Long: `Issue bearer tokens and API keys for the HTTP API.

Tokens are signed with server.auth.jwt_secret. API keys are stored in
server.auth.api_keys as bcrypt hashes; the plain key is shown once.`,
	}

	cmd.AddCommand(newAuthTokenCommand(root))
	cmd.AddCommand(newAuthKeyCommand(root))

	return cmd
}

func newAuthTokenCommand(root *rootOptions) *cobra.Command {
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token <subject>",
		Short: "Issue a bearer token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := root.setup(cmd, false)
			if err != nil {
				return err
			}

			secret := env.cfg.Server.Auth.JWTSecret
			if secret == "" {
				fmt.Fprint(cmd.ErrOrStderr(), ui.ConfigError("server.auth.jwt_secret is not set",
					[]string{"Set it in rowfilter.yml or ROWFILTER_SERVER_AUTH_JWT_SECRET"}, env.noColor))
				return errors.New("no token secret configured")
			}
			if !cmd.Flags().Changed("ttl") {
				ttl = env.cfg.Server.Auth.TokenTTL
			}

			issuer, err := auth.NewIssuer(secret, ttl)
			if err != nil {
				return err
			}
			token, err := issuer.Issue(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Token lifetime, 0 for no expiry (overrides server.auth.token_ttl)")

	return cmd
}

func newAuthKeyCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "key [key]",
		Short: "Generate an API key and its bcrypt hash",
		Long: `Generate a random API key, or hash the given one, and print the key and
the hash to add to server.auth.api_keys.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var key string
			if len(args) == 1 {
				key = args[0]
			} else {
				generated, err := auth.GenerateKey()
				if err != nil {
					return err
				}
				key = generated
			}

			hash, err := auth.HashKey(key)
			if err != nil {
				return err
			}

			out := ui.NewKeyValueTable(cmd.OutOrStdout(), root.noColor)
			out.AddRow("key", key)
			out.AddRow("hash", hash)
			out.Render()
			return nil
		},
	}
}
