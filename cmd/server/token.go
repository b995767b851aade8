package main

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"

	"github.com/Tyrowin/roomcast/internal/auth"
	"github.com/Tyrowin/roomcast/internal/chat"
	"github.com/Tyrowin/roomcast/internal/config"
)

var validate = validator.New()

type identityInput struct {
	Email    string `validate:"required,email"`
	Username string `validate:"required,max=64"`
}

func newTokenCmd() *cobra.Command {
	var (
		in  identityInput
		ttl time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a signed access token",
		Long: `Sign an access token for the given identity with JWT_SECRET.

Clients pass it as the token query parameter, a Bearer Authorization header
or the access_token cookie when connecting to /ws.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := validate.Struct(in); err != nil {
				return fmt.Errorf("invalid identity: %w", err)
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if ttl <= 0 {
				ttl = cfg.TokenTTL
			}

			issuer := auth.NewIssuer([]byte(cfg.JWTSecret), cfg.JWTIssuer)
			token, err := issuer.Issue(chat.Identity{Username: in.Username, Email: in.Email}, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}

	cmd.Flags().StringVar(&in.Email, "email", "", "email of the token subject")
	cmd.Flags().StringVar(&in.Username, "username", "", "display name carried in the token")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (defaults to TOKEN_TTL)")
	return cmd
}
