package main

import (
	"fmt"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/spf13/cobra"

	"github.com/Tyrowin/roomcast/internal/chat"
	"github.com/Tyrowin/roomcast/internal/config"
	"github.com/Tyrowin/roomcast/internal/store"
)

func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage the user directory",
		Long: `Manage the users known to the directory.

The directory is consulted on every connection when REQUIRE_KNOWN_USER is set.`,
	}
	cmd.AddCommand(newUserAddCmd())
	return cmd
}

func newUserAddCmd() *cobra.Command {
	var (
		in       identityInput
		inactive bool
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add or update a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := validate.Struct(in); err != nil {
				return fmt.Errorf("invalid user: %w", err)
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log := logs.GetLoggerFromString(cfg.LogLevel)

			backend, err := store.Open(cmd.Context(), cfg.StoreTarget, log)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer func() { _ = backend.Close() }()

			user := chat.User{
				Identity:  chat.Identity{Username: in.Username, Email: in.Email},
				Active:    !inactive,
				CreatedAt: time.Now().UTC(),
			}
			if err := backend.PutUser(cmd.Context(), user); err != nil {
				return fmt.Errorf("save user: %w", err)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "saved %s (active=%t)\n", user.Email, user.Active)
			return err
		},
	}

	cmd.Flags().StringVar(&in.Email, "email", "", "user email")
	cmd.Flags().StringVar(&in.Username, "username", "", "user display name")
	cmd.Flags().BoolVar(&inactive, "inactive", false, "store the user as inactive")
	return cmd
}
