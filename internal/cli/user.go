package cli

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"mixchat/internal/storage"
)

// NewUserCmd creates the user command group.
func NewUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user credentials",
	}

	cmd.AddCommand(newUserAddCmd())
	cmd.AddCommand(newUserRotateKeyCmd())

	return cmd
}

func newUserAddCmd() *cobra.Command {
	var u storage.User

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a user and print its api key",
		Example: `  mixchat user add --id 42 --key abc123 --email alice@example.com
  mixchat user add --name bob`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := requireCLIContext(cmd)
			if err != nil {
				return err
			}
			if u.ID < 0 {
				return fmt.Errorf("invalid user id %d", u.ID)
			}

			db, err := cliCtx.GetStorage()
			if err != nil {
				return err
			}

			created, err := db.CreateUser(cmd.Context(), &u)
			if err != nil {
				return fmt.Errorf("create user: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "user_id: %d\nkey: %s\n", created.ID, created.APIKey)
			return nil
		},
	}

	cmd.Flags().Int64Var(&u.ID, "id", 0, "user id (assigned automatically when 0)")
	cmd.Flags().StringVar(&u.APIKey, "key", "", "api key (generated when empty)")
	cmd.Flags().StringVar(&u.Email, "email", "", "email address")
	cmd.Flags().StringVar(&u.Name, "name", "", "display name")

	return cmd
}

func newUserRotateKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rotate-key <user-id>",
		Short: "Replace a user's api key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := requireCLIContext(cmd)
			if err != nil {
				return err
			}

			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid user id %q", args[0])
			}

			db, err := cliCtx.GetStorage()
			if err != nil {
				return err
			}

			key, err := db.RotateAPIKey(cmd.Context(), id)
			if errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("user %d not found", id)
			}
			if err != nil {
				return fmt.Errorf("rotate key: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "key: %s\n", key)
			return nil
		},
	}
}
