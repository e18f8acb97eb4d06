package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"mixchat/internal/server"
)

// NewMailCmd creates the mail command group.
func NewMailCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mail",
		Short: "Exercise the configured mail sender",
	}

	cmd.AddCommand(newMailSendCmd())

	return cmd
}

func newMailSendCmd() *cobra.Command {
	var to, subject, body string

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send one HTML message synchronously",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := requireCLIContext(cmd)
			if err != nil {
				return err
			}
			if to == "" {
				return errors.New("--to is required")
			}

			sender, err := server.NewMailSender(cliCtx.Config.Mail, *cliCtx.Logger)
			if err != nil {
				return fmt.Errorf("mail sender: %w", err)
			}
			if err := sender.Send(cmd.Context(), to, subject, body); err != nil {
				return fmt.Errorf("send mail: %w", err)
			}

			if !cliCtx.Config.Mail.Enabled {
				fmt.Fprintln(cmd.OutOrStdout(), "mail disabled, message dropped")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sent to %s\n", to)
			return nil
		},
	}

	cmd.Flags().StringVar(&to, "to", "", "recipient address")
	cmd.Flags().StringVarP(&subject, "subject", "s", "", "subject line")
	cmd.Flags().StringVarP(&body, "body", "b", "", "HTML body")

	return cmd
}
