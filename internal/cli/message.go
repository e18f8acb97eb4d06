package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mixchat/internal/storage"
)

// NewMessageCmd creates the message command group.
func NewMessageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "message",
		Short: "Inspect and write chat messages",
	}

	cmd.AddCommand(newMessageSendCmd())
	cmd.AddCommand(newMessageUnseenCmd())
	cmd.AddCommand(newMessagePurgeCmd())

	return cmd
}

func newMessageSendCmd() *cobra.Command {
	var (
		from, to int64
		convo    string
		payload  string
	)

	cmd := &cobra.Command{
		Use:     "send",
		Short:   "Append a message for a recipient",
		Example: `  mixchat message send --from 7 --to 42 --convo room1 --payload hello`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := requireCLIContext(cmd)
			if err != nil {
				return err
			}
			if from <= 0 || to <= 0 {
				return errors.New("--from and --to are required")
			}

			db, err := cliCtx.GetStorage()
			if err != nil {
				return err
			}

			if _, err := db.GetUser(cmd.Context(), to); err != nil {
				if errors.Is(err, storage.ErrNotFound) {
					return fmt.Errorf("recipient %d not found", to)
				}
				return err
			}

			m := &storage.Message{SenderID: from, RecipientID: to, Payload: payload}
			if key := strings.TrimSpace(convo); key != "" {
				m.ConvoKey = &key
			}

			created, err := db.AppendMessage(cmd.Context(), m)
			if err != nil {
				return fmt.Errorf("append message: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "message_id: %d\n", created.ID)
			return nil
		},
	}

	cmd.Flags().Int64Var(&from, "from", 0, "sender user id")
	cmd.Flags().Int64Var(&to, "to", 0, "recipient user id")
	cmd.Flags().StringVar(&convo, "convo", "", "conversation key")
	cmd.Flags().StringVar(&payload, "payload", "", "message body")

	return cmd
}

func newMessageUnseenCmd() *cobra.Command {
	var convo string

	cmd := &cobra.Command{
		Use:   "unseen <user-id>",
		Short: "Count a user's unseen messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := requireCLIContext(cmd)
			if err != nil {
				return err
			}

			var id int64
			if _, err := fmt.Sscan(args[0], &id); err != nil || id <= 0 {
				return fmt.Errorf("invalid user id %q", args[0])
			}

			db, err := cliCtx.GetStorage()
			if err != nil {
				return err
			}

			n, err := db.CountUnseen(cmd.Context(), storage.UnseenFilter{
				RecipientID: id,
				ConvoKey:    strings.TrimSpace(convo),
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "unseen: %d\n", n)
			return nil
		},
	}

	cmd.Flags().StringVar(&convo, "convo", "", "restrict to one conversation key")

	return cmd
}

func newMessagePurgeCmd() *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete seen messages older than a cutoff",
		Long: `Delete seen messages older than --older-than. Unseen messages are kept.
Defaults to retention.max_age from the configuration.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := requireCLIContext(cmd)
			if err != nil {
				return err
			}
			if olderThan <= 0 {
				olderThan = cliCtx.Config.Retention.MaxAge
			}
			if olderThan <= 0 {
				return errors.New("--older-than must be positive")
			}

			db, err := cliCtx.GetStorage()
			if err != nil {
				return err
			}

			n, err := db.PurgeSeen(cmd.Context(), time.Now().Add(-olderThan))
			if err != nil {
				return fmt.Errorf("purge: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "purged: %d\n", n)
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "age cutoff, e.g. 720h")

	return cmd
}
