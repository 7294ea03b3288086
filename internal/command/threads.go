package command

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// NewThreadsCmd creates the threads command.
func NewThreadsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "threads",
		Short: "List your threads",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			threads, err := apiClient(cmd).Threads(cmd.Context())
			if err != nil {
				return err
			}
			if jsonMode(cmd) {
				return writeJSON(cmd.OutOrStdout(), threads)
			}
			if len(threads) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No threads.")
				return nil
			}
			now := time.Now()
			for _, t := range threads {
				fmt.Fprintln(cmd.OutOrStdout(), formatThread(t, now))
			}
			return nil
		},
	}
}

// NewMessagesCmd creates the messages command.
func NewMessagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "messages <thread>",
		Short: "Show the persisted messages of a thread",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			messages, err := apiClient(cmd).Messages(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if jsonMode(cmd) {
				return writeJSON(cmd.OutOrStdout(), messages)
			}
			now := time.Now()
			for _, m := range messages {
				fmt.Fprint(cmd.OutOrStdout(), formatMessage(m, now))
			}
			return nil
		},
	}
}

// NewBranchCmd creates the branch command.
func NewBranchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "branch <thread> <message>",
		Short: "Copy a thread up to a message into a new thread",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			thread, err := apiClient(cmd).Branch(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			if jsonMode(cmd) {
				return writeJSON(cmd.OutOrStdout(), thread)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Branched into %s (%s)\n", thread.ID, thread.Title)
			return nil
		},
	}
}
