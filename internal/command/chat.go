package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"flow-stream/backend/internal/client"
	app_errors "flow-stream/backend/internal/errors"
	"flow-stream/backend/internal/model"
	"flow-stream/backend/internal/service"
)

// NewChatCmd creates the chat command.
func NewChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat <message...>",
		Short: "Send a message and follow the reply",
		Long: `Send a message and print the reply as it streams.

Interrupting detaches from the stream without stopping the generation;
continue with "flowctl resume <thread>" or end it with "flowctl stop <thread>".`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			threadID, _ := cmd.Flags().GetString("thread")
			modelID, _ := cmd.Flags().GetString("model")
			attachments, _ := cmd.Flags().GetStringSlice("attach")

			coord := client.NewCoordinator(apiClient(cmd), threadID)
			g, err := coord.Send(cmd.Context(), strings.Join(args, " "), modelID, attachments)
			if err != nil {
				return err
			}
			return follow(cmd, coord, g)
		},
	}
	cmd.Flags().String("thread", "", "continue an existing thread")
	cmd.Flags().String("model", "", "model to generate with")
	cmd.Flags().StringSlice("attach", nil, "attachment ids")
	return cmd
}

// NewResumeCmd creates the resume command.
func NewResumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resume <thread>",
		Short: "Re-attach to the generation running in a thread",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			coord := client.NewCoordinator(apiClient(cmd), args[0])
			g, err := coord.Resume(cmd.Context())
			if errors.Is(err, app_errors.ErrNotFound) {
				return fmt.Errorf("nothing is generating in thread %s", args[0])
			}
			if err != nil {
				return err
			}
			return follow(cmd, coord, g)
		},
	}
}

// NewStopCmd creates the stop command.
func NewStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop <thread>",
		Short: "Stop the generation running in a thread",
		Long: `Stop the generation running in a thread.

The reply keeps the content last saved by the server.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api := apiClient(cmd)
			messages, err := api.Messages(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for _, m := range messages {
				if m.Status != model.StatusStreaming || m.StreamID == "" {
					continue
				}
				req := &service.StopRequest{StreamID: m.StreamID, Content: m.Content, Reasoning: m.Reasoning}
				if err := api.Stop(cmd.Context(), req); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Stopped %s\n", m.ID)
				return nil
			}
			return fmt.Errorf("nothing is generating in thread %s", args[0])
		},
	}
}

// NewRetryCmd creates the retry command.
func NewRetryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "retry <thread> <message>",
		Short: "Regenerate the reply to a message",
		Long: `Regenerate the reply to a message.

The message may be the user message or the reply to it. Everything from the
user message on is replaced by the new generation.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			modelID, _ := cmd.Flags().GetString("model")
			coord := client.NewCoordinator(apiClient(cmd), args[0])
			g, err := coord.Retry(cmd.Context(), args[1], modelID)
			if err != nil {
				return err
			}
			return follow(cmd, coord, g)
		},
	}
	cmd.Flags().String("model", "", "model to generate with (default: the model of the replaced reply)")
	return cmd
}

// NewEditCmd creates the edit command.
func NewEditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit <thread> <message> <content...>",
		Short: "Replace a user message and regenerate from it",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			modelID, _ := cmd.Flags().GetString("model")
			var attachments []string
			if cmd.Flags().Changed("attach") {
				attachments, _ = cmd.Flags().GetStringSlice("attach")
				if attachments == nil {
					attachments = []string{}
				}
			}
			coord := client.NewCoordinator(apiClient(cmd), args[0])
			g, err := coord.Edit(cmd.Context(), args[1], strings.Join(args[2:], " "), attachments, modelID)
			if err != nil {
				return err
			}
			return follow(cmd, coord, g)
		},
	}
	cmd.Flags().String("model", "", "model to generate with")
	cmd.Flags().StringSlice("attach", nil, "replace the attachment ids (default: keep)")
	return cmd
}

// follow prints a generation until it ends. An interrupt detaches from the
// stream; the server keeps generating.
func follow(cmd *cobra.Command, coord *client.Coordinator, g *client.Generation) error {
	out := cmd.OutOrStdout()
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		_ = g.Close()
	}()
	defer func() { _ = g.Close() }()

	inReasoning := false
	for {
		ev, err := g.Next()
		if err != nil {
			if ctx.Err() != nil && cmd.Context().Err() == nil {
				fmt.Fprintf(out, "\nDetached. Resume with: %s resume %s\n", AppName, coord.ThreadID())
				return nil
			}
			if errors.Is(err, io.EOF) {
				break
			}
			return err
		}
		switch ev.Type {
		case model.EventThreadCreated:
			if !jsonMode(cmd) {
				fmt.Fprintf(out, "thread %s\n", ev.ID)
			}
		case model.EventReasoning:
			if !jsonMode(cmd) {
				if !inReasoning {
					fmt.Fprint(out, "(thinking) ")
					inReasoning = true
				}
				fmt.Fprint(out, ev.Delta)
			}
		case model.EventContent:
			if !jsonMode(cmd) {
				if inReasoning {
					fmt.Fprint(out, "\n\n")
					inReasoning = false
				}
				fmt.Fprint(out, ev.Delta)
			}
		case model.EventFinish:
			if !jsonMode(cmd) {
				fmt.Fprintln(out)
				if line := formatMetadata(ev.Metadata); line != "" {
					fmt.Fprintf(out, "-- %s\n", line)
				}
			}
		case model.EventError:
			if !jsonMode(cmd) {
				fmt.Fprintf(out, "\n-- %s\n", ev.Error)
			}
		}
	}
	if g.Final == nil {
		return fmt.Errorf("stream ended without a result; check with: %s messages %s", AppName, coord.ThreadID())
	}

	refreshCtx, cancel := context.WithTimeout(context.WithoutCancel(cmd.Context()), refreshTimeout)
	defer cancel()
	if err := coord.Refresh(refreshCtx); err != nil {
		return err
	}
	if jsonMode(cmd) {
		return writeJSON(out, coord.View())
	}
	return nil
}
