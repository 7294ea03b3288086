// Package command implements flowctl, a terminal client for the chat API.
package command

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"flow-stream/backend/internal/client"
)

const AppName = "flowctl"

const refreshTimeout = 10 * time.Second

// Version is overwritten at build time using -ldflags.
var Version = "dev"

func NewRootCmd(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           AppName,
		Short:         "flowctl - terminal client for Flow chat threads",
		Long:          "flowctl sends messages, follows generations and manages threads on a Flow server.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.Version = version
	cmd.SetVersionTemplate(AppName + " version {{.Version}}\n")
	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)

	cmd.PersistentFlags().String("server", envOr("FLOW_SERVER", "http://localhost:8000"), "server base URL")
	cmd.PersistentFlags().String("user", envOr("FLOW_USER", "default-user"), "user id sent as X-User-ID")
	cmd.PersistentFlags().Bool("json", false, "output in JSON format")

	cmd.AddCommand(
		NewChatCmd(),
		NewResumeCmd(),
		NewStopCmd(),
		NewRetryCmd(),
		NewEditCmd(),
		NewBranchCmd(),
		NewThreadsCmd(),
		NewMessagesCmd(),
	)

	return cmd
}

func Execute() error {
	return NewRootCmd(Version).Execute()
}

// apiClient builds a client from the persistent flags.
func apiClient(cmd *cobra.Command) *client.Client {
	server, _ := cmd.Flags().GetString("server")
	user, _ := cmd.Flags().GetString("user")
	return client.New(server, client.WithUser(user))
}

func jsonMode(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
