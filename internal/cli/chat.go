package cli

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/eshaffer321/pluginhub-go/pkg/pluginhub"
	"github.com/spf13/cobra"
)

const defaultChatPrompt = "You are the support assistant of a plugin marketplace. Help users find plugins, understand subscriptions and use the affiliate program. Keep answers short."

func newChatCmd() *cobra.Command {
	var system string

	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Ask the support assistant",
		Long:  "With a message, print one reply. Without one, read questions from stdin until EOF or \"exit\".",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if !client.Chat.Enabled() {
				return fmt.Errorf("chat: %w (set PLUGINHUB_CHAT_API_KEY)", pluginhub.ErrChatNotConfigured)
			}

			conv := client.Chat.NewConversation(system)

			if len(args) > 0 {
				reply, err := conv.Send(cmd.Context(), strings.Join(args, " "))
				if err != nil {
					return fmt.Errorf("chat: %w", err)
				}
				fmt.Fprintln(out, reply)
				return nil
			}

			in := bufio.NewReader(cmd.InOrStdin())
			for {
				line, err := prompt(in, out, "> ")
				if err != nil || line == "exit" || line == "quit" {
					return nil
				}
				if line == "" {
					continue
				}

				reply, err := conv.Send(cmd.Context(), line)
				if err != nil {
					var apiErr *pluginhub.Error
					if errors.As(err, &apiErr) {
						fmt.Fprintf(out, "error: %s\n", apiErr.Message)
						continue
					}
					return fmt.Errorf("chat: %w", err)
				}
				fmt.Fprintln(out, reply)
			}
		},
	}

	cmd.Flags().StringVar(&system, "system", defaultChatPrompt, "System prompt")
	return cmd
}
