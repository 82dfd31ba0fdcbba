package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	var scope, projectId string
	chatCmd := &cobra.Command{
		Use:   "chat MESSAGE",
		Short: "Send a chat message to the coach",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := map[string]interface{}{"text": args[0]}
			if scope != "" {
				payload["scope"] = scope
			}
			if projectId != "" {
				payload["projectId"] = projectId
			}
			data, err := doPostJSON(fmt.Sprintf("%s/api/chat", apiFlag), payload)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	chatCmd.Flags().StringVarP(&scope, "scope", "s", "", "Conversation scope: global, project, tasks, notes")
	chatCmd.Flags().StringVarP(&projectId, "project", "p", "", "Project ID (required for project scope)")
	rootCmd.AddCommand(chatCmd)

	messagesCmd := &cobra.Command{
		Use:   "messages CONVERSATION_ID",
		Short: "List messages in a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := doGet(fmt.Sprintf("%s/api/conversations/%s/messages", apiFlag, args[0]))
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	rootCmd.AddCommand(messagesCmd)
}
