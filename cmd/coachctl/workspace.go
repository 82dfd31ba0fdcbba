package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	notesCmd := &cobra.Command{Use: "notes", Short: "Note operations"}

	var title, content string
	noteCreateCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a note",
		RunE: func(cmd *cobra.Command, args []string) error {
			if title == "" {
				return fmt.Errorf("--title required")
			}
			data, err := doPostJSON(fmt.Sprintf("%s/api/notes", apiFlag),
				map[string]interface{}{"title": title, "content": content})
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	noteCreateCmd.Flags().StringVarP(&title, "title", "T", "", "Note title (required)")
	noteCreateCmd.Flags().StringVarP(&content, "content", "c", "", "Note body")
	notesCmd.AddCommand(noteCreateCmd)

	var limit int
	noteListCmd := &cobra.Command{
		Use:   "list",
		Short: "List recent notes",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := doGet(fmt.Sprintf("%s/api/notes?limit=%d", apiFlag, limit))
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	noteListCmd.Flags().IntVarP(&limit, "limit", "l", 0, "Max notes to return")
	notesCmd.AddCommand(noteListCmd)

	rootCmd.AddCommand(notesCmd)

	projectsCmd := &cobra.Command{Use: "projects", Short: "Project operations"}

	var name string
	projCreateCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				return fmt.Errorf("--name required")
			}
			data, err := doPostJSON(fmt.Sprintf("%s/api/projects", apiFlag),
				map[string]interface{}{"name": name})
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	projCreateCmd.Flags().StringVarP(&name, "name", "n", "", "Project name (required)")
	projectsCmd.AddCommand(projCreateCmd)

	projListCmd := &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := doGet(fmt.Sprintf("%s/api/projects", apiFlag))
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	projectsCmd.AddCommand(projListCmd)

	rootCmd.AddCommand(projectsCmd)
}
