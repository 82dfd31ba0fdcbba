package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	tasksCmd := &cobra.Command{Use: "tasks", Short: "Task operations"}

	var title, domain, projectId, due string
	var cadence int
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task",
		RunE: func(cmd *cobra.Command, args []string) error {
			if title == "" {
				return fmt.Errorf("--title required")
			}
			payload := map[string]interface{}{"title": title}
			if domain != "" {
				payload["domain"] = domain
			}
			if projectId != "" {
				payload["projectId"] = projectId
			}
			if due != "" {
				payload["dueTime"] = due
			}
			if cadence > 0 {
				payload["cadenceDays"] = cadence
			}
			data, err := doPostJSON(fmt.Sprintf("%s/api/tasks", apiFlag), payload)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	createCmd.Flags().StringVarP(&title, "title", "T", "", "Task title (required)")
	createCmd.Flags().StringVarP(&domain, "domain", "d", "", "Life domain (health, career, ...)")
	createCmd.Flags().StringVarP(&projectId, "project", "p", "", "Project ID")
	createCmd.Flags().StringVar(&due, "due", "", "Due time (RFC 3339)")
	createCmd.Flags().IntVar(&cadence, "cadence", 0, "Recurrence cadence in days")
	tasksCmd.AddCommand(createCmd)

	var limit int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := doGet(fmt.Sprintf("%s/api/tasks?limit=%d", apiFlag, limit))
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	listCmd.Flags().IntVarP(&limit, "limit", "l", 0, "Max tasks to return")
	tasksCmd.AddCommand(listCmd)

	statusCmd := &cobra.Command{
		Use:   "status TASK_ID STATUS",
		Short: "Update task status (todo, in_progress, done, abandoned)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := doPutJSON(fmt.Sprintf("%s/api/tasks/%s/status", apiFlag, args[0]),
				map[string]interface{}{"status": args[1]})
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, "ok")
			return nil
		},
	}
	tasksCmd.AddCommand(statusCmd)

	rootCmd.AddCommand(tasksCmd)
}
