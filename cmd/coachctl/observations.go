package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	obsCmd := &cobra.Command{Use: "observations", Short: "Coaching observation operations"}

	var includeDismissed bool
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List observations",
		RunE: func(cmd *cobra.Command, args []string) error {
			url := fmt.Sprintf("%s/api/observations", apiFlag)
			if includeDismissed {
				url += "?includeDismissed=true"
			}
			data, err := doGet(url)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	listCmd.Flags().BoolVar(&includeDismissed, "all", false, "Include dismissed observations")
	obsCmd.AddCommand(listCmd)

	analyzeCmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run pattern analysis now",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := doPostJSON(fmt.Sprintf("%s/api/observations/analyze", apiFlag), nil)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	obsCmd.AddCommand(analyzeCmd)

	dismissCmd := &cobra.Command{
		Use:   "dismiss OBSERVATION_ID",
		Short: "Dismiss an observation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := doDelete(fmt.Sprintf("%s/api/observations/%s", apiFlag, args[0])); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, "ok")
			return nil
		},
	}
	obsCmd.AddCommand(dismissCmd)

	rootCmd.AddCommand(obsCmd)
}
