package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/arbor-coach/arbor/server/internal/auth"
)

var (
	apiFlag string
	keyFlag string
	rootCmd = &cobra.Command{
		Use:   "coachctl",
		Short: "CLI client for the coach backend REST API",
	}
)

func main() {
	rootCmd.PersistentFlags().StringVarP(&apiFlag, "api", "a", "http://localhost:8080", "Coach service base URL")
	rootCmd.PersistentFlags().StringVarP(&keyFlag, "key", "k", auth.LocalDevAPIKey, "API key")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
