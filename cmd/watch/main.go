// Command watch follows one organization's change feed and keeps a live
// view of its projects and stats, refetching whatever each event affects.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	serverURL  string
	token      string
	email      string
	password   string
	jsonOutput bool
	logLevel   string
)

func defaultServer() string {
	if s := os.Getenv("PROJECT_HUB_SERVER"); s != "" {
		return s
	}
	return "http://localhost:8080"
}

var rootCmd = &cobra.Command{
	Use:           "watch",
	Short:         "Client tools for the project hub",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", defaultServer(), "API base URL")
	rootCmd.PersistentFlags().StringVar(&token, "token", os.Getenv("PROJECT_HUB_TOKEN"), "bearer token")
	rootCmd.PersistentFlags().StringVar(&email, "email", "", "log in with this email instead of --token")
	rootCmd.PersistentFlags().StringVar(&password, "password", os.Getenv("PROJECT_HUB_PASSWORD"), "password for --email")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(orgCmd)
	rootCmd.AddCommand(statsCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
