package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "kitchen",
		Short: "Terminal kitchen board for the restaurant API",
	}
	rootCmd.PersistentFlags().String("server", envOr("KITCHEN_SERVER", "http://localhost:8080"), "API base URL")
	rootCmd.PersistentFlags().String("email", os.Getenv("KITCHEN_EMAIL"), "account email")
	rootCmd.PersistentFlags().String("password", os.Getenv("KITCHEN_PASSWORD"), "account password")

	rootCmd.AddCommand(
		boardCmd(),
		serveCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
