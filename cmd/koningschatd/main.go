package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/koningschat/koningschat/internal/cli"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "koningschatd",
		Short: "Koningschat daemon and CLI",
		Long:  "Koningschat daemon for serving the chat API and managing site content",
	}

	rootCmd.AddCommand(cli.ServeCmd())
	rootCmd.AddCommand(cli.ScrapeCmd())
	rootCmd.AddCommand(cli.EmbedCmd())
	rootCmd.AddCommand(cli.SearchCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
