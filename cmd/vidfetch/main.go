package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vidfetch/vidfetch/internal/version"
)

func main() {
	root := &cobra.Command{
		Use:   "vidfetch",
		Short: "Telegram bot that fetches media in the format you pick",
	}
	root.AddCommand(newServeCmd())
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version.Version)
		},
	})
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
