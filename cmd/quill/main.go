package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version information - will be set at build time
	Version   = "dev"
	GitCommit = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "quill",
		Short: "Inspect quill document stores",
		Long: `Quill maps typed application objects to a schema-less document store.
This tool inspects a configured store: the storage locations it holds and
the raw wire documents stored in them.`,
	}

	rootCmd.AddCommand(newVersionCommand())
	rootCmd.AddCommand(newCollectionsCommand())
	rootCmd.AddCommand(newGetCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("quill %s (%s)\n", Version, GitCommit)
		},
	}
}
