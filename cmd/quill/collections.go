package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// newCollectionsCommand creates the collections command
func newCollectionsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "collections",
		Short: "List the storage locations present in the store",
		Example: `  # List collections in the configured store
  quill collections

  # Against a specific redis instance
  QUILL_STORE_BACKEND=redis quill collections`,
		RunE: runCollections,
	}
}

func runCollections(cmd *cobra.Command, args []string) error {
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}

	ctx := context.Background()
	store, closer, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closer.Close()

	locations, err := store.ListLocations(ctx)
	if err != nil {
		return fmt.Errorf("list locations: %w", err)
	}

	if len(locations) == 0 {
		color.Yellow("No collections found.")
		return nil
	}

	bold := color.New(color.Bold)
	bold.Printf("%d collection(s):\n", len(locations))
	for _, name := range locations {
		fmt.Printf("  %s\n", name)
	}
	return nil
}
