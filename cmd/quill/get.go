package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/quillstore/quill/docstore"
)

var getTypeFlag string

// newGetCommand creates the get command
func newGetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <collection> <id>",
		Short: "Fetch a raw wire document by collection and id",
		Long: `Fetch a document from the store and print its wire representation as
indented JSON. The document is printed as stored; no type registry is
consulted, so this works against any quill-managed store.`,
		Example: `  # Fetch a document by id
  quill get users 5f3c...

  # Restrict to documents carrying a specific type tag
  quill get users 5f3c... --type admin_user`,
		Args: cobra.ExactArgs(2),
		RunE: runGet,
	}
	cmd.Flags().StringVar(&getTypeFlag, "type", "", "Require a specific __type__ tag")
	return cmd
}

func runGet(cmd *cobra.Command, args []string) error {
	location, id := args[0], args[1]

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

	filter := docstore.Filter{docstore.IDKey: id}
	if getTypeFlag != "" {
		filter["__type__"] = getTypeFlag
	}

	doc, err := store.Read(ctx, location, filter)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			color.Red("No document %q in %q.", id, location)
			os.Exit(1)
		}
		return fmt.Errorf("read document: %w", err)
	}

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
