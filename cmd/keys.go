package main

import (
	"github.com/spf13/cobra"

	"github.com/user/toyrsa/internal/output"
	"github.com/user/toyrsa/internal/storage"
)

func newKeysCmd(a *app) *cobra.Command {
	var storeDir string

	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage saved keypairs",
	}
	cmd.PersistentFlags().StringVar(&storeDir, "store-dir", defaultStoreDir, "Key store directory")

	openStore := func() (*storage.FileStore, error) {
		return storage.NewFileStore(storeDir)
	}

	var listFormat string
	list := &cobra.Command{
		Use:   "list",
		Short: "List saved keypairs",
		Args:  cobra.NoArgs,
		RunE: a.action(func(cmd *cobra.Command, args []string) error {
			formatter, err := output.NewKeyFormatter(listFormat, a.verbosity)
			if err != nil {
				return &usageError{err: err}
			}
			fileStore, err := openStore()
			if err != nil {
				return err
			}
			keys, err := fileStore.List()
			if err != nil {
				return err
			}
			return formatter.FormatKeys(a.stdout, keys)
		}),
	}
	list.Flags().StringVar(&listFormat, "output-format", "table", "Output format (text, table, json, csv)")

	var showFormat string
	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Print a saved keypair",
		Args:  cobra.ExactArgs(1),
		RunE: a.action(func(cmd *cobra.Command, args []string) error {
			formatter, err := output.NewKeyFormatter(showFormat, a.verbosity)
			if err != nil {
				return &usageError{err: err}
			}
			fileStore, err := openStore()
			if err != nil {
				return err
			}
			key, err := fileStore.Load(args[0])
			if err != nil {
				return err
			}
			return formatter.FormatKeys(a.stdout, []*storage.StoredKey{key})
		}),
	}
	show.Flags().StringVar(&showFormat, "output-format", "text", "Output format (text, table, json, csv)")

	remove := &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a saved keypair",
		Args:    cobra.ExactArgs(1),
		RunE: a.action(func(cmd *cobra.Command, args []string) error {
			fileStore, err := openStore()
			if err != nil {
				return err
			}
			if err := fileStore.Delete(args[0]); err != nil {
				return err
			}
			a.logf("deleted key %s", args[0])
			return nil
		}),
	}

	cmd.AddCommand(list, show, remove)
	return cmd
}
