package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/user/toyrsa/internal/output"
	"github.com/user/toyrsa/internal/prime"
	"github.com/user/toyrsa/internal/rsa"
	"github.com/user/toyrsa/internal/storage"
)

func newKeygenCmd(a *app) *cobra.Command {
	var (
		outputFormat string
		save         bool
		storeDir     string
		retries      int
	)

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a keypair",
		Long: `Generate a keypair from two distinct random 8-bit primes.

By default the public key, private key and modulus are printed with labels;
with --quiet they are printed bare, one per line, in that order.`,
		Args: cobra.NoArgs,
		RunE: a.action(func(cmd *cobra.Command, args []string) error {
			formatter, err := output.NewKeyFormatter(outputFormat, a.verbosity)
			if err != nil {
				return &usageError{err: err}
			}
			if retries < 0 {
				return usagef("--retries must not be negative")
			}

			src, err := a.randomSource()
			if err != nil {
				return err
			}
			gen := rsa.NewGenerator(src, a.logger())

			var kp *rsa.Keypair
			for attempt := 0; ; attempt++ {
				kp, err = gen.Generate()
				if err == nil {
					break
				}
				if !errors.Is(err, prime.ErrExhausted) || attempt >= retries {
					return fmt.Errorf("key generation failed: %w", err)
				}
				a.logf("retrying after: %v", err)
			}

			key, err := storage.NewStoredKey(kp, storage.OriginCLI, "")
			if err != nil {
				return err
			}

			if save {
				fileStore, err := storage.NewFileStore(storeDir)
				if err != nil {
					return err
				}
				if err := fileStore.Save(key); err != nil {
					return err
				}
				a.logf("saved key %s to %s", key.ID, fileStore.BasePath())
			}

			return formatter.FormatKeys(a.stdout, []*storage.StoredKey{key})
		}),
	}

	cmd.Flags().StringVar(&outputFormat, "output-format", "text", "Output format (text, table, json, csv)")
	cmd.Flags().BoolVar(&save, "save", false, "Save the keypair to the key store")
	cmd.Flags().StringVar(&storeDir, "store-dir", defaultStoreDir, "Key store directory")
	cmd.Flags().IntVar(&retries, "retries", 0, "Retry a generation that ran out of prime candidates this many times")

	return cmd
}
