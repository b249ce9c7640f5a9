package main

import (
	"github.com/spf13/cobra"

	"github.com/user/toyrsa/internal/cli"
)

func newCryptCmd(a *app, encrypting bool) *cobra.Command {
	var (
		format    string
		delimiter string
	)

	cmd := &cobra.Command{
		Use:   "decrypt <key> <modulus> <ciphertext>",
		Short: "Decrypt cipher numbers into text",
		Long: `Decrypt cipher numbers, separated by the delimiter or whitespace, one byte
per number. Pass - as the ciphertext to read it from standard input.

The key and modulus accept decimal, 0x-prefixed hex and 0-prefixed octal.`,
		Args: cobra.ExactArgs(3),
	}
	if encrypting {
		cmd.Use = "encrypt <key> <modulus> <plaintext>"
		cmd.Short = "Encrypt text into cipher numbers"
		cmd.Long = `Encrypt text one byte at a time, printing one number per byte joined by the
delimiter. Plaintext given as an argument gets an encrypted trailing newline;
pass - to read it from standard input as is.

The key and modulus accept decimal, 0x-prefixed hex and 0-prefixed octal.`
	}

	cmd.RunE = a.action(func(cmd *cobra.Command, args []string) error {
		f, err := cli.ParseFormat(format)
		if err != nil {
			return err
		}
		if err := cli.ValidateDelimiter(delimiter); err != nil {
			return err
		}
		opts := cli.Options{Format: f, Delimiter: delimiter}

		key, err := cli.ParseUint(args[0])
		if err != nil {
			return err
		}
		a.logf("got key %d", key)

		modulus, err := cli.ParseUint(args[1])
		if err != nil {
			return err
		}
		if err := cli.ValidateModulus(modulus); err != nil {
			return err
		}
		a.logf("got modulus %d", modulus)

		text := args[2]
		fromStdin := text == "-"

		if encrypting {
			if fromStdin {
				a.logf("encrypting from stdin")
				return cli.EncryptStream(a.stdin, a.stdout, key, modulus, opts)
			}
			a.logf("encrypting from argv")
			return cli.EncryptText(a.stdout, text, key, modulus, opts)
		}

		if fromStdin {
			a.logf("decrypting from stdin")
			return cli.DecryptStream(a.stdin, a.stdout, key, modulus, opts)
		}
		a.logf("decrypting from argv")
		return cli.DecryptText(a.stdout, text, key, modulus, opts)
	})

	defaults := cli.DefaultOptions()
	cmd.Flags().StringVarP(&format, "format", "f", defaults.Format.String(), "Plaintext format (chars, numbers)")
	cmd.Flags().StringVarP(&delimiter, "delimiter", "d", defaults.Delimiter, "Separator between numbers; may not contain digits")

	return cmd
}
