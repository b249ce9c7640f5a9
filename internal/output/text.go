package output

import (
	"fmt"
	"io"

	"github.com/user/toyrsa/internal/cli"
	"github.com/user/toyrsa/internal/storage"
)

type TextFormatter struct {
	Verbosity cli.Verbosity
}

func (t *TextFormatter) FormatKeys(w io.Writer, keys []*storage.StoredKey) error {
	for i, key := range keys {
		if i > 0 && t.Verbosity != cli.Quiet {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}

		kp := key.Keypair
		var err error
		if t.Verbosity == cli.Quiet {
			_, err = fmt.Fprintf(w, "%d\n%d\n%d\n", kp.Public, kp.Private, kp.Modulus)
		} else {
			_, err = fmt.Fprintf(w, "public key: %d\nprivate key: %d\nmodulus: %d\n", kp.Public, kp.Private, kp.Modulus)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
