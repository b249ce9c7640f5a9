package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/user/toyrsa/internal/cli"
	"github.com/user/toyrsa/internal/random"
)

const version = "toyrsa, an 8-bit RSA toolkit\nversion 0.1.0"

const (
	exitOK            = 0
	exitInternalError = 1
	exitUsageError    = 2
)

const defaultStoreDir = "./toyrsa_storage"

// usageError marks a failure caused by how the program was invoked.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func usagef(format string, args ...any) error {
	return &usageError{err: fmt.Errorf(format, args...)}
}

func isUsageError(err error) bool {
	var ue *usageError
	return errors.As(err, &ue) || errors.Is(err, cli.ErrInvalidInput)
}

type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	verbosity     cli.Verbosity
	entropyDevice string
	seed          string

	source *random.Source
	// ran is set once a command's own logic starts; earlier failures come
	// from argument parsing.
	ran bool
}

func (a *app) action(fn func(cmd *cobra.Command, args []string) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a.ran = true
		return fn(cmd, args)
	}
}

// logger returns the trace logger, or nil unless running verbosely.
func (a *app) logger() *log.Logger {
	if a.verbosity != cli.Verbose {
		return nil
	}
	return log.New(a.stderr, "rsa: ", 0)
}

func (a *app) logf(format string, args ...any) {
	if l := a.logger(); l != nil {
		l.Printf(format, args...)
	}
}

func (a *app) randomSource() (*random.Source, error) {
	if a.source != nil {
		return a.source, nil
	}

	switch {
	case a.seed != "":
		a.logf("using seeded source")
		a.source = random.Seeded([]byte(a.seed))
	case a.entropyDevice != "":
		a.logf("reading entropy from %s", a.entropyDevice)
		src, err := random.Open(a.entropyDevice)
		if err != nil {
			return nil, err
		}
		a.source = src
	default:
		a.source = random.System()
	}
	return a.source, nil
}

func (a *app) close() {
	if a.source != nil {
		a.source.Close()
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "toyrsa",
		Short: "Toy RSA with 8-bit primes",
		Long: `toyrsa generates RSA keypairs from 8-bit primes and encrypts or decrypts
text one byte at a time with them.

The keys are far too small to protect anything. The tool exists to show how
RSA works, and to benchmark key generation.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: a.action(func(cmd *cobra.Command, args []string) error {
			cmd.SetOut(a.stderr)
			cmd.Usage()
			return usagef("no action provided")
		}),
	}

	root.SetIn(a.stdin)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)
	root.SetVersionTemplate("{{.Version}}\n")
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	flags := root.PersistentFlags()
	cli.RegisterVerbosityFlags(flags, &a.verbosity)
	flags.BoolP("help", "h", false, "print usage and exit (also --usage)")
	flags.BoolP("version", "V", false, "print version and exit")
	flags.StringVar(&a.entropyDevice, "entropy-device", "", "read randomness from this file or device instead of getrandom(2)")
	flags.StringVar(&a.seed, "seed", "", "derive randomness deterministically from this seed (insecure, for demos)")
	root.MarkFlagsMutuallyExclusive("entropy-device", "seed")

	root.AddCommand(
		newKeygenCmd(a),
		newCryptCmd(a, true),
		newCryptCmd(a, false),
		newKeysCmd(a),
		newBenchCmd(a),
		newServeCmd(a),
	)

	// -V works after any subcommand too
	for _, sub := range root.Commands() {
		sub.Version = version
	}

	root.SetGlobalNormalizationFunc(func(f *pflag.FlagSet, name string) pflag.NormalizedName {
		if name == "usage" {
			name = "help"
		}
		return pflag.NormalizedName(name)
	})

	return root
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	a := &app{
		stdin:     stdin,
		stdout:    stdout,
		stderr:    stderr,
		verbosity: cli.Brief,
	}
	defer a.close()

	root := newRootCmd(a)
	root.SetArgs(args)

	err := root.Execute()
	if err == nil {
		return exitOK
	}

	fmt.Fprintf(stderr, "Error: %v\n", err)
	if !a.ran || isUsageError(err) {
		fmt.Fprintln(stderr, "Run 'toyrsa --help' for usage.")
		return exitUsageError
	}
	return exitInternalError
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}
