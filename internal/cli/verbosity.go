package cli

import (
	"strconv"

	"github.com/spf13/pflag"
)

// Verbosity selects how much the command line tool prints.
type Verbosity int

const (
	// Verbose prints results plus a trace of every step on stderr.
	Verbose Verbosity = iota
	// Brief prints labelled, human friendly results.
	Brief
	// Quiet prints bare values in a fixed, machine readable order.
	Quiet
)

func (v Verbosity) String() string {
	switch v {
	case Verbose:
		return "verbose"
	case Brief:
		return "brief"
	case Quiet:
		return "quiet"
	}
	return "unknown"
}

// levelFlag is a boolean flag that stores its level into a target shared with
// the other verbosity flags, so the last one given wins.
type levelFlag struct {
	target *Verbosity
	level  Verbosity
	set    bool
}

func (f *levelFlag) String() string {
	return strconv.FormatBool(f.set)
}

func (f *levelFlag) Set(s string) error {
	b, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}
	if b {
		*f.target = f.level
	}
	f.set = b
	return nil
}

func (f *levelFlag) Type() string {
	return "bool"
}

// RegisterVerbosityFlags adds -v/--verbose, -b/--brief and -q/--quiet to fs,
// all writing to target.
func RegisterVerbosityFlags(fs *pflag.FlagSet, target *Verbosity) {
	flags := []struct {
		name, short string
		level       Verbosity
		usage       string
	}{
		{"verbose", "v", Verbose, "print detailed progress info along with output"},
		{"brief", "b", Brief, "print only output in a human-friendly format (default)"},
		{"quiet", "q", Quiet, "print only output in a consistent, machine-readable format"},
	}

	for _, d := range flags {
		f := fs.VarPF(&levelFlag{target: target, level: d.level}, d.name, d.short, d.usage)
		f.NoOptDefVal = "true"
	}
}
