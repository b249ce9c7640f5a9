package output

import (
	"fmt"
	"io"

	"github.com/user/toyrsa/internal/benchmark"
	"github.com/user/toyrsa/internal/cli"
	"github.com/user/toyrsa/internal/storage"
	"github.com/user/toyrsa/pkg/sysinfo"
)

// Report is one finished benchmark run.
type Report struct {
	SystemInfo *sysinfo.SystemInfo
	Result     benchmark.Result
	Config     benchmark.Config
}

type ReportFormatter interface {
	FormatReport(w io.Writer, report Report) error
}

type KeyFormatter interface {
	FormatKeys(w io.Writer, keys []*storage.StoredKey) error
}

func NewReportFormatter(format string) (ReportFormatter, error) {
	switch format {
	case "table":
		return &TableFormatter{}, nil
	case "json":
		return &JSONFormatter{}, nil
	case "csv":
		return &CSVFormatter{}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

// NewKeyFormatter also accepts "text", which prints keys in the plain form
// selected by verbosity.
func NewKeyFormatter(format string, verbosity cli.Verbosity) (KeyFormatter, error) {
	switch format {
	case "text":
		return &TextFormatter{Verbosity: verbosity}, nil
	case "table":
		return &TableFormatter{}, nil
	case "json":
		return &JSONFormatter{}, nil
	case "csv":
		return &CSVFormatter{}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}
