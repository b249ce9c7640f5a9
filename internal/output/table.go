package output

import (
	"fmt"
	"io"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/user/toyrsa/internal/storage"
)

type TableFormatter struct{}

func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetBorder(false)
	table.SetCenterSeparator("|")
	table.SetColumnSeparator("|")
	table.SetRowSeparator("-")
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	return table
}

func (t *TableFormatter) FormatReport(w io.Writer, report Report) error {
	fmt.Fprintln(w, "\nKey Generation Benchmark")
	fmt.Fprintln(w, "========================")
	fmt.Fprintln(w)

	if info := report.SystemInfo; info != nil {
		fmt.Fprintf(w, "System: %s/%s, %s (%d cores)\n", info.OS, info.Architecture, info.CPUModel, info.CPUCores)
		if info.EntropyBits >= 0 {
			fmt.Fprintf(w, "Entropy pool: %d bits\n", info.EntropyBits)
		}
		fmt.Fprintln(w)
	}

	result := report.Result
	table := newTable(w, []string{
		"Iterations",
		"Parallel",
		"Generated",
		"Unique Moduli",
		"Total Time",
		"Avg Time",
		"Min Time",
		"Max Time",
		"Std Dev",
		"Keys/Sec",
		"CPU %",
		"Exhausted",
		"Errors",
	})
	table.Append([]string{
		fmt.Sprintf("%d", result.Iterations),
		fmt.Sprintf("%d", result.Parallel),
		fmt.Sprintf("%d", result.Generated),
		fmt.Sprintf("%d", result.UniqueModuli),
		formatDuration(result.TotalTime),
		formatDuration(result.AverageTime),
		formatDuration(result.MinTime),
		formatDuration(result.MaxTime),
		formatDuration(result.StdDev),
		fmt.Sprintf("%.2f", result.KeysPerSecond),
		fmt.Sprintf("%.1f", result.CPUUsage),
		fmt.Sprintf("%d", result.Exhausted),
		fmt.Sprintf("%d", result.Errors),
	})
	table.Render()

	if result.TimedOut {
		fmt.Fprintf(w, "\nTimed out after %ds\n", report.Config.Timeout)
	}
	return nil
}

func (t *TableFormatter) FormatKeys(w io.Writer, keys []*storage.StoredKey) error {
	table := newTable(w, []string{
		"ID",
		"Public",
		"Private",
		"Modulus",
		"P",
		"Q",
		"Fingerprint",
		"Origin",
		"Created",
	})

	for _, key := range keys {
		kp := key.Keypair
		table.Append([]string{
			shortID(key.ID),
			fmt.Sprintf("%d", kp.Public),
			fmt.Sprintf("%d", kp.Private),
			fmt.Sprintf("%d", kp.Modulus),
			fmt.Sprintf("%d", kp.P),
			fmt.Sprintf("%d", kp.Q),
			key.Fingerprint,
			string(key.Origin),
			key.CreatedAt.Format(time.RFC3339),
		})
	}

	table.Render()
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%.2fµs", float64(d.Nanoseconds())/1000)
	} else if d < time.Second {
		return fmt.Sprintf("%.2fms", float64(d.Nanoseconds())/1e6)
	} else if d < time.Minute {
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
	return fmt.Sprintf("%.2fm", d.Minutes())
}
