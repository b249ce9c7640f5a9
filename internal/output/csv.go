package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/user/toyrsa/internal/storage"
)

type CSVFormatter struct{}

func (c *CSVFormatter) FormatReport(w io.Writer, report Report) error {
	writer := csv.NewWriter(w)

	header := []string{
		"Timestamp",
		"Iterations",
		"Parallel",
		"Generated",
		"UniqueModuli",
		"TotalTime(ms)",
		"AverageTime(ms)",
		"MinTime(ms)",
		"MaxTime(ms)",
		"StdDev(ms)",
		"KeysPerSecond",
		"CPUUsage(%)",
		"MemoryUsed(MB)",
		"Exhausted",
		"Errors",
		"TimedOut",
		"OS",
		"Architecture",
		"CPUModel",
		"CPUCores",
		"EntropyBits",
	}
	if err := writer.Write(header); err != nil {
		return err
	}

	result := report.Result
	row := []string{
		result.CompletedAt.Format(time.RFC3339),
		fmt.Sprintf("%d", result.Iterations),
		fmt.Sprintf("%d", result.Parallel),
		fmt.Sprintf("%d", result.Generated),
		fmt.Sprintf("%d", result.UniqueModuli),
		millis(result.TotalTime),
		millis(result.AverageTime),
		millis(result.MinTime),
		millis(result.MaxTime),
		millis(result.StdDev),
		fmt.Sprintf("%.2f", result.KeysPerSecond),
		fmt.Sprintf("%.2f", result.CPUUsage),
		fmt.Sprintf("%.2f", float64(result.MemoryUsed)/(1024*1024)),
		fmt.Sprintf("%d", result.Exhausted),
		fmt.Sprintf("%d", result.Errors),
		fmt.Sprintf("%t", result.TimedOut),
	}
	if info := report.SystemInfo; info != nil {
		row = append(row,
			info.OS,
			info.Architecture,
			info.CPUModel,
			fmt.Sprintf("%d", info.CPUCores),
			fmt.Sprintf("%d", info.EntropyBits),
		)
	} else {
		row = append(row, "", "", "", "", "")
	}
	if err := writer.Write(row); err != nil {
		return err
	}

	writer.Flush()
	return writer.Error()
}

func (c *CSVFormatter) FormatKeys(w io.Writer, keys []*storage.StoredKey) error {
	writer := csv.NewWriter(w)

	header := []string{"ID", "Public", "Private", "Modulus", "P", "Q", "Fingerprint", "Origin", "BenchmarkID", "CreatedAt"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, key := range keys {
		kp := key.Keypair
		row := []string{
			key.ID,
			fmt.Sprintf("%d", kp.Public),
			fmt.Sprintf("%d", kp.Private),
			fmt.Sprintf("%d", kp.Modulus),
			fmt.Sprintf("%d", kp.P),
			fmt.Sprintf("%d", kp.Q),
			key.Fingerprint,
			string(key.Origin),
			key.BenchmarkID,
			key.CreatedAt.Format(time.RFC3339),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func millis(d time.Duration) string {
	return fmt.Sprintf("%.2f", float64(d.Nanoseconds())/1e6)
}
