package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/user/toyrsa/internal/benchmark"
	"github.com/user/toyrsa/internal/cli"
	"github.com/user/toyrsa/internal/output"
	"github.com/user/toyrsa/pkg/sysinfo"
)

func newBenchCmd(a *app) *cobra.Command {
	var (
		iterations   int
		parallel     int
		outputFormat string
		outputFile   string
		showProgress bool
		timeout      int
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Benchmark key generation",
		Long: `Generate keypairs repeatedly on parallel workers and report throughput,
latency and system resource usage.`,
		Args: cobra.NoArgs,
		RunE: a.action(func(cmd *cobra.Command, args []string) error {
			formatter, err := output.NewReportFormatter(outputFormat)
			if err != nil {
				return &usageError{err: err}
			}
			if iterations < 1 || parallel < 1 || timeout < 1 {
				return usagef("--iterations, --parallel and --timeout must be positive")
			}

			sysInfo, err := sysinfo.Collect()
			if err != nil {
				return fmt.Errorf("failed to collect system info: %w", err)
			}

			verbose := a.verbosity == cli.Verbose
			if verbose {
				fmt.Fprintf(a.stderr, "System Information:\n")
				fmt.Fprintf(a.stderr, "  OS: %s\n", sysInfo.OS)
				fmt.Fprintf(a.stderr, "  Architecture: %s\n", sysInfo.Architecture)
				fmt.Fprintf(a.stderr, "  CPU: %s (%d cores)\n", sysInfo.CPUModel, sysInfo.CPUCores)
				fmt.Fprintf(a.stderr, "  Memory: %.2f GB\n", float64(sysInfo.TotalMemory)/(1024*1024*1024))
				fmt.Fprintf(a.stderr, "  Entropy: %d bits\n", sysInfo.EntropyBits)
				fmt.Fprintln(a.stderr)
			}

			config := benchmark.Config{
				Iterations:   iterations,
				Parallel:     parallel,
				ShowProgress: showProgress && a.verbosity != cli.Quiet,
				Timeout:      timeout,
				Verbose:      verbose,
				Seed:         a.seed,
			}

			src, err := a.randomSource()
			if err != nil {
				return err
			}

			runner := benchmark.NewRunner(config, src)
			result, err := runner.Run(context.Background())
			if err != nil {
				return fmt.Errorf("benchmark failed: %w", err)
			}

			var writer io.Writer = a.stdout
			if outputFile != "" {
				f, err := os.Create(outputFile)
				if err != nil {
					return fmt.Errorf("failed to create output file: %w", err)
				}
				defer f.Close()
				writer = f
			}

			report := output.Report{
				SystemInfo: sysInfo,
				Result:     result,
				Config:     runner.Config(),
			}
			if err := formatter.FormatReport(writer, report); err != nil {
				return fmt.Errorf("failed to format output: %w", err)
			}
			return nil
		}),
	}

	cmd.Flags().IntVarP(&iterations, "iterations", "i", 100, "Keypairs to generate per worker")
	cmd.Flags().IntVarP(&parallel, "parallel", "p", 1, "Number of parallel workers")
	cmd.Flags().StringVar(&outputFormat, "output-format", "table", "Output format (table, json, csv)")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")
	cmd.Flags().BoolVar(&showProgress, "progress", true, "Show progress bar")
	cmd.Flags().IntVarP(&timeout, "timeout", "t", 300, "Timeout in seconds")

	return cmd
}
