package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/user/toyrsa/internal/server"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		port     string
		workers  int
		storeDir string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Serve key generation, encryption, decryption and benchmark jobs over HTTP
under /api/v1. Benchmark progress is streamed over a websocket.`,
		Args: cobra.NoArgs,
		RunE: a.action(func(cmd *cobra.Command, args []string) error {
			src, err := a.randomSource()
			if err != nil {
				return err
			}

			srv, err := server.NewServer(server.Config{
				Port:     port,
				Workers:  workers,
				StoreDir: storeDir,
				Source:   src,
			})
			if err != nil {
				return fmt.Errorf("failed to create server: %w", err)
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			log.Println("Press Ctrl+C to stop")
			return srv.Start(ctx)
		}),
	}

	cmd.Flags().StringVar(&port, "port", "8080", "Listen port")
	cmd.Flags().IntVar(&workers, "workers", 1, "Benchmark jobs run at once")
	cmd.Flags().StringVar(&storeDir, "store-dir", defaultStoreDir, "Key store directory; empty disables saving")

	return cmd
}
