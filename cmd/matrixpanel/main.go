package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"matrixpanel/internal/server"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "matrixpanel",
		Short:        "Serve the 8x8 matrix control panel on the local network",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		Run: func(cmd *cobra.Command, args []string) {
			run(cmd.Context())
		},
	}
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	})
	return root
}

// panelServer is the part of server.GinServer the CLI drives.
type panelServer interface {
	Start() error
	Stop() error
}

func run(parent context.Context) {
	srv, err := server.NewGinServer(server.WithGinVersion(version))
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize server: %v", err)
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := serveUntilDone(ctx, srv); err != nil {
		log.Fatalf("FATAL: Server failed to start: %v", err)
	}
}

// serveUntilDone runs srv until ctx is cancelled and returns only after the
// shutdown triggered by the cancellation has completed.
func serveUntilDone(ctx context.Context, srv panelServer) error {
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		log.Printf("INFO: Shutting down")
		if err := srv.Stop(); err != nil {
			log.Printf("WARN: Shutdown incomplete: %v", err)
		}
	}()

	err := srv.Start()
	if ctx.Err() != nil {
		<-stopped
	}
	return err
}
