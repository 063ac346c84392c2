// Command containerinitd is the companion process that runs alongside a
// package's container and answers the Container RPC requests pkg/rpcclient
// sends on behalf of pkg/ops's command and signal operations. One instance
// supervises one container's task.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/containerd/containerd"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/cuemby/pkgrun/pkg/containerinit"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		containerdSocket string
		containerID      string
		dataDir          string
		rpcSocket        string
		logLevel         string
	)

	cmd := &cobra.Command{
		Use:   "containerinitd",
		Short: "Runs the container-side Container RPC server for one package's container",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := zerolog.New(os.Stderr).With().Timestamp().Str("component", "containerinitd").Logger()
			level, err := zerolog.ParseLevel(logLevel)
			if err != nil {
				return fmt.Errorf("parsing log level: %w", err)
			}
			logger = logger.Level(level)

			if containerID == "" {
				return fmt.Errorf("--container-id is required")
			}

			sockPath, err := containerinit.ResolveSocketPath(containerdSocket)
			if err != nil {
				return fmt.Errorf("resolving containerd socket: %w", err)
			}

			client, err := containerd.New(sockPath)
			if err != nil {
				return fmt.Errorf("connecting to containerd at %s: %w", sockPath, err)
			}
			defer client.Close()

			if err := os.MkdirAll(dataDir, 0755); err != nil {
				return fmt.Errorf("creating data dir: %w", err)
			}
			journal, err := containerinit.OpenJournal(dataDir)
			if err != nil {
				return fmt.Errorf("opening journal: %w", err)
			}
			defer journal.Close()

			ctx := context.Background()
			supervisor, err := containerinit.NewSupervisor(ctx, client, containerID, journal)
			if err != nil {
				return fmt.Errorf("attaching to container %s: %w", containerID, err)
			}

			os.Remove(rpcSocket)
			lis, err := net.Listen("unix", rpcSocket)
			if err != nil {
				return fmt.Errorf("listening on %s: %w", rpcSocket, err)
			}

			srv := containerinit.NewServer(supervisor, logger)
			serveErrCh := make(chan error, 1)
			go func() { serveErrCh <- srv.Serve(lis) }()

			logger.Info().Str("socket", rpcSocket).Str("container", containerID).Msg("containerinitd ready")

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			select {
			case sig := <-sigCh:
				logger.Info().Str("signal", sig.String()).Msg("shutting down")
			case err := <-serveErrCh:
				if err != nil {
					logger.Error().Err(err).Msg("rpc server stopped unexpectedly")
				}
			}

			_ = srv.Stop()
			return nil
		},
	}

	cmd.Flags().StringVar(&containerdSocket, "containerd-socket", "", "containerd socket path (platform default if empty)")
	cmd.Flags().StringVar(&containerID, "container-id", "", "containerd container id to attach to")
	cmd.Flags().StringVar(&dataDir, "data-dir", "/var/lib/containerinitd", "directory for the process journal")
	cmd.Flags().StringVar(&rpcSocket, "rpc-socket", "/run/containerinitd/ctl.sock", "unix socket to serve Container RPC on")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	return cmd
}
