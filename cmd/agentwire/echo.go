package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentwire-dev/agentwire/internal/echoagent"
)

func echoCmd() *cobra.Command {
	var (
		addr    string
		project string
		verbose bool
	)

	cmd := &cobra.Command{
		Use:   "echo",
		Short: "Run a local echo agent for development",
		Long: `Echo runs an agent server that mirrors every message back to its
sender. Calls come back as responses carrying the call input, so the
full send/call path of the SDK can be exercised without a real
deployment.

The server exposes:
  /agent/live/{lookupKey}   live channel (WebSocket)
  /api/agents/{lookupKey}   agent lookup (JSON)
  /healthz                  health probe
  /metrics                  Prometheus metrics

Examples:
  agentwire echo
  agentwire echo --addr :9000 --project demo`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEcho(addr, project, verbose)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8787", "Listen address")
	cmd.Flags().StringVar(&project, "project", "", "Project ID to require (empty accepts any)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	return cmd
}

func runEcho(addr, project string, verbose bool) error {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	agent := echoagent.New(echoagent.Config{
		ProjectID: project,
		Logger:    logger,
	})

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}

	httpSrv := &http.Server{
		Handler:           agent.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	printBanner()
	info("Echo agent listening on http://%s", ln.Addr())
	info("Live endpoint: ws://%s/agent/live/{lookupKey}?pid={project}", ln.Addr())
	info("Metrics:       http://%s/metrics", ln.Addr())
	info("Press Ctrl+C to stop")
	fmt.Println()

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpSrv.Serve(ln)
	}()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
	}

	fmt.Println("\n\n  Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	success("Stopped")
	return nil
}
